package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/blandib/spiritual-journal-api/internal/metrics"
	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/services"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"github.com/blandib/spiritual-journal-api/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
	successPath     = "/success.html"
)

// Sessions is the session store view the auth flow needs.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Lookup(ctx context.Context, token string) (string, bool, error)
	Invalidate(ctx context.Context, token string) error
	TTL() time.Duration
}

// AccountLinker resolves a provider profile to a local user.
type AccountLinker interface {
	FindOrCreate(ctx context.Context, profile *services.Profile) (*models.User, error)
}

// Auth drives login and sessions. A nil provider disables the Google routes,
// which then answer 503.
type Auth struct {
	Errors

	provider   services.IdentityProvider
	accounts   AccountLinker
	sessions   Sessions
	users      store.Repository[models.User]
	cookieName string
	secure     bool
}

type AuthOptions struct {
	CookieName string
	Secure     bool // set the Secure attribute on cookies
}

func NewAuth(provider services.IdentityProvider, accounts AccountLinker, sessions Sessions, users store.Repository[models.User], opts AuthOptions, errs Errors) *Auth {
	if opts.CookieName == "" {
		opts.CookieName = "journal_session"
	}
	return &Auth{
		Errors:     errs,
		provider:   provider,
		accounts:   accounts,
		sessions:   sessions,
		users:      users,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
	}
}

func (h *Auth) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.provider == nil || h.sessions == nil {
		h.Fail(w, r, &apperr.UnavailableError{Service: "Login"})
		return false
	}
	return true
}

// Login godoc
// @Summary      Start Google login
// @Description  Redirects to the provider consent screen with a state cookie.
// @Tags         Auth
// @Success      302
// @Failure      503 {object} handlers.ErrorResponse "ServiceUnavailable"
// @Router       /auth/google [get]
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback godoc
// @Summary      Complete Google login
// @Description  Verifies state, exchanges the code, finds or creates the user
// @Description  by external id and opens a session.
// @Tags         Auth
// @Param        state query string true "OAuth state"
// @Param        code  query string true "Authorization code"
// @Success      302
// @Failure      401 {object} handlers.ErrorResponse "UnauthorizedError"
// @Router       /auth/google/callback [get]
func (h *Auth) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}

	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		h.Fail(w, r, &apperr.UnauthorizedError{Reason: "Login was cancelled: " + msg})
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		h.Fail(w, r, &apperr.UnauthorizedError{Reason: "Invalid login state"})
		return
	}
	h.clearCookie(w, stateCookieName, "/auth")

	code := q.Get("code")
	if code == "" {
		h.Fail(w, r, &apperr.UnauthorizedError{Reason: "Missing authorization code"})
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("oauth exchange failed")
		metrics.RecordLogin("google", false)
		h.Fail(w, r, &apperr.UnauthorizedError{Reason: "Login failed"})
		return
	}

	user, err := h.accounts.FindOrCreate(r.Context(), profile)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	if _, err := h.startSession(w, r, user); err != nil {
		h.Fail(w, r, err)
		return
	}
	metrics.RecordLogin("google", true)
	http.Redirect(w, r, successPath, http.StatusFound)
}

// LoginRequest is the body accepted by POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"notblank,email" label:"Email" example:"john@example.com"`
	Password string `json:"password" validate:"notblank" label:"Password"`
}

// LoginResponse carries the session token for clients that cannot keep cookies.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// PasswordLogin godoc
// @Summary      Log in with email and password
// @Description  Only users created with a password can log in this way. Sets the
// @Description  session cookie and also returns the token for Bearer use.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body handlers.LoginRequest true "Credentials"
// @Success      200 {object} handlers.Response{data=handlers.LoginResponse}
// @Failure      400 {object} handlers.ErrorResponse "ValidationError"
// @Failure      401 {object} handlers.ErrorResponse "UnauthorizedError"
// @Router       /auth/login [post]
func (h *Auth) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.Fail(w, r, &apperr.UnavailableError{Service: "Login"})
		return
	}

	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.Fail(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	verr := &apperr.ValidationError{}
	validation.Struct(&req, verr)
	if err := verr.OrNil(); err != nil {
		h.Fail(w, r, err)
		return
	}

	badCredentials := &apperr.UnauthorizedError{Reason: "Invalid email or password"}
	user, err := h.users.FindOne(r.Context(), bson.M{"email": req.Email})
	if errors.Is(err, store.ErrNotFound) {
		metrics.RecordLogin("password", false)
		h.Fail(w, r, badCredentials)
		return
	}
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if user.Password == "" {
		metrics.RecordLogin("password", false)
		h.Fail(w, r, badCredentials)
		return
	}
	ok, err := utils.VerifyPassword(req.Password, user.Password)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("stored password hash unreadable")
	}
	if !ok {
		metrics.RecordLogin("password", false)
		h.Fail(w, r, badCredentials)
		return
	}

	if utils.NeedsRehash(user.Password) {
		if hash, err := utils.HashPassword(req.Password); err == nil {
			if _, err := h.users.Update(r.Context(), user.ID, bson.M{"password": hash}); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("rehash password")
			}
		}
	}

	token, err := h.startSession(w, r, user)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	metrics.RecordLogin("password", true)
	respondData(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// startSession opens a session for user and sets the session cookie.
func (h *Auth) startSession(w http.ResponseWriter, r *http.Request, user *models.User) (string, error) {
	token, err := h.sessions.Create(r.Context(), user.ID.Hex())
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	logging.Ctx(r.Context()).Info().Str("user_id", user.ID.Hex()).Msg("user logged in")
	return token, nil
}

// Logout godoc
// @Summary      Log out
// @Description  Ends the current session and redirects to /.
// @Tags         Auth
// @Success      302
// @Router       /auth/logout [get]
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if token := h.sessionToken(r); token != "" {
			if err := h.sessions.Invalidate(r.Context(), token); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("invalidate session")
			}
		}
	}
	h.clearCookie(w, h.cookieName, "/")
	http.Redirect(w, r, "/", http.StatusFound)
}

// Me godoc
// @Summary      Current user
// @Description  Accepts the session cookie or an Authorization: Bearer token.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} handlers.Response{data=models.User}
// @Failure      401 {object} handlers.ErrorResponse "UnauthorizedError"
// @Router       /auth/me [get]
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.Fail(w, r, &apperr.UnavailableError{Service: "Login"})
		return
	}

	userID, ok, err := h.sessions.Lookup(r.Context(), h.sessionToken(r))
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if !ok {
		h.Fail(w, r, &apperr.UnauthorizedError{})
		return
	}

	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		h.Fail(w, r, &apperr.UnauthorizedError{})
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		// The account was deleted while the session lived on.
		h.Fail(w, r, &apperr.UnauthorizedError{})
		return
	}
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (h *Auth) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

func (h *Auth) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
