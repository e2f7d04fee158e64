package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/database"
	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/store/storetest"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	users      *storetest.Memory[models.User]
	entries    *storetest.Memory[models.Entry]
	comments   *storetest.Memory[models.Comment]
	categories *storetest.Memory[models.Category]
	exister    *storetest.Exister
	uploader   *fakeUploader
	router     chi.Router
}

type fakeUploader struct {
	got []byte
	err error
}

func (f *fakeUploader) UploadImage(_ context.Context, file io.Reader, publicID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	f.got = data
	return "https://cdn.example.com/avatars/" + publicID + ".png", nil
}

func newFixture(t *testing.T, debug bool) *fixture {
	t.Helper()
	f := &fixture{
		users:      storetest.NewMemory[models.User](database.UsersCollection, "email", "external_id"),
		entries:    storetest.NewMemory[models.Entry](database.EntriesCollection),
		comments:   storetest.NewMemory[models.Comment](database.CommentsCollection),
		categories: storetest.NewMemory[models.Category](database.CategoriesCollection),
		uploader:   &fakeUploader{},
	}
	f.exister = &storetest.Exister{Collections: map[string]interface {
		Has(primitive.ObjectID) bool
	}{
		database.UsersCollection:      f.users,
		database.EntriesCollection:    f.entries,
		database.CommentsCollection:   f.comments,
		database.CategoriesCollection: f.categories,
	}}

	errs := Errors{Debug: debug}
	users := NewUsers(f.users, f.exister, f.uploader, errs)
	entries := NewEntries(f.entries, f.exister, errs)
	comments := NewComments(f.comments, f.exister, errs)
	categories := NewCategories(f.categories, f.exister, errs)

	r := chi.NewRouter()
	mount := func(prefix string, h interface {
		List(http.ResponseWriter, *http.Request)
		Get(http.ResponseWriter, *http.Request)
		Create(http.ResponseWriter, *http.Request)
		Update(http.ResponseWriter, *http.Request)
		Delete(http.ResponseWriter, *http.Request)
	}) {
		r.Get(prefix, h.List)
		r.Post(prefix, h.Create)
		r.Get(prefix+"/{id}", h.Get)
		r.Put(prefix+"/{id}", h.Update)
		r.Delete(prefix+"/{id}", h.Delete)
	}
	mount("/users", users)
	mount("/entries", entries)
	mount("/comments", comments)
	mount("/categories", categories)
	r.Post("/users/{id}/avatar", users.UploadAvatar)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   apperr.Envelope `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &out))
	return out
}

func fields(env envelope) map[string]string {
	out := make(map[string]string, len(env.Error.Details))
	for _, d := range env.Error.Details {
		out[d.Field] = d.Message
	}
	return out
}

func (f *fixture) seedUser(t *testing.T, email string) models.User {
	t.Helper()
	u, err := f.users.Insert(context.Background(), &models.User{Name: "Seed", Email: email})
	require.NoError(t, err)
	return *u
}

func (f *fixture) seedEntry(t *testing.T, userID primitive.ObjectID) models.Entry {
	t.Helper()
	e, err := f.entries.Insert(context.Background(), &models.Entry{
		Title: "Seed", Content: "Body", UserID: userID,
		Tags: []string{"faith"}, Mood: models.MoodJoy, Visibility: models.VisibilityPublic, Scripture: "John 3:16",
	})
	require.NoError(t, err)
	return *e
}

func TestUsers_CreateThenGet(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/users", `{"name":" John Doe ","email":"John@Example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "correct-horse")

	created := decodeData[models.User](t, rec)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "John Doe", created.Name)
	assert.Equal(t, "john@example.com", created.Email)

	stored, err := f.users.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Password, "$argon2id$"))

	rec = f.do(t, http.MethodGet, "/users/"+created.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[models.User](t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "john@example.com", got.Email)
}

func TestUsers_EmailTrimmedBeforeValidation(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"A","email":"  a@example.com  "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[models.User](t, rec)
	assert.Equal(t, "a@example.com", created.Email)

	stored, err := f.users.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", stored.Email)

	rec = f.do(t, http.MethodPut, "/users/"+created.ID.Hex(), `{"name":"A","email":"\tB@Example.com "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "b@example.com", decodeData[models.User](t, rec).Email)
}

func TestUsers_ValidationReportsEveryField(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/users", `{"name":"   ","email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, apperr.TypeValidation, env.Error.Type)
	assert.Equal(t, http.StatusBadRequest, env.Error.StatusCode)
	got := fields(env)
	assert.Equal(t, "Name is required", got["name"])
	assert.Equal(t, "Invalid email format", got["email"])
	assert.Equal(t, "Password must be at least 8 characters", got["password"])
	assert.Zero(t, f.users.Len())
}

func TestUsers_DuplicateEmail(t *testing.T) {
	f := newFixture(t, false)
	f.seedUser(t, "taken@example.com")

	rec := f.do(t, http.MethodPost, "/users", `{"name":"Other","email":"TAKEN@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.Equal(t, apperr.TypeDuplicateKey, env.Error.Type)
	assert.Equal(t, "Duplicate field value entered: email", env.Error.Message)
	assert.Equal(t, "'email' must be unique", fields(env)["email"])
}

func TestUsers_UpdateKeepsOmittedOptionalFields(t *testing.T) {
	f := newFixture(t, false)
	u, err := f.users.Insert(context.Background(), &models.User{
		Name: "Old", Email: "old@example.com", ExternalID: "google-1", ProfilePic: "https://img.example.com/a.png",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/users/"+u.ID.Hex(), `{"name":"New","email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeData[models.User](t, rec)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "google-1", got.ExternalID)
	assert.Equal(t, "https://img.example.com/a.png", got.ProfilePic)
}

func TestGet_InvalidIDNeverTouchesStorage(t *testing.T) {
	f := newFixture(t, false)
	f.users.Err = errors.New("storage must not be called")
	f.entries.Err = errors.New("storage must not be called")

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/users/123", ""},
		{http.MethodPut, "/users/not-an-id", `{"name":"a","email":"a@b.co"}`},
		{http.MethodDelete, "/entries/zzzzzzzzzzzzzzzzzzzzzzzz", ""},
	} {
		rec := f.do(t, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, apperr.TypeInvalidID, env.Error.Type)
		assert.Equal(t, "Invalid resource ID format", env.Error.Message)
	}
}

func TestList_EmptyCollectionIsEmptyArray(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t, false)

	for _, body := range []string{`{"name":`, `{"name": 42, "email": "a@b.co"}`} {
		rec := f.do(t, http.MethodPost, "/users", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, apperr.TypeValidation, decodeEnvelope(t, rec).Error.Type)
	}

	req := httptest.NewRequest(http.MethodPost, "/users", http.NoBody)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", fields(decodeEnvelope(t, rec))["body"])
}

func TestStorageFailureIsServerError(t *testing.T) {
	f := newFixture(t, false)
	f.categories.Err = errors.New("connection reset")

	rec := f.do(t, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, apperr.TypeServer, env.Error.Type)
	assert.Equal(t, "connection reset", env.Error.Message)
	assert.Empty(t, env.Error.Stack)
	assert.NotNil(t, env.Error.Details)

	debug := newFixture(t, true)
	debug.categories.Err = errors.New("connection reset")
	rec = debug.do(t, http.MethodGet, "/categories", "")
	assert.NotEmpty(t, decodeEnvelope(t, rec).Error.Stack)
}

func TestEntries_CreateAppliesDefaults(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "writer@example.com")

	body := `{"title":"Morning","content":"Quiet time","userId":"` + u.ID.Hex() + `","tags":[" faith ","","faith","hope"]}`
	rec := f.do(t, http.MethodPost, "/entries", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeData[models.Entry](t, rec)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, []string{"faith", "hope"}, got.Tags)
	assert.Equal(t, models.MoodNeutral, got.Mood)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)

	rec = f.do(t, http.MethodPost, "/entries", `{"title":"T","content":"C","userId":"`+u.ID.Hex()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tags":[]`)
}

func TestEntries_UnknownUserReference(t *testing.T) {
	f := newFixture(t, false)

	missing := primitive.NewObjectID().Hex()
	rec := f.do(t, http.MethodPost, "/entries", `{"title":"T","content":"C","userId":"`+missing+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, apperr.TypeValidation, env.Error.Type)
	assert.Equal(t, "User not found", fields(env)["userId"])
	assert.Zero(t, f.entries.Len())
}

func TestEntries_CollectsTagAndReferenceViolations(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/entries", `{"title":"","content":"C","userId":"abc","mood":"angry","visibility":"friends"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := fields(decodeEnvelope(t, rec))
	assert.Len(t, got, 4)
	assert.Equal(t, "Title is required", got["title"])
	assert.Equal(t, "Invalid user ID format", got["userId"])
	assert.Equal(t, "Invalid mood value, must be one of: joy, peace, gratitude, struggle, neutral", got["mood"])
	assert.Equal(t, "Invalid visibility value, must be one of: private, public", got["visibility"])
}

func TestEntries_UpdateKeepsOmittedOptionalFields(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "writer@example.com")
	e := f.seedEntry(t, u.ID)

	rec := f.do(t, http.MethodPut, "/entries/"+e.ID.Hex(), `{"title":"Edited","content":"New body","userId":"`+u.ID.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeData[models.Entry](t, rec)
	assert.Equal(t, "Edited", got.Title)
	assert.Equal(t, "New body", got.Content)
	assert.Equal(t, []string{"faith"}, got.Tags)
	assert.Equal(t, models.MoodJoy, got.Mood)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.Equal(t, "John 3:16", got.Scripture)

	rec = f.do(t, http.MethodPut, "/entries/"+e.ID.Hex(), `{"title":"Edited","content":"New body","userId":"`+u.ID.Hex()+`","mood":"peace","tags":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeData[models.Entry](t, rec)
	assert.Equal(t, models.MoodPeace, got.Mood)
	assert.Empty(t, got.Tags)
}

func TestEntries_DeleteMissing(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodDelete, "/entries/"+primitive.NewObjectID().Hex(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "EntryNotFound", env.Error.Type)
	assert.Equal(t, "Entry not found", env.Error.Message)
}

func TestEntries_UpdateMissing(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "writer@example.com")

	rec := f.do(t, http.MethodPut, "/entries/"+primitive.NewObjectID().Hex(), `{"title":"T","content":"C","userId":"`+u.ID.Hex()+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "EntryNotFound", decodeEnvelope(t, rec).Error.Type)
}

func TestComments_Lifecycle(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "reader@example.com")
	e := f.seedEntry(t, u.ID)

	rec := f.do(t, http.MethodPost, "/comments", `{"entryId":"`+e.ID.Hex()+`","userId":"`+u.ID.Hex()+`","text":" Amen "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeData[models.Comment](t, rec)
	assert.Equal(t, e.ID, c.EntryID)
	assert.Equal(t, "Amen", c.Text)

	rec = f.do(t, http.MethodGet, "/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]models.Comment](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/comments/"+c.ID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Comment deleted"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/comments/"+c.ID.Hex(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CommentNotFound", decodeEnvelope(t, rec).Error.Type)
}

func TestComments_BothReferencesChecked(t *testing.T) {
	f := newFixture(t, false)

	body := `{"entryId":"` + primitive.NewObjectID().Hex() + `","userId":"` + primitive.NewObjectID().Hex() + `","text":"hi"}`
	rec := f.do(t, http.MethodPost, "/comments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := fields(decodeEnvelope(t, rec))
	assert.Equal(t, "Entry not found", got["entryId"])
	assert.Equal(t, "User not found", got["userId"])
}

func TestComments_ReferenceLookupFailure(t *testing.T) {
	f := newFixture(t, false)
	f.exister.Err = errors.New("server selection timeout")

	body := `{"entryId":"` + primitive.NewObjectID().Hex() + `","userId":"` + primitive.NewObjectID().Hex() + `","text":"hi"}`
	rec := f.do(t, http.MethodPost, "/comments", body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperr.TypeServer, decodeEnvelope(t, rec).Error.Type)
}

func TestCategories_UpdateKeepsDescription(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/categories", `{"name":"Gratitude","description":"Thankful notes"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeData[models.Category](t, rec)

	rec = f.do(t, http.MethodPut, "/categories/"+c.ID.Hex(), `{"name":"Thanks"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[models.Category](t, rec)
	assert.Equal(t, "Thanks", got.Name)
	assert.Equal(t, "Thankful notes", got.Description)

	rec = f.do(t, http.MethodPost, "/categories", `{"description":"nameless"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name is required", fields(decodeEnvelope(t, rec))["name"])
}

func avatarRequest(t *testing.T, path string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUsers_UploadAvatar(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "pic@example.com")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, avatarRequest(t, "/users/"+u.ID.Hex()+"/avatar", []byte("png-bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeData[models.User](t, rec)
	assert.Equal(t, "https://cdn.example.com/avatars/"+u.ID.Hex()+".png", got.ProfilePic)
	assert.Equal(t, []byte("png-bytes"), f.uploader.got)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, avatarRequest(t, "/users/"+primitive.NewObjectID().Hex()+"/avatar", []byte("x")))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UserNotFound", decodeEnvelope(t, rec).Error.Type)
}

func TestUsers_UploadAvatarWithoutUploader(t *testing.T) {
	f := newFixture(t, false)
	u := f.seedUser(t, "pic@example.com")

	h := NewUsers(f.users, f.exister, nil, Errors{})
	r := chi.NewRouter()
	r.Post("/users/{id}/avatar", h.UploadAvatar)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, avatarRequest(t, "/users/"+u.ID.Hex()+"/avatar", []byte("x")))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperr.TypeUnavailable, decodeEnvelope(t, rec).Error.Type)
}
