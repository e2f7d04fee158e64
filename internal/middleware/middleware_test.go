package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/blandib/spiritual-journal-api/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// typeFailer writes the classified status and the error type as the body.
type typeFailer struct{}

func (typeFailer) Fail(w http.ResponseWriter, _ *http.Request, err error) {
	env := apperr.Classify(err, false)
	w.WriteHeader(env.StatusCode)
	_, _ = w.Write([]byte(env.Type))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func requestFrom(method, path, ip string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":51234"
	return req
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://journal.example.com"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/entries", nil)
	req.Header.Set("Origin", "https://journal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://journal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries", nil))
	assert.Equal(t, "nosniff", rec.Header().Get(headerXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(headerXFrameOptions))
	assert.Equal(t, "default-src 'self'", rec.Header().Get(headerContentSecurityPolicy))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs/index.html", nil))
	assert.Empty(t, rec.Header().Get(headerContentSecurityPolicy))
	assert.Equal(t, "nosniff", rec.Header().Get(headerXContentTypeOptions))
}

func TestGlobalRateLimit(t *testing.T) {
	l := NewIPRateLimiter("test", rate.Every(time.Hour), 2)
	h := GlobalRateLimit(l, typeFailer{})(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperr.TypeRateLimited, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimit_OnlyLoginPaths(t *testing.T) {
	l := NewIPRateLimiter("login", rate.Every(time.Hour), 1)
	h := LoginRateLimit(l, typeFailer{}, "/auth/login")(okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodPost, "/auth/login", "10.0.0.1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodPost, "/auth/login", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIPRateLimiter_Prune(t *testing.T) {
	l := NewIPRateLimiter("test", rate.Limit(1), 1)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	assert.Zero(t, l.Prune(time.Now()))
	assert.Equal(t, 2, l.Prune(time.Now().Add(limiterTTL+time.Minute)))
}

func newRedisLimiter(t *testing.T, max int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRateLimiter(rdb, time.Minute, max), mr
}

func TestRedisRateLimiter(t *testing.T) {
	l, mr := newRedisLimiter(t, 2)
	h := l.Middleware(typeFailer{})(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.True(t, mr.Exists(RateLimitKeyPrefix+"10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	l, mr := newRedisLimiter(t, 1)
	h := l.Middleware(typeFailer{})(okHandler)
	mr.Close()

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(http.MethodGet, "/entries", "10.0.0.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestValidateObjectID(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/entries/{id}", func(r chi.Router) {
		r.Use(ValidateObjectID("id", typeFailer{}))
		r.Get("/", okHandler)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries/507f1f77bcf86cd799439011", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries/123", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.TypeInvalidID, rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	h := chimw.RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/users/missing", "10.0.0.9"))

	out := buf.String()
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"path":"/users/missing"`)
	assert.Contains(t, out, `"ip":"10.0.0.9"`)
	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/categories/{id}", okHandler)

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/categories/{id}", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecover_PanicBecomesServerError(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	h := Recover(typeFailer{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		var m map[string]int
		m["entries"]++
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/entries", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperr.TypeServer, rec.Body.String())
	assert.Contains(t, buf.String(), `"message":"panic recovered"`)
	assert.Contains(t, buf.String(), `"path":"/entries"`)
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	h := Recover(typeFailer{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entries", nil))
	})
}
