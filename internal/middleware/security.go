package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/metrics"
	"github.com/blandib/spiritual-journal-api/pkg/clientip"
	"golang.org/x/time/rate"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
	headerReferrerPolicy          = "Referrer-Policy"

	docsPrefix = "/api-docs"
)

// SecurityHeaders sets security-related response headers. The docs UI runs
// inline scripts, so it is served without the strict CSP.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(headerXContentTypeOptions, "nosniff")
		h.Set(headerXFrameOptions, "DENY")
		h.Set(headerXXSSProtection, "1; mode=block")
		h.Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		h.Set(headerReferrerPolicy, "strict-origin-when-cross-origin")
		if !strings.HasPrefix(r.URL.Path, docsPrefix) {
			h.Set(headerContentSecurityPolicy, "default-src 'self'")
		}
		next.ServeHTTP(w, r)
	})
}

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute

	loginRateLimitEvery = 5 * time.Second
	loginRateLimitBurst = 2
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Buckets idle for
// longer than the TTL are dropped by Prune.
type IPRateLimiter struct {
	name  string
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func NewIPRateLimiter(name string, limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		name:    name,
		limit:   limit,
		burst:   burst,
		ttl:     limiterTTL,
		entries: make(map[string]*limiterEntry),
	}
}

// NewLoginRateLimiter allows one attempt every five seconds with a burst of two.
func NewLoginRateLimiter() *IPRateLimiter {
	return NewIPRateLimiter("login", rate.Every(loginRateLimitEvery), loginRateLimitBurst)
}

// Allow consumes a token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter.Allow()
}

// Prune drops buckets unused since now minus the TTL and returns how many
// were removed.
func (l *IPRateLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > l.ttl {
			delete(l.entries, ip)
			removed++
		}
	}
	return removed
}

// Run prunes idle buckets until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Prune(now)
		}
	}
}

func (l *IPRateLimiter) reject(w http.ResponseWriter, r *http.Request, errs Failer, msg string) {
	metrics.RecordRateLimitRejection(l.name)
	retry := 1
	if l.limit > 0 {
		retry = int(time.Duration(float64(time.Second) / float64(l.limit)).Seconds())
		if retry < 1 {
			retry = 1
		}
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	errs.Fail(w, r, &apperr.RateLimitError{Message: msg, RetryAfter: retry})
}

// GlobalRateLimit applies l to every request. Returns 429 when exceeded.
func GlobalRateLimit(l *IPRateLimiter, errs Failer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientip.RealClientIP(r)) {
				l.reject(w, r, errs, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit applies l to the given login paths only. Use after GlobalRateLimit.
func LoginRateLimit(l *IPRateLimiter, errs Failer, paths ...string) func(http.Handler) http.Handler {
	loginPaths := make(map[string]bool, len(paths))
	for _, p := range paths {
		loginPaths[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !loginPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientip.RealClientIP(r)) {
				l.reject(w, r, errs, "Too many login attempts. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ProductionSecurity returns the production chain: SecurityHeaders → GlobalRateLimit → LoginRateLimit.
func ProductionSecurity(global, login *IPRateLimiter, errs Failer, loginPaths ...string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		GlobalRateLimit(global, errs),
		LoginRateLimit(login, errs, loginPaths...),
	}
}
