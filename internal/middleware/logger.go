package middleware

import (
	"net/http"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/blandib/spiritual-journal-api/pkg/clientip"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request. Mount it after chi's RequestID
// so the line carries request_id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l := logging.Ctx(r.Context())
			ev := l.Info()
			switch {
			case status >= http.StatusInternalServerError:
				ev = l.Error()
			case status >= http.StatusBadRequest:
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("ip", clientip.RealClientIP(r)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}
