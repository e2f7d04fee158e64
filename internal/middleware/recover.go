package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/logging"
)

// Recover turns a handler panic into a ServerError envelope. It replaces
// chi's Recoverer, which answers with an empty 500.
func Recover(errs Failer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				logging.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", stack).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("panic recovered")
				errs.Fail(w, r, &apperr.PanicError{Value: rec, Stack: stack})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
