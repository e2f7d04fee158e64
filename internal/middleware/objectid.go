package middleware

import (
	"net/http"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"github.com/go-chi/chi/v5"
)

// ValidateObjectID rejects requests whose URL parameter param is not a
// 24-character hex ObjectID before any handler or storage call runs.
func ValidateObjectID(param string, errs Failer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, param)
			if !validation.IsValidObjectID(raw) {
				errs.Fail(w, r, &apperr.InvalidIDError{Field: param, Value: raw})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
