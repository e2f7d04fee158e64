// Package middleware holds the HTTP middleware shared by every route.
package middleware

import "net/http"

// Failer writes an error response. handlers.Errors implements it, so
// rejections from middleware use the same envelope as handlers.
type Failer interface {
	Fail(w http.ResponseWriter, r *http.Request, err error)
}
