package apperr

import (
	"errors"
	"net/http"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Envelope is the externally visible error shape.
type Envelope struct {
	Type       string       `json:"type"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details"`
	StatusCode int          `json:"statusCode"`
	Stack      string       `json:"stack,omitempty"`
}

// Error types reported in Envelope.Type.
const (
	TypeInvalidID    = "InvalidIdError"
	TypeValidation   = "ValidationError"
	TypeDuplicateKey = "DuplicateKeyError"
	TypeUnauthorized = "UnauthorizedError"
	TypeUnavailable  = "ServiceUnavailable"
	TypeRateLimited  = "TooManyRequests"
	TypeMethod       = "MethodNotAllowed"
	TypeServer       = "ServerError"
)

// Classify maps err to exactly one envelope. It is the only place that picks
// an error status code. With debug set, 5xx envelopes also carry a trace:
// the panic stack for recovered panics, otherwise the wrapped error chain.
func Classify(err error, debugMode bool) Envelope {
	env := classify(err)
	if env.Details == nil {
		env.Details = []FieldError{}
	}
	if debugMode && env.StatusCode >= http.StatusInternalServerError {
		env.Stack = trace(err)
	}
	return env
}

func trace(err error) string {
	var p *PanicError
	if errors.As(err, &p) && len(p.Stack) > 0 {
		return string(p.Stack)
	}
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%T: %v", e, e)
	}
	return b.String()
}

func classify(err error) Envelope {
	var (
		invalidID    *InvalidIDError
		validation   *ValidationError
		notFound     *NotFoundError
		unauthorized *UnauthorizedError
		unavailable  *UnavailableError
		rateLimited  *RateLimitError
		method       *MethodNotAllowedError
		panicked     *PanicError
	)

	switch {
	case err == nil:
		return Envelope{Type: TypeServer, Message: "Internal server error", StatusCode: http.StatusInternalServerError}

	case errors.As(err, &invalidID):
		return Envelope{
			Type:       TypeInvalidID,
			Message:    "Invalid resource ID format",
			Details:    []FieldError{{Field: invalidID.Field, Message: "Invalid ID format"}},
			StatusCode: http.StatusBadRequest,
		}

	case errors.As(err, &validation):
		return Envelope{
			Type:       TypeValidation,
			Message:    "Validation failed",
			Details:    append([]FieldError(nil), validation.Fields...),
			StatusCode: http.StatusBadRequest,
		}

	case mongo.IsDuplicateKeyError(err):
		fields := DuplicateKeyFields(err)
		for i, f := range fields {
			fields[i] = jsonName(f)
		}
		details := make([]FieldError, 0, len(fields))
		for _, f := range fields {
			details = append(details, FieldError{Field: f, Message: "'" + f + "' must be unique"})
		}
		msg := "Duplicate field value entered"
		if len(fields) > 0 {
			msg += ": " + strings.Join(fields, ", ")
		}
		return Envelope{Type: TypeDuplicateKey, Message: msg, Details: details, StatusCode: http.StatusConflict}

	case errors.As(err, &notFound):
		return Envelope{
			Type:       notFound.Resource + "NotFound",
			Message:    notFound.Error(),
			StatusCode: http.StatusNotFound,
		}

	case errors.As(err, &unauthorized):
		return Envelope{Type: TypeUnauthorized, Message: unauthorized.Error(), StatusCode: http.StatusUnauthorized}

	case errors.As(err, &unavailable):
		return Envelope{Type: TypeUnavailable, Message: unavailable.Error(), StatusCode: http.StatusServiceUnavailable}

	case errors.As(err, &rateLimited):
		return Envelope{Type: TypeRateLimited, Message: rateLimited.Error(), StatusCode: http.StatusTooManyRequests}

	case errors.As(err, &method):
		return Envelope{Type: TypeMethod, Message: method.Error(), StatusCode: http.StatusMethodNotAllowed}

	case errors.As(err, &panicked):
		return Envelope{Type: TypeServer, Message: "Internal server error", StatusCode: http.StatusInternalServerError}

	default:
		return Envelope{Type: TypeServer, Message: err.Error(), StatusCode: http.StatusInternalServerError}
	}
}

var dupIndexPattern = regexp.MustCompile(`index: (\S+) dup key`)

// DuplicateKeyFields names the document fields behind a duplicate key error,
// preferring the server's keyPattern and falling back to the index name.
func DuplicateKeyFields(err error) []string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if fields := keyPatternFields(e.Raw); len(fields) > 0 {
				return fields
			}
		}
	}

	m := dupIndexPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return nil
	}
	return indexNameFields(m[1])
}

func keyPatternFields(raw bson.Raw) []string {
	if len(raw) == 0 {
		return nil
	}
	val, lookupErr := raw.LookupErr("keyPattern")
	if lookupErr != nil {
		return nil
	}
	doc, ok := val.DocumentOK()
	if !ok {
		return nil
	}
	elems, elemErr := doc.Elements()
	if elemErr != nil {
		return nil
	}
	fields := make([]string, 0, len(elems))
	for _, el := range elems {
		fields = append(fields, el.Key())
	}
	return fields
}

// indexNameFields turns "email_1" or "user_id_1_entry_id_-1" into field names.
func indexNameFields(index string) []string {
	parts := strings.Split(index, "_")
	var fields []string
	var current []string
	for _, p := range parts {
		if p == "1" || p == "-1" || p == "text" || p == "2dsphere" || p == "hashed" {
			if len(current) > 0 {
				fields = append(fields, strings.Join(current, "_"))
				current = nil
			}
			continue
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		fields = append(fields, strings.Join(current, "_"))
	}
	return fields
}

// jsonName converts a stored snake_case field to its camelCase API name.
func jsonName(field string) string {
	parts := strings.Split(field, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
