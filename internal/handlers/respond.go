package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxBodyBytes = 1 << 20

// Response is the success envelope.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// MessageResponse is returned by operations with nothing to echo back.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message" example:"Entry deleted"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool            `json:"success"`
	Error   apperr.Envelope `json:"error"`
}

// Errors writes classified failures. Debug adds traces to 5xx envelopes.
type Errors struct {
	Debug bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("write response")
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// Fail classifies err and writes the error envelope. It is the only
// code path that produces an error status.
func (e Errors) Fail(w http.ResponseWriter, r *http.Request, err error) {
	env := apperr.Classify(err, e.Debug)

	l := logging.Ctx(r.Context())
	if env.StatusCode >= http.StatusInternalServerError {
		l.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", env.StatusCode).Str("type", env.Type).Msg("request rejected")
	}

	writeJSON(w, env.StatusCode, ErrorResponse{Success: false, Error: env})
}

// decodeBody reads a JSON request body into dst, turning syntax and type
// problems into validation failures.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apperr.NewValidation("body", "Request body is too large")
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return apperr.NewValidation("body", "Request body is required")
	}

	err = json.Unmarshal(data, dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		msg := "Invalid type"
		if typeErr.Type != nil {
			msg += ", expected " + typeErr.Type.String()
		}
		return apperr.NewValidation(field, msg)
	}
	return apperr.NewValidation("body", "Malformed JSON body")
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &apperr.InvalidIDError{Field: "id", Value: raw}
	}
	return id, nil
}

// RouteNotFound is the error for requests no route matches.
func RouteNotFound(r *http.Request) error {
	return fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, apperr.NotFound("Route"))
}
