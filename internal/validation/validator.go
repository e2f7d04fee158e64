// Package validation checks request payloads before any storage mutation.
//
// Struct rules are declared with go-playground/validator tags on the request
// types. A `label` tag supplies the human name used in messages. Reference
// rules (a body id that must resolve to an existing document) are checked
// afterwards against the store and reported in the same batch.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		// Field validators are only registered here, so a failure is a programming error
		mustRegister("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

// Reference is a body identifier that must point at an existing document.
type Reference struct {
	Field      string // JSON field name, e.g. "userId"
	Collection string
	ID         string
	Message    string // reported when the document does not exist
}

// Exister answers whether a document with id exists in collection.
type Exister interface {
	Exists(ctx context.Context, collection, id string) (bool, error)
}

// Check validates req and then every reference, collecting all violations
// into one *apperr.ValidationError. Storage failures during reference
// lookups are returned as-is.
func Check(ctx context.Context, exister Exister, req any, refs ...Reference) error {
	verr := &apperr.ValidationError{}
	Struct(req, verr)

	for _, ref := range refs {
		if verr.Has(ref.Field) {
			continue
		}
		if !IsValidObjectID(ref.ID) {
			verr.Add(ref.Field, "Invalid "+lowerFirst(labelOf(req, ref.Field))+" format")
			continue
		}
		ok, err := exister.Exists(ctx, ref.Collection, ref.ID)
		if err != nil {
			return fmt.Errorf("check %s reference: %w", ref.Field, err)
		}
		if !ok {
			verr.Add(ref.Field, ref.Message)
		}
	}

	return verr.OrNil()
}

// Struct runs the tag rules on req and appends violations to verr.
func Struct(req any, verr *apperr.ValidationError) {
	err := GetValidator().Struct(req)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("body", err.Error())
		return
	}

	for _, fe := range fieldErrs {
		if verr.Has(fe.Field()) {
			continue
		}
		verr.Add(fe.Field(), message(fe, labelOf(req, fe.Field())))
	}
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "oneof":
		return fmt.Sprintf("Invalid %s value, must be one of: %s", lowerFirst(label), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "objectid":
		return "Invalid " + lowerFirst(label) + " format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "url", "http_url":
		return label + " must be a valid URL"
	default:
		return label + " is invalid"
	}
}

// labelOf returns the `label` tag of the field whose JSON name is jsonName.
func labelOf(req any, jsonName string) string {
	t := reflect.TypeOf(req)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if strings.SplitN(f.Tag.Get("json"), ",", 2)[0] != jsonName {
				continue
			}
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			break
		}
	}
	return upperFirst(jsonName)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// lowerFirst lowercases the first word unless it is an acronym ("ID").
func lowerFirst(s string) string {
	if len(s) < 2 || strings.ToUpper(s[:2]) == s[:2] {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
