package validation

import (
	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsValidObjectID reports whether s is a 24-character hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// ParseObjectID converts s or returns an *apperr.InvalidIDError naming field.
func ParseObjectID(field, s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, &apperr.InvalidIDError{Field: field, Value: s}
	}
	return id, nil
}
