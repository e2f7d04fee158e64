package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func duplicateEmailErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: journal.users index: email_1 dup key: { email: "a@example.com" }`,
	}}}
}

func TestClassify_InvalidID(t *testing.T) {
	env := Classify(&InvalidIDError{Field: "id", Value: "abc"}, false)

	assert.Equal(t, TypeInvalidID, env.Type)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)
	assert.Equal(t, "Invalid resource ID format", env.Message)
	assert.Equal(t, []FieldError{{Field: "id", Message: "Invalid ID format"}}, env.Details)
}

func TestClassify_Validation(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("title", "Title is required")
	verr.Add("userId", "User not found")

	env := Classify(fmt.Errorf("create entry: %w", verr), false)

	assert.Equal(t, TypeValidation, env.Type)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)
	require.Len(t, env.Details, 2)
	assert.Equal(t, "userId", env.Details[1].Field)
}

func TestClassify_InvalidIDBeatsValidation(t *testing.T) {
	err := errors.Join(NewValidation("title", "Title is required"), &InvalidIDError{Field: "id"})

	assert.Equal(t, TypeInvalidID, Classify(err, false).Type)
}

func TestClassify_DuplicateKey(t *testing.T) {
	env := Classify(fmt.Errorf("insert user: %w", duplicateEmailErr()), false)

	assert.Equal(t, TypeDuplicateKey, env.Type)
	assert.Equal(t, http.StatusConflict, env.StatusCode)
	assert.Equal(t, "Duplicate field value entered: email", env.Message)
	assert.Equal(t, []FieldError{{Field: "email", Message: "'email' must be unique"}}, env.Details)
}

func TestClassify_DuplicateKeyFromKeyPattern(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "code", Value: 11000},
		{Key: "keyPattern", Value: bson.D{{Key: "external_id", Value: 1}}},
	})
	require.NoError(t, err)

	werr := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000", Raw: raw}}}
	env := Classify(werr, false)

	assert.Equal(t, TypeDuplicateKey, env.Type)
	assert.Equal(t, "Duplicate field value entered: externalId", env.Message)
}

func TestClassify_NotFound(t *testing.T) {
	env := Classify(NotFound("Entry"), false)

	assert.Equal(t, "EntryNotFound", env.Type)
	assert.Equal(t, "Entry not found", env.Message)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
	assert.NotNil(t, env.Details)
	assert.Empty(t, env.Details)
}

func TestClassify_ServerError(t *testing.T) {
	env := Classify(errors.New("connection reset by peer"), false)

	assert.Equal(t, TypeServer, env.Type)
	assert.Equal(t, "connection reset by peer", env.Message)
	assert.Equal(t, http.StatusInternalServerError, env.StatusCode)
	assert.Empty(t, env.Stack)
}

func TestClassify_StackOnlyInDebug(t *testing.T) {
	env := Classify(fmt.Errorf("list entries: %w", errors.New("boom")), true)
	assert.Equal(t, "*fmt.wrapError: list entries: boom\n*errors.errorString: boom", env.Stack)

	env = Classify(NotFound("User"), true)
	assert.Empty(t, env.Stack)
}

func TestClassify_Unauthorized(t *testing.T) {
	env := Classify(&UnauthorizedError{}, false)
	assert.Equal(t, http.StatusUnauthorized, env.StatusCode)
	assert.Equal(t, "Authentication required", env.Message)

	env = Classify(&UnavailableError{Service: "Image upload"}, false)
	assert.Equal(t, http.StatusServiceUnavailable, env.StatusCode)
}

func TestIndexNameFields(t *testing.T) {
	assert.Equal(t, []string{"email"}, indexNameFields("email_1"))
	assert.Equal(t, []string{"external_id"}, indexNameFields("external_id_1"))
	assert.Equal(t, []string{"user_id", "entry_id"}, indexNameFields("user_id_1_entry_id_-1"))
}

func TestValidationError_OrNil(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.OrNil())

	verr.Add("name", "Name is required")
	assert.True(t, verr.Has("name"))
	assert.False(t, verr.Has("email"))
	assert.Error(t, verr.OrNil())
}

func TestClassify_RateLimited(t *testing.T) {
	env := Classify(&RateLimitError{}, true)

	assert.Equal(t, TypeRateLimited, env.Type)
	assert.Equal(t, http.StatusTooManyRequests, env.StatusCode)
	assert.Equal(t, "Too many requests. Please slow down.", env.Message)
	assert.Empty(t, env.Stack)
}

func TestClassify_MethodNotAllowed(t *testing.T) {
	env := Classify(&MethodNotAllowedError{Method: "PATCH", Path: "/users/1"}, false)

	assert.Equal(t, TypeMethod, env.Type)
	assert.Equal(t, http.StatusMethodNotAllowed, env.StatusCode)
	assert.Equal(t, "Method PATCH is not allowed on /users/1", env.Message)
	assert.NotNil(t, env.Details)
}

func TestClassify_PanicKeepsOriginStack(t *testing.T) {
	err := &PanicError{Value: "nil map write", Stack: []byte("goroutine 7 [running]:\nhandlers.(*Entries).Create")}

	env := Classify(err, false)
	assert.Equal(t, TypeServer, env.Type)
	assert.Equal(t, "Internal server error", env.Message)
	assert.Empty(t, env.Stack)

	env = Classify(err, true)
	assert.Contains(t, env.Stack, "handlers.(*Entries).Create")
}
