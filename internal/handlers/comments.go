package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/database"
	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
)

// CommentRequest is the body accepted by POST /comments and PUT /comments/{id}.
type CommentRequest struct {
	EntryID string `json:"entryId" validate:"notblank" label:"Entry ID" example:"507f1f77bcf86cd799439012"`
	UserID  string `json:"userId" validate:"notblank" label:"User ID" example:"507f1f77bcf86cd799439011"`
	Text    string `json:"text" validate:"notblank" label:"Text" example:"Beautiful reflection."`
}

type Comments struct {
	crud[models.Comment, CommentRequest]
}

func NewComments(repo store.Repository[models.Comment], exister validation.Exister, errs Errors) *Comments {
	h := &Comments{}
	h.crud = crud[models.Comment, CommentRequest]{
		Errors:   errs,
		resource: "Comment",
		repo:     repo,
		exister:  exister,
		now:      time.Now,
		refs:     commentRefs,
		build:    buildComment,
		changes:  commentChanges,
	}
	return h
}

func commentRefs(req *CommentRequest) []validation.Reference {
	return []validation.Reference{
		{Field: "entryId", Collection: database.EntriesCollection, ID: req.EntryID, Message: "Entry not found"},
		{Field: "userId", Collection: database.UsersCollection, ID: req.UserID, Message: "User not found"},
	}
}

func buildComment(req *CommentRequest, now time.Time) (*models.Comment, error) {
	entryID, err := validation.ParseObjectID("entryId", req.EntryID)
	if err != nil {
		return nil, err
	}
	userID, err := validation.ParseObjectID("userId", req.UserID)
	if err != nil {
		return nil, err
	}
	return &models.Comment{
		CreatedAt: now,
		UpdatedAt: now,
		EntryID:   entryID,
		UserID:    userID,
		Text:      strings.TrimSpace(req.Text),
	}, nil
}

func commentChanges(req *CommentRequest, now time.Time) (bson.M, error) {
	c, err := buildComment(req, now)
	if err != nil {
		return nil, err
	}
	return bson.M{
		"entry_id":   c.EntryID,
		"user_id":    c.UserID,
		"text":       c.Text,
		"updated_at": now,
	}, nil
}

// List godoc
// @Summary      Retrieve all comments
// @Tags         Comments
// @Produce      json
// @Success      200 {object} handlers.Response{data=[]models.Comment}
// @Failure      500 {object} handlers.ErrorResponse
// @Router       /comments [get]
func (h *Comments) List(w http.ResponseWriter, r *http.Request) { h.list(w, r) }

// Get godoc
// @Summary      Retrieve a comment by id
// @Tags         Comments
// @Produce      json
// @Param        id path string true "Comment ObjectID"
// @Success      200 {object} handlers.Response{data=models.Comment}
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "CommentNotFound"
// @Router       /comments/{id} [get]
func (h *Comments) Get(w http.ResponseWriter, r *http.Request) { h.get(w, r) }

// Create godoc
// @Summary      Comment on an entry
// @Description  entryId and userId must reference existing documents.
// @Tags         Comments
// @Accept       json
// @Produce      json
// @Param        comment body handlers.CommentRequest true "Comment"
// @Success      201 {object} handlers.Response{data=models.Comment}
// @Failure      400 {object} handlers.ErrorResponse "ValidationError"
// @Router       /comments [post]
func (h *Comments) Create(w http.ResponseWriter, r *http.Request) { h.create(w, r) }

// Update godoc
// @Summary      Replace a comment
// @Tags         Comments
// @Accept       json
// @Produce      json
// @Param        id      path string true "Comment ObjectID"
// @Param        comment body handlers.CommentRequest true "Comment"
// @Success      200 {object} handlers.Response{data=models.Comment}
// @Failure      400 {object} handlers.ErrorResponse
// @Failure      404 {object} handlers.ErrorResponse "CommentNotFound"
// @Router       /comments/{id} [put]
func (h *Comments) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r) }

// Delete godoc
// @Summary      Delete a comment
// @Tags         Comments
// @Produce      json
// @Param        id path string true "Comment ObjectID"
// @Success      200 {object} handlers.MessageResponse
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "CommentNotFound"
// @Router       /comments/{id} [delete]
func (h *Comments) Delete(w http.ResponseWriter, r *http.Request) { h.delete(w, r) }
