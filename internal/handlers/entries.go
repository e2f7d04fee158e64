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

// EntryRequest is the body accepted by POST /entries and PUT /entries/{id}.
//
// On update title, content and userId are replaced. tags, mood, visibility
// and scripture keep their stored values when omitted; on create they
// default to [], "neutral", "private" and "".
type EntryRequest struct {
	Title      string    `json:"title" validate:"notblank" label:"Title" example:"Reflection on Faith"`
	Content    string    `json:"content" validate:"notblank" label:"Content" example:"Today I prayed about..."`
	UserID     string    `json:"userId" validate:"notblank" label:"User ID" example:"507f1f77bcf86cd799439011"`
	Tags       *[]string `json:"tags,omitempty" label:"Tags"`
	Mood       *string   `json:"mood,omitempty" validate:"omitnil,oneof=joy peace gratitude struggle neutral" label:"Mood" enums:"joy,peace,gratitude,struggle,neutral"`
	Visibility *string   `json:"visibility,omitempty" validate:"omitnil,oneof=private public" label:"Visibility" enums:"private,public"`
	Scripture  *string   `json:"scripture,omitempty" label:"Scripture" example:"Psalm 23:1"`
}

type Entries struct {
	crud[models.Entry, EntryRequest]
}

func NewEntries(repo store.Repository[models.Entry], exister validation.Exister, errs Errors) *Entries {
	h := &Entries{}
	h.crud = crud[models.Entry, EntryRequest]{
		Errors:   errs,
		resource: "Entry",
		repo:     repo,
		exister:  exister,
		now:      time.Now,
		refs:     entryRefs,
		build:    buildEntry,
		changes:  entryChanges,
	}
	return h
}

func entryRefs(req *EntryRequest) []validation.Reference {
	return []validation.Reference{
		{Field: "userId", Collection: database.UsersCollection, ID: req.UserID, Message: "User not found"},
	}
}

// normalizeTags trims tags and drops blanks and repeats, keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func buildEntry(req *EntryRequest, now time.Time) (*models.Entry, error) {
	userID, err := validation.ParseObjectID("userId", req.UserID)
	if err != nil {
		return nil, err
	}

	entry := &models.Entry{
		CreatedAt:  now,
		UpdatedAt:  now,
		Title:      strings.TrimSpace(req.Title),
		Content:    strings.TrimSpace(req.Content),
		UserID:     userID,
		Tags:       []string{},
		Mood:       models.MoodNeutral,
		Visibility: models.VisibilityPrivate,
	}
	if req.Tags != nil {
		entry.Tags = normalizeTags(*req.Tags)
	}
	if req.Mood != nil {
		entry.Mood = *req.Mood
	}
	if req.Visibility != nil {
		entry.Visibility = *req.Visibility
	}
	if req.Scripture != nil {
		entry.Scripture = strings.TrimSpace(*req.Scripture)
	}
	return entry, nil
}

func entryChanges(req *EntryRequest, now time.Time) (bson.M, error) {
	userID, err := validation.ParseObjectID("userId", req.UserID)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"title":      strings.TrimSpace(req.Title),
		"content":    strings.TrimSpace(req.Content),
		"user_id":    userID,
		"updated_at": now,
	}
	if req.Tags != nil {
		set["tags"] = normalizeTags(*req.Tags)
	}
	if req.Mood != nil {
		set["mood"] = *req.Mood
	}
	if req.Visibility != nil {
		set["visibility"] = *req.Visibility
	}
	if req.Scripture != nil {
		set["scripture"] = strings.TrimSpace(*req.Scripture)
	}
	return set, nil
}

// List godoc
// @Summary      Retrieve all journal entries
// @Tags         Entries
// @Produce      json
// @Success      200 {object} handlers.Response{data=[]models.Entry}
// @Failure      500 {object} handlers.ErrorResponse
// @Router       /entries [get]
func (h *Entries) List(w http.ResponseWriter, r *http.Request) { h.list(w, r) }

// Get godoc
// @Summary      Retrieve an entry by id
// @Tags         Entries
// @Produce      json
// @Param        id path string true "Entry ObjectID"
// @Success      200 {object} handlers.Response{data=models.Entry}
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "EntryNotFound"
// @Router       /entries/{id} [get]
func (h *Entries) Get(w http.ResponseWriter, r *http.Request) { h.get(w, r) }

// Create godoc
// @Summary      Create a journal entry
// @Description  userId must reference an existing user.
// @Tags         Entries
// @Accept       json
// @Produce      json
// @Param        entry body handlers.EntryRequest true "Entry"
// @Success      201 {object} handlers.Response{data=models.Entry}
// @Failure      400 {object} handlers.ErrorResponse "ValidationError"
// @Router       /entries [post]
func (h *Entries) Create(w http.ResponseWriter, r *http.Request) { h.create(w, r) }

// Update godoc
// @Summary      Replace a journal entry
// @Description  title, content and userId are replaced. Omitted tags, mood, visibility and scripture keep their stored values.
// @Tags         Entries
// @Accept       json
// @Produce      json
// @Param        id    path string true "Entry ObjectID"
// @Param        entry body handlers.EntryRequest true "Entry"
// @Success      200 {object} handlers.Response{data=models.Entry}
// @Failure      400 {object} handlers.ErrorResponse
// @Failure      404 {object} handlers.ErrorResponse "EntryNotFound"
// @Router       /entries/{id} [put]
func (h *Entries) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r) }

// Delete godoc
// @Summary      Delete a journal entry
// @Description  Comments on the entry are not removed.
// @Tags         Entries
// @Produce      json
// @Param        id path string true "Entry ObjectID"
// @Success      200 {object} handlers.MessageResponse
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "EntryNotFound"
// @Router       /entries/{id} [delete]
func (h *Entries) Delete(w http.ResponseWriter, r *http.Request) { h.delete(w, r) }
