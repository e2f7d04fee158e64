package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"github.com/blandib/spiritual-journal-api/pkg/utils"
	"go.mongodb.org/mongo-driver/bson"
)

const maxAvatarBytes = 5 << 20

// UserRequest is the body accepted by POST /users and PUT /users/{id}.
// Optional fields left out of an update keep their stored values.
type UserRequest struct {
	Name       string  `json:"name" validate:"notblank" label:"Name" example:"John Doe"`
	Email      string  `json:"email" validate:"notblank,email" label:"Email" example:"john@example.com"`
	Password   *string `json:"password,omitempty" validate:"omitnil,min=8" label:"Password"`
	ExternalID *string `json:"externalId,omitempty" validate:"omitnil,notblank" label:"External ID"`
	ProfilePic *string `json:"profilePic,omitempty" validate:"omitempty,url" label:"Profile picture"`
}

func (req *UserRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
}

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, file io.Reader, publicID string) (string, error)
}

type Users struct {
	crud[models.User, UserRequest]
	uploader ImageUploader
}

func NewUsers(repo store.Repository[models.User], exister validation.Exister, uploader ImageUploader, errs Errors) *Users {
	h := &Users{uploader: uploader}
	h.crud = crud[models.User, UserRequest]{
		Errors:    errs,
		resource:  "User",
		repo:      repo,
		exister:   exister,
		now:       time.Now,
		normalize: (*UserRequest).normalize,
		build:     buildUser,
		changes:   userChanges,
	}
	return h
}

func buildUser(req *UserRequest, now time.Time) (*models.User, error) {
	user := &models.User{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      req.Name,
		Email:     req.Email,
	}
	if req.ExternalID != nil {
		user.ExternalID = strings.TrimSpace(*req.ExternalID)
	}
	if req.ProfilePic != nil {
		user.ProfilePic = strings.TrimSpace(*req.ProfilePic)
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}
	return user, nil
}

func userChanges(req *UserRequest, now time.Time) (bson.M, error) {
	set := bson.M{
		"name":       req.Name,
		"email":      req.Email,
		"updated_at": now,
	}
	if req.ExternalID != nil {
		set["external_id"] = strings.TrimSpace(*req.ExternalID)
	}
	if req.ProfilePic != nil {
		set["profile_pic"] = strings.TrimSpace(*req.ProfilePic)
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		set["password"] = hash
	}
	return set, nil
}

// List godoc
// @Summary      Retrieve all users
// @Tags         Users
// @Produce      json
// @Success      200 {object} handlers.Response{data=[]models.User}
// @Failure      500 {object} handlers.ErrorResponse
// @Router       /users [get]
func (h *Users) List(w http.ResponseWriter, r *http.Request) { h.list(w, r) }

// Get godoc
// @Summary      Retrieve a user by id
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ObjectID"
// @Success      200 {object} handlers.Response{data=models.User}
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "UserNotFound"
// @Router       /users/{id} [get]
func (h *Users) Get(w http.ResponseWriter, r *http.Request) { h.get(w, r) }

// Create godoc
// @Summary      Create a user
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user body handlers.UserRequest true "User"
// @Success      201 {object} handlers.Response{data=models.User}
// @Failure      400 {object} handlers.ErrorResponse "ValidationError"
// @Failure      409 {object} handlers.ErrorResponse "DuplicateKeyError"
// @Router       /users [post]
func (h *Users) Create(w http.ResponseWriter, r *http.Request) { h.create(w, r) }

// Update godoc
// @Summary      Replace a user
// @Description  name and email are always replaced; omitted optional fields keep their stored values.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        id   path string true "User ObjectID"
// @Param        user body handlers.UserRequest true "User"
// @Success      200 {object} handlers.Response{data=models.User}
// @Failure      400 {object} handlers.ErrorResponse
// @Failure      404 {object} handlers.ErrorResponse "UserNotFound"
// @Failure      409 {object} handlers.ErrorResponse "DuplicateKeyError"
// @Router       /users/{id} [put]
func (h *Users) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r) }

// Delete godoc
// @Summary      Delete a user
// @Description  Entries and comments written by the user are not removed.
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ObjectID"
// @Success      200 {object} handlers.MessageResponse
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "UserNotFound"
// @Router       /users/{id} [delete]
func (h *Users) Delete(w http.ResponseWriter, r *http.Request) { h.delete(w, r) }

// UploadAvatar godoc
// @Summary      Upload a profile picture
// @Tags         Users
// @Accept       multipart/form-data
// @Produce      json
// @Param        id   path     string true "User ObjectID"
// @Param        file formData file   true "Image"
// @Success      200 {object} handlers.Response{data=models.User}
// @Failure      400 {object} handlers.ErrorResponse
// @Failure      404 {object} handlers.ErrorResponse "UserNotFound"
// @Failure      503 {object} handlers.ErrorResponse "ServiceUnavailable"
// @Router       /users/{id}/avatar [post]
func (h *Users) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if h.uploader == nil {
		h.Fail(w, r, &apperr.UnavailableError{Service: "Image upload"})
		return
	}
	if _, err := h.repo.Get(r.Context(), id); err != nil {
		h.Fail(w, r, h.notFound(err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		h.Fail(w, r, apperr.NewValidation("file", "Image must be sent as multipart form data under 5MB"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.Fail(w, r, apperr.NewValidation("file", "Image file is required"))
		return
	}
	defer file.Close()

	url, err := h.uploader.UploadImage(r.Context(), file, id.Hex())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	updated, err := h.repo.Update(r.Context(), id, bson.M{"profile_pic": url, "updated_at": h.now().UTC()})
	if err != nil {
		h.Fail(w, r, h.notFound(err))
		return
	}
	respondData(w, http.StatusOK, updated)
}
