package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
)

// CategoryRequest is the body accepted by POST /categories and PUT /categories/{id}.
// An omitted description keeps its stored value on update.
type CategoryRequest struct {
	Name        string  `json:"name" validate:"notblank,max=100" label:"Name" example:"Gratitude"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=500" label:"Description" example:"Entries about thankfulness"`
}

type Categories struct {
	crud[models.Category, CategoryRequest]
}

func NewCategories(repo store.Repository[models.Category], exister validation.Exister, errs Errors) *Categories {
	h := &Categories{}
	h.crud = crud[models.Category, CategoryRequest]{
		Errors:   errs,
		resource: "Category",
		repo:     repo,
		exister:  exister,
		now:      time.Now,
		build:    buildCategory,
		changes:  categoryChanges,
	}
	return h
}

func buildCategory(req *CategoryRequest, now time.Time) (*models.Category, error) {
	c := &models.Category{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      strings.TrimSpace(req.Name),
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	return c, nil
}

func categoryChanges(req *CategoryRequest, now time.Time) (bson.M, error) {
	set := bson.M{"name": strings.TrimSpace(req.Name), "updated_at": now}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	return set, nil
}

// List godoc
// @Summary      Retrieve all categories
// @Tags         Categories
// @Produce      json
// @Success      200 {object} handlers.Response{data=[]models.Category}
// @Failure      500 {object} handlers.ErrorResponse
// @Router       /categories [get]
func (h *Categories) List(w http.ResponseWriter, r *http.Request) { h.list(w, r) }

// Get godoc
// @Summary      Retrieve a category by id
// @Tags         Categories
// @Produce      json
// @Param        id path string true "Category ObjectID"
// @Success      200 {object} handlers.Response{data=models.Category}
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "CategoryNotFound"
// @Router       /categories/{id} [get]
func (h *Categories) Get(w http.ResponseWriter, r *http.Request) { h.get(w, r) }

// Create godoc
// @Summary      Create a category
// @Tags         Categories
// @Accept       json
// @Produce      json
// @Param        category body handlers.CategoryRequest true "Category"
// @Success      201 {object} handlers.Response{data=models.Category}
// @Failure      400 {object} handlers.ErrorResponse "ValidationError"
// @Router       /categories [post]
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) { h.create(w, r) }

// Update godoc
// @Summary      Replace a category
// @Tags         Categories
// @Accept       json
// @Produce      json
// @Param        id       path string true "Category ObjectID"
// @Param        category body handlers.CategoryRequest true "Category"
// @Success      200 {object} handlers.Response{data=models.Category}
// @Failure      400 {object} handlers.ErrorResponse
// @Failure      404 {object} handlers.ErrorResponse "CategoryNotFound"
// @Router       /categories/{id} [put]
func (h *Categories) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r) }

// Delete godoc
// @Summary      Delete a category
// @Tags         Categories
// @Produce      json
// @Param        id path string true "Category ObjectID"
// @Success      200 {object} handlers.MessageResponse
// @Failure      400 {object} handlers.ErrorResponse "InvalidIdError"
// @Failure      404 {object} handlers.ErrorResponse "CategoryNotFound"
// @Router       /categories/{id} [delete]
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) { h.delete(w, r) }
