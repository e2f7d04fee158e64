package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"github.com/blandib/spiritual-journal-api/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
)

// crud implements the five uniform operations for one resource. T is the
// stored document and R the request payload accepted by create and update.
type crud[T any, R any] struct {
	Errors

	resource string // singular name used in not-found errors
	repo     store.Repository[T]
	exister  validation.Exister
	now      func() time.Time

	// normalize, when set, cleans the decoded request before it is validated.
	normalize func(req *R)
	// refs lists body identifiers that must resolve before a write.
	refs func(req *R) []validation.Reference
	// build turns a validated request into a new document.
	build func(req *R, now time.Time) (*T, error)
	// changes turns a validated request into the $set applied on update.
	changes func(req *R, now time.Time) (bson.M, error)
}

func (c *crud[T, R]) notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(c.resource)
	}
	return err
}

func (c *crud[T, R]) validate(ctx context.Context, req *R) error {
	if c.normalize != nil {
		c.normalize(req)
	}
	var refs []validation.Reference
	if c.refs != nil {
		refs = c.refs(req)
	}
	return validation.Check(ctx, c.exister, req, refs...)
}

func (c *crud[T, R]) list(w http.ResponseWriter, r *http.Request) {
	docs, err := c.repo.List(r.Context())
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	respondData(w, http.StatusOK, docs)
}

func (c *crud[T, R]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	doc, err := c.repo.Get(r.Context(), id)
	if err != nil {
		c.Fail(w, r, c.notFound(err))
		return
	}
	respondData(w, http.StatusOK, doc)
}

func (c *crud[T, R]) create(w http.ResponseWriter, r *http.Request) {
	var req R
	if err := decodeBody(w, r, &req); err != nil {
		c.Fail(w, r, err)
		return
	}
	if err := c.validate(r.Context(), &req); err != nil {
		c.Fail(w, r, err)
		return
	}

	doc, err := c.build(&req, c.now().UTC())
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	created, err := c.repo.Insert(r.Context(), doc)
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

func (c *crud[T, R]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.Fail(w, r, err)
		return
	}

	var req R
	if err := decodeBody(w, r, &req); err != nil {
		c.Fail(w, r, err)
		return
	}
	if err := c.validate(r.Context(), &req); err != nil {
		c.Fail(w, r, err)
		return
	}

	set, err := c.changes(&req, c.now().UTC())
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	updated, err := c.repo.Update(r.Context(), id, set)
	if err != nil {
		c.Fail(w, r, c.notFound(err))
		return
	}
	respondData(w, http.StatusOK, updated)
}

func (c *crud[T, R]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.Fail(w, r, err)
		return
	}
	if err := c.repo.Delete(r.Context(), id); err != nil {
		c.Fail(w, r, c.notFound(err))
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: c.resource + " deleted"})
}
