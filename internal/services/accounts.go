package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/models"
	"github.com/blandib/spiritual-journal-api/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// Accounts links external identities to local users.
type Accounts struct {
	users store.Repository[models.User]
	now   func() time.Time
}

func NewAccounts(users store.Repository[models.User]) *Accounts {
	return &Accounts{users: users, now: time.Now}
}

// FindOrCreate returns the user bound to profile.ExternalID. A user created
// directly with the same email is linked to the identity instead of
// duplicated. Otherwise a new user is inserted.
func (a *Accounts) FindOrCreate(ctx context.Context, profile *Profile) (*models.User, error) {
	if profile == nil || profile.ExternalID == "" {
		return nil, errors.New("profile has no external id")
	}

	user, err := a.users.FindOne(ctx, bson.M{"external_id": profile.ExternalID})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user by external id: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	now := a.now().UTC()

	if email != "" {
		existing, err := a.users.FindOne(ctx, bson.M{"email": email})
		switch {
		case err == nil:
			set := bson.M{"external_id": profile.ExternalID, "updated_at": now}
			if existing.ProfilePic == "" && profile.Picture != "" {
				set["profile_pic"] = profile.Picture
			}
			return a.users.Update(ctx, existing.ID, set)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("find user by email: %w", err)
		}
	}

	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = email
	}

	return a.users.Insert(ctx, &models.User{
		CreatedAt:  now,
		UpdatedAt:  now,
		Name:       name,
		Email:      email,
		ExternalID: profile.ExternalID,
		ProfilePic: profile.Picture,
	})
}
