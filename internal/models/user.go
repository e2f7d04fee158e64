package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`

	Name       string `bson:"name" json:"name"`
	Email      string `bson:"email" json:"email"`
	ExternalID string `bson:"external_id,omitempty" json:"externalId,omitempty"` // OAuth subject id
	ProfilePic string `bson:"profile_pic,omitempty" json:"profilePic,omitempty"`
	Password   string `bson:"password,omitempty" json:"-"` // Argon2id hash, never returned
}
