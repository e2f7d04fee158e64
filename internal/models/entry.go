package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MoodJoy       = "joy"
	MoodPeace     = "peace"
	MoodGratitude = "gratitude"
	MoodStruggle  = "struggle"
	MoodNeutral   = "neutral"

	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Moods lists the accepted Entry.Mood values.
var Moods = []string{MoodJoy, MoodPeace, MoodGratitude, MoodStruggle, MoodNeutral}

// Visibilities lists the accepted Entry.Visibility values.
var Visibilities = []string{VisibilityPrivate, VisibilityPublic}

// Entry is a journal entry owned by a user.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`

	Title      string             `bson:"title" json:"title"`
	Content    string             `bson:"content" json:"content"`
	UserID     primitive.ObjectID `bson:"user_id" json:"userId"`
	Tags       []string           `bson:"tags" json:"tags"`
	Mood       string             `bson:"mood" json:"mood"`
	Scripture  string             `bson:"scripture,omitempty" json:"scripture,omitempty"`
	Visibility string             `bson:"visibility" json:"visibility"`
}
