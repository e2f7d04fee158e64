package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`

	EntryID primitive.ObjectID `bson:"entry_id" json:"entryId"`
	UserID  primitive.ObjectID `bson:"user_id" json:"userId"`
	Text    string             `bson:"text" json:"text"`
}
