package models

import (
	"time"
)

// User is an authenticated identity. It carries no role or contact
// information of its own: that lives in the one-to-one Profile record,
// which is joined on demand.
type User struct {
	Base         `bson:",inline"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password" json:"-"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	LastSignInAt *time.Time `bson:"last_sign_in_at,omitempty" json:"last_sign_in_at,omitempty"`
	Deleted      bool       `bson:"deleted" json:"-"` // Soft delete flag
}
