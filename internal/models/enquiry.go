package models

import (
	"time"

	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// ListingEnquiry is a message sent by a client to the broker who owns a
// listing. The broker is notified by email through a background task.
type ListingEnquiry struct {
	ID         utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID  utils.SixID `bson:"listing_id" json:"listing_id"`
	FromUserID utils.SixID `bson:"from_user_id" json:"from_user_id"`
	ReplyEmail string      `bson:"reply_email" json:"reply_email"`
	Message    string      `bson:"message" json:"message"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
	Sent       bool        `bson:"sent" json:"sent"` // True once the notification email went out
	Deleted    bool        `bson:"deleted" json:"-"`
}
