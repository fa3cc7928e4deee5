package models

import (
	"time"
)

// Like is a toggle relation keyed by (ListingID, UserID): existence
// means "liked". At most one per pair.
//
// Likes live in the device-local demo store, not in the backend; they
// are not synced across sessions or devices.
type Like struct {
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is an append-only remark on a listing, displayed newest first.
// Like Likes, comments are local to the device's demo store.
type Comment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
