package models

import (
	"time"

	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// ListingType is the kind of rental property advertised.
type ListingType string

const (
	ListingTypeRoom      ListingType = "room"
	ListingTypeStudio    ListingType = "studio"
	ListingTypeApartment ListingType = "apartment"
	ListingTypeHouse     ListingType = "house"
)

// IsValid reports whether t is one of the four recognised listing types.
func (t ListingType) IsValid() bool {
	switch t {
	case ListingTypeRoom, ListingTypeStudio, ListingTypeApartment, ListingTypeHouse:
		return true
	}
	return false
}

// MaxListingPhotos caps the number of photo references per listing.
const MaxListingPhotos = 5

// Listing is a rental property advertisement published by a broker.
// Prices are in XOF, which has no minor unit, so PriceXOF is an integer.
// Latitude and Longitude are optional but must be present together.
type Listing struct {
	ID           utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerUserID  utils.SixID `bson:"owner_user_id" json:"owner_user_id"`
	Title        string      `bson:"title" json:"title"`
	Type         ListingType `bson:"type" json:"type"`
	PriceXOF     int64       `bson:"price_xof" json:"price_xof"`
	Description  string      `bson:"description" json:"description"`
	City         string      `bson:"city" json:"city"`
	Neighborhood string      `bson:"neighborhood" json:"neighborhood"`
	Latitude     *float64    `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude    *float64    `bson:"longitude,omitempty" json:"longitude,omitempty"`
	PhotoURLs    []string    `bson:"photo_data_urls" json:"photo_data_urls"`
	CreatedAt    time.Time   `bson:"created_at" json:"created_at"`
	Deleted      bool        `bson:"deleted" json:"-"` // Soft delete flag
}
