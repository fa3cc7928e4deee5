package models

import (
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

// Role governs which dashboard and permissions a user receives.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBroker Role = "broker"
	RoleClient Role = "client"
)

// IsValid reports whether r is one of the three recognised roles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleBroker || r == RoleClient
}

// NormalizeRole coerces an arbitrary stored value to a valid role,
// defaulting to client for anything unrecognised.
func NormalizeRole(v string) Role {
	r := Role(v)
	if r.IsValid() {
		return r
	}
	return RoleClient
}

// Profile is the mutable role-and-contact record associated one-to-one
// with a User. Its ID equals the User's ID. Absence of a profile implies
// the default role, client.
type Profile struct {
	ID          utils.SixID `bson:"_id" json:"id"`
	Role        Role        `bson:"role" json:"role"`
	DisplayName string      `bson:"display_name" json:"display_name"`
	Whatsapp    string      `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Phone       string      `bson:"phone,omitempty" json:"phone,omitempty"`
	City        string      `bson:"city,omitempty" json:"city,omitempty"`
	AvatarURL   string      `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}
