package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// NormalizeRole maps legacy role spellings onto the canonical set. Unknown
// values default to citizen.
func NormalizeRole(s string) Role {
	switch s {
	case "officer", "government_officer":
		return RoleOfficer
	case "admin":
		return RoleAdmin
	default:
		return RoleCitizen
	}
}

// UserLocation is a user's stored location. Region takes priority over
// coordinates for the officer dashboard.
type UserLocation struct {
	Type        string    `bson:"type,omitempty" json:"type,omitempty"`
	Coordinates []float64 `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Region      string    `bson:"region,omitempty" json:"region,omitempty"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password,omitempty" json:"-"`
	Role      Role               `bson:"role" json:"role"`
	Location  *UserLocation      `bson:"location,omitempty" json:"location,omitempty"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsOfficer reports whether the user may update issue statuses and access the
// officer dashboard.
func (u *User) IsOfficer() bool {
	return u.Role == RoleOfficer || u.Role == RoleAdmin
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}
