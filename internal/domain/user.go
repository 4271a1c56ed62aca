package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity that can host or join meetings. Guests get a stable
// anonymous id for the lifetime of their session.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	IsGuest   bool      `json:"is_guest"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGuestUser is the anonymous fallback used when no authenticated
// identity is available.
func NewGuestUser(name string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Name:      name,
		IsGuest:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewUser(name string, email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
