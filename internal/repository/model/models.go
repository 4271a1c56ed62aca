package model

import (
	"time"

	"github.com/google/uuid"
)

type Meeting struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code      string     `gorm:"size:64;uniqueIndex;not null"`
	Title     string     `gorm:"size:255;not null"`
	Host      uuid.UUID  `gorm:"type:uuid;not null"`
	StartedAt time.Time  `gorm:"not null"`
	EndedAt   *time.Time `gorm:"index"`
	Attendees []Attendee `gorm:"constraint:OnDelete:CASCADE"`
}

type Attendee struct {
	ID            uint       `gorm:"primaryKey"`
	MeetingID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	ParticipantID string     `gorm:"size:64;index;not null"`
	JoinedAt      time.Time  `gorm:"not null"`
	LeftAt        *time.Time `gorm:"index"`
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     *string   `gorm:"size:255;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	IsGuest   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
