package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/huddlekit/huddle/internal/domain"
)

type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	GetByCode(ctx context.Context, code string) (*domain.Meeting, error)
	Update(ctx context.Context, meeting *domain.Meeting) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Meeting, error)
	AddAttendee(ctx context.Context, meetingID uuid.UUID, participantID string) error
	MarkAttendeeLeft(ctx context.Context, meetingID uuid.UUID, participantID string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}
