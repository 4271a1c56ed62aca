package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/huddlekit/huddle/internal/domain"
)

type MeetingInteractor interface {
	CreateMeeting(ctx context.Context, title string, host uuid.UUID) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, code string) (*domain.Meeting, error)
	EndMeeting(ctx context.Context, code string, by uuid.UUID) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Meeting, error)
}

type UserInteractor interface {
	CreateUser(ctx context.Context, name string, email string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ResolveIdentity(ctx context.Context, id uuid.UUID, displayName string) *domain.User
}
