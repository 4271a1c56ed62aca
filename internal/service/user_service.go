package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/repository"
	"github.com/huddlekit/huddle/lib/logger/sl"
)

type UserService struct {
	users repository.UserRepository
	log   *slog.Logger
}

func NewUserService(users repository.UserRepository, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, log: log}
}

func (s *UserService) CreateUser(ctx context.Context, name string, email string) (*domain.User, error) {
	const op = "service.user.create"
	log := s.log.With(slog.String("op", op))

	if name == "" {
		return nil, errors.New("name is required")
	}
	user := domain.NewUser(name, email)
	if err := s.users.Create(ctx, user); err != nil {
		log.Error("create user failed", sl.Err(err))
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// ResolveIdentity yields the registered user for id when one exists, and
// otherwise a guest with a fresh anonymous id. The realtime path always
// gets an identity back, even when the store is down.
func (s *UserService) ResolveIdentity(ctx context.Context, id uuid.UUID, displayName string) *domain.User {
	if id != uuid.Nil {
		user, err := s.users.GetByID(ctx, id)
		if err == nil {
			if displayName != "" && displayName != user.Name {
				user.Name = displayName
				user.UpdatedAt = time.Now().UTC()
				if err := s.users.Update(ctx, user); err != nil {
					s.log.Warn("display name refresh not persisted", sl.Err(err))
				}
			}
			return user
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn("identity lookup failed, falling back to guest", sl.Err(err))
		}
	}
	if displayName == "" {
		displayName = "Guest"
	}
	return domain.NewGuestUser(displayName)
}
