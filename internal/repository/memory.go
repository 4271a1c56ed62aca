package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huddlekit/huddle/internal/domain"
)

var ErrMeetingCodeExists = errors.New("meeting code already exists")

type attendance struct {
	participantID string
	joinedAt      time.Time
	leftAt        *time.Time
}

type InMemoryMeetingRepository struct {
	mu        sync.RWMutex
	meetings  map[uuid.UUID]*domain.Meeting
	codes     map[string]uuid.UUID
	attendees map[uuid.UUID][]*attendance
}

func NewInMemoryMeetingRepository() *InMemoryMeetingRepository {
	return &InMemoryMeetingRepository{
		meetings:  make(map[uuid.UUID]*domain.Meeting),
		codes:     make(map[string]uuid.UUID),
		attendees: make(map[uuid.UUID][]*attendance),
	}
}

func (r *InMemoryMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[meeting.Code]; ok {
		return ErrMeetingCodeExists
	}

	r.meetings[meeting.ID] = meeting
	r.codes[meeting.Code] = meeting.ID
	return nil
}

func (r *InMemoryMeetingRepository) GetByCode(ctx context.Context, code string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}

	meeting, ok := r.meetings[id]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}

	return meeting, nil
}

func (r *InMemoryMeetingRepository) Update(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meetings[meeting.ID]; !ok {
		return domain.ErrMeetingNotFound
	}

	r.meetings[meeting.ID] = meeting
	r.codes[meeting.Code] = meeting.ID
	return nil
}

func (r *InMemoryMeetingRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Meeting, 0, len(r.meetings))
	for _, meeting := range r.meetings {
		result = append(result, meeting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *InMemoryMeetingRepository) AddAttendee(ctx context.Context, meetingID uuid.UUID, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meetings[meetingID]; !ok {
		return domain.ErrMeetingNotFound
	}

	r.attendees[meetingID] = append(r.attendees[meetingID], &attendance{
		participantID: participantID,
		joinedAt:      time.Now().UTC(),
	})
	return nil
}

func (r *InMemoryMeetingRepository) MarkAttendeeLeft(ctx context.Context, meetingID uuid.UUID, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.attendees[meetingID]) - 1; i >= 0; i-- {
		a := r.attendees[meetingID][i]
		if a.participantID == participantID && a.leftAt == nil {
			now := time.Now().UTC()
			a.leftAt = &now
			return nil
		}
	}
	return nil
}

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*domain.User
	emails map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]*domain.User),
		emails: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return domain.ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	r.users[user.ID] = user
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return user, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}

	r.users[user.ID] = user
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}
	return nil
}
