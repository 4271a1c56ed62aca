package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/repository/model"
)

type PostgresMeetingRepository struct {
	db *gorm.DB
}

func NewPostgresMeetingRepository(db *gorm.DB) *PostgresMeetingRepository {
	return &PostgresMeetingRepository{db: db}
}

func (r *PostgresMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting == nil {
		return errors.New("meeting is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelMeeting(meeting)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrMeetingCodeExists
		}
		return err
	}
	return nil
}

func (r *PostgresMeetingRepository) GetByCode(ctx context.Context, code string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meeting model.Meeting
	err := r.db.WithContext(ctx).First(&meeting, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMeetingNotFound
		}
		return nil, err
	}

	return toDomainMeeting(&meeting), nil
}

func (r *PostgresMeetingRepository) Update(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting == nil {
		return errors.New("meeting is nil")
	}

	m := toModelMeeting(meeting)
	updates := map[string]any{
		"title": m.Title,
		"host":  m.Host,
	}
	if m.EndedAt == nil {
		updates["ended_at"] = gorm.Expr("NULL")
	} else {
		updates["ended_at"] = m.EndedAt
	}

	res := r.db.WithContext(ctx).Model(&model.Meeting{}).Where("id = ?", m.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMeetingNotFound
	}
	return nil
}

func (r *PostgresMeetingRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	var meetings []model.Meeting
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&meetings).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Meeting, 0, len(meetings))
	for i := range meetings {
		result = append(result, toDomainMeeting(&meetings[i]))
	}
	return result, nil
}

func (r *PostgresMeetingRepository) AddAttendee(ctx context.Context, meetingID uuid.UUID, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Create(&model.Attendee{
		MeetingID:     meetingID,
		ParticipantID: participantID,
		JoinedAt:      time.Now().UTC(),
	}).Error
}

func (r *PostgresMeetingRepository) MarkAttendeeLeft(ctx context.Context, meetingID uuid.UUID, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&model.Attendee{}).
		Where("meeting_id = ? AND participant_id = ? AND left_at IS NULL", meetingID, participantID).
		Update("left_at", time.Now().UTC()).Error
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(toModelUser(user))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func toModelMeeting(m *domain.Meeting) *model.Meeting {
	return &model.Meeting{
		ID:        m.ID,
		Code:      m.Code,
		Title:     m.Title,
		Host:      m.Host,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

func toDomainMeeting(m *model.Meeting) *domain.Meeting {
	return &domain.Meeting{
		ID:        m.ID,
		Code:      m.Code,
		Title:     m.Title,
		Host:      m.Host,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

func toModelUser(u *domain.User) *model.User {
	var email *string
	if u.Email != "" {
		email = &u.Email
	}
	return &model.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     email,
		IsGuest:   u.IsGuest,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toDomainUser(u *model.User) *domain.User {
	email := ""
	if u.Email != nil {
		email = *u.Email
	}
	return &domain.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     email,
		IsGuest:   u.IsGuest,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
