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

var ErrNotHost = errors.New("only the host can end the meeting")

const (
	recordTimeout = 5 * time.Second

	// codeAttempts bounds retries on room-code collisions. With a 26^9
	// code space more than one collision in a row already means the
	// store is misbehaving, not unlucky.
	codeAttempts = 5
)

// MeetingService keeps the durable meeting records behind room codes. It
// is deliberately decoupled from the realtime path: every failure here is
// an inconvenience, never an outage.
type MeetingService struct {
	meetings repository.MeetingRepository
	log      *slog.Logger
}

func NewMeetingService(meetings repository.MeetingRepository, log *slog.Logger) *MeetingService {
	if log == nil {
		log = slog.Default()
	}
	return &MeetingService{meetings: meetings, log: log}
}

func (s *MeetingService) CreateMeeting(ctx context.Context, title string, host uuid.UUID) (*domain.Meeting, error) {
	const op = "service.meeting.create"
	log := s.log.With(slog.String("op", op))

	if title == "" {
		title = "Untitled meeting"
	}
	if host == uuid.Nil {
		return nil, errors.New("host is required")
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		meeting := domain.NewMeeting(title, host)
		if err := s.meetings.Create(ctx, meeting); err != nil {
			if errors.Is(err, repository.ErrMeetingCodeExists) {
				continue
			}
			return nil, err
		}
		log.Info("meeting created",
			slog.String("meeting_id", meeting.ID.String()),
			slog.String("code", meeting.Code),
		)
		return meeting, nil
	}
	return nil, errors.New("could not allocate a unique meeting code")
}

func (s *MeetingService) GetMeeting(ctx context.Context, code string) (*domain.Meeting, error) {
	meeting, err := s.meetings.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if meeting.IsEnded() {
		return meeting, domain.ErrMeetingEnded
	}
	return meeting, nil
}

func (s *MeetingService) EndMeeting(ctx context.Context, code string, by uuid.UUID) error {
	const op = "service.meeting.end"
	log := s.log.With(slog.String("op", op), slog.String("code", code))

	meeting, err := s.meetings.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if meeting.Host != by {
		return ErrNotHost
	}
	if meeting.IsEnded() {
		return nil
	}

	now := time.Now().UTC()
	meeting.EndedAt = &now
	if err := s.meetings.Update(ctx, meeting); err != nil {
		return err
	}
	log.Info("meeting ended")
	return nil
}

func (s *MeetingService) ListRecent(ctx context.Context, limit int) ([]*domain.Meeting, error) {
	return s.meetings.ListRecent(ctx, limit)
}

// RecordJoin and RecordLeave implement the gateway's recorder hook. Both
// are best-effort: an unknown code means an anonymous room with no meeting
// behind it, and store failures only cost history.
func (s *MeetingService) RecordJoin(roomCode, participantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	meeting, err := s.meetings.GetByCode(ctx, roomCode)
	if err != nil {
		if !errors.Is(err, domain.ErrMeetingNotFound) {
			s.log.Warn("record join failed", slog.String("code", roomCode), sl.Err(err))
		}
		return
	}
	if err := s.meetings.AddAttendee(ctx, meeting.ID, participantID); err != nil {
		s.log.Warn("record join failed", slog.String("code", roomCode), sl.Err(err))
	}
}

func (s *MeetingService) RecordLeave(roomCode, participantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	meeting, err := s.meetings.GetByCode(ctx, roomCode)
	if err != nil {
		return
	}
	if err := s.meetings.MarkAttendeeLeft(ctx, meeting.ID, participantID); err != nil {
		s.log.Warn("record leave failed", slog.String("code", roomCode), sl.Err(err))
	}
}
