package converter

import (
	"time"

	"github.com/google/uuid"

	"github.com/huddlekit/huddle/internal/domain"
)

type MeetingResponse struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	Host      uuid.UUID  `json:"host"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsEnded   bool       `json:"is_ended"`
}

func MeetingToApi(m *domain.Meeting) *MeetingResponse {
	return &MeetingResponse{
		ID:        m.ID,
		Code:      m.Code,
		Title:     m.Title,
		Host:      m.Host,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
		IsEnded:   m.IsEnded(),
	}
}
