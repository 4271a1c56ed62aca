package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Meeting is the durable record behind a room code. It is an optional
// collaborator: rooms work fine for codes no meeting was ever created for.
type Meeting struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	Host      uuid.UUID  `json:"host"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func NewMeeting(title string, host uuid.UUID) *Meeting {
	return &Meeting{
		ID:        uuid.New(),
		Code:      generateCode(),
		Title:     title,
		Host:      host,
		StartedAt: time.Now().UTC(),
	}
}

func (m *Meeting) IsEnded() bool {
	if m == nil {
		return true
	}
	return m.EndedAt != nil && !m.EndedAt.IsZero()
}

// generateCode builds a shareable code like "abc-def-ghi".
func generateCode() string {
	buf := make([]byte, 9)
	_, _ = rand.Read(buf)

	var sb strings.Builder
	for i, b := range buf {
		if i > 0 && i%3 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return sb.String()
}
