package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrMeetingEnded        = errors.New("meeting already ended")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserEmailExists     = errors.New("user with email already exists")
)
