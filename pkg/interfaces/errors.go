package interfaces

import "errors"

// Common errors shared across components
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrBusClosed       = errors.New("bus is closed")
)
