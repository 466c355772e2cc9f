package session

import "errors"

// Session errors
var (
	// ErrClosed indicates that the session was closed and accepts no more operations
	ErrClosed = errors.New("session is closed")
)
