package errors

import "fmt"

// Admission errors terminate the connection attempt before a session exists.
var (
	ErrNameRequired = fmt.Errorf("username is required")
	ErrNameLength   = fmt.Errorf("username must be between 2 and 20 characters")
	ErrNameCharset  = fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	ErrNameTaken    = fmt.Errorf("username already taken")
)

// Validation errors are reported to the originating connection only.
// The connection stays active.
var (
	ErrEmptyMessage      = fmt.Errorf("message cannot be empty")
	ErrMessageTooLong    = fmt.Errorf("message is too long")
	ErrInvalidPrivate    = fmt.Errorf("invalid private message format")
	ErrRecipientNotFound = fmt.Errorf("recipient not found")
	ErrSelfMessage       = fmt.Errorf("cannot send message to yourself")
	ErrMissingMessageID  = fmt.Errorf("invalid delivery confirmation")
	ErrNotAdmitted       = fmt.Errorf("connection is not admitted")
	ErrUnknownEvent      = fmt.Errorf("unknown event")
)

var (
	ErrUnknownSession = fmt.Errorf("unknown session")
	ErrUnknownMessage = fmt.Errorf("unknown message")
	ErrSlowConsumer   = fmt.Errorf("outbound buffer full")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
