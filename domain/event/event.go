// Package event defines the outbound events the coordinator pushes to
// connected clients. Event names double as the wire event field of a frame.
package event

import (
	"chat-hub/domain"
	"time"
)

// DomainEvent is anything the coordinator can push to a client sink.
type DomainEvent interface {
	Name() string
}

// UserConnected is sent to the admitted connection only.
type UserConnected struct {
	User domain.Session `json:"user"`
}

func (UserConnected) Name() string { return "user:connected" }

// UserJoined is broadcast to everyone when a session is admitted.
type UserJoined struct {
	User      domain.Session `json:"user"`
	UserCount int            `json:"userCount"`
}

func (UserJoined) Name() string { return "user:joined" }

// UserLeft is broadcast to everyone when a session disconnects.
type UserLeft struct {
	User      domain.Session `json:"user"`
	UserCount int            `json:"userCount"`
}

func (UserLeft) Name() string { return "user:left" }

// UsersList is sent to the admitted connection with a roster snapshot.
type UsersList struct {
	Users []domain.Session `json:"users"`
}

func (UsersList) Name() string { return "users:list" }

// UserStatusChanged is broadcast on online<->away transitions.
type UserStatusChanged struct {
	User      domain.Session `json:"user"`
	OldStatus domain.Status  `json:"oldStatus"`
	NewStatus domain.Status  `json:"newStatus"`
}

func (UserStatusChanged) Name() string { return "user:status:changed" }

// UserTyping is sent to everyone but the typist, or to the single peer
// the typing is directed at.
type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserTyping) Name() string { return "user:typing" }

// UserStoppedTyping mirrors UserTyping for explicit stops and timeouts.
type UserStoppedTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserStoppedTyping) Name() string { return "user:stopped:typing" }

// MessagePosted carries a broadcast message to every connected session,
// the sender included.
type MessagePosted struct {
	domain.Message
}

func (MessagePosted) Name() string { return "message" }

// PrivateMessagePosted goes to the sender and the recipient only.
type PrivateMessagePosted struct {
	domain.Message
}

func (PrivateMessagePosted) Name() string { return "message:private" }

// MessageStatusUpdated informs the original sender of an acknowledgment
// transition. DeliveredCount and ReadCount are only meaningful for
// broadcast messages, RecipientID only for direct ones.
type MessageStatusUpdated struct {
	MessageID      string                `json:"messageId"`
	Kind           domain.Kind           `json:"type"`
	Status         domain.DeliveryStatus `json:"status"`
	DeliveredCount int                   `json:"deliveredCount,omitempty"`
	ReadCount      int                   `json:"readCount,omitempty"`
	RecipientID    string                `json:"recipientId,omitempty"`
	DeliveredAt    *time.Time            `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time            `json:"readAt,omitempty"`
}

func (MessageStatusUpdated) Name() string { return "message:status:updated" }

// ErrorReported is sent to a single connection with a human-readable
// reason. No other connection is informed.
type ErrorReported struct {
	Message string `json:"message"`
}

func (ErrorReported) Name() string { return "error" }
