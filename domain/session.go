// Package domain contains core concepts of the chat coordinator.
// This file defines Session entities and presence rules.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Status is the presence state of a connected session.
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
)

// TypingBroadcast is the typing target used when a session composes a
// message for everyone rather than for a single peer.
const TypingBroadcast = "broadcast"

// Session is the server-side record of one connected, authenticated identity.
// The ID is connection-scoped: a reconnect yields a brand new Session.
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"username"`
	Status         Status    `json:"status"`
	ConnectedAt    time.Time `json:"connectedAt"`
	LastActivityAt time.Time `json:"-"`

	// TypingTarget is TypingBroadcast, a peer session id, or empty when
	// the session is not typing.
	TypingTarget string `json:"-"`
}

// Typing reports whether the session currently signals composing activity.
func (s Session) Typing() bool {
	return s.TypingTarget != ""
}
