// Package domain contains core concepts of the chat coordinator.
// This file defines Message records and their delivery bookkeeping.
// Core fields are immutable once created; only the ledger advances
// delivery and read state.
package domain

import "time"

// Kind distinguishes room-wide messages from two-party ones.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindDirect    Kind = "direct"
)

// DeliveryStatus is the aggregate acknowledgment state of a broadcast
// message. It only ever advances: sent -> delivered -> read.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// Message is a single chat record.
//
// Broadcast messages track acknowledgments per recipient in DeliveredTo
// and ReadBy (grow-only, sender excluded). Direct messages have exactly
// one recipient, so Delivered and Read are one-way booleans.
type Message struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"type"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`

	Status      DeliveryStatus `json:"status,omitempty"`
	DeliveredTo []string       `json:"deliveredTo,omitempty"`
	ReadBy      []string       `json:"readBy,omitempty"`

	RecipientID   string `json:"recipientId,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
	Delivered     bool   `json:"delivered,omitempty"`
	Read          bool   `json:"read,omitempty"`

	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// ConversationKey identifies the two-party history for a pair of session
// ids. Both orderings of the pair resolve to the same key. Keys are only
// stable while both session ids are live: ids are connection-scoped, so a
// conversation is not retrievable across reconnects.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
