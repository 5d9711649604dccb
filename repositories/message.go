// Package repositories holds the in-memory stores of the coordinator.
// Nothing here survives a restart; message and conversation state is
// scoped to the lifetime of the process and of the session ids involved.
package repositories

import (
	"chat-hub/domain"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Ledger creates immutable message records and tracks their mutable
// delivery/read bookkeeping.
//
// Every recording operation is idempotent per acknowledging connection
// and monotonic: replaying the same confirmation never regresses status
// or double-counts a participant. The sender is never counted as a
// deliverer or reader of its own message.
type Ledger struct {
	mu            sync.Mutex
	messages      map[string]*domain.Message
	conversations map[string][]string
}

func NewLedger() *Ledger {
	return &Ledger{
		messages:      make(map[string]*domain.Message),
		conversations: make(map[string][]string),
	}
}

// CreateBroadcast ledgers a room-wide message with initial status "sent"
// and empty acknowledgment sets. The text is trimmed; validating that it
// is non-empty is the caller's responsibility.
func (l *Ledger) CreateBroadcast(senderID, senderName, text string) domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := &domain.Message{
		ID:         uuid.NewString(),
		Kind:       domain.KindBroadcast,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       strings.TrimSpace(text),
		CreatedAt:  time.Now(),
		Status:     domain.StatusSent,
	}
	l.messages[message.ID] = message
	return copyMessage(message)
}

// CreateDirect ledgers a two-party message and appends it to the
// conversation keyed by the unordered pair of session ids. Resolving the
// recipient is the caller's responsibility.
func (l *Ledger) CreateDirect(senderID, senderName, recipientID, recipientName, text string) domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := &domain.Message{
		ID:            uuid.NewString(),
		Kind:          domain.KindDirect,
		SenderID:      senderID,
		SenderName:    senderName,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		Text:          strings.TrimSpace(text),
		CreatedAt:     time.Now(),
		Status:        domain.StatusSent,
	}
	l.messages[message.ID] = message

	key := domain.ConversationKey(senderID, recipientID)
	l.conversations[key] = append(l.conversations[key], message.ID)
	return copyMessage(message)
}

// RecordDelivered records a delivery acknowledgment by one connection.
// For broadcast messages the connection joins DeliveredTo and the first
// ever delivery advances sent -> delivered. For direct messages the
// delivered flag flips once, regardless of which connection confirms:
// there is exactly one recipient. Sender self-acknowledgments and
// duplicates leave the record untouched. Returns false for unknown ids.
func (l *Ledger) RecordDelivered(messageID, byID string) (domain.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message, ok := l.messages[messageID]
	if !ok {
		return domain.Message{}, false
	}
	if message.SenderID == byID {
		return copyMessage(message), true
	}

	switch message.Kind {
	case domain.KindBroadcast:
		if !lo.Contains(message.DeliveredTo, byID) {
			message.DeliveredTo = append(message.DeliveredTo, byID)
			if message.Status == domain.StatusSent {
				message.Status = domain.StatusDelivered
				message.DeliveredAt = lo.ToPtr(time.Now())
			}
		}
	case domain.KindDirect:
		if !message.Delivered {
			message.Delivered = true
			if message.Status == domain.StatusSent {
				message.Status = domain.StatusDelivered
			}
			message.DeliveredAt = lo.ToPtr(time.Now())
		}
	}
	return copyMessage(message), true
}

// RecordRead mirrors RecordDelivered for the read transition. For
// broadcast messages the first reader advances the status to read even
// when no delivery was recorded before.
func (l *Ledger) RecordRead(messageID, byID string) (domain.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message, ok := l.messages[messageID]
	if !ok {
		return domain.Message{}, false
	}
	if message.SenderID == byID {
		return copyMessage(message), true
	}

	switch message.Kind {
	case domain.KindBroadcast:
		if !lo.Contains(message.ReadBy, byID) {
			message.ReadBy = append(message.ReadBy, byID)
			if message.Status != domain.StatusRead {
				message.Status = domain.StatusRead
				message.ReadAt = lo.ToPtr(time.Now())
			}
		}
	case domain.KindDirect:
		if !message.Read {
			message.Read = true
			message.Status = domain.StatusRead
			message.ReadAt = lo.ToPtr(time.Now())
		}
	}
	return copyMessage(message), true
}

func (l *Ledger) GetMessage(messageID string) (domain.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message, ok := l.messages[messageID]
	if !ok {
		return domain.Message{}, false
	}
	return copyMessage(message), true
}

// Conversation returns the two-party history for a pair of session ids
// in creation order, empty when the pair never exchanged messages.
func (l *Ledger) Conversation(idA, idB string) []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.conversations[domain.ConversationKey(idA, idB)]
	return lo.Map(ids, func(id string, _ int) domain.Message {
		return copyMessage(l.messages[id])
	})
}

// Len reports how many messages were ledgered since process start.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.messages)
}

// copyMessage clones the record so callers can never mutate ledger state
// behind the lock.
func copyMessage(m *domain.Message) domain.Message {
	c := *m
	c.DeliveredTo = append([]string(nil), m.DeliveredTo...)
	c.ReadBy = append([]string(nil), m.ReadBy...)
	return c
}
