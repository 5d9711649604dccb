package runtime

import (
	"chat-hub/auth"
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/observability"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Inbound event names accepted while a connection is active.
const (
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventMessage          = "message"
	EventPrivateMessage   = "message:private"
	EventDelivered        = "message:delivered"
	EventRead             = "message:read"
	EventPrivateDelivered = "message:private:delivered"
	EventPrivateRead      = "message:private:read"
)

// Inbound is one decoded application event from a connection.
type Inbound struct {
	Name        string
	Text        string
	RecipientID string
	MessageID   string
}

// ConnState is the per-connection protocol state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateActive
	StateClosed
)

// Router is the per-connection protocol handler. It validates inbound
// events, delegates to the registry and the ledger, and decides which
// connections receive which outbound events. It owns no persistent state
// of its own beyond the connection state machine.
type Router struct {
	mu       sync.Mutex
	states   map[string]ConnState
	log      *slog.Logger
	gate     auth.Gate
	registry contract.IRegistry
	ledger   contract.ILedger
	monitor  *observability.Monitor
	maxLen   int
}

func NewRouter(log *slog.Logger, gate auth.Gate, registry contract.IRegistry,
	ledger contract.ILedger, monitor *observability.Monitor, maxMessageLength int) *Router {
	return &Router{
		states:   make(map[string]ConnState),
		log:      log,
		gate:     gate,
		registry: registry,
		ledger:   ledger,
		monitor:  monitor,
		maxLen:   maxMessageLength,
	}
}

// Connect drives Connecting -> Active: gate acceptance, then the
// registry's atomic admission. On rejection the caller must notify and
// close the connection; no session exists. On success the new connection
// receives its own session and the roster, and everyone learns about the
// join.
func (r *Router) Connect(id, claimedName string, sink contract.EventSink) (domain.Session, error) {
	r.setState(id, StateConnecting)

	name, err := r.gate.Admit(claimedName, r.registry.Names())
	if err != nil {
		r.close(id)
		r.monitor.ErrorReported()
		return domain.Session{}, err
	}

	session, err := r.registry.AddSession(id, name, sink)
	if err != nil {
		r.close(id)
		r.monitor.ErrorReported()
		return domain.Session{}, err
	}

	r.setState(id, StateActive)
	r.monitor.ConnectionOpened()
	r.log.Info("User connected", "username", session.Name, "id", session.ID)

	r.emitTo(session.ID, event.UserConnected{User: session})
	r.broadcast(event.UserJoined{User: session, UserCount: r.registry.Count()})
	r.emitTo(session.ID, event.UsersList{Users: r.registry.ListSessions()})
	return session, nil
}

// Disconnect drives Active -> Closed for clean and abrupt transport
// disconnects alike. Idempotent.
func (r *Router) Disconnect(id string) {
	r.close(id)

	session, ok := r.registry.RemoveSession(id)
	if !ok {
		return
	}
	r.monitor.ConnectionClosed()
	r.log.Info("User disconnected", "username", session.Name, "id", session.ID)
	r.broadcast(event.UserLeft{User: session, UserCount: r.registry.Count()})
}

// HandleEvent dispatches one inbound event for an active connection.
// Validation failures are reported back to the originating connection as
// an error event and returned; the connection stays active. Events from
// connections that never reached Active are rejected.
func (r *Router) HandleEvent(id string, in Inbound) error {
	if r.state(id) != StateActive {
		return errors.ErrNotAdmitted
	}

	var err error
	switch in.Name {
	case EventTypingStart:
		err = r.handleTypingStart(id, in.RecipientID)
	case EventTypingStop:
		err = r.handleTypingStop(id)
	case EventMessage:
		err = r.handleMessage(id, in.Text)
	case EventPrivateMessage:
		err = r.handlePrivateMessage(id, in.RecipientID, in.Text)
	case EventDelivered, EventPrivateDelivered:
		err = r.handleDelivered(id, in.MessageID)
	case EventRead, EventPrivateRead:
		err = r.handleRead(id, in.MessageID)
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownEvent, in.Name)
	}

	if err != nil {
		r.reportError(id, err)
	}
	return err
}

// NotifyAway broadcasts an online -> away transition. Called by the
// inactivity sweep worker, which detects the flips but owns no sinks.
func (r *Router) NotifyAway(session domain.Session) {
	r.log.Info("User is now away (inactive)", "username", session.Name)
	r.broadcast(event.UserStatusChanged{
		User:      session,
		OldStatus: domain.StatusOnline,
		NewStatus: domain.StatusAway,
	})
}

func (r *Router) handleTypingStart(id, recipientID string) error {
	target := domain.TypingBroadcast
	if recipientID != "" {
		target = recipientID
	}

	session, ok := r.registry.SetTyping(id, target)
	if !ok {
		return nil
	}
	r.log.Debug("User started typing", "username", session.Name)
	r.notifyTyping(session, target, event.UserTyping{UserID: session.ID, Username: session.Name})

	r.registry.ScheduleTypingStop(id, func() {
		stale, cleared := r.registry.ClearTyping(id)
		if !cleared {
			return
		}
		r.log.Debug("User auto-stopped typing (timeout)", "username", stale.Name)
		r.notifyTyping(stale, stale.TypingTarget,
			event.UserStoppedTyping{UserID: stale.ID, Username: stale.Name})
	})
	return nil
}

func (r *Router) handleTypingStop(id string) error {
	session, cleared := r.registry.ClearTyping(id)
	if !cleared {
		return nil
	}
	r.log.Debug("User stopped typing", "username", session.Name)
	r.notifyTyping(session, session.TypingTarget,
		event.UserStoppedTyping{UserID: session.ID, Username: session.Name})
	return nil
}

func (r *Router) handleMessage(id, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.ErrEmptyMessage
	}
	if r.maxLen > 0 && len(trimmed) > r.maxLen {
		return errors.ErrMessageTooLong
	}

	if session, cleared := r.registry.ClearTyping(id); cleared {
		r.notifyTyping(session, session.TypingTarget,
			event.UserStoppedTyping{UserID: session.ID, Username: session.Name})
	}

	session, ok := r.recordActivity(id)
	if !ok {
		return nil
	}

	message := r.ledger.CreateBroadcast(session.ID, session.Name, trimmed)
	r.monitor.MessageLedgered()
	r.broadcast(event.MessagePosted{Message: message})
	r.log.Info("Message ledgered", "username", session.Name, "messageId", message.ID)
	return nil
}

func (r *Router) handlePrivateMessage(id, recipientID, text string) error {
	trimmed := strings.TrimSpace(text)
	if recipientID == "" || trimmed == "" {
		return errors.ErrInvalidPrivate
	}
	if r.maxLen > 0 && len(trimmed) > r.maxLen {
		return errors.ErrMessageTooLong
	}

	recipient, ok := r.registry.GetSession(recipientID)
	if !ok {
		return errors.ErrRecipientNotFound
	}
	if recipientID == id {
		return errors.ErrSelfMessage
	}

	sender, ok := r.recordActivity(id)
	if !ok {
		return nil
	}

	message := r.ledger.CreateDirect(sender.ID, sender.Name, recipient.ID, recipient.Name, trimmed)
	r.monitor.MessageLedgered()
	r.emitTo(recipient.ID, event.PrivateMessagePosted{Message: message})
	r.emitTo(sender.ID, event.PrivateMessagePosted{Message: message})
	r.log.Info("Private message ledgered",
		"from", sender.Name, "to", recipient.Name, "messageId", message.ID)
	return nil
}

func (r *Router) handleDelivered(id, messageID string) error {
	if messageID == "" {
		return errors.ErrMissingMessageID
	}

	// A confirmation for a message that no longer exists, or a sender
	// confirming its own message, is nothing to do rather than a failure.
	message, ok := r.ledger.RecordDelivered(messageID, id)
	if !ok || message.SenderID == id {
		return nil
	}
	r.log.Debug("Delivery recorded", "messageId", message.ID, "by", id)
	r.emitTo(message.SenderID, statusUpdate(message))
	return nil
}

func (r *Router) handleRead(id, messageID string) error {
	if messageID == "" {
		return errors.ErrMissingMessageID
	}

	message, ok := r.ledger.RecordRead(messageID, id)
	if !ok || message.SenderID == id {
		return nil
	}
	r.log.Debug("Read recorded", "messageId", message.ID, "by", id)
	r.emitTo(message.SenderID, statusUpdate(message))
	return nil
}

// recordActivity stamps activity and broadcasts the away -> online flip
// when one happened.
func (r *Router) recordActivity(id string) (domain.Session, bool) {
	session, statusChanged, ok := r.registry.RecordActivity(id)
	if ok && statusChanged {
		r.log.Info("User is back online", "username", session.Name)
		r.broadcast(event.UserStatusChanged{
			User:      session,
			OldStatus: domain.StatusAway,
			NewStatus: domain.StatusOnline,
		})
	}
	return session, ok
}

// notifyTyping routes a typing notification: broadcast targets reach
// everyone except the typist, peer targets reach that peer only.
func (r *Router) notifyTyping(typist domain.Session, target string, e event.DomainEvent) {
	if target == domain.TypingBroadcast {
		r.broadcastExcept(typist.ID, e)
		return
	}
	r.emitTo(target, e)
}

func statusUpdate(m domain.Message) event.MessageStatusUpdated {
	return event.MessageStatusUpdated{
		MessageID:      m.ID,
		Kind:           m.Kind,
		Status:         m.Status,
		DeliveredCount: len(m.DeliveredTo),
		ReadCount:      len(m.ReadBy),
		RecipientID:    m.RecipientID,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
}

// broadcast fans an event out to a snapshot of the current sessions.
// A session removed mid-fan-out is skipped by construction.
func (r *Router) broadcast(e event.DomainEvent) {
	for _, endpoint := range r.registry.Snapshot() {
		r.consume(endpoint, e)
	}
}

func (r *Router) broadcastExcept(exceptID string, e event.DomainEvent) {
	for _, endpoint := range r.registry.Snapshot() {
		if endpoint.Session.ID == exceptID {
			continue
		}
		r.consume(endpoint, e)
	}
}

func (r *Router) emitTo(id string, e event.DomainEvent) {
	sink, ok := r.registry.SinkFor(id)
	if !ok {
		return
	}
	if err := sink.Consume(e); err != nil {
		r.log.Warn("Outbound event lost", "id", id, "event", e.Name(), "error", err)
	}
}

func (r *Router) consume(endpoint contract.Endpoint, e event.DomainEvent) {
	if err := endpoint.Sink.Consume(e); err != nil {
		r.log.Warn("Outbound event lost",
			"username", endpoint.Session.Name, "event", e.Name(), "error", err)
	}
}

// reportError surfaces a validation failure to the originating
// connection only.
func (r *Router) reportError(id string, err error) {
	r.monitor.ErrorReported()
	r.emitTo(id, event.ErrorReported{Message: err.Error()})
}

func (r *Router) state(id string) ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[id]
	if !ok {
		return StateClosed
	}
	return state
}

func (r *Router) setState(id string, state ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = state
}

// close marks the terminal state and forgets the connection so the state
// map does not grow with connection churn.
func (r *Router) close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
}
