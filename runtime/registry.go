// Package runtime coordinates session state and event routing.
// It contains no transport or UI logic.
package runtime

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Registry is the source of truth for connected identities: presence,
// activity, typing state and the per-session typing timer slot.
//
// Every compound operation is a single critical section. In particular
// AddSession is the only authoritative place display-name uniqueness is
// enforced: the check and the insert happen under one lock.
type Registry struct {
	mu            sync.RWMutex
	log           *slog.Logger
	sessions      map[string]*domain.Session
	names         map[string]struct{}
	sinks         map[string]contract.EventSink
	typingTimers  map[string]*time.Timer
	order         []string
	awayThreshold time.Duration
	typingTimeout time.Duration
}

func NewRegistry(log *slog.Logger, awayThreshold, typingTimeout time.Duration) *Registry {
	return &Registry{
		log:           log,
		sessions:      make(map[string]*domain.Session),
		names:         make(map[string]struct{}),
		sinks:         make(map[string]contract.EventSink),
		typingTimers:  make(map[string]*time.Timer),
		awayThreshold: awayThreshold,
		typingTimeout: typingTimeout,
	}
}

// AddSession atomically checks the live name set and inserts the session.
// The sink is bound to the session for the connection's lifetime.
func (r *Registry) AddSession(id, name string, sink contract.EventSink) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return domain.Session{}, errors.ErrNameTaken
	}

	now := time.Now()
	session := &domain.Session{
		ID:             id,
		Name:           name,
		Status:         domain.StatusOnline,
		ConnectedAt:    now,
		LastActivityAt: now,
	}

	r.sessions[id] = session
	r.names[name] = struct{}{}
	r.sinks[id] = sink
	r.order = append(r.order, id)

	return *session, nil
}

// RemoveSession removes the session, frees its display name for immediate
// reuse and cancels any pending typing timer. Idempotent: removing an
// unknown id is a no-op.
func (r *Registry) RemoveSession(id string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}

	r.cancelTypingTimerLocked(id)
	delete(r.sessions, id)
	delete(r.names, session.Name)
	delete(r.sinks, id)
	r.order = lo.Without(r.order, id)

	return *session, true
}

func (r *Registry) GetSession(id string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *session, true
}

// ListSessions returns a snapshot of all sessions in admission order.
func (r *Registry) ListSessions() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) domain.Session {
		return *r.sessions[id]
	})
}

// Names returns the display names currently in use.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.names)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// RecordActivity stamps the session's last activity and flips away
// sessions back to online. The statusChanged flag tells the caller a
// transition happened and deserves a broadcast. Unknown sessions are a
// no-op.
func (r *Registry) RecordActivity(id string) (session domain.Session, statusChanged, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.sessions[id]
	if !found {
		return domain.Session{}, false, false
	}

	s.LastActivityAt = time.Now()
	if s.Status == domain.StatusAway {
		s.Status = domain.StatusOnline
		return *s, true, true
	}
	return *s, false, true
}

// SweepInactive flips every online session whose inactivity reached the
// away threshold and returns the flipped sessions. Sessions already away
// are never re-flipped, so running the sweep twice in a row returns
// nothing the second time. This is the only path producing away
// transitions; RecordActivity is the only path back to online.
func (r *Registry) SweepInactive(now time.Time) []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []domain.Session
	for _, id := range r.order {
		s := r.sessions[id]
		if s.Status != domain.StatusOnline {
			continue
		}
		if now.Sub(s.LastActivityAt) >= r.awayThreshold {
			s.Status = domain.StatusAway
			flipped = append(flipped, *s)
		}
	}
	return flipped
}

// SetTyping records the typing target. Returns false when the session is
// unknown (already disconnected) so the caller can suppress a stale
// broadcast.
func (r *Registry) SetTyping(id, target string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	s.TypingTarget = target
	return *s, true
}

// ClearTyping cancels the pending auto-stop timer and clears the typing
// target. The returned snapshot still carries the previous target so the
// caller knows where the stop notification belongs. Returns false when
// the session is unknown or was not typing.
func (r *Registry) ClearTyping(id string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}

	r.cancelTypingTimerLocked(id)
	if !s.Typing() {
		return *s, false
	}

	snapshot := *s
	s.TypingTarget = ""
	return snapshot, true
}

// ScheduleTypingStop arms the session's single auto-stop timer slot.
// Re-arming cancels the previous timer first, so a timer can never fire
// twice for one typing burst. RemoveSession cancels the slot.
func (r *Registry) ScheduleTypingStop(id string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	r.cancelTypingTimerLocked(id)
	r.typingTimers[id] = time.AfterFunc(r.typingTimeout, fn)
}

func (r *Registry) cancelTypingTimerLocked(id string) {
	if t, ok := r.typingTimers[id]; ok {
		t.Stop()
		delete(r.typingTimers, id)
	}
}

// Snapshot returns the current (session, sink) pairs for fan-out. A
// session removed mid-fan-out is simply absent from later snapshots; the
// slice itself never changes under the caller's feet.
func (r *Registry) Snapshot() []contract.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) contract.Endpoint {
		return contract.Endpoint{Session: *r.sessions[id], Sink: r.sinks[id]}
	})
}

func (r *Registry) SinkFor(id string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[id]
	return sink, ok
}
