package runtime

import (
	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/observability"
	"chat-hub/repositories"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSink captures everything a connection would receive.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name() == name {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(name string) event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Name() == name {
			return s.events[i]
		}
	}
	return nil
}

type routerFixture struct {
	router   *Router
	registry *Registry
	ledger   *repositories.Ledger
}

func newRouterFixture(typingTimeout time.Duration) routerFixture {
	log := testLogger()
	registry := NewRegistry(log, 2*time.Minute, typingTimeout)
	ledger := repositories.NewLedger()
	router := NewRouter(log, auth.Gate{}, registry, ledger, observability.NewMonitor(log), 2000)
	return routerFixture{router: router, registry: registry, ledger: ledger}
}

func (f routerFixture) connect(t *testing.T, id, name string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	_, err := f.router.Connect(id, name, sink)
	require.NoError(t, err)
	return sink
}

func TestRouter_Connect_NotifiesNewAndExistingSessions(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)

	alice := f.connect(t, "alice-id", "alice")

	req.Equal(1, alice.count("user:connected"))
	req.Equal(1, alice.count("user:joined"))
	req.Equal(1, alice.count("users:list"))

	bob := f.connect(t, "bob-id", "bob")

	// Existing sessions learn about the join; the new one gets the roster.
	req.Equal(2, alice.count("user:joined"))
	joined, ok := bob.last("user:joined").(event.UserJoined)
	req.True(ok)
	req.Equal(2, joined.UserCount)
	list, ok := bob.last("users:list").(event.UsersList)
	req.True(ok)
	req.Len(list.Users, 2)
}

func TestRouter_Connect_DuplicateNameThenReuseAfterDisconnect(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)

	// Given alice is connected
	f.connect(t, "alice-1", "alice")

	// When a second connection claims "alice"
	_, err := f.router.Connect("alice-2", "alice", &recordingSink{})

	// Then it is rejected without a session
	req.ErrorIs(err, errors.ErrNameTaken)
	req.Equal(1, f.registry.Count())

	// And after alice disconnects the name is admitted again
	f.router.Disconnect("alice-1")
	req.Equal(0, f.registry.Count())

	session, err := f.router.Connect("alice-3", "alice", &recordingSink{})
	req.NoError(err)
	req.Equal("alice", session.Name)
}

func TestRouter_HandleEvent_RejectedBeforeAdmission(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)

	err := f.router.HandleEvent("ghost-id", Inbound{Name: EventMessage, Text: "hi"})

	req.ErrorIs(err, errors.ErrNotAdmitted)
	req.Equal(0, f.ledger.Len())
}

func TestRouter_Message_BroadcastReachesEveryone(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	err := f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "hello all"})

	req.NoError(err)
	req.Equal(1, alice.count("message"))
	req.Equal(1, bob.count("message"))
	posted, ok := bob.last("message").(event.MessagePosted)
	req.True(ok)
	req.Equal("alice", posted.SenderName)
	req.Equal(domain.StatusSent, posted.Status)
	req.Equal(1, f.ledger.Len())
}

func TestRouter_Message_EmptyTextRejected(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	err := f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "   "})

	// The originator sees a specific error; nobody else is informed.
	req.ErrorIs(err, errors.ErrEmptyMessage)
	req.Equal(1, alice.count("error"))
	req.Equal(0, bob.count("error"))
	req.Equal(0, f.ledger.Len())
}

func TestRouter_PrivateMessage_SenderAndRecipientOnly(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")
	carol := f.connect(t, "carol-id", "carol")

	err := f.router.HandleEvent("alice-id",
		Inbound{Name: EventPrivateMessage, RecipientID: "bob-id", Text: "psst"})

	req.NoError(err)
	req.Equal(1, alice.count("message:private"))
	req.Equal(1, bob.count("message:private"))
	req.Equal(0, carol.count("message:private"))

	posted, ok := bob.last("message:private").(event.PrivateMessagePosted)
	req.True(ok)
	req.Equal("bob", posted.RecipientName)
	req.Len(f.ledger.Conversation("alice-id", "bob-id"), 1)
}

func TestRouter_PrivateMessage_UnknownRecipient(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	dave := f.connect(t, "dave-id", "dave")

	err := f.router.HandleEvent("dave-id",
		Inbound{Name: EventPrivateMessage, RecipientID: "zzz", Text: "anyone?"})

	// The connection stays active, gets an error, and nothing is ledgered.
	req.ErrorIs(err, errors.ErrRecipientNotFound)
	req.Equal(1, dave.count("error"))
	req.Equal(0, f.ledger.Len())
	req.NoError(f.router.HandleEvent("dave-id", Inbound{Name: EventMessage, Text: "still here"}))
}

func TestRouter_PrivateMessage_SelfSendRejected(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	f.connect(t, "alice-id", "alice")

	err := f.router.HandleEvent("alice-id",
		Inbound{Name: EventPrivateMessage, RecipientID: "alice-id", Text: "me"})

	req.ErrorIs(err, errors.ErrSelfMessage)
	req.Equal(0, f.ledger.Len())
}

func TestRouter_Delivered_StatusUpdateGoesToSenderOnly(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "hi"}))
	posted := bob.last("message").(event.MessagePosted)

	req.NoError(f.router.HandleEvent("bob-id",
		Inbound{Name: EventDelivered, MessageID: posted.ID}))

	req.Equal(1, alice.count("message:status:updated"))
	req.Equal(0, bob.count("message:status:updated"))
	update := alice.last("message:status:updated").(event.MessageStatusUpdated)
	req.Equal(domain.StatusDelivered, update.Status)
	req.Equal(1, update.DeliveredCount)

	// The sender confirming its own message changes nothing.
	req.NoError(f.router.HandleEvent("alice-id",
		Inbound{Name: EventDelivered, MessageID: posted.ID}))
	req.Equal(1, alice.count("message:status:updated"))
}

func TestRouter_Delivered_MissingMessageIsSilent(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")

	// A confirmation for a vanished message is nothing to do, not an error.
	req.NoError(f.router.HandleEvent("alice-id",
		Inbound{Name: EventDelivered, MessageID: "gone"}))
	req.Equal(0, alice.count("error"))

	// An empty id, however, is a malformed payload.
	err := f.router.HandleEvent("alice-id", Inbound{Name: EventDelivered})
	req.ErrorIs(err, errors.ErrMissingMessageID)
	req.Equal(1, alice.count("error"))
}

func TestRouter_Read_AdvancesToReadForSender(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "hi"}))
	posted := bob.last("message").(event.MessagePosted)

	req.NoError(f.router.HandleEvent("bob-id", Inbound{Name: EventRead, MessageID: posted.ID}))

	update := alice.last("message:status:updated").(event.MessageStatusUpdated)
	req.Equal(domain.StatusRead, update.Status)
	req.Equal(1, update.ReadCount)
}

func TestRouter_Typing_BroadcastExceptTypist(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(time.Second)
	alice := f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventTypingStart}))

	req.Equal(0, alice.count("user:typing"))
	req.Equal(1, bob.count("user:typing"))

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventTypingStop}))
	req.Equal(1, bob.count("user:stopped:typing"))

	// A stop without a start is suppressed.
	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventTypingStop}))
	req.Equal(1, bob.count("user:stopped:typing"))
}

func TestRouter_Typing_DirectedAtOnePeer(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(time.Second)
	f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")
	carol := f.connect(t, "carol-id", "carol")

	req.NoError(f.router.HandleEvent("alice-id",
		Inbound{Name: EventTypingStart, RecipientID: "bob-id"}))

	req.Equal(1, bob.count("user:typing"))
	req.Equal(0, carol.count("user:typing"))
}

func TestRouter_Typing_AutoStopFiresOnceAfterTimeout(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(50 * time.Millisecond)
	f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventTypingStart}))

	time.Sleep(120 * time.Millisecond)
	req.Equal(1, bob.count("user:stopped:typing"))

	// No second fire later.
	time.Sleep(80 * time.Millisecond)
	req.Equal(1, bob.count("user:stopped:typing"))
}

func TestRouter_Typing_MessageSendStopsTyping(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(time.Minute)
	f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventTypingStart}))
	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "done typing"}))

	req.Equal(1, bob.count("user:stopped:typing"))
}

func TestRouter_Activity_AwayFlipsBackOnlineOnMessage(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	// Given the sweep flipped alice away
	flipped := f.registry.SweepInactive(time.Now().Add(3 * time.Minute))
	for _, session := range flipped {
		f.router.NotifyAway(session)
	}
	req.Equal(2, bob.count("user:status:changed"))

	// When alice sends a message
	req.NoError(f.router.HandleEvent("alice-id", Inbound{Name: EventMessage, Text: "back"}))

	// Then everyone sees her flip back online
	change := bob.last("user:status:changed").(event.UserStatusChanged)
	req.Equal("alice", change.User.Name)
	req.Equal(domain.StatusAway, change.OldStatus)
	req.Equal(domain.StatusOnline, change.NewStatus)
}

func TestRouter_Disconnect_BroadcastsLeaveOnce(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(2 * time.Second)
	f.connect(t, "alice-id", "alice")
	bob := f.connect(t, "bob-id", "bob")

	f.router.Disconnect("alice-id")
	f.router.Disconnect("alice-id")

	req.Equal(1, bob.count("user:left"))
	left := bob.last("user:left").(event.UserLeft)
	req.Equal("alice", left.User.Name)
	req.Equal(1, left.UserCount)
}
