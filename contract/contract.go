package contract

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
// Consume must not block: a sink that cannot keep up reports an error
// and the transport layer drops the connection.
type EventSink interface {
	Consume(e event.DomainEvent) error
}

// Endpoint pairs a session snapshot with its sink for fan-out.
type Endpoint struct {
	Session domain.Session
	Sink    EventSink
}

type IRegistry interface {
	AddSession(id, name string, sink EventSink) (domain.Session, error)
	RemoveSession(id string) (domain.Session, bool)
	GetSession(id string) (domain.Session, bool)
	ListSessions() []domain.Session
	Names() []string
	Count() int
	RecordActivity(id string) (domain.Session, bool, bool)
	SweepInactive(now time.Time) []domain.Session
	SetTyping(id, target string) (domain.Session, bool)
	ClearTyping(id string) (domain.Session, bool)
	ScheduleTypingStop(id string, fn func())
	Snapshot() []Endpoint
	SinkFor(id string) (EventSink, bool)
}

type ILedger interface {
	CreateBroadcast(senderID, senderName, text string) domain.Message
	CreateDirect(senderID, senderName, recipientID, recipientName, text string) domain.Message
	RecordDelivered(messageID, byID string) (domain.Message, bool)
	RecordRead(messageID, byID string) (domain.Message, bool)
	GetMessage(messageID string) (domain.Message, bool)
	Conversation(idA, idB string) []domain.Message
	Len() int
}
