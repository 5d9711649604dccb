package ws

import (
	"chat-hub/contract"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 8192
)

// connection pairs one websocket with its buffered outbound queue. The
// write pump is the only goroutine writing to the socket after admission.
type connection struct {
	id   string
	sock *websocket.Conn
	out  chan event.DomainEvent
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func newConnection(id string, sock *websocket.Conn, bufferSize int, log *slog.Logger) *connection {
	return &connection{
		id:   id,
		sock: sock,
		out:  make(chan event.DomainEvent, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *connection) sink() contract.EventSink {
	return channelSink{c}
}

// channelSink adapts the connection's outbound queue to the coordinator's
// EventSink contract.
type channelSink struct {
	c *connection
}

// Consume enqueues without blocking. A full buffer means the client
// cannot keep up; the connection is shut down rather than stalling the
// fan-out for everyone else.
func (s channelSink) Consume(e event.DomainEvent) error {
	select {
	case s.c.out <- e:
		return nil
	case <-s.c.done:
		return errors.ErrUnknownSession
	default:
		s.c.shutdown()
		return errors.ErrSlowConsumer
	}
}

// shutdown closes the socket and wakes both pumps. Safe to call from any
// goroutine, any number of times.
func (c *connection) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// reject notifies a not-admitted connection and closes it. Used before
// the pumps start, so writing directly to the socket is safe here.
func (c *connection) reject(reason error) {
	payload, err := EncodeEvent(event.ErrorReported{Message: reason.Error()})
	if err == nil {
		_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.sock.WriteMessage(websocket.TextMessage, payload)
	}
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.Error()),
		time.Now().Add(writeWait))
	c.shutdown()
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.out:
			payload, err := EncodeEvent(e)
			if err != nil {
				c.log.Warn("Encoding outbound event failed", "event", e.Name(), "error", err)
				continue
			}
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound frames and hands them to the dispatcher until
// the transport fails or the connection shuts down. It blocks the
// caller, which runs the disconnect path afterwards.
func (c *connection) readPump(dispatch func(runtime.Inbound)) {
	defer c.shutdown()

	c.sock.SetReadLimit(maxFrameSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Debug("Read failed", "id", c.id, "error", err)
			}
			return
		}

		in, err := DecodeInbound(raw)
		if err != nil {
			c.log.Debug("Malformed frame", "id", c.id, "error", err)
			_ = c.sink().Consume(event.ErrorReported{Message: "malformed frame"})
			continue
		}
		dispatch(in)
	}
}
