package ws

import (
	"chat-hub/runtime"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Gateway terminates websocket connections and bridges them to the
// router. The claimed display name travels in the "username" query
// parameter of the handshake request.
type Gateway struct {
	log        *slog.Logger
	router     *runtime.Router
	upgrader   websocket.Upgrader
	bufferSize int

	mu     sync.Mutex
	conns  map[string]*connection
	closed bool
}

func NewGateway(log *slog.Logger, router *runtime.Router, bufferSize int) *Gateway {
	return &Gateway{
		log:    log,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The coordinator is origin-agnostic; access control happens
			// at admission, not at the HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize: bufferSize,
		conns:      make(map[string]*connection),
	}
}

// ServeHTTP upgrades the request and runs the connection until its
// transport fails or the gateway closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET requests", http.StatusMethodNotAllowed)
		return
	}

	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	conn := newConnection(id, sock, g.bufferSize, g.log)

	claimedName := r.URL.Query().Get("username")
	session, err := g.router.Connect(id, claimedName, conn.sink())
	if err != nil {
		g.log.Info("Connection rejected", "remote", r.RemoteAddr, "reason", err)
		conn.reject(err)
		return
	}

	if !g.track(conn) {
		// Gateway already closed between upgrade and admission.
		g.router.Disconnect(id)
		conn.shutdown()
		return
	}

	go conn.writePump()
	conn.readPump(func(in runtime.Inbound) {
		_ = g.router.HandleEvent(id, in)
	})

	g.router.Disconnect(id)
	g.untrack(conn)
	g.log.Debug("Connection closed", "username", session.Name, "id", id)
}

// Close shuts every live connection down; in-flight handlers then run
// their normal disconnect path.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	conns := make([]*connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
}

func (g *Gateway) track(c *connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.conns[c.id] = c
	return true
}

func (g *Gateway) untrack(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c.id)
}
