package main

import (
	"bufio"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/infrastructure/ws"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	env "github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Username      string `env:"CHAT_USERNAME"`
}

type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// roster mirrors the server-side session list from presence events so
// /users can render it without a round trip.
type roster struct {
	mu    sync.Mutex
	users map[string]domain.Session
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration; a CLI argument overrides the env username.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if len(os.Args) > 1 {
		config.Username = os.Args[1]
	}
	if config.Username == "" {
		return exitConfig, fmt.Errorf("username required: pass it as the first argument or set CHAT_USERNAME")
	}

	// 2. Connect; the claimed name travels in the handshake query.
	u := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws",
		RawQuery: url.Values{"username": {config.Username}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer conn.Close()

	fmt.Println(color.New(color.FgGreen).Sprintf(">>> Connected to %s as %q (/users, /msg <id> <text>, /quit)",
		config.ServerAddress, config.Username))

	users := &roster{users: make(map[string]domain.Session)}

	var writeMu sync.Mutex
	send := func(f frame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			fmt.Println(color.New(color.FgRed).Sprintf("send failed: %v", err))
		}
	}

	// 3. Reception loop runs until the server closes the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			handleFrame(raw, config.Username, users, send)
		}
	}()

	// 4. Input loop: plain lines are broadcast messages.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return exitOK, fmt.Errorf("server closed the connection")
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return exitOK, nil
		case line == "/users":
			users.render()
		case strings.HasPrefix(line, "/msg "):
			fields := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
			if len(fields) != 2 {
				fmt.Println(color.New(color.FgYellow).Render("usage: /msg <recipient-id> <text>"))
				continue
			}
			send(frame{Event: "message:private", Data: map[string]string{
				"recipientId": fields[0],
				"text":        fields[1],
			}})
		default:
			send(frame{Event: "message", Data: map[string]string{"text": line}})
		}
	}
	return exitOK, scanner.Err()
}

// handleFrame decodes one server frame and reacts: presence updates feed
// the roster, incoming messages are printed and acknowledged.
func handleFrame(raw []byte, self string, users *roster, send func(frame)) {
	var f ws.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}

	switch f.Event {
	case "user:connected":
		var e event.UserConnected
		if json.Unmarshal(f.Data, &e) == nil {
			users.put(e.User)
			fmt.Println(color.New(color.FgCyan).Sprintf("your session id is %s", e.User.ID))
		}
	case "users:list":
		var e event.UsersList
		if json.Unmarshal(f.Data, &e) == nil {
			for _, u := range e.Users {
				users.put(u)
			}
			users.render()
		}
	case "user:joined":
		var e event.UserJoined
		if json.Unmarshal(f.Data, &e) == nil {
			users.put(e.User)
			fmt.Println(color.New(color.FgCyan).Sprintf("* %s joined (%d online)", e.User.Name, e.UserCount))
		}
	case "user:left":
		var e event.UserLeft
		if json.Unmarshal(f.Data, &e) == nil {
			users.remove(e.User.ID)
			fmt.Println(color.New(color.FgCyan).Sprintf("* %s left (%d online)", e.User.Name, e.UserCount))
		}
	case "user:status:changed":
		var e event.UserStatusChanged
		if json.Unmarshal(f.Data, &e) == nil {
			users.put(e.User)
			fmt.Println(color.New(color.FgCyan).Sprintf("* %s is now %s", e.User.Name, e.NewStatus))
		}
	case "user:typing":
		var e event.UserTyping
		if json.Unmarshal(f.Data, &e) == nil {
			fmt.Println(color.New(color.FgDarkGray).Sprintf("%s is typing...", e.Username))
		}
	case "user:stopped:typing":
		// Quiet: the next message or roster change tells the story.
	case "message":
		var m domain.Message
		if json.Unmarshal(f.Data, &m) == nil {
			if m.SenderName != self {
				fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprintf("<%s>", m.SenderName), m.Text)
				send(frame{Event: "message:delivered", Data: map[string]string{"messageId": m.ID}})
				send(frame{Event: "message:read", Data: map[string]string{"messageId": m.ID}})
			}
		}
	case "message:private":
		var m domain.Message
		if json.Unmarshal(f.Data, &m) == nil {
			if m.SenderName != self {
				fmt.Printf("%s %s\n", color.New(color.FgMagenta).Sprintf("[from %s]", m.SenderName), m.Text)
				send(frame{Event: "message:private:delivered", Data: map[string]string{"messageId": m.ID}})
				send(frame{Event: "message:private:read", Data: map[string]string{"messageId": m.ID}})
			} else {
				fmt.Printf("%s %s\n", color.New(color.FgMagenta).Sprintf("[to %s]", m.RecipientName), m.Text)
			}
		}
	case "message:status:updated":
		var e event.MessageStatusUpdated
		if json.Unmarshal(f.Data, &e) == nil {
			fmt.Println(color.New(color.FgDarkGray).Sprintf("message %s is now %s", e.MessageID, e.Status))
		}
	case "error":
		var e event.ErrorReported
		if json.Unmarshal(f.Data, &e) == nil {
			fmt.Println(color.New(color.FgRed).Sprintf("error: %s", e.Message))
		}
	}
}

func (r *roster) put(s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[s.ID] = s
}

func (r *roster) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *roster) render() {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Username", "Status"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, u := range r.users {
		table.Append([]string{u.ID, u.Name, string(u.Status)})
	}
	table.Render()
}
