// Package main is an interactive chat client for the swarm WebSocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	"github.com/Nasti98RS/swarm-db-api/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn   *websocket.Conn
	userID string
	stream bool
	done   chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, userID string, stream bool) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn, userID: userID, stream: stream, done: make(chan struct{})}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello binds the connection to the user and returns the current agent name.
func (c *Client) SendHello(vars map[string]any) (string, error) {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeHello, Ts: time.Now().UnixMilli(), UserID: c.userID},
		Context:     vars,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return "", fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read hello_ack: %w", err)
	}
	var ack struct {
		ws.HelloAckMessage
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return "", fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if ack.Type == ws.TypeError {
		return "", fmt.Errorf("hello failed: %s - %s", ack.Code, ack.Message)
	}
	if ack.Type != ws.TypeHelloAck {
		return "", fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}
	return ack.AgentName, nil
}

// SendChat sends one user turn.
func (c *Client) SendChat(content string) error {
	return c.conn.WriteJSON(ws.ChatMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeChat,
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Message: content,
		Stream:  c.stream,
	})
}

// SendReset asks the server to start the conversation over.
func (c *Client) SendReset() error {
	return c.conn.WriteJSON(ws.BaseMessage{Type: ws.TypeReset, Ts: time.Now().UnixMilli()})
}

// ReadMessages prints frames from the server until the connection closes.
func (c *Client) ReadMessages(out io.Writer) {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			render(out, data)
		}
	}
}

var (
	agentColor = color.New(color.FgCyan, color.Bold)
	switchMark = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.FgHiBlack)
)

// render prints one server frame. Deltas are written inline as they arrive
// and the result frame prints the final replies.
func render(out io.Writer, data []byte) {
	var f struct {
		ws.BaseMessage
		Delta     string              `json:"delta"`
		Results   []domain.TurnResult `json:"results"`
		AgentName string              `json:"agent_name"`
		Code      string              `json:"code"`
		Message   string              `json:"message"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		errorColor.Fprintf(out, "invalid frame: %v\n", err)
		return
	}

	switch f.Type {
	case ws.TypeDelta:
		fmt.Fprint(out, f.Delta)
	case ws.TypeResult:
		if len(f.Results) == 0 {
			dimColor.Fprintln(out, "(no reply)")
		}
		for _, r := range f.Results {
			if r.AgentSwitch != "" {
				switchMark.Fprintf(out, "\n-> now talking to %s\n", r.AgentSwitch)
			}
			agentColor.Fprintf(out, "\n%s: ", r.Sender)
			fmt.Fprintln(out, r.Content)
		}
	case ws.TypeResetAck:
		switchMark.Fprintf(out, "conversation reset, talking to %s\n", f.AgentName)
	case ws.TypeError:
		errorColor.Fprintf(out, "error [%s]: %s\n", f.Code, f.Message)
	default:
		dimColor.Fprintf(out, "[%s]\n", f.Type)
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:7000/ws", "WebSocket server address")
	userID := flag.String("user", "cli-user", "user id the conversation is keyed by")
	userName := flag.String("name", "", "user name passed in the context bag")
	company := flag.String("company", "", "company passed in the context bag")
	stream := flag.Bool("stream", true, "stream replies")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)
	client, err := NewClient(*addr, *userID, *stream)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	vars := map[string]any{"user_name": *userName, "enterprise_name": *company}
	agentName, err := client.SendHello(vars)
	if err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Connected as %s, talking to %s\n", *userID, agentColor.Sprint(agentName))
	fmt.Println("Commands: /reset to start over, /quit to exit")
	fmt.Println()

	go client.ReadMessages(color.Output)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/reset":
				err = client.SendReset()
			default:
				err = client.SendChat(input)
			}
			if err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
