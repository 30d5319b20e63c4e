package ws

import "github.com/Nasti98RS/swarm-db-api/internal/domain"

// Message types from client to server
const (
	TypeHello = "hello"
	TypeChat  = "chat"
	TypeReset = "reset"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeDelta    = "delta"
	TypeResult   = "result"
	TypeResetAck = "reset_ack"
	TypeError    = "error"
)

// BaseMessage contains common fields for all frames.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// HelloMessage binds the connection to a user. Context is merged into every
// chat turn sent on the connection.
type HelloMessage struct {
	BaseMessage
	Context map[string]any `json:"context,omitempty"`
}

// HelloAckMessage confirms the binding and names the user's current agent.
type HelloAckMessage struct {
	BaseMessage
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// ChatMessage is one user turn.
type ChatMessage struct {
	BaseMessage
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Stream  bool           `json:"stream"`
}

// DeltaMessage carries streamed text.
type DeltaMessage struct {
	BaseMessage
	Delta string `json:"delta"`
}

// ResultMessage carries the replies of a finished turn.
type ResultMessage struct {
	BaseMessage
	Results []domain.TurnResult `json:"results"`
}

// ResetAckMessage confirms a reset.
type ResetAckMessage struct {
	BaseMessage
	AgentName string `json:"agent_name"`
}

// ErrorMessage is sent when a frame cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage    = "invalid_message"
	ErrorCodeUserRequired      = "user_required"
	ErrorCodeIllegalTransition = "illegal_transition"
	ErrorCodeInvocationFailed  = "invocation_failed"
	ErrorCodeTimeout           = "timeout"
	ErrorCodeInternalError     = "internal_error"
)
