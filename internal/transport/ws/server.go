// Package ws serves chat turns over WebSocket, streaming reply text as it
// is produced.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Config holds connection limits.
type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the limits used by the server command.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Server handles WebSocket connections.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg Config, dispatcher *dispatch.Dispatcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(zap.String("component", "ws")),
	}
}

// RegisterRoutes registers the upgrade endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

type connection struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	ctx  context.Context

	mu      sync.Mutex
	userID  string
	context map[string]any
}

func (c *connection) user() (string, map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.context
}

// HandleWebSocket upgrades the connection and serves it until the client
// goes away.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		conn: ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
		ctx:  ctx,
	}

	go s.writePump(conn)
	go s.readPump(conn, cancel)
	return nil
}

func (s *Server) readPump(conn *connection, cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(conn.done)
		conn.conn.Close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.handleMessage(conn, message)
	}
}

func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case message := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.done:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (s *Server) handleMessage(conn *connection, data []byte) {
	var head BaseMessage
	if err := json.Unmarshal(data, &head); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch head.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeChat:
		s.handleChat(conn, data)
	case TypeReset:
		s.handleReset(conn, head)
	default:
		s.sendError(conn, head.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+head.Type)
	}
}

func (s *Server) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	if msg.UserID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeUserRequired, "user_id is required")
		return
	}

	sess, err := s.dispatcher.Session(conn.ctx, msg.UserID)
	if err != nil {
		s.sendTurnError(conn, msg.RequestID, err)
		return
	}
	a, err := s.dispatcher.Registry().Resolve(sess.AgentID)
	if err != nil {
		s.sendTurnError(conn, msg.RequestID, err)
		return
	}

	conn.mu.Lock()
	conn.userID = msg.UserID
	conn.context = msg.Context
	conn.mu.Unlock()

	s.send(conn, HelloAckMessage{
		BaseMessage: base(TypeHelloAck, msg.RequestID, msg.UserID),
		AgentID:     a.ID,
		AgentName:   a.Name,
	})
	s.logger.Debug("hello handshake completed", zap.String("user_id", msg.UserID))
}

// handleChat runs the turn off the read loop so pings and further frames
// keep flowing. Turns for one user are still serialized by the dispatcher.
func (s *Server) handleChat(conn *connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}
	userID, helloContext := conn.user()
	if userID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeUserRequired, "must send hello first")
		return
	}
	if msg.Message == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "message is required")
		return
	}

	vars := map[string]any{}
	maps.Copy(vars, helloContext)
	maps.Copy(vars, msg.Context)
	vars["user_id"] = userID

	turn := dispatch.Turn{
		UserID:  userID,
		Message: msg.Message,
		Context: vars,
		Stream:  msg.Stream,
		OnDelta: func(delta string) {
			s.send(conn, DeltaMessage{BaseMessage: base(TypeDelta, msg.RequestID, userID), Delta: delta})
		},
	}

	go func() {
		results, err := s.dispatcher.Dispatch(conn.ctx, turn)
		if err != nil {
			s.sendTurnError(conn, msg.RequestID, err)
			return
		}
		if results == nil {
			results = []domain.TurnResult{}
		}
		s.send(conn, ResultMessage{BaseMessage: base(TypeResult, msg.RequestID, userID), Results: results})
	}()
}

func (s *Server) handleReset(conn *connection, msg BaseMessage) {
	userID, _ := conn.user()
	if userID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeUserRequired, "must send hello first")
		return
	}
	a, err := s.dispatcher.Reset(conn.ctx, userID)
	if err != nil {
		s.sendTurnError(conn, msg.RequestID, err)
		return
	}
	s.send(conn, ResetAckMessage{BaseMessage: base(TypeResetAck, msg.RequestID, userID), AgentName: a.Name})
}

func (s *Server) sendTurnError(conn *connection, requestID string, err error) {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		code = ErrorCodeIllegalTransition
	case errors.Is(err, domain.ErrAgentInvocationTimeout):
		code = ErrorCodeTimeout
	case errors.Is(err, domain.ErrAgentInvocationFailed):
		code = ErrorCodeInvocationFailed
	}
	s.sendError(conn, requestID, code, err.Error())
}

func (s *Server) sendError(conn *connection, requestID, code, message string) {
	s.send(conn, ErrorMessage{
		BaseMessage: base(TypeError, requestID, ""),
		Code:        code,
		Message:     message,
	})
}

// send queues a frame, dropping it once the connection is gone.
func (s *Server) send(conn *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal frame", zap.Error(err))
		return
	}
	select {
	case conn.send <- data:
	case <-conn.done:
	}
}

func base(typ, requestID, userID string) BaseMessage {
	return BaseMessage{Type: typ, Ts: time.Now().UnixMilli(), RequestID: requestID, UserID: userID}
}
