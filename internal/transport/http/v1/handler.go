// Package v1 provides the HTTP handlers for the swarm API.
package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Records is the product and user store behind the record endpoints.
type Records interface {
	ListProducts(ctx context.Context, filter string) ([]domain.Product, error)
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
}

// EventReader reads persisted turn events.
type EventReader interface {
	GetEvents(ctx context.Context, userID string, limit int) ([]domain.Event, error)
}

// Handler handles HTTP requests.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	records    Records
	events     EventReader
	logger     *zap.Logger
}

// NewHandler creates a new handler. events may be nil when the session
// backend does not persist them.
func NewHandler(dispatcher *dispatch.Dispatcher, records Records, events EventReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher: dispatcher,
		records:    records,
		events:     events,
		logger:     logger.With(zap.String("component", "http")),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Home)
	e.GET("/health", h.Health)

	e.POST("/chat", h.Chat)
	e.POST("/reset-agent/:user_id", h.ResetAgent)
	e.POST("/new_user", h.NewUser)

	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/products", h.ListProducts)
	e.GET("/v1/users/:id", h.GetUser)
	e.GET("/v1/sessions/:user_id/messages", h.GetSessionMessages)
	e.GET("/v1/sessions/:user_id/events", h.GetSessionEvents)
}

// Home reports that the service is up.
func (h *Handler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "The chatbot is running. Send POST requests to /chat to interact.",
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// StatusFor maps a turn error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrMissingUserID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAgentInvocationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrAgentInvocationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
