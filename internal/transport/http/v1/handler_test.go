package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	store "github.com/Nasti98RS/swarm-db-api/internal/repository"
	"github.com/Nasti98RS/swarm-db-api/internal/swarm"
	"github.com/Nasti98RS/swarm-db-api/internal/testutil"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
)

// invokerFunc adapts a function to dispatch.Invoker for error paths.
type invokerFunc func(ctx context.Context, a *agent.Identity) (*dispatch.Response, error)

func (f invokerFunc) Run(ctx context.Context, a *agent.Identity, _ []domain.Message, _ map[string]any) (*dispatch.Response, error) {
	return f(ctx, a)
}

func (f invokerFunc) Stream(ctx context.Context, a *agent.Identity, h []domain.Message, v map[string]any) (<-chan dispatch.Chunk, error) {
	return nil, errors.New("streaming not supported")
}

func newTestHandler(t *testing.T, invoker dispatch.Invoker) (*Handler, *store.SQLiteStore) {
	t.Helper()
	reg := agent.Builtin()
	db := testutil.NewTestSQLiteStore(t)
	testutil.SeedProducts(t, db,
		domain.Product{Name: "Mouse", Price: 10, Stock: 3, ReturnDiscount: 10},
		domain.Product{Name: "Keyboard", Price: 25, Stock: 1, ReturnDiscount: 5},
	)
	if invoker == nil {
		invoker = swarm.NewRunner(llm.NewMockClient(), reg, tools.NewRecordRegistry(db), swarm.Options{})
	}
	d := dispatch.New(reg, db.Sessions(reg.Default().ID), invoker, dispatch.Options{
		Timeout: time.Second,
		Events:  db,
	})
	return NewHandler(d, db, db, nil), db
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func chat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := postJSON(echo.New(), "/chat", body)
	if err := h.Chat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestChatValidation(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	cases := map[string]string{
		"bad body":        `{"message":`,
		"missing message": `{"context":{"user_id":"u1"}}`,
		"missing user":    `{"message":"hi","context":{}}`,
		"no context":      `{"message":"hi"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := chat(t, h, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChatListAllProducts(t *testing.T) {
	h, db := newTestHandler(t, nil)

	rec := chat(t, h, `{"message":"List all products","context":{"user_id":"u1","user_name":"Ana"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var results []domain.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 1 || results[0].Sender != "Agent Lister" || results[0].AgentSwitch != "Agent Lister" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if !bytes.Contains([]byte(results[0].Content), []byte("Keyboard")) {
		t.Fatalf("expected product listing, got %q", results[0].Content)
	}

	sess, err := db.Sessions("triage").GetOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if sess.AgentID != "lister" || len(sess.History) != 2 {
		t.Fatalf("unexpected session: agent=%s history=%d", sess.AgentID, len(sess.History))
	}
}

func TestChatNumericUserID(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := chat(t, h, `{"message":"hello","context":{"user_id":42},"stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var results []domain.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 1 || results[0].Sender != "Triage Agent" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestChatErrorStatus(t *testing.T) {
	illegal := invokerFunc(func(ctx context.Context, a *agent.Identity) (*dispatch.Response, error) {
		return &dispatch.Response{Messages: []domain.Message{{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{ID: "c1", Name: "talk_to_triage_agent", Arguments: json.RawMessage(`{}`)}},
		}}}, nil
	})
	failing := invokerFunc(func(ctx context.Context, a *agent.Identity) (*dispatch.Response, error) {
		return nil, errors.New("model unavailable")
	})
	slow := invokerFunc(func(ctx context.Context, a *agent.Identity) (*dispatch.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	tests := []struct {
		name    string
		invoker dispatch.Invoker
		want    int
	}{
		{"illegal transition", illegal, http.StatusConflict},
		{"invocation failed", failing, http.StatusBadGateway},
		{"timeout", slow, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.invoker)
			rec := chat(t, h, `{"message":"hi","context":{"user_id":"u1"}}`)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dispatch.ErrMissingUserID, http.StatusBadRequest},
		{fmt.Errorf("%w: x", domain.ErrIllegalTransition), http.StatusConflict},
		{fmt.Errorf("%w: x", domain.ErrAgentInvocationFailed), http.StatusBadGateway},
		{fmt.Errorf("%w: x", domain.ErrAgentInvocationTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: x", domain.ErrUnknownAgent), http.StatusInternalServerError},
		{domain.ErrSessionNotFound, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestResetAgent(t *testing.T) {
	h, db := newTestHandler(t, nil)
	chat(t, h, `{"message":"List all products","context":{"user_id":"u1"}}`)

	e := echo.New()
	c, rec := postJSON(e, "/reset-agent/u1", "")
	c.SetParamNames("user_id")
	c.SetParamValues("u1")
	if err := h.ResetAgent(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["message"] != "Agent reset to triage agent" || body["agent_name"] != "Triage Agent" {
		t.Fatalf("unexpected body: %+v", body)
	}

	sess, err := db.Sessions("triage").GetOrCreate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if sess.AgentID != "triage" || len(sess.History) != 0 {
		t.Fatalf("expected fresh session, got agent=%s history=%d", sess.AgentID, len(sess.History))
	}
}

func TestNewUserAndGetUser(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	e := echo.New()

	c, rec := postJSON(e, "/new_user", `{"company":"Acme"}`)
	if err := h.NewUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	c, rec = postJSON(e, "/new_user", `{"name":"Ana","company":"Acme","email":"ana@acme.test"}`)
	if err := h.NewUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created["message"] != "User created successfully" || created["user_name"] != "Ana" {
		t.Fatalf("unexpected body: %+v", created)
	}

	c, rec = postJSON(e, "/new_user", `{"name":"ANA","company":"Other","email":"x@other.test"}`)
	if err := h.NewUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var again map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if again["message"] != "User already exists" || again["user_id"] != created["user_id"] || again["user_enterprise"] != "Acme" {
		t.Fatalf("expected existing user, got %+v", again)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+created["user_id"], nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created["user_id"])
	if err := h.GetUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var user domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if user.Company != "Acme" || user.Email != "ana@acme.test" {
		t.Fatalf("unexpected user: %+v", user)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/users/999", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("999")
	if err := h.GetUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListProducts(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/products?filter=key", nil)
	rec := httptest.NewRecorder()
	if err := h.ListProducts(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Name != "Keyboard" {
		t.Fatalf("unexpected products: %+v", resp.Products)
	}
}

func TestListAgents(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rec := httptest.NewRecorder()
	if err := h.ListAgents(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp struct {
		Default string `json:"default"`
		Agents  []struct {
			AgentID string `json:"agent_id"`
		} `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Default != "triage" || len(resp.Agents) != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetSessionMessagesAndEvents(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	chat(t, h, `{"message":"List all products","context":{"user_id":"u1"}}`)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/u1/messages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("u1")
	if err := h.GetSessionMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var sess struct {
		AgentID  string           `json:"agent_id"`
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sess.AgentID != "lister" || len(sess.Messages) != 2 || sess.Messages[1].Sender != "Agent Lister" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/u1/events?limit=10", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("u1")
	if err := h.GetSessionEvents(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var events struct {
		Events []domain.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	seen := map[domain.EventType]bool{}
	for _, ev := range events.Events {
		seen[ev.Type] = true
	}
	if !seen[domain.EventTypeTurnStarted] || !seen[domain.EventTypeHandoff] || !seen[domain.EventTypeTurnDone] {
		t.Fatalf("missing events: %+v", events.Events)
	}
}

func TestGetSessionEventsWithoutBackend(t *testing.T) {
	h, db := newTestHandler(t, nil)
	h = NewHandler(h.dispatcher, db, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/u1/events", nil)
	rec := httptest.NewRecorder()
	if err := h.GetSessionEvents(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestHomeAndHealth(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	for _, fn := range []echo.HandlerFunc{h.Home, h.Health} {
		rec := httptest.NewRecorder()
		if err := fn(echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}
