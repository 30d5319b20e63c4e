package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/session"
	"github.com/Nasti98RS/swarm-db-api/internal/swarm"
	"github.com/Nasti98RS/swarm-db-api/internal/testutil"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
	v1 "github.com/Nasti98RS/swarm-db-api/internal/transport/http/v1"
)

func TestNewServerRoutesAndLogs(t *testing.T) {
	reg := agent.Builtin()
	db := testutil.NewTestSQLiteStore(t)
	runner := swarm.NewRunner(llm.NewMockClient(), reg, tools.NewRecordRegistry(db), swarm.Options{})
	d := dispatch.New(reg, session.NewMemoryStore(reg.Default().ID), runner, dispatch.Options{})

	core, logs := observer.New(zapcore.InfoLevel)
	e := NewServer(v1.NewHandler(d, db, nil, nil), nil, zap.New(core))

	for path, want := range map[string]int{
		"/health":    http.StatusOK,
		"/v1/agents": http.StatusOK,
		"/missing":   http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("GET %s: expected %d, got %d", path, want, rec.Code)
		}
	}

	entries := logs.FilterMessage("request").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 access log entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["uri"]; got == "" {
		t.Fatalf("access log missing uri: %+v", entries[0].ContextMap())
	}
}
