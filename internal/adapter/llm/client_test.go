package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "talk_to_lister" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"talk_to_lister","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt",
		Messages: []ChatMessage{{Role: "user", Content: "list all products"}},
		Tools: []Tool{{
			Type:     "function",
			Function: ToolFunction{Name: "talk_to_lister"},
		}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	msg := resp.Choices[0].Message
	if msg.Content != "" || len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "talk_to_lister" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestClientCreateChatCompletionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestClientCreateChatCompletionStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"get_all_products\",\"arguments\":\"{\\\"fil\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":2,\"total_tokens\":5}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	var chunks []StreamChunk
	usage, err := client.CreateChatCompletionStream(context.Background(), &ChatCompletionRequest{
		Model:    "gpt",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	}, func(chunk *StreamChunk) error {
		chunks = append(chunks, *chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream failed: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if usage == nil || usage.TotalTokens != 5 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	call := chunks[2].Choices[0].Delta.ToolCalls[0]
	if call.Index == nil || *call.Index != 0 || call.Function.Arguments != `{"fil` {
		t.Fatalf("unexpected tool call delta: %+v", call)
	}
}

func TestClientStreamCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"y\"}}]}\n\n")
	}))
	defer server.Close()

	stop := fmt.Errorf("stop")
	calls := 0
	client := NewClient(server.URL, "", time.Second)
	_, err := client.CreateChatCompletionStream(context.Background(), &ChatCompletionRequest{Model: "gpt"}, func(*StreamChunk) error {
		calls++
		return stop
	})
	if err != stop {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected stream to stop after first chunk, got %d calls", calls)
	}
}

func TestClientSetsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	if _, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt"}); err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	err := apiError(http.StatusUnauthorized, []byte(`{"error":{"message":"bad key","type":"auth"}}`))
	if err == nil || err.Error() != "LLM API error [401]: bad key (type: auth)" {
		t.Fatalf("unexpected error: %v", err)
	}
	err = apiError(http.StatusBadGateway, []byte("upstream"))
	if err == nil || err.Error() != "LLM API error [502]: upstream" {
		t.Fatalf("unexpected error: %v", err)
	}
}
