package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// MockClient is a deterministic LLMClient for local runs and tests. It routes
// on keywords in the last user message and calls whichever offered tool
// matches; after a tool result it answers with that result.
type MockClient struct {
	seq atomic.Int64
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

type mockRoute struct {
	tool     string
	keywords []string
}

// Routes are checked in order; the first offered tool with a matching keyword wins.
var mockRoutes = []mockRoute{
	{tool: "talk_to_deleter", keywords: []string{"delete", "remove"}},
	{tool: "talk_to_updater", keywords: []string{"update", "change", "modify", "rename"}},
	{tool: "talk_to_adder", keywords: []string{"add", "insert", "create"}},
	{tool: "talk_to_lister", keywords: []string{"list", "show", "products"}},
	{tool: "talk_to_triage_agent", keywords: []string{"triage", "something else"}},
	{tool: "get_all_products", keywords: []string{"list", "show", "products"}},
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, finish := m.respond(req)
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{Index: 0, Message: &msg, FinishReason: finish}},
		Usage:   m.usage(req, msg),
	}, nil
}

// CreateChatCompletionStream simulates a streaming response.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	msg, finish := m.respond(req)
	id := fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano())
	created := time.Now().Unix()

	var deltas []*ChatMessage
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, len(msg.ToolCalls))
		for i, call := range msg.ToolCalls {
			idx := i
			call.Index = &idx
			calls[i] = call
		}
		deltas = append(deltas, &ChatMessage{Role: "assistant", ToolCalls: calls})
	} else {
		for _, part := range splitIntoChunks(msg.Content, 10) {
			deltas = append(deltas, &ChatMessage{Role: "assistant", Content: part})
		}
	}

	for i, delta := range deltas {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		reason := ""
		if i == len(deltas)-1 {
			reason = finish
		}
		chunk := &StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []Choice{{Index: 0, Delta: delta, FinishReason: reason}},
		}
		if err := callback(chunk); err != nil {
			return nil, err
		}
	}
	return m.usage(req, msg), nil
}

func (m *MockClient) respond(req *ChatCompletionRequest) (ChatMessage, string) {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "tool" {
		return ChatMessage{Role: "assistant", Content: "[MOCK] " + req.Messages[n-1].Content}, "stop"
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	offered := make(map[string]bool, len(req.Tools))
	for _, t := range req.Tools {
		offered[t.Function.Name] = true
	}
	text := strings.ToLower(lastUserMessage)
	for _, route := range mockRoutes {
		if !offered[route.tool] {
			continue
		}
		for _, kw := range route.keywords {
			if strings.Contains(text, kw) {
				return ChatMessage{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:       fmt.Sprintf("call_mock_%d", m.seq.Add(1)),
						Type:     "function",
						Function: ToolCallFunction{Name: route.tool, Arguments: "{}"},
					}},
				}, "tool_calls"
			}
		}
	}

	if lastUserMessage == "" {
		return ChatMessage{Role: "assistant", Content: "[MOCK] This is a mock response from the LLM client."}, "stop"
	}
	return ChatMessage{
		Role:    "assistant",
		Content: fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100)),
	}, "stop"
}

func (m *MockClient) usage(req *ChatCompletionRequest, msg ChatMessage) *Usage {
	prompt := 0
	for _, in := range req.Messages {
		prompt += len(in.Content) / 4
	}
	completion := len(msg.Content) / 4
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return []string{""}
	}

	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
