package llm

import (
	"time"

	"go.uber.org/zap"
)

// ModeMock selects the deterministic mock client.
const ModeMock = "MOCK"

// NewLLMClient returns a MockClient in mock mode and a real Client otherwise.
func NewLLMClient(mode, baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) LLMClient {
	if mode == ModeMock {
		logger.Info("mock mode enabled, using mock LLM client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, timeout)
}
