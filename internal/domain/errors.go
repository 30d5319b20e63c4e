package domain

import (
	"errors"
	"strconv"
)

var (
	// ErrUnknownAgent is returned when an agent id is not registered.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrSessionNotFound is returned when a session operation targets a missing user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrIllegalTransition is returned when an agent requests a handoff it is not allowed to make.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrAgentInvocationFailed wraps any failure of the model invocation.
	ErrAgentInvocationFailed = errors.New("agent invocation failed")
	// ErrAgentInvocationTimeout is returned when an invocation exceeds its deadline.
	ErrAgentInvocationTimeout = errors.New("agent invocation timed out")
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
