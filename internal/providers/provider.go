package providers

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat turn. Content and ReasoningDetails are passed through
// to the upstream untouched.
type Message struct {
	Role             string          `json:"role" validate:"required,oneof=system user assistant tool"`
	Content          json.RawMessage `json:"content"`
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	Name             string          `json:"name,omitempty"`
}

// ChatRequest is the upstream chat-completions body. Temperature is a
// pointer so that an explicit zero is sent.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	Reasoning   json.RawMessage `json:"reasoning,omitempty"`
}

// ChoiceMessage is the first choice's message of an upstream reply.
type ChoiceMessage struct {
	Content          json.RawMessage `json:"content"`
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
}

// ChatResult is a successful (2xx) upstream reply. Message is nil when the
// payload carried no usable message.
type ChatResult struct {
	Status  int
	Raw     json.RawMessage
	Message *ChoiceMessage
}

// Completer sends one chat request to the upstream.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResult, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req ChatRequest) (ChatResult, error)

func (f CompleterFunc) Complete(ctx context.Context, req ChatRequest) (ChatResult, error) {
	return f(ctx, req)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
