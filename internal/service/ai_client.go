package service

import (
	"context"
	"encoding/json"
)

// AIClient is the interface for the model provider used by the matcher
type AIClient interface {
	// CreateResponse performs one model invocation with the accumulated
	// conversation input and optional tool specs
	CreateResponse(ctx context.Context, req *ResponseRequest) (*ModelResponse, error)

	// CreateEmbeddings generates embeddings for texts (archive path)
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// IsEnabled returns whether the AI client is configured and ready
	IsEnabled() bool
}

// Turn is one conversation turn (system, user or assistant)
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes one tool exposed to the model
type ToolSpec struct {
	Type        string         `json:"type"` // "function"
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ResponseRequest is the wire request for one model invocation. Input is
// heterogeneous: Turn values for fresh turns, raw output items echoed from
// earlier responses, and functionCallOutputItem values carrying tool results.
type ResponseRequest struct {
	Model           string     `json:"model"`
	Input           []any      `json:"input"`
	Tools           []ToolSpec `json:"tools,omitempty"`
	MaxOutputTokens int        `json:"max_output_tokens,omitempty"`
}

// ModelResponse is the raw model response. Output items are kept unparsed;
// their shape varies across providers and API revisions, so interpretation
// is left to the call normalizer and text recoverer.
type ModelResponse struct {
	ID         string            `json:"id"`
	Status     string            `json:"status,omitempty"`
	OutputText string            `json:"output_text,omitempty"`
	Output     []json.RawMessage `json:"output"`
}

// ToolCall is one normalized tool invocation request produced by the model
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of executing one tool call. Output always
// carries a serialized payload, an error description on failure; a result
// is produced for every call received, never dropped.
type ToolResult struct {
	CallID  string
	Name    string
	Output  string
	Success bool
}

// functionCallOutputItem feeds one tool result back to the model as an
// input item on the next round
type functionCallOutputItem struct {
	Type   string `json:"type"` // "function_call_output"
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// Ensure OpenAIClient implements AIClient
var _ AIClient = (*OpenAIClient)(nil)
