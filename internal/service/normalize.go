package service

import (
	"encoding/json"
	"strings"
)

// callDecoder is the interface for shape-specific tool-call decoding.
// The upstream API has shipped several encodings for the same information;
// each gets its own decoder, selected by the item's type discriminator.
// New encodings are added as new decoders, never as deeper branching.
type callDecoder interface {
	Decode(data []byte) (*ToolCall, bool)
}

// callDecoders maps the item type discriminator to its decoder
var callDecoders = map[string]callDecoder{
	"function_call": &functionCallDecoder{},
	"tool_call":     &genericToolCallDecoder{},
}

// NormalizeToolCalls extracts the tool calls from a model response,
// whatever encoding the upstream API used for them. Unknown or malformed
// items are skipped, never propagated as errors.
func NormalizeToolCalls(resp *ModelResponse) []ToolCall {
	if resp == nil {
		return nil
	}

	var calls []ToolCall
	for _, raw := range resp.Output {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		decoder, ok := callDecoders[probe.Type]
		if !ok {
			continue
		}
		if call, ok := decoder.Decode(raw); ok {
			calls = append(calls, *call)
		}
	}
	return calls
}

// functionCallDecoder handles the direct "function_call" item shape:
// {type, call_id, name, arguments} with arguments as a JSON-encoded string
type functionCallDecoder struct{}

// Decode converts a function_call item to a ToolCall
func (d *functionCallDecoder) Decode(data []byte) (*ToolCall, bool) {
	var item struct {
		ID        string          `json:"id"`
		CallID    string          `json:"call_id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false
	}
	if item.Name == "" {
		return nil, false
	}

	id := item.CallID
	if id == "" {
		id = item.ID
	}

	return &ToolCall{
		ID:   id,
		Name: item.Name,
		Args: parseToolArgs(item.Arguments),
	}, true
}

// genericToolCallDecoder handles the older "tool_call" item shape where
// field names vary: tool_name vs name, and arguments as either a
// string-encoded JSON object or a native mapping
type genericToolCallDecoder struct{}

// Decode converts a tool_call item to a ToolCall
func (d *genericToolCallDecoder) Decode(data []byte) (*ToolCall, bool) {
	var item struct {
		ID        string          `json:"id"`
		CallID    string          `json:"call_id"`
		Name      string          `json:"name"`
		ToolName  string          `json:"tool_name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false
	}

	name := item.ToolName
	if name == "" {
		name = item.Name
	}
	if name == "" {
		return nil, false
	}

	id := item.CallID
	if id == "" {
		id = item.ID
	}

	return &ToolCall{
		ID:   id,
		Name: name,
		Args: parseToolArgs(item.Arguments),
	}, true
}

// parseToolArgs decodes tool arguments which arrive as either a native
// JSON object or a string-encoded one. A parse failure yields an empty
// mapping rather than failing the round.
func parseToolArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil && args != nil {
		return args
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &args); err == nil && args != nil {
			return args
		}
	}

	return map[string]any{}
}

// RecoverText extracts the best available final text from a model
// response. Priority: the flattened output_text field when the transport
// provides it, otherwise a walk over the output items collecting text
// from message content blocks and standalone output_text items. Never
// fails; the worst case is an empty string.
func RecoverText(resp *ModelResponse) string {
	if resp == nil {
		return ""
	}
	if t := strings.TrimSpace(resp.OutputText); t != "" {
		return t
	}

	type contentBlock struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	var parts []string
	for _, raw := range resp.Output {
		var item struct {
			Type    string          `json:"type"`
			Text    string          `json:"text"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}

		switch item.Type {
		case "message":
			var blocks []contentBlock
			if err := json.Unmarshal(item.Content, &blocks); err != nil {
				// Some revisions carry the message content as a plain string
				var s string
				if err := json.Unmarshal(item.Content, &s); err == nil && s != "" {
					parts = append(parts, s)
				}
				continue
			}
			for _, block := range blocks {
				switch block.Type {
				case "output_text", "text", "input_text":
					if block.Text != "" {
						parts = append(parts, block.Text)
					}
				}
			}
		case "output_text":
			// Some SDKs flatten this
			if item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}
