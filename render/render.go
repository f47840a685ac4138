// Package render turns raw upstream bodies into MCP tool results.
package render

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/tripnow-mcp/types"
)

// Response formats. Anything other than FormatJSON is passed through verbatim.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Shape is a success model the renderer tries before falling back to the error shape
type Shape struct {
	Schema    *Schema
	Summarize func(raw []byte) (string, error)
}

// ChatCompletionShape matches types.ChatCompletionResponse
var ChatCompletionShape = Shape{
	Schema: ChatCompletionSchema,
	Summarize: func(raw []byte) (string, error) {
		var resp types.ChatCompletionResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", err
		}
		return ChatCompletionMarkdown(&resp), nil
	},
}

// Render builds the tool result for raw. In JSON mode the body must be a JSON
// object; it is matched against shape and, failing that, rendered as an error
// payload. isError is false in every mode.
func Render(raw string, format string, shape Shape) (*mcp.CallToolResult, error) {
	if !IsJSON(format) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(raw)},
			IsError: false,
		}, nil
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	text, matched := summarize(raw, obj, shape)
	if !matched {
		text = ErrorMarkdown(errorResponseFrom(obj))
	}

	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(text)},
		StructuredContent: obj,
		IsError:           false,
	}, nil
}

// IsJSON reports whether format selects the structured rendering. Only the
// exact value "json" does; "JSON" or " json " pass through like any other format.
func IsJSON(format string) bool {
	return format == FormatJSON
}

func summarize(raw string, obj map[string]any, shape Shape) (string, bool) {
	if shape.Schema == nil || shape.Summarize == nil {
		return "", false
	}
	if err := shape.Schema.Validate(obj); err != nil {
		return "", false
	}
	text, err := shape.Summarize([]byte(raw))
	if err != nil {
		return "", false
	}
	return text, true
}

// decodeObject parses raw as a single JSON object, keeping numbers verbatim
func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, &types.PayloadError{Message: "invalid JSON", Err: err}
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, &types.PayloadError{Message: "unexpected data after JSON document"}
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, &types.PayloadError{Message: "expected a JSON object"}
	}
	return obj, nil
}

// DecodeChatCompletion parses raw into a ChatCompletionResponse if it has the success shape
func DecodeChatCompletion(raw string) (*types.ChatCompletionResponse, bool) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, false
	}
	if err := ChatCompletionSchema.Validate(obj); err != nil {
		return nil, false
	}
	var resp types.ChatCompletionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false
	}
	return &resp, true
}
