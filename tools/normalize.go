package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sammcj/tripnow-mcp/types"
)

const defaultRole = "user"

// NormalizeMessages coerces caller-supplied items into role/content pairs.
// Mappings get role "user" and empty content when those keys are absent, typed
// messages are copied, and anything else becomes a user message holding its
// string form. The result has one element per input item, in order.
func NormalizeMessages(items []any) []types.Message {
	messages := make([]types.Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, normalizeMessage(item))
	}
	return messages
}

func normalizeMessage(item any) types.Message {
	switch v := item.(type) {
	case map[string]any:
		msg := types.Message{Role: defaultRole}
		if role, ok := v["role"]; ok && role != nil {
			msg.Role = stringify(role)
		}
		if content, ok := v["content"]; ok && content != nil {
			msg.Content = stringify(content)
		}
		return msg
	case map[string]string:
		msg := types.Message{Role: defaultRole}
		if role, ok := v["role"]; ok {
			msg.Role = role
		}
		msg.Content = v["content"]
		return msg
	case types.Message:
		return v
	case *types.Message:
		if v != nil {
			return *v
		}
		return types.Message{Role: defaultRole}
	default:
		return types.Message{Role: defaultRole, Content: stringify(item)}
	}
}

// stringify renders a decoded JSON value as text
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case map[string]any, []any:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(data)
	default:
		return fmt.Sprint(s)
	}
}
