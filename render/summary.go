package render

import (
	"fmt"
	"strings"

	"github.com/sammcj/tripnow-mcp/types"
)

// ChatCompletionMarkdown summarises a successful completion
func ChatCompletionMarkdown(resp *types.ChatCompletionResponse) string {
	var sb strings.Builder
	sb.WriteString("## TripNow Travel Assistant Reply\n")
	sb.WriteString(fmt.Sprintf("- **Model**: %s\n", resp.Model))
	sb.WriteString(fmt.Sprintf("- **Response ID**: %s\n", resp.ID))

	for _, choice := range resp.Choices {
		sb.WriteString("\n### Reply\n")
		sb.WriteString(choice.Message.Content)
		sb.WriteString("\n")
	}

	sb.WriteString("\n### Token Usage\n")
	sb.WriteString(fmt.Sprintf("- **Prompt tokens**: %d\n", resp.Usage.PromptTokens))
	sb.WriteString(fmt.Sprintf("- **Completion tokens**: %d\n", resp.Usage.CompletionTokens))
	sb.WriteString(fmt.Sprintf("- **Total tokens**: %d\n", resp.Usage.TotalTokens))

	return sb.String()
}

// ErrorMarkdown summarises an error payload on a single line
func ErrorMarkdown(resp *types.ErrorResponse) string {
	msg := "unknown error"
	switch {
	case resp.Error != nil && *resp.Error != "":
		msg = *resp.Error
	case resp.Message != nil && *resp.Message != "":
		msg = *resp.Message
	}
	return "⚠️ error: " + msg
}

// errorResponseFrom reads the error shape out of an arbitrary object.
// An OpenAI style {"error":{"message":...}} is flattened to its message.
func errorResponseFrom(obj map[string]any) *types.ErrorResponse {
	resp := &types.ErrorResponse{}
	switch v := obj["error"].(type) {
	case string:
		resp.Error = &v
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			resp.Error = &m
		}
	}
	if m, ok := obj["message"].(string); ok {
		resp.Message = &m
	}
	return resp
}
