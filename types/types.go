// types/types.go
package types

import "encoding/json"

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body sent to the chat completions endpoint
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Choice is a single completion alternative
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// UnmarshalJSON accepts both finish_reason and finishReason.
func (c *Choice) UnmarshalJSON(data []byte) error {
	var aux struct {
		Index             int     `json:"index"`
		Message           Message `json:"message"`
		FinishReason      *string `json:"finish_reason"`
		FinishReasonCamel *string `json:"finishReason"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Index = aux.Index
	c.Message = aux.Message
	c.FinishReason = aux.FinishReason
	if c.FinishReason == nil {
		c.FinishReason = aux.FinishReasonCamel
	}
	return nil
}

// Usage holds token accounting reported by the upstream.
// TotalTokens is expected to equal PromptTokens+CompletionTokens but is not checked.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UnmarshalJSON accepts snake_case and camelCase field names.
func (u *Usage) UnmarshalJSON(data []byte) error {
	var aux struct {
		PromptTokens          *int `json:"prompt_tokens"`
		CompletionTokens      *int `json:"completion_tokens"`
		TotalTokens           *int `json:"total_tokens"`
		PromptTokensCamel     *int `json:"promptTokens"`
		CompletionTokensCamel *int `json:"completionTokens"`
		TotalTokensCamel      *int `json:"totalTokens"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.PromptTokens = firstInt(aux.PromptTokens, aux.PromptTokensCamel)
	u.CompletionTokens = firstInt(aux.CompletionTokens, aux.CompletionTokensCamel)
	u.TotalTokens = firstInt(aux.TotalTokens, aux.TotalTokensCamel)
	return nil
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// ChatCompletionResponse represents a successful response from the chat completions endpoint
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ErrorResponse is the fallback shape for error payloads
type ErrorResponse struct {
	Error   *string `json:"error,omitempty"`
	Message *string `json:"message,omitempty"`
}
