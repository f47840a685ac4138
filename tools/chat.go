// tools/chat.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/journal"
	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/metrics"
	"github.com/sammcj/tripnow-mcp/render"
	"github.com/sammcj/tripnow-mcp/types"
)

// ToolName is the name the tool is registered under
const ToolName = "chat_completions"

// Poster sends a JSON body and returns the raw response text
type Poster interface {
	Post(ctx context.Context, url string, headers map[string]string, body any) (string, error)
}

// Recorder stores one entry per invocation
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// ChatToolConfig holds the upstream and rendering settings of the tool
type ChatToolConfig struct {
	URL    string
	Model  string
	APIKey string
	// ResponseFormat is used for every call unless HonorFormatDirective is set,
	// in which case the request metadata decides.
	ResponseFormat       string
	HonorFormatDirective bool
}

// ChatTool exposes the TripNow chat completions API as an MCP tool
type ChatTool struct {
	client         Poster
	creds          CredentialResolver
	url            string
	model          string
	format         string
	honorDirective bool
	recorder       Recorder
	metrics        *metrics.Metrics
}

// ChatToolOption configures optional collaborators
type ChatToolOption func(*ChatTool)

// WithRecorder journals every invocation
func WithRecorder(r Recorder) ChatToolOption {
	return func(t *ChatTool) {
		t.recorder = r
	}
}

// WithToolMetrics counts invocations by outcome
func WithToolMetrics(m *metrics.Metrics) ChatToolOption {
	return func(t *ChatTool) {
		t.metrics = m
	}
}

// NewChatTool creates the chat_completions tool
func NewChatTool(client Poster, cfg ChatToolConfig, opts ...ChatToolOption) *ChatTool {
	format := cfg.ResponseFormat
	if format == "" {
		format = render.FormatText
	}
	t := &ChatTool{
		client:         client,
		creds:          CredentialResolver{ConfigKey: cfg.APIKey},
		url:            cfg.URL,
		model:          cfg.Model,
		format:         format,
		honorDirective: cfg.HonorFormatDirective,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetToolSpec returns the MCP tool specification
func (t *ChatTool) GetToolSpec() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Call the TripNow travel assistant API. It answers real-time flight and train ticket queries, "+
			"tracks live train and flight status, and answers rail and aviation knowledge questions "+
			"(ticket policy, refunds and changes, baggage rules)."),
		mcp.WithArray("messages",
			mcp.Required(),
			mcp.Description("Conversation messages, each with a role (e.g. 'user', 'assistant') and natural language content. "+
				"Examples: '帮我查询明天北京到上海的火车票', '帮我看看G123次列车现在到哪了', '学生票每年能买几次，要什么证件核验'."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"role":    map[string]any{"type": "string", "description": "Message role"},
					"content": map[string]any{"type": "string", "description": "Message content"},
				},
			}),
		),
	)
}

// Handle is the MCP tool handler. It reads the messages argument and the
// request metadata, then delegates to ChatCompletions.
func (t *ChatTool) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metadata := requestMetadata(ctx, request)

	items, err := messagesArgument(request.GetArguments())
	if err != nil {
		// Rejected calls are journaled and counted like any other invocation
		ctx, entry := t.begin(ctx, 0, metadata)
		t.finish(ctx, entry, err)
		return nil, err
	}

	return t.ChatCompletions(ctx, items, metadata)
}

func messagesArgument(args map[string]any) ([]any, error) {
	raw, ok := args["messages"]
	if !ok {
		return nil, &types.ToolError{Tool: ToolName, Message: "messages argument is required"}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &types.ToolError{Tool: ToolName, Message: fmt.Sprintf("messages must be an array, got %T", raw)}
	}
	return items, nil
}

// ChatCompletions resolves the API key, normalizes the messages, calls the
// upstream once and renders the answer. Errors are returned unmodified.
func (t *ChatTool) ChatCompletions(ctx context.Context, items []any, metadata map[string]string) (*mcp.CallToolResult, error) {
	ctx, entry := t.begin(ctx, len(items), metadata)

	result, err := t.invoke(ctx, items, metadata, &entry)
	t.finish(ctx, entry, err)
	return result, err
}

// begin opens the journal entry and the invocation-scoped logger
func (t *ChatTool) begin(ctx context.Context, messageCount int, metadata map[string]string) (context.Context, journal.Entry) {
	entry := journal.Entry{
		ID:           uuid.NewString(),
		Tool:         ToolName,
		StartedAt:    time.Now(),
		MessageCount: messageCount,
		Format:       t.resolveFormat(metadata),
	}
	logger := klog.FromContext(ctx).WithValues("tool", ToolName, "invocation", entry.ID)
	return klog.NewContext(ctx, logger), entry
}

func (t *ChatTool) invoke(ctx context.Context, items []any, metadata map[string]string, entry *journal.Entry) (*mcp.CallToolResult, error) {
	apiKey, err := t.creds.Resolve(metadata)
	if err != nil {
		return nil, err
	}

	payload := types.ChatRequest{
		Model:    t.model,
		Messages: NormalizeMessages(items),
		Stream:   false,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
	}

	raw, err := t.client.Post(ctx, t.url, headers, payload)
	if err != nil {
		return nil, err
	}
	entry.ResponseBytes = len(raw)

	return render.Render(raw, entry.Format, render.ChatCompletionShape)
}

func (t *ChatTool) resolveFormat(metadata map[string]string) string {
	if t.honorDirective {
		return ResolveFormat(metadata)
	}
	return t.format
}

// finish records metrics and the journal entry for one invocation
func (t *ChatTool) finish(ctx context.Context, entry journal.Entry, err error) {
	logger := klog.FromContext(ctx)

	entry.Duration = time.Since(entry.StartedAt)
	entry.Outcome = Outcome(err)
	if err != nil {
		entry.Error = err.Error()
		logger.V(logging.INFO).Info("tool call failed", "outcome", entry.Outcome, "err", err)
	} else {
		logger.V(logging.DEBUG).Info("tool call succeeded", "duration", entry.Duration, "responseBytes", entry.ResponseBytes)
	}

	t.metrics.ObserveToolCall(ToolName, entry.Outcome)

	if t.recorder == nil {
		return
	}
	// A cancelled call is still journaled
	if recErr := t.recorder.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		logger.Error(recErr, "failed to journal invocation")
	}
}

// Outcome classifies err for metrics and the journal
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, types.ErrUpstreamHTTP):
		return "http_error"
	case errors.Is(err, types.ErrUpstreamTransport):
		return "transport_error"
	case errors.Is(err, types.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, types.ErrInvalidArguments):
		return "invalid_arguments"
	default:
		return "error"
	}
}
