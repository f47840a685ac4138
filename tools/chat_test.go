package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/tripnow-mcp/journal"
	"github.com/sammcj/tripnow-mcp/llm"
	"github.com/sammcj/tripnow-mcp/metrics"
	"github.com/sammcj/tripnow-mcp/types"
)

const upstreamSuccess = `{"id":"x","object":"chat.completion","created":1,"model":"tripnow-travel-pro","choices":[{"index":0,"message":{"role":"assistant","content":"G123 is on time"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`

// fakeUpstream counts calls and captures the last request
type fakeUpstream struct {
	*httptest.Server
	calls   atomic.Int32
	mu      sync.Mutex
	auth    string
	rawBody []byte
}

func newFakeUpstream(t *testing.T, status int, body string) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		f.rawBody = data
		f.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUpstream) lastBody(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var body map[string]any
	require.NoError(t, json.Unmarshal(f.rawBody, &body))
	return body
}

func (f *fakeUpstream) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

// memRecorder keeps journal entries in memory
type memRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func newTool(url, apiKey string, opts ...ChatToolOption) *ChatTool {
	return NewChatTool(llm.New(0), ChatToolConfig{
		URL:    url,
		Model:  "tripnow-travel-pro",
		APIKey: apiKey,
	}, opts...)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestChatCompletionsPassthrough(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	tool := newTool(up.URL, "cfg-key")

	result, err := tool.ChatCompletions(context.Background(), []any{
		map[string]any{"role": "user", "content": "G123 到哪了"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, upstreamSuccess, resultText(t, result))
	assert.Nil(t, result.StructuredContent)
	assert.False(t, result.IsError)

	assert.Equal(t, int32(1), up.calls.Load())
	assert.Equal(t, "Bearer cfg-key", up.lastAuth())
	body := up.lastBody(t)
	assert.Equal(t, "tripnow-travel-pro", body["model"])
	assert.Equal(t, false, body["stream"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "G123 到哪了"}}, body["messages"])
}

func TestChatCompletionsEmptyMessages(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	tool := newTool(up.URL, "cfg-key")

	_, err := tool.ChatCompletions(context.Background(), []any{}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), up.calls.Load())
	up.mu.Lock()
	raw := string(up.rawBody)
	up.mu.Unlock()
	assert.JSONEq(t, `{"model":"tripnow-travel-pro","messages":[],"stream":false}`, raw)
}

func TestChatCompletionsCredentialFromMetadata(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	tool := newTool(up.URL, "")

	_, err := tool.ChatCompletions(context.Background(), []any{"hi"}, map[string]string{"tripnow-api-key": "X"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer X", up.lastAuth())
}

func TestChatCompletionsCredentialMissingMakesNoCall(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	rec := &memRecorder{}
	tool := newTool(up.URL, "", WithRecorder(rec))

	result, err := tool.ChatCompletions(context.Background(), []any{"hi"}, map[string]string{"Authorization": "Bearer other"})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCredentialMissing))
	assert.Equal(t, int32(0), up.calls.Load())

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "credential_missing", rec.entries[0].Outcome)
}

func TestChatCompletionsPropagatesHTTPError(t *testing.T) {
	up := newFakeUpstream(t, http.StatusInternalServerError, `{"error":"boom"}`)
	tool := newTool(up.URL, "cfg-key")

	_, err := tool.ChatCompletions(context.Background(), []any{"hi"}, nil)
	require.Error(t, err)
	var httpErr *types.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestChatCompletionsJSONFormat(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	tool := NewChatTool(llm.New(0), ChatToolConfig{
		URL: up.URL, Model: "tripnow-travel-pro", APIKey: "k", ResponseFormat: "json",
	})

	result, err := tool.ChatCompletions(context.Background(), []any{"hi"}, nil)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "G123 is on time")
	assert.NotNil(t, result.StructuredContent)
}

func TestChatCompletionsMalformedJSONInJSONMode(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, `<html>oops</html>`)
	tool := NewChatTool(llm.New(0), ChatToolConfig{URL: up.URL, Model: "m", APIKey: "k", ResponseFormat: "json"})

	_, err := tool.ChatCompletions(context.Background(), []any{"hi"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMalformedPayload))
}

func TestChatCompletionsFormatDirective(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)

	ignoring := newTool(up.URL, "k")
	result, err := ignoring.ChatCompletions(context.Background(), []any{"hi"}, map[string]string{"responseFormat": "json"})
	require.NoError(t, err)
	assert.Nil(t, result.StructuredContent)

	honoring := NewChatTool(llm.New(0), ChatToolConfig{URL: up.URL, Model: "m", APIKey: "k", HonorFormatDirective: true})
	result, err = honoring.ChatCompletions(context.Background(), []any{"hi"}, map[string]string{"responseFormat": "json"})
	require.NoError(t, err)
	assert.NotNil(t, result.StructuredContent)

	result, err = honoring.ChatCompletions(context.Background(), []any{"hi"}, nil)
	require.NoError(t, err)
	assert.Nil(t, result.StructuredContent)
}

func TestChatCompletionsRecordsAndCounts(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	rec := &memRecorder{err: errors.New("disk full")}
	reg := prometheus.NewRegistry()
	tool := newTool(up.URL, "secret-key", WithRecorder(rec), WithToolMetrics(metrics.New(reg)))

	_, err := tool.ChatCompletions(context.Background(), []any{"a", "b"}, nil)
	require.NoError(t, err, "journal failures must not fail the call")

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ToolName, e.Tool)
	assert.Equal(t, 2, e.MessageCount)
	assert.Equal(t, "text", e.Format)
	assert.Equal(t, "ok", e.Outcome)
	assert.Equal(t, len(upstreamSuccess), e.ResponseBytes)
	assert.NotContains(t, e.Error, "secret-key")

	expected := `
# HELP tripnow_tool_calls_total Total MCP tool invocations by outcome
# TYPE tripnow_tool_calls_total counter
tripnow_tool_calls_total{outcome="ok",tool="chat_completions"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tripnow_tool_calls_total"))
}

func TestHandleReadsArgumentsAndMetadata(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	tool := newTool(up.URL, "")

	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = map[string]any{
		"messages": []any{map[string]any{"role": "user", "content": "学生票每年能买几次"}},
	}
	ctx := WithMetadata(context.Background(), map[string]string{"tripnow_api_key": "hdr-key"})

	result, err := tool.Handle(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, upstreamSuccess, resultText(t, result))
	assert.Equal(t, "Bearer hdr-key", up.lastAuth())
}

func TestHandleRejectsNonArrayMessages(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, upstreamSuccess)
	rec := &memRecorder{}
	reg := prometheus.NewRegistry()
	tool := newTool(up.URL, "k", WithRecorder(rec), WithToolMetrics(metrics.New(reg)))

	for _, args := range []map[string]any{{}, {"messages": "hello"}, {"messages": map[string]any{"role": "user"}}} {
		req := mcp.CallToolRequest{}
		req.Params.Name = ToolName
		req.Params.Arguments = args

		_, err := tool.Handle(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrInvalidArguments))
	}
	assert.Equal(t, int32(0), up.calls.Load())

	require.Len(t, rec.entries, 3)
	for _, e := range rec.entries {
		assert.Equal(t, "invalid_arguments", e.Outcome)
		assert.Equal(t, 0, e.MessageCount)
		assert.NotEmpty(t, e.ID)
		assert.Contains(t, e.Error, "messages")
	}

	expected := `
# HELP tripnow_tool_calls_total Total MCP tool invocations by outcome
# TYPE tripnow_tool_calls_total counter
tripnow_tool_calls_total{outcome="invalid_arguments",tool="chat_completions"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tripnow_tool_calls_total"))
}

func TestGetToolSpec(t *testing.T) {
	spec := newTool("http://unused", "k").GetToolSpec()
	assert.Equal(t, "chat_completions", spec.Name)
	assert.NotEmpty(t, spec.Description)
	assert.Contains(t, spec.InputSchema.Required, "messages")
	prop, ok := spec.InputSchema.Properties["messages"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", prop["type"])
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "credential_missing", Outcome(&types.CredentialError{}))
	assert.Equal(t, "http_error", Outcome(&types.UpstreamHTTPError{StatusCode: 500}))
	assert.Equal(t, "transport_error", Outcome(&types.UpstreamTransportError{Err: io.ErrUnexpectedEOF}))
	assert.Equal(t, "malformed_payload", Outcome(&types.PayloadError{Message: "x"}))
	assert.Equal(t, "invalid_arguments", Outcome(&types.ToolError{Tool: ToolName}))
	assert.Equal(t, "error", Outcome(errors.New("other")))
}
