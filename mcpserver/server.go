package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/tools"
)

// ServerName is announced to MCP clients during initialization
const ServerName = "tripnow_mcp"

const instructions = "TripNow travel assistant. Use chat_completions for flight and train ticket queries, " +
	"live train or flight status, and rail or aviation policy questions. Pass the whole conversation as messages."

type MCPServer struct {
	server *server.MCPServer
	logger klog.Logger
}

func NewMCPServer(chat *tools.ChatTool, version string) *MCPServer {
	logger := logging.Named("mcpserver")

	s := &MCPServer{
		server: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(true),
			server.WithLogging(),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
		logger: logger,
	}

	s.server.AddTool(chat.GetToolSpec(), chat.Handle)
	s.server.AddNotificationHandler("notifications/initialized", s.handleNotification)

	logger.V(logging.DEBUG).Info("MCP server created", "tool", tools.ToolName, "version", version)
	return s
}

func (s *MCPServer) handleNotification(ctx context.Context, notification mcp.JSONRPCNotification) {
	s.logger.V(logging.DEBUG).Info("Received notification", "method", notification.Method)
}

// MCP returns the underlying mcp-go server
func (s *MCPServer) MCP() *server.MCPServer {
	return s.server
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
// Only stderr is used for logs so stdout stays a clean JSON-RPC stream.
func (s *MCPServer) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")

	stdio := server.NewStdioServer(s.server)
	stdio.SetErrorLogger(klog.NewStandardLogger("ERROR"))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		s.logger.Error(err, "Server error")
		return fmt.Errorf("server error: %w", err)
	}

	s.logger.Info("MCP server stopped")
	return nil
}

// StreamableHandler serves the streamable HTTP transport without sessions.
// Request headers reach the tool as metadata through HTTPContextFunc.
func (s *MCPServer) StreamableHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHTTPContextFunc(HTTPContextFunc),
		server.WithStateLess(true),
	)
}

// HTTPContextFunc stores the flattened request headers in ctx
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return tools.WithMetadata(ctx, FlattenHeaders(r.Header))
}

// FlattenHeaders keeps the first value of every header under both its
// canonical and its lower-cased name.
func FlattenHeaders(h http.Header) map[string]string {
	md := make(map[string]string, len(h)*2)
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		md[key] = values[0]
		md[strings.ToLower(key)] = values[0]
	}
	return md
}
