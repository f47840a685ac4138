package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/tripnow-mcp/render"
)

// FormatDirectiveKeys are the metadata keys checked for a response format, in order.
// The last one is how an HTTP "responseFormat" header looks once flattened.
var FormatDirectiveKeys = []string{"responseFormat", "ResponseFormat", "response_format", "responseformat"}

type metadataKey struct{}

// WithMetadata attaches flattened request metadata to ctx
func WithMetadata(ctx context.Context, metadata map[string]string) context.Context {
	return context.WithValue(ctx, metadataKey{}, metadata)
}

// MetadataFromContext returns the metadata attached by WithMetadata, or nil
func MetadataFromContext(ctx context.Context) map[string]string {
	md, _ := ctx.Value(metadataKey{}).(map[string]string)
	return md
}

// ResolveFormat returns the requested response format, "markdown" when absent
func ResolveFormat(metadata map[string]string) string {
	for _, key := range FormatDirectiveKeys {
		if v := metadata[key]; v != "" {
			return v
		}
	}
	return render.FormatMarkdown
}

// requestMetadata merges context metadata with string fields of the call's
// _meta object. Context values win.
func requestMetadata(ctx context.Context, request mcp.CallToolRequest) map[string]string {
	merged := make(map[string]string)
	if meta := request.Params.Meta; meta != nil {
		for k, v := range meta.AdditionalFields {
			if s, ok := v.(string); ok {
				merged[k] = s
			}
		}
	}
	for k, v := range MetadataFromContext(ctx) {
		merged[k] = v
	}
	return merged
}
