// interactive/interactive.go
package interactive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/config"
	"github.com/sammcj/tripnow-mcp/journal"
	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/render"
	"github.com/sammcj/tripnow-mcp/types"
)

const historyLimit = 10

// Chatter runs one chat completion over the whole conversation
type Chatter interface {
	ChatCompletions(ctx context.Context, items []any, metadata map[string]string) (*mcp.CallToolResult, error)
}

// HistorySource lists recent tool invocations
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Interactive struct {
	logger       klog.Logger
	scanner      *bufio.Reader
	out          io.Writer
	cfg          *config.Config
	chat         Chatter
	journal      HistorySource
	conversation []types.Message
}

func New(cfg *config.Config, chat Chatter, j HistorySource) *Interactive {
	return &Interactive{
		scanner: bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		logger:  logging.Named("interactive"),
		cfg:     cfg,
		chat:    chat,
		journal: j,
	}
}

// WithIO replaces stdin and stdout
func (i *Interactive) WithIO(in io.Reader, out io.Writer) *Interactive {
	i.scanner = bufio.NewReader(in)
	i.out = out
	return i
}

// Start reads prompts until quit, EOF or ctx cancellation
func (i *Interactive) Start(ctx context.Context) error {
	fmt.Fprintln(i.out, "\n=== TripNow Chat Interface Ready ===")
	fmt.Fprintln(i.out, "Type 'quit' or press Ctrl+C to exit, '/reset' to start over, '/history' for recent calls")
	fmt.Fprintln(i.out, "Model:", i.cfg.Upstream.Model)
	fmt.Fprintf(i.out, "Using endpoint: %s\n", i.cfg.Upstream.URL)
	fmt.Fprintln(i.out, "====================================")

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(i.out, "\nEnter your message: ")
		input, err := i.scanner.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && input != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(i.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(i.out, "Goodbye!")
			return nil
		case "/reset":
			i.conversation = nil
			fmt.Fprintln(i.out, "Conversation cleared.")
			continue
		case "/history":
			i.printHistory(ctx)
			continue
		}

		i.send(ctx, input)
	}
}

func (i *Interactive) send(ctx context.Context, input string) {
	i.conversation = append(i.conversation, types.Message{Role: "user", Content: input})

	items := make([]any, len(i.conversation))
	for n, m := range i.conversation {
		items[n] = m
	}

	i.logger.V(logging.DEBUG).Info("Sending conversation", "messages", len(items))
	result, err := i.chat.ChatCompletions(ctx, items, nil)
	if err != nil {
		// Drop the unanswered turn so the user can retry it
		i.conversation = i.conversation[:len(i.conversation)-1]
		fmt.Fprintf(i.out, "\nError: %v\n", err)
		return
	}

	display, reply := replyFrom(result)
	if display == "" {
		fmt.Fprintln(i.out, "\nNo response received.")
		return
	}
	if reply != nil {
		i.conversation = append(i.conversation, *reply)
	}

	fmt.Fprintf(i.out, "\n%s\n", display)
}

// replyFrom returns the text to show and, when the body is a completion,
// the assistant message to keep in the conversation.
func replyFrom(result *mcp.CallToolResult) (string, *types.Message) {
	if result == nil {
		return "", nil
	}

	var text string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}

	raw := text
	structured := false
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			raw = string(data)
			structured = true
		}
	}

	resp, ok := render.DecodeChatCompletion(raw)
	if !ok {
		return text, nil
	}
	if !structured {
		text = render.ChatCompletionMarkdown(resp)
	}
	if len(resp.Choices) == 0 {
		return text, nil
	}
	msg := resp.Choices[0].Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	return text, &msg
}

func (i *Interactive) printHistory(ctx context.Context) {
	if i.journal == nil {
		fmt.Fprintln(i.out, "\nJournal is disabled. Set journal.enable in the config file.")
		return
	}

	entries, err := i.journal.Recent(ctx, historyLimit)
	if err != nil {
		i.logger.Error(err, "Failed to read journal")
		fmt.Fprintf(i.out, "\nError: %v\n", err)
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Outcome,
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
			strconv.Itoa(e.MessageCount),
			e.Error,
		})
	}
	fmt.Fprintf(i.out, "\n%s", render.Table([]string{"Started", "Outcome", "Duration (ms)", "Messages", "Error"}, rows))
}
