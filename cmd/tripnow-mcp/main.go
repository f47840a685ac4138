// The entry point for the TripNow MCP server. It serves the chat_completions
// tool over stdio or streamable HTTP, or runs a local chat prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/config"
	"github.com/sammcj/tripnow-mcp/interactive"
	"github.com/sammcj/tripnow-mcp/journal"
	"github.com/sammcj/tripnow-mcp/llm"
	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/mcpserver"
	"github.com/sammcj/tripnow-mcp/metrics"
	"github.com/sammcj/tripnow-mcp/server"
	"github.com/sammcj/tripnow-mcp/tools"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("tripnow-mcp", flag.ContinueOnError)
	klog.InitFlags(fs)
	configPath := fs.String("config", "", "Path to the YAML config file (default ~/.config/tripnow-mcp/config.yaml)")
	envFile := fs.String("env-file", ".env", "Optional .env file loaded before the config")
	transport := fs.String("transport", "", "Override server.transport: stdio or http")
	interactiveMode := fs.Bool("interactive", false, "Chat with the TripNow API from the terminal")
	writeConfig := fs.String("write-config", "", "Write the effective config to this path and exit")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		klog.Fatalf("failed to parse flags: %v", err)
	}

	// make sure to flush logs before exiting
	defer klog.Flush()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		klog.Fatalf("failed to load %s: %v", *envFile, err)
	}
	cfg, err := config.Resolve(*configPath)
	if err != nil {
		klog.Fatalf("failed to load config: %v", err)
	}
	if *transport != "" {
		cfg.Server.Transport = strings.ToLower(*transport)
	}

	// -v on the command line wins over logging.level
	vSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			vSet = true
		}
	})
	if !vSet {
		_ = fs.Set("v", strconv.Itoa(logging.Verbosity(cfg.Logging.Level)))
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			klog.Fatalf("failed to write config: %v", err)
		}
		fmt.Printf("Config written to %s\n", *writeConfig)
		return
	}

	// graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()

	if err := run(ctx, cfg, *interactiveMode); err != nil {
		klog.Background().Error(err, "tripnow-mcp terminated with error")
		klog.Flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, interactiveMode bool) error {
	logger := klog.FromContext(ctx)

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enable {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		gatherer = reg
	}

	var (
		history  interactive.HistorySource
		lister   server.InvocationLister
		closers  []server.Closer
		toolOpts = []tools.ChatToolOption{tools.WithToolMetrics(m)}
	)
	if cfg.Journal.Enable {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		// Close is idempotent; in HTTP mode the shutdown manager closes it first
		defer j.Close()
		history, lister = j, j
		closers = append(closers, j)
		toolOpts = append(toolOpts, tools.WithRecorder(j))
		logger.V(logging.INFO).Info("Journal enabled", "path", cfg.Journal.Path)
	}

	client := llm.New(cfg.Upstream.Timeout, llm.WithMetrics(m))
	chat := tools.NewChatTool(client, tools.ChatToolConfig{
		URL:                  cfg.Upstream.URL,
		Model:                cfg.Upstream.Model,
		APIKey:               cfg.APIKey,
		ResponseFormat:       cfg.Tool.ResponseFormat,
		HonorFormatDirective: cfg.Tool.HonorFormatDirective,
	}, toolOpts...)

	if cfg.APIKey == "" {
		logger.Info("No API key configured; callers must send one in request metadata")
	}

	if interactiveMode {
		return interactive.New(cfg, chat, history).Start(ctx)
	}

	mcpSrv := mcpserver.NewMCPServer(chat, version)

	switch cfg.Server.Transport {
	case config.TransportStdio:
		return mcpSrv.Serve(ctx)
	case config.TransportHTTP:
		srv := server.New(cfg.Addr(), server.Options{
			EndpointPath: cfg.Server.EndpointPath,
			MCPHandler:   mcpSrv.StreamableHandler(),
			Metrics:      m,
			Gatherer:     gatherer,
			Journal:      lister,
		})

		// The journal closes only after in-flight requests have drained
		sm := server.NewShutdownManager(srv.HTTPServer(), closers...)
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
			stop()
		}()

		if err := sm.HandleGracefulShutdown(serveCtx); err != nil {
			return err
		}
		return <-errCh
	default:
		return errors.New("unknown transport: " + cfg.Server.Transport)
	}
}
