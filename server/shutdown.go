// server/shutdown.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

// ShutdownTimeout bounds the whole graceful shutdown sequence
const ShutdownTimeout = 30 * time.Second

// Closer is a resource released after the server stops, such as the journal
type Closer interface {
	Close() error
}

// ShutdownManager handles graceful shutdown
type ShutdownManager struct {
	server     *http.Server
	closers    []Closer
	waitGroup  sync.WaitGroup
	shutdownCh chan struct{}
	once       sync.Once
	logger     klog.Logger
}

// NewShutdownManager creates a new shutdown manager. closers run in order
// once the server has stopped accepting requests.
func NewShutdownManager(srv *http.Server, closers ...Closer) *ShutdownManager {
	return &ShutdownManager{
		server:     srv,
		closers:    closers,
		shutdownCh: make(chan struct{}),
		logger:     klog.Background().WithName("shutdown"),
	}
}

// HandleGracefulShutdown waits for SIGINT, SIGTERM or ctx cancellation,
// then shuts the server down and releases the closers.
func (sm *ShutdownManager) HandleGracefulShutdown(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		sm.logger.Info("Received signal", "signal", sig)
	case <-ctx.Done():
		sm.logger.Info("Context cancelled, shutting down")
	}

	return sm.Shutdown()
}

// Shutdown runs the shutdown sequence once. Later calls return nil.
func (sm *ShutdownManager) Shutdown() error {
	var err error
	sm.once.Do(func() {
		err = sm.shutdown()
	})
	return err
}

func (sm *ShutdownManager) shutdown() error {
	close(sm.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	result := make(chan error, 1)
	sm.waitGroup.Add(1)
	go func() {
		defer sm.waitGroup.Done()
		result <- sm.performGracefulShutdown(ctx)
	}()

	select {
	case err := <-result:
		sm.logger.Info("Graceful shutdown completed")
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// performGracefulShutdown handles the actual shutdown sequence
func (sm *ShutdownManager) performGracefulShutdown(ctx context.Context) error {
	var errs []error

	// Stop accepting new connections
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error(err, "Error during server shutdown")
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	for _, c := range sm.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			sm.logger.Error(err, "Error closing resource")
			errs = append(errs, fmt.Errorf("close error: %w", err))
		}
	}

	return errors.Join(errs...)
}

// IsShuttingDown returns true if shutdown has been initiated
func (sm *ShutdownManager) IsShuttingDown() bool {
	select {
	case <-sm.shutdownCh:
		return true
	default:
		return false
	}
}
