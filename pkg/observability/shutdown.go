package observability

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
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdownFunc struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager handles graceful shutdown of services.
//
// The HTTP server is stopped first, then registered funcs run in
// registration order so later funcs may rely on earlier ones having
// drained (audit pool before the database it writes to).
type ShutdownManager struct {
	logger          *Logger
	server          *http.Server
	shutdownFuncs   []namedShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, namedShutdownFunc{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT/SIGTERM or until serverErr yields,
// then performs the shutdown sequence
func (sm *ShutdownManager) WaitForShutdown(serverErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sm.logger.WithError(err).Error("HTTP server failed, shutting down")
		}
	}

	return sm.Shutdown()
}

// Shutdown stops the server and runs every registered func under one timeout
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	var errs []error

	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	sm.mu.Lock()
	funcs := append([]namedShutdownFunc(nil), sm.shutdownFuncs...)
	sm.mu.Unlock()

	for _, f := range funcs {
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached, skipping remaining shutdown functions")
			errs = append(errs, fmt.Errorf("shutdown timeout reached before %s", f.name))
			break
		}

		log := sm.logger.WithField("component", f.name)
		if err := f.fn(ctx); err != nil {
			log.WithError(err).Error("Shutdown function failed")
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		log.Info("Shutdown function complete")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
