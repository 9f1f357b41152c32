// CLAUDE:SUMMARY TCP listener with SO_REUSEADDR and a serve-until-cancelled HTTP loop.
// Package listener binds the dev server socket. The socket is created with
// SO_REUSEADDR so a restarted server can bind the same port immediately,
// even while connections from the previous process sit in TIME_WAIT.
//
// Typical usage:
//
//	l, err := listener.Listen(ctx, ":8765", logger)
//	if listener.IsAddrInUse(err) {
//	    // another process holds the port
//	}
//	defer l.Close()
//	err = l.Serve(ctx, handler) // returns nil once ctx is cancelled
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight requests
// once its context is cancelled.
const DefaultShutdownTimeout = 5 * time.Second

// Listener owns a bound TCP socket and serves HTTP on it.
type Listener struct {
	ln              net.Listener
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Option configures a Listener.
type Option func(*Listener)

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(l *Listener) { l.shutdownTimeout = d }
}

// Listen binds addr ("host:port", empty host for all interfaces) with
// SO_REUSEADDR set. Bind failures are returned as *BindError.
func Listen(ctx context.Context, addr string, logger *slog.Logger, opts ...Option) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Cause: err}
	}
	l := &Listener{
		ln:              ln,
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, o := range opts {
		o(l)
	}
	logger.Debug("listener ready", "addr", ln.Addr().String())
	return l, nil
}

// Addr returns the bound address. With port 0 it carries the port picked by
// the kernel.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve runs an HTTP server on the socket until ctx is cancelled, then shuts
// it down and returns nil. The socket is closed when Serve returns.
func (l *Listener) Serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(l.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listener: serve: %w", err)
	case <-ctx.Done():
	}

	l.logger.Info("listener shutting down", "addr", l.ln.Addr().String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		<-errCh
		return fmt.Errorf("listener: shutdown: %w", err)
	}
	<-errCh
	return nil
}

// Close releases the socket. Safe to call after Serve returned.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
