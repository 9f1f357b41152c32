// CLAUDE:SUMMARY CLI entry point for devserve — no-cache static dev server with module script cache-busting.
// Command devserve serves the current directory for front-end development
// with every form of HTTP caching disabled.
//
// Usage:
//
//	devserve                       # serve . on :8765
//	devserve -p 9000               # another port
//	devserve -config devserve.yaml # settings from a YAML file
//
// Settings resolve as flag > environment > config file > defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hazyhaar/devserve/devserve"
	"github.com/hazyhaar/devserve/listener"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup runs before os.Exit.
func realMain() int {
	cfg, err := resolveConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, logger, cfg, os.Stdout, os.Stderr)
}

// resolveConfig layers flags over environment over the optional config file
// over defaults, and validates the result.
func resolveConfig(args []string, getenv func(string) string, stderr io.Writer) (*devserve.Config, error) {
	fs := flag.NewFlagSet("devserve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		port       int
		host       string
		root       string
		configPath string
		rewrite    string
		logLevel   string
	)
	fs.IntVar(&port, "port", devserve.DefaultPort, "port to serve on")
	fs.IntVar(&port, "p", devserve.DefaultPort, "shorthand for -port")
	fs.StringVar(&host, "host", "", "interface to bind (empty = all)")
	fs.StringVar(&root, "root", ".", "directory to serve")
	fs.StringVar(&configPath, "config", "", "path to devserve.yaml config file")
	fs.StringVar(&rewrite, "rewrite", devserve.RewritePattern, "entry point rewrite mode: pattern, token")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &devserve.Config{}
	if configPath != "" {
		loaded, err := devserve.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if v := env(getenv, "DEVSERVE_PORT", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, &devserve.ConfigError{Field: "port", Value: v}
		}
		cfg.Port = p
	}
	cfg.Host = env(getenv, "DEVSERVE_HOST", cfg.Host)
	cfg.Root = env(getenv, "DEVSERVE_ROOT", cfg.Root)
	cfg.RewriteMode = env(getenv, "DEVSERVE_REWRITE", cfg.RewriteMode)
	cfg.LogLevel = env(getenv, "LOG_LEVEL", cfg.LogLevel)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port", "p":
			cfg.Port = port
		case "host":
			cfg.Host = host
		case "root":
			cfg.Root = root
		case "rewrite":
			cfg.RewriteMode = rewrite
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run binds, serves until ctx is cancelled and returns the process exit code.
func run(ctx context.Context, logger *slog.Logger, cfg *devserve.Config, stdout, stderr io.Writer) int {
	l, err := listener.Listen(ctx, cfg.Addr(), logger)
	if err != nil {
		if listener.IsAddrInUse(err) {
			printPortInUse(stderr, cfg.Port)
			return 1
		}
		logger.Error("devserve: bind failed", "addr", cfg.Addr(), "error", err)
		return 1
	}
	defer l.Close()

	h := devserve.New(*cfg, devserve.WithLogger(logger))

	fmt.Fprintf(stdout, "devserve at http://localhost:%d (serving %s)\n", l.Port(), cfg.Root)
	fmt.Fprintln(stdout, "   Cache-busting enabled - browsers will always fetch fresh files")
	fmt.Fprintln(stdout, "   Press Ctrl+C to stop")

	if err := l.Serve(ctx, h); err != nil {
		logger.Error("devserve: serve failed", "error", err)
		return 1
	}
	fmt.Fprintln(stdout, "\n   Shutting down...")
	return 0
}

func printPortInUse(w io.Writer, port int) {
	fmt.Fprintf(w, "Port %d is already in use.\n\n", port)
	fmt.Fprintln(w, "   To see what's using it:")
	fmt.Fprintf(w, "      fuser %d/tcp\n\n", port)
	fmt.Fprintln(w, "   To kill it:")
	fmt.Fprintf(w, "      fuser -k %d/tcp\n", port)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
