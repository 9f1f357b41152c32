// CLAUDE:SUMMARY Cache-busting request handler — entry-point rewrite on "/", static files everywhere else, no-cache on all.
// Package devserve is a static file server for front-end development. Every
// response carries no-cache headers, and the HTML entry point is rewritten
// on the fly so its module script URL changes on every page load.
package devserve

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/devserve/shield"
)

// Handler routes requests for the entry point through the rewriter and
// delegates every other path to a static file strategy. It holds no state
// across requests: the entry point is read from disk on each hit.
type Handler struct {
	root       string
	entryPoint string
	rewriter   Rewriter
	static     http.Handler
	clock      func() time.Time
	logger     *slog.Logger
	router     chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithStatic replaces the static file strategy used for every path other
// than the entry point. Default: http.FileServer over the configured root.
func WithStatic(h http.Handler) Option {
	return func(hd *Handler) { hd.static = h }
}

// WithClock sets the time source for freshness tokens.
func WithClock(now func() time.Time) Option {
	return func(hd *Handler) { hd.clock = now }
}

// WithRewriter overrides the rewriter selected by Config.RewriteMode.
func WithRewriter(rw Rewriter) Option {
	return func(hd *Handler) { hd.rewriter = rw }
}

// WithLogger sets the logger used for 500 responses.
func WithLogger(l *slog.Logger) Option {
	return func(hd *Handler) { hd.logger = l }
}

// New builds a Handler from cfg. Zero fields of cfg get their defaults.
func New(cfg Config, opts ...Option) *Handler {
	cfg.Defaults()
	h := &Handler{
		root:       cfg.Root,
		entryPoint: path.Clean("/" + filepath.ToSlash(cfg.EntryPoint))[1:],
		rewriter:   cfg.Rewriter(),
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	if h.static == nil {
		h.static = http.FileServer(http.Dir(h.root))
	}
	h.router = h.routes()
	return h
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultDevStack() {
		r.Use(mw)
	}
	r.Get("/", h.serveEntryPoint)
	r.Get("/"+h.entryPoint, h.serveEntryPoint)
	r.Get("/*", h.static.ServeHTTP)
	return r
}

// Routes returns the router, for mounting under another chi router. The
// static strategy still sees the full request path, so a mounted Handler
// usually wants WithStatic(http.StripPrefix(prefix, ...)).
func (h *Handler) Routes() chi.Router {
	return h.router
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) serveEntryPoint(w http.ResponseWriter, r *http.Request) {
	doc, err := h.loadEntryPoint()
	if err != nil {
		if errors.Is(err, ErrEntryPointMissing) {
			http.Error(w, fmt.Sprintf("%s not found in %s", h.entryPoint, h.root), http.StatusNotFound)
			return
		}
		h.logger.Error("devserve: entry point", "path", r.URL.Path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := h.rewriter.Rewrite(doc, h.clock().Unix())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) loadEntryPoint() ([]byte, error) {
	p := filepath.Join(h.root, filepath.FromSlash(h.entryPoint))
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &EntryPointError{Path: p, Cause: fmt.Errorf("%w: %w", ErrEntryPointMissing, err)}
		}
		return nil, &EntryPointError{Path: p, Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &EntryPointError{Path: p, Cause: ErrInvalidUTF8}
	}
	return data, nil
}
