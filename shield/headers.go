package shield

import "net/http"

// HeaderConfig defines the cache-defeating headers applied to every response.
// Empty fields are skipped.
type HeaderConfig struct {
	CacheControl string
	Pragma       string
	Expires      string
}

// DefaultNoCache returns the header set that tells every HTTP/1.1 cache and
// browser never to reuse a stored response.
func DefaultNoCache() HeaderConfig {
	return HeaderConfig{
		CacheControl: "no-store, no-cache, must-revalidate, max-age=0",
		Pragma:       "no-cache",
		Expires:      "0",
	}
}

func (cfg HeaderConfig) apply(h http.Header) {
	if cfg.CacheControl != "" {
		h.Set("Cache-Control", cfg.CacheControl)
	}
	if cfg.Pragma != "" {
		h.Set("Pragma", cfg.Pragma)
	}
	if cfg.Expires != "" {
		h.Set("Expires", cfg.Expires)
	}
}

// NoCache returns middleware that sets the configured headers on every
// response. The headers are written when the status line is committed, not
// when the request enters the chain: http.FileServer deletes Cache-Control
// on its error paths, so setting it up front is not enough.
// If the wrapped handler writes nothing at all, an empty 200 is committed
// with the headers.
func NoCache(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &commitWriter{ResponseWriter: w, cfg: cfg}
			next.ServeHTTP(cw, r)
			if !cw.committed {
				cw.WriteHeader(http.StatusOK)
			}
		})
	}
}

// commitWriter applies a HeaderConfig right before the final status line is
// sent.
type commitWriter struct {
	http.ResponseWriter
	cfg       HeaderConfig
	committed bool
}

func (w *commitWriter) WriteHeader(code int) {
	// 1xx responses may precede the final one; headers go on the final one.
	if !w.committed && code >= http.StatusOK {
		w.committed = true
		w.cfg.apply(w.Header())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports flushing.
func (w *commitWriter) Flush() {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
