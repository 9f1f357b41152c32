// CLAUDE:SUMMARY Response header middleware for devserve — no-cache headers committed with the status line.
// Package shield provides the HTTP middleware devserve wraps around every
// route. Its job is narrow: make sure no browser or intermediate cache ever
// keeps a copy of what the dev server sends.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.NoCache(shield.DefaultNoCache()))
//
// Or apply the default dev stack in one call:
//
//	for _, mw := range shield.DefaultDevStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// DefaultDevStack returns the standard middleware stack for a dev server.
// Middleware is ordered: NoCache → Recoverer → GetHead. NoCache is outermost
// so that the 500 written by Recoverer still carries the headers.
func DefaultDevStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		NoCache(DefaultNoCache()),
		middleware.Recoverer,
		middleware.GetHead,
	}
}
