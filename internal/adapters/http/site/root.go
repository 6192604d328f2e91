// Package site serves the embedded browser client for the prediction API.
package site

import (
	"context"
	"net/http"
)

// Register attaches the web client at /app/ and redirects / to it.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("/app/", http.StripPrefix("/app/", http.FileServer(FS())))
	mux.Handle("/{$}", http.RedirectHandler("/app/", http.StatusFound))
}
