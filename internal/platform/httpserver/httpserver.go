package httpserver

import (
	"net/http"
	"time"

	"formintake/internal/platform/config"
)

// Registration bodies are tiny; headers are the only thing worth a megabyte.
const maxHeaderBytes = 1 << 20

// New builds the HTTP server for cfg. The write timeout leaves room for the
// handler-level request timeout plus encoding.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
