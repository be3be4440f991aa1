// Package health reports whether the registration store is reachable.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"formintake/pkg/platform/httputil"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by every registration store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db     Pinger
	logger *slog.Logger
	now    func() time.Time
}

func New(db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{db: db, logger: logger, now: time.Now}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)
}

type databaseStatus struct {
	Status       string `json:"status"`
	ResponseTime *int64 `json:"responseTime,omitempty"`
	Error        string `json:"error,omitempty"`
}

type response struct {
	Status   string         `json:"status"`
	Database databaseStatus `json:"database"`
}

// HandleHealth answers 200 with the store round-trip in milliseconds, or 503 with
// the ping error when the store cannot be reached.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	start := h.now()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, response{
			Status:   "error",
			Database: databaseStatus{Status: "disconnected", Error: err.Error()},
		})
		return
	}
	elapsed := h.now().Sub(start).Milliseconds()
	httputil.WriteJSON(w, http.StatusOK, response{
		Status:   "ok",
		Database: databaseStatus{Status: "connected", ResponseTime: &elapsed},
	})
}
