package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"formintake/internal/platform/middleware"
	"formintake/internal/registration/metrics"
	"formintake/internal/registration/models"
	"formintake/internal/registration/validation"
	dErrors "formintake/pkg/domain-errors"
	"formintake/pkg/platform/httputil"
	"formintake/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// Service defines the interface for registration intake operations.
type Service interface {
	Submit(ctx context.Context, input any) (*models.Receipt, error)
	Get(ctx context.Context, rawID string) (*models.Registration, error)
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	registration Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New creates a new registration Handler.
func New(registration Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		registration: registration,
		logger:       logger,
		metrics:      m,
	}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	registrationRouter := chi.NewRouter()
	registrationRouter.Use(middleware.Recovery(h.logger))
	registrationRouter.Use(middleware.RequestID)
	registrationRouter.Use(requesttime.Middleware)
	registrationRouter.Use(middleware.ClientIP)
	registrationRouter.Use(middleware.Logger(h.logger))
	registrationRouter.Use(middleware.Timeout(requestTimeout))
	registrationRouter.Use(middleware.ContentTypeJSON)
	registrationRouter.Use(middleware.LatencyMiddleware(h.metrics))

	registrationRouter.Post("/registrations", h.HandleSubmit)
	registrationRouter.Get("/registrations/{id}", h.HandleGet)

	r.Mount("/", registrationRouter)
}

// validationResponse is the 422 body; it lists every violation, not just the first.
type validationResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Errors  []validation.Violation `json:"errors"`
}

// HandleSubmit accepts a registration and answers with its receipt.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	input, err := httputil.DecodeJSON(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode registration request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.registration.Submit(ctx, input)
	if err != nil {
		h.writeSubmitError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration accepted",
		"request_id", requestID,
		"registration_id", receipt.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) writeSubmitError(ctx context.Context, w http.ResponseWriter, err error) {
	var failure *validation.Failure
	if errors.As(err, &failure) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Status:  "error",
			Message: httputil.MessageValidation,
			Errors:  failure.Violations,
		})
		return
	}
	if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, "registration submit failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

// HandleGet returns a stored registration by id.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawID := chi.URLParam(r, "id")

	reg, err := h.registration.Get(ctx, rawID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeUnavailable) {
			h.logger.ErrorContext(ctx, "registration lookup failed",
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}
