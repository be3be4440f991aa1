package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"formintake/internal/registration/metrics"
	"formintake/internal/registration/models"
	"formintake/internal/registration/reference"
	"formintake/internal/registration/store"
	"formintake/internal/registration/validation"
	id "formintake/pkg/domain"
	dErrors "formintake/pkg/domain-errors"
	"formintake/pkg/requestcontext"
)

// MaxInsertAttempts bounds inserts retried after a uniqueness conflict.
const MaxInsertAttempts = 5

var tracer = otel.Tracer("formintake/internal/registration/service")

type Store interface {
	Insert(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error)
}

type EventPublisher interface {
	PublishAccepted(ctx context.Context, reg *models.Registration) error
}

// Service runs the intake workflow: validate, allocate a reference, persist.
type Service struct {
	store     Store
	validator *validation.Engine
	allocator *reference.Allocator
	publisher EventPublisher
	newID     func() id.RegistrationID
	logger    *slog.Logger
	metrics   *metrics.Metrics
	refOpts   []reference.Option
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher enables accepted-registration events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithIDGenerator replaces random id generation, for tests.
func WithIDGenerator(fn func() id.RegistrationID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithReferenceOptions passes options to the reference allocator.
func WithReferenceOptions(opts ...reference.Option) Option {
	return func(s *Service) {
		s.refOpts = append(s.refOpts, opts...)
	}
}

// New constructs a Service.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		validator: validation.New(),
		newID:     id.NewRegistrationID,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	refOpts := append([]reference.Option{
		reference.WithLogger(s.logger),
		reference.WithMetrics(s.metrics),
	}, s.refOpts...)
	s.allocator = reference.New(st, refOpts...)
	return s
}

// Submit validates a decoded JSON body and persists it under a fresh id and
// reference code. A uniqueness conflict on insert restarts allocation with a
// new id and code, up to MaxInsertAttempts times.
func (s *Service) Submit(ctx context.Context, input any) (*models.Receipt, error) {
	start := time.Now()
	defer s.metrics.ObserveSubmit(start)

	ctx, span := tracer.Start(ctx, "registration.submit")
	defer span.End()

	sub, err := s.validate(ctx, input)
	if err != nil {
		s.metrics.IncrementSubmission(metrics.OutcomeRejected)
		span.SetStatus(codes.Error, "validation failed")
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "validation failed")
	}

	for attempt := 1; attempt <= MaxInsertAttempts; attempt++ {
		code, err := s.allocate(ctx)
		if err != nil {
			return nil, s.unavailable(ctx, span, "reference allocation failed", err)
		}

		reg := models.NewRegistration(s.newID(), code, *sub, requestcontext.Now(ctx).UTC())
		err = s.insert(ctx, reg)
		if err == nil {
			span.SetAttributes(attribute.String("registration.id", reg.ID.String()))
			s.publish(ctx, reg)
			s.metrics.IncrementSubmission(metrics.OutcomeAccepted)
			s.logger.InfoContext(ctx, "registration accepted",
				"request_id", requestcontext.RequestID(ctx),
				"registration_id", reg.ID.String(),
				"attempt", attempt,
			)
			return &models.Receipt{ID: reg.ID, ReferenceNumber: reg.ReferenceNumber}, nil
		}

		var dup *store.DuplicateKeyError
		if !errors.As(err, &dup) {
			return nil, s.unavailable(ctx, span, "registration insert failed", err)
		}
		s.metrics.IncrementInsertRetry()
		s.logger.WarnContext(ctx, "registration insert conflict, retrying",
			"request_id", requestcontext.RequestID(ctx),
			"field", dup.Field,
			"attempt", attempt,
		)
	}
	return nil, s.unavailable(ctx, span, "registration insert retries exhausted", reference.ErrExhausted)
}

// Get returns a stored record. A malformed id is reported as not found without
// consulting the store.
func (s *Service) Get(ctx context.Context, rawID string) (*models.Registration, error) {
	ctx, span := tracer.Start(ctx, "registration.get")
	defer span.End()

	regID, err := id.ParseRegistrationID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	reg, err := s.store.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		s.logger.ErrorContext(ctx, "registration lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"registration_id", regID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "registration lookup failed")
	}
	return reg, nil
}

func (s *Service) validate(ctx context.Context, input any) (*models.Submission, error) {
	_, span := tracer.Start(ctx, "registration.validate")
	defer span.End()
	return s.validator.ValidateValue(input)
}

func (s *Service) allocate(ctx context.Context) (models.ReferenceCode, error) {
	ctx, span := tracer.Start(ctx, "registration.allocate_reference")
	defer span.End()
	code, err := s.allocator.Allocate(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return code, err
}

func (s *Service) insert(ctx context.Context, reg *models.Registration) error {
	ctx, span := tracer.Start(ctx, "registration.insert")
	defer span.End()
	err := s.store.Insert(ctx, reg)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// publish never fails the submission; the record is already persisted.
func (s *Service) publish(ctx context.Context, reg *models.Registration) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAccepted(ctx, reg); err != nil {
		s.logger.WarnContext(ctx, "registration event not published",
			"request_id", requestcontext.RequestID(ctx),
			"registration_id", reg.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) unavailable(ctx context.Context, span trace.Span, msg string, err error) error {
	outcome := metrics.OutcomeUnavailable
	if errors.Is(err, reference.ErrExhausted) {
		outcome = metrics.OutcomeExhausted
	}
	s.metrics.IncrementSubmission(outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
