// Package reference allocates the short public reference code for a registration.
//
// Codes are 8 symbols over [A-Z0-9], drawn from crypto/rand. Allocation checks
// the store for an existing holder and retries on collision, up to MaxAttempts.
// Nothing is reserved: the store's unique index is the final arbiter and the
// intake workflow retries if an insert still collides.
package reference

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"formintake/internal/registration/metrics"
	"formintake/internal/registration/models"
)

// MaxAttempts bounds existence checks per allocation.
const MaxAttempts = 5

// rejectAbove is the largest multiple of the alphabet size that fits in a byte.
// Bytes at or above it are discarded so every symbol is equally likely.
const rejectAbove = 256 - 256%len(models.ReferenceAlphabet)

// ErrExhausted is returned when every attempt collided. It is retryable.
var ErrExhausted = errors.New("reference allocation exhausted")

// Checker reports whether a reference code is already held by a record.
type Checker interface {
	ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error)
}

// Allocator draws and checks candidate codes.
type Allocator struct {
	checker     Checker
	random      io.Reader
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Allocator)

// WithRandom replaces crypto/rand, for deterministic tests.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) {
		a.random = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

func New(checker Checker, opts ...Option) *Allocator {
	a := &Allocator{
		checker:     checker,
		random:      rand.Reader,
		maxAttempts: MaxAttempts,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate draws one candidate code without checking it.
func (a *Allocator) Generate() (models.ReferenceCode, error) {
	code := make([]byte, 0, models.ReferenceCodeLength)
	buf := make([]byte, models.ReferenceCodeLength*2)
	for len(code) < models.ReferenceCodeLength {
		if _, err := io.ReadFull(a.random, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			code = append(code, models.ReferenceAlphabet[int(b)%len(models.ReferenceAlphabet)])
			if len(code) == models.ReferenceCodeLength {
				break
			}
		}
	}
	return models.ReferenceCode(code), nil
}

// Allocate returns a code that no stored record held at check time.
func (a *Allocator) Allocate(ctx context.Context) (models.ReferenceCode, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := a.Generate()
		if err != nil {
			return "", err
		}
		taken, err := a.checker.ExistsByReference(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check reference: %w", err)
		}
		if !taken {
			a.metrics.ObserveAllocationAttempts(attempt)
			return code, nil
		}
		a.metrics.IncrementReferenceCollision()
		a.logger.DebugContext(ctx, "reference collision", "attempt", attempt)
	}
	a.metrics.ObserveAllocationAttempts(a.maxAttempts)
	return "", ErrExhausted
}
