// Package migrate brings the registrations table up to the latest catalog version.
//
// Every step is decided by inspecting what already exists (table, columns,
// indexes), so running it against a fresh, a partially upgraded or a current
// database yields the same final shape. Nothing is ever dropped, renamed or
// rewritten.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"formintake/internal/registration/metrics"
	"formintake/internal/registration/schema"
	"formintake/pkg/requestcontext"
)

// Target adapts one SQL dialect.
type Target interface {
	CreateTable(ctx context.Context, table string, cols []schema.Column) error
	Columns(ctx context.Context, table string) ([]string, error)
	AddColumn(ctx context.Context, table string, col schema.Column) error
	CreateIndex(ctx context.Context, table string, idx schema.Index) error
	RecordVersion(ctx context.Context, version int, appliedAt time.Time) error
}

// Error is returned when any step fails. The process must not serve traffic
// after one.
type Error struct {
	Version int
	Step    string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration v%d: %s: %v", e.Version, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manager applies the catalog through a Target.
type Manager struct {
	target  Target
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func New(target Target, opts ...Option) *Manager {
	m := &Manager{target: target, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureLatest creates the table when absent, adds every missing column in
// catalog order, creates declared indexes and records the version markers.
func (m *Manager) EnsureLatest(ctx context.Context) error {
	if err := m.target.CreateTable(ctx, schema.Table, schema.BaseColumns()); err != nil {
		return &Error{Version: schema.Catalog[0].Number, Step: "create table " + schema.Table, Err: err}
	}

	names, err := m.target.Columns(ctx, schema.Table)
	if err != nil {
		return &Error{Version: schema.Catalog[0].Number, Step: "inspect columns", Err: err}
	}
	existing := make(map[string]struct{}, len(names))
	for _, n := range names {
		existing[strings.ToLower(n)] = struct{}{}
	}

	added := 0
	for _, v := range schema.Catalog {
		for _, col := range v.Columns {
			key := strings.ToLower(col.Name)
			if _, ok := existing[key]; ok {
				continue
			}
			if err := m.target.AddColumn(ctx, schema.Table, col); err != nil {
				return &Error{Version: v.Number, Step: "add column " + col.Name, Err: err}
			}
			existing[key] = struct{}{}
			added++
			m.logger.InfoContext(ctx, "migration column added",
				"table", schema.Table,
				"column", col.Name,
				"version", v.Number,
			)
		}
		for _, idx := range v.Indexes {
			if err := m.target.CreateIndex(ctx, schema.Table, idx); err != nil {
				return &Error{Version: v.Number, Step: "create index " + idx.Name, Err: err}
			}
		}
	}
	m.metrics.AddMigrationColumns(added)

	appliedAt := requestcontext.Now(ctx).UTC()
	for _, v := range schema.Catalog {
		if err := m.target.RecordVersion(ctx, v.Number, appliedAt); err != nil {
			return &Error{Version: v.Number, Step: "record version", Err: err}
		}
	}

	m.logger.InfoContext(ctx, "schema up to date",
		"version", schema.Latest(),
		"columns_added", added,
	)
	return nil
}
