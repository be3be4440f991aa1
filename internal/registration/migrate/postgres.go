package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"formintake/internal/registration/schema"
)

// PostgresTarget applies the catalog to PostgreSQL. Identifiers are folded to
// lower case, matching what unquoted names in the store's queries resolve to.
type PostgresTarget struct {
	db *sql.DB
}

func NewPostgresTarget(db *sql.DB) *PostgresTarget {
	return &PostgresTarget{db: db}
}

func quotePostgres(name string) string {
	return pq.QuoteIdentifier(strings.ToLower(name))
}

func (t *PostgresTarget) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, postgresColumn(c))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quotePostgres(table), strings.Join(defs, ", "))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (t *PostgresTarget) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, strings.ToLower(table))
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return names, nil
}

func (t *PostgresTarget) AddColumn(ctx context.Context, table string, col schema.Column) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quotePostgres(table), postgresColumn(col))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	return nil
}

func (t *PostgresTarget) CreateIndex(ctx context.Context, table string, idx schema.Index) error {
	if _, err := t.db.ExecContext(ctx, indexDDL(table, idx, quotePostgres)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (t *PostgresTarget) RecordVersion(ctx context.Context, version int, appliedAt time.Time) error {
	_, err := t.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+schema.VersionTable+` (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO `+schema.VersionTable+` (version, applied_at) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
		version, appliedAt)
	if err != nil {
		return fmt.Errorf("insert version marker: %w", err)
	}
	return nil
}

func postgresColumn(c schema.Column) string {
	var b strings.Builder
	b.WriteString(quotePostgres(c.Name))
	switch c.Type {
	case schema.Timestamp:
		b.WriteString(" TIMESTAMPTZ")
	default:
		b.WriteString(" TEXT")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.DefaultNow {
		b.WriteString(" DEFAULT now()")
	}
	return b.String()
}
