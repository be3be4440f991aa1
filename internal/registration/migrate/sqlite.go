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

// SQLiteTarget applies the catalog to a SQLite database.
type SQLiteTarget struct {
	db *sql.DB
}

func NewSQLiteTarget(db *sql.DB) *SQLiteTarget {
	return &SQLiteTarget{db: db}
}

func (t *SQLiteTarget) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, sqliteColumn(c))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(table), strings.Join(defs, ", "))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (t *SQLiteTarget) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
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
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return names, nil
}

func (t *SQLiteTarget) AddColumn(ctx context.Context, table string, col schema.Column) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", pq.QuoteIdentifier(table), sqliteColumn(col))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	return nil
}

func (t *SQLiteTarget) CreateIndex(ctx context.Context, table string, idx schema.Index) error {
	if _, err := t.db.ExecContext(ctx, indexDDL(table, idx, pq.QuoteIdentifier)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (t *SQLiteTarget) RecordVersion(ctx context.Context, version int, appliedAt time.Time) error {
	_, err := t.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+schema.VersionTable+` (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO `+schema.VersionTable+` (version, applied_at) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`,
		version, appliedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert version marker: %w", err)
	}
	return nil
}

func sqliteColumn(c schema.Column) string {
	var b strings.Builder
	b.WriteString(pq.QuoteIdentifier(c.Name))
	switch c.Type {
	case schema.Timestamp:
		b.WriteString(" DATETIME")
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
		b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
	}
	return b.String()
}

func indexDDL(table string, idx schema.Index, quote func(string) string) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = quote(c)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, quote(idx.Name), quote(table), strings.Join(cols, ", "))
}
