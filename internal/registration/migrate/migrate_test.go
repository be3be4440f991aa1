package migrate_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formintake/internal/platform/database"
	"formintake/internal/registration/metrics"
	"formintake/internal/registration/migrate"
	"formintake/internal/registration/schema"
)

// legacyDDL is the table as the first release created it.
const legacyDDL = `CREATE TABLE registrations (
	id TEXT PRIMARY KEY,
	referenceNumber TEXT NOT NULL,
	formType TEXT NOT NULL,
	formTypeOtherText TEXT,
	penColourNotUsed TEXT NOT NULL,
	guidanceRead TEXT NOT NULL,
	createdAt DATETIME DEFAULT CURRENT_TIMESTAMP
)`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func columnNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	names, err := migrate.NewSQLiteTarget(db).Columns(context.Background(), schema.Table)
	require.NoError(t, err)
	return names
}

func declaredColumnNames() []string {
	var names []string
	for _, c := range schema.Columns() {
		names = append(names, c.Name)
	}
	return names
}

func TestEnsureLatest_FreshDatabase(t *testing.T) {
	db := setupTestDB(t)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	err := migrate.New(migrate.NewSQLiteTarget(db), migrate.WithMetrics(m)).EnsureLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, declaredColumnNames(), columnNames(t, db))
	assert.InDelta(t, 3, testutil.ToFloat64(m.MigrationColumnsAdded), 0, "receipt columns are added after table creation")

	var idx string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`, schema.ReferenceIndex).Scan(&idx)
	require.NoError(t, err, "reference index should exist")

	var versions int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_versions`).Scan(&versions))
	assert.Equal(t, schema.Latest(), versions)
}

func TestEnsureLatest_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	mgr := migrate.New(migrate.NewSQLiteTarget(db), migrate.WithMetrics(m))

	require.NoError(t, mgr.EnsureLatest(ctx))
	before := columnNames(t, db)
	require.NoError(t, mgr.EnsureLatest(ctx))
	require.NoError(t, mgr.EnsureLatest(ctx))

	assert.Equal(t, before, columnNames(t, db))
	assert.InDelta(t, 3, testutil.ToFloat64(m.MigrationColumnsAdded), 0, "reruns add nothing")

	var versions int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_versions`).Scan(&versions))
	assert.Equal(t, schema.Latest(), versions)
}

func TestEnsureLatest_UpgradesLegacyTableWithoutDataLoss(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(legacyDDL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO registrations (id, referenceNumber, formType, penColourNotUsed, guidanceRead)
		VALUES ('0b9e3c1e-7b53-4a53-9a70-2f1f0b6f3f11', 'ABCD1234', 'AD01', 'BLUE', 'YES')`)
	require.NoError(t, err)

	require.NoError(t, migrate.New(migrate.NewSQLiteTarget(db)).EnsureLatest(ctx))

	assert.Equal(t, declaredColumnNames(), columnNames(t, db))

	var (
		ref       string
		createdAt sql.NullString
		pref      sql.NullString
		email     sql.NullString
	)
	err = db.QueryRow(`SELECT referenceNumber, createdAt, receipt_preference, email_address FROM registrations`).
		Scan(&ref, &createdAt, &pref, &email)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", ref)
	assert.True(t, createdAt.Valid, "existing createdAt is kept")
	assert.False(t, pref.Valid, "new columns are NULL for old rows")
	assert.False(t, email.Valid)
}

func TestEnsureLatest_ReferenceIndexRejectsDuplicates(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, migrate.New(migrate.NewSQLiteTarget(db)).EnsureLatest(context.Background()))

	insert := `INSERT INTO registrations (id, referenceNumber, formType, penColourNotUsed, guidanceRead) VALUES (?, 'SAMEREF1', 'AD01', 'BLUE', 'YES')`
	_, err := db.Exec(insert, "id-1")
	require.NoError(t, err)
	_, err = db.Exec(insert, "id-2")
	require.Error(t, err)
}

type failingTarget struct {
	*migrate.SQLiteTarget
	failOn string
}

func (f failingTarget) AddColumn(ctx context.Context, table string, col schema.Column) error {
	if col.Name == f.failOn {
		return errors.New("disk I/O error")
	}
	return f.SQLiteTarget.AddColumn(ctx, table, col)
}

func TestEnsureLatest_FailureIsWrapped(t *testing.T) {
	db := setupTestDB(t)
	target := failingTarget{SQLiteTarget: migrate.NewSQLiteTarget(db), failOn: schema.ColEmailAddress}

	err := migrate.New(target).EnsureLatest(context.Background())
	require.Error(t, err)

	var migErr *migrate.Error
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, 2, migErr.Version)
	assert.Contains(t, migErr.Step, schema.ColEmailAddress)
	assert.EqualError(t, errors.Unwrap(err), "disk I/O error")

	// Columns added before the failure stay; a later run completes the upgrade.
	require.NoError(t, migrate.New(migrate.NewSQLiteTarget(db)).EnsureLatest(context.Background()))
	assert.Equal(t, declaredColumnNames(), columnNames(t, db))
}

func TestEnsureLatest_RecordsAppliedAt(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, migrate.New(migrate.NewSQLiteTarget(db)).EnsureLatest(context.Background()))

	var raw string
	require.NoError(t, db.QueryRow(`SELECT applied_at FROM schema_versions WHERE version = 1`).Scan(&raw))
	_, err := time.Parse(time.RFC3339Nano, raw)
	assert.NoError(t, err)
}
