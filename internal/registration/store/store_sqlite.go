package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"

	"formintake/internal/registration/models"
	"formintake/internal/registration/schema"
	id "formintake/pkg/domain"
)

// legacyTimeLayout is what SQLite's CURRENT_TIMESTAMP default writes.
const legacyTimeLayout = "2006-01-02 15:04:05"

// SQLiteStore persists registrations in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, reg *models.Registration) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", schema.Table, selectColumns())
	_, err := s.db.ExecContext(ctx, query,
		reg.ID.String(),
		string(reg.ReferenceNumber),
		string(reg.FormType),
		toNullString(reg.FormTypeOtherText),
		string(reg.PenColourNotUsed),
		string(reg.GuidanceRead),
		reg.CreatedAt.UTC().Format(time.RFC3339Nano),
		receiptToNull(reg.ReceiptPreference),
		toNullString(reg.EmailAddress),
		toNullString(reg.MobilePhoneNumber),
	)
	if err != nil {
		if field, ok := sqliteDuplicateField(err); ok {
			return &DuplicateKeyError{Field: field, Err: err}
		}
		return unavailable("insert registration", err)
	}
	return nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", selectColumns(), schema.Table, schema.ColID)
	var (
		row       registrationRow
		createdAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, regID.String()).Scan(
		&row.ID,
		&row.ReferenceNumber,
		&row.FormType,
		&row.FormTypeOtherText,
		&row.PenColourNotUsed,
		&row.GuidanceRead,
		&createdAt,
		&row.ReceiptPreference,
		&row.EmailAddress,
		&row.MobilePhoneNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("find registration by id", err)
	}
	ts, err := parseSQLiteTime(createdAt)
	if err != nil {
		return nil, err
	}
	return row.toModel(ts)
}

func (s *SQLiteStore) ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", schema.Table, schema.ColReferenceNumber)
	var one int
	err := s.db.QueryRowContext(ctx, query, string(code)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("check reference", err)
	}
	return true, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func sqliteDuplicateField(err error) (string, bool) {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return "", false
	}
	switch serr.ExtendedCode() {
	case sqlite3.CONSTRAINT_UNIQUE, sqlite3.CONSTRAINT_PRIMARYKEY:
	default:
		return "", false
	}
	if strings.Contains(strings.ToLower(serr.Error()), strings.ToLower(schema.ColReferenceNumber)) {
		return KeyReferenceNumber, true
	}
	return KeyID, true
}

// parseSQLiteTime reads createdAt written either by this store (RFC 3339) or by
// the column default on rows from older releases. NULL yields the zero time.
func parseSQLiteTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, ns.String); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyTimeLayout, ns.String, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created at %q: %w", ns.String, err)
	}
	return t, nil
}
