package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"formintake/internal/registration/models"
	"formintake/internal/registration/schema"
	id "formintake/pkg/domain"
)

const pgUniqueViolation = "23505"

// PostgresStore persists registrations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, reg *models.Registration) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)", schema.Table, selectColumns())
	_, err := s.db.ExecContext(ctx, query,
		reg.ID.String(),
		string(reg.ReferenceNumber),
		string(reg.FormType),
		toNullString(reg.FormTypeOtherText),
		string(reg.PenColourNotUsed),
		string(reg.GuidanceRead),
		reg.CreatedAt,
		receiptToNull(reg.ReceiptPreference),
		toNullString(reg.EmailAddress),
		toNullString(reg.MobilePhoneNumber),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			field := KeyID
			if pgErr.ConstraintName == schema.ReferenceIndex {
				field = KeyReferenceNumber
			}
			return &DuplicateKeyError{Field: field, Err: err}
		}
		return unavailable("insert registration", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", selectColumns(), schema.Table, schema.ColID)
	var (
		row       registrationRow
		createdAt sql.NullTime
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
	return row.toModel(createdAt.Time.UTC())
}

func (s *PostgresStore) ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1 LIMIT 1", schema.Table, schema.ColReferenceNumber)
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
