package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"formintake/internal/registration/models"
	"formintake/internal/registration/schema"
	id "formintake/pkg/domain"
)

// columnList is the insert and select order shared by the SQL stores.
var columnList = []string{
	schema.ColID,
	schema.ColReferenceNumber,
	schema.ColFormType,
	schema.ColFormTypeOtherText,
	schema.ColPenColourNotUsed,
	schema.ColGuidanceRead,
	schema.ColCreatedAt,
	schema.ColReceiptPreference,
	schema.ColEmailAddress,
	schema.ColMobilePhoneNumber,
}

func selectColumns() string {
	return strings.Join(columnList, ", ")
}

// registrationRow holds nullable scan targets. createdAt is scanned by the
// dialect since SQLite returns text and PostgreSQL a timestamp.
type registrationRow struct {
	ID                string
	ReferenceNumber   string
	FormType          string
	FormTypeOtherText sql.NullString
	PenColourNotUsed  string
	GuidanceRead      string
	ReceiptPreference sql.NullString
	EmailAddress      sql.NullString
	MobilePhoneNumber sql.NullString
}

func (r *registrationRow) toModel(createdAt time.Time) (*models.Registration, error) {
	regID, err := id.ParseRegistrationID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse stored id %q: %w", r.ID, err)
	}
	reg := &models.Registration{
		ID:                regID,
		ReferenceNumber:   models.ReferenceCode(r.ReferenceNumber),
		FormType:          models.FormType(r.FormType),
		FormTypeOtherText: nullString(r.FormTypeOtherText),
		PenColourNotUsed:  models.PenColour(r.PenColourNotUsed),
		GuidanceRead:      models.GuidanceRead(r.GuidanceRead),
		EmailAddress:      nullString(r.EmailAddress),
		MobilePhoneNumber: nullString(r.MobilePhoneNumber),
		CreatedAt:         createdAt,
	}
	if r.ReceiptPreference.Valid {
		p := models.ReceiptPreference(r.ReceiptPreference.String)
		reg.ReceiptPreference = &p
	}
	return reg, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func receiptToNull(p *models.ReceiptPreference) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}
