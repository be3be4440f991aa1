package models

import (
	"regexp"
	"time"

	id "formintake/pkg/domain"
)

// ReferenceCodeLength is the number of symbols in a reference code.
const ReferenceCodeLength = 8

// ReferenceAlphabet is the symbol set reference codes are drawn from.
const ReferenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var referenceCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ReferenceCode is the short public identifier handed to the submitter.
type ReferenceCode string

// Valid reports whether the code has the public 8-symbol shape.
func (c ReferenceCode) Valid() bool {
	return referenceCodePattern.MatchString(string(c))
}

func (c ReferenceCode) String() string {
	return string(c)
}

// Submission is a validated, normalized registration payload. Conditional fields
// are set only when their discriminant calls for them.
type Submission struct {
	FormType          FormType
	FormTypeOtherText *string
	PenColourNotUsed  PenColour
	GuidanceRead      GuidanceRead
	ReceiptPreference *ReceiptPreference
	EmailAddress      *string
	MobilePhoneNumber *string
}

// Registration is the persisted record.
//
// Invariants:
//   - ID and ReferenceNumber are unique and immutable
//   - FormTypeOtherText is set iff FormType is OTHER
//   - EmailAddress is set iff ReceiptPreference is email
//   - MobilePhoneNumber is set iff ReceiptPreference is phone
//   - CreatedAt is assigned once, at insert
type Registration struct {
	ID                id.RegistrationID  `json:"id"`
	ReferenceNumber   ReferenceCode      `json:"referenceNumber"`
	FormType          FormType           `json:"formType"`
	FormTypeOtherText *string            `json:"formTypeOtherText"`
	PenColourNotUsed  PenColour          `json:"penColourNotUsed"`
	GuidanceRead      GuidanceRead       `json:"guidanceRead"`
	ReceiptPreference *ReceiptPreference `json:"receiptPreference"`
	EmailAddress      *string            `json:"emailAddress"`
	MobilePhoneNumber *string            `json:"mobilePhoneNumber"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// NewRegistration builds a record from a validated submission.
func NewRegistration(regID id.RegistrationID, ref ReferenceCode, sub Submission, createdAt time.Time) *Registration {
	return &Registration{
		ID:                regID,
		ReferenceNumber:   ref,
		FormType:          sub.FormType,
		FormTypeOtherText: cloneString(sub.FormTypeOtherText),
		PenColourNotUsed:  sub.PenColourNotUsed,
		GuidanceRead:      sub.GuidanceRead,
		ReceiptPreference: cloneReceipt(sub.ReceiptPreference),
		EmailAddress:      cloneString(sub.EmailAddress),
		MobilePhoneNumber: cloneString(sub.MobilePhoneNumber),
		CreatedAt:         createdAt,
	}
}

// Clone returns a deep copy so stores never hand out their own pointers.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := *r
	c.FormTypeOtherText = cloneString(r.FormTypeOtherText)
	c.ReceiptPreference = cloneReceipt(r.ReceiptPreference)
	c.EmailAddress = cloneString(r.EmailAddress)
	c.MobilePhoneNumber = cloneString(r.MobilePhoneNumber)
	return &c
}

// Receipt is what a successful submission returns to the caller.
type Receipt struct {
	ID              id.RegistrationID `json:"id"`
	ReferenceNumber ReferenceCode     `json:"referenceNumber"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneReceipt(p *ReceiptPreference) *ReceiptPreference {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
