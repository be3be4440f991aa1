// Package validation enforces the registration schema: required enums, a closed
// field set and the conditional rules tied to formType and receiptPreference.
//
// Validation is pure. Every violation is reported, not just the first.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"formintake/internal/registration/models"
)

// Field names as they appear in request bodies.
const (
	FieldFormType          = "formType"
	FieldFormTypeOtherText = "formTypeOtherText"
	FieldPenColourNotUsed  = "penColourNotUsed"
	FieldGuidanceRead      = "guidanceRead"
	FieldReceiptPreference = "receiptPreference"
	FieldEmailAddress      = "emailAddress"
	FieldMobilePhoneNumber = "mobilePhoneNumber"
)

// FieldBody names violations about the payload as a whole.
const FieldBody = "body"

const (
	ReasonRequired     = "is required"
	ReasonNotString    = "must be a string"
	ReasonNotPermitted = "is not a permitted field"
	ReasonInvalidEmail = "must be a valid email address"
	ReasonEmpty        = "must not be empty"
	ReasonNotObject    = "must be a JSON object"
	ReasonOneOfPrefix  = "must be one of: "
)

// declared is the closed field set, in the order violations are reported.
var declared = []string{
	FieldFormType,
	FieldFormTypeOtherText,
	FieldPenColourNotUsed,
	FieldGuidanceRead,
	FieldReceiptPreference,
	FieldEmailAddress,
	FieldMobilePhoneNumber,
}

// Violation is one failed rule.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Failure carries every violation found in one input.
type Failure struct {
	Violations []Violation
}

func (f *Failure) Error() string {
	parts := make([]string, len(f.Violations))
	for i, v := range f.Violations {
		parts[i] = v.Field + " " + v.Reason
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Engine evaluates a fixed list of checks.
type Engine struct {
	checks []Check
	order  map[string]int
}

// New returns the registration schema engine.
func New() *Engine {
	order := make(map[string]int, len(declared))
	for i, f := range declared {
		order[f] = i
	}
	return &Engine{
		order: order,
		checks: []Check{
			closedSchema(declared),

			required(FieldFormType),
			stringType(FieldFormType),
			enumMember(FieldFormType, models.FormTypes),

			stringType(FieldFormTypeOtherText),
			when(FieldFormType, string(models.FormTypeOther),
				required(FieldFormTypeOtherText),
				nonEmpty(FieldFormTypeOtherText),
			),

			required(FieldPenColourNotUsed),
			stringType(FieldPenColourNotUsed),
			enumMember(FieldPenColourNotUsed, models.PenColours),

			required(FieldGuidanceRead),
			stringType(FieldGuidanceRead),
			enumMember(FieldGuidanceRead, models.GuidanceReads),

			stringType(FieldReceiptPreference),
			enumMember(FieldReceiptPreference, models.ReceiptPreferences),

			stringType(FieldEmailAddress),
			when(FieldReceiptPreference, string(models.ReceiptPreferenceEmail),
				required(FieldEmailAddress),
				nonEmpty(FieldEmailAddress),
				emailAddress(FieldEmailAddress),
			),

			stringType(FieldMobilePhoneNumber),
			when(FieldReceiptPreference, string(models.ReceiptPreferencePhone),
				required(FieldMobilePhoneNumber),
				nonEmpty(FieldMobilePhoneNumber),
			),
		},
	}
}

// ValidateValue accepts any decoded JSON value; anything but an object fails.
func (e *Engine) ValidateValue(v any) (*models.Submission, error) {
	in, ok := v.(map[string]any)
	if !ok {
		return nil, &Failure{Violations: []Violation{{Field: FieldBody, Reason: ReasonNotObject}}}
	}
	return e.Validate(in)
}

// Validate checks the input and returns the normalized submission. Optional
// fields that their discriminant does not call for are dropped.
func (e *Engine) Validate(in map[string]any) (*models.Submission, error) {
	var violations []Violation
	for _, c := range e.checks {
		violations = append(violations, c(in)...)
	}
	if len(violations) > 0 {
		return nil, &Failure{Violations: e.sort(violations)}
	}
	return normalize(in), nil
}

// sort orders violations by declared field, then unknown fields by name. Checks
// for the same field keep their declaration order.
func (e *Engine) sort(vs []Violation) []Violation {
	rank := func(field string) int {
		if i, ok := e.order[field]; ok {
			return i
		}
		return len(e.order)
	}
	sort.SliceStable(vs, func(i, j int) bool {
		ri, rj := rank(vs[i].Field), rank(vs[j].Field)
		if ri != rj {
			return ri < rj
		}
		if ri == len(e.order) {
			return vs[i].Field < vs[j].Field
		}
		return false
	})
	return vs
}

func normalize(in map[string]any) *models.Submission {
	str := func(field string) string {
		s, _ := stringValue(in, field)
		return s
	}
	sub := &models.Submission{
		FormType:         models.FormType(str(FieldFormType)),
		PenColourNotUsed: models.PenColour(str(FieldPenColourNotUsed)),
		GuidanceRead:     models.GuidanceRead(str(FieldGuidanceRead)),
	}
	if sub.FormType == models.FormTypeOther {
		text := str(FieldFormTypeOtherText)
		sub.FormTypeOtherText = &text
	}
	if pref, ok := stringValue(in, FieldReceiptPreference); ok {
		p := models.ReceiptPreference(pref)
		sub.ReceiptPreference = &p
		switch p {
		case models.ReceiptPreferenceEmail:
			email := str(FieldEmailAddress)
			sub.EmailAddress = &email
		case models.ReceiptPreferencePhone:
			phone := str(FieldMobilePhoneNumber)
			sub.MobilePhoneNumber = &phone
		}
	}
	return sub
}
