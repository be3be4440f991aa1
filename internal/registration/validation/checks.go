package validation

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Check inspects the raw input and reports zero or more violations.
type Check func(in map[string]any) []Violation

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// present treats JSON null the same as an absent key.
func present(in map[string]any, field string) (any, bool) {
	v, ok := in[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func stringValue(in map[string]any, field string) (string, bool) {
	v, ok := present(in, field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func one(field, reason string) []Violation {
	return []Violation{{Field: field, Reason: reason}}
}

// closedSchema rejects every key outside allowed.
func closedSchema(allowed []string) Check {
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}
	return func(in map[string]any) []Violation {
		var out []Violation
		for k := range in {
			if _, ok := set[k]; !ok {
				out = append(out, Violation{Field: k, Reason: ReasonNotPermitted})
			}
		}
		return out
	}
}

func required(field string) Check {
	return func(in map[string]any) []Violation {
		if _, ok := present(in, field); !ok {
			return one(field, ReasonRequired)
		}
		return nil
	}
}

func stringType(field string) Check {
	return func(in map[string]any) []Violation {
		v, ok := present(in, field)
		if !ok {
			return nil
		}
		if _, isString := v.(string); !isString {
			return one(field, ReasonNotString)
		}
		return nil
	}
}

func enumMember[T ~string](field string, allowed []T) Check {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	reason := ReasonOneOfPrefix + strings.Join(names, ", ")
	return func(in map[string]any) []Violation {
		s, ok := stringValue(in, field)
		if !ok {
			return nil
		}
		for _, a := range names {
			if s == a {
				return nil
			}
		}
		return one(field, reason)
	}
}

func nonEmpty(field string) Check {
	return func(in map[string]any) []Violation {
		if s, ok := stringValue(in, field); ok && s == "" {
			return one(field, ReasonEmpty)
		}
		return nil
	}
}

func emailAddress(field string) Check {
	return func(in map[string]any) []Violation {
		s, ok := stringValue(in, field)
		if !ok || s == "" {
			return nil
		}
		if err := validatorInstance().Var(s, "email"); err != nil {
			return one(field, ReasonInvalidEmail)
		}
		return nil
	}
}

// when runs then only if the discriminant holds exactly value.
func when(discriminant, value string, then ...Check) Check {
	return func(in map[string]any) []Violation {
		s, ok := stringValue(in, discriminant)
		if !ok || s != value {
			return nil
		}
		var out []Violation
		for _, c := range then {
			out = append(out, c(in)...)
		}
		return out
	}
}
