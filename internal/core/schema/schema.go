// Package schema validates submitted registration payloads against an
// externally defined, ordered set of form field descriptors. It owns no
// data and performs no I/O.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/raceday/race-order/internal/core/domain"
)

type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDate     FieldType = "date"
)

// Rule is an optional structured constraint attached to a field.
type Rule struct {
	Pattern   string `json:"pattern,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

// FieldSpec describes one dynamic form field. Specs are supplied by an
// external admin surface; this package only consumes them.
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Rule     *Rule     `json:"rule,omitempty"`
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
)

const dateLayout = "2006-01-02"

// Validate checks payload against specs and returns the accepted values
// in spec order. An empty spec list accepts any payload and yields
// empty form data. Unknown payload keys are dropped, not rejected.
func Validate(specs []FieldSpec, payload map[string]string) (domain.FormData, error) {
	verr := &domain.ValidationError{}
	out := make(domain.FormData, 0, len(specs))

	for _, spec := range specs {
		value := strings.TrimSpace(payload[spec.Name])

		if value == "" {
			if spec.Required {
				verr.Add(spec.Name, fmt.Sprintf("%s is required", spec.Label))
			}
			continue
		}

		if msg := checkValue(spec, value); msg != "" {
			verr.Add(spec.Name, msg)
			continue
		}

		out = append(out, domain.FormValue{Name: spec.Name, Value: value})
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return out, nil
}

func checkValue(spec FieldSpec, value string) string {
	switch spec.Type {
	case FieldTypeEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Sprintf("%s must be a valid email address", spec.Label)
		}
	case FieldTypePhone:
		if !phonePattern.MatchString(strings.ReplaceAll(value, " ", "")) {
			return fmt.Sprintf("%s must be a valid phone number", spec.Label)
		}
	case FieldTypeDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", spec.Label)
		}
	case FieldTypeSelect, FieldTypeRadio:
		if !contains(spec.Options, value) {
			return fmt.Sprintf("%s must be one of the offered options", spec.Label)
		}
	case FieldTypeCheckbox:
		// Checkbox submissions arrive comma-joined; every element must
		// be an offered option.
		for _, part := range strings.Split(value, ",") {
			if !contains(spec.Options, strings.TrimSpace(part)) {
				return fmt.Sprintf("%s contains an unknown option", spec.Label)
			}
		}
	}

	if rule := spec.Rule; rule != nil {
		if rule.MinLength > 0 && len(value) < rule.MinLength {
			return fmt.Sprintf("%s must be at least %d characters", spec.Label, rule.MinLength)
		}
		if rule.MaxLength > 0 && len(value) > rule.MaxLength {
			return fmt.Sprintf("%s must be at most %d characters", spec.Label, rule.MaxLength)
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Sprintf("%s has an invalid validation rule", spec.Label)
			}
			if !re.MatchString(value) {
				return fmt.Sprintf("%s has an invalid format", spec.Label)
			}
		}
	}

	return ""
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
