// Package form turns declarative field descriptions into concrete numeric input
// policies for the prediction forms.
//
// The resolver is a pure function over a field's label and help text: it decides
// whether a value is integer- or real-valued and derives bounds, step size and a
// display format from that decision. It knows nothing about HTTP or templates.
package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DeclaredType is the control type requested by a field specification.
type DeclaredType string

const (
	TypeNumber DeclaredType = "number"
	TypeText   DeclaredType = "text"
)

// Kind is the numeric kind inferred for a field.
type Kind int

const (
	Real Kind = iota
	Integer
)

func (k Kind) String() string {
	if k == Integer {
		return "integer"
	}
	return "real"
}

// MarshalText lets Kind appear as a word in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "integer":
		*k = Integer
	case "real":
		*k = Real
	default:
		return fmt.Errorf("unknown field kind %q", text)
	}
	return nil
}

// FieldSpec describes one user-entry field. Min, Max, Step and Format are
// optional overrides; nil (or empty) means "derive it".
type FieldSpec struct {
	Label   string       `json:"label" yaml:"label"`
	Tooltip string       `json:"tooltip" yaml:"tooltip"`
	Key     string       `json:"key" yaml:"key"`
	Type    DeclaredType `json:"type,omitempty" yaml:"type,omitempty"`
	Min     *float64     `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64     `json:"max,omitempty" yaml:"max,omitempty"`
	Step    *float64     `json:"step,omitempty" yaml:"step,omitempty"`
	Format  string       `json:"format,omitempty" yaml:"format,omitempty"`
}

// DeclaredType returns the requested control type, defaulting to number.
func (s FieldSpec) DeclaredType() DeclaredType {
	if s.Type == "" {
		return TypeNumber
	}
	return s.Type
}

// ResolvedField is the numeric input policy derived from a FieldSpec.
type ResolvedField struct {
	Kind   Kind     `json:"kind"`
	Min    float64  `json:"min"`
	Max    *float64 `json:"max,omitempty"`
	Step   float64  `json:"step"`
	Format string   `json:"format"`
}

// FormatValue renders v using the field's display format.
func (r ResolvedField) FormatValue(v float64) string {
	if strings.HasSuffix(r.Format, "d") {
		return fmt.Sprintf(r.Format, int64(math.Round(v)))
	}
	return fmt.Sprintf(r.Format, v)
}

// HTMLStep renders the step for an HTML step attribute.
func (r ResolvedField) HTMLStep() string {
	return strconv.FormatFloat(r.Step, 'f', -1, 64)
}

// HTMLMin renders the lower bound for an HTML min attribute.
func (r ResolvedField) HTMLMin() string {
	return strconv.FormatFloat(r.Min, 'f', -1, 64)
}

// HTMLMax renders the upper bound, or "" when the field is unbounded.
func (r ResolvedField) HTMLMax() string {
	if r.Max == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Max, 'f', -1, 64)
}
