package diagnosis

import (
	"strings"

	"diseasepredict/internal/ml"
)

// LabelRule reports whether a raw model output is the positive class.
type LabelRule func(ml.RawLabel) bool

// DefaultRule treats numeric 1 as positive.
func DefaultRule(l ml.RawLabel) bool {
	n, ok := l.Number()
	return ok && n == 1
}

// LungCancerRule also accepts 2 and "YES", since the dataset is commonly
// coded 2/1 or YES/NO.
func LungCancerRule(l ml.RawLabel) bool {
	if n, ok := l.Number(); ok {
		return n == 1 || n == 2
	}
	return strings.EqualFold(strings.TrimSpace(l.String()), "YES")
}

// Label maps a raw output to the form's user-facing text.
func (f DiseaseForm) Label(raw ml.RawLabel) (string, bool) {
	rule := f.Rule
	if rule == nil {
		rule = DefaultRule
	}
	if rule(raw) {
		return f.Labels.Positive, true
	}
	return f.Labels.Negative, false
}
