package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keyword sets are matched as case-sensitive substrings of the label.
var (
	categoricalKeywords = []string{
		"Age", "Number", "Sex", "Smoking", "Yellow Fingers", "Anxiety", "Peer Pressure",
		"Chronic Disease", "Fatigue", "Allergy", "Wheezing", "Alcohol Consuming", "Coughing",
		"Shortness Of Breath", "Swallowing Difficulty", "Chest Pain", "On Thyroxine",
		"Query On Thyroxine", "cp", "fbs", "restecg", "exang", "slope", "ca", "thal", "Gender",
	}

	continuousKeywords = []string{
		"BMI", "Pedigree", "oldpeak", "Hz", "(%)", "(Abs)", "MDVP", "Jitter", "Shimmer",
		"NHR", "HNR", "RPDE", "DFA", "spread", "D2", "PPE",
	}

	coarseStepKeywords = []string{"BMI", "Pedigree", "oldpeak"}
	fineStepKeywords   = []string{"(Abs)"}
	ratioStepKeywords  = []string{
		"Hz", "(%)", "MDVP", "Jitter", "Shimmer", "NHR", "HNR", "RPDE", "DFA", "spread", "D2", "PPE",
	}

	binaryCodingMarkers = []string{"1 =", "0 ="}
	binaryRangeMarkers  = []string{"Yes; 0 = No", "male; 0 = female"}
)

const (
	coarseStep  = 0.1
	fineStep    = 0.00001
	ratioStep   = 0.001
	defaultStep = 0.1
)

// Classify decides the numeric kind of a field from its label and help text.
// Continuous-measurement keywords in the label win over categorical ones.
func Classify(label, tooltip string) Kind {
	if !containsAny(label, categoricalKeywords) && !containsAny(tooltip, binaryCodingMarkers) {
		return Real
	}
	if containsAny(label, continuousKeywords) {
		return Real
	}
	return Integer
}

// Resolve derives the input policy for spec. It always returns a usable
// ResolvedField; explicit overrides on spec are coerced to the inferred kind.
func Resolve(spec FieldSpec) ResolvedField {
	kind := Classify(spec.Label, spec.Tooltip)
	r := ResolvedField{Kind: kind}

	if spec.Min != nil {
		r.Min = coerce(kind, *spec.Min)
	}

	if spec.Step != nil {
		r.Step = coerce(kind, *spec.Step)
		if kind == Integer && r.Step < 1 {
			r.Step = 1
		}
	} else {
		r.Step = defaultStepFor(kind, spec.Label)
	}

	switch {
	case spec.Max != nil:
		upper := coerce(kind, *spec.Max)
		r.Max = &upper
	case kind == Integer && containsAny(spec.Tooltip, binaryRangeMarkers):
		upper := 1.0
		r.Max = &upper
	}

	r.Format = spec.Format
	if r.Format == "" {
		r.Format = formatFor(kind, r.Step)
	}
	return r
}

func defaultStepFor(kind Kind, label string) float64 {
	switch {
	case kind == Integer:
		return 1
	case containsAny(label, coarseStepKeywords):
		return coarseStep
	case containsAny(label, fineStepKeywords):
		return fineStep
	case containsAny(label, ratioStepKeywords):
		return ratioStep
	default:
		return defaultStep
	}
}

// formatFor picks a printf verb showing as many decimals as the step has.
func formatFor(kind Kind, step float64) string {
	if kind == Integer {
		return "%d"
	}
	s := strconv.FormatFloat(step, 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return "%.1f"
	}
	return fmt.Sprintf("%%.%df", len(s)-i-1)
}

func coerce(kind Kind, v float64) float64 {
	if kind == Integer {
		return math.Trunc(v)
	}
	return v
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
