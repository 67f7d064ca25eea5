// Package ml provides the model side of the prediction service: the opaque
// predict capability, the backends that implement it for serialized
// scikit-learn artifacts, remote inference servers and JSON linear exports,
// and the immutable registry that owns one model per disease.
//
// Models are loaded once at startup and never mutated afterwards, so the
// registry can be shared by concurrent requests without locking.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FeatureVector is the ordered numeric input to a model.
type FeatureVector []float64

// Model is a fitted classifier. Predict returns the raw class label produced
// for a single feature vector.
type Model interface {
	Predict(ctx context.Context, features FeatureVector) (RawLabel, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, features FeatureVector) (RawLabel, error)

func (f ModelFunc) Predict(ctx context.Context, features FeatureVector) (RawLabel, error) {
	return f(ctx, features)
}

// RawLabel is a class label as emitted by a model: either numeric or textual.
type RawLabel struct {
	num    float64
	text   string
	isText bool
}

// NumberLabel wraps a numeric class label.
func NumberLabel(v float64) RawLabel { return RawLabel{num: v} }

// TextLabel wraps a textual class label.
func TextLabel(s string) RawLabel { return RawLabel{text: s, isText: true} }

// Number returns the numeric label and whether the label is numeric.
func (l RawLabel) Number() (float64, bool) {
	return l.num, !l.isText
}

// IsText reports whether the model produced a string label.
func (l RawLabel) IsText() bool { return l.isText }

func (l RawLabel) String() string {
	if l.isText {
		return l.text
	}
	return strconv.FormatFloat(l.num, 'g', -1, 64)
}

func (l RawLabel) MarshalJSON() ([]byte, error) {
	if l.isText {
		return json.Marshal(l.text)
	}
	return json.Marshal(l.num)
}

// UnmarshalJSON accepts numbers, strings and booleans (true -> 1).
func (l *RawLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return fmt.Errorf("empty label")
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = TextLabel(s)
	case bytes.Equal(data, []byte("true")):
		*l = NumberLabel(1)
	case bytes.Equal(data, []byte("false")):
		*l = NumberLabel(0)
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid label %s: %w", data, err)
		}
		*l = NumberLabel(v)
	}
	return nil
}

// ModelError is a failure raised by a model during inference. Type carries
// the error class reported by the backend (for example a Python exception
// name), Message its text.
type ModelError struct {
	Type    string
	Message string
}

func (e *ModelError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

func newModelError(typ, format string, args ...any) *ModelError {
	return &ModelError{Type: typ, Message: strings.TrimSpace(fmt.Sprintf(format, args...))}
}
