package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"diseasepredict/internal/ml"
)

// ModelSource resolves a disease ID to its loaded model. *ml.Registry
// satisfies it.
type ModelSource interface {
	Get(id string) (ml.Model, bool)
}

// Outcome is a successful diagnosis.
type Outcome struct {
	Disease  string
	Label    string
	Positive bool
	Raw      ml.RawLabel
	Features ml.FeatureVector
	Latency  time.Duration
}

// Dispatcher runs submissions through assemble, length check, coercion,
// model invocation and label mapping. It holds no mutable state.
type Dispatcher struct {
	catalog *Catalog
	models  ModelSource
}

func NewDispatcher(catalog *Catalog, models ModelSource) *Dispatcher {
	return &Dispatcher{catalog: catalog, models: models}
}

// Catalog returns the forms the dispatcher serves.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Predict diagnoses an already ordered list of raw field values.
func (d *Dispatcher) Predict(ctx context.Context, diseaseID string, values []string) (Outcome, error) {
	f, ok := d.catalog.Get(diseaseID)
	if !ok {
		return Outcome{}, &Error{Kind: KindConfiguration, Disease: diseaseID, Message: fmt.Sprintf("unknown disease %q", diseaseID)}
	}
	return d.run(ctx, f, values)
}

// PredictForm assembles values by the form's field order. Keys missing from
// fields are skipped, so the length check reports them.
func (d *Dispatcher) PredictForm(ctx context.Context, diseaseID string, fields map[string]string) (Outcome, error) {
	f, ok := d.catalog.Get(diseaseID)
	if !ok {
		return Outcome{}, &Error{Kind: KindConfiguration, Disease: diseaseID, Message: fmt.Sprintf("unknown disease %q", diseaseID)}
	}
	return d.run(ctx, f, Assemble(f, fields))
}

// Assemble orders submitted values by the form's keys.
func Assemble(f DiseaseForm, fields map[string]string) []string {
	values := make([]string, 0, len(f.Fields))
	for _, spec := range f.Fields {
		if v, ok := fields[spec.Key]; ok {
			values = append(values, v)
		}
	}
	return values
}

func (d *Dispatcher) run(ctx context.Context, f DiseaseForm, values []string) (Outcome, error) {
	if len(values) != f.ExpectedFeatures {
		return Outcome{}, &Error{
			Kind:    KindConfiguration,
			Disease: f.ID,
			Message: fmt.Sprintf("feature count mismatch: expected %d, got %d", f.ExpectedFeatures, len(values)),
		}
	}

	features, err := coerce(f, values)
	if err != nil {
		return Outcome{}, err
	}

	var model ml.Model
	if d.models != nil {
		model, _ = d.models.Get(f.ID)
	}
	if model == nil {
		return Outcome{}, &Error{Kind: KindConfiguration, Disease: f.ID, Message: fmt.Sprintf("no model loaded for %s", f.ID)}
	}

	start := time.Now()
	raw, err := invoke(ctx, model, features)
	latency := time.Since(start)
	if err != nil {
		return Outcome{}, predictionError(f, err)
	}

	label, positive := f.Label(raw)
	return Outcome{
		Disease:  f.ID,
		Label:    label,
		Positive: positive,
		Raw:      raw,
		Features: features,
		Latency:  latency,
	}, nil
}

func coerce(f DiseaseForm, values []string) (ml.FeatureVector, error) {
	features := make(ml.FeatureVector, len(values))
	for i, raw := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			key := ""
			if i < len(f.Fields) {
				key = f.Fields[i].Key
			}
			msg := fmt.Sprintf("could not convert %q to a number", raw)
			if key != "" {
				msg += fmt.Sprintf(" (field %s)", key)
			}
			return nil, &Error{Kind: KindInput, Disease: f.ID, Field: key, Message: msg, Hint: f.InputHint, Err: err}
		}
		features[i] = v
	}
	return features, nil
}

type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("model panicked: %v", p.value) }

func invoke(ctx context.Context, model ml.Model, features ml.FeatureVector) (raw ml.RawLabel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return model.Predict(ctx, features)
}

func predictionError(f DiseaseForm, err error) *Error {
	typ := fmt.Sprintf("%T", err)
	msg := err.Error()
	var me *ml.ModelError
	var pe *panicError
	switch {
	case errors.As(err, &me):
		typ, msg = me.Type, me.Message
	case errors.As(err, &pe):
		typ = "Panic"
	case errors.Is(err, context.DeadlineExceeded):
		typ = "Timeout"
	}
	return &Error{Kind: KindPrediction, Disease: f.ID, Type: typ, Message: msg, Hint: f.PredictionHint, Err: err}
}
