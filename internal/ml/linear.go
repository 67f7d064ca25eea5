package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// LinearModel evaluates a logistic-regression export in-process. Artifacts
// are JSON documents:
//
//	{"coefficients": [..], "intercept": -1.2, "threshold": 0.5, "classes": [0, 1]}
type LinearModel struct {
	Coefficients []float64  `json:"coefficients"`
	Intercept    float64    `json:"intercept"`
	Threshold    float64    `json:"threshold"`
	Classes      []RawLabel `json:"classes"`
}

// LoadLinearModel reads and validates a JSON linear model artifact.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode linear model %s: %w", path, err)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("linear model %s has no coefficients", path)
	}
	if m.Threshold == 0 {
		m.Threshold = 0.5
	}
	if len(m.Classes) == 0 {
		m.Classes = []RawLabel{NumberLabel(0), NumberLabel(1)}
	}
	if len(m.Classes) != 2 {
		return nil, fmt.Errorf("linear model %s must declare exactly 2 classes, got %d", path, len(m.Classes))
	}
	return &m, nil
}

// NFeatures returns the number of inputs the model was fitted with.
func (m *LinearModel) NFeatures() int { return len(m.Coefficients) }

// Predict implements Model.
func (m *LinearModel) Predict(_ context.Context, features FeatureVector) (RawLabel, error) {
	if len(features) != len(m.Coefficients) {
		return RawLabel{}, newModelError("ValueError",
			"X has %d features, but the model is expecting %d features as input", len(features), len(m.Coefficients))
	}

	z := m.Intercept
	for i, x := range features {
		z += m.Coefficients[i] * x
	}
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return RawLabel{}, newModelError("ValueError", "input contains NaN or infinity")
	}

	if sigmoid(z) >= m.Threshold {
		return m.Classes[1], nil
	}
	return m.Classes[0], nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
