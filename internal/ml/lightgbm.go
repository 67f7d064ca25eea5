package ml

import (
	"context"
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// BoostedModel runs a LightGBM binary classifier in-process. Artifacts are
// the text dumps written by Booster.save_model.
type BoostedModel struct {
	clf       *lightgbm.LGBMClassifier
	nFeatures int
}

// LoadBoostedModel reads a LightGBM text model. Only binary objectives are
// accepted; the forms map exactly two outcomes.
func LoadBoostedModel(path string) (*BoostedModel, error) {
	clf := lightgbm.NewLGBMClassifier()
	if err := clf.LoadModel(path); err != nil {
		return nil, fmt.Errorf("failed to load LightGBM model %s: %w", path, err)
	}

	m := clf.Model
	if len(m.Trees) == 0 || m.NumFeatures <= 0 {
		return nil, fmt.Errorf("LightGBM model %s has no trees", path)
	}
	switch m.Objective {
	case lightgbm.BinaryLogistic, lightgbm.BinaryCrossEntropy:
	default:
		return nil, fmt.Errorf("LightGBM model %s has objective %q, want binary", path, m.Objective)
	}
	clf.Predictor.SetDeterministic(true)

	return &BoostedModel{clf: clf, nFeatures: m.NumFeatures}, nil
}

// NFeatures returns max_feature_idx+1 from the model header.
func (m *BoostedModel) NFeatures() int { return m.nFeatures }

// Predict implements Model. The label is the class index, 0 or 1.
func (m *BoostedModel) Predict(_ context.Context, features FeatureVector) (RawLabel, error) {
	if len(features) != m.nFeatures {
		return RawLabel{}, newModelError("ValueError",
			"X has %d features, but the model is expecting %d features as input", len(features), m.nFeatures)
	}
	for _, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return RawLabel{}, newModelError("ValueError", "input contains NaN or infinity")
		}
	}

	X := mat.NewDense(1, len(features), append([]float64(nil), features...))
	out, err := m.clf.Predict(X)
	if err != nil {
		return RawLabel{}, newModelError("LightGBMError", "%v", err)
	}
	return NumberLabel(out.At(0, 0)), nil
}
