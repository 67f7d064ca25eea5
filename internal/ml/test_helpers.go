package ml

import (
	"context"
	"sync"
)

// StaticModel implements Model for testing. It returns Label (or Err) and
// records every vector it was called with.
type StaticModel struct {
	mu    sync.Mutex
	Label RawLabel
	Err   error
	Panic any
	calls []FeatureVector
}

func (m *StaticModel) Predict(_ context.Context, features FeatureVector) (RawLabel, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append(FeatureVector(nil), features...))
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.Err != nil {
		return RawLabel{}, m.Err
	}
	return m.Label, nil
}

// Calls returns the vectors passed to Predict so far.
func (m *StaticModel) Calls() []FeatureVector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FeatureVector(nil), m.calls...)
}
