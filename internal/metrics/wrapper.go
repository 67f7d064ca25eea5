package metrics

import "time"

// Recorder is what the web layer reports to. It keeps handlers independent
// of Prometheus types.
type Recorder interface {
	Submission(channel string)
	PredictionSucceeded(disease string, positive bool, latency time.Duration)
	PredictionFailed(disease, kind string)
	WSOpened()
	WSClosed()
}

// MetricsWrapper adapts Metrics to Recorder. A nil wrapper or one built on nil
// metrics records nothing.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) enabled() bool { return w != nil && w.m != nil }

func (w *MetricsWrapper) Submission(channel string) {
	if !w.enabled() {
		return
	}
	w.m.Submissions.WithLabelValues(channel).Inc()
}

func (w *MetricsWrapper) PredictionSucceeded(disease string, positive bool, latency time.Duration) {
	if !w.enabled() {
		return
	}
	w.m.Predictions.WithLabelValues(disease, OutcomeLabel(positive)).Inc()
	w.m.PredictionLatency.WithLabelValues(disease).Observe(latency.Seconds())
}

func (w *MetricsWrapper) PredictionFailed(disease, kind string) {
	if !w.enabled() {
		return
	}
	w.m.Errors.WithLabelValues(disease, kind).Inc()
}

func (w *MetricsWrapper) WSOpened() {
	if w.enabled() {
		w.m.WSConnections.Inc()
	}
}

func (w *MetricsWrapper) WSClosed() {
	if w.enabled() {
		w.m.WSConnections.Dec()
	}
}

// SetModelsLoaded records the registry size.
func (w *MetricsWrapper) SetModelsLoaded(n int) {
	if w.enabled() {
		w.m.ModelsLoaded.Set(float64(n))
	}
}

// ArtifactChanged counts an artifact whose checksum differs from the last run.
func (w *MetricsWrapper) ArtifactChanged() {
	if w.enabled() {
		w.m.ArtifactsChanged.Inc()
	}
}
