package metrics

// MetricsWrapper adapts Metrics to the method set the predictor and server use.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionInc(status string) {
	w.m.Predictions.WithLabelValues(status).Inc()
}

func (w *MetricsWrapper) PredictionFailureInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) ValidationErrorInc() {
	w.m.ValidationErrors.Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) ConfidenceObserve(confidence float64) {
	w.m.ConfidenceScores.Observe(confidence)
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *MetricsWrapper) UnmappedFeaturesSet(n int) {
	w.m.UnmappedFeatures.Set(float64(n))
}
