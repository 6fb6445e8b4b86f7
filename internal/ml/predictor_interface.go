// Package ml loads the trained loan classifier and turns its raw output into
// approval decisions. A model is any value with a Predict method; probability
// estimates and a declared feature schema are optional capabilities detected
// once when the model is loaded.
package ml

import (
	"errors"

	"loan-predictor/internal/features"
)

var (
	// ErrModelNotFound is returned when the model artifact does not exist.
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrInvalidArtifact is returned when the artifact cannot be decoded or is inconsistent.
	ErrInvalidArtifact = errors.New("invalid model artifact")
	// ErrUnsupportedModel is returned for artifact model types this service cannot evaluate.
	ErrUnsupportedModel = errors.New("unsupported model type")
	// ErrFeatureCount is returned when a row's width differs from what the model was fitted on.
	ErrFeatureCount = errors.New("feature count mismatch")
)

// Model classifies a single row and returns the raw class label.
type Model interface {
	Predict(row features.Row) (string, error)
}

// ProbabilityEstimator is implemented by models that can score every class.
// The returned slice is aligned with Classes.
type ProbabilityEstimator interface {
	PredictProba(row features.Row) ([]float64, error)
	Classes() []string
}

// SchemaDeclarer is implemented by models that publish the ordered feature
// names they were trained on.
type SchemaDeclarer interface {
	FeatureNames() features.Schema
}

// Capabilities records which optional interfaces a model implements.
type Capabilities struct {
	SupportsProbabilities bool `json:"supports_probabilities"`
	HasDeclaredSchema     bool `json:"has_declared_schema"`
}

// DetectCapabilities inspects m once. A SchemaDeclarer that returns no names
// counts as having no schema.
func DetectCapabilities(m Model) Capabilities {
	var caps Capabilities
	if _, ok := m.(ProbabilityEstimator); ok {
		caps.SupportsProbabilities = true
	}
	if sd, ok := m.(SchemaDeclarer); ok && len(sd.FeatureNames()) > 0 {
		caps.HasDeclaredSchema = true
	}
	return caps
}
