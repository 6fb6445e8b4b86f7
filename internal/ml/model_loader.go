package ml

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
)

// Model types an artifact may declare.
const (
	TypeRandomForest       = "random_forest"
	TypeDecisionTree       = "decision_tree"
	TypeLogisticRegression = "logistic_regression"
	TypeLinearSVC          = "linear_svc"
)

// artifact is the JSON export of a fitted scikit-learn estimator.
type artifact struct {
	ModelType    string       `json:"model_type"`
	Version      string       `json:"version"`
	FeatureNames []string     `json:"feature_names"`
	NFeatures    int          `json:"n_features"`
	Classes      []classLabel `json:"classes"`
	Estimators   []treeArrays `json:"estimators"`
	Coef         []float64    `json:"coef"`
	Intercept    float64      `json:"intercept"`
}

type treeArrays struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// classLabel accepts string, numeric and boolean labels and keeps their text
// form, so a numeric 1 becomes "1".
type classLabel string

func (c *classLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = classLabel(s)
		return nil
	}
	switch string(data) {
	case "true":
		*c = "True"
		return nil
	case "false":
		*c = "False"
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("class label %s: %w", data, err)
	}
	*c = classLabel(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	Path       string    `json:"path"`
	Version    string    `json:"version"`
	ModelType  string    `json:"model_type"`
	Checksum   string    `json:"checksum"`
	NFeatures  int       `json:"n_features"`
	Classes    []string  `json:"classes"`
	ModifiedAt time.Time `json:"modified_at"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// LoadedModel is the process-wide model: built once at startup, shared by all
// requests, released by Close. Its fields are never written after
// construction; release is tracked separately so readers never race with it.
type LoadedModel struct {
	model    Model
	proba    ProbabilityEstimator
	schema   features.Schema
	caps     Capabilities
	info     ModelInfo
	released atomic.Bool
}

// NewLoadedModel wraps m, detecting and caching its capabilities.
func NewLoadedModel(m Model, info ModelInfo) *LoadedModel {
	lm := &LoadedModel{
		model: m,
		caps:  DetectCapabilities(m),
		info:  info,
	}
	if lm.caps.SupportsProbabilities {
		lm.proba = m.(ProbabilityEstimator)
	}
	if lm.caps.HasDeclaredSchema {
		names := m.(SchemaDeclarer).FeatureNames()
		lm.schema = make(features.Schema, len(names))
		copy(lm.schema, names)
	}
	if lm.info.LoadedAt.IsZero() {
		lm.info.LoadedAt = time.Now()
	}
	return lm
}

// LoadModel reads and validates the artifact at path.
func LoadModel(path string) (*LoadedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	if err := validateArtifact(data); err != nil {
		return nil, err
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	m, nFeatures, err := buildModel(art)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	info := ModelInfo{
		Path:      path,
		Version:   art.Version,
		ModelType: art.ModelType,
		Checksum:  hex.EncodeToString(sum[:]),
		NFeatures: nFeatures,
		Classes:   labels(art.Classes),
		LoadedAt:  time.Now(),
	}
	if info.Version == "" {
		info.Version = "unknown"
	}
	if st, err := os.Stat(path); err == nil {
		info.ModifiedAt = st.ModTime()
	}

	lm := NewLoadedModel(m, info)
	log.Info().
		Str("model_path", path).
		Str("model_type", info.ModelType).
		Str("version", info.Version).
		Int("n_features", nFeatures).
		Bool("has_schema", lm.caps.HasDeclaredSchema).
		Bool("supports_proba", lm.caps.SupportsProbabilities).
		Msg("model loaded")
	return lm, nil
}

func labels(cs []classLabel) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func buildModel(art artifact) (Model, int, error) {
	classes := labels(art.Classes)
	if len(classes) < 2 {
		return nil, 0, fmt.Errorf("%w: need at least 2 classes, got %d", ErrInvalidArtifact, len(classes))
	}

	var schema features.Schema
	if len(art.FeatureNames) > 0 {
		schema = features.Schema(art.FeatureNames)
		if art.NFeatures != 0 && art.NFeatures != len(schema) {
			return nil, 0, fmt.Errorf("%w: n_features %d but %d feature names", ErrInvalidArtifact, art.NFeatures, len(schema))
		}
	}

	switch art.ModelType {
	case TypeRandomForest, TypeDecisionTree:
		if len(art.Estimators) == 0 {
			return nil, 0, fmt.Errorf("%w: %s without estimators", ErrInvalidArtifact, art.ModelType)
		}
		if art.ModelType == TypeDecisionTree && len(art.Estimators) != 1 {
			return nil, 0, fmt.Errorf("%w: decision_tree with %d estimators", ErrInvalidArtifact, len(art.Estimators))
		}
		f := &Forest{classes: classes, schema: schema}
		maxFeature := -1
		for i, ta := range art.Estimators {
			t, err := newTree(ta, len(classes))
			if err != nil {
				return nil, 0, fmt.Errorf("%w: estimator %d: %v", ErrInvalidArtifact, i, err)
			}
			if mf := t.maxFeature(); mf > maxFeature {
				maxFeature = mf
			}
			f.trees = append(f.trees, t)
		}
		f.nFeatures = featureCount(art, schema, maxFeature+1)
		if maxFeature >= f.nFeatures {
			return nil, 0, fmt.Errorf("%w: split on feature %d but model has %d features", ErrInvalidArtifact, maxFeature, f.nFeatures)
		}
		return f, f.nFeatures, nil

	case TypeLogisticRegression, TypeLinearSVC:
		if len(classes) != 2 {
			return nil, 0, fmt.Errorf("%w: %s supports binary classification only", ErrInvalidArtifact, art.ModelType)
		}
		if len(art.Coef) == 0 {
			return nil, 0, fmt.Errorf("%w: %s without coefficients", ErrInvalidArtifact, art.ModelType)
		}
		if n := featureCount(art, schema, len(art.Coef)); n != len(art.Coef) {
			return nil, 0, fmt.Errorf("%w: %d coefficients for %d features", ErrInvalidArtifact, len(art.Coef), n)
		}
		l := linear{coef: art.Coef, intercept: art.Intercept, classes: classes, schema: schema}
		if art.ModelType == TypeLogisticRegression {
			return &LogisticRegression{l}, len(art.Coef), nil
		}
		return &LinearSVC{l}, len(art.Coef), nil
	}

	return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedModel, art.ModelType)
}

// featureCount prefers the declared schema, then n_features, then what the
// model itself references.
func featureCount(art artifact, schema features.Schema, inferred int) int {
	if schema != nil {
		return len(schema)
	}
	if art.NFeatures > 0 {
		return art.NFeatures
	}
	return inferred
}

// Model returns the wrapped model.
func (lm *LoadedModel) Model() Model { return lm.model }

// Schema returns the declared feature schema, or nil.
func (lm *LoadedModel) Schema() features.Schema { return lm.schema }

// Capabilities returns the capabilities detected at load time.
func (lm *LoadedModel) Capabilities() Capabilities { return lm.caps }

// Info returns artifact metadata.
func (lm *LoadedModel) Info() ModelInfo { return lm.info }

// Loaded reports whether the model has not been released yet.
func (lm *LoadedModel) Loaded() bool { return lm != nil && !lm.released.Load() }

// Close marks the model released. Requests still in flight finish against the
// unchanged model; later ones are refused. Closing twice is a no-op.
func (lm *LoadedModel) Close() error {
	if lm == nil || lm.released.Swap(true) {
		return nil
	}
	log.Info().Str("model_path", lm.info.Path).Msg("model released")
	return nil
}
