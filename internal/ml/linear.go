package ml

import (
	"fmt"
	"math"

	"loan-predictor/internal/features"
)

// linear holds the shared w·x + b evaluation of binary linear classifiers.
type linear struct {
	coef      []float64
	intercept float64
	classes   []string
	schema    features.Schema
}

func (l *linear) decision(row features.Row) (float64, error) {
	if row.Len() != len(l.coef) {
		return 0, fmt.Errorf("%w: row has %d features, model expects %d", ErrFeatureCount, row.Len(), len(l.coef))
	}
	z := l.intercept
	for i, w := range l.coef {
		x, err := row.Float(i)
		if err != nil {
			return 0, err
		}
		z += w * x
	}
	return z, nil
}

func (l *linear) label(z float64) string {
	if z > 0 {
		return l.classes[1]
	}
	return l.classes[0]
}

// LogisticRegression is a binary logistic model with probability estimates.
type LogisticRegression struct {
	linear
}

// PredictProba returns [P(classes[0]), P(classes[1])].
func (m *LogisticRegression) PredictProba(row features.Row) ([]float64, error) {
	z, err := m.decision(row)
	if err != nil {
		return nil, err
	}
	p := 1.0 / (1.0 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}

// Predict returns classes[1] when the decision value is positive.
func (m *LogisticRegression) Predict(row features.Row) (string, error) {
	z, err := m.decision(row)
	if err != nil {
		return "", err
	}
	return m.label(z), nil
}

// Classes returns the class labels in probability order.
func (m *LogisticRegression) Classes() []string { return m.classes }

// FeatureNames returns the declared schema, or nil.
func (m *LogisticRegression) FeatureNames() features.Schema { return m.schema }

// LinearSVC is a binary linear support vector classifier. It has a decision
// function but no probability estimates.
type LinearSVC struct {
	linear
}

// Predict returns classes[1] when the decision value is positive.
func (m *LinearSVC) Predict(row features.Row) (string, error) {
	z, err := m.decision(row)
	if err != nil {
		return "", err
	}
	return m.label(z), nil
}

// FeatureNames returns the declared schema, or nil.
func (m *LinearSVC) FeatureNames() features.Schema { return m.schema }
