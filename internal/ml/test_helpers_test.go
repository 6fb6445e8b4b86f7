package ml

import (
	"errors"
	"sync"

	"loan-predictor/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      map[string]int
	failures         int
	validationErrors int
	latencyCount     int
	confidences      []float64
	modelAge         float64
	unmapped         int
}

func (m *MockMetrics) PredictionInc(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[status]++
}

func (m *MockMetrics) PredictionFailureInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) ValidationErrorInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyCount++
}

func (m *MockMetrics) ConfidenceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = append(m.confidences, v)
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) UnmappedFeaturesSet(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapped = n
}

func (m *MockMetrics) predictionCount(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[status]
}

// stubModel returns a fixed label and records the last row it saw.
type stubModel struct {
	mu    sync.Mutex
	label string
	err   error
	last  features.Row
}

func (s *stubModel) Predict(row features.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = row
	return s.label, s.err
}

func (s *stubModel) lastRow() features.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// stubProbaModel adds probability estimates and a declared schema.
type stubProbaModel struct {
	stubModel
	proba    []float64
	probaErr error
	schema   features.Schema
}

func (s *stubProbaModel) PredictProba(features.Row) ([]float64, error) {
	return s.proba, s.probaErr
}

func (s *stubProbaModel) Classes() []string { return []string{"N", "Y"} }

func (s *stubProbaModel) FeatureNames() features.Schema { return s.schema }

var errStubModel = errors.New("stub model failure")

// trainingSchema is the column order of the reference training pipeline.
var trainingSchema = features.Schema{
	"Credit_History", "TotalIncome", "EMI", "Balance_Income",
	"Gender_Female", "Gender_Male",
	"Married_No", "Married_Yes",
	"Dependents_0", "Dependents_1", "Dependents_2", "Dependents_3+",
	"Education_Graduate", "Education_Not Graduate",
	"Self_Employed_No", "Self_Employed_Yes",
	"Property_Area_Rural", "Property_Area_Semiurban", "Property_Area_Urban",
}

func sampleApplication() features.ApplicationRecord {
	return features.ApplicationRecord{
		Gender:            "Male",
		Married:           "Yes",
		Dependents:        "0",
		Education:         "Graduate",
		SelfEmployed:      "No",
		ApplicantIncome:   5000,
		CoapplicantIncome: 0,
		LoanAmount:        128,
		LoanAmountTerm:    360,
		CreditHistory:     1,
		PropertyArea:      "Urban",
	}
}
