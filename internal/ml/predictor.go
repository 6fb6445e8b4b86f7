package ml

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/features"
)

// Decision statuses.
const (
	StatusApproved = "Y"
	StatusRejected = "N"
)

// DefaultConfidence is reported when the model cannot estimate probabilities.
const DefaultConfidence = 0.8

const (
	approvedMessage = "Congratulations! Based on the provided details, your loan is likely to be sanctioned."
	rejectedMessage = "Unfortunately, based on the provided details, the loan is likely to be rejected."
)

var approvedLabels = map[string]struct{}{
	"Y":        {},
	"YES":      {},
	"1":        {},
	"APPROVED": {},
}

// MetricsInterface defines the metrics the predictor and server report.
type MetricsInterface interface {
	PredictionInc(status string)
	PredictionFailureInc()
	ValidationErrorInc()
	LatencyObserve(seconds float64)
	ConfidenceObserve(confidence float64)
	ModelAgeSet(seconds float64)
	UnmappedFeaturesSet(n int)
}

// Decision is the normalized outcome returned to callers.
type Decision struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
}

// Predictor aligns records to the loaded model's schema and normalizes its output.
// It keeps no per-request state, so one Predictor serves all requests.
type Predictor struct {
	model   *LoadedModel
	aligner *features.Aligner
	metrics MetricsInterface
}

// NewPredictor builds a predictor for lm. metrics may be nil.
func NewPredictor(lm *LoadedModel, aligner *features.Aligner, metrics MetricsInterface) *Predictor {
	if aligner == nil {
		aligner = features.NewAligner(nil)
	}
	p := &Predictor{model: lm, aligner: aligner, metrics: metrics}

	unmapped := aligner.Unmapped(lm.Schema())
	if len(unmapped) > 0 {
		log.Warn().
			Strs("features", unmapped).
			Msg("model schema has features no request field maps to; they will always be 0")
	}
	if metrics != nil {
		metrics.UnmappedFeaturesSet(len(unmapped))
		if mod := lm.Info().ModifiedAt; !mod.IsZero() {
			metrics.ModelAgeSet(time.Since(mod).Seconds())
		}
	}
	return p
}

// Row returns the row the model will see for r.
func (p *Predictor) Row(r features.ApplicationRecord) features.Row {
	return p.aligner.Align(r, p.model.Schema())
}

// Predict classifies r. Errors from the model are returned unchanged in
// meaning and are not retried.
func (p *Predictor) Predict(r features.ApplicationRecord) (Decision, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	if !p.model.Loaded() {
		p.recordFailure()
		return Decision{}, fmt.Errorf("predict: model not loaded")
	}

	row := p.Row(r)

	raw, err := p.model.model.Predict(row)
	if err != nil {
		p.recordFailure()
		log.Error().Err(err).Interface("row", row.Map()).Msg("model prediction failed")
		return Decision{}, fmt.Errorf("predict: %w", err)
	}

	confidence := DefaultConfidence
	if p.model.caps.SupportsProbabilities {
		proba, err := p.model.proba.PredictProba(row)
		if err != nil {
			p.recordFailure()
			log.Error().Err(err).Interface("row", row.Map()).Msg("probability estimation failed")
			return Decision{}, fmt.Errorf("predict proba: %w", err)
		}
		confidence = maxProbability(proba)
	}

	status := NormalizeStatus(raw)
	d := Decision{
		Status:     status,
		Confidence: RoundConfidence(confidence),
		Message:    MessageFor(status),
	}

	if p.metrics != nil {
		p.metrics.PredictionInc(d.Status)
		p.metrics.ConfidenceObserve(d.Confidence)
	}

	log.Debug().
		Str("raw_label", raw).
		Str("status", d.Status).
		Float64("confidence", d.Confidence).
		Msg("prediction successful")

	return d, nil
}

func (p *Predictor) recordFailure() {
	if p.metrics != nil {
		p.metrics.PredictionFailureInc()
	}
}

// NormalizeStatus maps a raw model label to "Y" or "N".
func NormalizeStatus(raw string) string {
	if _, ok := approvedLabels[strings.ToUpper(raw)]; ok {
		return StatusApproved
	}
	return StatusRejected
}

// MessageFor returns the user-facing message for a normalized status.
func MessageFor(status string) string {
	if status == StatusApproved {
		return approvedMessage
	}
	return rejectedMessage
}

// RoundConfidence clamps c to [0,1] and rounds it to 2 decimal places.
func RoundConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	c = math.Min(math.Max(c, 0), 1)
	return math.Round(c*100) / 100
}

func maxProbability(p []float64) float64 {
	if len(p) == 0 {
		return DefaultConfidence
	}
	return p[argmax(p)]
}
