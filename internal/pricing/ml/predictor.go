package ml

import (
	"context"
	"errors"
	"fmt"
	"math"

	"solar_price/internal/domain"
)

var ErrMissingFeature = errors.New("missing feature")

const (
	confidenceBase    = 0.70
	confidenceCeiling = 0.95
)

// Predictor runs inference over an immutable model; safe for concurrent use.
type Predictor struct {
	model       *Model
	placeholder bool
}

// NewPredictor never fails: a nil or invalid model is replaced by the
// placeholder.
func NewPredictor(m *Model) *Predictor {
	if m.Validate() != nil {
		return &Predictor{model: PlaceholderModel(), placeholder: true}
	}
	return &Predictor{model: m}
}

// LoadPredictor reads the artifact from store. The returned predictor is
// always usable; err reports why the placeholder was chosen.
func LoadPredictor(ctx context.Context, store domain.ModelStore) (*Predictor, error) {
	if store == nil {
		return NewPredictor(nil), nil
	}
	b, err := store.Load(ctx)
	if err != nil {
		return NewPredictor(nil), fmt.Errorf("load model: %w", err)
	}
	m, err := ParseModel(b)
	if err != nil {
		return NewPredictor(nil), err
	}
	return NewPredictor(m), nil
}

// Predict walks every tree. Features are reordered by the model's own
// feature names; a name the model needs but f lacks is an error.
func (p *Predictor) Predict(f Features) (float64, error) {
	x := make([]float64, len(p.model.FeatureNames))
	for i, n := range p.model.FeatureNames {
		v, ok := f[n]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingFeature, n)
		}
		x[i] = v
	}
	sum := 0.0
	for _, t := range p.model.Trees {
		sum += t.walk(x)
	}
	out := math.Round(p.model.InitialPrediction + p.model.LearningRate*sum)
	if !finite(out) {
		return 0, fmt.Errorf("non-finite prediction")
	}
	return out, nil
}

// Confidence is computed from the features alone, not from the ensemble.
func (p *Predictor) Confidence(f Features) float64 {
	c := confidenceBase
	if f[FeatureListingsCount] >= 5 {
		c += 0.10
	}
	if f[FeatureArea] > 0 {
		c += 0.05
	}
	if f[FeatureAggregated] > 0 {
		c += 0.10
	}
	return math.Round(math.Min(c, confidenceCeiling)*100) / 100
}

func (p *Predictor) Version() string {
	if p.model.Version != "" {
		return p.model.Version
	}
	return "unversioned"
}

func (p *Predictor) Placeholder() bool { return p.placeholder }

func (p *Predictor) Estimators() int { return len(p.model.Trees) }
