package ml

import (
	"encoding/json"
	"fmt"
	"math"

	"solar_price/internal/domain"
)

// leaf marks a node without children in children_left / children_right.
const leaf = -1

// Tree is one exported regression tree in parallel-array form.
type Tree struct {
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Value         []float64 `json:"value"`
}

// Model is an additive tree ensemble:
// prediction = InitialPrediction + LearningRate * sum(leaf values).
type Model struct {
	Type              string   `json:"type"`
	NEstimators       int      `json:"n_estimators"`
	Version           string   `json:"version,omitempty"`
	FeatureNames      []string `json:"feature_names"`
	Trees             []Tree   `json:"trees"`
	InitialPrediction float64  `json:"initial_prediction"`
	LearningRate      float64  `json:"learning_rate"`
}

// ParseModel decodes and validates an exported model.
func ParseModel(b []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structure so that traversal can never index out of
// range or loop: every child index is strictly greater than its parent.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", domain.ErrInvalidModel)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: no trees", domain.ErrInvalidModel)
	}
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("%w: no feature names", domain.ErrInvalidModel)
	}
	seen := make(map[string]bool, len(m.FeatureNames))
	for _, n := range m.FeatureNames {
		if seen[n] {
			return fmt.Errorf("%w: duplicate feature %q", domain.ErrInvalidModel, n)
		}
		seen[n] = true
	}
	if !finite(m.InitialPrediction) || !finite(m.LearningRate) {
		return fmt.Errorf("%w: non-finite initial prediction or learning rate", domain.ErrInvalidModel)
	}
	for ti, t := range m.Trees {
		if err := t.validate(len(m.FeatureNames)); err != nil {
			return fmt.Errorf("%w: tree %d: %v", domain.ErrInvalidModel, ti, err)
		}
	}
	return nil
}

func (t Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("array lengths differ")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf || r == leaf {
			if l != r {
				return fmt.Errorf("node %d: half leaf", i)
			}
			if !finite(t.Value[i]) {
				return fmt.Errorf("node %d: non-finite leaf value", i)
			}
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d: child index out of order", i)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, f)
		}
		if math.IsNaN(t.Threshold[i]) {
			return fmt.Errorf("node %d: NaN threshold", i)
		}
	}
	return nil
}

// walk returns the leaf value reached by x.
func (t Tree) walk(x []float64) float64 {
	i := 0
	for t.ChildrenLeft[i] != leaf {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}
	return t.Value[i]
}

// PlaceholderModel is used until a trained model is published: one stump on
// the aggregated price that nudges it by ±20 around 6500.
func PlaceholderModel() *Model {
	agg := 0
	for i, n := range featureNames {
		if n == FeatureAggregated {
			agg = i
		}
	}
	return &Model{
		Type:         "gradient_boosting",
		NEstimators:  1,
		Version:      "placeholder",
		FeatureNames: FeatureNames(),
		Trees: []Tree{{
			Feature:       []int{agg, -2, -2},
			Threshold:     []float64{6500, 0, 0},
			ChildrenLeft:  []int{1, leaf, leaf},
			ChildrenRight: []int{2, leaf, leaf},
			Value:         []float64{0, -200, 200},
		}},
		InitialPrediction: 6500,
		LearningRate:      0.1,
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
