package model

import (
	"fmt"
	"math"
	"sort"
)

// LinearClassifier is an exported one-vs-rest linear model.
type LinearClassifier struct {
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	Classes   []int       `json:"classes"`
}

func (c *LinearClassifier) init(features int) error {
	if len(c.Classes) < 2 {
		return fmt.Errorf("classifier: need at least 2 classes, got %d", len(c.Classes))
	}
	rows := len(c.Classes)
	if c.binary() {
		rows = 1
	}
	if len(c.Coef) != rows {
		return fmt.Errorf("classifier: coef has %d rows, want %d", len(c.Coef), rows)
	}
	if len(c.Intercept) != rows {
		return fmt.Errorf("classifier: intercept has %d values, want %d", len(c.Intercept), rows)
	}
	for i, row := range c.Coef {
		if len(row) != features {
			return fmt.Errorf("classifier: coef row %d has %d weights, vectorizer has %d features", i, len(row), features)
		}
	}
	return nil
}

// binary models store a single decision row for the positive class.
func (c *LinearClassifier) binary() bool {
	return len(c.Classes) == 2 && len(c.Coef) == 1
}

// Scores returns one decision score per class, in Classes order.
func (c *LinearClassifier) Scores(x SparseVector) []float64 {
	raw := make([]float64, len(c.Coef))
	for i, row := range c.Coef {
		s := c.Intercept[i]
		for col, w := range x {
			s += row[col] * w
		}
		raw[i] = s
	}
	if c.binary() {
		return []float64{0, raw[0]}
	}
	return raw
}

// ClassScore pairs an encoded class with its probability-like weight.
type ClassScore struct {
	Class int
	Prob  float64
}

// Rank returns classes ordered by descending softmax probability.
// Equal scores keep the lower class index first.
func (c *LinearClassifier) Rank(x SparseVector) []ClassScore {
	probs := softmax(c.Scores(x))
	out := make([]ClassScore, len(probs))
	for i, p := range probs {
		out[i] = ClassScore{Class: c.Classes[i], Prob: p}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Prob > out[j].Prob })
	return out
}

func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
