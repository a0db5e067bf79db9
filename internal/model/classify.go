// Package model runs diagnosis prediction from exported text-classification artifacts.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there is no symptom text to classify.
var ErrEmptyInput = errors.New("empty symptom text")

// Input is one case to classify.
type Input struct {
	Symptoms string
	Species  string
}

// Text is the string fed to the vectorizer.
func (in Input) Text() string {
	symptoms := strings.TrimSpace(in.Symptoms)
	species := strings.TrimSpace(in.Species)
	if species == "" {
		return symptoms
	}
	return species + " " + symptoms
}

// Alternative is a runner-up diagnosis.
type Alternative struct {
	Diagnosis  string  `json:"diagnosis"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the classifier's answer for one Input.
type Prediction struct {
	Label        int           `json:"label"`
	Diagnosis    string        `json:"diagnosis"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Source       string        `json:"source"`
}

// Classifier predicts a diagnosis for a case.
type Classifier interface {
	Predict(ctx context.Context, in Input) (Prediction, error)
}

// DefaultAlternatives is how many runner-up diagnoses a local prediction carries.
const DefaultAlternatives = 3

// Local classifies in-process with a loaded pipeline and label encoder.
type Local struct {
	pipeline     *Pipeline
	encoder      *LabelEncoder
	alternatives int
}

// NewLocal pairs a pipeline with its label encoder. Every class the pipeline
// can emit must exist in the encoder.
func NewLocal(p *Pipeline, e *LabelEncoder) (*Local, error) {
	for _, class := range p.Classifier.Classes {
		if _, err := e.InverseTransform(class); err != nil {
			return nil, fmt.Errorf("pipeline class %d: %w", class, err)
		}
	}
	return &Local{pipeline: p, encoder: e, alternatives: DefaultAlternatives}, nil
}

// LoadLocal reads both artifacts from disk.
func LoadLocal(pipelinePath, encoderPath string) (*Local, error) {
	p, err := LoadPipeline(pipelinePath)
	if err != nil {
		return nil, err
	}
	e, err := LoadLabelEncoder(encoderPath)
	if err != nil {
		return nil, err
	}
	return NewLocal(p, e)
}

// Classes lists the diagnosis names the model knows.
func (l *Local) Classes() []string {
	return append([]string(nil), l.encoder.Classes...)
}

func (l *Local) Predict(ctx context.Context, in Input) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	text := in.Text()
	if strings.TrimSpace(in.Symptoms) == "" {
		return Prediction{}, ErrEmptyInput
	}

	ranked := l.pipeline.Rank(text)
	best := ranked[0]
	name, err := l.encoder.InverseTransform(best.Class)
	if err != nil {
		return Prediction{}, err
	}

	pred := Prediction{
		Label:      best.Class,
		Diagnosis:  name,
		Confidence: best.Prob,
		Source:     "local",
	}
	for _, cs := range ranked[1:] {
		if len(pred.Alternatives) == l.alternatives {
			break
		}
		alt, err := l.encoder.InverseTransform(cs.Class)
		if err != nil {
			return Prediction{}, err
		}
		pred.Alternatives = append(pred.Alternatives, Alternative{Diagnosis: alt, Confidence: cs.Prob})
	}
	return pred, nil
}
