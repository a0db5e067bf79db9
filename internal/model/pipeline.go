package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is a vectorizer followed by a linear classifier, exported from training.
type Pipeline struct {
	Vectorizer *Vectorizer       `json:"vectorizer"`
	Classifier *LinearClassifier `json:"classifier"`
}

// LoadPipeline reads and validates a JSON pipeline artifact.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pipeline %s: %w", path, err)
	}
	if err := p.Init(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return &p, nil
}

// Init validates dimensions and compiles the tokenizer. LoadPipeline calls it.
func (p *Pipeline) Init() error {
	if p.Vectorizer == nil || p.Classifier == nil {
		return fmt.Errorf("pipeline needs both vectorizer and classifier")
	}
	if err := p.Vectorizer.init(); err != nil {
		return err
	}
	return p.Classifier.init(p.Vectorizer.Features())
}

// Predict returns the encoded label for text.
func (p *Pipeline) Predict(text string) int {
	return p.Rank(text)[0].Class
}

// Rank scores every class for text, best first.
func (p *Pipeline) Rank(text string) []ClassScore {
	return p.Classifier.Rank(p.Vectorizer.Transform(text))
}
