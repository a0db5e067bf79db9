package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrUnknownLabel is returned when a label has no mapping in the encoder.
var ErrUnknownLabel = errors.New("unknown label")

// LabelEncoder maps encoded integer labels to diagnosis names and back.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

// NewLabelEncoder builds an encoder over the given ordered class names.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	e := &LabelEncoder{Classes: classes}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadLabelEncoder reads a JSON label encoder artifact.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label encoder: %w", err)
	}
	var e LabelEncoder
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode label encoder %s: %w", path, err)
	}
	if err := e.init(); err != nil {
		return nil, fmt.Errorf("label encoder %s: %w", path, err)
	}
	return &e, nil
}

func (e *LabelEncoder) init() error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("no classes")
	}
	e.index = make(map[string]int, len(e.Classes))
	for i, name := range e.Classes {
		if _, dup := e.index[name]; dup {
			return fmt.Errorf("duplicate class %q", name)
		}
		e.index[name] = i
	}
	return nil
}

// InverseTransform returns the diagnosis name for an encoded label.
func (e *LabelEncoder) InverseTransform(label int) (string, error) {
	if label < 0 || label >= len(e.Classes) {
		return "", fmt.Errorf("%w: %d", ErrUnknownLabel, label)
	}
	return e.Classes[label], nil
}

// Transform returns the encoded label for a diagnosis name.
func (e *LabelEncoder) Transform(name string) (int, error) {
	label, ok := e.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return label, nil
}
