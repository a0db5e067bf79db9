package model

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrNotLoaded is returned when no classifier has been installed yet.
var ErrNotLoaded = errors.New("model not loaded")

// Registry holds the active classifier and lets a reload swap it under live traffic.
type Registry struct {
	current atomic.Pointer[entry]
	loader  func() (Classifier, error)
	reloads atomic.Int64
}

type entry struct {
	classifier Classifier
	loadedAt   time.Time
}

// NewRegistry returns a registry that builds classifiers with loader.
func NewRegistry(loader func() (Classifier, error)) *Registry {
	return &Registry{loader: loader}
}

// Reload builds a fresh classifier and installs it. On failure the previous one stays.
func (r *Registry) Reload() error {
	c, err := r.loader()
	if err != nil {
		return err
	}
	r.Swap(c)
	return nil
}

// Swap installs c as the active classifier.
func (r *Registry) Swap(c Classifier) {
	r.current.Store(&entry{classifier: c, loadedAt: time.Now()})
	r.reloads.Add(1)
}

// Loaded reports whether a classifier is installed.
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}

// LoadedAt is when the active classifier was installed, zero if none.
func (r *Registry) LoadedAt() time.Time {
	if e := r.current.Load(); e != nil {
		return e.loadedAt
	}
	return time.Time{}
}

// Loads counts successful installs.
func (r *Registry) Loads() int64 {
	return r.reloads.Load()
}

// Current returns the active classifier.
func (r *Registry) Current() (Classifier, error) {
	e := r.current.Load()
	if e == nil {
		return nil, ErrNotLoaded
	}
	return e.classifier, nil
}

// Predict forwards to the active classifier.
func (r *Registry) Predict(ctx context.Context, in Input) (Prediction, error) {
	c, err := r.Current()
	if err != nil {
		return Prediction{}, err
	}
	return c.Predict(ctx, in)
}
