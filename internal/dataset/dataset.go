// Package dataset keeps the cleaned treatment-log records the dashboard reads from.
package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/treatment"
)

// Snapshot is an immutable view of one load.
type Snapshot struct {
	Records  []treatment.Record
	Report   treatment.CleanReport
	LoadedAt time.Time
	Source   string
}

// Store loads treatment logs from a path and serves the latest snapshot.
type Store struct {
	path   string
	rules  *treatment.Rules
	logger *zap.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// New returns an empty store; call Reload to populate it.
func New(path string, rules *treatment.Rules, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, rules: rules, logger: logger.Named("dataset")}
}

// Reload reads, extracts and cleans every log under the store's path. A failed
// reload leaves the previous snapshot in place.
func (s *Store) Reload(ctx context.Context) error {
	start := time.Now()
	raws, err := treatment.LoadDir(ctx, s.path)
	if err != nil {
		return fmt.Errorf("load treatment logs: %w", err)
	}
	recs, rep := s.rules.Clean(raws)

	snap := &Snapshot{Records: recs, Report: rep, LoadedAt: time.Now(), Source: s.path}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("treatment logs loaded",
		zap.String("path", s.path),
		zap.Int("input_rows", rep.InputRows),
		zap.Int("kept_rows", rep.KeptRows),
		zap.Int("kept_classes", rep.KeptClasses),
		zap.Int("dropped_rare", rep.DroppedRare),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Snapshot returns the current snapshot, or an empty one before the first load.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return &Snapshot{Source: s.path}
	}
	return s.snap
}

// Path is the file or directory the store reads.
func (s *Store) Path() string {
	return s.path
}
