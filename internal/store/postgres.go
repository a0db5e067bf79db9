// Package store persists predictions to Postgres and caches them in Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/vetdiag/internal/model"
)

// ErrDBDisabled is returned by a nil PredictionLog.
var ErrDBDisabled = errors.New("database disabled")

// DB is the subset of *pgxpool.Pool the prediction log uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Connect opens a pool and verifies it answers within five seconds.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// PredictionRecord is one logged prediction.
type PredictionRecord struct {
	ID         uuid.UUID `json:"id"`
	Symptoms   string    `json:"ciri_kasus"`
	Species    string    `json:"hewan,omitempty"`
	Diagnosis  string    `json:"predicted_diagnosis"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id          UUID PRIMARY KEY,
	symptoms    TEXT NOT NULL,
	species     TEXT NOT NULL DEFAULT '',
	diagnosis   TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS predictions_created_at_idx ON predictions (created_at DESC);`

// PredictionLog writes predictions to the predictions table.
type PredictionLog struct {
	db  DB
	now func() time.Time
}

// NewPredictionLog wraps db.
func NewPredictionLog(db DB) *PredictionLog {
	return &PredictionLog{db: db, now: time.Now}
}

// Migrate creates the predictions table if needed.
func (l *PredictionLog) Migrate(ctx context.Context) error {
	if l == nil {
		return ErrDBDisabled
	}
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate predictions: %w", err)
	}
	return nil
}

// Insert records a prediction and returns the stored row.
func (l *PredictionLog) Insert(ctx context.Context, in model.Input, p model.Prediction) (PredictionRecord, error) {
	if l == nil {
		return PredictionRecord{}, ErrDBDisabled
	}
	rec := PredictionRecord{
		ID:         uuid.New(),
		Symptoms:   in.Symptoms,
		Species:    in.Species,
		Diagnosis:  p.Diagnosis,
		Confidence: p.Confidence,
		Source:     p.Source,
		CreatedAt:  l.now().UTC(),
	}
	_, err := l.db.Exec(ctx,
		`INSERT INTO predictions (id, symptoms, species, diagnosis, confidence, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Symptoms, rec.Species, rec.Diagnosis, rec.Confidence, rec.Source, rec.CreatedAt)
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("insert prediction: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit predictions, newest first.
func (l *PredictionLog) Recent(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if l == nil {
		return nil, ErrDBDisabled
	}
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	rows, err := l.db.Query(ctx,
		`SELECT id, symptoms, species, diagnosis, confidence, source, created_at
		 FROM predictions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PredictionRecord, error) {
		var r PredictionRecord
		err := row.Scan(&r.ID, &r.Symptoms, &r.Species, &r.Diagnosis, &r.Confidence, &r.Source, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}
	return out, nil
}

// Ping checks the database.
func (l *PredictionLog) Ping(ctx context.Context) error {
	if l == nil {
		return ErrDBDisabled
	}
	return l.db.Ping(ctx)
}
