package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote calls an external inference server that speaks the /predict contract.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote returns a Remote classifier. A nil client gets a 10s timeout default.
func NewRemote(baseURL string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type remoteRequest struct {
	Symptoms string `json:"ciri_kasus"`
	Species  string `json:"hewan,omitempty"`
}

type remoteResponse struct {
	Status    string  `json:"status"`
	Diagnosis string  `json:"predicted_diagnosis"`
	Score     float64 `json:"confidence"`
	Error     string  `json:"error"`
}

func (r *Remote) Predict(ctx context.Context, in Input) (Prediction, error) {
	if strings.TrimSpace(in.Symptoms) == "" {
		return Prediction{}, ErrEmptyInput
	}
	body, err := json.Marshal(remoteRequest{Symptoms: in.Symptoms, Species: in.Species})
	if err != nil {
		return Prediction{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("call inference server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("read inference response: %w", err)
	}
	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Prediction{}, fmt.Errorf("decode inference response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Prediction{}, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, msg)
	}
	if out.Diagnosis == "" {
		return Prediction{}, fmt.Errorf("inference server returned no diagnosis")
	}

	return Prediction{
		Label:      -1,
		Diagnosis:  out.Diagnosis,
		Confidence: out.Score,
		Source:     "remote",
	}, nil
}

// Ping checks the inference server answers at all.
func (r *Remote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy: %d", resp.StatusCode)
	}
	return nil
}
