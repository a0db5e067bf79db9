package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/logging"
	"github.com/Skufu/vetdiag/internal/metrics"
	"github.com/Skufu/vetdiag/internal/model"
)

// PredictRequest is the prediction form.
type PredictRequest struct {
	Symptoms string `json:"ciri_kasus" binding:"required,notblank,max=5000"`
	Species  string `json:"hewan" binding:"max=100"`
}

// PredictResponse mirrors the original /predict body and adds ranking details.
type PredictResponse struct {
	Status       string              `json:"status"`
	ID           string              `json:"id,omitempty"`
	Symptoms     string              `json:"input_ciri_kasus"`
	Species      string              `json:"hewan,omitempty"`
	Diagnosis    string              `json:"predicted_diagnosis"`
	Confidence   float64             `json:"confidence"`
	Alternatives []model.Alternative `json:"alternatives,omitempty"`
	Source       string              `json:"source"`
}

const invalidPredictInput = "invalid JSON input: field 'ciri_kasus' is required"

// predictLegacy keeps the bare {"error": ...} body of the original endpoint.
func (s *Server) predictLegacy(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidPredictInput})
		return
	}
	resp, err := s.runPrediction(c, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrNotLoaded) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "prediction failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fe := fieldErrors(err); fe != nil {
			e := errInvalidRequest.withDetails(fe)
			e.Message = describeFieldErrors(fe)
			abortWithError(c, e)
			return
		}
		abortWithError(c, errInvalidRequest.withDetails(invalidPredictInput))
		return
	}
	resp, err := s.runPrediction(c, req)
	switch {
	case errors.Is(err, model.ErrNotLoaded):
		abortWithError(c, errModelNotLoaded)
	case errors.Is(err, model.ErrEmptyInput):
		abortWithError(c, errInvalidRequest.withDetails(invalidPredictInput))
	case err != nil:
		e := errPredictionFailed.withDetails(err.Error())
		abortWithError(c, e)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) runPrediction(c *gin.Context, req PredictRequest) (PredictResponse, error) {
	if s.deps.Classifier == nil {
		return PredictResponse{}, model.ErrNotLoaded
	}
	in := model.Input{Symptoms: strings.TrimSpace(req.Symptoms), Species: strings.TrimSpace(req.Species)}

	pred, err := s.deps.Classifier.Predict(c.Request.Context(), in)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error", "").Inc()
		s.log.Error("prediction failed",
			zap.Error(err),
			zap.String("request_id", c.GetString(logging.RequestIDKey)),
		)
		return PredictResponse{}, err
	}
	metrics.PredictionsTotal.WithLabelValues("success", pred.Diagnosis).Inc()

	resp := PredictResponse{
		Status:       "success",
		Symptoms:     in.Symptoms,
		Species:      in.Species,
		Diagnosis:    pred.Diagnosis,
		Confidence:   pred.Confidence,
		Alternatives: pred.Alternatives,
		Source:       pred.Source,
	}

	if s.deps.Predictions != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		rec, err := s.deps.Predictions.Insert(ctx, in, pred)
		if err != nil {
			s.log.Warn("prediction not logged", zap.Error(err))
		} else {
			resp.ID = rec.ID.String()
		}
	}
	return resp, nil
}

type modelInfo struct {
	Loaded   bool      `json:"loaded"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Loads    int64     `json:"loads"`
	Classes  []string  `json:"classes,omitempty"`
	Backend  string    `json:"backend"`
}

func (s *Server) modelInfo(c *gin.Context) {
	reg := s.deps.Registry
	if reg == nil {
		abortWithError(c, errModelNotLoaded)
		return
	}
	info := modelInfo{Loaded: reg.Loaded(), LoadedAt: reg.LoadedAt(), Loads: reg.Loads()}
	current, err := reg.Current()
	switch cl := current.(type) {
	case *model.Local:
		info.Backend = "local"
		info.Classes = cl.Classes()
	case *model.Remote:
		info.Backend = "remote"
	default:
		if err != nil {
			info.Backend = "none"
		} else {
			info.Backend = "custom"
		}
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) recentPredictions(c *gin.Context) {
	if s.deps.Predictions == nil {
		abortWithError(c, errDatabaseDisabled)
		return
	}
	limit, ok := intQuery(c, "limit", 20, 1, 500)
	if !ok {
		return
	}
	recs, err := s.deps.Predictions.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error("recent predictions", zap.Error(err))
		abortWithError(c, errServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": recs})
}
