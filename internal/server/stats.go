package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/vetdiag/internal/dataset"
	"github.com/Skufu/vetdiag/internal/treatment"
)

// intQuery reads an integer query parameter within [lo, hi]. On a bad value it
// writes the 400 response and returns false.
func intQuery(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		abortWithError(c, errInvalidParameter.withDetails(fmt.Sprintf("%s must be an integer in [%d, %d]", name, lo, hi)))
		return 0, false
	}
	return n, true
}

func (s *Server) snapshot(c *gin.Context) (*dataset.Snapshot, bool) {
	if s.deps.Dataset == nil {
		abortWithError(c, errServiceUnavailable.withDetails("treatment logs not configured"))
		return nil, false
	}
	return s.deps.Dataset.Snapshot(), true
}

type datasetMeta struct {
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

func meta(snap *dataset.Snapshot) datasetMeta {
	return datasetMeta{Source: snap.Source, LoadedAt: snap.LoadedAt}
}

func (s *Server) summary(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": meta(snap),
		"summary": treatment.Summarize(snap.Records),
	})
}

func (s *Server) topDiagnoses(c *gin.Context) {
	n, ok := intQuery(c, "n", s.opts.TopN, 1, 100)
	if !ok {
		return
	}
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset":   meta(snap),
		"diagnoses": treatment.TopDiagnoses(snap.Records, n),
	})
}

func (s *Server) trends(c *gin.Context) {
	top, ok := intQuery(c, "top", s.opts.TopN, 0, 100)
	if !ok {
		return
	}
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": meta(snap),
		"pivot":   treatment.BuildPivot(snap.Records, top),
	})
}

func (s *Server) species(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": meta(snap),
		"species": treatment.SpeciesBreakdown(snap.Records),
	})
}

func (s *Server) cleanReport(c *gin.Context) {
	snap, ok := s.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": meta(snap),
		"report":  snap.Report,
	})
}
