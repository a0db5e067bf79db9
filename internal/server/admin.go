package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/metrics"
)

type reloadResult struct {
	Target string `json:"target"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) reload(c *gin.Context) {
	results := make([]reloadResult, 0, len(s.deps.Reloaders))
	status := http.StatusOK
	for _, r := range s.deps.Reloaders {
		err := r.Reload(c.Request.Context())
		metrics.ReloadsTotal.WithLabelValues(r.Name, metrics.Result(err)).Inc()
		if err != nil {
			s.log.Error("reload failed", zap.String("target", r.Name), zap.Error(err))
			results = append(results, reloadResult{Target: r.Name, Status: "error", Error: err.Error()})
			status = http.StatusInternalServerError
			continue
		}
		results = append(results, reloadResult{Target: r.Name, Status: "ok"})
	}
	c.JSON(status, gin.H{"results": results})
}
