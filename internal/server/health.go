package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if s.deps.Registry != nil && !s.deps.Registry.Loaded() {
		status = http.StatusServiceUnavailable
		body["model"] = "not loaded"
	} else {
		body["model"] = "ok"
	}

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.deps.Checks[name].Ping(ctx); err != nil {
			body[name] = fmt.Sprintf("unhealthy: %v", err)
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	if _, ok := s.deps.Checks["db"]; !ok {
		body["db"] = "disabled"
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
