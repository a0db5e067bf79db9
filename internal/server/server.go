// Package server exposes diagnosis prediction and treatment-log statistics over HTTP.
package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/dataset"
	"github.com/Skufu/vetdiag/internal/logging"
	"github.com/Skufu/vetdiag/internal/metrics"
	"github.com/Skufu/vetdiag/internal/model"
	"github.com/Skufu/vetdiag/internal/store"
)

// HealthChecker is anything readiness can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Reloader reloads one piece of server state on demand.
type Reloader struct {
	Name   string
	Reload func(ctx context.Context) error
}

// Options tune the router.
type Options struct {
	TopN           int
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	StaticRoot     string
	MaxBodyBytes   int64
}

// Deps are the collaborators handlers call into. Predictions and Checks may be empty.
type Deps struct {
	Classifier  model.Classifier
	Registry    *model.Registry
	Dataset     *dataset.Store
	Predictions *store.PredictionLog
	Checks      map[string]HealthChecker
	Reloaders   []Reloader
	Logger      *zap.Logger
}

// Server holds handler state.
type Server struct {
	deps Deps
	opts Options
	log  *zap.Logger
}

// New returns a Server. Zero option values get defaults.
func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Classifier == nil && deps.Registry != nil {
		deps.Classifier = deps.Registry
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{deps: deps, opts: opts, log: deps.Logger.Named("http")}
	if err := useJSONFieldNames(); err != nil {
		s.log.Error("request validation rules not installed", zap.Error(err))
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		logging.GinLogger(s.log),
		recovery(s.log),
		metrics.Middleware(),
		limitBodySize(s.opts.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: s.opts.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			MaxAge:       12 * time.Hour,
		}),
	)

	if s.opts.StaticRoot != "" {
		router.Static("/static", s.opts.StaticRoot)
		router.StaticFile("/", filepath.Join(s.opts.StaticRoot, "index.html"))
	}

	router.GET("/healthz", s.healthz)
	router.GET("/readyz", s.readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := rateLimit(s.opts.RateLimitRPS, s.opts.RateLimitBurst, s.log)
	router.POST("/predict", limited, s.predictLegacy)

	api := router.Group("/api")
	api.POST("/predict", limited, s.predict)
	api.GET("/model", s.modelInfo)
	api.GET("/predictions/recent", s.recentPredictions)

	stats := api.Group("/stats")
	stats.GET("/summary", s.summary)
	stats.GET("/top", s.topDiagnoses)
	stats.GET("/trends", s.trends)
	stats.GET("/species", s.species)
	stats.GET("/report", s.cleanReport)

	exp := api.Group("/export")
	exp.GET("/top.csv", s.exportTopCSV)
	exp.GET("/trends.csv", s.exportTrendsCSV)
	exp.GET("/report.xlsx", s.exportWorkbook)

	api.POST("/admin/reload", s.reload)

	return router
}
