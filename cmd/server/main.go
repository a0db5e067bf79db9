package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/config"
	"github.com/Skufu/vetdiag/internal/dataset"
	"github.com/Skufu/vetdiag/internal/logging"
	"github.com/Skufu/vetdiag/internal/metrics"
	"github.com/Skufu/vetdiag/internal/model"
	"github.com/Skufu/vetdiag/internal/server"
	"github.com/Skufu/vetdiag/internal/store"
	"github.com/Skufu/vetdiag/internal/treatment"
	"github.com/Skufu/vetdiag/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := model.NewRegistry(classifierLoader(cfg))
	if err := registry.Reload(); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	logger.Info("model loaded",
		zap.Bool("remote", cfg.UseRemoteModel()),
		zap.String("model_dir", cfg.ModelDir),
	)

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}
	ds := dataset.New(cfg.DataDir, rules, logger)
	reloadDataset := func(ctx context.Context) error {
		if err := ds.Reload(ctx); err != nil {
			return err
		}
		metrics.DatasetRecords.Set(float64(len(ds.Snapshot().Records)))
		return nil
	}
	if err := reloadDataset(ctx); err != nil {
		// Prediction still works without history; stats answer with empty tables.
		logger.Warn("treatment logs not loaded", zap.String("path", cfg.DataDir), zap.Error(err))
	}

	checks := map[string]server.HealthChecker{}
	var classifier model.Classifier = registry
	var predictions *store.PredictionLog

	if cfg.UseRemoteModel() {
		checks["inference"] = inferenceCheck{registry: registry}
	}

	if cfg.EnableDB {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()
		predictions = store.NewPredictionLog(pool)
		if err := predictions.Migrate(ctx); err != nil {
			return err
		}
		checks["db"] = pool
	}

	if cfg.RedisURL != "" {
		kv, err := store.OpenRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer kv.Close()
		classifier = store.NewCachedClassifier(registry, kv, cfg.CacheTTL, registry.Loads, logger)
		checks["redis"] = kv
	}

	reloadModel := func(context.Context) error { return registry.Reload() }
	reloaders := []server.Reloader{
		{Name: "model", Reload: reloadModel},
		{Name: "dataset", Reload: reloadDataset},
	}

	if cfg.Watch {
		w, err := watch.New(watchTargets(cfg, reloaders), watch.DefaultDebounce, logger)
		if err != nil {
			logger.Warn("file watching disabled", zap.Error(err))
		} else {
			go w.Run(ctx)
		}
	}

	srv := server.New(server.Deps{
		Classifier:  classifier,
		Registry:    registry,
		Dataset:     ds,
		Predictions: predictions,
		Checks:      checks,
		Reloaders:   reloaders,
		Logger:      logger,
	}, server.Options{
		TopN:           cfg.TopN,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticRoot:     detectStaticRoot(workingDir()),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server listening", zap.String("addr", httpServer.Addr))
	return waitForShutdown(ctx, httpServer, errCh, logger)
}

// classifierLoader picks the remote backend when INFERENCE_URL is set, else the
// exported artifacts under MODEL_DIR.
func classifierLoader(cfg *config.Config) func() (model.Classifier, error) {
	if cfg.UseRemoteModel() {
		return func() (model.Classifier, error) {
			return model.NewRemote(cfg.InferenceURL, nil), nil
		}
	}
	return func() (model.Classifier, error) {
		return model.LoadLocal(cfg.PipelinePath(), cfg.LabelEncoderPath())
	}
}

func loadRules(cfg *config.Config) (*treatment.Rules, error) {
	rules := treatment.DefaultRules()
	if cfg.RulesFile != "" {
		var err error
		if rules, err = treatment.LoadRules(cfg.RulesFile); err != nil {
			return nil, err
		}
	}
	if cfg.MinClassCount > 0 {
		rules = rules.WithMinClassCount(cfg.MinClassCount)
	}
	return rules, nil
}

// watchTargets maps reloaders onto the paths that feed them. A remote model has
// nothing on disk to watch.
func watchTargets(cfg *config.Config, reloaders []server.Reloader) []watch.Target {
	paths := map[string]string{"dataset": cfg.DataDir}
	if !cfg.UseRemoteModel() {
		paths["model"] = cfg.ModelDir
	}
	var targets []watch.Target
	for _, r := range reloaders {
		path, ok := paths[r.Name]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		targets = append(targets, watch.Target{Name: r.Name, Path: path, Reload: counted(r)})
	}
	return targets
}

func counted(r server.Reloader) func(context.Context) error {
	return func(ctx context.Context) error {
		err := r.Reload(ctx)
		metrics.ReloadsTotal.WithLabelValues(r.Name, metrics.Result(err)).Inc()
		return err
	}
}

type inferenceCheck struct {
	registry *model.Registry
}

func (c inferenceCheck) Ping(ctx context.Context) error {
	current, err := c.registry.Current()
	if err != nil {
		return err
	}
	if remote, ok := current.(*model.Remote); ok {
		return remote.Ping(ctx)
	}
	return nil
}

func waitForShutdown(ctx context.Context, server *http.Server, errCh <-chan error, logger *zap.Logger) error {
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func workingDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

// detectStaticRoot finds the dashboard's web/ directory from startDir or up to
// two parents. Empty means no dashboard is served.
func detectStaticRoot(startDir string) string {
	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		root := filepath.Join(dir, "web")
		if fileExists(filepath.Join(root, "index.html")) {
			return root
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
