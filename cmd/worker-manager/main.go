// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"copro-diagnostic/internal/common/camunda"
	"copro-diagnostic/internal/common/config"
	"copro-diagnostic/internal/common/database"
	"copro-diagnostic/internal/common/logger"
	"copro-diagnostic/internal/common/observability"
	"copro-diagnostic/internal/common/validation"
	"copro-diagnostic/internal/diagnostic/benchmark"
	"copro-diagnostic/internal/diagnostic/engine"
	"copro-diagnostic/internal/diagnostic/params"
	"copro-diagnostic/internal/marketdata"
	"copro-diagnostic/internal/models"
	"copro-diagnostic/pkg/registry"

	bpm "copro-diagnostic/internal/workers/diagnostic/build-profile-matrix"
	gd "copro-diagnostic/internal/workers/diagnostic/generate-diagnostic"
	glb "copro-diagnostic/internal/workers/diagnostic/get-local-benchmarks"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// backends holds the optional stores behind benchmarks and stats recording.
type backends struct {
	pg    *database.PostgresClient
	es    *database.ElasticsearchClient
	redis *database.RedisClient
}

func (b *backends) Close() {
	_ = b.pg.Close()
	_ = b.redis.Close()
}

func connectBackends(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*backends, error) {
	b := &backends{}
	source := cfg.Diagnostic.Benchmark.Source

	if source == config.BenchmarkSourcePostgres || cfg.Diagnostic.RecordMarketStats {
		err := retryWithBackoff(func() error {
			var err error
			b.pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return b.pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("PostgreSQL connected successfully")
	}

	if source == config.BenchmarkSourceElasticsearch {
		err := retryWithBackoff(func() error {
			var err error
			b.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return b.es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	if source != config.BenchmarkSourceNone && cfg.Diagnostic.Benchmark.CacheTTL > 0 {
		b.redis = database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error {
			return b.redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("Redis connected successfully")
	}

	return b, nil
}

// benchmarkSource picks the configured market data store, cached in Redis
// when a TTL is set. It returns nil when benchmarks are disabled.
func benchmarkSource(cfg *config.Config, b *backends, log logger.Logger) benchmark.Source {
	var source benchmark.Source
	switch cfg.Diagnostic.Benchmark.Source {
	case config.BenchmarkSourcePostgres:
		source = marketdata.NewPostgresSource(b.pg.DB)
	case config.BenchmarkSourceElasticsearch:
		source = marketdata.NewElasticsearchSource(b.es.Client, b.es.Index)
	default:
		return nil
	}

	if b.redis != nil {
		ttl := time.Duration(cfg.Diagnostic.Benchmark.CacheTTL) * time.Second
		source = marketdata.NewCachedSource(source, b.redis.Client, ttl, log)
	}
	return source
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newServer(addr string, zeebe *camunda.Client) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := zeebe.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, observability.WithLogger(zapLog))

	ctx := context.Background()

	// --- Parameter table & engine ---
	table, err := params.Load(cfg.Diagnostic.ParameterTablePath)
	if err != nil {
		zapLog.Fatal("parameter table invalid", zap.Error(err))
	}
	zapLog.Info("Parameter table loaded",
		zap.String("version", table.Version),
		zap.String("path", cfg.Diagnostic.ParameterTablePath),
	)

	stores, err := connectBackends(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("backend connection failed after retries", zap.Error(err))
	}
	defer stores.Close()

	benchmarks := benchmark.NewService(
		benchmarkSource(cfg, stores, log),
		benchmark.WithBands(benchmark.Bands{
			GreenMax:  cfg.Diagnostic.Benchmark.GreenMax,
			YellowMax: cfg.Diagnostic.Benchmark.YellowMax,
		}),
		benchmark.WithLogger(log),
	)

	eng := engine.New(table,
		engine.WithBenchmarks(benchmarks),
		engine.WithPolicy(models.FinancingPolicy(cfg.Diagnostic.Policy)),
		engine.WithLogger(log),
	)

	var recorder gd.StatsRecorder
	if stores.pg != nil && cfg.Diagnostic.RecordMarketStats {
		if err := marketdata.EnsureSchema(ctx, stores.pg.DB); err != nil {
			zapLog.Warn("market_stats schema not applied", zap.Error(err))
		}
		recorder = marketdata.NewRecorder(stores.pg.DB)
	}

	// --- Activity registry & variable validation ---
	reg, err := registry.Builtin()
	if err != nil {
		zapLog.Fatal("activity registry unreadable", zap.Error(err))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("job variable schemas invalid", zap.Error(err))
	}

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- Workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if jw := camunda.StartWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, zapLog); jw != nil {
			workers = append(workers, jw)
		}
	}

	{
		wcfg := config.GetWorkerConfig(cfg, gd.TaskType)
		handler := gd.NewHandler(
			&gd.Config{
				Timeout:     config.GetDuration(wcfg.Timeout),
				RecordStats: cfg.Diagnostic.RecordMarketStats,
			},
			eng, recorder, validator, obs, log,
		)
		start(gd.TaskType, handler.Handle)
	}
	{
		wcfg := config.GetWorkerConfig(cfg, glb.TaskType)
		handler := glb.NewHandler(
			&glb.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			benchmarks, validator, log,
		)
		start(glb.TaskType, handler.Handle)
	}
	{
		wcfg := config.GetWorkerConfig(cfg, bpm.TaskType)
		handler := bpm.NewHandler(
			&bpm.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			validator, log,
		)
		start(bpm.TaskType, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := newServer(cfg.Server.Address, zeebe)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Worker manager stopped")
}
