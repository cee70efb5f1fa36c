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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cms-query-workers/internal/cache"
	"cms-query-workers/internal/common/camunda"
	"cms-query-workers/internal/common/config"
	"cms-query-workers/internal/common/database"
	commonhttp "cms-query-workers/internal/common/http"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/common/metrics"
	"cms-query-workers/internal/common/observability"
	"cms-query-workers/internal/jcrquery"
	"cms-query-workers/internal/savedsearch"
	"cms-query-workers/pkg/registry"

	cl "cms-query-workers/internal/workers/classifieds/classified-list"
	cs "cms-query-workers/internal/workers/classifieds/classified-search"
	jq "cms-query-workers/internal/workers/content-query/jcr-query"
	rcf "cms-query-workers/internal/workers/content-query/render-cache-flush"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())
	metrics.UseJobRecorder(obs)

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, cfg.Camunda.BrokerAddress)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL (saved searches) ---
	var searches cs.SearchStore
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.Migrate(ctx, savedsearch.Schema); err != nil {
			zapLog.Fatal("saved search migration failed", zap.Error(err))
		}
		searches = savedsearch.NewStore(pg.DB)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Redis (render cache) ---
	var renderCache *cache.Store
	if cfg.Cache.Enabled {
		redis := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		renderCache = cache.New(redis.Client, log, cache.WithRecorder(metrics.CacheRecorder{}))
		zapLog.Info("Redis connected successfully")
	}

	// --- GraphQL ---
	queryTimeout := config.GetDuration(cfg.GraphQL.Timeout)
	gql := commonhttp.NewGraphQLClient(
		commonhttp.NewClient(queryTimeout+time.Second),
		cfg.GraphQL.Endpoint,
		cfg.GraphQL.Headers,
	)
	executor := jcrquery.NewExecutor(gql.Execute,
		jcrquery.WithObserver(jcrquery.Observers{metrics.NewQueryObserver(log), obs}),
		jcrquery.WithDefaultTimeout(queryTimeout),
	)
	translations := jcrquery.NewTranslationLoader(gql.Execute, queryTimeout)
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second

	// --- Workers ---
	workers := camunda.NewWorkers(zeebe.GetClient(), log)
	activities := registry.New(cfg.App.Version)
	register := func(category, taskType, name, description, schema string, wcfg config.WorkerConfig, codes ...string) {
		err := activities.Add(registry.Activity{
			DisplayName: name,
			Description: description,
			Category:    category,
			TaskType:    taskType,
			InputSchema: json.RawMessage(schema),
			ErrorCodes:  codes,
			Timeout:     config.GetDuration(wcfg.Timeout).String(),
			Retries:     wcfg.MaxRetries,
		})
		if err != nil {
			zapLog.Warn("activity not registered", zap.String("taskType", taskType), zap.Error(err))
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, jq.TaskType); wcfg.Enabled {
		handler := jq.NewHandler(
			&jq.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				QueryTimeout:    queryTimeout,
				CacheTTL:        cacheTTL,
				DefaultLanguage: cfg.GraphQL.Language,
				DefaultView:     "default",
			},
			executor, translations, renderCache, log,
		)
		if workers.Start(jq.TaskType, wcfg, handler.Handle) {
			register("content-query", jq.TaskType, "JCR Query", "Build and run a structured content query, returning rendered nodes",
				jq.InputSchema, wcfg, "INVALID_OPERATOR", "INVALID_QUERY_CONFIG", "QUERY_TIMEOUT", "TRANSPORT_ERROR", "GRAPHQL_ERROR")
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, rcf.TaskType); wcfg.Enabled && renderCache != nil {
		flushCfg := rcf.LoadConfig()
		flushCfg.Timeout = config.GetDuration(wcfg.Timeout)
		handler := rcf.NewHandler(flushCfg, renderCache, log)
		if workers.Start(rcf.TaskType, wcfg, handler.Handle) {
			register("content-query", rcf.TaskType, "Render Cache Flush", "Drop cached renders depending on changed node ids or paths",
				rcf.InputSchema, wcfg, "CACHE_UNAVAILABLE", "INPUT_VALIDATION_FAILED")
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, cl.TaskType); wcfg.Enabled {
		handler := cl.NewHandler(
			&cl.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				FetchTimeout:    queryTimeout,
				CacheTTL:        cacheTTL,
				MaxItems:        cfg.Classifieds.MaxItems,
				DefaultLanguage: cfg.GraphQL.Language,
				DefaultLocale:   cfg.GraphQL.Language,
			},
			gql.Execute, renderCache, log,
		)
		if workers.Start(cl.TaskType, wcfg, handler.Handle) {
			register("classifieds", cl.TaskType, "Classified List", "List, filter and label the classified ads of a folder",
				cl.InputSchema, wcfg, "INPUT_VALIDATION_FAILED", "QUERY_TIMEOUT", "TRANSPORT_ERROR", "GRAPHQL_ERROR", "RESPONSE_DECODING_FAILED")
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, cs.TaskType); wcfg.Enabled {
		handler := cs.NewHandler(
			&cs.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				QueryTimeout:    queryTimeout,
				Workspace:       jcrquery.Workspace(strings.ToUpper(cfg.GraphQL.Workspace)),
				DefaultLanguage: cfg.GraphQL.Language,
				ResultsPerPage:  cfg.Classifieds.ResultsPerPage,
				SubNodeView:     cfg.Classifieds.SubNodeView,
			},
			executor, searches, log,
		)
		if workers.Start(cs.TaskType, wcfg, handler.Handle) {
			register("classifieds", cs.TaskType, "Classified Search", "Search classified ads from facet and price parameters",
				cs.InputSchema, wcfg, "QUERY_SUPERSEDED", "QUERY_TIMEOUT", "SAVED_SEARCH_NOT_FOUND", "DATABASE_OPERATION_FAILED")
		}
	}
	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.Running()))
	if path := os.Getenv("ACTIVITY_REGISTRY_PATH"); path != "" {
		if err := activities.WriteFile(path); err != nil {
			zapLog.Warn("failed to export activity registry", zap.String("path", path), zap.Error(err))
		}
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(activities.Snapshot())
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	workers.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
