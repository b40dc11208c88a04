package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resource-summary-ui/internal/config"
	featurestore "resource-summary-ui/internal/connectors/features"
	mysqlstore "resource-summary-ui/internal/connectors/mysql"
	"resource-summary-ui/internal/connectors/profiling"
)

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer   *nethttp.Server
	mysqlStore   *mysqlstore.Store
	featureStore *featurestore.Store
	logger       *zap.Logger
}

// NewServer creates a configured HTTP server with v1 endpoints.
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store     *mysqlstore.Store
		summaries resourceSummarizer
	)
	if cfg.DBEnabled {
		createdStore, err := mysqlstore.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		store = createdStore
		summaries = createdStore
	}

	var (
		fstore *featurestore.Store
		flags  featureStore
	)
	if cfg.FeatureStorePath != "" {
		createdStore, err := featurestore.NewSQLiteStore(cfg.FeatureStorePath, cfg.DefaultFeatures)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		fstore = createdStore
		flags = createdStore
	}

	var profiler *profiling.Client
	if cfg.ProfilingEnabled {
		profiler = profiling.NewClient(cfg.ProfilingURL, cfg.ProfilingTimeout, cfg.ProfilingRetries, cfg.ProfilingToken)
		profiler.OnRetry = func(method, path string, err error) {
			recordExternalCall("profiling", "retry", 0, err)
			logger.Warn("retrying profiling service request",
				zap.String("method", method), zap.String("path", path), zap.Error(err))
		}
	}

	defaults := summaryDefaults{
		Org:      cfg.DefaultOrg,
		Limit:    cfg.DefaultLimit,
		Period:   cfg.DefaultStatsPeriod,
		Interval: cfg.DefaultInterval,
		MaxRows:  cfg.ExportMaxRows,
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/", dashboardHandler(flags, defaults, logger))
	mux.HandleFunc("/favicon.ico", faviconHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/api/v1/metrics/app", appMetricsSummaryHandler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/api/v1/labels", labelsHandler())
	mux.HandleFunc("/api/v1/query-symbols", querySymbolsHandler(flags, defaults.Org, logger))
	mux.HandleFunc("/api/v1/features/", featuresRouter(flags))
	mux.HandleFunc("/api/v1/saved-queries/", savedQueriesRouter(flags))
	mux.HandleFunc("/api/v1/resources/", resourceRouter(summaries, flags, defaults, logger))
	mux.HandleFunc("/api/v1/profiling/flamegraph", flamegraphHandler(profiler, flags, defaults))
	mux.HandleFunc("/api/v1/profiling/chunks", chunksHandler(profiler, flags, defaults))
	mux.HandleFunc("/api/v1/profiling/chunks-flamegraph", chunksFlamegraphHandler(profiler, flags, defaults))
	mux.HandleFunc("/api/v1/status/services", servicesStatusHandler(store, fstore, profiler))

	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      loggingMiddleware(logger, observabilityMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{httpServer: httpServer, mysqlStore: store, featureStore: fstore, logger: logger}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mysqlStore != nil {
		_ = s.mysqlStore.Close()
	}
	if s.featureStore != nil {
		_ = s.featureStore.Close()
	}
	return err
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ready",
	})
}

func loggingMiddleware(logger *zap.Logger, next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
