package http

import (
	"context"
	nethttp "net/http"
	"time"

	featurestore "resource-summary-ui/internal/connectors/features"
	mysqlstore "resource-summary-ui/internal/connectors/mysql"
	"resource-summary-ui/internal/connectors/profiling"
)

func servicesStatusHandler(store *mysqlstore.Store, fstore *featurestore.Store, client *profiling.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"generated_at": time.Now().UTC(),
			"services": map[string]any{
				"mysql":             mysqlStatus(ctx, store),
				"feature_store":     featureStoreStatus(ctx, fstore),
				"profiling_service": profilingStatus(ctx, client),
			},
		})
	}
}

func mysqlStatus(ctx context.Context, store *mysqlstore.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "database integration disabled"}
	}

	start := time.Now()
	stats, err := store.ServiceStats(ctx)
	recordDBQuery("events", "ServiceStats", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}

	return map[string]any{"enabled": true, "ok": true, "stats": stats}
}

func featureStoreStatus(ctx context.Context, store *featurestore.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "feature store disabled"}
	}

	start := time.Now()
	err := store.Ping(ctx)
	recordDBQuery("features", "Ping", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}
	return map[string]any{"enabled": true, "ok": true, "ping_ms": time.Since(start).Milliseconds()}
}

func profilingStatus(ctx context.Context, client *profiling.Client) map[string]any {
	if client == nil || !client.Enabled() {
		return map[string]any{"enabled": false, "ok": false, "error": "profiling integration disabled"}
	}

	start := time.Now()
	stats, err := client.ServiceStats(ctx)
	recordExternalCall("profiling", "ServiceStats", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}

	return map[string]any{"enabled": true, "ok": true, "stats": stats}
}
