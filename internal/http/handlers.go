package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	featurestore "resource-summary-ui/internal/connectors/features"
	mysqlstore "resource-summary-ui/internal/connectors/mysql"
	"resource-summary-ui/internal/export"
	"resource-summary-ui/internal/querylabel"
	"resource-summary-ui/internal/querysymbol"
	"resource-summary-ui/internal/search"
)

const (
	featureXLSXExport          = "resource-xlsx-export"
	featureContinuousProfiling = "continuous-profiling"
)

type resourceSummarizer interface {
	ResourceSummary(ctx context.Context, req mysqlstore.SummaryRequest) (*mysqlstore.ResourceSummary, error)
}

type featureStore interface {
	querysymbol.Capabilities
	Set(ctx context.Context, org, feature string, enabled bool) error
	List(ctx context.Context, org string) ([]featurestore.Flag, error)
	SavedQueries(ctx context.Context, org, name string) ([]featurestore.SavedQuery, error)
	ReplaceSavedQueries(ctx context.Context, org, name string, queries []string) ([]featurestore.SavedQuery, error)
}

type summaryDefaults struct {
	Org      string
	Limit    int
	Period   time.Duration
	Interval time.Duration
	MaxRows  int
}

type setFeatureRequest struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type replaceQueriesRequest struct {
	Queries []string `json:"queries"`
}

func labelsHandler() nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()

		if raw := strings.TrimSpace(q.Get("count")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > 1000 {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "count must be between 0 and 1000"})
				return
			}
			labels := querylabel.Labels(n)
			if labels == nil {
				labels = []string{}
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"meta": map[string]any{"count": n}, "data": labels})
			return
		}

		type item struct {
			Index int    `json:"index"`
			Label string `json:"label"`
		}
		out := make([]item, 0)
		for _, raw := range splitValues(q["index"]) {
			idx, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": fmt.Sprintf("index must be an integer: %q", raw)})
				return
			}
			label, err := querylabel.Label(idx)
			if err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			out = append(out, item{Index: idx, Label: label})
		}
		for _, raw := range splitValues(q["label"]) {
			idx, err := querylabel.Index(raw)
			if err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			out = append(out, item{Index: idx, Label: raw})
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{"meta": map[string]any{"count": len(out)}, "data": out})
	}
}

func querySymbolsHandler(flags featureStore, defaultOrg string, logger *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()
		org := orgParam(r, defaultOrg)

		ids := make([]int, 0)
		for _, raw := range splitValues(q["ids"]) {
			id, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": fmt.Sprintf("ids must be integers: %q", raw)})
				return
			}
			ids = append(ids, id)
		}

		meta := map[string]any{"org": org}
		variant, err := resolveVariant(r.Context(), flags, org)
		if err != nil {
			logger.Warn("symbol variant lookup failed", zap.String("org", org), zap.Error(err))
			meta["variant_error"] = err.Error()
		}

		opts := querysymbol.Options{Class: q.Get("class"), Size: q.Get("size"), Title: q.Get("title")}
		symbols, hidden, err := querysymbol.RenderAll(ids, variant, opts)
		if err != nil {
			writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to render query symbols"})
			return
		}
		if hidden == nil {
			hidden = []int{}
		}

		meta["variant"] = variant.String()
		meta["count"] = len(symbols)
		meta["hidden"] = hidden
		writeJSON(w, nethttp.StatusOK, map[string]any{"meta": meta, "data": symbols})
	}
}

func featuresRouter(flags featureStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if flags == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "feature store disabled (set APP_FEATURE_STORE_SQLITE_PATH)",
			})
			return
		}

		parts := pathParts(r.URL.Path, "/api/v1/features/")
		if len(parts) != 1 {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		org := parts[0]

		switch r.Method {
		case nethttp.MethodGet:
			start := time.Now()
			items, err := flags.List(r.Context(), org)
			recordDBQuery("features", "List", time.Since(start).Seconds(), err)
			if err != nil {
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to list features"})
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"meta": map[string]any{"org": org, "count": len(items)}, "data": items})
		case nethttp.MethodPut, nethttp.MethodPost:
			var req setFeatureRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
				return
			}
			start := time.Now()
			err := flags.Set(r.Context(), org, req.Feature, req.Enabled)
			recordDBQuery("features", "Set", time.Since(start).Seconds(), err)
			if err != nil {
				if errors.Is(err, featurestore.ErrUnknownFeature) {
					writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
					return
				}
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to set feature"})
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"data": map[string]any{"org": org, "feature": req.Feature, "enabled": req.Enabled}})
		default:
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}
}

func savedQueriesRouter(flags featureStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if flags == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "feature store disabled (set APP_FEATURE_STORE_SQLITE_PATH)",
			})
			return
		}

		parts := pathParts(r.URL.Path, "/api/v1/saved-queries/")
		if len(parts) != 2 {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		org, name := parts[0], parts[1]

		switch r.Method {
		case nethttp.MethodGet:
			start := time.Now()
			items, err := flags.SavedQueries(r.Context(), org, name)
			recordDBQuery("features", "SavedQueries", time.Since(start).Seconds(), err)
			if err != nil {
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to load saved queries"})
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"meta": map[string]any{"org": org, "name": name, "count": len(items)}, "data": items})
		case nethttp.MethodPut:
			var req replaceQueriesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
				return
			}
			for i, q := range req.Queries {
				if _, err := search.ParseFilters(q); err != nil {
					writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": fmt.Sprintf("query %d: %v", i, err)})
					return
				}
			}
			start := time.Now()
			items, err := flags.ReplaceSavedQueries(r.Context(), org, name, req.Queries)
			recordDBQuery("features", "ReplaceSavedQueries", time.Since(start).Seconds(), err)
			if err != nil {
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to save queries"})
				return
			}
			writeJSON(w, nethttp.StatusOK, map[string]any{"meta": map[string]any{"org": org, "name": name, "count": len(items)}, "data": items})
		default:
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}
}

func resourceRouter(summaries resourceSummarizer, flags featureStore, defaults summaryDefaults, logger *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		parts := pathParts(r.URL.Path, "/api/v1/resources/")
		if len(parts) != 2 || (parts[1] != "summary" && parts[1] != "summary.xlsx") {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		if summaries == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "database integration disabled (set APP_DB_ENABLED=true)",
			})
			return
		}

		req, err := parseSummaryRequest(r, parts[0], defaults)
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		org := orgParam(r, defaults.Org)
		asXLSX := parts[1] == "summary.xlsx"

		if asXLSX && flags != nil {
			on, err := flags.Enabled(r.Context(), org, featureXLSXExport)
			if err != nil {
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to check feature"})
				return
			}
			if !on {
				writeJSON(w, nethttp.StatusForbidden, map[string]any{"error": featureXLSXExport + " is not enabled for this organization"})
				return
			}
		}

		start := time.Now()
		summary, err := summaries.ResourceSummary(r.Context(), req)
		recordDBQuery("events", "ResourceSummary", time.Since(start).Seconds(), err)
		if err != nil {
			writeJSON(w, summaryErrorStatus(err), map[string]any{"error": summaryErrorMessage(err)})
			return
		}

		if asXLSX {
			exportStart := time.Now()
			blob, err := export.SummaryWorkbook(summary, defaults.MaxRows)
			if err != nil {
				recordExportRun("error", time.Since(exportStart).Seconds())
				logger.Error("xlsx export failed", zap.String("group", req.Group), zap.Error(err))
				writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to build export"})
				return
			}
			recordExportRun("ok", time.Since(exportStart).Seconds())
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resource-%s.xlsx"`, sanitizeFilename(req.Group)))
			w.WriteHeader(nethttp.StatusOK)
			_, _ = w.Write(blob)
			return
		}

		variant, err := resolveVariant(r.Context(), flags, org)
		if err != nil {
			logger.Warn("symbol variant lookup failed", zap.String("org", org), zap.Error(err))
		}
		symbols := make([]querysymbol.Symbol, 0, len(summary.Charts))
		for i := range summary.Charts {
			sym, ok, err := querysymbol.Render(i, variant, querysymbol.Options{Title: summary.Charts[i].Name})
			if err == nil && ok {
				symbols = append(symbols, sym)
			}
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"org":     org,
				"limit":   req.Limit,
				"offset":  req.Offset,
				"count":   len(summary.Pages),
				"sort":    req.Sort,
				"query":   req.Filters.String(),
				"variant": variant.String(),
			},
			"data":    summary,
			"symbols": symbols,
		})
	}
}

func parseSummaryRequest(r *nethttp.Request, group string, defaults summaryDefaults) (mysqlstore.SummaryRequest, error) {
	q := r.URL.Query()
	filters, err := search.ParseFilters(q.Get("query"))
	if err != nil {
		return mysqlstore.SummaryRequest{}, err
	}

	period := defaults.Period
	if raw := strings.TrimSpace(q.Get("statsPeriod")); raw != "" {
		period, err = parsePeriod(raw)
		if err != nil {
			return mysqlstore.SummaryRequest{}, err
		}
	}
	interval := defaults.Interval
	if raw := strings.TrimSpace(q.Get("interval")); raw != "" {
		interval, err = parsePeriod(raw)
		if err != nil {
			return mysqlstore.SummaryRequest{}, err
		}
	}

	req := mysqlstore.SummaryRequest{
		Group:    group,
		Filters:  filters,
		Period:   period,
		Interval: interval,
		Limit:    parseLimit(r, defaults.Limit),
		Offset:   parseOffset(r),
		Sort:     q.Get("sort"),
	}
	if err := req.Normalize(time.Now()); err != nil {
		return mysqlstore.SummaryRequest{}, err
	}
	return req, nil
}

func summaryErrorStatus(err error) int {
	switch {
	case errors.Is(err, mysqlstore.ErrGroupNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, mysqlstore.ErrInvalidSort):
		return nethttp.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nethttp.ErrHandlerTimeout):
		return nethttp.StatusGatewayTimeout
	default:
		return nethttp.StatusInternalServerError
	}
}

func summaryErrorMessage(err error) string {
	switch summaryErrorStatus(err) {
	case nethttp.StatusNotFound, nethttp.StatusBadRequest:
		return err.Error()
	default:
		return "failed to fetch resource summary"
	}
}

func resolveVariant(ctx context.Context, flags featureStore, org string) (querysymbol.Variant, error) {
	if flags == nil {
		return querysymbol.LegacyStyle, nil
	}
	return querysymbol.ResolveVariant(ctx, flags, org)
}

// parsePeriod accepts Go durations plus a "d" day suffix ("14d").
// maxPeriodDays keeps a day count from overflowing time.Duration.
const maxPeriodDays = math.MaxInt64 / int64(24*time.Hour)

func parsePeriod(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.ParseInt(strings.TrimSuffix(raw, "d"), 10, 64)
		if err != nil || days <= 0 || days > maxPeriodDays {
			return 0, fmt.Errorf("invalid period %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid period %q", raw)
	}
	return d, nil
}

func orgParam(r *nethttp.Request, def string) string {
	if org := strings.TrimSpace(r.URL.Query().Get("org")); org != "" {
		return org
	}
	return def
}

func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	return parts
}

// splitValues flattens repeated and comma-separated query values.
func splitValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func parseLimit(r *nethttp.Request, defaultLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	return limit
}

func parseOffset(r *nethttp.Request) int {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return offset
}
