package http

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const metricPrefix = "resource_summary_ui_"

var (
	appStartedAtUnix = time.Now().Unix()
	inFlightRequests int64
	metricsMu        sync.Mutex
	httpSeries       = map[httpMetricKey]*metricSeries{}
	dbQuerySeries    = map[dbMetricKey]*metricSeries{}
	externalSeries   = map[externalMetricKey]*metricSeries{}
	exportRunSeries  = map[string]*metricSeries{}
)

type httpMetricKey struct {
	Method string
	Path   string
	Status string
}

type dbMetricKey struct {
	Connector string
	Operation string
}

type externalMetricKey struct {
	Target    string
	Operation string
}

type metricSeries struct {
	Count              uint64
	Errors             uint64
	DurationSecondsSum float64
}

// labelledSeries is a snapshot row ready for exposition.
type labelledSeries struct {
	labels string
	series metricSeries
}

// expo writes Prometheus text exposition families.
type expo struct {
	w io.Writer
}

func (e expo) family(name, typ, help string) {
	_, _ = fmt.Fprintf(e.w, "# HELP %s%s %s\n", metricPrefix, name, help)
	_, _ = fmt.Fprintf(e.w, "# TYPE %s%s %s\n", metricPrefix, name, typ)
}

func (e expo) sample(name, labels, value string) {
	if labels != "" {
		labels = "{" + labels + "}"
	}
	_, _ = fmt.Fprintf(e.w, "%s%s%s %s\n", metricPrefix, name, labels, value)
}

func (e expo) seriesFamilies(base, what string, rows []labelledSeries, withErrors bool) {
	e.family(base+"_duration_seconds_sum", "counter", what+" duration sum in seconds.")
	for _, r := range rows {
		e.sample(base+"_duration_seconds_sum", r.labels, strconv.FormatFloat(r.series.DurationSecondsSum, 'f', 9, 64))
	}
	e.family(base+"_duration_seconds_count", "counter", what+" observation count.")
	for _, r := range rows {
		e.sample(base+"_duration_seconds_count", r.labels, strconv.FormatUint(r.series.Count, 10))
	}
	if !withErrors {
		return
	}
	e.family(base+"_errors_total", "counter", what+" errors.")
	for _, r := range rows {
		e.sample(base+"_errors_total", r.labels, strconv.FormatUint(r.series.Errors, 10))
	}
}

func metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		metricsMu.Lock()
		httpRows := make([]labelledSeries, 0, len(httpSeries))
		for k, s := range httpSeries {
			httpRows = append(httpRows, labelledSeries{
				labels: fmt.Sprintf(`method="%s",path="%s",status="%s"`, escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status)),
				series: *s,
			})
		}
		dbRows := make([]labelledSeries, 0, len(dbQuerySeries))
		for k, s := range dbQuerySeries {
			dbRows = append(dbRows, labelledSeries{
				labels: fmt.Sprintf(`connector="%s",operation="%s"`, escapeLabel(k.Connector), escapeLabel(k.Operation)),
				series: *s,
			})
		}
		exRows := make([]labelledSeries, 0, len(externalSeries))
		for k, s := range externalSeries {
			exRows = append(exRows, labelledSeries{
				labels: fmt.Sprintf(`target="%s",operation="%s"`, escapeLabel(k.Target), escapeLabel(k.Operation)),
				series: *s,
			})
		}
		exportRows := make([]labelledSeries, 0, len(exportRunSeries))
		for status, s := range exportRunSeries {
			exportRows = append(exportRows, labelledSeries{labels: fmt.Sprintf(`status="%s"`, escapeLabel(status)), series: *s})
		}
		metricsMu.Unlock()

		for _, rows := range [][]labelledSeries{httpRows, dbRows, exRows, exportRows} {
			sort.Slice(rows, func(i, j int) bool { return rows[i].labels < rows[j].labels })
		}

		e := expo{w: w}
		e.family("http_requests_total", "counter", "Total HTTP requests handled by this app.")
		for _, r := range httpRows {
			e.sample("http_requests_total", r.labels, strconv.FormatUint(r.series.Count, 10))
		}
		e.seriesFamilies("http_request", "HTTP request", httpRows, false)
		e.family("http_in_flight_requests", "gauge", "In-flight HTTP requests currently served by this app.")
		e.sample("http_in_flight_requests", "", strconv.FormatInt(atomic.LoadInt64(&inFlightRequests), 10))

		e.seriesFamilies("db_query", "Database query by connector/operation", dbRows, true)
		e.seriesFamilies("external_call", "External call by target/operation", exRows, true)

		e.family("export_runs_total", "counter", "Spreadsheet export count by status.")
		for _, r := range exportRows {
			e.sample("export_runs_total", r.labels, strconv.FormatUint(r.series.Count, 10))
		}
		e.seriesFamilies("export_run", "Spreadsheet export by status", exportRows, false)

		writeRuntimeMetrics(e)
	})
}

func writeRuntimeMetrics(e expo) {
	uptime := time.Now().Unix() - appStartedAtUnix
	e.family("uptime_seconds", "gauge", "Process uptime in seconds.")
	e.sample("uptime_seconds", "", strconv.FormatInt(uptime, 10))

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	e.family("runtime_goroutines", "gauge", "Number of goroutines.")
	e.sample("runtime_goroutines", "", strconv.Itoa(runtime.NumGoroutine()))
	e.family("runtime_memory_alloc_bytes", "gauge", "Heap allocation bytes.")
	e.sample("runtime_memory_alloc_bytes", "", strconv.FormatUint(ms.Alloc, 10))
	e.family("runtime_gc_total", "counter", "Total GC runs since process start.")
	e.sample("runtime_gc_total", "", strconv.FormatUint(uint64(ms.NumGC), 10))

	if cpuSec, ok := processCPUSeconds(); ok {
		e.family("runtime_cpu_seconds_total", "counter", "Total CPU time consumed by this process in seconds.")
		e.sample("runtime_cpu_seconds_total", "", strconv.FormatFloat(cpuSec, 'f', 6, 64))
	}
	if st := processIOStats(); st != nil {
		e.family("runtime_io_read_bytes_total", "counter", "Bytes read by this process from storage.")
		e.sample("runtime_io_read_bytes_total", "", strconv.FormatUint(st.ReadBytes, 10))
		e.family("runtime_io_write_bytes_total", "counter", "Bytes written by this process to storage.")
		e.sample("runtime_io_write_bytes_total", "", strconv.FormatUint(st.WriteBytes, 10))
	}
}

func appMetricsSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type endpointRow struct {
			Method  string  `json:"method"`
			Path    string  `json:"path"`
			Status  string  `json:"status"`
			Count   uint64  `json:"count"`
			AvgMS   float64 `json:"avg_ms"`
			TotalMS float64 `json:"total_ms"`
		}
		type dbRow struct {
			Connector string  `json:"connector"`
			Operation string  `json:"operation"`
			Count     uint64  `json:"count"`
			Errors    uint64  `json:"errors"`
			AvgMS     float64 `json:"avg_ms"`
		}

		metricsMu.Lock()
		httpRows := make([]endpointRow, 0, len(httpSeries))
		for k, s := range httpSeries {
			httpRows = append(httpRows, endpointRow{
				Method:  k.Method,
				Path:    k.Path,
				Status:  k.Status,
				Count:   s.Count,
				AvgMS:   s.avgMS(),
				TotalMS: s.DurationSecondsSum * 1000.0,
			})
		}

		dbRows := make([]dbRow, 0, len(dbQuerySeries))
		totalDBErrors := uint64(0)
		for k, s := range dbQuerySeries {
			dbRows = append(dbRows, dbRow{
				Connector: k.Connector,
				Operation: k.Operation,
				Count:     s.Count,
				Errors:    s.Errors,
				AvgMS:     s.avgMS(),
			})
			totalDBErrors += s.Errors
		}

		externalErrors := uint64(0)
		for _, s := range externalSeries {
			externalErrors += s.Errors
		}
		exports := map[string]uint64{}
		for status, s := range exportRunSeries {
			exports[status] = s.Count
		}
		metricsMu.Unlock()

		sort.Slice(httpRows, func(i, j int) bool { return httpRows[i].AvgMS > httpRows[j].AvgMS })
		sort.Slice(dbRows, func(i, j int) bool { return dbRows[i].AvgMS > dbRows[j].AvgMS })

		if len(httpRows) > 5 {
			httpRows = httpRows[:5]
		}
		if len(dbRows) > 5 {
			dbRows = dbRows[:5]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meta": map[string]any{
				"generated_at": time.Now().UTC(),
			},
			"data": map[string]any{
				"top_http_slowest_avg_ms": httpRows,
				"top_db_slowest_avg_ms":   dbRows,
				"exports":                 exports,
				"errors": map[string]any{
					"db_query_total":       totalDBErrors,
					"external_call_total": externalErrors,
				},
			},
		})
	}
}

func (s *metricSeries) avgMS() float64 {
	if s.Count == 0 {
		return 0
	}
	return (s.DurationSecondsSum / float64(s.Count)) * 1000.0
}

func (s *metricSeries) observe(durationSeconds float64, err error) {
	s.Count++
	s.DurationSecondsSum += durationSeconds
	if err != nil {
		s.Errors++
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&inFlightRequests, 1)
		defer atomic.AddInt64(&inFlightRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		recordHTTPMetric(r.Method, normalizeMetricPath(r.URL.Path), rec.status, time.Since(start).Seconds())
	})
}

// fixedAPIRoutes are the parameterless API routes kept verbatim as metric labels.
var fixedAPIRoutes = map[string]struct{}{
	"/api/v1/labels":                      {},
	"/api/v1/query-symbols":               {},
	"/api/v1/metrics/app":                 {},
	"/api/v1/status/services":             {},
	"/api/v1/profiling/flamegraph":        {},
	"/api/v1/profiling/chunks":            {},
	"/api/v1/profiling/chunks-flamegraph": {},
}

func normalizeMetricPath(path string) string {
	if _, ok := fixedAPIRoutes[path]; ok {
		return path
	}
	switch {
	case path == "/":
		return "/"
	case path == "/metrics", path == "/health", path == "/ready", path == "/favicon.ico":
		return path
	case strings.HasPrefix(path, "/api/v1/resources/") && strings.HasSuffix(path, "/summary.xlsx"):
		return "/api/v1/resources/{group}/summary.xlsx"
	case strings.HasPrefix(path, "/api/v1/resources/") && strings.HasSuffix(path, "/summary"):
		return "/api/v1/resources/{group}/summary"
	case strings.HasPrefix(path, "/api/v1/resources/"):
		return "/api/v1/resources/{other}"
	case strings.HasPrefix(path, "/api/v1/features/"):
		return "/api/v1/features/{org}"
	case strings.HasPrefix(path, "/api/v1/saved-queries/"):
		return "/api/v1/saved-queries/{org}/{name}"
	case strings.HasPrefix(path, "/api/v1/"):
		return "/api/v1/{other}"
	default:
		return "other"
	}
}

func recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	key := httpMetricKey{Method: method, Path: path, Status: strconv.Itoa(status)}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := httpSeries[key]
	if !ok {
		row = &metricSeries{}
		httpSeries[key] = row
	}
	row.observe(durationSeconds, nil)
}

func recordDBQuery(connector, operation string, durationSeconds float64, err error) {
	if connector == "" || operation == "" {
		return
	}
	key := dbMetricKey{Connector: connector, Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := dbQuerySeries[key]
	if !ok {
		row = &metricSeries{}
		dbQuerySeries[key] = row
	}
	row.observe(durationSeconds, err)
}

func recordExternalCall(target, operation string, durationSeconds float64, err error) {
	if target == "" || operation == "" {
		return
	}
	key := externalMetricKey{Target: target, Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := externalSeries[key]
	if !ok {
		row = &metricSeries{}
		externalSeries[key] = row
	}
	row.observe(durationSeconds, err)
}

func recordExportRun(status string, durationSeconds float64) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		status = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := exportRunSeries[status]
	if !ok {
		row = &metricSeries{}
		exportRunSeries[status] = row
	}
	row.observe(durationSeconds, nil)
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

func processCPUSeconds() (float64, bool) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	user := float64(ru.Utime.Sec) + (float64(ru.Utime.Usec) / 1_000_000.0)
	sys := float64(ru.Stime.Sec) + (float64(ru.Stime.Usec) / 1_000_000.0)
	return user + sys, true
}

type ioStats struct {
	ReadBytes  uint64
	WriteBytes uint64
}

func processIOStats() *ioStats {
	b, err := os.ReadFile("/proc/self/io")
	if err != nil {
		return nil
	}
	out := &ioStats{}
	for _, line := range strings.Split(string(b), "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case "read_bytes":
			out.ReadBytes = v
		case "write_bytes":
			out.WriteBytes = v
		}
	}
	return out
}
