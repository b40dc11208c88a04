package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	featurestore "resource-summary-ui/internal/connectors/features"
	mysqlstore "resource-summary-ui/internal/connectors/mysql"
	"resource-summary-ui/internal/connectors/profiling"
	"resource-summary-ui/internal/querysymbol"
)

type fakeFlags struct {
	on    map[string]bool
	err   error
	saved []string
}

func (f *fakeFlags) Enabled(_ context.Context, _ string, feature string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.on[feature], nil
}

func (f *fakeFlags) Set(_ context.Context, _ string, feature string, enabled bool) error {
	if _, ok := featurestore.Known[feature]; !ok {
		return featurestore.ErrUnknownFeature
	}
	if f.on == nil {
		f.on = map[string]bool{}
	}
	f.on[feature] = enabled
	return nil
}

func (f *fakeFlags) List(context.Context, string) ([]featurestore.Flag, error) {
	return nil, nil
}

func (f *fakeFlags) SavedQueries(context.Context, string, string) ([]featurestore.SavedQuery, error) {
	return nil, nil
}

func (f *fakeFlags) ReplaceSavedQueries(_ context.Context, _, _ string, queries []string) ([]featurestore.SavedQuery, error) {
	f.saved = queries
	out := make([]featurestore.SavedQuery, 0, len(queries))
	for i, q := range queries {
		out = append(out, featurestore.SavedQuery{Position: i, Query: q})
	}
	return out, nil
}

type fakeSummaries struct {
	got mysqlstore.SummaryRequest
	err error
}

func (f *fakeSummaries) ResourceSummary(_ context.Context, req mysqlstore.SummaryRequest) (*mysqlstore.ResourceSummary, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	ts := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	return &mysqlstore.ResourceSummary{
		Header:   mysqlstore.GroupHeader{Group: req.Group, Description: "https://cdn.example.com/app.js", Op: "resource.script"},
		Start:    ts.Add(-time.Hour),
		End:      ts,
		Interval: "1h0m0s",
		Filters:  req.Filters,
		Totals:   map[string]float64{"count": 3},
		Charts: []mysqlstore.ChartSeries{
			{Symbol: "a", Name: "spm()", Unit: "rate", Points: []mysqlstore.ChartPoint{{Timestamp: ts, Value: 2}}},
			{Symbol: "b", Name: "avg(span.self_time)", Unit: "millisecond", Points: []mysqlstore.ChartPoint{{Timestamp: ts, Value: 12.5}}},
		},
		Pages: []mysqlstore.PageRow{{Transaction: "/checkout", Method: "GET", Count: 3, SPM: 0.05, AvgDurationMS: 12.5}},
	}, nil
}

var testDefaults = summaryDefaults{
	Org:      "acme",
	Limit:    25,
	Period:   24 * time.Hour,
	Interval: time.Hour,
	MaxRows:  100,
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	return payload
}

func serve(h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestResourceRouter_DBDisabled(t *testing.T) {
	h := resourceRouter(nil, nil, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/abc123/summary", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	if decodeBody(t, rr)["error"] == nil {
		t.Fatalf("expected error field in response")
	}
}

func TestResourceRouter_UnknownActionReturnsNotFound(t *testing.T) {
	h := resourceRouter(&fakeSummaries{}, nil, testDefaults, zap.NewNop())

	for _, path := range []string{"/api/v1/resources/abc123", "/api/v1/resources/abc123/unknown", "/api/v1/resources/"} {
		rr := serve(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestResourceRouter_InvalidQuery(t *testing.T) {
	summaries := &fakeSummaries{}
	h := resourceRouter(summaries, nil, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/abc123/summary?query=%21span.op%3Ahttp", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "Illegal operator")
	assert.Empty(t, summaries.got.Group, "store must not be queried")
}

func TestResourceRouter_RejectsBadWindow(t *testing.T) {
	summaries := &fakeSummaries{}
	h := resourceRouter(summaries, nil, testDefaults, zap.NewNop())

	for _, target := range []string{
		"/api/v1/resources/abc123/summary?statsPeriod=200000d",
		"/api/v1/resources/abc123/summary?interval=200000d",
		"/api/v1/resources/abc123/summary?statsPeriod=later",
	} {
		rr := serve(h, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Contains(t, decodeBody(t, rr)["error"], "invalid period", target)
	}
	assert.Empty(t, summaries.got.Group, "store must not be queried")
}

func TestResourceRouter_TruncatesFractionalInterval(t *testing.T) {
	summaries := &fakeSummaries{}
	h := resourceRouter(summaries, nil, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/abc123/summary?statsPeriod=1h&interval=90500ms", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 90*time.Second, summaries.got.Interval)
	assert.Zero(t, summaries.got.End.Unix()%90)
}

func TestResourceRouter_SummaryWithSymbols(t *testing.T) {
	summaries := &fakeSummaries{}
	flags := &fakeFlags{on: map[string]bool{querysymbol.NewInputStyleFeature: true}}
	h := resourceRouter(summaries, flags, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/abc123/summary?query=span.domain%3Acdn.example.com&statsPeriod=7d&limit=10&sort=-avg_duration", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, "abc123", summaries.got.Group)
	assert.Equal(t, "cdn.example.com", summaries.got.Filters["span.domain"])
	assert.Equal(t, 7*24*time.Hour, summaries.got.Period)
	assert.Equal(t, 10, summaries.got.Limit)

	payload := decodeBody(t, rr)
	meta := payload["meta"].(map[string]any)
	assert.Equal(t, "current", meta["variant"])
	symbols := payload["symbols"].([]any)
	require.Len(t, symbols, 2)
	assert.Equal(t, "a", symbols[0].(map[string]any)["label"])
	assert.Equal(t, "b", symbols[1].(map[string]any)["label"])
}

func TestResourceRouter_GroupNotFound(t *testing.T) {
	h := resourceRouter(&fakeSummaries{err: mysqlstore.ErrGroupNotFound}, nil, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/missing/summary", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResourceRouter_ExportGatedByFeature(t *testing.T) {
	flags := &fakeFlags{on: map[string]bool{}}
	h := resourceRouter(&fakeSummaries{}, flags, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/resources/abc123/summary.xlsx", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	flags.on[featureXLSXExport] = true
	rr = serve(h, http.MethodGet, "/api/v1/resources/abc123/summary.xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "resource-abc123.xlsx")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestLabelsHandler(t *testing.T) {
	h := labelsHandler()

	rr := serve(h, http.MethodGet, "/api/v1/labels?index=0&index=26,701&label=aaa", "")
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeBody(t, rr)["data"].([]any)
	require.Len(t, data, 4)
	want := []struct {
		index float64
		label string
	}{{0, "a"}, {26, "aa"}, {701, "zz"}, {702, "aaa"}}
	for i, w := range want {
		item := data[i].(map[string]any)
		assert.Equal(t, w.index, item["index"])
		assert.Equal(t, w.label, item["label"])
	}

	rr = serve(h, http.MethodGet, "/api/v1/labels?count=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{"a", "b", "c"}, decodeBody(t, rr)["data"])
}

func TestLabelsHandler_RejectsInvalidInput(t *testing.T) {
	h := labelsHandler()
	for _, target := range []string{
		"/api/v1/labels?index=-1",
		"/api/v1/labels?index=x",
		"/api/v1/labels?label=A1",
		"/api/v1/labels?count=5000",
	} {
		rr := serve(h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestQuerySymbolsHandler_HidesNegativeIDs(t *testing.T) {
	flags := &fakeFlags{on: map[string]bool{querysymbol.NewInputStyleFeature: true}}
	h := querySymbolsHandler(flags, "acme", zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/query-symbols?ids=0,-1,27", "")
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeBody(t, rr)
	meta := payload["meta"].(map[string]any)
	assert.Equal(t, "current", meta["variant"])
	assert.Equal(t, []any{float64(-1)}, meta["hidden"])

	data := payload["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "a", data[0].(map[string]any)["label"])
	assert.Equal(t, "ab", data[1].(map[string]any)["label"])
}

func TestQuerySymbolsHandler_LookupErrorFallsBackToLegacy(t *testing.T) {
	h := querySymbolsHandler(&fakeFlags{err: errors.New("db down")}, "acme", zap.NewNop())

	rr := serve(h, http.MethodGet, "/api/v1/query-symbols?ids=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	meta := decodeBody(t, rr)["meta"].(map[string]any)
	assert.Equal(t, "legacy", meta["variant"])
	assert.Contains(t, meta["variant_error"], "db down")
}

func TestFeaturesRouter(t *testing.T) {
	rr := serve(featuresRouter(nil), http.MethodGet, "/api/v1/features/acme", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	flags := &fakeFlags{}
	h := featuresRouter(flags)
	rr = serve(h, http.MethodPut, "/api/v1/features/acme", `{"feature":"new-input-style","enabled":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, flags.on[querysymbol.NewInputStyleFeature])

	rr = serve(h, http.MethodPut, "/api/v1/features/acme", `{"feature":"nope","enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h, http.MethodDelete, "/api/v1/features/acme", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSavedQueriesRouter_ValidatesQueries(t *testing.T) {
	flags := &fakeFlags{}
	h := savedQueriesRouter(flags)

	rr := serve(h, http.MethodPut, "/api/v1/saved-queries/acme/cdn", `{"queries":["span.op:resource.script","free text"]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "query 1")
	assert.Nil(t, flags.saved)

	rr = serve(h, http.MethodPut, "/api/v1/saved-queries/acme/cdn", `{"queries":["span.op:resource.script","span.domain:cdn.example.com"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, flags.saved, 2)
}

func TestFlamegraphHandler(t *testing.T) {
	rr := serve(flamegraphHandler(nil, nil, testDefaults), http.MethodGet, "/api/v1/profiling/flamegraph?project=1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	client := profiling.NewClient("http://127.0.0.1:1", time.Second, 0, "")
	h := flamegraphHandler(client, nil, testDefaults)

	rr = serve(h, http.MethodGet, "/api/v1/profiling/flamegraph?project=1&project=2", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "You cannot get a flamegraph from multiple projects.", decodeBody(t, rr)["error"])

	rr = serve(h, http.MethodGet, "/api/v1/profiling/flamegraph", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	gated := flamegraphHandler(client, &fakeFlags{on: map[string]bool{}}, testDefaults)
	rr = serve(gated, http.MethodGet, "/api/v1/profiling/flamegraph?project=1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFlamegraphHandler_ProxiesUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, profiling.FlamegraphPath("acme", 7), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shared":{"frames":[]}}`))
	}))
	defer upstream.Close()

	client := profiling.NewClient(upstream.URL, time.Second, 0, "")
	h := flamegraphHandler(client, nil, testDefaults)

	rr := serve(h, http.MethodGet, "/api/v1/profiling/flamegraph?project=7&query=transaction_name%3A%2Fcheckout+platform%3Aandroid", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"shared":{"frames":[]}}`, rr.Body.String())
}

func TestFlamegraphHandler_ValidatesDatasetAndFilters(t *testing.T) {
	client := profiling.NewClient("http://127.0.0.1:1", time.Second, 0, "")
	h := flamegraphHandler(client, nil, testDefaults)

	cases := map[string]string{
		"/api/v1/profiling/flamegraph?project=1&fingerprint=4294967296":          "fingerprint must be an integer",
		"/api/v1/profiling/flamegraph?project=1&fingerprint=-1":                  "fingerprint must be an integer",
		"/api/v1/profiling/flamegraph?project=1&dataset=spans":                   "dataset must be one of",
		"/api/v1/profiling/flamegraph?project=1&dataset=profiles&fingerprint=12": `"fingerprint" is only permitted`,
		"/api/v1/profiling/flamegraph?project=1&query=span.op%3Aresource.script": "span.op is not supported",
		"/api/v1/profiling/flamegraph?project=1&statsPeriod=200000d":             "invalid period",
		"/api/v1/profiling/flamegraph?project=1&query=%21platform%3Aandroid":     "Illegal operator",
	}
	for target, want := range cases {
		rr := serve(h, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Contains(t, decodeBody(t, rr)["error"], want, target)
	}
}

func TestFlamegraphDataset(t *testing.T) {
	dataset, fp, err := flamegraphDataset("", "")
	require.NoError(t, err)
	assert.Equal(t, datasetDiscover, dataset)
	assert.Nil(t, fp)

	dataset, fp, err = flamegraphDataset("", "4294967295")
	require.NoError(t, err)
	assert.Equal(t, datasetFunctions, dataset)
	require.NotNil(t, fp)
	assert.Equal(t, uint32(4294967295), *fp)

	dataset, _, err = flamegraphDataset("profiles", "")
	require.NoError(t, err)
	assert.Equal(t, datasetDiscover, dataset)
}

func TestChunksHandlers_RequireParameters(t *testing.T) {
	client := profiling.NewClient("http://127.0.0.1:1", time.Second, 0, "")
	chunks := chunksHandler(client, nil, testDefaults)
	spanFlamegraph := chunksFlamegraphHandler(client, nil, testDefaults)

	cases := []struct {
		h      http.Handler
		target string
		want   string
	}{
		{chunks, "/api/v1/profiling/chunks?profiler_id=p1", "one project_id must be specified."},
		{chunks, "/api/v1/profiling/chunks?project=1&project=2&profiler_id=p1", "one project_id must be specified."},
		{chunks, "/api/v1/profiling/chunks?project=1", "profiler_id must be specified."},
		{chunks, "/api/v1/profiling/chunks?project=x&profiler_id=p1", "project must be a positive integer"},
		{spanFlamegraph, "/api/v1/profiling/chunks-flamegraph?span_group=abc", "one project_id must be specified."},
		{spanFlamegraph, "/api/v1/profiling/chunks-flamegraph?project=1", "span_group must be specified."},
	}
	for _, tc := range cases {
		rr := serve(tc.h, http.MethodGet, tc.target, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, tc.target)
		assert.Equal(t, tc.want, decodeBody(t, rr)["error"], tc.target)
	}

	rr := serve(chunksHandler(nil, nil, testDefaults), http.MethodGet, "/api/v1/profiling/chunks?project=1&profiler_id=p1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	gated := chunksFlamegraphHandler(client, &fakeFlags{on: map[string]bool{}}, testDefaults)
	rr = serve(gated, http.MethodGet, "/api/v1/profiling/chunks-flamegraph?project=1&span_group=abc", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChunksHandlers_ProxyUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		switch r.URL.Path {
		case profiling.ChunksPath("acme", 7):
			assert.Equal(t, "p1", body["profiler_id"])
			assert.IsType(t, "", body["start"])
			_, _ = w.Write([]byte(`{"chunks":[]}`))
		case profiling.ChunksFlamegraphPath("acme", 7):
			assert.Equal(t, "abc123", body["span_group"])
			_, _ = w.Write([]byte(`{"shared":{}}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer upstream.Close()

	client := profiling.NewClient(upstream.URL, time.Second, 0, "")

	rr := serve(chunksHandler(client, nil, testDefaults), http.MethodGet, "/api/v1/profiling/chunks?project=7&profiler_id=p1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"chunks":[]}`, rr.Body.String())

	rr = serve(chunksFlamegraphHandler(client, nil, testDefaults), http.MethodGet, "/api/v1/profiling/chunks-flamegraph?project=7&span_group=abc123", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"shared":{}}`, rr.Body.String())
}

func TestDashboardHandler_RendersSymbols(t *testing.T) {
	flags := &fakeFlags{on: map[string]bool{querysymbol.NewInputStyleFeature: true, featureXLSXExport: true}}
	h := dashboardHandler(flags, testDefaults, zap.NewNop())

	rr := serve(h, http.MethodGet, "/?group=abc123&query=span.op%3Aresource.script", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "query-symbol--current")
	assert.Contains(t, body, `data-symbol="e"`)
	assert.Contains(t, body, "spm()")
	assert.Contains(t, body, `id="export"`)

	rr = serve(dashboardHandler(nil, testDefaults, zap.NewNop()), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "query-symbol--legacy")
	assert.Contains(t, rr.Body.String(), `id="export"`, "export follows the API, which allows it without a feature store")

	off := dashboardHandler(&fakeFlags{on: map[string]bool{}}, testDefaults, zap.NewNop())
	rr = serve(off, http.MethodGet, "/", "")
	assert.NotContains(t, rr.Body.String(), `id="export"`)

	failing := dashboardHandler(&fakeFlags{err: errors.New("db down")}, testDefaults, zap.NewNop())
	rr = serve(failing, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `id="export"`)

	rr = serve(h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestParsePeriod(t *testing.T) {
	d, err := parsePeriod("14d")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	d, err = parsePeriod("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = parsePeriod("106751d")
	require.NoError(t, err)
	assert.Positive(t, d)

	for _, raw := range []string{"", "0d", "-1h", "soon", "106752d", "200000d", "99999999999999999999d", "3000000h"} {
		_, err := parsePeriod(raw)
		assert.Error(t, err, raw)
	}
}

func TestNormalizeMetricPath(t *testing.T) {
	cases := map[string]string{
		"/":                                  "/",
		"/metrics":                           "/metrics",
		"/api/v1/resources/abc/summary":      "/api/v1/resources/{group}/summary",
		"/api/v1/resources/abc/summary.xlsx": "/api/v1/resources/{group}/summary.xlsx",
		"/api/v1/features/acme":              "/api/v1/features/{org}",
		"/api/v1/saved-queries/acme/cdn":     "/api/v1/saved-queries/{org}/{name}",
		"/api/v1/labels":                     "/api/v1/labels",
		"/api/v1/profiling/chunks":           "/api/v1/profiling/chunks",
		"/api/v1/status/services":            "/api/v1/status/services",
		"/api/v1/random/123":                 "/api/v1/{other}",
		"/api/v1/labels/../../etc":           "/api/v1/{other}",
		"/wp-login.php":                      "other",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeMetricPath(in), in)
	}
}

func TestMetricsHandler_ExposesRecordedSeries(t *testing.T) {
	recordDBQuery("events", "TestSeries", 0.25, errors.New("boom"))
	recordExportRun("ok", 0.5)

	rr := serve(metricsHandler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `resource_summary_ui_db_query_errors_total{connector="events",operation="TestSeries"}`)
	assert.Contains(t, body, `resource_summary_ui_export_runs_total{status="ok"}`)
	assert.Contains(t, body, "# TYPE resource_summary_ui_uptime_seconds gauge")
}
