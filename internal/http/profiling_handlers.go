package http

import (
	"errors"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"resource-summary-ui/internal/connectors/profiling"
	"resource-summary-ui/internal/search"
)

const (
	datasetProfiles  = "profiles"
	datasetDiscover  = "discover"
	datasetFunctions = "functions"
)

func flamegraphHandler(client *profiling.Client, flags featureStore, defaults summaryDefaults) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		org, ok := profilingPreamble(w, r, client, flags, defaults)
		if !ok {
			return
		}

		q := r.URL.Query()
		projects := splitValues(q["project"])
		switch {
		case len(projects) == 0:
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "one project must be specified."})
			return
		case len(projects) > 1:
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "You cannot get a flamegraph from multiple projects."})
			return
		}
		projectID, err := strconv.ParseInt(projects[0], 10, 64)
		if err != nil || projectID <= 0 {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "project must be a positive integer"})
			return
		}

		dataset, fingerprint, err := flamegraphDataset(q.Get("dataset"), q.Get("fingerprint"))
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		query := strings.TrimSpace(q.Get("query"))
		filters, err := search.ParseProfileFilters(query)
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		start, end, err := profilingWindow(r, defaults)
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		payload := profiling.FlamegraphRequest{
			Org:         org,
			ProjectID:   projectID,
			Dataset:     dataset,
			Fingerprint: fingerprint,
			Query:       query,
			Filters:     filters,
			Start:       start,
			End:         end,
		}
		proxyProfiling(w, r, client, "Flamegraph", profiling.FlamegraphPath(org, projectID), payload)
	}
}

func chunksHandler(client *profiling.Client, flags featureStore, defaults summaryDefaults) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		org, ok := profilingPreamble(w, r, client, flags, defaults)
		if !ok {
			return
		}

		projectID, ok := singleProject(w, r)
		if !ok {
			return
		}
		profilerID := strings.TrimSpace(r.URL.Query().Get("profiler_id"))
		if profilerID == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "profiler_id must be specified."})
			return
		}

		start, end, err := profilingWindow(r, defaults)
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		payload := profiling.ChunksRequest{
			ProfilerID: profilerID,
			Start:      profiling.UnixNanoString(start),
			End:        profiling.UnixNanoString(end),
		}
		proxyProfiling(w, r, client, "Chunks", profiling.ChunksPath(org, projectID), payload)
	}
}

func chunksFlamegraphHandler(client *profiling.Client, flags featureStore, defaults summaryDefaults) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		org, ok := profilingPreamble(w, r, client, flags, defaults)
		if !ok {
			return
		}

		projectID, ok := singleProject(w, r)
		if !ok {
			return
		}
		spanGroup := strings.TrimSpace(r.URL.Query().Get("span_group"))
		if spanGroup == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "span_group must be specified."})
			return
		}

		start, end, err := profilingWindow(r, defaults)
		if err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		payload := profiling.ChunksFlamegraphRequest{SpanGroup: spanGroup, Start: start, End: end}
		proxyProfiling(w, r, client, "ChunksFlamegraph", profiling.ChunksFlamegraphPath(org, projectID), payload)
	}
}

// profilingPreamble answers 503 when the integration is off and 404 when the
// org lacks continuous profiling.
func profilingPreamble(w nethttp.ResponseWriter, r *nethttp.Request, client *profiling.Client, flags featureStore, defaults summaryDefaults) (string, bool) {
	if client == nil || !client.Enabled() {
		writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
			"error": "profiling integration disabled (set APP_PROFILING_ENABLED=true)",
		})
		return "", false
	}

	org := orgParam(r, defaults.Org)
	if flags != nil {
		on, err := flags.Enabled(r.Context(), org, featureContinuousProfiling)
		if err != nil {
			writeJSON(w, nethttp.StatusInternalServerError, map[string]any{"error": "failed to check feature"})
			return "", false
		}
		if !on {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return "", false
		}
	}
	return org, true
}

func singleProject(w nethttp.ResponseWriter, r *nethttp.Request) (int64, bool) {
	projects := splitValues(r.URL.Query()["project"])
	if len(projects) != 1 {
		writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "one project_id must be specified."})
		return 0, false
	}
	projectID, err := strconv.ParseInt(projects[0], 10, 64)
	if err != nil || projectID <= 0 {
		writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "project must be a positive integer"})
		return 0, false
	}
	return projectID, true
}

// flamegraphDataset resolves the dataset the way the fingerprint demands:
// a fingerprint implies functions and is rejected for any other dataset.
func flamegraphDataset(rawDataset, rawFingerprint string) (string, *uint32, error) {
	var fingerprint *uint32
	if raw := strings.TrimSpace(rawFingerprint); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return "", nil, errors.New("fingerprint must be an integer between 0 and 4294967295")
		}
		fp := uint32(v)
		fingerprint = &fp
	}

	switch strings.TrimSpace(rawDataset) {
	case "":
		if fingerprint != nil {
			return datasetFunctions, fingerprint, nil
		}
		return datasetDiscover, nil, nil
	case datasetFunctions:
		return datasetFunctions, fingerprint, nil
	case datasetProfiles, datasetDiscover:
		if fingerprint != nil {
			return "", nil, errors.New(`"fingerprint" is only permitted when using dataset: "functions"`)
		}
		return datasetDiscover, nil, nil
	default:
		return "", nil, errors.New(`dataset must be one of "profiles", "discover", "functions"`)
	}
}

func profilingWindow(r *nethttp.Request, defaults summaryDefaults) (time.Time, time.Time, error) {
	period := defaults.Period
	if raw := strings.TrimSpace(r.URL.Query().Get("statsPeriod")); raw != "" {
		var err error
		period, err = parsePeriod(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end := time.Now().UTC()
	return end.Add(-period), end, nil
}

func proxyProfiling(w nethttp.ResponseWriter, r *nethttp.Request, client *profiling.Client, operation, path string, payload any) {
	start := time.Now()
	err := client.Proxy(r.Context(), w, nethttp.MethodPost, path, nil, payload)
	recordExternalCall("profiling", operation, time.Since(start).Seconds(), err)
	if err != nil && !errors.Is(err, profiling.ErrStreamInterrupted) {
		status := nethttp.StatusBadGateway
		if errors.Is(err, profiling.ErrTimeout) {
			status = nethttp.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]any{"error": "failed to fetch " + strings.ToLower(operation)})
	}
}
