package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"resource-summary-ui/internal/querylabel"
	"resource-summary-ui/internal/search"
)

// ErrInvalidSort is returned for a pages sort key that is not whitelisted.
var ErrInvalidSort = errors.New("invalid sort")

// ErrGroupNotFound is returned when no span matches the requested group in the period.
var ErrGroupNotFound = errors.New("resource group not found")

// filterColumns maps supported filter keys to span columns.
var filterColumns = map[string]string{
	"span.op":                         "s.op",
	"span.domain":                     "s.domain",
	"span.group":                      "s.group_hash",
	"transaction":                     "s.transaction",
	"transaction.method":              "s.transaction_method",
	"file_extension":                  "s.file_extension",
	"resource.render_blocking_status": "s.render_blocking_status",
	"release":                         "s.release_name",
	"environment":                     "s.environment",
}

// sortColumns maps page table sort keys to result aliases.
var sortColumns = map[string]string{
	"transaction":      "transaction",
	"count":            "span_count",
	"spm":              "span_count",
	"avg_duration":     "avg_duration_ms",
	"avg_encoded_size": "avg_encoded_size",
}

// SummaryRequest selects one resource group and narrows it.
type SummaryRequest struct {
	Group       string
	Filters     search.Filters
	Period      time.Duration
	Interval    time.Duration
	End         time.Time
	Limit       int
	Offset      int
	Sort        string
	SampleLimit int
}

// GroupHeader describes the resource being summarised.
type GroupHeader struct {
	Group       string `json:"group"`
	Description string `json:"description"`
	Op          string `json:"op"`
	Domain      string `json:"domain"`
}

// ChartPoint is one interval bucket value.
type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ChartSeries is one query plotted on the page, tagged with its symbol.
type ChartSeries struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Unit   string       `json:"unit"`
	Points []ChartPoint `json:"points"`
}

// PageRow is one transaction that loads the resource.
type PageRow struct {
	Transaction    string  `json:"transaction"`
	Method         string  `json:"method"`
	Count          int64   `json:"count"`
	SPM            float64 `json:"spm"`
	AvgDurationMS  float64 `json:"avg_duration_ms"`
	P95DurationMS  float64 `json:"p95_duration_ms"`
	AvgEncodedSize float64 `json:"avg_encoded_size"`
}

// Sample is one slow span occurrence.
type Sample struct {
	SpanID       string     `json:"span_id"`
	TraceID      string     `json:"trace_id"`
	Transaction  string     `json:"transaction"`
	DurationMS   float64    `json:"duration_ms"`
	EncodedSize  int64      `json:"encoded_size"`
	TransferSize int64      `json:"transfer_size"`
	Timestamp    *time.Time `json:"timestamp"`
}

// ResourceSummary is everything the resource summary screen renders.
type ResourceSummary struct {
	Header   GroupHeader        `json:"header"`
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	Interval string             `json:"interval"`
	Filters  map[string]string  `json:"filters"`
	Totals   map[string]float64 `json:"totals"`
	Charts   []ChartSeries      `json:"charts"`
	Pages    []PageRow          `json:"pages"`
	Samples  []Sample           `json:"samples"`
}

// chartQueries are plotted in this order; position decides the query symbol.
var chartQueries = []struct {
	name string
	unit string
	expr string
}{
	{name: "spm()", unit: "rate", expr: "COUNT(*)"},
	{name: "avg(span.self_time)", unit: "millisecond", expr: "AVG(s.duration_ms)"},
	{name: "avg(http.response_content_length)", unit: "byte", expr: "AVG(s.encoded_size)"},
	{name: "avg(http.decoded_response_content_length)", unit: "byte", expr: "AVG(s.decoded_size)"},
	{name: "avg(http.response_transfer_size)", unit: "byte", expr: "AVG(s.transfer_size)"},
}

// ChartNames lists the plotted series in symbol order.
func ChartNames() []string {
	out := make([]string, 0, len(chartQueries))
	for _, q := range chartQueries {
		out = append(out, q.name)
	}
	return out
}

// Normalize fills defaults and validates the request.
func (r *SummaryRequest) Normalize(now time.Time) error {
	r.Group = strings.TrimSpace(r.Group)
	if r.Group == "" {
		return errors.New("resource group is required")
	}
	if r.Period <= 0 {
		r.Period = 24 * time.Hour
	}
	if r.Interval <= 0 {
		r.Interval = time.Hour
	}
	// Buckets are keyed by whole seconds; a fractional interval would drift
	// away from the FLOOR(ts/sec)*sec buckets the database returns.
	r.Interval = r.Interval.Truncate(time.Second)
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.Interval > r.Period {
		r.Interval = r.Period.Truncate(time.Second)
		if r.Interval <= 0 {
			r.Interval = time.Second
		}
	}
	if r.Period/r.Interval > 1000 {
		return fmt.Errorf("interval %s too small for period %s", r.Interval, r.Period)
	}
	// End is rounded up to a bucket boundary so the current partial bucket is
	// included; an already aligned End is kept, which makes Normalize idempotent.
	if r.End.IsZero() {
		r.End = alignToInterval(now, r.Interval).Add(r.Interval)
	} else if aligned := alignToInterval(r.End, r.Interval); !aligned.Equal(r.End) {
		r.End = aligned.Add(r.Interval)
	} else {
		r.End = aligned
	}
	if r.Limit <= 0 || r.Limit > 1000 {
		r.Limit = 25
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.SampleLimit <= 0 || r.SampleLimit > 100 {
		r.SampleLimit = 10
	}
	if _, _, err := pageOrderClause(r.Sort); err != nil {
		return err
	}
	return nil
}

func (r SummaryRequest) start() time.Time {
	return r.End.Add(-r.Period)
}

// ResourceSummary runs the header, chart, pages, and samples queries for one group.
func (s *Store) ResourceSummary(ctx context.Context, req SummaryRequest) (*ResourceSummary, error) {
	if err := req.Normalize(time.Now()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	where, args := whereClause(req)

	header := GroupHeader{Group: req.Group}
	var description, op, domain sql.NullString
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT s.description, s.op, s.domain
FROM spans s
WHERE %s
ORDER BY s.timestamp DESC
LIMIT 1;
`, where), args...).Scan(&description, &op, &domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, req.Group)
	}
	if err != nil {
		return nil, err
	}
	header.Description = description.String
	header.Op = op.String
	header.Domain = domain.String

	charts, totals, err := s.chartSeries(ctx, req, where, args)
	if err != nil {
		return nil, err
	}
	pages, err := s.pageRows(ctx, req, where, args)
	if err != nil {
		return nil, err
	}
	samples, err := s.slowestSamples(ctx, req, where, args)
	if err != nil {
		return nil, err
	}

	filters := make(map[string]string, len(req.Filters))
	for k, v := range req.Filters {
		filters[k] = v
	}

	return &ResourceSummary{
		Header:   header,
		Start:    req.start(),
		End:      req.End,
		Interval: req.Interval.String(),
		Filters:  filters,
		Totals:   totals,
		Charts:   charts,
		Pages:    pages,
		Samples:  samples,
	}, nil
}

func (s *Store) chartSeries(ctx context.Context, req SummaryRequest, where string, args []any) ([]ChartSeries, map[string]float64, error) {
	exprs := make([]string, 0, len(chartQueries))
	for _, q := range chartQueries {
		exprs = append(exprs, q.expr)
	}

	bucketSec := int64(req.Interval / time.Second)
	q := fmt.Sprintf(`
SELECT
  FLOOR(UNIX_TIMESTAMP(s.timestamp) / ?) * ? AS bucket,
  %s
FROM spans s
WHERE %s
GROUP BY bucket
ORDER BY bucket;
`, strings.Join(exprs, ",\n  "), where)

	queryArgs := append([]any{bucketSec, bucketSec}, args...)
	rows, err := s.db.QueryContext(ctx, q, queryArgs...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byBucket := map[int64][]float64{}
	var totalCount float64
	for rows.Next() {
		var (
			bucket int64
			vals   = make([]sql.NullFloat64, len(chartQueries))
			dest   = make([]any, 0, len(chartQueries)+1)
		)
		dest = append(dest, &bucket)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		row := make([]float64, len(vals))
		for i, v := range vals {
			row[i] = nullFloat64Value(v)
		}
		totalCount += row[0]
		byBucket[bucket] = row
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	minutes := req.Interval.Minutes()
	buckets := bucketStarts(req.start(), req.End, req.Interval)
	series := make([]ChartSeries, len(chartQueries))
	for i, cq := range chartQueries {
		series[i] = ChartSeries{
			Symbol: querylabel.MustLabel(i),
			Name:   cq.name,
			Unit:   cq.unit,
			Points: make([]ChartPoint, 0, len(buckets)),
		}
	}
	for _, b := range buckets {
		row := byBucket[b.Unix()]
		for i := range chartQueries {
			v := 0.0
			if row != nil {
				v = row[i]
			}
			if i == 0 && minutes > 0 {
				v = v / minutes
			}
			series[i].Points = append(series[i].Points, ChartPoint{Timestamp: b, Value: round2(v)})
		}
	}

	totals := map[string]float64{
		"count": totalCount,
		"spm":   0,
	}
	if m := req.Period.Minutes(); m > 0 {
		totals["spm"] = round2(totalCount / m)
	}
	return series, totals, nil
}

func (s *Store) pageRows(ctx context.Context, req SummaryRequest, where string, args []any) ([]PageRow, error) {
	orderBy, _, err := pageOrderClause(req.Sort)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
SELECT
  s.transaction AS transaction,
  COALESCE(s.transaction_method, '') AS method,
  COUNT(*) AS span_count,
  AVG(s.duration_ms) AS avg_duration_ms,
  AVG(s.encoded_size) AS avg_encoded_size
FROM spans s
WHERE %s
GROUP BY s.transaction, s.transaction_method
ORDER BY %s
LIMIT ? OFFSET ?;
`, where, orderBy)

	queryArgs := append(append([]any{}, args...), req.Limit, req.Offset)
	rows, err := s.db.QueryContext(ctx, q, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	minutes := req.Period.Minutes()
	out := make([]PageRow, 0, req.Limit)
	for rows.Next() {
		var (
			item     PageRow
			avgDur   sql.NullFloat64
			avgBytes sql.NullFloat64
		)
		if err := rows.Scan(&item.Transaction, &item.Method, &item.Count, &avgDur, &avgBytes); err != nil {
			return nil, err
		}
		item.AvgDurationMS = round2(nullFloat64Value(avgDur))
		item.AvgEncodedSize = round2(nullFloat64Value(avgBytes))
		if minutes > 0 {
			item.SPM = round2(float64(item.Count) / minutes)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return out, nil
	}
	durations, err := s.pageDurations(ctx, where, args, out)
	if err != nil {
		return nil, err
	}
	for i := range out {
		_, _, p95 := durationStats(durations[pageKey{out[i].Transaction, out[i].Method}])
		out[i].P95DurationMS = p95
	}
	return out, nil
}

type pageKey struct {
	transaction string
	method      string
}

// pageDurations loads the durations of every listed page in one query,
// grouped by transaction and method.
func (s *Store) pageDurations(ctx context.Context, where string, args []any, pages []PageRow) (map[pageKey][]float64, error) {
	seen := make(map[string]struct{}, len(pages))
	queryArgs := append([]any{}, args...)
	for _, p := range pages {
		if _, ok := seen[p.Transaction]; ok {
			continue
		}
		seen[p.Transaction] = struct{}{}
		queryArgs = append(queryArgs, p.Transaction)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(seen)), ", ")

	q := fmt.Sprintf(`
SELECT s.transaction, COALESCE(s.transaction_method, ''), s.duration_ms
FROM spans s
WHERE %s
  AND s.transaction IN (%s);
`, where, placeholders)

	rows, err := s.db.QueryContext(ctx, q, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[pageKey][]float64, len(pages))
	for rows.Next() {
		var (
			key pageKey
			d   sql.NullFloat64
		)
		if err := rows.Scan(&key.transaction, &key.method, &d); err != nil {
			return nil, err
		}
		if d.Valid {
			out[key] = append(out[key], d.Float64)
		}
	}
	return out, rows.Err()
}

func (s *Store) slowestSamples(ctx context.Context, req SummaryRequest, where string, args []any) ([]Sample, error) {
	q := fmt.Sprintf(`
SELECT s.span_id, s.trace_id, s.transaction, s.duration_ms, s.encoded_size, s.transfer_size, s.timestamp
FROM spans s
WHERE %s
ORDER BY s.duration_ms DESC
LIMIT ?;
`, where)

	queryArgs := append(append([]any{}, args...), req.SampleLimit)
	rows, err := s.db.QueryContext(ctx, q, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Sample, 0, req.SampleLimit)
	for rows.Next() {
		var (
			item     Sample
			encoded  sql.NullInt64
			transfer sql.NullInt64
			ts       sql.NullTime
		)
		if err := rows.Scan(&item.SpanID, &item.TraceID, &item.Transaction, &item.DurationMS, &encoded, &transfer, &ts); err != nil {
			return nil, err
		}
		item.EncodedSize = nullInt64Value(encoded)
		item.TransferSize = nullInt64Value(transfer)
		item.Timestamp = nullTimePtr(ts)
		out = append(out, item)
	}
	return out, rows.Err()
}

// whereClause builds the shared predicate; filter values are always bound.
func whereClause(req SummaryRequest) (string, []any) {
	parts := []string{"s.group_hash = ?", "s.timestamp >= ?", "s.timestamp < ?"}
	args := []any{req.Group, req.start(), req.End}
	for _, key := range req.Filters.Keys() {
		col, ok := filterColumns[key]
		if !ok || key == "span.group" {
			continue
		}
		parts = append(parts, col+" = ?")
		args = append(args, req.Filters[key])
	}
	return strings.Join(parts, "\n  AND "), args
}

func pageOrderClause(sortKey string) (string, bool, error) {
	sortKey = strings.TrimSpace(sortKey)
	if sortKey == "" {
		sortKey = "-spm"
	}
	desc := strings.HasPrefix(sortKey, "-")
	col, ok := sortColumns[strings.TrimPrefix(sortKey, "-")]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrInvalidSort, sortKey)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return col + " " + dir + ", transaction ASC", desc, nil
}

func bucketStarts(start, end time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || !end.After(start) {
		return nil
	}
	first := alignToInterval(start, interval)
	out := make([]time.Time, 0, int(end.Sub(first)/interval)+1)
	for t := first; t.Before(end); t = t.Add(interval) {
		out = append(out, t)
	}
	return out
}

// alignToInterval floors t to a multiple of interval since the Unix epoch,
// matching the SQL bucket expression.
func alignToInterval(t time.Time, interval time.Duration) time.Time {
	sec := int64(interval / time.Second)
	if sec <= 0 {
		return t.UTC()
	}
	u := t.Unix()
	return time.Unix(u-mod(u, sec), 0).UTC()
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
