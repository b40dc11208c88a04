package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	mysqlstore "resource-summary-ui/internal/connectors/mysql"
)

func testSummary() *mysqlstore.ResourceSummary {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := start.Add(30 * time.Minute)
	return &mysqlstore.ResourceSummary{
		Header: mysqlstore.GroupHeader{
			Group:       "d1f0",
			Description: "https://cdn.example.com/app.js",
			Op:          "resource.script",
			Domain:      "cdn.example.com",
		},
		Start:    start,
		End:      start.Add(2 * time.Hour),
		Interval: "1h0m0s",
		Filters:  map[string]string{"span.op": "resource.script"},
		Totals:   map[string]float64{"count": 12345, "spm": 102.88},
		Charts: []mysqlstore.ChartSeries{
			{Symbol: "a", Name: "spm()", Points: []mysqlstore.ChartPoint{{Timestamp: start, Value: 1}, {Timestamp: start.Add(time.Hour), Value: 2}}},
			{Symbol: "b", Name: "avg(span.self_time)", Points: []mysqlstore.ChartPoint{{Timestamp: start, Value: 30}, {Timestamp: start.Add(time.Hour), Value: 40}}},
		},
		Pages: []mysqlstore.PageRow{
			{Transaction: "/checkout", Method: "GET", Count: 10, SPM: 0.08, AvgDurationMS: 20, P95DurationMS: 50, AvgEncodedSize: 2048},
			{Transaction: "/home", Method: "GET", Count: 5, SPM: 0.04, AvgDurationMS: 10, P95DurationMS: 12, AvgEncodedSize: 1024},
		},
		Samples: []mysqlstore.Sample{
			{SpanID: "s1", TraceID: "t1", Transaction: "/checkout", DurationMS: 50, EncodedSize: 2048, TransferSize: 2100, Timestamp: &ts},
		},
	}
}

func TestSummaryWorkbook(t *testing.T) {
	blob, err := SummaryWorkbook(testSummary(), 1)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetCharts, SheetPages, SheetSamples}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/app.js", v)
	v, err = f.GetCellValue(SheetSummary, "B8")
	require.NoError(t, err)
	assert.Equal(t, "12,345", v)
	v, err = f.GetCellValue(SheetSummary, "A10")
	require.NoError(t, err)
	assert.Equal(t, "Filter span.op", v)

	v, err = f.GetCellValue(SheetCharts, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Query a: spm()", v)
	v, err = f.GetCellValue(SheetCharts, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Query b: avg(span.self_time)", v)
	v, err = f.GetCellValue(SheetCharts, "C3")
	require.NoError(t, err)
	assert.Equal(t, "40", v)

	rows, err := f.GetRows(SheetPages)
	require.NoError(t, err)
	require.Len(t, rows, 2, "pages capped at one data row")
	assert.Equal(t, "/checkout", rows[1][0])
	assert.Equal(t, "2.0 kB", rows[1][6])

	v, err = f.GetCellValue(SheetSamples, "F2")
	require.NoError(t, err)
	assert.Equal(t, "2.1 kB", v)
}

func TestSummaryWorkbook_NilSummary(t *testing.T) {
	_, err := SummaryWorkbook(nil, 0)
	assert.Error(t, err)
}
