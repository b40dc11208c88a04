// Package export writes resource summaries as spreadsheets.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"

	mysqlstore "resource-summary-ui/internal/connectors/mysql"
)

const (
	SheetSummary = "Summary"
	SheetCharts  = "Charts"
	SheetPages   = "Pages"
	SheetSamples = "Samples"
)

// SummaryWorkbook renders summary into an xlsx file and returns its bytes.
// maxRows caps the Pages and Samples sheets; zero means no cap.
func SummaryWorkbook(summary *mysqlstore.ResourceSummary, maxRows int) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("export: nil summary")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetCharts, SheetPages, SheetSamples} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %q: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeSummarySheet(f, summary); err != nil {
		return nil, err
	}
	if err := writeChartsSheet(f, summary, headerStyle); err != nil {
		return nil, err
	}
	if err := writePagesSheet(f, summary, headerStyle, maxRows); err != nil {
		return nil, err
	}
	if err := writeSamplesSheet(f, summary, headerStyle, maxRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, s *mysqlstore.ResourceSummary) error {
	rows := [][]any{
		{"Resource", s.Header.Description},
		{"Group", s.Header.Group},
		{"Operation", s.Header.Op},
		{"Domain", s.Header.Domain},
		{"Start", s.Start.Format(time.RFC3339)},
		{"End", s.End.Format(time.RFC3339)},
		{"Interval", s.Interval},
		{"Spans", humanize.Comma(int64(s.Totals["count"]))},
		{"Spans per minute", s.Totals["spm"]},
	}
	for _, k := range sortedKeys(s.Filters) {
		rows = append(rows, []any{"Filter " + k, s.Filters[k]})
	}
	return writeRows(f, SheetSummary, 1, rows)
}

// writeChartsSheet puts one column per chart query, headed by its symbol.
func writeChartsSheet(f *excelize.File, s *mysqlstore.ResourceSummary, style int) error {
	header := make([]any, 0, len(s.Charts)+1)
	header = append(header, "Timestamp")
	for _, c := range s.Charts {
		header = append(header, fmt.Sprintf("Query %s: %s", c.Symbol, c.Name))
	}
	if err := writeHeader(f, SheetCharts, header, style); err != nil {
		return err
	}
	if len(s.Charts) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(s.Charts[0].Points))
	for i, p := range s.Charts[0].Points {
		row := make([]any, 0, len(s.Charts)+1)
		row = append(row, p.Timestamp.Format(time.RFC3339))
		for _, c := range s.Charts {
			if i < len(c.Points) {
				row = append(row, c.Points[i].Value)
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}
	return writeRows(f, SheetCharts, 2, rows)
}

func writePagesSheet(f *excelize.File, s *mysqlstore.ResourceSummary, style, maxRows int) error {
	header := []any{"Transaction", "Method", "Count", "Spans/min", "Avg duration (ms)", "P95 duration (ms)", "Avg size"}
	if err := writeHeader(f, SheetPages, header, style); err != nil {
		return err
	}
	pages := capRows(len(s.Pages), maxRows)
	rows := make([][]any, 0, pages)
	for _, p := range s.Pages[:pages] {
		rows = append(rows, []any{
			p.Transaction, p.Method, p.Count, p.SPM, p.AvgDurationMS, p.P95DurationMS,
			humanize.Bytes(uint64(p.AvgEncodedSize)),
		})
	}
	return writeRows(f, SheetPages, 2, rows)
}

func writeSamplesSheet(f *excelize.File, s *mysqlstore.ResourceSummary, style, maxRows int) error {
	header := []any{"Span", "Trace", "Transaction", "Duration (ms)", "Encoded size", "Transfer size", "Timestamp"}
	if err := writeHeader(f, SheetSamples, header, style); err != nil {
		return err
	}
	n := capRows(len(s.Samples), maxRows)
	rows := make([][]any, 0, n)
	for _, smp := range s.Samples[:n] {
		ts := ""
		if smp.Timestamp != nil {
			ts = smp.Timestamp.Format(time.RFC3339)
		}
		rows = append(rows, []any{
			smp.SpanID, smp.TraceID, smp.Transaction, smp.DurationMS,
			humanize.Bytes(uint64(smp.EncodedSize)), humanize.Bytes(uint64(smp.TransferSize)), ts,
		})
	}
	return writeRows(f, SheetSamples, 2, rows)
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := writeRows(f, sheet, 1, [][]any{header}); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRows(f *excelize.File, sheet string, firstRow int, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, firstRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, firstRow+i, err)
		}
	}
	return nil
}

func capRows(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
