package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteCSV emits one row per document with the full violation detail.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"document", "kind", "bucket", "result", "violations", "unmapped", "elapsed_ms"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write([]string{
			r.DocumentID,
			r.Kind,
			r.Bucket,
			resultOf(r),
			strings.Join(r.Violations, ";"),
			strconv.Itoa(len(r.Unmapped)),
			strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryRow is the condensed per-document row shared by the model
// validator and the direct schema checker, so both outputs line up in one
// table.
type SummaryRow struct {
	Filename string
	Source   string
	Result   string
	Elapsed  time.Duration
}

// SummaryRows condenses results under a source label ("model" for this
// runner; the schema checker uses its own).
func SummaryRows(source string, results []Result) []SummaryRow {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, SummaryRow{
			Filename: filenameOf(r.DocumentID),
			Source:   source,
			Result:   resultOf(r),
			Elapsed:  r.Elapsed,
		})
	}
	return rows
}

// WriteSummaryCSV emits summary rows as CSV.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"filename", "source", "result", "time_ms"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Filename,
			r.Source,
			r.Result,
			strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSummaryCSV parses summary rows written by WriteSummaryCSV, or by an
// external tool emitting the same columns. Rows from several sources can
// be merged into one table this way.
func ReadSummaryCSV(r io.Reader) ([]SummaryRow, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var rows []SummaryRow
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "filename" {
			continue
		}
		if len(rec) != 4 {
			return nil, fmt.Errorf("summary row %d: expected 4 columns, got %d", i+1, len(rec))
		}
		ms, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("summary row %d: bad time_ms %q", i+1, rec[3])
		}
		rows = append(rows, SummaryRow{
			Filename: rec[0],
			Source:   rec[1],
			Result:   rec[2],
			Elapsed:  time.Duration(ms) * time.Millisecond,
		})
	}
	return rows, nil
}

// RenderSummary renders summary rows as a table for terminal output.
func RenderSummary(w io.Writer, rows []SummaryRow) error {
	t := tablewriter.NewTable(w)
	t.Header("FILENAME", "SOURCE", "RESULT", "TIME")
	for _, r := range rows {
		if err := t.Append([]string{r.Filename, r.Source, r.Result, r.Elapsed.Round(time.Millisecond).String()}); err != nil {
			return err
		}
	}
	return t.Render()
}

// Totals aggregates a run for the closing log line and table.
type Totals struct {
	Valid   int
	Invalid int
	Failed  map[string]int
}

func Totalize(results []Result) Totals {
	t := Totals{Failed: make(map[string]int)}
	for _, r := range results {
		switch {
		case r.Failed != "":
			t.Failed[r.Failed]++
		case r.Valid:
			t.Valid++
		default:
			t.Invalid++
		}
	}
	return t
}

func (t Totals) String() string {
	failed := 0
	for _, n := range t.Failed {
		failed += n
	}
	return fmt.Sprintf("%d valid, %d invalid, %d failed", t.Valid, t.Invalid, failed)
}

func resultOf(r Result) string {
	switch {
	case r.Failed != "":
		return r.Failed
	case r.Valid:
		return "valid"
	}
	return "invalid"
}

func filenameOf(documentID string) string {
	if i := strings.IndexByte(documentID, '#'); i >= 0 {
		return documentID[:i]
	}
	return documentID
}
