package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Export formats understood by Export.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Export writes run to w in the given format.
func Export(w io.Writer, run *Run, format string) error {
	switch format {
	case FormatJSON, "":
		return ExportJSON(w, run)
	case FormatCSV:
		return ExportCSV(w, run)
	default:
		return fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatJSON, FormatCSV)
	}
}

// ExportJSON writes the whole run as indented JSON.
func ExportJSON(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	return nil
}

// ExportCSV writes one row per day: day, one column per stock, driver,
// one column per flow count, feedback. Day 0 has empty count cells.
func ExportCSV(w io.Writer, run *Run) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, 3+len(run.StockNames)+len(run.FlowNames))
	header = append(header, "day")
	header = append(header, run.StockNames...)
	header = append(header, "driver")
	header = append(header, run.FlowNames...)
	header = append(header, "feedback")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, d := range run.Days {
		row = row[:0]
		row = append(row, strconv.Itoa(d.Day))
		for _, v := range d.Stocks {
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(d.Driver))
		for i := range run.FlowNames {
			if i < len(d.Counts) {
				row = append(row, strconv.Itoa(d.Counts[i]))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, formatFloat(d.Feedback))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write day %d: %w", d.Day, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
