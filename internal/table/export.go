package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/casa-dashboard/inaddash/internal/models"
)

// CSVHeader is the fixed export column order.
var CSVHeader = []string{"Airline", "Last Stop", "Origin", "INAD", "PAX", "Density", "Confidence", "Priority"}

// WriteCSV writes routes in the order given. Absent optional values become
// empty fields. An empty slice produces only the header.
func WriteCSV(w io.Writer, routes []models.Route) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range routes {
		if err := cw.Write(Record(r)); err != nil {
			return fmt.Errorf("write csv row %s/%s: %w", r.Airline, r.LastStop, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Record formats one route as a CSV row.
func Record(r models.Route) []string {
	return []string{
		r.Airline,
		r.LastStop,
		r.OriginCity,
		strconv.Itoa(r.Inad),
		optInt(r.Pax),
		FormatDensity(r.Density),
		optInt(r.Confidence),
		string(r.Priority),
	}
}

// FormatDensity renders a density to four decimals, or "" when absent.
func FormatDensity(d *float64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(*d, 'f', 4, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// ExportFileName is the download name for an export made at t.
func ExportFileName(t time.Time, ext string) string {
	if ext == "" {
		ext = "csv"
	}
	return fmt.Sprintf("routes-export-%s.%s", t.UTC().Format("2006-01-02"), ext)
}
