// Package report renders the route table as a printable PDF.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/casa-dashboard/inaddash/internal/models"
	"github.com/casa-dashboard/inaddash/internal/table"
)

// Meta is the heading block of a report.
type Meta struct {
	Title     string
	Period    string
	Filter    string
	Generated time.Time
}

var colWidths = []float64{28, 28, 60, 22, 30, 30, 28, 40}

// RouteTable writes routes, in the order given, as an A4 landscape PDF.
func RouteTable(w io.Writer, meta Meta, routes []models.Route) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(meta.Title), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	drawHeading(pdf, tr, meta, len(routes))
	drawHeaderRow(pdf)

	_, pageH := pdf.GetPageSize()
	pdf.SetFont("Arial", "", 9)
	for i, r := range routes {
		if pdf.GetY()+7 > pageH-18 {
			pdf.AddPage()
			drawHeaderRow(pdf)
			pdf.SetFont("Arial", "", 9)
		}
		fill := i%2 == 1
		pdf.SetFillColor(243, 244, 246)
		pdf.SetTextColor(17, 24, 39)
		cells := table.Record(r)
		for j, v := range cells[:len(cells)-1] {
			if v == "" {
				v = "-"
			}
			align := "L"
			if j >= 3 {
				align = "R"
			}
			pdf.CellFormat(colWidths[j], 7, tr(v), "", 0, align, fill, 0, "")
		}
		cr, cg, cb := rgb(r.Priority.Color())
		pdf.SetTextColor(cr, cg, cb)
		pdf.CellFormat(colWidths[len(colWidths)-1], 7, r.Priority.Label(), "", 1, "L", fill, 0, "")
	}
	if len(routes) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 10, "No routes match your search criteria", "", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawHeading(pdf *gofpdf.Fpdf, tr func(string) string, meta Meta, n int) {
	title := meta.Title
	if title == "" {
		title = "INAD Routes"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")

	var parts []string
	if meta.Period != "" {
		parts = append(parts, meta.Period)
	}
	if meta.Filter != "" {
		parts = append(parts, meta.Filter)
	}
	parts = append(parts, strconv.Itoa(n)+" routes")
	if !meta.Generated.IsZero() {
		parts = append(parts, "generated "+meta.Generated.UTC().Format("2006-01-02 15:04 UTC"))
	}
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 7, tr(strings.Join(parts, " | ")), "", 1, "L", false, 0, "")
	pdf.Ln(3)
}

func drawHeaderRow(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 9)
	r, g, b := rgb("#0D9488")
	pdf.SetFillColor(r, g, b)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range table.CSVHeader {
		align := "L"
		if i >= 3 && i < len(table.CSVHeader)-1 {
			align = "R"
		}
		pdf.CellFormat(colWidths[i], 8, h, "", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
}

func rgb(hex string) (int, int, int) {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
