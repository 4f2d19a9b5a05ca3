package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"pcm-survey/internal/export/reportchart"
	"pcm-survey/internal/ingest"
	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

const pdfSampleRows = 25

// BuildPDF renders the survey report: dataset summary, optional free-text
// notes, per-route profile chart, group registry and a leading slice of the
// flattened rows.
func BuildPDF(snap *application.Snapshot, notes string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "PCM Survey Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", snap.SourceName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Loaded: %s", snap.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Routes: %d", len(snap.Routes)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Points: %d (%d removed)", len(snap.Points), snap.RemovedCount))
	pdf.Ln(8)

	if notes != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Notes")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, notes, "", "L", false)
		pdf.Ln(4)
	}

	stationCol := matchedOr(ingest.ColumnRoles(snap.Columns).Station, "MEAS")

	liveByRoute := make(map[string][]*survey.Point)
	for i := range snap.Points {
		p := &snap.Points[i]
		if !p.Removed {
			liveByRoute[p.RouteID] = append(liveByRoute[p.RouteID], p)
		}
	}

	// Group registry
	if len(snap.Groups) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Group", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Route", "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, "Points", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Start", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "End", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "% Change/100 ft", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for i := range snap.Groups {
			g := &snap.Groups[i]
			first, last, _ := g.Span()
			rateCell := ""
			if rate, ok := survey.GroupSpanChange(g, g.Points(liveByRoute[g.RouteID]), snap.MetricConfig); ok {
				rateCell = fmt.Sprintf("%.2f", rate.PercentChange)
			}
			pdf.CellFormat(40, 6, g.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, g.RouteID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%d", len(g.Stations)), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", first), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", last), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, rateCell, "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	// Per-route chart plus a sample of the flattened rows
	for _, rid := range snap.Routes {
		route := make([]*survey.Point, 0, len(snap.Points))
		for i := range snap.Points {
			if snap.Points[i].RouteID == rid {
				route = append(route, &snap.Points[i])
			}
		}
		png, err := reportchart.Render(rid, route, snap.RouteGroups(rid))
		if err == nil {
			name := fmt.Sprintf("route-%s", rid)
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
			pdf.AddPage()
			pdf.SetFont("Arial", "B", 12)
			pdf.Cell(0, 8, fmt.Sprintf("Route %s", rid))
			pdf.Ln(10)
			pdf.ImageOptions(name, 10, pdf.GetY(), 190, 0, false, opts, 0, "")
			pdf.SetY(pdf.GetY() + 85)
		}

		table := BuildTable(snap, rid)
		if len(table.Rows) == 0 {
			continue
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(30, 6, "Station", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Current (dBmA)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "% Change/100 ft", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Group", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		n := len(table.Rows)
		if n > pdfSampleRows {
			n = pdfSampleRows
		}
		for _, row := range table.Rows[:n] {
			pdf.CellFormat(30, 6, formatCell(row[stationCol]), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, formatCell(row[ColCurrent]), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, formatCell(row[ColPercentChange]), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, formatCell(row[ColGroup]), "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
		if len(table.Rows) > n {
			pdf.SetFont("Arial", "I", 8)
			pdf.Cell(0, 6, fmt.Sprintf("... %d more rows in the CSV/XLSX export", len(table.Rows)-n))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
