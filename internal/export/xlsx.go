package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pcm-survey/internal/survey/application"
)

// excelize rejects sheet names longer than 31 chars or containing certain
// punctuation.
func sheetName(routeID string) string {
	name := routeID
	for _, c := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, c, "_")
	}
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" {
		name = "route"
	}
	return name
}

func writeTableSheet(f *excelize.File, sheet string, columns []string, rows []map[string]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: create sheet %q: %w", sheet, err)
	}
	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		_ = f.SetCellValue(sheet, cell, name)
	}
	for r, row := range rows {
		for col, name := range columns {
			v, ok := row[name]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return fmt.Errorf("export: cell name: %w", err)
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	return nil
}

// BuildXLSX renders a workbook: one sheet per route, a combined sheet with
// every row, and a summary sheet with dataset metadata and the group
// registry.
func BuildXLSX(snap *application.Snapshot) ([]byte, error) {
	tables := BuildTables(snap)
	if len(tables) == 0 {
		return nil, fmt.Errorf("export: snapshot has no routes")
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	f.SetSheetName("Sheet1", summarySheet)

	_ = f.SetCellValue(summarySheet, "A1", "PCM Survey Export")
	_ = f.SetCellValue(summarySheet, "A3", "Source")
	_ = f.SetCellValue(summarySheet, "B3", snap.SourceName)
	_ = f.SetCellValue(summarySheet, "A4", "Loaded")
	_ = f.SetCellValue(summarySheet, "B4", snap.CreatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Routes")
	_ = f.SetCellValue(summarySheet, "B5", len(snap.Routes))
	_ = f.SetCellValue(summarySheet, "A6", "Points")
	_ = f.SetCellValue(summarySheet, "B6", len(snap.Points))
	_ = f.SetCellValue(summarySheet, "A7", "Removed Points")
	_ = f.SetCellValue(summarySheet, "B7", snap.RemovedCount)
	_ = f.SetCellValue(summarySheet, "A8", "Groups")
	_ = f.SetCellValue(summarySheet, "B8", len(snap.Groups))

	_ = f.SetCellValue(summarySheet, "A10", "Group")
	_ = f.SetCellValue(summarySheet, "B10", "Route")
	_ = f.SetCellValue(summarySheet, "C10", "Points")
	_ = f.SetCellValue(summarySheet, "D10", "Start")
	_ = f.SetCellValue(summarySheet, "E10", "End")
	_ = f.SetCellValue(summarySheet, "F10", "Visible")
	for i := range snap.Groups {
		g := &snap.Groups[i]
		row := 11 + i
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), g.Name)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), g.RouteID)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), len(g.Stations))
		if first, last, ok := g.Span(); ok {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), first)
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), last)
		}
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("F%d", row), g.Visible)
	}

	for _, table := range tables {
		if err := writeTableSheet(f, sheetName(table.RouteID), table.Columns, table.Rows); err != nil {
			return nil, err
		}
	}

	combined := make([]map[string]any, 0)
	for _, table := range tables {
		combined = append(combined, table.Rows...)
	}
	if err := writeTableSheet(f, "all data", tables[0].Columns, combined); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
