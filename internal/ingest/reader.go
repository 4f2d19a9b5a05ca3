// Package ingest parses uploaded survey workbooks and CSV files into the
// domain point model.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	survey "pcm-survey/internal/survey/domain"
)

// Parse failures the handler maps to client errors.
var (
	ErrEmptyFile            = errors.New("ingest: file contains no data rows")
	ErrUnsupportedExtension = errors.New("ingest: unsupported file extension")
	ErrMissingStationColumn = errors.New("ingest: required MEAS column not found")
)

// Column names recognized by the header scan. SIGNAL falls back to a
// contains match so variants like "SIGNAL (mA)" resolve too.
const (
	colStation   = "MEAS"
	colSignal    = "SIGNAL"
	colPointType = "POINTTYPE"
	colX         = "X"
	colY         = "Y"
	colRoute     = "RID"
	colCreatedOn = "CREATEDON"
)

// Dataset is one parsed upload: station-sorted points plus the original
// column order so exports can reproduce the source layout.
type Dataset struct {
	Points  []*survey.Point
	Columns []string
}

type header struct {
	names     []string
	station   int
	signal    int
	pointType int
	x         int
	y         int
	route     int
	createdOn int
}

func scanHeader(row []string) (header, error) {
	h := header{
		names:     make([]string, len(row)),
		station:   -1,
		signal:    -1,
		pointType: -1,
		x:         -1,
		y:         -1,
		route:     -1,
		createdOn: -1,
	}
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		h.names[i] = name
		switch strings.ToUpper(name) {
		case colStation:
			h.station = i
		case colSignal:
			h.signal = i
		case colPointType:
			h.pointType = i
		case colX:
			h.x = i
		case colY:
			h.y = i
		case colRoute:
			h.route = i
		case colCreatedOn:
			h.createdOn = i
		}
	}
	if h.signal < 0 {
		for i, name := range h.names {
			if strings.Contains(strings.ToUpper(name), colSignal) {
				h.signal = i
				break
			}
		}
	}
	if h.station < 0 {
		return h, ErrMissingStationColumn
	}
	return h, nil
}

// Roles maps each recognized column to the header name the scan actually
// matched, so exports write values under the upload's verbatim headers
// ("Meas", "SIGNAL (mA)") rather than the canonical constants. Unmatched
// roles are empty.
type Roles struct {
	Station   string
	Signal    string
	PointType string
	X         string
	Y         string
	Route     string
	CreatedOn string
}

// ColumnRoles re-resolves a header row with the upload scan's matching
// rules, including the SIGNAL contains fallback.
func ColumnRoles(columns []string) Roles {
	h, _ := scanHeader(columns)
	name := func(idx int) string {
		if idx < 0 {
			return ""
		}
		return h.names[idx]
	}
	return Roles{
		Station:   name(h.station),
		Signal:    name(h.signal),
		PointType: name(h.pointType),
		X:         name(h.x),
		Y:         name(h.y),
		Route:     name(h.route),
		CreatedOn: name(h.createdOn),
	}
}

func parseFloat(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func buildPoint(h header, row []string) (*survey.Point, bool) {
	station, ok := parseFloat(cellAt(row, h.station))
	if !ok {
		return nil, false
	}
	p := &survey.Point{
		Station: station,
		Kind:    survey.ParsePointKind(cellAt(row, h.pointType)),
		Extra:   make(map[string]any),
	}

	if sv, ok := parseFloat(cellAt(row, h.signal)); ok {
		signal := sv
		p.Signal = &signal
		current := survey.DeriveCurrent(signal)
		p.Current = &current
	}
	if h.route >= 0 {
		if rid := cellAt(row, h.route); rid != "" {
			p.RouteID = rid
		} else {
			p.RouteID = "unknown"
		}
	} else {
		p.RouteID = "default"
	}
	if h.x >= 0 && h.y >= 0 {
		x, okX := parseFloat(cellAt(row, h.x))
		y, okY := parseFloat(cellAt(row, h.y))
		if okX && okY {
			p.Coords = &survey.Coordinates{Longitude: x, Latitude: y}
		}
	}
	p.CreatedOn = cellAt(row, h.createdOn)

	for i, name := range h.names {
		if name == "" || i == h.station || i == h.signal || i == h.pointType ||
			i == h.x || i == h.y || i == h.route || i == h.createdOn {
			continue
		}
		raw := cellAt(row, i)
		if raw == "" {
			continue
		}
		if v, ok := parseFloat(raw); ok {
			p.Extra[name] = v
		} else {
			p.Extra[name] = raw
		}
	}
	return p, true
}

func assemble(h header, rows [][]string) (*Dataset, error) {
	type key struct {
		route   string
		station float64
	}
	seen := make(map[key]bool)
	var points []*survey.Point
	for _, row := range rows {
		p, ok := buildPoint(h, row)
		if !ok {
			continue
		}
		k := key{route: p.RouteID, station: p.Station}
		if seen[k] {
			continue
		}
		seen[k] = true
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, ErrEmptyFile
	}
	survey.SortByStation(points)
	return &Dataset{Points: points, Columns: h.names}, nil
}

// ReadWorkbook parses an XLSX upload. Only the first sheet is read.
func ReadWorkbook(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}
	h, err := scanHeader(rows[0])
	if err != nil {
		return nil, err
	}
	return assemble(h, rows[1:])
}

// ReadCSV parses a CSV upload.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}
	h, err := scanHeader(rows[0])
	if err != nil {
		return nil, err
	}
	return assemble(h, rows[1:])
}

// Read dispatches on the upload's file extension.
func Read(filename string, data []byte) (*Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(bytes.NewReader(data))
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(filename))
	}
}
