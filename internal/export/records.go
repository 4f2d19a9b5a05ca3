// Package export flattens a dataset snapshot into tabular records and
// renders them as CSV, XLSX, JSON and PDF.
package export

import (
	"pcm-survey/internal/ingest"
	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

// Computed column names appended after the upload's original columns. The
// names match the survey tool's established export layout, so downstream
// spreadsheets keep working.
const (
	ColGroup               = "group"
	ColPercentChange       = "% Current Change/100 ft"
	ColActualPercentChange = "Actual % Current Change/100 ft"
	ColGroupChange         = "Group % Change/100 ft"
	ColGroupActualChange   = "Group Actual % Change/100 ft"
	ColNextGroup           = "Next Group"
	ColBetweenChange       = "Between Groups % Change/100 ft"
	ColBetweenActualChange = "Between Groups Actual % Change/100 ft"
	ColCurrent             = "Current (dBmA)"
	ColRemoved             = "removed"
)

func computedColumns() []string {
	return []string{
		ColCurrent,
		ColRemoved,
		ColGroup,
		ColPercentChange,
		ColActualPercentChange,
		ColGroupChange,
		ColGroupActualChange,
		ColNextGroup,
		ColBetweenChange,
		ColBetweenActualChange,
	}
}

// Table holds one route's flattened rows. Columns lists the upload's
// original header followed by the computed columns; every row keys into it.
type Table struct {
	RouteID string
	Columns []string
	Rows    []map[string]any
}

// matchedOr keeps cells keyed by the upload's verbatim header when the scan
// matched one, falling back to the canonical name for snapshots built
// without that column.
func matchedOr(matched, fallback string) string {
	if matched != "" {
		return matched
	}
	return fallback
}

func baseCells(roles ingest.Roles, columns []string, p *survey.Point) map[string]any {
	cells := make(map[string]any, len(columns)+9)
	for _, name := range columns {
		if v, ok := p.Extra[name]; ok {
			cells[name] = v
		}
	}
	cells[matchedOr(roles.Station, "MEAS")] = p.Station
	if p.Signal != nil {
		cells[matchedOr(roles.Signal, "SIGNAL")] = *p.Signal
	}
	if p.Kind != "" {
		cells[matchedOr(roles.PointType, "POINTTYPE")] = string(p.Kind)
	}
	if p.Coords != nil {
		cells[matchedOr(roles.X, "X")] = p.Coords.Longitude
		cells[matchedOr(roles.Y, "Y")] = p.Coords.Latitude
	}
	if p.RouteID != "" {
		cells[matchedOr(roles.Route, "RID")] = p.RouteID
	}
	if p.CreatedOn != "" {
		cells[matchedOr(roles.CreatedOn, "CREATEDON")] = p.CreatedOn
	}
	if p.Current != nil {
		cells[ColCurrent] = *p.Current
	}
	return cells
}

// BuildTable flattens one route of a snapshot: original cells, pairwise
// change per point, group membership with the group's uniform rate spread
// over its members, and between-group rates attached to each transition's
// reference row. Removed points keep their row, flagged in the removed
// column, but do not feed the change metrics.
func BuildTable(snap *application.Snapshot, routeID string) Table {
	cfg := snap.MetricConfig
	route := make([]*survey.Point, 0, len(snap.Points))
	live := make([]*survey.Point, 0, len(snap.Points))
	for i := range snap.Points {
		p := &snap.Points[i]
		if p.RouteID != routeID {
			continue
		}
		route = append(route, p)
		if !p.Removed {
			live = append(live, p)
		}
	}
	groups := snap.RouteGroups(routeID)

	pairwise := make(map[float64]survey.ChangeMetric)
	for _, m := range survey.PairwiseChanges(live, cfg) {
		pairwise[m.Station] = m
	}

	groupName := make(map[float64]string)
	groupRate := make(map[float64]survey.ChangeMetric)
	for _, g := range groups {
		members := g.Points(live)
		for _, p := range members {
			groupName[p.Station] = g.Name
		}
		rate, ok := survey.GroupSpanChange(g, members, cfg)
		if !ok {
			continue
		}
		for _, m := range survey.SpreadGroupRate(rate, members) {
			groupRate[m.Station] = m
		}
	}

	transitions := make(map[float64]survey.Transition)
	for _, t := range survey.TransitionChanges(groups, live, cfg) {
		transitions[t.StartStation] = t
	}

	table := Table{
		RouteID: routeID,
		Columns: append(append([]string(nil), snap.Columns...), computedColumns()...),
	}
	roles := ingest.ColumnRoles(snap.Columns)
	for _, p := range route {
		cells := baseCells(roles, snap.Columns, p)
		cells[ColRemoved] = p.Removed
		if name, ok := groupName[p.Station]; ok {
			cells[ColGroup] = name
		}
		if m, ok := pairwise[p.Station]; ok {
			cells[ColPercentChange] = m.PercentChange
			cells[ColActualPercentChange] = m.ActualPercentChange
		}
		if m, ok := groupRate[p.Station]; ok {
			cells[ColGroupChange] = m.PercentChange
			cells[ColGroupActualChange] = m.ActualPercentChange
		}
		if t, ok := transitions[p.Station]; ok {
			cells[ColNextGroup] = t.NextGroupName
			cells[ColBetweenChange] = t.PercentChange
			cells[ColBetweenActualChange] = t.ActualPercentChange
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// BuildTables flattens every route of the snapshot in first-seen order.
func BuildTables(snap *application.Snapshot) []Table {
	out := make([]Table, 0, len(snap.Routes))
	for _, rid := range snap.Routes {
		out = append(out, BuildTable(snap, rid))
	}
	return out
}
