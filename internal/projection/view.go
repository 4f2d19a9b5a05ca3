// Package projection derives read models from dataset snapshots: the chart
// view, summary statistics and the selection detail panel.
package projection

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

// Metric bar kinds.
const (
	BarPairwise   = "pairwise"
	BarGroup      = "group"
	BarTransition = "transition"
)

// SeriesPoint is one drawable chart point.
type SeriesPoint struct {
	Station float64 `json:"station"`
	Value   float64 `json:"value"`
	Kind    string  `json:"kind,omitempty"`
	GroupID string  `json:"groupId,omitempty"`
	Color   string  `json:"color,omitempty"`
}

// Bar is one metric bar on the secondary axis. Pairwise bars sit at a single
// station; group and transition bars span a station range.
type Bar struct {
	Kind         string  `json:"kind"`
	StartStation float64 `json:"startStation"`
	EndStation   float64 `json:"endStation"`
	Value        float64 `json:"value"`
	Actual       float64 `json:"actual"`
	Label        string  `json:"label,omitempty"`
	Color        string  `json:"color,omitempty"`
}

// GroupView is the group registry entry shown in the side panel.
type GroupView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Color         string  `json:"color"`
	Points        int     `json:"points"`
	StartStation  float64 `json:"startStation"`
	EndStation    float64 `json:"endStation"`
	Visible       bool    `json:"visible"`
	MetricDisplay bool    `json:"metricDisplay"`
}

// SelectionDetails describes the pending selection.
type SelectionDetails struct {
	Count      int            `json:"count"`
	Stations   []float64      `json:"stations,omitempty"`
	MinStation float64        `json:"minStation,omitempty"`
	MaxStation float64        `json:"maxStation,omitempty"`
	MinValue   float64        `json:"minValue,omitempty"`
	MaxValue   float64        `json:"maxValue,omitempty"`
	MeanValue  float64        `json:"meanValue,omitempty"`
	KindCounts map[string]int `json:"kindCounts,omitempty"`
}

// Summary aggregates the active route.
type Summary struct {
	Points       int            `json:"points"`
	RemovedCount int            `json:"removedCount"`
	Groups       int            `json:"groups"`
	KindCounts   map[string]int `json:"kindCounts"`
	MeanValue    float64        `json:"meanValue"`
	StdDevValue  float64        `json:"stdDevValue"`
	MinValue     float64        `json:"minValue"`
	MaxValue     float64        `json:"maxValue"`
	MinStation   float64        `json:"minStation"`
	MaxStation   float64        `json:"maxStation"`
}

// View is the full chart read model for the active route.
type View struct {
	DatasetID   string                 `json:"datasetId"`
	SourceName  string                 `json:"sourceName"`
	Routes      []string               `json:"routes"`
	ActiveRoute string                 `json:"activeRoute"`
	Revision    int                    `json:"revision"`
	Points      []SeriesPoint          `json:"points"`
	Bars        []Bar                  `json:"bars"`
	Groups      []GroupView            `json:"groups"`
	Selection   SelectionDetails       `json:"selection"`
	Summary     Summary                `json:"summary"`
	Zoom        *application.ZoomState `json:"zoom,omitempty"`
}

func pointValue(p *survey.Point, useCurrent bool) (float64, bool) {
	if useCurrent {
		if p.Current == nil {
			return 0, false
		}
		return *p.Current, true
	}
	return p.MetricValue()
}

// BuildView projects the snapshot's active route. With no active route the
// view carries only the dataset header and route list.
func BuildView(snap *application.Snapshot) View {
	view := View{
		DatasetID:   snap.DatasetID,
		SourceName:  snap.SourceName,
		Routes:      snap.Routes,
		ActiveRoute: snap.ActiveRoute,
		Revision:    snap.Revision,
		Zoom:        snap.Zoom,
	}
	route := snap.ActivePoints()
	if len(route) == 0 {
		return view
	}
	groups := snap.RouteGroups(snap.ActiveRoute)
	useCurrent := survey.AnyCurrentDefined(route)

	colorByGroup := make(map[string]string, len(groups))
	for _, g := range groups {
		colorByGroup[g.ID] = g.Color
	}

	live := make([]*survey.Point, 0, len(route))
	for _, p := range route {
		if p.Removed {
			continue
		}
		live = append(live, p)
		v, ok := pointValue(p, useCurrent)
		if !ok {
			continue
		}
		sp := SeriesPoint{Station: p.Station, Value: v, Kind: string(p.Kind)}
		if p.GroupID != "" {
			sp.GroupID = p.GroupID
			sp.Color = colorByGroup[p.GroupID]
		}
		view.Points = append(view.Points, sp)
	}

	view.Bars = buildBars(snap, live, groups, colorByGroup)
	view.Groups = buildGroupViews(snap, live, groups)
	view.Selection = buildSelection(snap, live, useCurrent)
	view.Summary = buildSummary(snap, live, groups, useCurrent)
	return view
}

// buildBars picks the metric mode: with any group toggled into metric
// display, the pairwise bars give way to group rate bars plus the
// transitions between visible groups; otherwise every consecutive pair
// contributes a bar.
func buildBars(snap *application.Snapshot, live []*survey.Point, groups []*survey.Group, colors map[string]string) []Bar {
	cfg := snap.MetricConfig
	var bars []Bar

	displayed := make([]*survey.Group, 0, len(groups))
	for _, g := range groups {
		if snap.MetricDisplayed(g.ID) {
			displayed = append(displayed, g)
		}
	}

	if len(displayed) == 0 {
		for _, m := range survey.PairwiseChanges(live, cfg) {
			bars = append(bars, Bar{
				Kind:         BarPairwise,
				StartStation: m.ReferenceStation,
				EndStation:   m.Station,
				Value:        m.PercentChange,
				Actual:       m.ActualPercentChange,
			})
		}
		return bars
	}

	for _, g := range displayed {
		rate, ok := survey.GroupSpanChange(g, g.Points(live), cfg)
		if !ok {
			continue
		}
		bars = append(bars, Bar{
			Kind:         BarGroup,
			StartStation: rate.StartStation,
			EndStation:   rate.EndStation,
			Value:        rate.PercentChange,
			Actual:       rate.ActualPercentChange,
			Label:        g.Name,
			Color:        colors[g.ID],
		})
	}
	for _, t := range survey.TransitionChanges(groups, live, cfg) {
		bars = append(bars, Bar{
			Kind:         BarTransition,
			StartStation: t.StartStation,
			EndStation:   t.EndStation,
			Value:        t.PercentChange,
			Actual:       t.ActualPercentChange,
			Label:        t.FromGroupName + " -> " + t.NextGroupName,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].StartStation < bars[j].StartStation })
	return bars
}

func buildGroupViews(snap *application.Snapshot, live []*survey.Point, groups []*survey.Group) []GroupView {
	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		gv := GroupView{
			ID:            g.ID,
			Name:          g.Name,
			Color:         g.Color,
			Points:        len(g.Stations),
			Visible:       g.Visible,
			MetricDisplay: snap.MetricDisplayed(g.ID),
		}
		if first, last, ok := g.Span(); ok {
			gv.StartStation = first
			gv.EndStation = last
		}
		out = append(out, gv)
	}
	return out
}

func buildSelection(snap *application.Snapshot, live []*survey.Point, useCurrent bool) SelectionDetails {
	det := SelectionDetails{Count: len(snap.Selection)}
	if det.Count == 0 {
		return det
	}
	selected := make(map[float64]bool, len(snap.Selection))
	for _, st := range snap.Selection {
		selected[st] = true
	}
	det.Stations = append([]float64(nil), snap.Selection...)
	sort.Float64s(det.Stations)
	det.MinStation = det.Stations[0]
	det.MaxStation = det.Stations[len(det.Stations)-1]
	det.KindCounts = make(map[string]int)

	var values []float64
	for _, p := range live {
		if !selected[p.Station] {
			continue
		}
		det.KindCounts[string(p.Kind)]++
		if v, ok := pointValue(p, useCurrent); ok {
			values = append(values, v)
		}
	}
	if len(values) > 0 {
		det.MeanValue = stat.Mean(values, nil)
		det.MinValue = values[0]
		det.MaxValue = values[0]
		for _, v := range values[1:] {
			if v < det.MinValue {
				det.MinValue = v
			}
			if v > det.MaxValue {
				det.MaxValue = v
			}
		}
	}
	return det
}

func buildSummary(snap *application.Snapshot, live []*survey.Point, groups []*survey.Group, useCurrent bool) Summary {
	sum := Summary{
		Points:     len(live),
		Groups:     len(groups),
		KindCounts: make(map[string]int),
	}
	// The summary is scoped to the active route; the ledger is dataset-wide.
	for i := range snap.Points {
		p := &snap.Points[i]
		if p.RouteID == snap.ActiveRoute && p.Removed {
			sum.RemovedCount++
		}
	}
	var values []float64
	for _, p := range live {
		sum.KindCounts[string(p.Kind)]++
		if v, ok := pointValue(p, useCurrent); ok {
			values = append(values, v)
		}
	}
	if len(live) > 0 {
		sum.MinStation = live[0].Station
		sum.MaxStation = live[len(live)-1].Station
	}
	if len(values) > 0 {
		sum.MeanValue = stat.Mean(values, nil)
		sum.StdDevValue = stat.StdDev(values, nil)
		sum.MinValue = values[0]
		sum.MaxValue = values[0]
		for _, v := range values[1:] {
			if v < sum.MinValue {
				sum.MinValue = v
			}
			if v > sum.MaxValue {
				sum.MaxValue = v
			}
		}
	}
	return sum
}
