// Package echarts renders the interactive route chart as a standalone HTML
// page.
package echarts

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"pcm-survey/internal/projection"
)

// ErrRenderInProgress is returned when a render is already running; the
// caller should retry with the next state revision instead of queueing.
var ErrRenderInProgress = fmt.Errorf("echarts: render in progress")

// Renderer draws chart pages. Concurrent renders of the same dataset are
// dropped rather than serialized, so a burst of state changes only pays for
// the newest one.
type Renderer struct {
	rendering atomic.Bool
}

// NewRenderer builds a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes the route chart HTML for a view.
func (r *Renderer) Render(w io.Writer, view *projection.View) error {
	if !r.rendering.CompareAndSwap(false, true) {
		return ErrRenderInProgress
	}
	defer r.rendering.Store(false)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("PCM Survey - %s", view.SourceName),
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Route %s", view.ActiveRoute),
			Subtitle: fmt.Sprintf("%d points, %d groups", len(view.Points), len(view.Groups)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Station (ft)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Current (dBmA)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", XAxisIndex: []int{0}}),
	)

	profile := make([]opts.LineData, 0, len(view.Points))
	for _, p := range view.Points {
		profile = append(profile, opts.LineData{Value: []interface{}{p.Station, p.Value}})
	}
	line.AddSeries("profile", profile, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	// Grouped points overlay as colored scatter series.
	byGroup := make(map[string][]opts.ScatterData)
	groupMeta := make(map[string]projection.GroupView)
	for _, g := range view.Groups {
		groupMeta[g.ID] = g
	}
	for _, p := range view.Points {
		if p.GroupID == "" {
			continue
		}
		byGroup[p.GroupID] = append(byGroup[p.GroupID], opts.ScatterData{
			Value: []interface{}{p.Station, p.Value},
		})
	}
	for _, g := range view.Groups {
		data, ok := byGroup[g.ID]
		if !ok || !g.Visible {
			continue
		}
		scatter := charts.NewScatter()
		scatter.AddSeries(g.Name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: g.Color}),
		)
		line.Overlap(scatter)
	}

	// Metric bars flatten into a step series on the same x axis; the client
	// reads actual values from the tooltip payload.
	if len(view.Bars) > 0 {
		metric := make([]opts.LineData, 0, len(view.Bars)*2)
		for _, b := range view.Bars {
			metric = append(metric,
				opts.LineData{Value: []interface{}{b.StartStation, b.Value}},
				opts.LineData{Value: []interface{}{b.EndStation, b.Value}},
			)
		}
		line.AddSeries("% change/100 ft", metric)
	}

	return line.Render(w)
}
