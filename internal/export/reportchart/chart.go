// Package reportchart renders a route's current profile as a PNG for
// embedding in PDF reports.
package reportchart

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	survey "pcm-survey/internal/survey/domain"
)

var lineColor = color.RGBA{R: 0x36, G: 0xA2, B: 0xEB, A: 255}

// parseHex turns a "#RRGGBB" palette entry into a drawable color. Bad input
// falls back to the base line color.
func parseHex(hex string) color.Color {
	if len(hex) != 7 || hex[0] != '#' {
		return lineColor
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return lineColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// Render draws the route profile: the current (or signal) series as a line,
// each visible group's members as colored scatter markers on top. Returns
// PNG bytes sized for an A4 landscape report section.
func Render(routeID string, points []*survey.Point, groups []*survey.Group) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Route %s", routeID)
	p.X.Label.Text = "Station (ft)"
	if survey.AnyCurrentDefined(points) {
		p.Y.Label.Text = "Current (dBmA)"
	} else {
		p.Y.Label.Text = "Signal"
	}

	useCurrent := survey.AnyCurrentDefined(points)
	value := func(pt *survey.Point) (float64, bool) {
		if useCurrent {
			if pt.Current == nil {
				return 0, false
			}
			return *pt.Current, true
		}
		return pt.MetricValue()
	}

	series := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if pt.Removed {
			continue
		}
		if v, ok := value(pt); ok {
			series = append(series, plotter.XY{X: pt.Station, Y: v})
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("reportchart: route %s has no drawable points", routeID)
	}

	line, err := plotter.NewLine(series)
	if err != nil {
		return nil, fmt.Errorf("reportchart: build line: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1)
	p.Add(line)

	for _, g := range groups {
		if !g.Visible {
			continue
		}
		pts := make(plotter.XYs, 0, len(g.Stations))
		for _, member := range g.Points(points) {
			if member.Removed {
				continue
			}
			if v, ok := value(member); ok {
				pts = append(pts, plotter.XY{X: member.Station, Y: v})
			}
		}
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("reportchart: build scatter for %s: %w", g.Name, err)
		}
		scatter.GlyphStyle.Color = parseHex(g.Color)
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(scatter)
		p.Legend.Add(g.Name, scatter)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("reportchart: render: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("reportchart: write png: %w", err)
	}
	return buf.Bytes(), nil
}
