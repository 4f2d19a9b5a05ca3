package survey

import (
	"sort"
	"time"
)

// Palette is the fixed group color rotation. Colors are assigned round-robin
// by the number of groups already present on the route.
var Palette = []string{
	"#FF6384", "#FFCE56", "#4BC0C0", "#9966FF",
	"#FF9F40", "#8AC54B", "#F2545B", "#E83E8C", "#DC3545", "#FD7E14",
}

// PaletteColor returns the color for the n-th group of a route.
func PaletteColor(existing int) string {
	if existing < 0 {
		existing = 0
	}
	return Palette[existing%len(Palette)]
}

// Group is a named, route-scoped partition cell. Membership is recorded as
// the owned stations, sorted ascending; the owning session keeps each member
// point's GroupID in step so the disjointness invariant is checkable from
// either side.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	RouteID   string    `json:"routeId"`
	Stations  []float64 `json:"stations"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports membership by station.
func (g *Group) Contains(station float64) bool {
	for _, s := range g.Stations {
		if s == station {
			return true
		}
	}
	return false
}

// SetStations replaces the membership, deduplicated and sorted by station.
func (g *Group) SetStations(stations []float64) {
	sort.Float64s(stations)
	out := stations[:0]
	for i, s := range stations {
		if i > 0 && s == stations[i-1] {
			continue
		}
		out = append(out, s)
	}
	g.Stations = out
}

// Span returns the group's station range. ok is false for empty groups.
func (g *Group) Span() (first, last float64, ok bool) {
	if len(g.Stations) == 0 {
		return 0, 0, false
	}
	return g.Stations[0], g.Stations[len(g.Stations)-1], true
}

// Points resolves the member points in station order out of the route set.
func (g *Group) Points(route []*Point) []*Point {
	out := make([]*Point, 0, len(g.Stations))
	for _, p := range route {
		if p.GroupID == g.ID {
			out = append(out, p)
		}
	}
	return out
}

// SortGroupsByStart orders groups by their minimum station, ascending.
// Empty groups sort last.
func SortGroupsByStart(groups []*Group) []*Group {
	sorted := append([]*Group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, _, oki := sorted[i].Span()
		fj, _, okj := sorted[j].Span()
		if oki != okj {
			return oki
		}
		return fi < fj
	})
	return sorted
}
