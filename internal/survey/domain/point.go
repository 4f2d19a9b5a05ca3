package survey

import (
	"math"
	"sort"
	"strings"
)

// PointKind classifies a survey point by its source row type.
type PointKind string

const (
	KindSignal        PointKind = "SIGNAL"
	KindPointGeneric  PointKind = "POINT GENERIC"
	KindSetupLocation PointKind = "SETUP LOCATION"
	KindOther         PointKind = "OTHER"
)

// ParsePointKind maps a raw point-type cell to a PointKind.
func ParsePointKind(raw string) PointKind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SIGNAL":
		return KindSignal
	case "POINT GENERIC", "POINTGENERIC":
		return KindPointGeneric
	case "SETUP LOCATION", "SETUPLOCATION":
		return KindSetupLocation
	default:
		return KindOther
	}
}

// SentinelCurrent is the current value assigned when the signal is zero or
// negative and the logarithm is undefined.
const SentinelCurrent = -60.0

// Coordinates is an optional geographic position for a point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point is one parsed measurement. Station is the sort key within a route.
// Current, Removed and GroupID are the only fields mutated after import.
type Point struct {
	Station   float64
	Signal    *float64
	Current   *float64
	Kind      PointKind
	RouteID   string
	Coords    *Coordinates
	CreatedOn string
	Removed   bool
	GroupID   string

	// Extra holds unrecognized source columns verbatim, round-tripped into
	// every export.
	Extra map[string]any
}

// DeriveCurrent computes the dB transform of a signal value.
func DeriveCurrent(signal float64) float64 {
	if signal > 0 {
		return 20 * math.Log10(signal)
	}
	return SentinelCurrent
}

// MetricValue returns the value used for display and metric computation:
// current when defined, the raw signal otherwise.
func (p *Point) MetricValue() (float64, bool) {
	if p.Current != nil {
		return *p.Current, true
	}
	if p.Signal != nil {
		return *p.Signal, true
	}
	return 0, false
}

// HasCoords reports whether the point carries a geographic position.
func (p *Point) HasCoords() bool {
	return p.Coords != nil
}

// SortByStation orders points ascending by station in place.
func SortByStation(points []*Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Station < points[j].Station
	})
}

// FilterRoute returns the points belonging to routeID, preserving order.
func FilterRoute(points []*Point, routeID string) []*Point {
	out := make([]*Point, 0, len(points))
	for _, p := range points {
		if p.RouteID == routeID {
			out = append(out, p)
		}
	}
	return out
}

// RouteIDs returns the distinct route identifiers in first-seen order.
func RouteIDs(points []*Point) []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, p := range points {
		if p.RouteID == "" || seen[p.RouteID] {
			continue
		}
		seen[p.RouteID] = true
		out = append(out, p.RouteID)
	}
	return out
}

// AnyCurrentDefined reports whether any point in the set has a derived
// current value. It decides the display field for selection and charts.
func AnyCurrentDefined(points []*Point) bool {
	for _, p := range points {
		if p.Current != nil {
			return true
		}
	}
	return false
}
