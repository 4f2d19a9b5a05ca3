// Package geomap projects survey points with coordinates into map markers
// and a fitted viewport.
package geomap

import (
	"github.com/golang/geo/s2"

	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

// Marker styling follows the point kind: signal readings draw as small
// circles, setup locations and generic points as distinct pins.
const (
	StyleReading = "reading"
	StylePin     = "pin"
	StyleSetup   = "setup"
)

// Marker is one plottable survey location.
type Marker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Station   float64 `json:"station"`
	Kind      string  `json:"kind"`
	Style     string  `json:"style"`
	Color     string  `json:"color,omitempty"`
	GroupName string  `json:"groupName,omitempty"`
}

// Viewport is the bounding box that fits every marker, with its center.
type Viewport struct {
	MinLatitude  float64 `json:"minLatitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
	MinLongitude float64 `json:"minLongitude"`
	MaxLongitude float64 `json:"maxLongitude"`
	CenterLat    float64 `json:"centerLat"`
	CenterLng    float64 `json:"centerLng"`
}

// Map is the map read model for one route.
type Map struct {
	RouteID  string    `json:"routeId"`
	Markers  []Marker  `json:"markers"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

func styleFor(kind survey.PointKind) string {
	switch kind {
	case survey.KindSignal:
		return StyleReading
	case survey.KindSetupLocation:
		return StyleSetup
	default:
		return StylePin
	}
}

// BuildMap projects the snapshot's active route onto the map. Points with no
// coordinates and removed points are skipped.
func BuildMap(snap *application.Snapshot) Map {
	m := Map{RouteID: snap.ActiveRoute}
	route := snap.ActivePoints()
	if len(route) == 0 {
		return m
	}
	groups := snap.RouteGroups(snap.ActiveRoute)
	groupName := make(map[string]string, len(groups))
	groupColor := make(map[string]string, len(groups))
	for _, g := range groups {
		groupName[g.ID] = g.Name
		groupColor[g.ID] = g.Color
	}

	rect := s2.EmptyRect()
	for _, p := range route {
		if p.Removed || !p.HasCoords() {
			continue
		}
		marker := Marker{
			Latitude:  p.Coords.Latitude,
			Longitude: p.Coords.Longitude,
			Station:   p.Station,
			Kind:      string(p.Kind),
			Style:     styleFor(p.Kind),
		}
		if p.GroupID != "" {
			marker.GroupName = groupName[p.GroupID]
			marker.Color = groupColor[p.GroupID]
		}
		m.Markers = append(m.Markers, marker)
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Coords.Latitude, p.Coords.Longitude))
	}
	if len(m.Markers) == 0 {
		return m
	}

	lo, hi, center := rect.Lo(), rect.Hi(), rect.Center()
	m.Viewport = &Viewport{
		MinLatitude:  lo.Lat.Degrees(),
		MaxLatitude:  hi.Lat.Degrees(),
		MinLongitude: lo.Lng.Degrees(),
		MaxLongitude: hi.Lng.Degrees(),
		CenterLat:    center.Lat.Degrees(),
		CenterLng:    center.Lng.Degrees(),
	}
	return m
}
