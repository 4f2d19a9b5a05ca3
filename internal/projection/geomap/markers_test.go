package geomap

import (
	"math"
	"testing"

	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

func ptr(v float64) *float64 { return &v }

func TestBuildMap(t *testing.T) {
	points := []*survey.Point{
		{Station: 0, Current: ptr(10.0), Kind: survey.KindSignal, RouteID: "r1",
			Coords: &survey.Coordinates{Latitude: 41.80, Longitude: -87.60}},
		{Station: 10, Current: ptr(9.0), Kind: survey.KindSetupLocation, RouteID: "r1",
			Coords: &survey.Coordinates{Latitude: 41.90, Longitude: -87.50}},
		{Station: 20, Current: ptr(8.0), Kind: survey.KindSignal, RouteID: "r1"},
	}
	s := application.NewSession("geo.csv", points, []string{"MEAS", "SIGNAL", "X", "Y", "RID"}, survey.DefaultMetricConfig())
	snap := s.Snapshot()

	m := BuildMap(&snap)
	if len(m.Markers) != 2 {
		t.Fatalf("points without coordinates should be skipped, got %d markers", len(m.Markers))
	}
	if m.Markers[0].Style != StyleReading || m.Markers[1].Style != StyleSetup {
		t.Fatalf("marker styles should follow the point kind: %+v", m.Markers)
	}
	if m.Viewport == nil {
		t.Fatalf("viewport expected")
	}
	if math.Abs(m.Viewport.MinLatitude-41.80) > 1e-6 || math.Abs(m.Viewport.MaxLatitude-41.90) > 1e-6 {
		t.Fatalf("latitude bounds mismatch: %+v", m.Viewport)
	}
	if math.Abs(m.Viewport.CenterLat-41.85) > 1e-3 {
		t.Fatalf("center latitude mismatch: %+v", m.Viewport)
	}
}

func TestBuildMapSkipsRemovedPoints(t *testing.T) {
	points := []*survey.Point{
		{Station: 0, Current: ptr(10.0), Kind: survey.KindSignal, RouteID: "r1",
			Coords: &survey.Coordinates{Latitude: 41.80, Longitude: -87.60}},
		{Station: 10, Current: ptr(9.0), Kind: survey.KindSignal, RouteID: "r1",
			Coords: &survey.Coordinates{Latitude: 41.90, Longitude: -87.50}},
	}
	s := application.NewSession("geo.csv", points, []string{"MEAS", "SIGNAL", "X", "Y", "RID"}, survey.DefaultMetricConfig())
	if _, err := s.Apply(application.Command{Type: application.CmdRemovePoint, Station: 10}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snap := s.Snapshot()
	m := BuildMap(&snap)
	if len(m.Markers) != 1 || m.Markers[0].Station != 0 {
		t.Fatalf("removed point should not produce a marker, got %+v", m.Markers)
	}
}

func TestBuildMapNoCoordinates(t *testing.T) {
	points := []*survey.Point{
		{Station: 0, Current: ptr(10.0), Kind: survey.KindSignal, RouteID: "r1"},
	}
	s := application.NewSession("flat.csv", points, []string{"MEAS", "SIGNAL", "RID"}, survey.DefaultMetricConfig())
	snap := s.Snapshot()
	m := BuildMap(&snap)
	if len(m.Markers) != 0 || m.Viewport != nil {
		t.Fatalf("dataset without coordinates should produce an empty map, got %+v", m)
	}
}
