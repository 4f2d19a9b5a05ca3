package application

import (
	"testing"

	survey "pcm-survey/internal/survey/domain"
)

func ptr(v float64) *float64 { return &v }

func testPoints() []*survey.Point {
	var points []*survey.Point
	for i := 0; i < 10; i++ {
		station := float64(i * 10)
		current := 10.0 - float64(i)*0.5
		points = append(points, &survey.Point{
			Station: station,
			Current: ptr(current),
			Signal:  ptr(current),
			Kind:    survey.KindSignal,
			RouteID: "r1",
		})
	}
	return points
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("survey.xlsx", testPoints(), []string{"MEAS", "SIGNAL", "RID"}, survey.DefaultMetricConfig())
}

func selectAll(t *testing.T, s *Session) {
	t.Helper()
	res, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: -1, MaxStation: 1000, MinValue: -100, MaxValue: 100,
	}})
	if err != nil {
		t.Fatalf("select rectangle: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func createGroup(t *testing.T, s *Session, name string) *survey.Group {
	t.Helper()
	res, err := s.Apply(Command{Type: CmdCreateGroup, Name: name})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if res.Group == nil {
		t.Fatalf("create group returned no group: %+v", res)
	}
	return res.Group
}

func TestSingleRouteAutoSelected(t *testing.T) {
	s := newTestSession(t)
	snap := s.Snapshot()
	if snap.ActiveRoute != "r1" {
		t.Fatalf("single-route dataset should preselect its route, got %q", snap.ActiveRoute)
	}
}

func TestSelectRectangleAndCreateGroup(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: 0, MaxStation: 30, MinValue: -100, MaxValue: 100,
	}})
	if err != nil {
		t.Fatalf("select rectangle: %v", err)
	}
	if res.SelectedCount != 4 {
		t.Fatalf("expected 4 selected points, got %d", res.SelectedCount)
	}

	g := createGroup(t, s, "")
	if g.Name != "Group 1" {
		t.Fatalf("default name: want Group 1, got %q", g.Name)
	}
	if g.Color != survey.Palette[0] {
		t.Fatalf("first group should take the first palette color, got %q", g.Color)
	}
	if len(g.Stations) != 4 {
		t.Fatalf("group should own the 4 selected stations, got %v", g.Stations)
	}

	snap := s.Snapshot()
	if len(snap.Selection) != 0 {
		t.Fatalf("creating a group must clear the selection, got %v", snap.Selection)
	}
}

func TestGroupedPointsAreSkippedOnReselect(t *testing.T) {
	s := newTestSession(t)
	selectAll(t, s)
	createGroup(t, s, "first")

	res, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: -1, MaxStation: 1000, MinValue: -100, MaxValue: 100,
	}})
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if res.SelectedCount != 0 {
		t.Fatalf("grouped points must not enter the selection, got %d", res.SelectedCount)
	}
	if res.SkippedPoints != 10 {
		t.Fatalf("expected 10 skipped points, got %d", res.SkippedPoints)
	}

	res, err = s.Apply(Command{Type: CmdCreateGroup})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("empty selection should warn, got %+v", res)
	}
}

func TestSubtractModifierRemovesFromSelection(t *testing.T) {
	s := newTestSession(t)
	selectAll(t, s)

	res, err := s.Apply(Command{Type: CmdSelectRectangle, Subtract: true, Rect: &Rect{
		MinStation: 0, MaxStation: 30, MinValue: -100, MaxValue: 100,
	}})
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	if res.SelectedCount != 6 {
		t.Fatalf("expected 6 remaining after subtract, got %d", res.SelectedCount)
	}
}

func TestGroupDisjointness(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: 0, MaxStation: 40, MinValue: -100, MaxValue: 100,
	}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	first := createGroup(t, s, "first")

	// Overlap the first group's range; only the new stations may join.
	if _, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: 20, MaxStation: 70, MinValue: -100, MaxValue: 100,
	}}); err != nil {
		t.Fatalf("select overlap: %v", err)
	}
	second := createGroup(t, s, "second")

	owned := make(map[float64]string)
	for _, st := range first.Stations {
		owned[st] = first.ID
	}
	for _, st := range second.Stations {
		if prev, dup := owned[st]; dup {
			t.Fatalf("station %v owned by both %s and %s", st, prev, second.ID)
		}
	}
	if len(second.Stations) != 3 {
		t.Fatalf("second group should only own stations 50-70, got %v", second.Stations)
	}
	_ = res
}

func TestRenameGroupEmptyNameIsNoOp(t *testing.T) {
	s := newTestSession(t)
	selectAll(t, s)
	g := createGroup(t, s, "named")

	if _, err := s.Apply(Command{Type: CmdRenameGroup, GroupID: g.ID, Name: "   "}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	snap := s.Snapshot()
	if snap.Groups[0].Name != "named" {
		t.Fatalf("blank rename should keep the old name, got %q", snap.Groups[0].Name)
	}

	if _, err := s.Apply(Command{Type: CmdRenameGroup, GroupID: g.ID, Name: "renamed"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	snap = s.Snapshot()
	if snap.Groups[0].Name != "renamed" {
		t.Fatalf("rename should apply, got %q", snap.Groups[0].Name)
	}
}

func TestDeleteGroupReleasesPoints(t *testing.T) {
	s := newTestSession(t)
	selectAll(t, s)
	g := createGroup(t, s, "doomed")

	if _, err := s.Apply(Command{Type: CmdToggleMetricDisplay, GroupID: g.ID}); err != nil {
		t.Fatalf("toggle metric display: %v", err)
	}
	if _, err := s.Apply(Command{Type: CmdDeleteGroup, GroupID: g.ID}); err != nil {
		t.Fatalf("delete group: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Groups) != 0 {
		t.Fatalf("group should be gone, got %d", len(snap.Groups))
	}
	if len(snap.MetricDisplay) != 0 {
		t.Fatalf("deleting a group must evict its metric display entry")
	}
	for _, p := range snap.Points {
		if p.GroupID != "" {
			t.Fatalf("point %v still references deleted group %q", p.Station, p.GroupID)
		}
	}

	// Released points are selectable again.
	selectAll(t, s)
	snap = s.Snapshot()
	if len(snap.Selection) != 10 {
		t.Fatalf("released points should select, got %d", len(snap.Selection))
	}
}

func TestHideGroupEvictsMetricDisplay(t *testing.T) {
	s := newTestSession(t)
	selectAll(t, s)
	g := createGroup(t, s, "g")

	if _, err := s.Apply(Command{Type: CmdToggleMetricDisplay, GroupID: g.ID}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	visible := false
	if _, err := s.Apply(Command{Type: CmdSetGroupVisible, GroupID: g.ID, Visible: &visible}); err != nil {
		t.Fatalf("hide: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.MetricDisplay) != 0 {
		t.Fatalf("hiding a group must leave metric display, got %v", snap.MetricDisplay)
	}
}

func TestRemovePointGuardsGroupMembers(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{Type: CmdRemovePoint, Station: 20})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("ungrouped point should remove cleanly, got %v", res.Warnings)
	}

	selectAll(t, s)
	createGroup(t, s, "g")
	res, err = s.Apply(Command{Type: CmdRemovePoint, Station: 30})
	if err != nil {
		t.Fatalf("remove grouped: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("removing a group member should warn, got %+v", res)
	}
	snap := s.Snapshot()
	if snap.RemovedCount != 1 {
		t.Fatalf("removal ledger should hold 1 entry, got %d", snap.RemovedCount)
	}
}

func TestRemoveNearestWithinTolerance(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{
		Type: CmdRemoveNearest, Station: 21, Value: 9.1, StationTol: 5, ValueTol: 1,
	})
	if err != nil {
		t.Fatalf("remove nearest: %v", err)
	}
	if res.RemovedPoint == nil || *res.RemovedPoint != 20 {
		t.Fatalf("expected station 20 removed, got %+v", res.RemovedPoint)
	}

	res, err = s.Apply(Command{
		Type: CmdRemoveNearest, Station: 500, Value: 0, StationTol: 5, ValueTol: 1,
	})
	if err != nil {
		t.Fatalf("remove nearest miss: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("miss outside tolerance should warn, got %+v", res)
	}
}

func TestRemoveNearestSkipsPointsWithoutCurrent(t *testing.T) {
	points := []*survey.Point{
		{Station: 0, Current: ptr(10.0), Signal: ptr(10.0), Kind: survey.KindSignal, RouteID: "r1"},
		{Station: 10, Signal: ptr(9.0), Kind: survey.KindSignal, RouteID: "r1"},
		{Station: 20, Current: ptr(8.0), Signal: ptr(8.0), Kind: survey.KindSignal, RouteID: "r1"},
	}
	s := NewSession("mixed.csv", points, []string{"MEAS", "SIGNAL", "RID"}, survey.DefaultMetricConfig())

	// Station 10 has no current; on a current-displaying route it is not a
	// removal candidate, same as for rectangle selection.
	res, err := s.Apply(Command{
		Type: CmdRemoveNearest, Station: 10, Value: 9, StationTol: 4, ValueTol: 0.5,
	})
	if err != nil {
		t.Fatalf("remove nearest: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("valueless point should not match, got %+v", res)
	}
	if s.Snapshot().RemovedCount != 0 {
		t.Fatalf("nothing should have been removed")
	}
}

func TestRestoreAllRoundTrip(t *testing.T) {
	s := newTestSession(t)
	for _, st := range []float64{10, 30, 50} {
		if _, err := s.Apply(Command{Type: CmdRemovePoint, Station: st}); err != nil {
			t.Fatalf("remove %v: %v", st, err)
		}
	}
	snap := s.Snapshot()
	if snap.RemovedCount != 3 {
		t.Fatalf("expected 3 removed, got %d", snap.RemovedCount)
	}

	res, err := s.Apply(Command{Type: CmdRestoreAll})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.RestoredCount != 3 {
		t.Fatalf("expected 3 restored, got %d", res.RestoredCount)
	}
	snap = s.Snapshot()
	if snap.RemovedCount != 0 {
		t.Fatalf("ledger should be empty after restore, got %d", snap.RemovedCount)
	}
	for _, p := range snap.Points {
		if p.Removed {
			t.Fatalf("point %v still removed after restore", p.Station)
		}
	}
}

func TestRemovedPointsAreNotSelectable(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Apply(Command{Type: CmdRemovePoint, Station: 0}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	selectAll(t, s)
	snap := s.Snapshot()
	if len(snap.Selection) != 9 {
		t.Fatalf("removed point must not select, got %d", len(snap.Selection))
	}
}

func TestEditMembershipSkipsForeignStations(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: 0, MaxStation: 20, MinValue: -100, MaxValue: 100,
	}}); err != nil {
		t.Fatalf("select: %v", err)
	}
	first := createGroup(t, s, "first")

	if _, err := s.Apply(Command{Type: CmdSelectRectangle, Rect: &Rect{
		MinStation: 50, MaxStation: 70, MinValue: -100, MaxValue: 100,
	}}); err != nil {
		t.Fatalf("select: %v", err)
	}
	second := createGroup(t, s, "second")

	// Try to pull station 0 (owned by first) and station 90 (free) into second.
	res, err := s.Apply(Command{Type: CmdEditGroup, GroupID: second.ID, Stations: []float64{0, 50, 60, 70, 90}})
	if err != nil {
		t.Fatalf("edit group: %v", err)
	}
	if res.SkippedPoints != 1 {
		t.Fatalf("foreign station should be skipped, got %d", res.SkippedPoints)
	}
	snap := s.Snapshot()
	for i := range snap.Groups {
		g := &snap.Groups[i]
		if g.ID != second.ID {
			continue
		}
		if len(g.Stations) != 4 {
			t.Fatalf("second group should own 4 stations, got %v", g.Stations)
		}
		if g.Contains(0) {
			t.Fatalf("second group must not own first's station")
		}
	}
	_ = first
}

func TestUnknownRouteWarns(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{Type: CmdSelectRoute, RouteID: "missing"})
	if err != nil {
		t.Fatalf("select route: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("unknown route should warn, got %+v", res)
	}
}

func TestRouteSwitchClearsSelection(t *testing.T) {
	points := testPoints()
	for i := 5; i < 10; i++ {
		points[i].RouteID = "r2"
	}
	s := NewSession("two-routes.csv", points, []string{"MEAS", "SIGNAL", "RID"}, survey.DefaultMetricConfig())
	if snap := s.Snapshot(); snap.ActiveRoute != "" {
		t.Fatalf("multi-route dataset should start without an active route, got %q", snap.ActiveRoute)
	}

	if _, err := s.Apply(Command{Type: CmdSelectRoute, RouteID: "r1"}); err != nil {
		t.Fatalf("select r1: %v", err)
	}
	selectAll(t, s)
	if snap := s.Snapshot(); len(snap.Selection) != 5 {
		t.Fatalf("expected 5 selected on r1, got %d", len(snap.Selection))
	}

	if _, err := s.Apply(Command{Type: CmdSelectRoute, RouteID: "r2"}); err != nil {
		t.Fatalf("select r2: %v", err)
	}
	if snap := s.Snapshot(); len(snap.Selection) != 0 {
		t.Fatalf("route switch must clear the selection, got %v", snap.Selection)
	}
}

func TestRevisionAdvancesOnlyOnMutation(t *testing.T) {
	s := newTestSession(t)
	res, err := s.Apply(Command{Type: CmdClearSelection})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	first := res.Revision

	res, err = s.Apply(Command{Type: CmdRenameGroup, GroupID: "missing", Name: "x"})
	if err != nil {
		t.Fatalf("rename missing: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("missing group should warn")
	}
	if res.Revision != first {
		t.Fatalf("warned command must not advance the revision: %d -> %d", first, res.Revision)
	}
}

func TestZoomStatePerRoute(t *testing.T) {
	s := newTestSession(t)
	z := ZoomState{ValueMin: -10, ValueMax: 20, MetricMin: 0, MetricMax: 100}
	if _, err := s.Apply(Command{Type: CmdSetZoom, Zoom: &z}); err != nil {
		t.Fatalf("set zoom: %v", err)
	}
	snap := s.Snapshot()
	if snap.Zoom == nil || snap.Zoom.ValueMax != 20 {
		t.Fatalf("zoom should round-trip for the active route, got %+v", snap.Zoom)
	}
}

func TestUnknownCommandIsError(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Apply(Command{Type: "nonsense"}); err == nil {
		t.Fatalf("unknown command should error")
	}
}
