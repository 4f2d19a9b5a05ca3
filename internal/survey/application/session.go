package application

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	survey "pcm-survey/internal/survey/domain"
)

// ZoomState caches axis ranges for one route so switching back restores the
// previous viewport.
type ZoomState struct {
	ValueMin  float64 `json:"valueMin"`
	ValueMax  float64 `json:"valueMax"`
	MetricMin float64 `json:"metricMin"`
	MetricMax float64 `json:"metricMax"`
}

// Session owns the in-memory state for one uploaded dataset: the point set,
// the active route, the transient selection, the group registry, the removal
// ledger and the per-route zoom cache. All mutation goes through Apply, which
// holds the lock for the whole command so no caller observes a partial
// update.
type Session struct {
	mu sync.Mutex

	id         string
	sourceName string
	createdAt  time.Time
	metricCfg  survey.MetricConfig

	columns []string
	points  []*survey.Point
	routes  []string

	activeRoute   string
	selection     []float64
	selected      map[float64]bool
	groups        []*survey.Group
	metricDisplay map[string]bool
	removedOrder  []float64
	zoom          map[string]ZoomState
	revision      int
}

// NewSession builds a session from parsed points. Points are sorted by
// station; a dataset with exactly one route gets it preselected.
func NewSession(sourceName string, points []*survey.Point, columns []string, cfg survey.MetricConfig) *Session {
	survey.SortByStation(points)
	s := &Session{
		id:            uuid.NewString(),
		sourceName:    sourceName,
		createdAt:     time.Now().UTC(),
		metricCfg:     cfg,
		columns:       append([]string(nil), columns...),
		points:        points,
		routes:        survey.RouteIDs(points),
		selected:      make(map[float64]bool),
		metricDisplay: make(map[string]bool),
		zoom:          make(map[string]ZoomState),
	}
	if len(s.routes) == 1 {
		s.activeRoute = s.routes[0]
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot is an immutable copy of session state handed to projections and
// exports.
type Snapshot struct {
	DatasetID   string
	SourceName  string
	CreatedAt   time.Time
	Columns     []string
	Routes      []string
	ActiveRoute string

	Points        []survey.Point
	Groups        []survey.Group
	Selection     []float64
	MetricDisplay []string
	RemovedCount  int
	Revision      int
	Zoom          *ZoomState
	MetricConfig  survey.MetricConfig
}

// Snapshot copies the current state under the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		DatasetID:    s.id,
		SourceName:   s.sourceName,
		CreatedAt:    s.createdAt,
		Columns:      append([]string(nil), s.columns...),
		Routes:       append([]string(nil), s.routes...),
		ActiveRoute:  s.activeRoute,
		Selection:    append([]float64(nil), s.selection...),
		RemovedCount: len(s.removedOrder),
		Revision:     s.revision,
		MetricConfig: s.metricCfg,
	}
	snap.Points = make([]survey.Point, len(s.points))
	for i, p := range s.points {
		snap.Points[i] = *p
	}
	snap.Groups = make([]survey.Group, len(s.groups))
	for i, g := range s.groups {
		snap.Groups[i] = *g
		snap.Groups[i].Stations = append([]float64(nil), g.Stations...)
	}
	for id := range s.metricDisplay {
		snap.MetricDisplay = append(snap.MetricDisplay, id)
	}
	sort.Strings(snap.MetricDisplay)
	if z, ok := s.zoom[s.activeRoute]; ok {
		zoom := z
		snap.Zoom = &zoom
	}
	return snap
}

// ActivePoints returns the station-sorted points of the snapshot's active
// route; with no route selected it returns nothing.
func (snap *Snapshot) ActivePoints() []*survey.Point {
	if snap.ActiveRoute == "" {
		return nil
	}
	out := make([]*survey.Point, 0, len(snap.Points))
	for i := range snap.Points {
		if snap.Points[i].RouteID == snap.ActiveRoute {
			out = append(out, &snap.Points[i])
		}
	}
	return out
}

// RouteGroups returns the snapshot groups scoped to a route.
func (snap *Snapshot) RouteGroups(routeID string) []*survey.Group {
	out := make([]*survey.Group, 0, len(snap.Groups))
	for i := range snap.Groups {
		if snap.Groups[i].RouteID == routeID {
			out = append(out, &snap.Groups[i])
		}
	}
	return out
}

// MetricDisplayed reports whether a group is toggled into metric display.
func (snap *Snapshot) MetricDisplayed(groupID string) bool {
	for _, id := range snap.MetricDisplay {
		if id == groupID {
			return true
		}
	}
	return false
}

// ---- route partition ----

func (s *Session) selectRoute(routeID string) error {
	known := false
	for _, r := range s.routes {
		if r == routeID {
			known = true
			break
		}
	}
	if !known {
		return survey.ErrUnknownRoute
	}
	if len(survey.FilterRoute(s.points, routeID)) == 0 {
		return survey.ErrEmptyRoute
	}
	s.activeRoute = routeID
	s.clearSelection()
	return nil
}

// ---- selection ----

func (s *Session) clearSelection() {
	s.selection = nil
	s.selected = make(map[float64]bool)
}

func (s *Session) activePoints() []*survey.Point {
	if s.activeRoute == "" {
		return nil
	}
	return survey.FilterRoute(s.points, s.activeRoute)
}

func (s *Session) ownerOf(station float64, routeID string) *survey.Group {
	for _, g := range s.groups {
		if g.RouteID == routeID && g.Contains(station) {
			return g
		}
	}
	return nil
}

// selectRectangle gathers the active route's non-removed points inside the
// closed rectangle. Without the modifier the matches are unioned into the
// selection (group-owned points skipped and counted); with the modifier the
// matches are subtracted from it.
func (s *Session) selectRectangle(rect Rect, subtract bool) (added, skipped int, err error) {
	if s.activeRoute == "" {
		return 0, 0, survey.ErrNoActiveRoute
	}
	route := s.activePoints()
	useCurrent := survey.AnyCurrentDefined(route)

	var matches []*survey.Point
	for _, p := range route {
		if p.Removed {
			continue
		}
		var value float64
		var ok bool
		if useCurrent {
			if p.Current == nil {
				continue
			}
			value = *p.Current
			ok = true
		} else {
			value, ok = p.MetricValue()
		}
		if !ok {
			continue
		}
		if p.Station >= rect.MinStation && p.Station <= rect.MaxStation &&
			value >= rect.MinValue && value <= rect.MaxValue {
			matches = append(matches, p)
		}
	}

	if subtract {
		for _, p := range matches {
			if s.selected[p.Station] {
				delete(s.selected, p.Station)
			}
		}
		kept := s.selection[:0]
		for _, st := range s.selection {
			if s.selected[st] {
				kept = append(kept, st)
			}
		}
		s.selection = kept
		return 0, 0, nil
	}

	for _, p := range matches {
		if s.ownerOf(p.Station, s.activeRoute) != nil {
			skipped++
			continue
		}
		if s.selected[p.Station] {
			continue
		}
		s.selected[p.Station] = true
		s.selection = append(s.selection, p.Station)
		added++
	}
	return added, skipped, nil
}

// ---- group registry ----

func (s *Session) routeGroupCount(routeID string) int {
	n := 0
	for _, g := range s.groups {
		if g.RouteID == routeID {
			n++
		}
	}
	return n
}

func (s *Session) groupByID(id string) *survey.Group {
	for _, g := range s.groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (s *Session) createGroup(name string) (*survey.Group, int, error) {
	if s.activeRoute == "" {
		return nil, 0, survey.ErrNoActiveRoute
	}
	if len(s.selection) == 0 {
		return nil, 0, survey.ErrEmptySelection
	}

	skipped := 0
	stations := make([]float64, 0, len(s.selection))
	for _, st := range s.selection {
		if s.ownerOf(st, s.activeRoute) != nil {
			skipped++
			continue
		}
		stations = append(stations, st)
	}
	if len(stations) == 0 {
		return nil, skipped, survey.ErrAllPointsAlreadyGrouped
	}

	existing := s.routeGroupCount(s.activeRoute)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Group %d", existing+1)
	}
	group := &survey.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     survey.PaletteColor(existing),
		RouteID:   s.activeRoute,
		Visible:   true,
		CreatedAt: time.Now().UTC(),
	}
	group.SetStations(stations)

	for _, p := range s.activePoints() {
		if group.Contains(p.Station) {
			p.GroupID = group.ID
		}
	}
	s.groups = append(s.groups, group)
	s.clearSelection()
	return group, skipped, nil
}

func (s *Session) renameGroup(id, name string) error {
	g := s.groupByID(id)
	if g == nil {
		return survey.ErrGroupNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	g.Name = name
	return nil
}

func (s *Session) deleteGroup(id string) error {
	idx := -1
	for i, g := range s.groups {
		if g.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return survey.ErrGroupNotFound
	}
	for _, p := range s.points {
		if p.GroupID == id {
			p.GroupID = ""
		}
	}
	delete(s.metricDisplay, id)
	s.groups = append(s.groups[:idx], s.groups[idx+1:]...)
	return nil
}

func (s *Session) setGroupVisible(id string, visible bool) error {
	g := s.groupByID(id)
	if g == nil {
		return survey.ErrGroupNotFound
	}
	g.Visible = visible
	if !visible {
		delete(s.metricDisplay, id)
	}
	return nil
}

// editMembership replaces a group's point set. Stations owned by a different
// group of the same route are skipped and counted, mirroring createGroup's
// ownership check; stations not present on the route are dropped.
func (s *Session) editMembership(id string, stations []float64) (skipped int, err error) {
	g := s.groupByID(id)
	if g == nil {
		return 0, survey.ErrGroupNotFound
	}
	route := survey.FilterRoute(s.points, g.RouteID)
	onRoute := make(map[float64]bool, len(route))
	for _, p := range route {
		onRoute[p.Station] = true
	}

	accepted := make([]float64, 0, len(stations))
	for _, st := range stations {
		if !onRoute[st] {
			continue
		}
		if owner := s.ownerOf(st, g.RouteID); owner != nil && owner.ID != g.ID {
			skipped++
			continue
		}
		accepted = append(accepted, st)
	}

	for _, p := range route {
		if p.GroupID == g.ID {
			p.GroupID = ""
		}
	}
	g.SetStations(accepted)
	for _, p := range route {
		if g.Contains(p.Station) {
			p.GroupID = g.ID
		}
	}
	s.clearSelection()
	return skipped, nil
}

func (s *Session) toggleMetricDisplay(id string, on bool) error {
	g := s.groupByID(id)
	if g == nil {
		return survey.ErrGroupNotFound
	}
	if on {
		s.metricDisplay[id] = true
	} else {
		delete(s.metricDisplay, id)
	}
	return nil
}

// ---- removal ledger ----

func (s *Session) findPoint(station float64) *survey.Point {
	for _, p := range s.activePoints() {
		if p.Station == station {
			return p
		}
	}
	return nil
}

func (s *Session) removePoint(station float64) error {
	p := s.findPoint(station)
	if p == nil {
		return survey.ErrPointNotFound
	}
	if p.GroupID != "" {
		return survey.ErrPointBelongsToGroup
	}
	if p.Removed {
		return nil
	}
	p.Removed = true
	s.removedOrder = append(s.removedOrder, p.Station)
	if s.selected[p.Station] {
		delete(s.selected, p.Station)
		kept := s.selection[:0]
		for _, st := range s.selection {
			if st != p.Station {
				kept = append(kept, st)
			}
		}
		s.selection = kept
	}
	return nil
}

// removeNearest resolves the closest non-removed point to a clicked
// (station, value) position, within per-axis tolerances, and removes it.
func (s *Session) removeNearest(station, value, stationTol, valueTol float64) (*survey.Point, error) {
	route := s.activePoints()
	if len(route) == 0 {
		return nil, survey.ErrNoActiveRoute
	}
	useCurrent := survey.AnyCurrentDefined(route)

	var closest *survey.Point
	best := math.Inf(1)
	for _, p := range route {
		if p.Removed {
			continue
		}
		var pv float64
		var ok bool
		if useCurrent {
			if p.Current == nil {
				continue
			}
			pv, ok = *p.Current, true
		} else {
			pv, ok = p.MetricValue()
		}
		if !ok {
			continue
		}
		dx := math.Abs(p.Station - station)
		dy := math.Abs(pv - value)
		if dx > stationTol || dy > valueTol {
			continue
		}
		if d := math.Hypot(dx, dy); d < best {
			best = d
			closest = p
		}
	}
	if closest == nil {
		return nil, survey.ErrPointNotFound
	}
	if err := s.removePoint(closest.Station); err != nil {
		return nil, err
	}
	return closest, nil
}

func (s *Session) restoreAll() int {
	restored := 0
	for _, st := range s.removedOrder {
		for _, p := range s.points {
			if p.Station == st && p.Removed {
				p.Removed = false
				restored++
				break
			}
		}
	}
	s.removedOrder = nil
	return restored
}

func (s *Session) setZoom(routeID string, z ZoomState) error {
	if routeID == "" {
		routeID = s.activeRoute
	}
	if routeID == "" {
		return survey.ErrNoActiveRoute
	}
	s.zoom[routeID] = z
	return nil
}
