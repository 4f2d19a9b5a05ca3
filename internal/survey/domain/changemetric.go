package survey

import "math"

// MetricConfig carries the numeric policy for percent-change calculations.
type MetricConfig struct {
	// MinDistance is the minimum station separation for a pair to count.
	MinDistance float64
	// MinDenominator guards against near-zero division.
	MinDenominator float64
	// DisplayCap bounds the reported PercentChange; ActualPercentChange is
	// never capped.
	DisplayCap float64
}

// DefaultMetricConfig mirrors the survey tool's shipped thresholds.
func DefaultMetricConfig() MetricConfig {
	return MetricConfig{
		MinDistance:    0.1,
		MinDenominator: 0.0001,
		DisplayCap:     100,
	}
}

// ChangeMetric is one computed percent-change-per-100-units result, attached
// to the later station of the pair that produced it.
type ChangeMetric struct {
	Station             float64 `json:"station"`
	PercentChange       float64 `json:"percentChange"`
	ActualPercentChange float64 `json:"actualPercentChange"`
	RouteID             string  `json:"routeId,omitempty"`
	GroupID             string  `json:"groupId,omitempty"`
	GroupName           string  `json:"groupName,omitempty"`
	ReferenceStation    float64 `json:"referenceStation"`
	Distance            float64 `json:"distance"`
}

// GroupRate is the single rate computed for a whole group, rendered as one
// continuous bar spanning the group's station range.
type GroupRate struct {
	ChangeMetric
	StartStation float64 `json:"startStation"`
	EndStation   float64 `json:"endStation"`
}

// Transition is the rate between the trailing edge of one group and the
// leading edge of the next; it is owned by neither group.
type Transition struct {
	ChangeMetric
	FromGroupID   string  `json:"fromGroupId"`
	FromGroupName string  `json:"fromGroupName"`
	NextGroupID   string  `json:"nextGroupId"`
	NextGroupName string  `json:"nextGroupName"`
	StartStation  float64 `json:"startStation"`
	EndStation    float64 `json:"endStation"`
}

// percentPer100 computes the normalized rate between two values a given
// distance apart. divisor selects the denominator of the ratio: the two
// calculation modes disagree on which endpoint divides, and both behaviors
// are preserved on purpose (flagged for product clarification).
func percentPer100(refValue, otherValue, divisor, distance float64, cfg MetricConfig) (actual, capped float64, ok bool) {
	if distance < cfg.MinDistance {
		return 0, 0, false
	}
	if math.Abs(divisor) < cfg.MinDenominator {
		return 0, 0, false
	}
	percent := math.Abs((refValue-otherValue)/divisor) * 100
	actual = percent * 100 / distance
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return 0, 0, false
	}
	capped = actual
	if cfg.DisplayCap > 0 && capped > cfg.DisplayCap {
		capped = cfg.DisplayCap
	}
	return actual, capped, true
}

// PairwiseChanges computes Mode A: one metric per consecutive station pair of
// an ungrouped route. points must be station-sorted and pre-filtered for
// removal; pairs where either value is missing or near zero, or a guard
// fails, emit nothing. The ratio divides by the later point's value.
func PairwiseChanges(points []*Point, cfg MetricConfig) []ChangeMetric {
	var out []ChangeMetric
	var prev *Point
	var prevValue float64
	for _, p := range points {
		value, valued := p.MetricValue()
		if !valued {
			continue
		}
		if prev != nil && math.Abs(prevValue) >= cfg.MinDenominator {
			distance := math.Abs(p.Station - prev.Station)
			actual, capped, ok := percentPer100(prevValue, value, value, distance, cfg)
			if ok {
				out = append(out, ChangeMetric{
					Station:             p.Station,
					PercentChange:       capped,
					ActualPercentChange: actual,
					RouteID:             p.RouteID,
					ReferenceStation:    prev.Station,
					Distance:            distance,
				})
			}
		}
		prev = p
		prevValue = value
	}
	return out
}

// GroupSpanChange computes Mode B: the single rate for a group, derived from
// its first and last member by station. The ratio divides by the reference
// (earlier) point's value. ok is false when the group has fewer than two
// valued members or a guard trips.
func GroupSpanChange(g *Group, members []*Point, cfg MetricConfig) (GroupRate, bool) {
	valued := make([]*Point, 0, len(members))
	for _, p := range members {
		if _, has := p.MetricValue(); has {
			valued = append(valued, p)
		}
	}
	if len(valued) < 2 {
		return GroupRate{}, false
	}
	first := valued[0]
	last := valued[len(valued)-1]
	refValue, _ := first.MetricValue()
	endValue, _ := last.MetricValue()
	distance := math.Abs(last.Station - first.Station)
	actual, capped, ok := percentPer100(refValue, endValue, refValue, distance, cfg)
	if !ok {
		return GroupRate{}, false
	}
	return GroupRate{
		ChangeMetric: ChangeMetric{
			Station:             last.Station,
			PercentChange:       capped,
			ActualPercentChange: actual,
			RouteID:             g.RouteID,
			GroupID:             g.ID,
			GroupName:           g.Name,
			ReferenceStation:    first.Station,
			Distance:            distance,
		},
		StartStation: first.Station,
		EndStation:   last.Station,
	}, true
}

// SpreadGroupRate applies a group's single rate to every non-reference
// member, which is how the uniform value reaches per-point export rows.
func SpreadGroupRate(rate GroupRate, members []*Point) []ChangeMetric {
	out := make([]ChangeMetric, 0, len(members))
	for _, p := range members {
		if p.Station == rate.ReferenceStation {
			continue
		}
		m := rate.ChangeMetric
		m.Station = p.Station
		m.Distance = math.Abs(p.Station - rate.ReferenceStation)
		out = append(out, m)
	}
	return out
}

// TransitionChanges computes Mode C: one metric per adjacent pair of visible
// groups on a route, from the last point of the earlier group to the first
// point of the later one. The ratio divides by the earlier (reference)
// point's value. groups must belong to one route; route must be
// station-sorted.
func TransitionChanges(groups []*Group, route []*Point, cfg MetricConfig) []Transition {
	visible := make([]*Group, 0, len(groups))
	for _, g := range groups {
		if g.Visible && len(g.Stations) > 0 {
			visible = append(visible, g)
		}
	}
	if len(visible) < 2 {
		return nil
	}
	sorted := SortGroupsByStart(visible)

	var out []Transition
	for i := 0; i < len(sorted)-1; i++ {
		from, next := sorted[i], sorted[i+1]
		fromPoints := from.Points(route)
		nextPoints := next.Points(route)
		if len(fromPoints) == 0 || len(nextPoints) == 0 {
			continue
		}
		tail := fromPoints[len(fromPoints)-1]
		head := nextPoints[0]
		refValue, refOK := tail.MetricValue()
		headValue, headOK := head.MetricValue()
		if !refOK || !headOK {
			continue
		}
		distance := math.Abs(head.Station - tail.Station)
		actual, capped, ok := percentPer100(refValue, headValue, refValue, distance, cfg)
		if !ok {
			continue
		}
		out = append(out, Transition{
			ChangeMetric: ChangeMetric{
				Station:             tail.Station,
				PercentChange:       capped,
				ActualPercentChange: actual,
				RouteID:             from.RouteID,
				ReferenceStation:    tail.Station,
				Distance:            distance,
			},
			FromGroupID:   from.ID,
			FromGroupName: from.Name,
			NextGroupID:   next.ID,
			NextGroupName: next.Name,
			StartStation:  tail.Station,
			EndStation:    head.Station,
		})
	}
	return out
}
