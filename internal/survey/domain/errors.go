package survey

import "errors"

var (
	// ErrEmptySelection is returned when a group is created from an empty selection.
	ErrEmptySelection = errors.New("survey: empty selection")
	// ErrNoActiveRoute is returned when an operation requires a selected route.
	ErrNoActiveRoute = errors.New("survey: no active route")
	// ErrAllPointsAlreadyGrouped is returned when every selected point is owned by a group.
	ErrAllPointsAlreadyGrouped = errors.New("survey: all selected points already grouped")
	// ErrGroupNotFound is returned when a group id is unknown.
	ErrGroupNotFound = errors.New("survey: group not found")
	// ErrPointBelongsToGroup is returned when removing a grouped point.
	ErrPointBelongsToGroup = errors.New("survey: point belongs to a group")
	// ErrPointNotFound is returned when no point matches the requested station.
	ErrPointNotFound = errors.New("survey: point not found")
	// ErrEmptyRoute is returned when a route filter matches no points.
	ErrEmptyRoute = errors.New("survey: route has no points")
	// ErrUnknownRoute is returned when a route id is not present in the dataset.
	ErrUnknownRoute = errors.New("survey: unknown route")
)
