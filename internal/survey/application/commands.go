package application

import (
	"errors"
	"fmt"

	survey "pcm-survey/internal/survey/domain"
)

// Command types accepted by Session.Apply.
const (
	CmdSelectRoute         = "select_route"
	CmdSelectRectangle     = "select_rect"
	CmdClearSelection      = "clear_selection"
	CmdCreateGroup         = "create_group"
	CmdRenameGroup         = "rename_group"
	CmdDeleteGroup         = "delete_group"
	CmdSetGroupVisible     = "set_group_visible"
	CmdEditGroup           = "edit_group"
	CmdToggleMetricDisplay = "toggle_metric_display"
	CmdRemovePoint         = "remove_point"
	CmdRemoveNearest       = "remove_nearest"
	CmdRestoreAll          = "restore_all"
	CmdSetZoom             = "set_zoom"
)

// Rect is a closed selection rectangle in chart coordinates.
type Rect struct {
	MinStation float64 `json:"minStation"`
	MaxStation float64 `json:"maxStation"`
	MinValue   float64 `json:"minValue"`
	MaxValue   float64 `json:"maxValue"`
}

// Command is one state mutation request against a dataset session.
type Command struct {
	Type     string    `json:"type"`
	RouteID  string    `json:"routeId,omitempty"`
	GroupID  string    `json:"groupId,omitempty"`
	Name     string    `json:"name,omitempty"`
	Visible  *bool     `json:"visible,omitempty"`
	Rect     *Rect     `json:"rect,omitempty"`
	Subtract bool      `json:"subtract,omitempty"`
	Stations []float64 `json:"stations,omitempty"`

	Station    float64    `json:"station,omitempty"`
	Value      float64    `json:"value,omitempty"`
	StationTol float64    `json:"stationTol,omitempty"`
	ValueTol   float64    `json:"valueTol,omitempty"`
	Zoom       *ZoomState `json:"zoom,omitempty"`
}

// Result reports what a command did. Warnings carry validation outcomes that
// leave the state unchanged, so the caller can surface them without treating
// them as failures.
type Result struct {
	Revision      int           `json:"revision"`
	Warnings      []string      `json:"warnings,omitempty"`
	SelectedCount int           `json:"selectedCount,omitempty"`
	SkippedPoints int           `json:"skippedPoints,omitempty"`
	RestoredCount int           `json:"restoredCount,omitempty"`
	Group         *survey.Group `json:"group,omitempty"`
	RemovedPoint  *float64      `json:"removedStation,omitempty"`
}

// Validation errors become warnings in the result instead of failing the
// command; anything else is returned to the caller as-is.
var validationErrs = []error{
	survey.ErrEmptySelection,
	survey.ErrNoActiveRoute,
	survey.ErrAllPointsAlreadyGrouped,
	survey.ErrGroupNotFound,
	survey.ErrPointBelongsToGroup,
	survey.ErrPointNotFound,
	survey.ErrEmptyRoute,
	survey.ErrUnknownRoute,
}

func isValidation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// Apply runs one command against the session under its lock. Successful
// mutations bump the revision; validation failures leave it untouched and
// come back as warnings.
func (s *Session) Apply(cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{}
	var err error

	switch cmd.Type {
	case CmdSelectRoute:
		err = s.selectRoute(cmd.RouteID)
	case CmdSelectRectangle:
		if cmd.Rect == nil {
			return res, fmt.Errorf("application: %s command requires a rect", cmd.Type)
		}
		_, res.SkippedPoints, err = s.selectRectangle(*cmd.Rect, cmd.Subtract)
		res.SelectedCount = len(s.selection)
	case CmdClearSelection:
		s.clearSelection()
	case CmdCreateGroup:
		res.Group, res.SkippedPoints, err = s.createGroup(cmd.Name)
	case CmdRenameGroup:
		err = s.renameGroup(cmd.GroupID, cmd.Name)
	case CmdDeleteGroup:
		err = s.deleteGroup(cmd.GroupID)
	case CmdSetGroupVisible:
		visible := true
		if cmd.Visible != nil {
			visible = *cmd.Visible
		}
		err = s.setGroupVisible(cmd.GroupID, visible)
	case CmdEditGroup:
		res.SkippedPoints, err = s.editMembership(cmd.GroupID, cmd.Stations)
	case CmdToggleMetricDisplay:
		on := true
		if cmd.Visible != nil {
			on = *cmd.Visible
		}
		err = s.toggleMetricDisplay(cmd.GroupID, on)
	case CmdRemovePoint:
		err = s.removePoint(cmd.Station)
	case CmdRemoveNearest:
		var p *survey.Point
		p, err = s.removeNearest(cmd.Station, cmd.Value, cmd.StationTol, cmd.ValueTol)
		if p != nil {
			st := p.Station
			res.RemovedPoint = &st
		}
	case CmdRestoreAll:
		res.RestoredCount = s.restoreAll()
	case CmdSetZoom:
		if cmd.Zoom == nil {
			return res, fmt.Errorf("application: %s command requires a zoom state", cmd.Type)
		}
		err = s.setZoom(cmd.RouteID, *cmd.Zoom)
	default:
		return res, fmt.Errorf("application: unknown command type %q", cmd.Type)
	}

	if err != nil {
		if isValidation(err) {
			res.Warnings = append(res.Warnings, err.Error())
			res.Revision = s.revision
			return res, nil
		}
		return res, err
	}

	s.revision++
	res.Revision = s.revision
	return res, nil
}
