// core/event.go
package core

import "github.com/signalsfoundry/airspace-playback/model"

// EventType indicates what changed in the simulation view.
type EventType int

const (
	EventTickChanged EventType = iota + 1
	EventAgentsSelected
	EventFocusOn
	EventFocusOff
	EventFocusRefresh
)

func (t EventType) String() string {
	switch t {
	case EventTickChanged:
		return "tick_changed"
	case EventAgentsSelected:
		return "agents_selected"
	case EventFocusOn:
		return "focus_on"
	case EventFocusOff:
		return "focus_off"
	case EventFocusRefresh:
		return "focus_refresh"
	default:
		return "unknown"
	}
}

// Event is published on the simulation's bus after the view state it
// describes has been recomputed.
type Event struct {
	Type EventType
	Tick int

	// Agent is the focus target for focus events. Previous carries the
	// former target of a FocusOn, nil when nothing was focused.
	Agent    *Agent
	Previous *Agent

	// Overlay is set for FocusOn: the branch path segments that left the
	// agent's combined path.
	Overlay []*model.Path

	// Location is set for FocusRefresh.
	Location model.Point

	// SelectedIDs is set for AgentsSelected.
	SelectedIDs []string
}
