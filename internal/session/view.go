package session

import (
	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/model"
)

// View is the externally visible playback state.
type View struct {
	Name           string   `json:"name"`
	Tick           int      `json:"tick"`
	MaxTick        int      `json:"max_tick"`
	SelectedAgents []string `json:"selected_agents"`
	ActiveAgents   []string `json:"active_agents"`
	ActiveBlockers []string `json:"active_blockers"`
	AgentInFocus   string   `json:"agent_in_focus,omitempty"`
	OwnerInFocus   string   `json:"owner_in_focus,omitempty"`
}

// NewView captures the view of sim.
func NewView(sim *core.Simulation) View {
	v := View{
		Name:           sim.Name,
		Tick:           sim.Tick(),
		MaxTick:        sim.MaxTick(),
		SelectedAgents: sim.SelectedAgentIDs(),
		ActiveAgents:   agentIDs(sim.ActiveAgents()),
		ActiveBlockers: make([]string, 0),
	}
	for _, b := range sim.ActiveBlockers() {
		v.ActiveBlockers = append(v.ActiveBlockers, b.ID)
	}
	if a := sim.AgentInFocus(); a != nil {
		v.AgentInFocus = a.ID
		v.OwnerInFocus = a.OwnerID()
	}
	return v
}

// AsMap converts v into plain values accepted by structpb.NewStruct.
func (v View) AsMap() map[string]any {
	m := map[string]any{
		"name":            v.Name,
		"tick":            v.Tick,
		"max_tick":        v.MaxTick,
		"selected_agents": stringsToAny(v.SelectedAgents),
		"active_agents":   stringsToAny(v.ActiveAgents),
		"active_blockers": stringsToAny(v.ActiveBlockers),
	}
	if v.AgentInFocus != "" {
		m["agent_in_focus"] = v.AgentInFocus
		m["owner_in_focus"] = v.OwnerInFocus
	}
	return m
}

// EventMessage is the wire form of a core.Event.
type EventMessage struct {
	Type        string       `json:"type"`
	Tick        int          `json:"tick"`
	Agent       string       `json:"agent,omitempty"`
	Previous    string       `json:"previous,omitempty"`
	Location    *model.Point `json:"location,omitempty"`
	SelectedIDs []string     `json:"selected_ids,omitempty"`

	Overlay [][]model.Coordinate4D `json:"overlay,omitempty"`
}

// NewEventMessage flattens e into IDs.
func NewEventMessage(e core.Event) EventMessage {
	msg := EventMessage{
		Type:        e.Type.String(),
		Tick:        e.Tick,
		SelectedIDs: e.SelectedIDs,
	}
	if e.Agent != nil {
		msg.Agent = e.Agent.ID
	}
	if e.Previous != nil {
		msg.Previous = e.Previous.ID
	}
	if e.Type == core.EventFocusRefresh {
		loc := e.Location
		msg.Location = &loc
	}
	for _, p := range e.Overlay {
		msg.Overlay = append(msg.Overlay, PathCoordinates(p))
	}
	return msg
}

// PathCoordinates lists p as tick-ordered 4D coordinates.
func PathCoordinates(p *model.Path) []model.Coordinate4D {
	out := make([]model.Coordinate4D, 0, p.Len())
	for _, t := range p.Ticks() {
		c, _ := p.At(t)
		out = append(out, model.Coordinate4D{X: c.X, Y: c.Y, Z: c.Z, T: t})
	}
	return out
}

func agentIDs(agents []*core.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.ID)
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
