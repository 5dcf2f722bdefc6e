// core/focus.go
package core

import "fmt"

// FocusOnAgent puts a selected agent into focus. Focusing the agent that is
// already focused does nothing; so does focusing an inactive agent when the
// simulation was built WithActiveOnlyFocus.
func (s *Simulation) FocusOnAgent(a *Agent) error {
	if err := s.guard(); err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: nil agent", ErrAgentNotFound)
	}

	s.mu.Lock()
	if known, ok := s.agentByID[a.ID]; !ok || known != a {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAgentNotFound, a.ID)
	}
	if _, ok := s.selectedIDs[a.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAgentNotSelected, a.ID)
	}
	if s.agentInFocus == a || (s.activeOnlyFocus && !a.IsActiveAtTick(s.tick)) {
		s.mu.Unlock()
		return nil
	}
	prev := s.agentInFocus
	s.agentInFocus = a
	tick := s.tick
	s.recordFocus("on")
	s.mu.Unlock()

	s.publish(Event{Type: EventFocusOn, Tick: tick, Agent: a, Previous: prev, Overlay: a.Overlay()})
	return nil
}

// FocusOnAgentID resolves id and focuses on that agent.
func (s *Simulation) FocusOnAgentID(id string) error {
	if s == nil {
		return ErrNotLoaded
	}
	a, ok := s.Agent(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrAgentNotFound, id)
	}
	return s.FocusOnAgent(a)
}

// FocusOff clears the focus. It is a no-op when nothing is focused.
func (s *Simulation) FocusOff() error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.agentInFocus
	if prev == nil {
		s.mu.Unlock()
		return nil
	}
	s.agentInFocus = nil
	tick := s.tick
	s.recordFocus("off")
	s.mu.Unlock()

	s.publish(Event{Type: EventFocusOff, Tick: tick, Agent: prev})
	return nil
}

// UpdateFocus publishes a focus refresh carrying the focused agent's current
// location. Nothing is published when no agent is focused or the focused
// agent is not flying at the current tick.
func (s *Simulation) UpdateFocus() error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.RLock()
	a := s.agentInFocus
	tick := s.tick
	s.mu.RUnlock()
	if a == nil {
		return nil
	}
	loc, ok := a.LocationAtTick(tick)
	if !ok {
		return nil
	}
	s.publish(Event{Type: EventFocusRefresh, Tick: tick, Agent: a, Location: loc})
	return nil
}

// AgentInFocus returns the focused agent, nil when unfocused.
func (s *Simulation) AgentInFocus() *Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentInFocus
}

// OwnerInFocus returns the owner of the focused agent.
func (s *Simulation) OwnerInFocus() *Owner {
	a := s.AgentInFocus()
	if a == nil {
		return nil
	}
	return a.Owner
}

func (s *Simulation) recordFocus(kind string) {
	if s.metrics != nil {
		s.metrics.IncFocusTransition(kind)
	}
}
