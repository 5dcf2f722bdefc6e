package core

import "errors"

var (
	// ErrInvalidAgentType indicates an agent with an unknown type discriminator.
	ErrInvalidAgentType = errors.New("invalid agent type")
	// ErrInvalidBlockerType indicates a blocker with an unknown type discriminator.
	ErrInvalidBlockerType = errors.New("invalid blocker type")
	// ErrInvalidAllocationReason indicates an allocation tagged with an unknown reason.
	ErrInvalidAllocationReason = errors.New("invalid allocation reason")
	// ErrInvalidSnapshot indicates a structurally unusable snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrDuplicateAgent indicates two agents sharing an ID.
	ErrDuplicateAgent = errors.New("duplicate agent id")
	// ErrInvalidTick indicates a negative tick.
	ErrInvalidTick = errors.New("invalid tick")

	// ErrNotLoaded indicates an operation on a simulation that was never built.
	ErrNotLoaded = errors.New("no simulation loaded")
	// ErrAgentNotFound indicates an agent that is not part of the simulation.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentNotSelected indicates a focus request for an agent outside the selection.
	ErrAgentNotSelected = errors.New("agent not selected")
	// ErrReentrantUpdate indicates a state change requested from inside an
	// event handler that is still being dispatched.
	ErrReentrantUpdate = errors.New("simulation update requested while dispatching events")
)
