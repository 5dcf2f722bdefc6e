package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/airspace-playback/model"
)

// AllocationReason tags why an intermediate allocation happened.
type AllocationReason int

const (
	// ReasonUnknown is used when no allocation statistics were recorded.
	ReasonUnknown AllocationReason = iota
	ReasonFirstAllocation
	ReasonReallocation
	ReasonAllocationFailed
)

func (r AllocationReason) String() string {
	switch r {
	case ReasonFirstAllocation:
		return "FIRST_ALLOCATION"
	case ReasonReallocation:
		return "REALLOCATION"
	case ReasonAllocationFailed:
		return "ALLOCATION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseAllocationReason maps the wire reason. An empty string is tolerated
// as ReasonUnknown; anything else unrecognised is a schema violation.
func ParseAllocationReason(s string) (AllocationReason, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ReasonUnknown, nil
	case "FIRST_ALLOCATION":
		return ReasonFirstAllocation, nil
	case "REALLOCATION":
		return ReasonReallocation, nil
	case "ALLOCATION_FAILED":
		return ReasonAllocationFailed, nil
	default:
		return ReasonUnknown, fmt.Errorf("%w: %q", ErrInvalidAllocationReason, s)
	}
}

// allocationTag is the part of an intermediate allocation that comes from
// the agent's statistics rather than the trajectory data.
type allocationTag struct {
	Value       float64
	Reason      AllocationReason
	Explanation string
	Statistics  *model.AllocationStatistics
}

func tagFromStatistics(stats *model.AgentStatistics, tick int) (allocationTag, error) {
	alloc, ok := stats.AllocationAt(tick)
	if !ok {
		return allocationTag{}, nil
	}
	reason, err := ParseAllocationReason(alloc.Reason)
	if err != nil {
		return allocationTag{}, fmt.Errorf("allocation at tick %d: %w", tick, err)
	}
	return allocationTag{
		Value:       alloc.Value,
		Reason:      reason,
		Explanation: alloc.Explanation,
		Statistics:  alloc,
	}, nil
}

// Branch is an intermediate allocation of a path agent. Paths holds the
// replacement trajectory legs assigned at Tick.
type Branch struct {
	Tick        int
	Paths       []*model.Path
	Value       float64
	Reason      AllocationReason
	Explanation string
	Statistics  *model.AllocationStatistics
}

// Block is an intermediate allocation of a space agent.
type Block struct {
	Tick        int
	Spaces      []*model.Space
	Value       float64
	Reason      AllocationReason
	Explanation string
	Statistics  *model.AllocationStatistics
}
