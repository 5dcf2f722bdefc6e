package model

// Statistics arrive precomputed with the snapshot. They are carried through
// unchanged; nothing in this module recomputes them.

// SimulationStatistics summarises a whole run.
type SimulationStatistics struct {
	PathOwners                 []OwnerStatistics  `json:"path_owners"`
	SpaceOwners                []OwnerStatistics  `json:"space_owners"`
	Owners                     []OwnerStatistics  `json:"owners,omitempty"`
	TotalNumberOfOwners        int                `json:"total_number_of_owners"`
	TotalNumberOfAgents        int                `json:"total_number_of_agents"`
	ValueStats                 *FinanceStatistics `json:"value_stats,omitempty"`
	PaymentStats               *FinanceStatistics `json:"payment_stats,omitempty"`
	UtilityStats               *FinanceStatistics `json:"utility_stats,omitempty"`
	TotalNonCollidingValue     float64            `json:"total_non_colliding_value"`
	TotalNonCollidingUtility   float64            `json:"total_non_colliding_utility"`
	TotalNumberOfViolations    int                `json:"total_number_of_violations"`
	TotalNumberOfReallocations int                `json:"total_number_of_reallocations"`
	StepComputeTime            map[string]int     `json:"step_compute_time,omitempty"`
}

// AllOwners returns path, space and untyped owner statistics in that order.
func (s *SimulationStatistics) AllOwners() []OwnerStatistics {
	if s == nil {
		return nil
	}
	out := make([]OwnerStatistics, 0, len(s.PathOwners)+len(s.SpaceOwners)+len(s.Owners))
	out = append(out, s.PathOwners...)
	out = append(out, s.SpaceOwners...)
	out = append(out, s.Owners...)
	return out
}

// FinanceStatistics is a boxplot-style distribution summary.
type FinanceStatistics struct {
	Values    []float64 `json:"values"`
	Total     float64   `json:"total"`
	Mean      float64   `json:"mean"`
	Median    float64   `json:"median"`
	Max       float64   `json:"max"`
	Min       float64   `json:"min"`
	Quartiles []float64 `json:"quartiles"`
	Outliers  []float64 `json:"outliers"`
}

// OwnerStatistics aggregates the agents of one owner.
type OwnerStatistics struct {
	ID                    string             `json:"id"`
	Agents                []AgentStatistics  `json:"agents"`
	TotalTimeInAir        int                `json:"total_time_in_air"`
	Values                *FinanceStatistics `json:"values,omitempty"`
	Payments              *FinanceStatistics `json:"payments,omitempty"`
	Utilities             *FinanceStatistics `json:"utilities,omitempty"`
	NonCollidingValues    *FinanceStatistics `json:"non_colliding_values,omitempty"`
	NonCollidingUtility   *FinanceStatistics `json:"non_colliding_utility,omitempty"`
	NumberOfAgents        int                `json:"number_of_agents"`
	ComputeTime           int                `json:"compute_time"`
	NrReallocationsCaused int                `json:"nr_reallocations_caused"`
	NrBatteryOverused     int                `json:"nr_battery_overused"`
}

// AgentStatistics covers both path and space agents; variant specific
// fields are nil when absent.
type AgentStatistics struct {
	ID                    string                 `json:"id"`
	Value                 float64                `json:"value"`
	Payment               float64                `json:"payment"`
	Utility               float64                `json:"utility"`
	NonCollidingValue     float64                `json:"non_colliding_value"`
	NonCollidingUtility   float64                `json:"non_colliding_utility"`
	Violations            *ViolationStatistics   `json:"violations,omitempty"`
	TotalReallocations    int                    `json:"total_reallocations"`
	ComputeTime           int                    `json:"compute_time"`
	NrReallocationsCaused int                    `json:"nr_reallocations_caused"`
	Allocations           []AllocationStatistics `json:"allocations"`
	TimeInAir             *int                   `json:"time_in_air,omitempty"`

	Path             *PathStatistics  `json:"path,omitempty"`
	BatteryUnused    *int             `json:"battery_unused,omitempty"`
	DelayedStarts    []int            `json:"delayed_starts,omitempty"`
	DelayedArrivals  []int            `json:"delayed_arrivals,omitempty"`
	ReDelayedArrival []int            `json:"re_delayed_arrivals,omitempty"`
	Space            *SpaceStatistics `json:"space,omitempty"`
}

// AllocationAt returns the allocation statistics recorded for tick.
func (s *AgentStatistics) AllocationAt(tick int) (*AllocationStatistics, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Allocations {
		if s.Allocations[i].Tick == tick {
			return &s.Allocations[i], true
		}
	}
	return nil, false
}

// Bid is the opaque bid payload recorded by the allocator.
type Bid struct {
	Data    map[string]any `json:"data,omitempty"`
	Display map[string]any `json:"display,omitempty"`
}

// AllocationStatistics describes one (re)allocation of an agent.
type AllocationStatistics struct {
	Tick                int              `json:"tick"`
	Value               float64          `json:"value"`
	Payment             float64          `json:"payment"`
	Utility             float64          `json:"utility"`
	Bid                 *Bid             `json:"bid,omitempty"`
	Reason              string           `json:"reason"`
	Explanation         string           `json:"explanation"`
	CollidingAgentBids  map[string]Bid   `json:"colliding_agent_bids,omitempty"`
	DisplacingAgentBids map[string]Bid   `json:"displacing_agent_bids,omitempty"`
	ComputeTime         int              `json:"compute_time"`
	Path                *PathStatistics  `json:"path,omitempty"`
	Space               *SpaceStatistics `json:"space,omitempty"`
}

// ViolationStatistics lists the 4D coordinates at which an agent violated
// another agent's airspace (keyed by agent ID) or a blocker (keyed by
// blocker ID).
type ViolationStatistics struct {
	Violations             map[string][]Coordinate4D `json:"violations"`
	TotalViolations        int                       `json:"total_violations"`
	BlockerViolations      map[string][]Coordinate4D `json:"blocker_violations,omitempty"`
	TotalBlockerViolations int                       `json:"total_blocker_violations"`
	IncompleteAllocation   bool                      `json:"incomplete_allocation"`
}

// PathStatistics describes a flown path.
type PathStatistics struct {
	L1Distance             int     `json:"l1_distance"`
	L2Distance             float64 `json:"l2_distance"`
	L1GroundDistance       int     `json:"l1_ground_distance"`
	L2GroundDistance       float64 `json:"l2_ground_distance"`
	HeightDifference       int     `json:"height_difference"`
	TimeDifference         int     `json:"time_difference"`
	Ascent                 int     `json:"ascent"`
	Descent                int     `json:"descent"`
	DistanceTraveled       int     `json:"distance_traveled"`
	GroundDistanceTraveled int     `json:"ground_distance_traveled"`
	MeanHeight             float64 `json:"mean_height"`
	MedianHeight           float64 `json:"median_height"`
	Heights                []int   `json:"heights,omitempty"`
}

// SpaceStatistics describes a set of reserved spaces.
type SpaceStatistics struct {
	Volume                  int     `json:"volume"`
	MeanVolume              float64 `json:"mean_volume"`
	MedianVolume            float64 `json:"median_volume"`
	MeanHeight              float64 `json:"mean_height"`
	MedianHeight            float64 `json:"median_height"`
	Area                    int     `json:"area"`
	MeanArea                float64 `json:"mean_area"`
	MedianArea              float64 `json:"median_area"`
	MeanTime                float64 `json:"mean_time"`
	MedianTime              float64 `json:"median_time"`
	MeanHeightAboveGround   float64 `json:"mean_height_above_ground"`
	MedianHeightAboveGround float64 `json:"median_height_above_ground"`
}
