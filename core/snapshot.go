// core/snapshot.go
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/signalsfoundry/airspace-playback/model"
)

// Snapshot is a decoded, not yet indexed simulation result. The JSON shapes
// follow the simulator's output files.
type Snapshot struct {
	Simulation SimulationJSON
	// Statistics is nil when no statistics blob was supplied.
	Statistics *model.SimulationStatistics
	OwnerMap   map[string]OwnerDescription
}

// SimulationJSON is the top level simulation document.
type SimulationJSON struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Environment EnvironmentJSON             `json:"environment"`
	Owners      []OwnerJSON                 `json:"owners,omitempty"`
	PathOwners  []OwnerJSON                 `json:"path_owners,omitempty"`
	SpaceOwners []OwnerJSON                 `json:"space_owners,omitempty"`
	Statistics  *model.SimulationStatistics `json:"statistics,omitempty"`
}

// AllOwners returns untyped, path and space owners in that order.
func (s *SimulationJSON) AllOwners() []OwnerJSON {
	out := make([]OwnerJSON, 0, len(s.Owners)+len(s.PathOwners)+len(s.SpaceOwners))
	out = append(out, s.Owners...)
	out = append(out, s.PathOwners...)
	out = append(out, s.SpaceOwners...)
	return out
}

type EnvironmentJSON struct {
	Dimensions model.Coordinate4D `json:"dimensions"`
	Blockers   []BlockerJSON      `json:"blockers"`
}

type BlockerJSON struct {
	ID          string               `json:"id"`
	BlockerType string               `json:"blocker_type"`
	Dimension   model.Coordinate3D   `json:"dimension"`
	Location    *model.Coordinate3D  `json:"location,omitempty"`
	Locations   []model.Coordinate4D `json:"locations,omitempty"`
}

type OwnerJSON struct {
	ID     string      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Color  string      `json:"color,omitempty"`
	Agents []AgentJSON `json:"agents"`
}

type AgentJSON struct {
	AgentType  string `json:"agent_type"`
	ID         string `json:"id"`
	Speed      int    `json:"speed,omitempty"`
	NearRadius int    `json:"near_radius,omitempty"`
	Battery    int    `json:"battery,omitempty"`

	Paths  []PathJSON    `json:"paths,omitempty"`
	Blocks []model.Space `json:"blocks,omitempty"`

	IntermediateAllocations []IntermediateAllocationJSON `json:"intermediate_allocations,omitempty"`
}

// IntermediateAllocationJSON is a branch (paths) or a block (spaces).
type IntermediateAllocationJSON struct {
	Tick   int           `json:"tick"`
	Paths  []PathJSON    `json:"paths,omitempty"`
	Spaces []model.Space `json:"spaces,omitempty"`
}

// PathJSON maps a tick to an [x, y, z] triple. Older exports use "t"
// instead of "positions".
type PathJSON struct {
	Positions map[int][3]float64 `json:"positions,omitempty"`
	T         map[int][3]float64 `json:"t,omitempty"`
}

func (p PathJSON) toPath() *model.Path {
	src := p.Positions
	if len(src) == 0 {
		src = p.T
	}
	ticks := make(map[int]model.Coordinate3D, len(src))
	for t, xyz := range src {
		ticks[t] = model.Coordinate3D{
			X: int(math.Round(xyz[0])),
			Y: int(math.Round(xyz[1])),
			Z: int(math.Round(xyz[2])),
		}
	}
	return model.NewPath(ticks)
}

// SnapshotInput holds the raw blobs a snapshot is decoded from. Only
// Simulation is required.
type SnapshotInput struct {
	Simulation []byte
	Statistics []byte
	OwnerMap   []byte
}

// DecodeSnapshot parses the raw blobs. It fails only on malformed JSON or a
// missing simulation document; schema checks happen in NewSimulation.
func DecodeSnapshot(in SnapshotInput) (*Snapshot, error) {
	if len(bytes.TrimSpace(in.Simulation)) == 0 {
		return nil, fmt.Errorf("%w: empty simulation document", ErrInvalidSnapshot)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(in.Simulation, &snap.Simulation); err != nil {
		return nil, fmt.Errorf("DecodeSnapshot: simulation: %w", err)
	}
	snap.Statistics = snap.Simulation.Statistics
	if len(bytes.TrimSpace(in.Statistics)) > 0 {
		var stats model.SimulationStatistics
		if err := json.Unmarshal(in.Statistics, &stats); err != nil {
			return nil, fmt.Errorf("DecodeSnapshot: statistics: %w", err)
		}
		snap.Statistics = &stats
	}
	if len(bytes.TrimSpace(in.OwnerMap)) > 0 {
		if err := json.Unmarshal(in.OwnerMap, &snap.OwnerMap); err != nil {
			return nil, fmt.Errorf("DecodeSnapshot: owner map: %w", err)
		}
	}
	return snap, nil
}

// ReadSnapshot decodes a simulation document from r without statistics or
// owner map.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadSnapshot: %w", err)
	}
	return DecodeSnapshot(SnapshotInput{Simulation: data})
}

// statisticsIndex resolves companion statistics by owner and agent ID.
type statisticsIndex struct {
	owners map[string]*model.OwnerStatistics
	agents map[string]*model.AgentStatistics
}

func newStatisticsIndex(stats *model.SimulationStatistics) statisticsIndex {
	idx := statisticsIndex{
		owners: make(map[string]*model.OwnerStatistics),
		agents: make(map[string]*model.AgentStatistics),
	}
	if stats == nil {
		return idx
	}
	owners := stats.AllOwners()
	for i := range owners {
		o := &owners[i]
		idx.owners[o.ID] = o
		for j := range o.Agents {
			idx.agents[o.Agents[j].ID] = &o.Agents[j]
		}
	}
	return idx
}

// buildEntities turns the snapshot into owners, agents and blockers. Any
// schema violation aborts the whole build.
func buildEntities(snap *Snapshot) ([]*Owner, []*Agent, []*Blocker, error) {
	stats := newStatisticsIndex(snap.Statistics)
	horizon := snap.Simulation.Environment.Dimensions.T

	blockers := make([]*Blocker, 0, len(snap.Simulation.Environment.Blockers))
	for i, bj := range snap.Simulation.Environment.Blockers {
		b, err := buildBlocker(bj, horizon)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("blocker %d (%q): %w", i, bj.ID, err)
		}
		blockers = append(blockers, b)
	}

	var (
		owners []*Owner
		agents []*Agent
		seen   = make(map[string]struct{})
	)
	for _, oj := range snap.Simulation.AllOwners() {
		var desc *OwnerDescription
		if d, ok := snap.OwnerMap[oj.ID]; ok {
			desc = &d
		} else if oj.Name != "" || oj.Color != "" {
			desc = &OwnerDescription{Name: oj.Name, Color: oj.Color}
		}
		owner := NewOwner(oj.ID, desc, stats.owners[oj.ID])

		for _, aj := range oj.Agents {
			if _, dup := seen[aj.ID]; dup {
				return nil, nil, nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, aj.ID)
			}
			seen[aj.ID] = struct{}{}

			a, err := buildAgent(aj, owner, stats.agents[aj.ID])
			if err != nil {
				return nil, nil, nil, fmt.Errorf("owner %q agent %q: %w", oj.ID, aj.ID, err)
			}
			owner.Agents = append(owner.Agents, a)
			agents = append(agents, a)
		}
		owners = append(owners, owner)
	}
	return owners, agents, blockers, nil
}

func buildBlocker(bj BlockerJSON, horizon int) (*Blocker, error) {
	kind, err := ParseBlockerKind(bj.BlockerType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case BlockerKindStatic:
		if bj.Location == nil {
			return nil, fmt.Errorf("%w: static blocker without location", ErrInvalidSnapshot)
		}
		return NewStaticBlocker(bj.ID, bj.Dimension, *bj.Location, horizon), nil
	default:
		return NewDynamicBlocker(bj.ID, bj.Dimension, model.NewPathFromCoordinates(bj.Locations)), nil
	}
}

func buildAgent(aj AgentJSON, owner *Owner, stats *model.AgentStatistics) (*Agent, error) {
	if aj.ID == "" {
		return nil, fmt.Errorf("%w: agent with empty id", ErrInvalidSnapshot)
	}
	kind, err := ParseAgentKind(aj.AgentType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case AgentKindPath:
		pa := PathAgent{
			Speed:      aj.Speed,
			NearRadius: aj.NearRadius,
			Battery:    aj.Battery,
			Paths:      make([]*model.Path, 0, len(aj.Paths)),
		}
		for _, pj := range aj.Paths {
			pa.Paths = append(pa.Paths, pj.toPath())
		}
		for _, ia := range aj.IntermediateAllocations {
			tag, err := tagFromStatistics(stats, ia.Tick)
			if err != nil {
				return nil, err
			}
			br := Branch{
				Tick:        ia.Tick,
				Value:       tag.Value,
				Reason:      tag.Reason,
				Explanation: tag.Explanation,
				Statistics:  tag.Statistics,
			}
			for _, pj := range ia.Paths {
				br.Paths = append(br.Paths, pj.toPath())
			}
			pa.Branches = append(pa.Branches, br)
		}
		return NewPathAgent(aj.ID, owner, stats, pa), nil

	default:
		sa := SpaceAgent{Spaces: make([]*model.Space, 0, len(aj.Blocks))}
		for _, sj := range aj.Blocks {
			sp, err := model.NewSpace(sj.Min, sj.Max)
			if err != nil {
				return nil, err
			}
			sa.Spaces = append(sa.Spaces, sp)
		}
		for _, ia := range aj.IntermediateAllocations {
			tag, err := tagFromStatistics(stats, ia.Tick)
			if err != nil {
				return nil, err
			}
			blk := Block{
				Tick:        ia.Tick,
				Value:       tag.Value,
				Reason:      tag.Reason,
				Explanation: tag.Explanation,
				Statistics:  tag.Statistics,
			}
			for _, sj := range ia.Spaces {
				sp, err := model.NewSpace(sj.Min, sj.Max)
				if err != nil {
					return nil, err
				}
				blk.Spaces = append(blk.Spaces, sp)
			}
			sa.Blocks = append(sa.Blocks, blk)
		}
		return NewSpaceAgent(aj.ID, owner, stats, sa), nil
	}
}
