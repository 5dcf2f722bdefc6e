// core/blocker.go
package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/airspace-playback/model"
)

// BlockerKind discriminates the blocker variants.
type BlockerKind int

const (
	BlockerKindStatic BlockerKind = iota + 1
	BlockerKindDynamic
)

func (k BlockerKind) String() string {
	switch k {
	case BlockerKindStatic:
		return "static"
	case BlockerKindDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ParseBlockerKind maps the wire blocker_type discriminator.
func ParseBlockerKind(s string) (BlockerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static":
		return BlockerKindStatic, nil
	case "dynamic":
		return BlockerKindDynamic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBlockerType, s)
	}
}

// Blocker is an obstacle not owned by any bidder. A static blocker sits at
// Location for ticks [0, Horizon); a dynamic blocker follows Path.
type Blocker struct {
	ID        string
	Kind      BlockerKind
	Dimension model.Coordinate3D

	Location model.Coordinate3D
	Horizon  int

	Path *model.Path
}

// NewStaticBlocker builds a blocker present for the whole horizon.
func NewStaticBlocker(id string, dim, loc model.Coordinate3D, horizon int) *Blocker {
	if horizon < 0 {
		horizon = 0
	}
	return &Blocker{ID: id, Kind: BlockerKindStatic, Dimension: dim, Location: loc, Horizon: horizon}
}

// NewDynamicBlocker builds a moving blocker.
func NewDynamicBlocker(id string, dim model.Coordinate3D, path *model.Path) *Blocker {
	if path == nil {
		path = model.NewPath(nil)
	}
	return &Blocker{ID: id, Kind: BlockerKindDynamic, Dimension: dim, Path: path}
}

// TicksInAir returns the ascending ticks at which the blocker exists.
func (b *Blocker) TicksInAir() []int {
	switch b.Kind {
	case BlockerKindStatic:
		out := make([]int, b.Horizon)
		for t := range out {
			out[t] = t
		}
		return out
	case BlockerKindDynamic:
		return b.Path.Ticks()
	}
	return nil
}

// PositionAtTick returns the blocker's location at t.
func (b *Blocker) PositionAtTick(t int) (model.Coordinate3D, bool) {
	switch b.Kind {
	case BlockerKindStatic:
		return b.Location, t >= 0 && t < b.Horizon
	case BlockerKindDynamic:
		return b.Path.At(t)
	}
	return model.Coordinate3D{}, false
}
