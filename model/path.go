package model

import (
	"errors"
	"sort"
)

// ErrEmptyPath is returned when an operation needs at least one tick.
var ErrEmptyPath = errors.New("path has no ticks")

// Path is a sparse, tick-ordered trajectory. A tick appears at most once and
// gaps between ticks mean "not present". Paths are immutable once built.
type Path struct {
	ticks map[int]Coordinate3D
	order []int
}

// NewPath builds a path from a tick -> coordinate map. The map is copied.
func NewPath(ticks map[int]Coordinate3D) *Path {
	p := &Path{
		ticks: make(map[int]Coordinate3D, len(ticks)),
		order: make([]int, 0, len(ticks)),
	}
	for t, c := range ticks {
		p.ticks[t] = c
		p.order = append(p.order, t)
	}
	sort.Ints(p.order)
	return p
}

// NewPathFromCoordinates builds a path from 4D coordinates. A later
// coordinate with the same tick overwrites an earlier one.
func NewPathFromCoordinates(coords []Coordinate4D) *Path {
	ticks := make(map[int]Coordinate3D, len(coords))
	for _, c := range coords {
		ticks[c.T] = c.Spatial()
	}
	return NewPath(ticks)
}

// Len returns the number of ticks in the path.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// Ticks returns the ticks in ascending order.
func (p *Path) Ticks() []int {
	if p == nil {
		return nil
	}
	return append([]int(nil), p.order...)
}

// At returns the coordinate at tick t.
func (p *Path) At(t int) (Coordinate3D, bool) {
	if p == nil {
		return Coordinate3D{}, false
	}
	c, ok := p.ticks[t]
	return c, ok
}

// AtIndex returns the i-th tick and its coordinate in tick order.
func (p *Path) AtIndex(i int) (int, Coordinate3D, bool) {
	if p == nil || i < 0 || i >= len(p.order) {
		return 0, Coordinate3D{}, false
	}
	t := p.order[i]
	return t, p.ticks[t], true
}

// IsActiveAtTick reports whether the path defines tick t.
func (p *Path) IsActiveAtTick(t int) bool {
	_, ok := p.At(t)
	return ok
}

// FirstTick returns the smallest tick.
func (p *Path) FirstTick() (int, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	return p.order[0], true
}

// LastTick returns the largest tick.
func (p *Path) LastTick() (int, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	return p.order[len(p.order)-1], true
}

// FirstLocation returns the coordinate at the first tick.
func (p *Path) FirstLocation() (Coordinate3D, bool) {
	t, ok := p.FirstTick()
	if !ok {
		return Coordinate3D{}, false
	}
	return p.ticks[t], true
}

// LastLocation returns the coordinate at the last tick.
func (p *Path) LastLocation() (Coordinate3D, bool) {
	t, ok := p.LastTick()
	if !ok {
		return Coordinate3D{}, false
	}
	return p.ticks[t], true
}

// ContainsCoordinate reports whether c is visited at any tick.
func (p *Path) ContainsCoordinate(c Coordinate3D) bool {
	if p == nil {
		return false
	}
	_, ok := p.coordinateSet()[c.XYZ()]
	return ok
}

// Map returns a copy of the underlying tick -> coordinate map.
func (p *Path) Map() map[int]Coordinate3D {
	out := make(map[int]Coordinate3D, p.Len())
	if p == nil {
		return out
	}
	for t, c := range p.ticks {
		out[t] = c
	}
	return out
}

func (p *Path) coordinateSet() map[XYZKey]struct{} {
	set := make(map[XYZKey]struct{}, len(p.ticks))
	for _, c := range p.ticks {
		set[c.XYZ()] = struct{}{}
	}
	return set
}

// Join merges paths into one tick-ordered path. When two inputs define the
// same tick the later input wins; collisions are not an error.
func Join(paths ...*Path) *Path {
	merged := make(map[int]Coordinate3D)
	for _, p := range paths {
		if p == nil {
			continue
		}
		for _, t := range p.order {
			merged[t] = p.ticks[t]
		}
	}
	return NewPath(merged)
}

// Subtract returns the maximal runs of path whose coordinates are not visited
// anywhere in pathToSubtract. Coordinates are compared by location only, so a
// location revisited at another tick still counts as shared.
//
// Each run is seeded with the coordinate at t-1 when path is present there, so
// the segment connects to the point where the paths diverged, and is closed by
// the first shared coordinate after it. A run that reaches the end of path
// without rejoining is emitted as well.
func Subtract(path, pathToSubtract *Path) ([]*Path, error) {
	if path.Len() == 0 {
		return nil, ErrEmptyPath
	}
	var shared map[XYZKey]struct{}
	if pathToSubtract != nil {
		shared = pathToSubtract.coordinateSet()
	}

	var (
		segments   []*Path
		acc        map[int]Coordinate3D
		offSegment bool
	)
	for _, t := range path.order {
		c := path.ticks[t]
		_, isShared := shared[c.XYZ()]
		distinct := !isShared

		if distinct && !offSegment {
			acc = make(map[int]Coordinate3D)
			if prev, ok := path.ticks[t-1]; ok {
				acc[t-1] = prev
			}
		}

		switch {
		case distinct:
			acc[t] = c
			offSegment = true
		case offSegment:
			acc[t] = c
			segments = append(segments, NewPath(acc))
			acc = nil
			offSegment = false
		}
	}
	if offSegment && len(acc) > 0 {
		segments = append(segments, NewPath(acc))
	}
	return segments, nil
}
