package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSpace indicates a space whose min corner exceeds its max corner.
var ErrInvalidSpace = errors.New("invalid space")

// Space is an axis-aligned 4D box: a volume reserved for a tick interval.
type Space struct {
	Min Coordinate4D `json:"min"`
	Max Coordinate4D `json:"max"`
}

// NewSpace validates min <= max component-wise.
func NewSpace(min, max Coordinate4D) (*Space, error) {
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z || min.T > max.T {
		return nil, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidSpace, min, max)
	}
	return &Space{Min: min, Max: max}, nil
}

// IsActiveAtTick reports min.t <= t <= max.t.
func (s *Space) IsActiveAtTick(t int) bool {
	return s.Min.T <= t && t <= s.Max.T
}

func (s *Space) DimensionX() int { return s.Max.X - s.Min.X }
func (s *Space) DimensionY() int { return s.Max.Y - s.Min.Y }
func (s *Space) DimensionZ() int { return s.Max.Z - s.Min.Z }
func (s *Space) DimensionT() int { return s.Max.T - s.Min.T }

// Dimensions returns the extent of the box in every axis.
func (s *Space) Dimensions() Coordinate4D {
	return Coordinate4D{X: s.DimensionX(), Y: s.DimensionY(), Z: s.DimensionZ(), T: s.DimensionT()}
}

// Volume is the spatial volume of the box.
func (s *Space) Volume() int {
	return s.DimensionX() * s.DimensionY() * s.DimensionZ()
}

// Origin is the spatial centre of the box.
func (s *Space) Origin() Point {
	return Point{
		X: float64(s.Min.X) + 0.5*float64(s.DimensionX()),
		Y: float64(s.Min.Y) + 0.5*float64(s.DimensionY()),
		Z: float64(s.Min.Z) + 0.5*float64(s.DimensionZ()),
	}
}

// Ticks returns every tick in [min.t, max.t].
func (s *Space) Ticks() []int {
	out := make([]int, 0, s.DimensionT()+1)
	for t := s.Min.T; t <= s.Max.T; t++ {
		out = append(out, t)
	}
	return out
}
