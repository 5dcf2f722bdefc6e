package model

import (
	"errors"
	"testing"
)

func TestNewSpaceRejectsInvertedCorners(t *testing.T) {
	_, err := NewSpace(Coordinate4D{X: 5, T: 0}, Coordinate4D{X: 1, T: 3})
	if !errors.Is(err, ErrInvalidSpace) {
		t.Fatalf("err = %v, want ErrInvalidSpace", err)
	}
}

func TestSpaceDerivedValues(t *testing.T) {
	sp, err := NewSpace(
		Coordinate4D{X: 0, Y: 2, Z: 0, T: 4},
		Coordinate4D{X: 4, Y: 6, Z: 10, T: 8},
	)
	if err != nil {
		t.Fatalf("NewSpace error: %v", err)
	}

	if got := sp.Dimensions(); got != (Coordinate4D{X: 4, Y: 4, Z: 10, T: 4}) {
		t.Fatalf("Dimensions = %v", got)
	}
	if got := sp.Volume(); got != 160 {
		t.Fatalf("Volume = %d, want 160", got)
	}
	if got := sp.Origin(); got != (Point{X: 2, Y: 4, Z: 5}) {
		t.Fatalf("Origin = %v", got)
	}
	if got := len(sp.Ticks()); got != 5 {
		t.Fatalf("len(Ticks) = %d, want 5", got)
	}

	tests := []struct {
		tick int
		want bool
	}{
		{3, false},
		{4, true},
		{6, true},
		{8, true},
		{9, false},
	}
	for _, tt := range tests {
		if got := sp.IsActiveAtTick(tt.tick); got != tt.want {
			t.Errorf("IsActiveAtTick(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}
}

func TestCoordinateKeys(t *testing.T) {
	a := Coordinate3D{X: 1, Y: 23, Z: 4}
	b := Coordinate3D{X: 12, Y: 3, Z: 4}
	if a.XYZ() == b.XYZ() {
		t.Fatalf("distinct coordinates share a key")
	}
	c4 := Coordinate4D{X: 1, Y: 23, Z: 4, T: 9}
	if c4.Spatial() != a {
		t.Fatalf("Spatial() = %v, want %v", c4.Spatial(), a)
	}
	if NewCoordinate3DFromArray(a.ToArray()) != a {
		t.Fatalf("array round trip changed the coordinate")
	}
}
