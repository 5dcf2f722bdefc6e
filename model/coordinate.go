package model

import "fmt"

// Coordinate3D is a grid location in the simulated airspace.
type Coordinate3D struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Coordinate4D is a grid location at a specific tick.
type Coordinate4D struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
	T int `json:"t"`
}

// XYZKey identifies a spatial location independent of time.
type XYZKey [3]int

// NewCoordinate3DFromArray converts an [x, y, z] triple.
func NewCoordinate3DFromArray(a [3]int) Coordinate3D {
	return Coordinate3D{X: a[0], Y: a[1], Z: a[2]}
}

// ToArray returns the coordinate as [x, y, z].
func (c Coordinate3D) ToArray() [3]int {
	return [3]int{c.X, c.Y, c.Z}
}

// XYZ returns the key used for coordinate equality in path algebra.
func (c Coordinate3D) XYZ() XYZKey {
	return XYZKey{c.X, c.Y, c.Z}
}

// Point converts the coordinate to a float point.
func (c Coordinate3D) Point() Point {
	return Point{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}

func (c Coordinate3D) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z)
}

// ToArray returns the coordinate as [x, y, z, t].
func (c Coordinate4D) ToArray() [4]int {
	return [4]int{c.X, c.Y, c.Z, c.T}
}

// Spatial drops the time component.
func (c Coordinate4D) Spatial() Coordinate3D {
	return Coordinate3D{X: c.X, Y: c.Y, Z: c.Z}
}

func (c Coordinate4D) String() string {
	return fmt.Sprintf("(%d, %d, %d @ %d)", c.X, c.Y, c.Z, c.T)
}

// Point is a continuous position, used for derived centres such as a
// reservation's origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
