// Package spatial provides the in-memory registry of entity positions and
// static geometry that the rest of the engine builds on. The registry is the
// single in-memory owner of spatial state; durable snapshots live in the
// persistence package.
package spatial

import (
	"fmt"
	"math"
)

// Position is a point in 3D world space. The z component is carried for the
// durable schema and plane math; the hex grid itself lives in the xy plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewPosition validates that all three components are finite.
func NewPosition(x, y, z float64) (Position, error) {
	p := Position{X: x, Y: y, Z: z}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Validate reports whether every component is a finite number.
func (p Position) Validate() error {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: position components must be finite, got %v", ErrInvalidArgument, p)
		}
	}
	return nil
}

// Sub returns the component-wise difference p - o.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Dot returns the dot product of p and o treated as vectors.
func (p Position) Dot(o Position) float64 {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Norm returns the Euclidean length of p treated as a vector.
func (p Position) Norm() float64 {
	return math.Sqrt(p.Dot(p))
}

// DistanceTo returns the Euclidean distance between two points.
func (p Position) DistanceTo(o Position) float64 {
	return p.Sub(o).Norm()
}
