// Package hexgrid provides the hex grid coordinate model and the pure
// conversions between axial hex coordinates, Cartesian world space, and
// screen pixels. Uses axial coordinates (q, r); the third cube coordinate
// s is derived as -q-r.
package hexgrid

import "fmt"

// HexCoord represents a cell on the hex grid using axial coordinates.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// GeometryID returns the registry geometry id for this cell. Every generated
// map cell is stored as a static polygon under this naming convention.
func (h HexCoord) GeometryID() string {
	return fmt.Sprintf("hex_%d_%d", h.Q, h.R)
}

// NeighborDirections defines the six neighbor offsets in axial coordinates.
var NeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: -1, R: 0},
	{Q: 0, R: 1},
	{Q: 0, R: -1},
	{Q: 1, R: -1},
	{Q: -1, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range NeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates: the max of the
// three absolute differences in cube coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
