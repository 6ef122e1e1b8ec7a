package hexgrid

import (
	"math"

	"github.com/talgya/hexcrown/internal/spatial"
)

// Layout fixes the hex size used for world-space conversions. Flat-top
// orientation: a cell's center is at x = size*3/2*q, y = size*sqrt(3)*(r+q/2).
type Layout struct {
	Size float64
}

// ToCartesian returns the world-space center of a hex cell.
func (l Layout) ToCartesian(h HexCoord) spatial.Position {
	x := l.Size * 3 / 2 * float64(h.Q)
	y := l.Size * math.Sqrt(3) * (float64(h.R) + float64(h.Q)/2)
	return spatial.Position{X: x, Y: y, Z: 0}
}

// FromCartesian snaps a world-space point to the nearest hex cell using
// cube-coordinate rounding: round each fractional cube coordinate, then
// recompute the component with the largest rounding error from the other two
// so that x+y+z=0 still holds. Rounding each axis independently picks the
// wrong cell near edges.
func (l Layout) FromCartesian(x, y float64) HexCoord {
	fq := x / (l.Size * 3 / 2)
	fr := (y - fq*l.Size*math.Sqrt(3)/2) / (l.Size * math.Sqrt(3))
	return roundCube(fq, fr)
}

// roundCube converts fractional axial coordinates to the nearest cell.
// Cube mapping: cx = q, cy = r, cz = -q-r.
func roundCube(fq, fr float64) HexCoord {
	cx, cy := fq, fr
	cz := -cx - cy

	rx := math.Round(cx)
	ry := math.Round(cy)
	rz := math.Round(cz)

	dx := math.Abs(rx - cx)
	dy := math.Abs(ry - cy)
	dz := math.Abs(rz - cz)

	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy > dz:
		ry = -rx - rz
	default:
		// z has the largest error; correcting it does not affect q or r.
	}

	return HexCoord{Q: int(rx), R: int(ry)}
}

// Corners returns the six vertices of a hex cell at 60 degree increments,
// starting at the +x axis.
func (l Layout) Corners(h HexCoord) []spatial.Position {
	center := l.ToCartesian(h)
	verts := make([]spatial.Position, 6)
	for i := 0; i < 6; i++ {
		angle := math.Pi / 3 * float64(i)
		verts[i] = spatial.Position{
			X: center.X + l.Size*math.Cos(angle),
			Y: center.Y + l.Size*math.Sin(angle),
			Z: 0,
		}
	}
	return verts
}
