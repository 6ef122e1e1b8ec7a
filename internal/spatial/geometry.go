package spatial

import "fmt"

// GeometryKind discriminates the two static geometry shapes.
type GeometryKind string

const (
	KindPlane   GeometryKind = "plane"
	KindPolygon GeometryKind = "polygon"
)

// Geometry is an immutable static spatial feature: either an infinite plane
// (origin + normal) or a polygon (ordered vertex ring). Category is a
// free-form tag: terrain type for map hexes, structural class otherwise.
type Geometry struct {
	Kind     GeometryKind `json:"kind"`
	Category string       `json:"category"`

	// Plane fields (Kind == KindPlane).
	Origin Position `json:"origin,omitempty"`
	Normal Position `json:"normal,omitempty"`

	// Polygon fields (Kind == KindPolygon). At least 3 vertices.
	Vertices []Position `json:"vertices,omitempty"`
}

func (g Geometry) validate() error {
	switch g.Kind {
	case KindPlane:
		if err := g.Origin.Validate(); err != nil {
			return fmt.Errorf("plane origin: %w", err)
		}
		if err := g.Normal.Validate(); err != nil {
			return fmt.Errorf("plane normal: %w", err)
		}
		if g.Normal.Norm() == 0 {
			return fmt.Errorf("%w: plane normal must be non-zero", ErrInvalidArgument)
		}
	case KindPolygon:
		if len(g.Vertices) < 3 {
			return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidArgument, len(g.Vertices))
		}
		for i, v := range g.Vertices {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("polygon vertex %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("%w: unknown geometry kind %q", ErrInvalidArgument, g.Kind)
	}
	return nil
}

// clone returns a deep copy so registry snapshots cannot alias internal state.
func (g Geometry) clone() Geometry {
	out := g
	if g.Vertices != nil {
		out.Vertices = make([]Position, len(g.Vertices))
		copy(out.Vertices, g.Vertices)
	}
	return out
}
