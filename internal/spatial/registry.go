package spatial

import "fmt"

// Registry is the authoritative in-memory map of entity IDs to positions and
// geometry IDs to static shapes. Entity IDs are opaque, case-sensitive
// strings; by convention the segment before the first underscore names the
// logical type ("unit", "city", "resource", "hex") but the registry never
// interprets it.
//
// Not safe for concurrent use. The engine is single-threaded and turn-based;
// callers that add goroutines own the locking.
type Registry struct {
	entities map[string]Position
	geometry map[string]Geometry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]Position),
		geometry: make(map[string]Geometry),
	}
}

// AddEntity places or moves an entity. Overwriting an existing id is
// last-write-wins, not an error.
func (r *Registry) AddEntity(id string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return fmt.Errorf("entity %q: %w", id, err)
	}
	r.entities[id] = pos
	return nil
}

// RemoveEntity deletes an entity. Unlike AddEntity, removing an unknown id
// is an error.
func (r *Registry) RemoveEntity(id string) error {
	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("%w: entity %q", ErrNotFound, id)
	}
	delete(r.entities, id)
	return nil
}

// UpdateEntityPosition moves an existing entity.
func (r *Registry) UpdateEntityPosition(id string, pos Position) error {
	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("%w: entity %q", ErrNotFound, id)
	}
	if err := pos.Validate(); err != nil {
		return fmt.Errorf("entity %q: %w", id, err)
	}
	r.entities[id] = pos
	return nil
}

// EntityPosition returns the entity's position. A missing entity is a
// lookup miss, not an error.
func (r *Registry) EntityPosition(id string) (Position, bool) {
	pos, ok := r.entities[id]
	return pos, ok
}

// AllEntityPositions returns a snapshot copy of every entity position.
func (r *Registry) AllEntityPositions() map[string]Position {
	out := make(map[string]Position, len(r.entities))
	for id, pos := range r.entities {
		out[id] = pos
	}
	return out
}

// EntityCount returns the number of registered entities.
func (r *Registry) EntityCount() int {
	return len(r.entities)
}

// AddStaticPolygon registers an immutable polygon. Geometry ids are globally
// unique: a duplicate id is an error, unlike entity overwrites.
func (r *Registry) AddStaticPolygon(id string, vertices []Position, category string) error {
	g := Geometry{Kind: KindPolygon, Vertices: vertices, Category: category}
	return r.addGeometry(id, g)
}

// AddStaticPlane registers an immutable plane with the same duplicate and
// validation rules as AddStaticPolygon.
func (r *Registry) AddStaticPlane(id string, origin, normal Position, category string) error {
	g := Geometry{Kind: KindPlane, Origin: origin, Normal: normal, Category: category}
	return r.addGeometry(id, g)
}

func (r *Registry) addGeometry(id string, g Geometry) error {
	if _, ok := r.geometry[id]; ok {
		return fmt.Errorf("%w: geometry %q", ErrAlreadyExists, id)
	}
	if err := g.validate(); err != nil {
		return fmt.Errorf("geometry %q: %w", id, err)
	}
	r.geometry[id] = g.clone()
	return nil
}

// StaticGeometry returns the geometry record for id.
func (r *Registry) StaticGeometry(id string) (Geometry, bool) {
	g, ok := r.geometry[id]
	if !ok {
		return Geometry{}, false
	}
	return g.clone(), true
}

// RemoveStaticGeometry deletes a geometry record.
func (r *Registry) RemoveStaticGeometry(id string) error {
	if _, ok := r.geometry[id]; !ok {
		return fmt.Errorf("%w: geometry %q", ErrNotFound, id)
	}
	delete(r.geometry, id)
	return nil
}

// StaticGeometryByCategory returns all geometry records carrying the tag.
func (r *Registry) StaticGeometryByCategory(category string) map[string]Geometry {
	out := make(map[string]Geometry)
	for id, g := range r.geometry {
		if g.Category == category {
			out[id] = g.clone()
		}
	}
	return out
}

// AllStaticGeometry returns a snapshot copy of every geometry record.
func (r *Registry) AllStaticGeometry() map[string]Geometry {
	out := make(map[string]Geometry, len(r.geometry))
	for id, g := range r.geometry {
		out[id] = g.clone()
	}
	return out
}

// GeometryCount returns the number of registered geometry records.
func (r *Registry) GeometryCount() int {
	return len(r.geometry)
}
