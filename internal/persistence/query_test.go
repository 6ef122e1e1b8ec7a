package persistence

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/hexcrown/internal/spatial"
)

func queryFixture(t *testing.T) (*Store, *Query) {
	t.Helper()
	s := openTestStore(t)
	reg := spatial.NewRegistry()
	reg.AddEntity("unit_1", spatial.Position{X: 0.1, Y: 0, Z: 0})
	reg.AddEntity("unit_2", spatial.Position{X: 5, Y: 0, Z: 0})
	reg.AddEntity("resource_0_0", spatial.Position{X: 10, Y: 0, Z: 0})
	reg.AddEntity("lonewolf", spatial.Position{X: 100, Y: 100, Z: 0})
	reg.AddStaticPlane("ground", spatial.Position{}, spatial.Position{Z: 2}, "ground_plane")
	reg.AddStaticPolygon("wall_1", []spatial.Position{
		{X: 50, Y: 0}, {X: 50, Y: 10}, {X: 52, Y: 5},
	}, "wall")
	if err := s.Save(reg); err != nil {
		t.Fatal(err)
	}
	return s, s.Query()
}

func TestCountEntities(t *testing.T) {
	_, q := queryFixture(t)
	n, err := q.CountEntities()
	if err != nil {
		t.Fatalf("CountEntities: %v", err)
	}
	if n != 4 {
		t.Fatalf("count = %d, want 4", n)
	}
}

func TestCountEntitiesByPrefix(t *testing.T) {
	_, q := queryFixture(t)

	counts, err := q.CountEntitiesByPrefix("unit")
	if err != nil {
		t.Fatalf("CountEntitiesByPrefix: %v", err)
	}
	if counts["unit"] != 2 || len(counts) != 1 {
		t.Fatalf("counts = %v, want map[unit:2]", counts)
	}

	// An id without an underscore groups under itself.
	counts, err = q.CountEntitiesByPrefix("lone")
	if err != nil {
		t.Fatal(err)
	}
	if counts["lonewolf"] != 1 {
		t.Fatalf("counts = %v, want map[lonewolf:1]", counts)
	}
}

func TestEntitiesInBoundingBox(t *testing.T) {
	_, q := queryFixture(t)

	got, err := q.EntitiesInBoundingBox(
		spatial.Position{X: -1, Y: -1, Z: -1},
		spatial.Position{X: 6, Y: 1, Z: 1},
	)
	if err != nil {
		t.Fatalf("EntitiesInBoundingBox: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want unit_1 and unit_2", got)
	}
	if _, ok := got["unit_1"]; !ok {
		t.Fatal("unit_1 missing from box")
	}
	if _, ok := got["unit_2"]; !ok {
		t.Fatal("unit_2 missing from box")
	}

	// Inclusive bounds: an entity exactly on the boundary is inside.
	got, err = q.EntitiesInBoundingBox(
		spatial.Position{X: 5, Y: 0, Z: 0},
		spatial.Position{X: 5, Y: 0, Z: 0},
	)
	if err != nil || len(got) != 1 {
		t.Fatalf("boundary box got %v err %v", got, err)
	}
}

func TestEntitiesInBoundingBoxRejectsInvertedBounds(t *testing.T) {
	_, q := queryFixture(t)
	_, err := q.EntitiesInBoundingBox(
		spatial.Position{X: 1, Y: 0, Z: 0},
		spatial.Position{X: 0, Y: 5, Z: 5},
	)
	if !errors.Is(err, spatial.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFindNearestEntityHonorsMaxDistance(t *testing.T) {
	_, q := queryFixture(t)

	// Entities at distances 0.1, 5, 10 from origin; cutoff 3 only admits
	// the nearest.
	id, pos, ok, err := q.FindNearestEntity(spatial.Position{}, "", 3)
	if err != nil {
		t.Fatalf("FindNearestEntity: %v", err)
	}
	if !ok || id != "unit_1" {
		t.Fatalf("nearest = %q ok=%v, want unit_1", id, ok)
	}
	if pos.X != 0.1 {
		t.Fatalf("pos = %v", pos)
	}

	// Nothing within range and no entities at all look identical.
	_, _, ok, err = q.FindNearestEntity(spatial.Position{X: -500}, "", 3)
	if err != nil || ok {
		t.Fatalf("far query: ok=%v err=%v, want miss", ok, err)
	}
}

func TestFindNearestEntityPrefixFilter(t *testing.T) {
	_, q := queryFixture(t)
	id, _, ok, err := q.FindNearestEntity(spatial.Position{}, "resource_", 30)
	if err != nil || !ok {
		t.Fatalf("prefix query: ok=%v err=%v", ok, err)
	}
	if id != "resource_0_0" {
		t.Fatalf("nearest resource = %q", id)
	}
}

func TestFindNearestEntityTieBreaksLexicographically(t *testing.T) {
	s := openTestStore(t)
	reg := spatial.NewRegistry()
	reg.AddEntity("unit_b", spatial.Position{X: 2})
	reg.AddEntity("unit_a", spatial.Position{X: -2})
	if err := s.Save(reg); err != nil {
		t.Fatal(err)
	}

	id, _, ok, err := s.Query().FindNearestEntity(spatial.Position{}, "", 10)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if id != "unit_a" {
		t.Fatalf("tie broke to %q, want unit_a", id)
	}
}

func TestFindNearestEntityDefaultCutoff(t *testing.T) {
	_, q := queryFixture(t)
	// lonewolf sits ~141 units from the origin, beyond the default 30-unit
	// cutoff that a negative maxDistance falls back to.
	_, _, ok, err := q.FindNearestEntity(spatial.Position{}, "lone", -1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("entity beyond default cutoff returned")
	}
}

func TestFindNearestEntityZeroCutoff(t *testing.T) {
	_, q := queryFixture(t)

	// Zero is a real cutoff, not a request for the default: only an entity
	// at the exact query point matches.
	_, _, ok, err := q.FindNearestEntity(spatial.Position{X: 0.05}, "unit", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("zero cutoff matched an entity at distance 0.05")
	}

	id, _, ok, err := q.FindNearestEntity(spatial.Position{X: 0.1}, "unit", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != "unit_1" {
		t.Fatalf("zero cutoff at the entity's own position: id=%q ok=%v", id, ok)
	}
}

func TestNearGeometryPlaneDistance(t *testing.T) {
	_, q := queryFixture(t)

	// unit_1 is at z=0, ground plane passes through origin with normal +z:
	// exact distance 0.
	near, err := q.NearGeometry("unit_1", "ground_plane", 0.5)
	if err != nil {
		t.Fatalf("NearGeometry: %v", err)
	}
	if !near {
		t.Fatal("entity on the plane reported far")
	}
}

func TestNearGeometryPolygonUsesVertexDistance(t *testing.T) {
	s := openTestStore(t)
	reg := spatial.NewRegistry()
	// Entity sits 1 unit from the polygon edge midpoint but 5 units from
	// the nearest vertex; the approximation measures vertices only.
	reg.AddEntity("unit_1", spatial.Position{X: 1, Y: 5, Z: 0})
	reg.AddStaticPolygon("wall_1", []spatial.Position{
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: -5, Y: 5},
	}, "wall")
	if err := s.Save(reg); err != nil {
		t.Fatal(err)
	}
	q := s.Query()

	near, err := q.NearGeometry("unit_1", "wall", 2)
	if err != nil {
		t.Fatal(err)
	}
	if near {
		t.Fatal("vertex approximation should miss at cutoff 2")
	}

	near, err = q.NearGeometry("unit_1", "wall", math.Sqrt(26)+0.01)
	if err != nil {
		t.Fatal(err)
	}
	if !near {
		t.Fatal("entity within vertex distance reported far")
	}
}

func TestNearGeometryUnknownEntity(t *testing.T) {
	_, q := queryFixture(t)
	_, err := q.NearGeometry("ghost", "wall", 5)
	if !errors.Is(err, spatial.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNearGeometryNegativeDistance(t *testing.T) {
	_, q := queryFixture(t)
	_, err := q.NearGeometry("unit_1", "wall", -1)
	if !errors.Is(err, spatial.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestGeometryByCategory(t *testing.T) {
	_, q := queryFixture(t)
	got, err := q.GeometryByCategory("wall")
	if err != nil {
		t.Fatalf("GeometryByCategory: %v", err)
	}
	g, ok := got["wall_1"]
	if !ok || g.Kind != spatial.KindPolygon || len(g.Vertices) != 3 {
		t.Fatalf("wall record = %+v ok=%v", g, ok)
	}

	planes, err := q.GeometryByCategory("ground_plane")
	if err != nil {
		t.Fatal(err)
	}
	p := planes["ground"]
	if p.Kind != spatial.KindPlane || p.Normal.Z != 2 {
		t.Fatalf("plane record = %+v", p)
	}
}
