package terrain

import (
	"fmt"
	"testing"

	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/spatial"
)

func testGen(t *testing.T, cfg GenConfig) (*Generator, *spatial.Registry, *MapData) {
	t.Helper()
	g := NewGenerator(cfg, hexgrid.Layout{Size: 20}, DefaultSet())
	reg := spatial.NewRegistry()
	data, err := g.Generate(reg, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return g, reg, data
}

func smallCfg() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 8
	cfg.Height = 8
	cfg.Seed = 42
	return cfg
}

func TestGenerateCoversFullGrid(t *testing.T) {
	_, reg, data := testGen(t, smallCfg())

	want := 9 * 9 // [-4,4] x [-4,4]
	if len(data.Terrain) != want {
		t.Fatalf("terrain cells = %d, want %d", len(data.Terrain), want)
	}
	if reg.GeometryCount() != want {
		t.Fatalf("geometry records = %d, want %d", reg.GeometryCount(), want)
	}

	for q := -4; q <= 4; q++ {
		for r := -4; r <= 4; r++ {
			c := hexgrid.HexCoord{Q: q, R: r}
			g, ok := reg.StaticGeometry(c.GeometryID())
			if !ok {
				t.Fatalf("missing polygon for %v", c)
			}
			if g.Kind != spatial.KindPolygon || len(g.Vertices) != 6 {
				t.Fatalf("cell %v: kind=%v vertices=%d", c, g.Kind, len(g.Vertices))
			}
			if Category(g.Category) != data.Terrain[c] {
				t.Fatalf("cell %v: polygon category %q != terrain %q", c, g.Category, data.Terrain[c])
			}
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	_, _, a := testGen(t, smallCfg())
	_, _, b := testGen(t, smallCfg())

	for c, cat := range a.Terrain {
		if b.Terrain[c] != cat {
			t.Fatalf("cell %v differs across runs: %q vs %q", c, cat, b.Terrain[c])
		}
	}
	if len(a.Resources) != len(b.Resources) {
		t.Fatalf("resource counts differ: %d vs %d", len(a.Resources), len(b.Resources))
	}
	for id, kind := range a.Resources {
		if b.Resources[id] != kind {
			t.Fatalf("resource %s differs: %q vs %q", id, kind, b.Resources[id])
		}
	}
}

func TestResourcesSkipExcludedTerrain(t *testing.T) {
	_, reg, data := testGen(t, smallCfg())

	for id := range data.Resources {
		var q, r int
		if _, err := fmt.Sscanf(id, "resource_%d_%d", &q, &r); err != nil {
			t.Fatalf("bad resource id %q: %v", id, err)
		}
		cat := data.Terrain[hexgrid.HexCoord{Q: q, R: r}]
		if resourceExcluded[cat] {
			t.Fatalf("resource %s placed on excluded terrain %q", id, cat)
		}
		if _, ok := reg.EntityPosition(id); !ok {
			t.Fatalf("resource %s missing from registry", id)
		}
	}
}

func TestElevationWithinUnitRange(t *testing.T) {
	_, _, data := testGen(t, smallCfg())
	if len(data.Elevation) != len(data.Terrain) {
		t.Fatalf("elevation cells = %d, want %d", len(data.Elevation), len(data.Terrain))
	}
	for c, e := range data.Elevation {
		if e < 0 || e > 1 {
			t.Fatalf("elevation at %v = %v, want [0,1]", c, e)
		}
	}
}

func TestAdjacencyPassUsesPrePassSnapshot(t *testing.T) {
	// Force a grid where every neighbor contradiction resolves from the
	// snapshot: a single desert cell in an ocean field must be replaced
	// (ocean forbids desert), and the replacement comes from desert's own
	// preferred list via the offending-neighbor rule applied to its
	// ocean neighbors.
	g := NewGenerator(smallCfg(), hexgrid.Layout{Size: 20}, DefaultSet())

	assigned := make(map[hexgrid.HexCoord]Category)
	g.cells(func(c hexgrid.HexCoord) {
		assigned[c] = Ocean
	})
	target := hexgrid.HexCoord{Q: 0, R: 0}
	assigned[target] = Desert

	out := g.applyAdjacencyRules(assigned)

	// Desert forbids ocean neighbors, so the center cannot stay desert.
	if out[target] == Desert {
		t.Fatal("desert cell surrounded by ocean survived the adjacency pass")
	}
	// The ocean neighbors of the desert cell see a forbidden neighbor and
	// re-roll from desert's preferred list, computed against the pre-pass
	// snapshot, so the result holds even though the center also changed.
	desertPref := DefaultSet().RulesFor(Desert).Preferred
	for _, n := range target.Neighbors() {
		if !g.inGrid(n) {
			continue
		}
		if !contains(desertPref, out[n]) {
			t.Fatalf("neighbor %v = %q, want a desert-preferred category %v", n, out[n], desertPref)
		}
	}
	// A far-away all-ocean cell keeps its category untouched.
	far := hexgrid.HexCoord{Q: 3, R: 3}
	if out[far] != Ocean {
		t.Fatalf("undisturbed ocean cell changed to %q", out[far])
	}
}

func TestWeightedPickHonorsCandidates(t *testing.T) {
	g := NewGenerator(smallCfg(), hexgrid.Layout{Size: 20}, DefaultSet())
	candidates := []Category{Plain, Forest}
	for i := 0; i < 100; i++ {
		got := g.set.WeightedPick(g.rng, candidates)
		if got != Plain && got != Forest {
			t.Fatalf("pick %q outside candidate set", got)
		}
	}
	if got := g.set.WeightedPick(g.rng, nil); got != Baseline {
		t.Fatalf("empty candidates = %q, want baseline", got)
	}
}

func TestPolygonInsertOrderFollowsPriority(t *testing.T) {
	// Priorities only control draw order, but the contract is that lower
	// priority categories are inserted first. Verify the sort key itself.
	set := DefaultSet()
	if set.Priority(Plain) >= set.Priority(Ocean) {
		t.Fatal("plain must sort before ocean")
	}
	if set.Priority(Desert) >= set.Priority(Swamp) {
		t.Fatal("desert must sort before swamp")
	}
}
