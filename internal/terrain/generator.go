package terrain

import (
	"fmt"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/spatial"
)

// GenConfig holds map generation parameters. Width and Height count hexes
// along the two axial directions; the grid spans [-w/2, w/2] x [-h/2, h/2]
// inclusive, with w/2 truncating toward zero. An even Width therefore
// covers w+1 columns and an odd Width exactly w, symmetric around the
// origin either way; there is no extra column on the negative side for
// odd sizes.
type GenConfig struct {
	Width  int
	Height int
	Seed   int64 // 0 = random

	SeedPoints     int     // number of terrain seed points scattered on the grid
	NoiseChance    float64 // chance a cell ignores its nearest seed and rolls a weighted category
	ResourceChance float64 // chance a non-excluded cell receives a resource entity

	// Cascade reproduces the historical in-place adjacency pass, where each
	// cell's replacement immediately feeds its later neighbors in the same
	// pass (more chaotic borders). Default false: all replacements are
	// computed from the pre-pass snapshot, then committed together.
	Cascade bool
}

// DefaultGenConfig returns the standard map parameters.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:          20,
		Height:         20,
		SeedPoints:     20,
		NoiseChance:    0.1,
		ResourceChance: 0.1,
	}
}

// MapData is the generator output beyond what lands in the spatial registry:
// the final per-cell category, scattered resource kinds by entity id, and the
// visual-only elevation field.
type MapData struct {
	Terrain   map[hexgrid.HexCoord]Category
	Resources map[string]ResourceKind

	// Elevation in [0,1] per cell, sampled from layered simplex noise.
	// Renderer shading only; category assignment never reads it.
	Elevation map[hexgrid.HexCoord]float64
}

// Saver snapshots a registry to durable storage. Satisfied by the
// persistence store.
type Saver interface {
	Save(*spatial.Registry) error
}

// Generator assigns terrain to every hex cell and populates the registry
// with one static polygon per cell plus scattered resource entities.
type Generator struct {
	cfg    GenConfig
	layout hexgrid.Layout
	set    *Set
	rng    *rand.Rand
	noise  opensimplex.Noise
}

// NewGenerator creates a generator. A zero seed is replaced with a random
// one so distinct runs produce distinct maps unless pinned.
func NewGenerator(cfg GenConfig, layout hexgrid.Layout, set *Set) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = rand.Int63()
	}
	return &Generator{
		cfg:    cfg,
		layout: layout,
		set:    set,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		noise:  opensimplex.NewNormalized(cfg.Seed + 1),
	}
}

// Generate runs the full pipeline against reg: seed scattering, nearest-seed
// assignment with noise, the adjacency-rule pass, polygon emission in render
// priority order, resource scattering, and a final snapshot through saver
// (skipped when saver is nil).
func (g *Generator) Generate(reg *spatial.Registry, saver Saver) (*MapData, error) {
	assigned := g.assignFromSeeds()
	final := g.applyAdjacencyRules(assigned)

	if err := g.emitPolygons(reg, final); err != nil {
		return nil, err
	}

	data := &MapData{
		Terrain:   final,
		Resources: make(map[string]ResourceKind),
		Elevation: make(map[hexgrid.HexCoord]float64),
	}
	if err := g.scatterResources(reg, final, data.Resources); err != nil {
		return nil, err
	}
	g.sampleElevation(data.Elevation)

	if saver != nil {
		if err := saver.Save(reg); err != nil {
			return nil, fmt.Errorf("persist generated map: %w", err)
		}
	}
	return data, nil
}

// cells iterates the grid in fixed (q, r) order so generation is
// deterministic for a given seed.
func (g *Generator) cells(fn func(hexgrid.HexCoord)) {
	w2 := g.cfg.Width / 2
	h2 := g.cfg.Height / 2
	for q := -w2; q <= w2; q++ {
		for r := -h2; r <= h2; r++ {
			fn(hexgrid.HexCoord{Q: q, R: r})
		}
	}
}

func (g *Generator) inGrid(h hexgrid.HexCoord) bool {
	w2 := g.cfg.Width / 2
	h2 := g.cfg.Height / 2
	return h.Q >= -w2 && h.Q <= w2 && h.R >= -h2 && h.R <= h2
}

// assignFromSeeds scatters seed points and gives every cell the category of
// its nearest seed under cube distance, with first-seen tie-break. A small
// noise chance overrides the seed assignment with a weighted category roll.
func (g *Generator) assignFromSeeds() map[hexgrid.HexCoord]Category {
	w2 := g.cfg.Width / 2
	h2 := g.cfg.Height / 2

	type seedPoint struct {
		coord hexgrid.HexCoord
		cat   Category
	}
	cats := g.set.Categories()
	seeds := make([]seedPoint, g.cfg.SeedPoints)
	for i := range seeds {
		seeds[i] = seedPoint{
			coord: hexgrid.HexCoord{
				Q: g.rng.Intn(2*w2+1) - w2,
				R: g.rng.Intn(2*h2+1) - h2,
			},
			cat: cats[g.rng.Intn(len(cats))],
		}
	}

	assigned := make(map[hexgrid.HexCoord]Category, (2*w2+1)*(2*h2+1))
	g.cells(func(c hexgrid.HexCoord) {
		closest := Baseline
		minDist := int(^uint(0) >> 1)
		for _, s := range seeds {
			if d := hexgrid.Distance(c, s.coord); d < minDist {
				minDist = d
				closest = s.cat
			}
		}
		if g.rng.Float64() < g.cfg.NoiseChance {
			closest = g.set.WeightedPick(g.rng, cats)
		}
		assigned[c] = closest
	})
	return assigned
}

// applyAdjacencyRules runs the neighbor-rule pass. A neighbor on a cell's
// forbidden list replaces the cell with a weighted draw from the offending
// neighbor's preferred categories (the forbidden terrain spreads its own
// preference). Otherwise, a neighbor outside the allowed set replaces the
// cell with a draw from its own preferred list.
//
// In the default mode every replacement is computed from the pre-pass
// snapshot and committed at the end, so results do not depend on cell
// iteration order. Cascade mode mutates in place as the pass walks the grid.
func (g *Generator) applyAdjacencyRules(assigned map[hexgrid.HexCoord]Category) map[hexgrid.HexCoord]Category {
	read := assigned
	out := make(map[hexgrid.HexCoord]Category, len(assigned))
	if g.cfg.Cascade {
		for c, cat := range assigned {
			out[c] = cat
		}
		read = out
	}

	g.cells(func(c hexgrid.HexCoord) {
		out[c] = g.ruleFor(c, read)
	})
	return out
}

func (g *Generator) ruleFor(c hexgrid.HexCoord, read map[hexgrid.HexCoord]Category) Category {
	current := read[c]
	rules := g.set.RulesFor(current)

	var neighborCats []Category
	for _, n := range c.Neighbors() {
		if !g.inGrid(n) {
			continue
		}
		nt, ok := read[n]
		if !ok {
			nt = Baseline
		}
		neighborCats = append(neighborCats, nt)
	}

	for _, nt := range neighborCats {
		if contains(rules.Forbidden, nt) {
			return g.set.WeightedPick(g.rng, g.set.RulesFor(nt).Preferred)
		}
	}

	for _, nt := range neighborCats {
		if !contains(rules.Allowed, nt) {
			return g.set.WeightedPick(g.rng, rules.Preferred)
		}
	}
	return current
}

// emitPolygons inserts one static polygon per cell, ordered by ascending
// render priority. Draw order is the only consumer of the ordering, but the
// add order is part of the exposed contract and kept stable.
func (g *Generator) emitPolygons(reg *spatial.Registry, final map[hexgrid.HexCoord]Category) error {
	type hexPoly struct {
		coord hexgrid.HexCoord
		cat   Category
	}
	var polys []hexPoly
	g.cells(func(c hexgrid.HexCoord) {
		polys = append(polys, hexPoly{coord: c, cat: final[c]})
	})
	sort.SliceStable(polys, func(i, j int) bool {
		return g.set.Priority(polys[i].cat) < g.set.Priority(polys[j].cat)
	})

	for _, p := range polys {
		verts := g.layout.Corners(p.coord)
		if err := reg.AddStaticPolygon(p.coord.GeometryID(), verts, string(p.cat)); err != nil {
			return fmt.Errorf("emit hex %v: %w", p.coord, err)
		}
	}
	return nil
}

// scatterResources drops resource entities at cell centers with uniform
// random kind, skipping the excluded categories.
func (g *Generator) scatterResources(reg *spatial.Registry, final map[hexgrid.HexCoord]Category, out map[string]ResourceKind) error {
	var firstErr error
	g.cells(func(c hexgrid.HexCoord) {
		if firstErr != nil {
			return
		}
		if resourceExcluded[final[c]] {
			return
		}
		if g.rng.Float64() >= g.cfg.ResourceChance {
			return
		}
		id := fmt.Sprintf("resource_%d_%d", c.Q, c.R)
		if err := reg.AddEntity(id, g.layout.ToCartesian(c)); err != nil {
			firstErr = fmt.Errorf("place resource %v: %w", c, err)
			return
		}
		out[id] = ResourceKinds[g.rng.Intn(len(ResourceKinds))]
	})
	return firstErr
}

// sampleElevation fills the visual elevation field from layered simplex
// noise sampled at each cell's world position.
func (g *Generator) sampleElevation(out map[hexgrid.HexCoord]float64) {
	scale := g.layout.Size * 8
	if scale == 0 {
		scale = 1
	}
	g.cells(func(c hexgrid.HexCoord) {
		pos := g.layout.ToCartesian(c)
		out[c] = octaveNoise(g.noise, pos.X/scale, pos.Y/scale, 3, 1.0, 0.5)
	})
}

// octaveNoise layers multiple noise frequencies for a natural look.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
