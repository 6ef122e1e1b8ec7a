// Package terrain holds the terrain category table (movement costs,
// generation weights, adjacency rules, render metadata) and the procedural
// map generator that assigns a category to every hex cell.
package terrain

import (
	"math/rand"
	"sort"
)

// Category names a terrain type. Categories double as the geometry category
// tag on map hex polygons in the spatial registry.
type Category string

const (
	Ocean    Category = "ocean"
	Plain    Category = "plain"
	Hill     Category = "hill"
	Mountain Category = "mountain"
	Stream   Category = "stream"
	Forest   Category = "forest"
	Desert   Category = "desert"
	Swamp    Category = "swamp"
)

// Baseline is the category assumed for neighbors outside the generated grid.
const Baseline = Plain

// Rules constrains which categories may sit next to each other. A forbidden
// neighbor forces a re-roll; preferred categories feed the weighted re-rolls.
type Rules struct {
	Allowed   []Category
	Preferred []Category
	Forbidden []Category
}

// Info carries the per-category metadata: core fields (MoveCost, Weight,
// Priority) are fixed at load time; Color and Sprite are visual-only and may
// be hot-reloaded from the config file.
type Info struct {
	MoveCost int     // movement cost for pathfinding, >= 1
	Weight   float64 // generation weight in [0, 1]
	Priority int     // render ordering: lower draws first (underneath)
	Color    [3]int
	Sprite   SpriteSpec
}

// Set is the full terrain table. Immutable at runtime except for the visual
// subset (see ApplyVisual).
type Set struct {
	rules map[Category]Rules
	info  map[Category]Info
}

// DefaultSet returns the built-in terrain table.
func DefaultSet() *Set {
	return &Set{
		rules: map[Category]Rules{
			Ocean: {
				Allowed:   []Category{Ocean, Stream, Plain, Swamp},
				Preferred: []Category{Ocean, Stream},
				Forbidden: []Category{Mountain, Hill, Forest, Desert},
			},
			Plain: {
				Allowed:   []Category{Plain, Hill, Stream, Ocean, Mountain, Forest, Desert, Swamp},
				Preferred: []Category{Plain, Hill, Forest},
				Forbidden: nil,
			},
			Hill: {
				Allowed:   []Category{Plain, Hill, Mountain, Stream, Forest},
				Preferred: []Category{Hill, Mountain},
				Forbidden: []Category{Ocean, Desert},
			},
			Mountain: {
				Allowed:   []Category{Mountain, Hill, Plain},
				Preferred: []Category{Mountain, Hill},
				Forbidden: []Category{Ocean, Stream, Swamp, Desert},
			},
			Stream: {
				Allowed:   []Category{Stream, Plain, Ocean, Hill, Swamp},
				Preferred: []Category{Stream, Ocean, Plain},
				Forbidden: []Category{Mountain, Desert},
			},
			Forest: {
				Allowed:   []Category{Plain, Hill, Forest, Stream},
				Preferred: []Category{Forest, Plain},
				Forbidden: []Category{Ocean, Mountain, Desert},
			},
			Desert: {
				Allowed:   []Category{Plain, Desert},
				Preferred: []Category{Desert, Plain},
				Forbidden: []Category{Ocean, Stream, Hill, Mountain, Forest, Swamp},
			},
			Swamp: {
				Allowed:   []Category{Plain, Stream, Ocean, Swamp},
				Preferred: []Category{Swamp, Stream},
				Forbidden: []Category{Mountain, Hill, Desert},
			},
		},
		info: map[Category]Info{
			Plain:    {MoveCost: 1, Weight: 0.30, Priority: 1, Color: [3]int{124, 176, 78}},
			Desert:   {MoveCost: 1, Weight: 0.06, Priority: 2, Color: [3]int{230, 210, 140}},
			Forest:   {MoveCost: 2, Weight: 0.16, Priority: 3, Color: [3]int{54, 120, 58}},
			Hill:     {MoveCost: 2, Weight: 0.12, Priority: 4, Color: [3]int{150, 135, 100}},
			Mountain: {MoveCost: 3, Weight: 0.10, Priority: 5, Color: [3]int{120, 110, 110}},
			Stream:   {MoveCost: 2, Weight: 0.08, Priority: 6, Color: [3]int{90, 150, 220}},
			Swamp:    {MoveCost: 3, Weight: 0.06, Priority: 7, Color: [3]int{86, 110, 90}},
			Ocean:    {MoveCost: 5, Weight: 0.12, Priority: 8, Color: [3]int{40, 80, 170}},
		},
	}
}

// Categories returns every category sorted by name for deterministic
// iteration.
func (s *Set) Categories() []Category {
	out := make([]Category, 0, len(s.info))
	for c := range s.info {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether the category exists in the table.
func (s *Set) Known(c Category) bool {
	_, ok := s.info[c]
	return ok
}

// MoveCost returns the movement cost for a category. Unknown categories
// (non-terrain geometry tags) cost the baseline 1.
func (s *Set) MoveCost(c Category) int {
	if info, ok := s.info[c]; ok {
		return info.MoveCost
	}
	return 1
}

// Weight returns the generation weight for a category.
func (s *Set) Weight(c Category) float64 {
	return s.info[c].Weight
}

// Priority returns the render priority for a category. Higher priorities are
// inserted later and drawn on top.
func (s *Set) Priority(c Category) int {
	if info, ok := s.info[c]; ok {
		return info.Priority
	}
	return s.info[Baseline].Priority
}

// Info returns the full metadata record for a category.
func (s *Set) Info(c Category) (Info, bool) {
	info, ok := s.info[c]
	return info, ok
}

// RulesFor returns the adjacency rules for a category.
func (s *Set) RulesFor(c Category) Rules {
	return s.rules[c]
}

// WeightedPick draws one category from candidates, with probability
// proportional to each candidate's generation weight.
func (s *Set) WeightedPick(rng *rand.Rand, candidates []Category) Category {
	if len(candidates) == 0 {
		return Baseline
	}
	total := 0.0
	for _, c := range candidates {
		total += s.Weight(c)
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))]
	}
	roll := rng.Float64() * total
	for _, c := range candidates {
		roll -= s.Weight(c)
		if roll < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

func contains(list []Category, c Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// ResourceKind names a scatterable map resource.
type ResourceKind string

const (
	ResourceWheat ResourceKind = "wheat"
	ResourceIron  ResourceKind = "iron"
)

// ResourceKinds lists every resource in deterministic order.
var ResourceKinds = []ResourceKind{ResourceWheat, ResourceIron}

// resourceExcluded are the categories that never receive scattered resources.
var resourceExcluded = map[Category]bool{
	Ocean:    true,
	Mountain: true,
	Swamp:    true,
}
