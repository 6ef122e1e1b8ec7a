// Package path provides A* pathfinding over the generated hex map. Cells are
// traversable when the registry holds a static polygon for them; edge cost is
// the destination cell's terrain movement cost.
package path

import (
	"container/heap"

	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/spatial"
	"github.com/talgya/hexcrown/internal/terrain"
)

// Planner runs A* searches against a registry's hex polygons.
type Planner struct {
	reg    *spatial.Registry
	layout hexgrid.Layout
	set    *terrain.Set
}

// NewPlanner creates a planner over the given registry and terrain table.
func NewPlanner(reg *spatial.Registry, layout hexgrid.Layout, set *terrain.Set) *Planner {
	return &Planner{reg: reg, layout: layout, set: set}
}

type node struct {
	coord  hexgrid.HexCoord
	g      int
	f      int
	index  int
	parent *node
}

// queue orders nodes by f-score, breaking ties by lower g, then by (q, r)
// so searches are fully deterministic.
type queue []*node

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g < b.g
	}
	if a.coord.Q != b.coord.Q {
		return a.coord.Q < b.coord.Q
	}
	return a.coord.R < b.coord.R
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// traversable reports whether the map has a cell polygon at the coordinate,
// and its movement cost if so.
func (p *Planner) traversable(c hexgrid.HexCoord) (int, bool) {
	g, ok := p.reg.StaticGeometry(c.GeometryID())
	if !ok {
		return 0, false
	}
	return p.set.MoveCost(terrain.Category(g.Category)), true
}

// FindPathHex returns the cell-by-cell path from start to goal, both
// inclusive, or nil when no path exists. Off-map cells are not traversable.
func (p *Planner) FindPathHex(start, goal hexgrid.HexCoord) []hexgrid.HexCoord {
	if _, ok := p.traversable(goal); !ok {
		return nil
	}

	open := &queue{}
	heap.Init(open)
	heap.Push(open, &node{coord: start, g: 0, f: hexgrid.Distance(start, goal)})

	gScore := map[hexgrid.HexCoord]int{start: 0}
	closed := make(map[hexgrid.HexCoord]bool)

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)
		if closed[current.coord] {
			continue
		}
		closed[current.coord] = true

		if current.coord == goal {
			return reconstruct(current)
		}

		for _, nc := range current.coord.Neighbors() {
			cost, ok := p.traversable(nc)
			if !ok || closed[nc] {
				continue
			}
			tentative := current.g + cost
			if best, seen := gScore[nc]; seen && tentative >= best {
				continue
			}
			gScore[nc] = tentative
			heap.Push(open, &node{
				coord:  nc,
				g:      tentative,
				f:      tentative + hexgrid.Distance(nc, goal),
				parent: current,
			})
		}
	}
	return nil
}

// FindPath is the world-space variant: positions are snapped to their hex
// cells and the path comes back as cell centers.
func (p *Planner) FindPath(start, goal spatial.Position) []spatial.Position {
	cells := p.FindPathHex(
		p.layout.FromCartesian(start.X, start.Y),
		p.layout.FromCartesian(goal.X, goal.Y),
	)
	if cells == nil {
		return nil
	}
	out := make([]spatial.Position, len(cells))
	for i, c := range cells {
		out[i] = p.layout.ToCartesian(c)
	}
	return out
}

// Cost sums the movement costs of every step along a path, excluding the
// start cell: entering a cell costs that cell's terrain cost.
func (p *Planner) Cost(cells []hexgrid.HexCoord) int {
	total := 0
	for _, c := range cells[min(1, len(cells)):] {
		cost, ok := p.traversable(c)
		if !ok {
			cost = 1
		}
		total += cost
	}
	return total
}

func reconstruct(n *node) []hexgrid.HexCoord {
	var rev []hexgrid.HexCoord
	for ; n != nil; n = n.parent {
		rev = append(rev, n.coord)
	}
	out := make([]hexgrid.HexCoord, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}
