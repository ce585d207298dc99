package world

import (
	"math"

	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/geom"
)

// Grid is a uniform cell index over entity positions. Radius queries visit
// only the cells overlapping the query square and leave exact distance
// filtering to the caller.
// Accessed only from the game loop goroutine, no locks.
type Grid struct {
	cellSize float64
	cells    map[cellKey]map[ecs.EntityID]struct{}
	where    map[ecs.EntityID]cellKey
}

type cellKey struct {
	cx int32
	cy int32
}

func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 8
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[ecs.EntityID]struct{}),
		where:    make(map[ecs.EntityID]cellKey),
	}
}

func (g *Grid) key(p geom.Vec2) cellKey {
	return cellKey{
		cx: int32(math.Floor(p.X / g.cellSize)),
		cy: int32(math.Floor(p.Y / g.cellSize)),
	}
}

// Add places an entity into the grid (or moves it if already present).
func (g *Grid) Add(id ecs.EntityID, p geom.Vec2) {
	k := g.key(p)
	if old, ok := g.where[id]; ok {
		if old == k {
			return
		}
		g.removeFrom(id, old)
	}
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.where[id] = k
}

// Move updates an entity's cell when its position changes.
func (g *Grid) Move(id ecs.EntityID, p geom.Vec2) { g.Add(id, p) }

// Remove takes an entity out of the grid. Implements ecs.Removable.
func (g *Grid) Remove(id ecs.EntityID) {
	if k, ok := g.where[id]; ok {
		g.removeFrom(id, k)
		delete(g.where, id)
	}
}

func (g *Grid) removeFrom(id ecs.EntityID, k cellKey) {
	cell := g.cells[k]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Candidates returns every id in cells overlapping the square of half-size
// radius around p.
func (g *Grid) Candidates(p geom.Vec2, radius float64) []ecs.EntityID {
	lo := g.key(geom.V(p.X-radius, p.Y-radius))
	hi := g.key(geom.V(p.X+radius, p.Y+radius))
	var result []ecs.EntityID
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			for id := range g.cells[cellKey{cx, cy}] {
				result = append(result, id)
			}
		}
	}
	return result
}

// Len returns the number of indexed entities.
func (g *Grid) Len() int { return len(g.where) }
