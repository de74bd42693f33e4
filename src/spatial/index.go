// Package spatial builds the per-frame coordinate lookup used by the grid renderer.
package spatial

import (
	"sort"

	"parking-viewer/src/models"
)

type CellKind string

const (
	KindSpot    CellKind = "spot"
	KindCarOnly CellKind = "car_only"
)

// Coord is a grid coordinate.
type Coord struct {
	X, Y int
}

// Cell is what occupies one coordinate in a frame. Car is nil for an empty spot.
type Cell struct {
	Kind CellKind
	Spot *models.MSpot
	Car  *models.MCar
}

// Index maps coordinates to occupants for one snapshot. It is built once and
// never mutated afterwards.
type Index struct {
	cells      map[Coord]Cell
	collisions []Coord
}

// Build indexes every spot, then attaches each car to the cell at its
// coordinate or creates a car_only cell. When several cars share a coordinate
// the last one wins and the coordinate is reported by Collisions.
func Build(snap *models.MSnapshot) *Index {
	if snap == nil {
		return &Index{cells: map[Coord]Cell{}}
	}

	idx := &Index{cells: make(map[Coord]Cell, len(snap.Spots)+len(snap.Cars))}

	for i := range snap.Spots {
		s := &snap.Spots[i]
		c := Coord{s.X, s.Y}
		if _, dup := idx.cells[c]; dup {
			idx.collisions = append(idx.collisions, c)
		}
		idx.cells[c] = Cell{Kind: KindSpot, Spot: s}
	}

	for i := range snap.Cars {
		car := &snap.Cars[i]
		c := Coord{car.X, car.Y}
		cell, ok := idx.cells[c]
		if !ok {
			idx.cells[c] = Cell{Kind: KindCarOnly, Car: car}
			continue
		}
		if cell.Car != nil {
			idx.collisions = append(idx.collisions, c)
		}
		cell.Car = car
		idx.cells[c] = cell
	}

	return idx
}

// Lookup returns the occupant at (x, y).
func (i *Index) Lookup(x, y int) (Cell, bool) {
	c, ok := i.cells[Coord{x, y}]
	return c, ok
}

// Len is the number of distinct occupied coordinates.
func (i *Index) Len() int {
	return len(i.cells)
}

// Collisions lists coordinates that received more than one spot or car.
func (i *Index) Collisions() []Coord {
	out := make([]Coord, len(i.collisions))
	copy(out, i.collisions)
	return out
}

// Coords returns occupied coordinates in row-major order.
func (i *Index) Coords() []Coord {
	out := make([]Coord, 0, len(i.cells))
	for c := range i.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Y != out[b].Y {
			return out[a].Y < out[b].Y
		}
		return out[a].X < out[b].X
	})
	return out
}
