// Package topology derives the static road layout drawn under the parking grid.
//
// The rules mirror the movement constraints of the simulation backend. They are
// descriptive only: if the backend changes how cars may move, LaneOf must be
// changed with it or the map will show illegal paths as legal.
package topology

import (
	"fmt"
	"math"

	"parking-viewer/src/models"
)

type Direction int

const (
	LeftRight Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "left_right"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Corner int

const (
	CornerNone Corner = iota
	CornerIn
	CornerOut
)

func (c Corner) String() string {
	switch c {
	case CornerIn:
		return "in"
	case CornerOut:
		return "out"
	default:
		return "none"
	}
}

func (c Corner) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Lane is the classification of one cell.
type Lane struct {
	Direction Direction `json:"direction"`
	Corner    Corner    `json:"corner"`
}

func (l Lane) String() string {
	return fmt.Sprintf("%s/%s", l.Direction, l.Corner)
}

// LaneOf classifies (x, y) on a width x height grid.
//
// Rows 0 and height-1 are two-way boundary lanes. Otherwise column 0 runs down
// and column width-1 runs up. Interior columns alternate every three columns:
// bucket round(x/3) odd runs up, even runs down. Corners (0,0) and
// (width-1,height-1) are ingress, (width-1,0) and (0,height-1) egress.
func LaneOf(x, y, width, height int) Lane {
	return Lane{Direction: directionOf(x, y, width, height), Corner: cornerOf(x, y, width, height)}
}

func directionOf(x, y, width, height int) Direction {
	if y == 0 || y == height-1 {
		return LeftRight
	}
	if x == 0 {
		return Down
	}
	if x == width-1 {
		return Up
	}
	if int(math.Round(float64(x)/3))%2 == 1 {
		return Up
	}
	return Down
}

func cornerOf(x, y, width, height int) Corner {
	switch {
	case x == 0 && y == 0, x == width-1 && y == height-1:
		return CornerIn
	case x == width-1 && y == 0, x == 0 && y == height-1:
		return CornerOut
	default:
		return CornerNone
	}
}

// Layout classifies every cell of the grid, indexed [y][x].
func Layout(grid models.MGridConfig) [][]Lane {
	if grid.Width <= 0 || grid.Height <= 0 {
		return [][]Lane{}
	}
	rows := make([][]Lane, grid.Height)
	for y := range rows {
		rows[y] = make([]Lane, grid.Width)
		for x := range rows[y] {
			rows[y][x] = LaneOf(x, y, grid.Width, grid.Height)
		}
	}
	return rows
}
