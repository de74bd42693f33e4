package spatial

import "parking-viewer/src/models"

// Colour classes understood by the grid renderer
const (
	ClassParked   = "parked"
	ClassReserved = "reserved"
	ClassVIP      = "vip"
	ClassHandicap = "handicap"
	ClassFree     = "free"
	ClassRoad     = "road"
)

// Class picks the renderer colour for a cell. A spot is "parked" only when it is
// occupied and the car standing on it reports PARKED; an occupied spot without
// a parked car is reserved for a car still driving to it.
func Class(c Cell) string {
	if c.Spot == nil {
		return ClassRoad
	}
	switch {
	case c.Spot.Occupied && c.Car != nil && c.Car.State == models.CarParked:
		return ClassParked
	case c.Spot.Occupied:
		return ClassReserved
	case c.Spot.Type == models.SpotVIP:
		return ClassVIP
	case c.Spot.Type == models.SpotHandicap:
		return ClassHandicap
	default:
		return ClassFree
	}
}

// Views flattens the index into row-major render cells.
func (i *Index) Views() []models.MCellView {
	coords := i.Coords()
	out := make([]models.MCellView, 0, len(coords))
	for _, c := range coords {
		cell := i.cells[c]
		out = append(out, models.MCellView{
			X:     c.X,
			Y:     c.Y,
			Kind:  string(cell.Kind),
			Spot:  cell.Spot,
			Car:   cell.Car,
			Class: Class(cell),
		})
	}
	return out
}
