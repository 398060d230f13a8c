package graph

import "math/rand/v2"

// Placement chooses a position for a node that carries none in its record.
type Placement interface {
	Place(id string, index int) Position
}

type PlacementFunc func(id string, index int) Position

func (f PlacementFunc) Place(id string, index int) Position {
	return f(id, index)
}

// RandomPlacement scatters nodes over a 500x500 area.
var RandomPlacement Placement = PlacementFunc(func(string, int) Position {
	return Position{X: rand.Float64() * 500, Y: rand.Float64() * 500}
})

// GridPlacement lays nodes out row by row in document order.
type GridPlacement struct {
	Columns int
	Spacing float64
}

func (slf GridPlacement) Place(_ string, index int) Position {
	columns := slf.Columns
	if columns <= 0 {
		columns = 4
	}
	spacing := slf.Spacing
	if spacing <= 0 {
		spacing = 250
	}
	return Position{
		X: float64(index%columns) * spacing,
		Y: float64(index/columns) * spacing,
	}
}
