package game

import "errors"

// EntityID identifies an entity within one simulation run. Zero means none.
type EntityID uint64

// Grid errors
var (
	ErrOutOfBounds  = errors.New("cell out of bounds")
	ErrCellOccupied = errors.New("cell occupied")
)

// Cell is a (column, lane) key on the lane grid
type Cell struct {
	Col  int `json:"col"`
	Lane int `json:"lane"`
}

// Grid maps each cell to at most one defender.
// Cells are stored row-major by lane: index = lane*cols + col.
type Grid struct {
	cols  int
	lanes int
	cells []EntityID
}

// NewGrid creates an empty grid
func NewGrid(cols, lanes int) *Grid {
	return &Grid{
		cols:  cols,
		lanes: lanes,
		cells: make([]EntityID, cols*lanes),
	}
}

// Cols returns the number of columns per lane
func (g *Grid) Cols() int { return g.cols }

// Lanes returns the number of lanes
func (g *Grid) Lanes() int { return g.lanes }

// InBounds reports whether (col, lane) is a cell of this grid
func (g *Grid) InBounds(col, lane int) bool {
	return col >= 0 && col < g.cols && lane >= 0 && lane < g.lanes
}

func (g *Grid) index(col, lane int) int {
	return lane*g.cols + col
}

// IsOccupied reports whether a defender holds the cell. Out-of-bounds cells are never occupied.
func (g *Grid) IsOccupied(col, lane int) bool {
	if !g.InBounds(col, lane) {
		return false
	}
	return g.cells[g.index(col, lane)] != 0
}

// Place registers a defender in a cell
func (g *Grid) Place(col, lane int, id EntityID) error {
	if !g.InBounds(col, lane) {
		return ErrOutOfBounds
	}
	idx := g.index(col, lane)
	if g.cells[idx] != 0 {
		return ErrCellOccupied
	}
	g.cells[idx] = id
	return nil
}

// Remove clears a cell. Removing an empty or out-of-bounds cell is a no-op.
func (g *Grid) Remove(col, lane int) {
	if !g.InBounds(col, lane) {
		return
	}
	g.cells[g.index(col, lane)] = 0
}

// DefenderAt returns the defender holding a cell
func (g *Grid) DefenderAt(col, lane int) (EntityID, bool) {
	if !g.InBounds(col, lane) {
		return 0, false
	}
	id := g.cells[g.index(col, lane)]
	return id, id != 0
}

// Occupied lists occupied cells in row-major order
func (g *Grid) Occupied() []Cell {
	var out []Cell
	for i, id := range g.cells {
		if id != 0 {
			out = append(out, Cell{Col: i % g.cols, Lane: i / g.cols})
		}
	}
	return out
}

// Count returns the number of occupied cells
func (g *Grid) Count() int {
	n := 0
	for _, id := range g.cells {
		if id != 0 {
			n++
		}
	}
	return n
}

// Reset clears every cell
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = 0
	}
}
