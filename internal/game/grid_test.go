package game

import (
	"errors"
	"testing"
)

func TestGridPlaceAndRemove(t *testing.T) {
	g := NewGrid(9, 5)

	if g.IsOccupied(3, 2) {
		t.Fatal("new grid should be empty")
	}
	if err := g.Place(3, 2, 7); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if !g.IsOccupied(3, 2) {
		t.Error("cell should be occupied after Place")
	}
	if id, ok := g.DefenderAt(3, 2); !ok || id != 7 {
		t.Errorf("DefenderAt = (%d, %v), want (7, true)", id, ok)
	}
	if err := g.Place(3, 2, 8); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("second Place err = %v, want ErrCellOccupied", err)
	}
	if id, _ := g.DefenderAt(3, 2); id != 7 {
		t.Errorf("failed Place overwrote cell: got %d", id)
	}

	g.Remove(3, 2)
	if g.IsOccupied(3, 2) {
		t.Error("cell should be empty after Remove")
	}
	// Removing again is harmless
	g.Remove(3, 2)
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(9, 5)

	tests := []struct {
		name      string
		col, lane int
		inBounds  bool
	}{
		{"origin", 0, 0, true},
		{"far corner", 8, 4, true},
		{"negative col", -1, 0, false},
		{"negative lane", 0, -1, false},
		{"col past edge", 9, 0, false},
		{"lane past edge", 0, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.InBounds(tt.col, tt.lane); got != tt.inBounds {
				t.Errorf("InBounds(%d,%d) = %v, want %v", tt.col, tt.lane, got, tt.inBounds)
			}
			err := g.Place(tt.col, tt.lane, 1)
			if tt.inBounds && err != nil {
				t.Errorf("Place in bounds failed: %v", err)
			}
			if !tt.inBounds && !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Place out of bounds err = %v, want ErrOutOfBounds", err)
			}
			if !tt.inBounds && g.IsOccupied(tt.col, tt.lane) {
				t.Error("out-of-bounds cell reported occupied")
			}
			g.Remove(tt.col, tt.lane)
		})
	}
}

func TestGridOccupiedOrder(t *testing.T) {
	g := NewGrid(3, 3)
	g.Place(2, 2, 1)
	g.Place(0, 1, 2)
	g.Place(1, 0, 3)

	want := []Cell{{Col: 1, Lane: 0}, {Col: 0, Lane: 1}, {Col: 2, Lane: 2}}
	got := g.Occupied()
	if len(got) != len(want) {
		t.Fatalf("Occupied returned %d cells, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Occupied[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if g.Count() != 3 {
		t.Errorf("Count = %d, want 3", g.Count())
	}

	g.Reset()
	if g.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", g.Count())
	}
}
