package game

import (
	"errors"
	"math"
)

// Placement errors. A failed placement leaves all state unchanged.
var (
	ErrUnknownKind       = errors.New("unknown defender kind")
	ErrInsufficientFunds = errors.New("insufficient currency")
	ErrGameOver          = errors.New("game is over")
)

// TryPlace validates and places a defender, debiting its cost
func (s *Sim) TryPlace(col, lane int, kind DefenderKind) (EntityID, error) {
	if s.lost {
		return 0, ErrGameOver
	}
	stats, ok := s.rules.Stats(kind)
	if !ok {
		return 0, ErrUnknownKind
	}
	if !s.grid.InBounds(col, lane) {
		return 0, ErrOutOfBounds
	}
	if s.grid.IsOccupied(col, lane) {
		return 0, ErrCellOccupied
	}
	if s.currency < stats.Cost {
		return 0, ErrInsufficientFunds
	}

	id := s.nextEntityID()
	if err := s.grid.Place(col, lane, id); err != nil {
		return 0, err
	}
	s.currency -= stats.Cost

	d := newDefender(id, kind, col, lane, stats, s.rules, s.now)
	s.defenders = append(s.defenders, d)
	s.defenderIndex[id] = d
	s.placed++

	s.emit(EventTypeDefenderPlaced, PlacementPayload{
		DefenderID: id,
		Kind:       kind,
		Col:        col,
		Lane:       lane,
		Cost:       stats.Cost,
		Currency:   s.currency,
	})
	return id, nil
}

// Collect picks up a collectible and credits its value.
// Returns false if the id is unknown or already collected.
func (s *Sim) Collect(id EntityID) (int, bool) {
	if s.lost {
		return 0, false
	}
	c, ok := s.removeCollectible(id)
	if !ok {
		return 0, false
	}
	s.currency += c.Value
	s.emit(EventTypeCollected, CollectPayload{
		CollectibleID: id,
		Value:         c.Value,
		Currency:      s.currency,
	})
	return c.Value, true
}

// SelectKind records the kind used by pointer placement
func (s *Sim) SelectKind(kind DefenderKind) error {
	if _, ok := s.rules.Stats(kind); !ok {
		return ErrUnknownKind
	}
	s.selected = kind
	return nil
}

// Selected returns the pending placement kind
func (s *Sim) Selected() DefenderKind {
	return s.selected
}

// TargetType distinguishes what a world point resolved to
type TargetType uint8

const (
	TargetNone TargetType = iota
	TargetCell
	TargetCollectible
)

// Target is the result of a world-point hit test
type Target struct {
	Type          TargetType
	Cell          Cell
	CollectibleID EntityID
}

// HitTest resolves a world point to the nearest collectible within pickup range,
// otherwise to the grid cell under it
func (s *Sim) HitTest(x, y float64) Target {
	best := math.Inf(1)
	var nearest EntityID
	for _, c := range s.collectibles {
		d := math.Hypot(c.X-x, c.Y-y)
		if d <= s.rules.PickupRadius && d < best {
			best = d
			nearest = c.ID
		}
	}
	if nearest != 0 {
		return Target{Type: TargetCollectible, CollectibleID: nearest}
	}

	if x < 0 || y < 0 {
		return Target{}
	}
	col := int(x / s.rules.TileSize)
	lane := int(y / s.rules.TileSize)
	if !s.grid.InBounds(col, lane) {
		return Target{}
	}
	return Target{Type: TargetCell, Cell: Cell{Col: col, Lane: lane}}
}

// PointerResult reports what a pointer action did
type PointerResult struct {
	Target     Target       `json:"-"`
	Action     string       `json:"action"`
	DefenderID EntityID     `json:"defenderId,omitempty"`
	Kind       DefenderKind `json:"kind,omitempty"`
	Collected  int          `json:"collected,omitempty"`
}

// PlaceAt resolves a world point and either collects or places the selected kind
func (s *Sim) PlaceAt(x, y float64) (PointerResult, error) {
	t := s.HitTest(x, y)
	res := PointerResult{Target: t, Action: "none"}

	switch t.Type {
	case TargetCollectible:
		value, ok := s.Collect(t.CollectibleID)
		if ok {
			res.Action = "collect"
			res.Collected = value
		}
		return res, nil

	case TargetCell:
		if s.selected == KindNone {
			return res, ErrUnknownKind
		}
		id, err := s.TryPlace(t.Cell.Col, t.Cell.Lane, s.selected)
		if err != nil {
			return res, err
		}
		res.Action = "place"
		res.DefenderID = id
		res.Kind = s.selected
		return res, nil
	}
	return res, ErrOutOfBounds
}
