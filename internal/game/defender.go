package game

import (
	"fmt"
	"strings"
	"time"
)

// DefenderKind enum for placeable defenders
type DefenderKind uint8

const (
	KindNone DefenderKind = iota
	KindAttacker
	KindProducer
	KindBlocker
)

// AllDefenderKinds lists the placeable kinds in menu order
var AllDefenderKinds = []DefenderKind{KindAttacker, KindProducer, KindBlocker}

// String returns the lowercase kind name
func (k DefenderKind) String() string {
	switch k {
	case KindAttacker:
		return "attacker"
	case KindProducer:
		return "producer"
	case KindBlocker:
		return "blocker"
	default:
		return "none"
	}
}

// ParseDefenderKind accepts a kind name, case-insensitive
func ParseDefenderKind(s string) (DefenderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attacker":
		return KindAttacker, nil
	case "producer":
		return KindProducer, nil
	case "blocker":
		return KindBlocker, nil
	}
	return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText encodes the kind by name
func (k DefenderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name, including "none"
func (k *DefenderKind) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*k = KindNone
		return nil
	}
	kind, err := ParseDefenderKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Defender is a stationary entity occupying one grid cell
type Defender struct {
	ID   EntityID
	Kind DefenderKind
	Col  int
	Lane int

	BaseX float64 // Cell centre
	X, Y  float64 // X jitters around BaseX on hits

	Health    int
	MaxHealth int

	Cooldown   time.Duration
	LastAction time.Duration // Sim time of the last shot or production
	Damage     int
	Cost       int

	Dead bool
}

func newDefender(id EntityID, kind DefenderKind, col, lane int, stats DefenderStats, rules Rules, now time.Duration) *Defender {
	x, y := rules.CellCenter(col, lane)
	return &Defender{
		ID:         id,
		Kind:       kind,
		Col:        col,
		Lane:       lane,
		BaseX:      x,
		X:          x,
		Y:          y,
		Health:     stats.Health,
		MaxHealth:  stats.Health,
		Cooldown:   stats.Cooldown,
		LastAction: now,
		Damage:     stats.Damage,
		Cost:       stats.Cost,
	}
}

// Ready reports whether the cooldown has elapsed at sim time now
func (d *Defender) Ready(now time.Duration) bool {
	return now-d.LastAction >= d.Cooldown
}

// updateDefender runs one defender's periodic action
func (s *Sim) updateDefender(d *Defender) {
	switch d.Kind {
	case KindAttacker:
		if !d.Ready(s.now) || !s.hostileAhead(d) {
			return
		}
		s.fireProjectile(d.Lane, d.X+s.rules.MuzzleOffset, d.Y, d.Damage, d.ID)
		d.LastAction = s.now

	case KindProducer:
		if !d.Ready(s.now) {
			return
		}
		s.spawnCollectible(d.X, d.Y, s.rules.ProducerDropHeight, SourceProducer)
		d.LastAction = s.now

	case KindBlocker:
		// Blockers only absorb damage
	}
}

// hostileAhead reports whether a live hostile is in the defender's lane
// between the defender and the far edge
func (s *Sim) hostileAhead(d *Defender) bool {
	far := s.rules.FarEdge()
	for _, h := range s.hostiles {
		if h.Dead || h.Lane != d.Lane {
			continue
		}
		if h.X > d.X && h.X <= far {
			return true
		}
	}
	return false
}

// damageDefender applies damage with positional hit feedback.
// A killed defender leaves the grid at once; the collection is compacted at end of tick.
func (s *Sim) damageDefender(d *Defender, amount int, by EntityID) {
	if d.Dead {
		return
	}
	d.Health -= amount
	d.X = d.BaseX + (s.rng.Float64()*2-1)*s.rules.Jitter

	if d.Health > 0 {
		return
	}
	d.Dead = true
	s.grid.Remove(d.Col, d.Lane)
	s.emit(EventTypeDefenderDestroyed, DefenderDestroyedPayload{
		DefenderID: d.ID,
		Kind:       d.Kind,
		Col:        d.Col,
		Lane:       d.Lane,
		HostileID:  by,
	})
}

func (s *Sim) updateDefenders() {
	for _, d := range s.defenders {
		if d.Dead {
			continue
		}
		s.updateDefender(d)
	}
}

// compactDefenders removes dead defenders in place
func (s *Sim) compactDefenders() {
	n := 0
	for _, d := range s.defenders {
		if d.Dead {
			if id, ok := s.grid.DefenderAt(d.Col, d.Lane); ok && id == d.ID {
				panic(fmt.Sprintf("dead defender %d still registered at (%d,%d)", d.ID, d.Col, d.Lane))
			}
			delete(s.defenderIndex, d.ID)
			continue
		}
		s.defenders[n] = d
		n++
	}
	for i := n; i < len(s.defenders); i++ {
		s.defenders[i] = nil
	}
	s.defenders = s.defenders[:n]
}
