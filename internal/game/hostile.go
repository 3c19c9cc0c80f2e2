package game

import (
	"fmt"
	"math"
	"time"
)

// HostileState is the movement state of a hostile
type HostileState uint8

const (
	HostileAdvancing HostileState = iota
	HostileEngaged
)

// String returns the state name
func (st HostileState) String() string {
	if st == HostileEngaged {
		return "engaged"
	}
	return "advancing"
}

// MarshalText encodes the state by name
func (st HostileState) MarshalText() ([]byte, error) {
	return []byte(st.String()), nil
}

// UnmarshalText decodes a state name
func (st *HostileState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "advancing":
		*st = HostileAdvancing
	case "engaged":
		*st = HostileEngaged
	default:
		return fmt.Errorf("unknown hostile state %q", b)
	}
	return nil
}

// Hostile advances along its lane toward the defended edge
type Hostile struct {
	ID   EntityID
	Lane int
	X, Y float64

	Speed     float64
	Health    int
	MaxHealth int

	Damage         int
	AttackInterval time.Duration
	LastAttack     time.Duration

	State  HostileState
	Target EntityID // Defender being engaged, zero while advancing

	SpawnedAt time.Duration
	HitAt     time.Duration // Sim time of the last hit taken, for flash feedback
	Dead      bool
}

func newHostile(id EntityID, lane int, rules Rules, now time.Duration) *Hostile {
	_, y := rules.CellCenter(0, lane)
	return &Hostile{
		ID:             id,
		Lane:           lane,
		X:              rules.FarEdge(),
		Y:              y,
		Speed:          rules.HostileSpeed,
		Health:         rules.HostileHealth,
		MaxHealth:      rules.HostileHealth,
		Damage:         rules.HostileDamage,
		AttackInterval: rules.HostileAttackInterval,
		LastAttack:     now,
		SpawnedAt:      now,
		HitAt:          -1,
	}
}

// Column returns the grid column the hostile currently stands in
func (h *Hostile) Column(tileSize float64) int {
	return int(math.Floor(h.X / tileSize))
}

// updateHostile engages the defender in the current cell or advances.
// Returns true when the hostile crossed the loss threshold.
func (s *Sim) updateHostile(h *Hostile, dt float64) bool {
	col := h.Column(s.rules.TileSize)

	if d := s.engageable(h, col); d != nil {
		h.State = HostileEngaged
		h.Target = d.ID
		if s.now-h.LastAttack >= h.AttackInterval {
			h.LastAttack = s.now
			s.damageDefender(d, h.Damage, h.ID)
		}
		return false
	}

	h.State = HostileAdvancing
	h.Target = 0
	h.X -= h.Speed * dt

	return h.X < s.rules.LossThreshold
}

// engageable returns the live defender in (col, lane) within engage range
func (s *Sim) engageable(h *Hostile, col int) *Defender {
	id, ok := s.grid.DefenderAt(col, h.Lane)
	if !ok {
		return nil
	}
	d, ok := s.defenderIndex[id]
	if !ok || d.Dead {
		panic("grid references a defender that is not live")
	}
	if math.Hypot(d.X-h.X, d.Y-h.Y) >= s.rules.EngageRadius {
		return nil
	}
	return d
}

// damageHostile applies damage and credits the kill bonus on the alive to dead transition
func (s *Sim) damageHostile(h *Hostile, amount int, by EntityID) {
	if h.Dead {
		return
	}
	h.Health -= amount
	h.HitAt = s.now
	if h.Health > 0 {
		return
	}
	h.Dead = true
	s.score += s.rules.KillBonus
	s.kills++
	s.emit(EventTypeKill, KillPayload{
		HostileID:    h.ID,
		Lane:         h.Lane,
		X:            h.X,
		ProjectileID: by,
		Score:        s.score,
	})
}

// updateHostiles advances every live hostile. Returns true if the run was lost this tick.
func (s *Sim) updateHostiles(dt float64) bool {
	for _, h := range s.hostiles {
		if h.Dead {
			continue
		}
		if s.updateHostile(h, dt) {
			s.markLost(h)
			return true
		}
	}
	return false
}

// compactHostiles removes dead hostiles in place, preserving creation order
func (s *Sim) compactHostiles() {
	n := 0
	for _, h := range s.hostiles {
		if h.Dead {
			continue
		}
		s.hostiles[n] = h
		n++
	}
	for i := n; i < len(s.hostiles); i++ {
		s.hostiles[i] = nil
	}
	s.hostiles = s.hostiles[:n]
}
