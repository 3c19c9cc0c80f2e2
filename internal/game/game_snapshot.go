package game

import (
	"math"
	"sync/atomic"
	"time"
)

// ResourceLimits caps how many entities of each collection a snapshot carries
type ResourceLimits struct {
	MaxHostiles     int
	MaxProjectiles  int
	MaxCollectibles int
}

// DefaultLimits provides production-safe snapshot caps
var DefaultLimits = ResourceLimits{
	MaxHostiles:     256,
	MaxProjectiles:  MaxProjectiles,
	MaxCollectibles: 128,
}

// DefenderSnapshot is an immutable copy of a defender for adapters
type DefenderSnapshot struct {
	ID        EntityID     `json:"id"`
	Kind      DefenderKind `json:"kind"`
	Col       int          `json:"col"`
	Lane      int          `json:"lane"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Health    int          `json:"health"`
	MaxHealth int          `json:"maxHealth"`
	Ready     bool         `json:"ready"` // Cooldown elapsed
}

// HostileSnapshot is an immutable copy of a hostile
type HostileSnapshot struct {
	ID        EntityID     `json:"id"`
	Lane      int          `json:"lane"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Health    int          `json:"health"`
	MaxHealth int          `json:"maxHealth"`
	State     HostileState `json:"state"`
	Target    EntityID     `json:"target,omitempty"`
	Bob       float64      `json:"bob"`   // Idle animation phase in [-1, 1]
	Flash     bool         `json:"flash"` // Hit within the last flash window
}

// ProjectileSnapshot is an immutable copy of a projectile
type ProjectileSnapshot struct {
	ID   EntityID `json:"id"`
	Lane int      `json:"lane"`
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
}

// CollectibleSnapshot is an immutable copy of a collectible
type CollectibleSnapshot struct {
	ID      EntityID          `json:"id"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	Height  float64           `json:"height"`
	Value   int               `json:"value"`
	Source  CollectibleSource `json:"source"`
	Settled bool              `json:"settled"`
}

// GameSnapshot is the complete observable state after a tick.
// Slices are pre-allocated and capped by ResourceLimits.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	Seed       int64     `json:"seed"`
	SimTimeMs  int64     `json:"simTimeMs"`

	Currency     int          `json:"currency"`
	Score        int          `json:"score"`
	Kills        int          `json:"kills"`
	Lost         bool         `json:"lost"`
	SelectedKind DefenderKind `json:"selectedKind"`
	NextSpawnMs  int64        `json:"nextSpawnMs"` // Current hostile spawn interval

	Cols     int     `json:"cols"`
	Lanes    int     `json:"lanes"`
	TileSize float64 `json:"tileSize"`

	Defenders    []DefenderSnapshot    `json:"defenders"`
	Hostiles     []HostileSnapshot     `json:"hostiles"`
	Projectiles  []ProjectileSnapshot  `json:"projectiles"`
	Collectibles []CollectibleSnapshot `json:"collectibles"`
}

// flashWindow is how long a hostile shows hit feedback
const flashWindow = 120 * time.Millisecond

// FillSnapshot copies the observable state into snap. snap's slices must be empty.
func (s *Sim) FillSnapshot(snap *GameSnapshot, limits ResourceLimits) {
	snap.TickNumber = s.tick
	snap.Seed = s.seed
	snap.SimTimeMs = s.now.Milliseconds()
	snap.Currency = s.currency
	snap.Score = s.score
	snap.Kills = s.kills
	snap.Lost = s.lost
	snap.SelectedKind = s.selected
	snap.NextSpawnMs = s.rules.HostileSpawnInterval(s.score).Milliseconds()
	snap.Cols = s.rules.Cols
	snap.Lanes = s.rules.Lanes
	snap.TileSize = s.rules.TileSize

	for _, d := range s.defenders {
		if d.Dead {
			continue
		}
		snap.Defenders = append(snap.Defenders, DefenderSnapshot{
			ID:        d.ID,
			Kind:      d.Kind,
			Col:       d.Col,
			Lane:      d.Lane,
			X:         d.X,
			Y:         d.Y,
			Health:    d.Health,
			MaxHealth: d.MaxHealth,
			Ready:     d.Kind != KindBlocker && d.Ready(s.now),
		})
	}

	secs := s.now.Seconds()
	for _, h := range s.hostiles {
		if h.Dead {
			continue
		}
		if len(snap.Hostiles) >= limits.MaxHostiles {
			break
		}
		snap.Hostiles = append(snap.Hostiles, HostileSnapshot{
			ID:        h.ID,
			Lane:      h.Lane,
			X:         h.X,
			Y:         h.Y,
			Health:    h.Health,
			MaxHealth: h.MaxHealth,
			State:     h.State,
			Target:    h.Target,
			Bob:       math.Sin(secs*4 + float64(h.ID)),
			Flash:     h.HitAt >= 0 && s.now-h.HitAt < flashWindow,
		})
	}

	for _, p := range s.projectiles {
		if len(snap.Projectiles) >= limits.MaxProjectiles {
			break
		}
		snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
			ID:   p.ID,
			Lane: p.Lane,
			X:    p.X,
			Y:    p.Y,
		})
	}

	for _, c := range s.collectibles {
		if len(snap.Collectibles) >= limits.MaxCollectibles {
			break
		}
		snap.Collectibles = append(snap.Collectibles, CollectibleSnapshot{
			ID:      c.ID,
			X:       c.X,
			Y:       c.Y,
			Height:  c.Height,
			Value:   c.Value,
			Source:  c.Source,
			Settled: c.Settled,
		})
	}
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Triple buffering lets one producer publish while readers hold the previous frame.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	limits    ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits, maxDefenders int) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}
	for i := range pool.snapshots {
		pool.snapshots[i] = GameSnapshot{
			Defenders:    make([]DefenderSnapshot, 0, maxDefenders),
			Hostiles:     make([]HostileSnapshot, 0, limits.MaxHostiles),
			Projectiles:  make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			Collectibles: make([]CollectibleSnapshot, 0, limits.MaxCollectibles),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot with emptied slices (producer only)
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := (atomic.LoadUint32(&p.readIdx) + 1) % 3
	atomic.StoreUint32(&p.writeIdx, idx)
	snap := &p.snapshots[idx]

	snap.Defenders = snap.Defenders[:0]
	snap.Hostiles = snap.Hostiles[:0]
	snap.Projectiles = snap.Projectiles[:0]
	snap.Collectibles = snap.Collectibles[:0]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite makes the last acquired slot the readable one
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns the latest published snapshot (consumer only)
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	return &p.snapshots[atomic.LoadUint32(&p.readIdx)%3]
}

// Limits returns the snapshot caps
func (p *SnapshotPool) Limits() ResourceLimits {
	return p.limits
}

// Clone returns a deep copy safe to keep past the next tick
func (snap *GameSnapshot) Clone() GameSnapshot {
	out := *snap
	out.Defenders = append([]DefenderSnapshot(nil), snap.Defenders...)
	out.Hostiles = append([]HostileSnapshot(nil), snap.Hostiles...)
	out.Projectiles = append([]ProjectileSnapshot(nil), snap.Projectiles...)
	out.Collectibles = append([]CollectibleSnapshot(nil), snap.Collectibles...)
	return out
}
