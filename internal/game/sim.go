package game

import (
	"fmt"
	"math/rand"
	"time"
)

// EventSink receives simulation events as they happen inside a tick
type EventSink func(eventType EventType, payload interface{})

// RunSummary describes a run at the moment it ended
type RunSummary struct {
	Seed            int64         `json:"seed"`
	Score           int           `json:"score"`
	Kills           int           `json:"kills"`
	DefendersPlaced int           `json:"defendersPlaced"`
	Currency        int           `json:"currency"`
	Ticks           uint64        `json:"ticks"`
	SimTime         time.Duration `json:"simTimeNs"`
	Lost            bool          `json:"lost"`
}

// Sim owns every collection of one lane-defense run.
// It is single-threaded: callers serialise Step with input events.
type Sim struct {
	rules Rules
	seed  int64
	rng   *rand.Rand

	grid          *Grid
	defenders     []*Defender
	defenderIndex map[EntityID]*Defender
	hostiles      []*Hostile
	projectiles   []*Projectile
	collectibles  []*Collectible

	currency int
	score    int
	kills    int
	placed   int
	lost     bool
	selected DefenderKind

	now    time.Duration
	tick   uint64
	nextID EntityID

	lastHostileSpawn     time.Duration
	lastCollectibleSpawn time.Duration

	sink EventSink
}

// NewSim creates a simulation in its initial state
func NewSim(rules Rules, seed int64) *Sim {
	s := &Sim{rules: rules}
	s.Reset(seed)
	return s
}

// Reset discards the current run and starts a fresh one with the given seed
func (s *Sim) Reset(seed int64) {
	s.seed = seed
	s.rng = rand.New(rand.NewSource(seed))
	s.grid = NewGrid(s.rules.Cols, s.rules.Lanes)
	s.defenders = make([]*Defender, 0, s.rules.Cols*s.rules.Lanes)
	s.defenderIndex = make(map[EntityID]*Defender)
	s.hostiles = s.hostiles[:0]
	s.projectiles = s.projectiles[:0]
	s.collectibles = s.collectibles[:0]
	s.currency = s.rules.StartingCurrency
	s.score = 0
	s.kills = 0
	s.placed = 0
	s.lost = false
	s.selected = KindAttacker
	s.now = 0
	s.tick = 0
	s.nextID = 0
	s.lastHostileSpawn = 0
	s.lastCollectibleSpawn = 0
}

// SetEventSink installs the event callback. Nil disables events.
func (s *Sim) SetEventSink(sink EventSink) {
	s.sink = sink
}

func (s *Sim) emit(eventType EventType, payload interface{}) {
	if s.sink != nil {
		s.sink(eventType, payload)
	}
}

func (s *Sim) nextEntityID() EntityID {
	s.nextID++
	return s.nextID
}

// Step advances the simulation by one tick of length dt.
// Order: spawn timers, defenders, hostiles, projectiles, collectibles, compaction.
// Once lost, Step does nothing.
func (s *Sim) Step(dt time.Duration) {
	if s.lost {
		return
	}
	s.tick++
	s.now += dt
	secs := dt.Seconds()

	s.runSpawner()
	s.updateDefenders()
	if s.updateHostiles(secs) {
		s.compact()
		return
	}
	s.updateProjectiles(secs)
	s.updateCollectibles(secs)
	s.compact()
}

func (s *Sim) compact() {
	s.compactDefenders()
	s.compactHostiles()
}

func (s *Sim) markLost(h *Hostile) {
	s.lost = true
	s.emit(EventTypeLost, LostPayload{
		HostileID: h.ID,
		Lane:      h.Lane,
		Score:     s.score,
		SimTimeMs: s.now.Milliseconds(),
	})
}

// CheckInvariants verifies that the grid and the defender collection agree
func (s *Sim) CheckInvariants() error {
	for _, cell := range s.grid.Occupied() {
		id, _ := s.grid.DefenderAt(cell.Col, cell.Lane)
		d, ok := s.defenderIndex[id]
		if !ok {
			return fmt.Errorf("cell (%d,%d) references unknown defender %d", cell.Col, cell.Lane, id)
		}
		if d.Dead {
			return fmt.Errorf("cell (%d,%d) references dead defender %d", cell.Col, cell.Lane, id)
		}
		if d.Col != cell.Col || d.Lane != cell.Lane {
			return fmt.Errorf("defender %d at (%d,%d) registered under (%d,%d)", id, d.Col, d.Lane, cell.Col, cell.Lane)
		}
	}
	for _, d := range s.defenders {
		if d.Dead {
			continue
		}
		id, ok := s.grid.DefenderAt(d.Col, d.Lane)
		if !ok || id != d.ID {
			return fmt.Errorf("live defender %d missing from cell (%d,%d)", d.ID, d.Col, d.Lane)
		}
	}
	if len(s.defenderIndex) != len(s.defenders) {
		return fmt.Errorf("defender index has %d entries, collection has %d", len(s.defenderIndex), len(s.defenders))
	}
	if s.currency < 0 {
		return fmt.Errorf("negative currency %d", s.currency)
	}
	if s.score < 0 {
		return fmt.Errorf("negative score %d", s.score)
	}
	return nil
}

// Summary returns the run totals
func (s *Sim) Summary() RunSummary {
	return RunSummary{
		Seed:            s.seed,
		Score:           s.score,
		Kills:           s.kills,
		DefendersPlaced: s.placed,
		Currency:        s.currency,
		Ticks:           s.tick,
		SimTime:         s.now,
		Lost:            s.lost,
	}
}

// Rules returns the constants table
func (s *Sim) Rules() Rules { return s.rules }

// Grid returns the occupancy index. Callers must not mutate it.
func (s *Sim) Grid() *Grid { return s.grid }

// Currency returns the spendable balance
func (s *Sim) Currency() int { return s.currency }

// Score returns the kill score of the run
func (s *Sim) Score() int { return s.score }

// Lost reports whether a hostile breached the defended edge
func (s *Sim) Lost() bool { return s.lost }

// Now returns the sim clock
func (s *Sim) Now() time.Duration { return s.now }

// Tick returns the number of steps run
func (s *Sim) Tick() uint64 { return s.tick }

// Seed returns the rng seed of the run
func (s *Sim) Seed() int64 { return s.seed }

// HostileCount returns the number of hostiles held, including ones awaiting compaction
func (s *Sim) HostileCount() int { return len(s.hostiles) }

// DefenderCount returns the number of defenders held
func (s *Sim) DefenderCount() int { return len(s.defenders) }

// ProjectileCount returns the number of live projectiles
func (s *Sim) ProjectileCount() int { return len(s.projectiles) }

// Hostile returns a live hostile by id
func (s *Sim) Hostile(id EntityID) (*Hostile, bool) {
	for _, h := range s.hostiles {
		if h.ID == id {
			return h, true
		}
	}
	return nil, false
}

// Defender returns a defender by id
func (s *Sim) Defender(id EntityID) (*Defender, bool) {
	d, ok := s.defenderIndex[id]
	return d, ok
}

// FireProjectile launches a projectile along a lane from x without a source defender
func (s *Sim) FireProjectile(lane int, x float64, damage int) EntityID {
	if s.lost || lane < 0 || lane >= s.rules.Lanes {
		return 0
	}
	_, y := s.rules.CellCenter(0, lane)
	return s.fireProjectile(lane, x, y, damage, 0)
}
