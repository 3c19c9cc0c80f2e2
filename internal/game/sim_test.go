package game

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

const frame = 16 * time.Millisecond

// quietRules disables timed spawns so tests control every entity
func quietRules() Rules {
	r := DefaultRules()
	r.SpawnBaseInterval = time.Hour
	r.SpawnFloor = time.Hour
	r.CollectibleInterval = time.Hour
	return r
}

func mustStep(t *testing.T, s *Sim, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s.Step(frame)
		if err := s.CheckInvariants(); err != nil {
			t.Fatalf("invariant broken after tick %d: %v", s.Tick(), err)
		}
	}
}

func TestProducerPlacementDrainsCurrency(t *testing.T) {
	rules := quietRules()
	rules.StartingCurrency = 50
	s := NewSim(rules, 1)

	if _, err := s.TryPlace(0, 0, KindProducer); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	if s.Currency() != 0 {
		t.Fatalf("currency = %d, want 0", s.Currency())
	}

	_, err := s.TryPlace(1, 0, KindProducer)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("second placement err = %v, want ErrInsufficientFunds", err)
	}
	if s.Currency() != 0 {
		t.Errorf("failed placement changed currency to %d", s.Currency())
	}
	if s.Grid().IsOccupied(1, 0) {
		t.Error("failed placement occupied the cell")
	}
	if s.DefenderCount() != 1 {
		t.Errorf("defender count = %d, want 1", s.DefenderCount())
	}
}

func TestTryPlaceRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *Sim)
		col   int
		lane  int
		kind  DefenderKind
		want  error
	}{
		{"out of bounds", nil, 9, 0, KindBlocker, ErrOutOfBounds},
		{"negative lane", nil, 0, -1, KindBlocker, ErrOutOfBounds},
		{"unknown kind", nil, 0, 0, KindNone, ErrUnknownKind},
		{"occupied", func(s *Sim) { s.TryPlace(2, 2, KindBlocker) }, 2, 2, KindBlocker, ErrCellOccupied},
		{"game over", func(s *Sim) { s.lost = true }, 0, 0, KindBlocker, ErrGameOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSim(quietRules(), 1)
			if tt.setup != nil {
				tt.setup(s)
			}
			currency, count := s.Currency(), s.DefenderCount()

			_, err := s.TryPlace(tt.col, tt.lane, tt.kind)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if s.Currency() != currency || s.DefenderCount() != count {
				t.Error("rejected placement changed state")
			}
		})
	}
}

func TestHostileKilledByFourProjectiles(t *testing.T) {
	s := NewSim(quietRules(), 1)
	id := s.SpawnHostile(2)

	for i := 1; i <= 4; i++ {
		h, ok := s.Hostile(id)
		if !ok {
			t.Fatalf("hostile gone before shot %d", i)
		}
		s.FireProjectile(2, h.X-1, 25)
		mustStep(t, s, 1)

		if s.ProjectileCount() != 0 {
			t.Fatalf("projectile %d not consumed", i)
		}
		if i < 4 {
			h, ok := s.Hostile(id)
			if !ok {
				t.Fatalf("hostile removed after %d hits", i)
			}
			if h.Health != 100-25*i {
				t.Errorf("health after %d hits = %d, want %d", i, h.Health, 100-25*i)
			}
			if s.Score() != 0 {
				t.Errorf("score credited early: %d", s.Score())
			}
		}
	}

	if _, ok := s.Hostile(id); ok {
		t.Error("hostile should be removed after 4th hit")
	}
	if s.Score() != s.Rules().KillBonus {
		t.Errorf("score = %d, want %d", s.Score(), s.Rules().KillBonus)
	}

	// Further ticks must not credit again
	mustStep(t, s, 10)
	if s.Score() != s.Rules().KillBonus {
		t.Errorf("score changed to %d after kill", s.Score())
	}
}

func TestProjectileHitsAtMostOne(t *testing.T) {
	s := NewSim(quietRules(), 1)
	first := s.SpawnHostile(0)
	second := s.SpawnHostile(0)
	h1, _ := s.Hostile(first)
	h2, _ := s.Hostile(second)
	h1.X, h2.X = 50, 50.5

	s.FireProjectile(0, 49.9, 25)
	mustStep(t, s, 1)

	damaged := 0
	for _, h := range []*Hostile{h1, h2} {
		if h.Health < h.MaxHealth {
			damaged++
		}
	}
	if damaged != 1 {
		t.Fatalf("%d hostiles damaged, want exactly 1", damaged)
	}
	if h1.Health != 75 {
		t.Error("the earliest-created hostile should take the hit")
	}
	if s.ProjectileCount() != 0 {
		t.Error("projectile should be removed after hitting")
	}
}

func TestProjectileIgnoresOtherLanes(t *testing.T) {
	s := NewSim(quietRules(), 1)
	id := s.SpawnHostile(1)
	h, _ := s.Hostile(id)

	s.FireProjectile(0, h.X-1, 25)
	mustStep(t, s, 1)

	if h.Health != h.MaxHealth {
		t.Error("projectile hit a hostile in another lane")
	}
	if s.ProjectileCount() != 1 {
		t.Error("projectile should keep flying")
	}
}

func TestProjectileLeavesField(t *testing.T) {
	s := NewSim(quietRules(), 1)
	s.FireProjectile(3, s.Rules().TravelBound()-0.1, 25)

	mustStep(t, s, 1)
	if s.ProjectileCount() != 0 {
		t.Error("projectile past the travel bound should be removed")
	}
}

func TestAttackerHitsEngagedHostileAtAnyFrameRate(t *testing.T) {
	for _, dt := range []time.Duration{16 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond} {
		t.Run(dt.String(), func(t *testing.T) {
			s := NewSim(quietRules(), 1)
			did, err := s.TryPlace(4, 1, KindAttacker)
			if err != nil {
				t.Fatal(err)
			}
			d, _ := s.Defender(did)

			hid := s.SpawnHostile(1)
			h, _ := s.Hostile(hid)
			h.X = d.BaseX + 4.9

			// 4s covers two shots at the 1.5s cooldown
			for i := 0; i < int(4*time.Second/dt); i++ {
				s.Step(dt)
				if err := s.CheckInvariants(); err != nil {
					t.Fatal(err)
				}
			}

			if h.State != HostileEngaged {
				t.Fatalf("hostile state = %v, want engaged", h.State)
			}
			want := h.MaxHealth - 2*d.Damage
			if h.Health != want {
				t.Errorf("hostile health = %d, want %d", h.Health, want)
			}
			if s.ProjectileCount() != 0 {
				t.Errorf("%d projectiles still flying past the hostile", s.ProjectileCount())
			}
		})
	}
}

func TestProjectileSweepsLongStep(t *testing.T) {
	s := NewSim(quietRules(), 1)
	id := s.SpawnHostile(2)
	h, _ := s.Hostile(id)
	h.X = 50

	// One 500ms step carries the projectile from 40 to 55, past the hostile at 49
	s.FireProjectile(2, 40, 25)
	s.Step(500 * time.Millisecond)

	if h.Health != h.MaxHealth-25 {
		t.Errorf("health = %d, want %d", h.Health, h.MaxHealth-25)
	}
}

func TestEngagementHaltsAdvance(t *testing.T) {
	s := NewSim(quietRules(), 1)
	did, err := s.TryPlace(4, 1, KindBlocker)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := s.Defender(did)

	hid := s.SpawnHostile(1)
	h, _ := s.Hostile(hid)
	h.X = d.BaseX + 2

	mustStep(t, s, 1)
	if h.State != HostileEngaged || h.Target != did {
		t.Fatalf("state = %v target = %d, want engaged on %d", h.State, h.Target, did)
	}
	x := h.X

	// 1.12s: exactly one attack at the 1s interval
	mustStep(t, s, 69)
	if h.X != x {
		t.Errorf("engaged hostile moved from %v to %v", x, h.X)
	}
	if d.Health != d.MaxHealth-s.Rules().HostileDamage {
		t.Errorf("defender health = %d, want %d", d.Health, d.MaxHealth-s.Rules().HostileDamage)
	}
	if d.X < d.BaseX-s.Rules().Jitter || d.X > d.BaseX+s.Rules().Jitter {
		t.Errorf("jittered X %v outside [%v, %v]", d.X, d.BaseX-s.Rules().Jitter, d.BaseX+s.Rules().Jitter)
	}
}

func TestHostileOutsideEngageRadiusAdvances(t *testing.T) {
	s := NewSim(quietRules(), 1)
	s.TryPlace(4, 1, KindBlocker)

	hid := s.SpawnHostile(1)
	h, _ := s.Hostile(hid)
	h.X = 49.5 // same cell, 4.5 from the centre

	mustStep(t, s, 1)
	if h.State != HostileAdvancing {
		t.Errorf("state = %v, want advancing", h.State)
	}
	if h.X >= 49.5 {
		t.Error("hostile should have advanced")
	}
}

func TestDefenderDeathFreesCell(t *testing.T) {
	rules := quietRules()
	rules.Defenders[KindBlocker] = DefenderStats{Cost: 50, Health: 20}
	s := NewSim(rules, 1)

	did, _ := s.TryPlace(4, 1, KindBlocker)
	d, _ := s.Defender(did)
	hid := s.SpawnHostile(1)
	h, _ := s.Hostile(hid)
	h.X = d.BaseX + 1

	// Attack lands once the 1s interval elapses
	mustStep(t, s, 63)
	if s.Grid().IsOccupied(4, 1) {
		t.Fatal("killed defender still occupies its cell")
	}
	if s.DefenderCount() != 0 {
		t.Errorf("defender count = %d, want 0", s.DefenderCount())
	}
	if _, ok := s.Defender(did); ok {
		t.Error("dead defender still indexed")
	}

	x := h.X
	mustStep(t, s, 1)
	if h.State != HostileAdvancing || h.X >= x {
		t.Error("hostile should resume advancing after its target dies")
	}

	// The freed cell can be reused
	if _, err := s.TryPlace(4, 1, KindBlocker); err != nil {
		t.Errorf("placing on freed cell failed: %v", err)
	}
}

func TestAttackerCooldown(t *testing.T) {
	s := NewSim(quietRules(), 1)
	did, _ := s.TryPlace(0, 0, KindAttacker)
	d, _ := s.Defender(did)
	s.SpawnHostile(0)

	var shots []time.Duration
	last := d.LastAction
	for i := 0; i < 320; i++ { // ~5.1s
		mustStep(t, s, 1)
		if d.LastAction != last {
			shots = append(shots, d.LastAction)
			last = d.LastAction
		}
	}

	if len(shots) < 2 {
		t.Fatalf("got %d shots, want at least 2", len(shots))
	}
	if shots[0] < d.Cooldown {
		t.Errorf("first shot at %v before cooldown %v", shots[0], d.Cooldown)
	}
	for i := 1; i < len(shots); i++ {
		if gap := shots[i] - shots[i-1]; gap < d.Cooldown {
			t.Errorf("shot gap %v below cooldown %v", gap, d.Cooldown)
		}
	}
}

func TestAttackerHoldsFireWithoutTarget(t *testing.T) {
	s := NewSim(quietRules(), 1)
	did, _ := s.TryPlace(5, 0, KindAttacker)
	d, _ := s.Defender(did)

	// Hostile behind the attacker does not count
	hid := s.SpawnHostile(0)
	h, _ := s.Hostile(hid)
	h.X = 20

	mustStep(t, s, 125) // 2s
	if s.ProjectileCount() != 0 {
		t.Errorf("attacker fired %d projectiles with no target ahead", s.ProjectileCount())
	}
	if d.LastAction != 0 {
		t.Errorf("cooldown reset without firing: %v", d.LastAction)
	}
}

func TestProducerDropsCollectibles(t *testing.T) {
	s := NewSim(quietRules(), 1)
	did, _ := s.TryPlace(2, 3, KindProducer)
	d, _ := s.Defender(did)

	mustStep(t, s, 626) // ~10.02s
	if len(s.collectibles) != 1 {
		t.Fatalf("collectibles = %d, want 1", len(s.collectibles))
	}
	c := s.collectibles[0]
	if c.Source != SourceProducer || c.X != d.X || c.Y != d.Y {
		t.Errorf("collectible = %+v, want producer drop at (%v, %v)", c, d.X, d.Y)
	}
}

func TestLossIsTerminal(t *testing.T) {
	s := NewSim(quietRules(), 1)
	lost := 0
	s.SetEventSink(func(et EventType, _ interface{}) {
		if et == EventTypeLost {
			lost++
		}
	})

	hid := s.SpawnHostile(0)
	h, _ := s.Hostile(hid)
	h.X = s.Rules().LossThreshold + 0.01

	other := s.SpawnHostile(4)
	o, _ := s.Hostile(other)
	s.FireProjectile(3, 10, 25)
	p := s.projectiles[0]

	s.Step(frame)
	if !s.Lost() {
		t.Fatal("crossing the threshold should lose the run")
	}
	if p.X != 10 {
		t.Error("projectiles updated after the losing hostile")
	}
	if lost != 1 {
		t.Errorf("lost events = %d, want 1", lost)
	}

	tick, now, ox := s.Tick(), s.Now(), o.X
	for i := 0; i < 10; i++ {
		s.Step(frame)
	}
	if s.Tick() != tick || s.Now() != now {
		t.Error("ticks advanced after loss")
	}
	if o.X != ox || p.X != 10 {
		t.Error("entities updated after loss")
	}
	if lost != 1 {
		t.Errorf("lost events = %d after further ticks, want 1", lost)
	}
	if _, err := s.TryPlace(0, 0, KindBlocker); !errors.Is(err, ErrGameOver) {
		t.Errorf("placement after loss err = %v, want ErrGameOver", err)
	}
}

func TestLossTiming(t *testing.T) {
	rules := quietRules()
	s := NewSim(rules, 1)
	hid := s.SpawnHostile(2)
	h, _ := s.Hostile(hid)
	start := 20.0
	h.X = start

	ticks := 0
	for !s.Lost() && ticks < 10000 {
		s.Step(frame)
		ticks++
	}

	want := (start - rules.LossThreshold) / rules.HostileSpeed / frame.Seconds()
	if math.Abs(float64(ticks)-want) > 1.5 {
		t.Errorf("lost after %d ticks, want %.1f ± 1", ticks, want)
	}
}

func TestSpawnTimers(t *testing.T) {
	s := NewSim(DefaultRules(), 42)

	for i := 0; i < 79; i++ {
		s.Step(100 * time.Millisecond)
	}
	if len(s.collectibles) != 0 {
		t.Fatal("collectible spawned before its interval")
	}
	s.Step(100 * time.Millisecond) // 8s
	if len(s.collectibles) != 1 || s.collectibles[0].Source != SourceSky {
		t.Fatalf("expected one sky collectible at 8s, got %d", len(s.collectibles))
	}
	c := s.collectibles[0]
	if c.X < 0 || c.X > s.Rules().FarEdge() || c.Y < 0 || c.Y > s.Rules().Height() {
		t.Errorf("collectible at (%v, %v) outside the footprint", c.X, c.Y)
	}

	for i := 0; i < 19; i++ {
		s.Step(100 * time.Millisecond)
	}
	if s.HostileCount() != 0 {
		t.Fatal("hostile spawned before base interval")
	}
	s.Step(100 * time.Millisecond) // 10s
	if s.HostileCount() != 1 {
		t.Fatalf("hostiles = %d at 10s, want 1", s.HostileCount())
	}
	h := s.hostiles[0]
	if h.X > s.Rules().FarEdge() || h.Lane < 0 || h.Lane >= s.Rules().Lanes {
		t.Errorf("hostile spawned at lane %d x %v", h.Lane, h.X)
	}

	// Timer resets to the spawn time
	for i := 0; i < 99; i++ {
		s.Step(100 * time.Millisecond)
	}
	if s.HostileCount() != 1 {
		t.Error("second hostile spawned early")
	}
}

func TestCollectibleSettles(t *testing.T) {
	s := NewSim(quietRules(), 1)
	s.SpawnCollectible(30, 20)
	c := s.collectibles[0]

	prev := c.Height
	for i := 0; i < 600 && !c.Settled; i++ {
		s.Step(frame)
		if c.Height > prev {
			t.Fatal("collectible rose")
		}
		prev = c.Height
	}
	if !c.Settled || c.Height != s.Rules().RestHeight {
		t.Errorf("collectible not settled: height %v", c.Height)
	}

	// No despawn
	mustStep(t, s, 2000)
	if len(s.collectibles) != 1 {
		t.Error("collectible despawned")
	}
}

func TestCollect(t *testing.T) {
	s := NewSim(quietRules(), 1)
	id := s.SpawnCollectible(30, 20)
	start := s.Currency()

	value, ok := s.Collect(id)
	if !ok || value != s.Rules().CollectValue {
		t.Fatalf("Collect = (%d, %v)", value, ok)
	}
	if s.Currency() != start+value {
		t.Errorf("currency = %d, want %d", s.Currency(), start+value)
	}

	if _, ok := s.Collect(id); ok {
		t.Error("collecting twice should fail")
	}
	if _, ok := s.Collect(9999); ok {
		t.Error("collecting an unknown id should fail")
	}
	if s.Currency() != start+value {
		t.Error("failed collect changed currency")
	}
}

func TestHitTestAndPlaceAt(t *testing.T) {
	s := NewSim(quietRules(), 1)
	cid := s.SpawnCollectible(31, 21)

	target := s.HitTest(30, 20)
	if target.Type != TargetCollectible || target.CollectibleID != cid {
		t.Fatalf("HitTest near collectible = %+v", target)
	}

	target = s.HitTest(55, 15)
	if target.Type != TargetCell || target.Cell != (Cell{Col: 5, Lane: 1}) {
		t.Fatalf("HitTest on grid = %+v", target)
	}

	if target := s.HitTest(-1, 10); target.Type != TargetNone {
		t.Errorf("HitTest off grid = %+v", target)
	}

	res, err := s.PlaceAt(30, 20)
	if err != nil || res.Action != "collect" {
		t.Fatalf("PlaceAt on collectible = %+v, %v", res, err)
	}

	if err := s.SelectKind(KindBlocker); err != nil {
		t.Fatal(err)
	}
	res, err = s.PlaceAt(55, 15)
	if err != nil || res.Action != "place" || res.Kind != KindBlocker {
		t.Fatalf("PlaceAt on cell = %+v, %v", res, err)
	}
	if !s.Grid().IsOccupied(5, 1) {
		t.Error("PlaceAt did not occupy the cell")
	}

	if _, err := s.PlaceAt(55, 15); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("PlaceAt on occupied cell err = %v", err)
	}
	if err := s.SelectKind(KindNone); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("SelectKind(none) err = %v", err)
	}
}

func TestEconomyConservation(t *testing.T) {
	s := NewSim(DefaultRules(), 7)
	rng := rand.New(rand.NewSource(7))

	start := s.Currency()
	spent, earned := 0, 0
	kinds := AllDefenderKinds

	for i := 0; i < 1200; i++ {
		s.Step(50 * time.Millisecond)

		if i%20 == 0 {
			for _, c := range append([]*Collectible(nil), s.collectibles...) {
				if v, ok := s.Collect(c.ID); ok {
					earned += v
				}
			}
		}
		if i%15 == 0 {
			kind := kinds[rng.Intn(len(kinds))]
			if _, err := s.TryPlace(rng.Intn(9), rng.Intn(5), kind); err == nil {
				spent += s.Rules().Defenders[kind].Cost
			}
		}

		if err := s.CheckInvariants(); err != nil {
			t.Fatalf("tick %d: %v", s.Tick(), err)
		}
		if got, want := s.Currency(), start-spent+earned; got != want {
			t.Fatalf("tick %d: currency %d, want %d", s.Tick(), got, want)
		}
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() RunSummary {
		s := NewSim(DefaultRules(), 99)
		for i := 0; i < 3000; i++ {
			s.Step(frame)
			if i == 100 {
				s.TryPlace(1, 2, KindAttacker)
			}
		}
		return s.Summary()
	}

	a, b := run(), run()
	if a != b {
		t.Errorf("same seed diverged: %+v vs %+v", a, b)
	}
}

func TestReset(t *testing.T) {
	s := NewSim(quietRules(), 1)
	s.TryPlace(0, 0, KindBlocker)
	s.SpawnHostile(0)
	s.SpawnCollectible(10, 10)
	mustStep(t, s, 5)

	s.Reset(2)
	if s.Currency() != s.Rules().StartingCurrency || s.Score() != 0 || s.Lost() {
		t.Error("economy not reset")
	}
	if s.DefenderCount() != 0 || s.HostileCount() != 0 || len(s.collectibles) != 0 {
		t.Error("collections not reset")
	}
	if s.Grid().Count() != 0 {
		t.Error("grid not reset")
	}
	if s.Tick() != 0 || s.Now() != 0 || s.Seed() != 2 {
		t.Error("clock not reset")
	}
}
