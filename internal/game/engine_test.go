package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"lane-defense/pkg/logger"
)

func init() {
	logger.Silence()
}

func quietEngine() *Engine {
	cfg := DefaultEngineConfig()
	cfg.Rules = quietRules()
	cfg.Seed = 1
	return NewEngine(cfg)
}

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name     string
		tickRate int
		want     int
	}{
		{"standard 60 TPS", 60, 60},
		{"low 30 TPS", 30, 30},
		{"zero falls back", 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(EngineConfig{TickRate: tt.tickRate})
			if engine == nil {
				t.Fatal("NewEngine returned nil")
			}
			if engine.cfg.TickRate != tt.want {
				t.Errorf("tick rate = %d, want %d", engine.cfg.TickRate, tt.want)
			}
			snap := engine.GetSnapshot()
			if snap.Currency != engine.Rules().StartingCurrency {
				t.Errorf("initial snapshot currency = %d", snap.Currency)
			}
			if snap.Cols != 9 || snap.Lanes != 5 {
				t.Errorf("snapshot grid = %dx%d", snap.Cols, snap.Lanes)
			}
		})
	}
}

// TestEngineStartStop verifies engine can start and stop without panics
func TestEngineStartStop(t *testing.T) {
	engine := quietEngine()

	engine.Start()
	engine.Start() // second start is a no-op
	time.Sleep(100 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	if engine.Running() {
		t.Error("engine still running after Stop")
	}
	if engine.Summary().Ticks == 0 {
		t.Error("no ticks ran while started")
	}

	// Restartable
	engine.Start()
	engine.Stop()
}

func TestEngineAdvanceClampsDelta(t *testing.T) {
	engine := quietEngine()

	engine.Advance(5 * time.Second)
	if got := engine.Summary().SimTime; got != engine.cfg.MaxDelta {
		t.Errorf("sim time = %v, want clamp to %v", got, engine.cfg.MaxDelta)
	}
	engine.Advance(-time.Second)
	if got := engine.Summary().SimTime; got != engine.cfg.MaxDelta {
		t.Errorf("negative delta moved time to %v", got)
	}
}

func TestEnginePlacementPublishesSnapshot(t *testing.T) {
	engine := quietEngine()

	id, err := engine.TryPlace(2, 3, KindAttacker, "tester")
	if err != nil {
		t.Fatalf("TryPlace failed: %v", err)
	}

	snap := engine.GetSnapshot()
	if len(snap.Defenders) != 1 || snap.Defenders[0].ID != id {
		t.Fatalf("snapshot defenders = %+v", snap.Defenders)
	}
	if snap.Currency != 50 {
		t.Errorf("snapshot currency = %d, want 50", snap.Currency)
	}

	if _, err := engine.TryPlace(2, 3, KindBlocker, "tester"); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("duplicate placement err = %v", err)
	}
}

func TestEngineSelectAndPlaceAt(t *testing.T) {
	engine := quietEngine()

	if err := engine.SelectKind(KindProducer); err != nil {
		t.Fatal(err)
	}
	if engine.GetSnapshot().SelectedKind != KindProducer {
		t.Error("selection not visible in snapshot")
	}

	res, err := engine.PlaceAt(15, 25, "mouse")
	if err != nil {
		t.Fatalf("PlaceAt failed: %v", err)
	}
	if res.Action != "place" || res.Kind != KindProducer {
		t.Errorf("PlaceAt result = %+v", res)
	}
	if d := engine.GetSnapshot().Defenders; len(d) != 1 || d[0].Col != 1 || d[0].Lane != 2 {
		t.Errorf("defenders = %+v", d)
	}
}

func TestEngineOnLostFiresOnce(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Rules = quietRules()
	cfg.Rules.HostileSpeed = 100
	cfg.Seed = 1
	engine := NewEngine(cfg)

	var mu sync.Mutex
	calls := 0
	done := make(chan RunSummary, 4)
	engine.OnLost = func(s RunSummary) {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- s
	}

	engine.mu.Lock()
	engine.sim.SpawnHostile(0)
	engine.mu.Unlock()

	for i := 0; i < 100; i++ {
		engine.Advance(frame)
	}

	select {
	case s := <-done:
		if !s.Lost {
			t.Error("summary should be marked lost")
		}
	case <-time.After(time.Second):
		t.Fatal("OnLost not called")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("OnLost called %d times, want 1", calls)
	}
	if !engine.GetSnapshot().Lost {
		t.Error("snapshot should report lost")
	}
}

func TestEngineRestart(t *testing.T) {
	engine := quietEngine()
	engine.TryPlace(0, 0, KindBlocker, "")
	engine.Advance(frame)

	prev := engine.Restart()
	if prev.DefendersPlaced != 1 {
		t.Errorf("previous summary placed = %d, want 1", prev.DefendersPlaced)
	}
	snap := engine.GetSnapshot()
	if len(snap.Defenders) != 0 || snap.TickNumber != 0 || snap.Currency != engine.Rules().StartingCurrency {
		t.Errorf("snapshot after restart = %+v", snap)
	}
	if err := engine.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestEngineTickObserver(t *testing.T) {
	engine := quietEngine()

	var seen uint64
	engine.SetTickObserver(func(_ time.Duration, snap *GameSnapshot) {
		seen = snap.TickNumber
	})
	engine.Advance(frame)
	engine.Advance(frame)

	if seen != 2 {
		t.Errorf("observer saw tick %d, want 2", seen)
	}
}

func TestEngineConcurrentInputs(t *testing.T) {
	engine := quietEngine()
	engine.Start()
	defer engine.Stop()

	var wg sync.WaitGroup
	for lane := 0; lane < 5; lane++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			for col := 0; col < 9; col++ {
				engine.TryPlace(col, lane, KindBlocker, "")
				engine.GetSnapshot()
			}
		}(lane)
	}
	wg.Wait()

	if err := engine.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if got := engine.Summary().DefendersPlaced; got != 3 {
		t.Errorf("placed %d blockers with 150 currency, want 3", got)
	}
}

func TestEngineEventObserver(t *testing.T) {
	engine := quietEngine()

	var seen []EventType
	engine.SetEventObserver(func(et EventType, payload interface{}) {
		seen = append(seen, et)
		if et == EventTypeDefenderPlaced {
			if p, ok := payload.(PlacementPayload); !ok || p.Kind != KindBlocker {
				t.Errorf("placement payload = %#v", payload)
			}
		}
	})

	if _, err := engine.TryPlace(0, 0, KindBlocker, "tester"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != EventTypeDefenderPlaced {
		t.Errorf("observed %v", seen)
	}
}
