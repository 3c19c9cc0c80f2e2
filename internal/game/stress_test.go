package game

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// STRESS TEST SUITE: CONCURRENT INPUT AGAINST A LIVE TICK LOOP
// Run with: go test -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

// StressTestResult contains metrics from a stress run
type StressTestResult struct {
	Duration        time.Duration
	Ticks           uint64
	MaxTickTime     time.Duration
	CommandsHandled int64
	Placements      int64
}

// StressTestConfig configures stress test parameters
type StressTestConfig struct {
	Duration         time.Duration
	TickRate         int
	Workers          int
	LatencyThreshold time.Duration
}

// DefaultStressConfig returns a short, busy stress configuration
func DefaultStressConfig() StressTestConfig {
	return StressTestConfig{
		Duration:         2 * time.Second,
		TickRate:         120,
		Workers:          8,
		LatencyThreshold: 50 * time.Millisecond,
	}
}

func TestStress_ConcurrentInputs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	result := runStressTest(t, DefaultStressConfig())

	if result.Ticks == 0 {
		t.Fatal("tick loop never ran")
	}
	if result.MaxTickTime > DefaultStressConfig().LatencyThreshold {
		t.Errorf("max tick time %v exceeds threshold", result.MaxTickTime)
	}

	t.Logf("Stress Test Results:")
	t.Logf("  Duration: %v", result.Duration)
	t.Logf("  Ticks: %d", result.Ticks)
	t.Logf("  Max Tick Time: %v", result.MaxTickTime)
	t.Logf("  Commands Handled: %d", result.CommandsHandled)
	t.Logf("  Placements: %d", result.Placements)
}

func runStressTest(t *testing.T, cfg StressTestConfig) StressTestResult {
	t.Helper()

	ecfg := DefaultEngineConfig()
	ecfg.TickRate = cfg.TickRate
	ecfg.Seed = 99
	ecfg.Rules.StartingCurrency = 5000
	ecfg.Rules.SpawnBaseInterval = 200 * time.Millisecond
	ecfg.Rules.SpawnFloor = 100 * time.Millisecond
	engine := NewEngine(ecfg)

	var maxTick atomic.Int64
	engine.SetTickObserver(func(elapsed time.Duration, _ *GameSnapshot) {
		for {
			cur := maxTick.Load()
			if int64(elapsed) <= cur || maxTick.CompareAndSwap(cur, int64(elapsed)) {
				return
			}
		}
	})

	var commands, placements atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup

	start := time.Now()
	engine.Start()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}

				switch rng.Intn(5) {
				case 0, 1:
					kind := AllDefenderKinds[rng.Intn(len(AllDefenderKinds))]
					if _, err := engine.TryPlace(rng.Intn(9), rng.Intn(5), kind, "stress"); err == nil {
						placements.Add(1)
					}
				case 2:
					snap := engine.GetSnapshot()
					if len(snap.Collectibles) > 0 {
						engine.Collect(snap.Collectibles[0].ID, "stress")
					}
				case 3:
					engine.PlaceAt(rng.Float64()*90, rng.Float64()*50, "stress")
				case 4:
					engine.SelectKind(AllDefenderKinds[rng.Intn(len(AllDefenderKinds))])
				}
				commands.Add(1)

				if err := engine.CheckInvariants(); err != nil {
					t.Error(err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(int64(w))
	}

	time.Sleep(cfg.Duration)
	close(stop)
	wg.Wait()
	engine.Stop()

	return StressTestResult{
		Duration:        time.Since(start),
		Ticks:           engine.Summary().Ticks,
		MaxTickTime:     time.Duration(maxTick.Load()),
		CommandsHandled: commands.Load(),
		Placements:      placements.Load(),
	}
}

func TestStress_RestartUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	engine := quietEngine()
	engine.Start()
	defer engine.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			engine.TryPlace(i%9, i%5, KindBlocker, "a")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			engine.Restart()
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	if err := engine.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}
