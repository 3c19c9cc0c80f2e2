package game

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lane-defense/pkg/logger"
)

// EngineConfig configures an Engine
type EngineConfig struct {
	TickRate int           // Ticks per second for the built-in loop
	Seed     int64         // Zero picks a time-based seed per run
	MaxDelta time.Duration // Upper bound for one Advance step
	Rules    Rules
	Limits   ResourceLimits
}

// DefaultEngineConfig returns a 60 TPS engine with default rules
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate: 60,
		MaxDelta: 100 * time.Millisecond,
		Rules:    DefaultRules(),
		Limits:   DefaultLimits,
	}
}

// Engine hosts a Sim for concurrent callers. Input events and ticks are
// serialised by one mutex so inputs always land between ticks.
type Engine struct {
	mu  sync.Mutex
	sim *Sim
	cfg EngineConfig

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	doneChan chan struct{}

	snapshotPool *SnapshotPool
	eventLog     *EventLog

	inputSource string // Set while an input event is applied

	// Callbacks, invoked outside the lock
	OnLost  func(summary RunSummary)
	onTick  func(elapsed time.Duration, snap *GameSnapshot)
	onEvent func(t EventType, payload interface{}) // Runs under the lock
}

// NewEngine creates an engine with a fresh run
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.MaxDelta <= 0 {
		cfg.MaxDelta = 100 * time.Millisecond
	}
	if cfg.Rules.Cols == 0 {
		cfg.Rules = DefaultRules()
	}
	if cfg.Limits == (ResourceLimits{}) {
		cfg.Limits = DefaultLimits
	}

	e := &Engine{
		cfg:          cfg,
		snapshotPool: NewSnapshotPool(cfg.Limits, cfg.Rules.Cols*cfg.Rules.Lanes),
		eventLog:     NewEventLog(),
	}
	e.sim = NewSim(cfg.Rules, e.pickSeed())
	e.sim.SetEventSink(e.record)
	e.ProduceSnapshot()
	return e
}

func (e *Engine) pickSeed() int64 {
	if e.cfg.Seed != 0 {
		return e.cfg.Seed
	}
	return time.Now().UnixNano()
}

// Start begins the fixed-rate tick loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	ticker, stop, done := e.ticker, e.stopChan, e.doneChan
	seed := e.sim.Seed()
	e.mu.Unlock()

	dt := time.Second / time.Duration(e.cfg.TickRate)
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.Advance(dt)
			case <-stop:
				return
			}
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"tps":  e.cfg.TickRate,
		"seed": seed,
	}).Info("🎮 Simulation started")
}

// Stop halts the tick loop and waits for the last tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()

	<-done
	logger.Log.Info("🛑 Simulation stopped")
}

// Running reports whether the tick loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Advance runs one tick of length dt, clamped to MaxDelta, and publishes a snapshot.
// Frame-driven hosts call this once per rendered frame.
func (e *Engine) Advance(dt time.Duration) {
	if dt > e.cfg.MaxDelta {
		dt = e.cfg.MaxDelta
	}
	if dt < 0 {
		dt = 0
	}

	start := time.Now()

	e.mu.Lock()
	wasLost := e.sim.Lost()
	e.sim.Step(dt)
	if !wasLost {
		e.eventLog.EmitSimple(EventTypeTick, e.sim.Tick(), "", TickPayload{
			Seed:        e.sim.Seed(),
			Hostiles:    e.sim.HostileCount(),
			Defenders:   e.sim.DefenderCount(),
			DeltaTimeNs: dt.Nanoseconds(),
		})
	}
	e.ProduceSnapshot()
	justLost := !wasLost && e.sim.Lost()
	summary := e.sim.Summary()
	onTick, onLost := e.onTick, e.OnLost
	e.mu.Unlock()

	if onTick != nil {
		onTick(time.Since(start), e.GetSnapshot())
	}
	if justLost {
		logger.Log.WithFields(logrus.Fields{
			"score": summary.Score,
			"kills": summary.Kills,
			"ticks": summary.Ticks,
		}).Warn("💀 Defended edge breached, run lost")
		if onLost != nil {
			go onLost(summary)
		}
	}
}

// record forwards simulation events to the event log and the process log
func (e *Engine) record(t EventType, payload interface{}) {
	e.eventLog.EmitSimple(t, e.sim.Tick(), e.inputSource, payload)
	if e.onEvent != nil {
		e.onEvent(t, payload)
	}

	switch p := payload.(type) {
	case PlacementPayload:
		logger.Log.WithFields(logrus.Fields{
			"kind":     p.Kind,
			"col":      p.Col,
			"lane":     p.Lane,
			"currency": p.Currency,
			"source":   e.inputSource,
		}).Info("🛡️ Defender placed")
	case DefenderDestroyedPayload:
		logger.Log.WithFields(logrus.Fields{
			"kind": p.Kind,
			"col":  p.Col,
			"lane": p.Lane,
			"tick": e.sim.Tick(),
		}).Info("Defender destroyed")
	case KillPayload:
		logger.Log.WithFields(logrus.Fields{
			"lane":  p.Lane,
			"score": p.Score,
			"tick":  e.sim.Tick(),
		}).Debug("Hostile killed")
	case HostileSpawnPayload:
		logger.Log.WithFields(logrus.Fields{
			"lane":       p.Lane,
			"intervalMs": p.Interval,
		}).Debug("Hostile spawned")
	}
}

// TryPlace places a defender on behalf of an input source
func (e *Engine) TryPlace(col, lane int, kind DefenderKind, source string) (EntityID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputSource = source
	defer func() { e.inputSource = "" }()

	id, err := e.sim.TryPlace(col, lane, kind)
	if err == nil {
		e.ProduceSnapshot()
	}
	return id, err
}

// Collect picks up a collectible on behalf of an input source
func (e *Engine) Collect(id EntityID, source string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputSource = source
	defer func() { e.inputSource = "" }()

	value, ok := e.sim.Collect(id)
	if ok {
		e.ProduceSnapshot()
	}
	return value, ok
}

// SelectKind sets the pending placement kind
func (e *Engine) SelectKind(kind DefenderKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sim.SelectKind(kind); err != nil {
		return err
	}
	e.ProduceSnapshot()
	return nil
}

// PlaceAt resolves a world point to a pickup or a placement of the selected kind
func (e *Engine) PlaceAt(x, y float64, source string) (PointerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputSource = source
	defer func() { e.inputSource = "" }()

	res, err := e.sim.PlaceAt(x, y)
	if res.Action != "none" {
		e.ProduceSnapshot()
	}
	return res, err
}

// Restart discards the current run and begins a new one
func (e *Engine) Restart() RunSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.sim.Summary()
	seed := e.pickSeed()
	e.sim.Reset(seed)
	e.eventLog.EmitSimple(EventTypeRestart, 0, "", prev)
	e.ProduceSnapshot()

	logger.Log.WithFields(logrus.Fields{
		"prevScore": prev.Score,
		"seed":      seed,
	}).Info("🔄 Run restarted")
	return prev
}

// Summary returns the current run totals
func (e *Engine) Summary() RunSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Summary()
}

// Rules returns the constants table in effect
func (e *Engine) Rules() Rules {
	return e.cfg.Rules
}

// GetSnapshot returns the latest published snapshot
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// ProduceSnapshot publishes the current state. Caller must hold e.mu
// (or be the constructor).
func (e *Engine) ProduceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.sim.FillSnapshot(snap, e.snapshotPool.Limits())
	e.snapshotPool.PublishWrite()
}

// SetTickObserver installs a callback run after every tick
func (e *Engine) SetTickObserver(fn func(elapsed time.Duration, snap *GameSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// SetEventObserver installs a callback for every simulation event.
// It runs with the engine locked and must not call back into the engine.
func (e *Engine) SetEventObserver(fn func(t EventType, payload interface{})) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEvent = fn
}

// CheckInvariants verifies grid and defender collection agreement
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.CheckInvariants()
}

// StartEventLog starts the event log writer
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and stops the event log writer
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// RecentEvents returns up to n of the newest logged events
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}
