package game

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefenderStats holds the per-kind constants for a defender
type DefenderStats struct {
	Cost     int
	Health   int
	Cooldown time.Duration // Fire cooldown for attackers, production interval for producers
	Damage   int           // Projectile damage (attackers only)
}

// Rules is the complete constants table for a simulation.
// Pure data: the simulation never mutates it.
type Rules struct {
	// Grid
	Cols     int
	Lanes    int
	TileSize float64

	StartingCurrency int

	Defenders map[DefenderKind]DefenderStats

	// Projectiles
	ProjectileSpeed float64 // units per second along +X
	HitRadius       float64
	MuzzleOffset    float64

	// Hostiles
	HostileHealth         int
	HostileSpeed          float64 // units per second along -X
	HostileDamage         int
	HostileAttackInterval time.Duration
	KillBonus             int
	EngageRadius          float64
	LossThreshold         float64

	// Hostile spawn ramp
	SpawnBaseInterval time.Duration
	SpawnRampPerPoint time.Duration
	SpawnMaxRamp      time.Duration
	SpawnFloor        time.Duration

	// Collectibles
	CollectibleInterval time.Duration
	CollectValue        int
	SkyHeight           float64
	RestHeight          float64
	ProducerDropHeight  float64
	FallRate            float64 // fraction of remaining height closed per second
	PickupRadius        float64

	// Defender hit feedback: X offset range around BaseX
	Jitter float64
}

// DefaultRules returns the default constants table
func DefaultRules() Rules {
	return Rules{
		Cols:             9,
		Lanes:            5,
		TileSize:         10,
		StartingCurrency: 150,
		Defenders: map[DefenderKind]DefenderStats{
			KindAttacker: {Cost: 100, Health: 100, Cooldown: 1500 * time.Millisecond, Damage: 25},
			KindProducer: {Cost: 50, Health: 80, Cooldown: 10 * time.Second},
			KindBlocker:  {Cost: 50, Health: 400},
		},
		ProjectileSpeed:       30,
		HitRadius:             2.5,
		MuzzleOffset:          4,
		HostileHealth:         100,
		HostileSpeed:          2,
		HostileDamage:         20,
		HostileAttackInterval: time.Second,
		KillBonus:             10,
		EngageRadius:          3,
		LossThreshold:         0,
		SpawnBaseInterval:     10 * time.Second,
		SpawnRampPerPoint:     50 * time.Millisecond,
		SpawnMaxRamp:          6 * time.Second,
		SpawnFloor:            2 * time.Second,
		CollectibleInterval:   8 * time.Second,
		CollectValue:          25,
		SkyHeight:             20,
		RestHeight:            0.5,
		ProducerDropHeight:    6,
		FallRate:              2,
		PickupRadius:          3,
		Jitter:                0.3,
	}
}

// FarEdge is the X coordinate where hostiles enter
func (r Rules) FarEdge() float64 {
	return float64(r.Cols) * r.TileSize
}

// TravelBound is the X coordinate past which projectiles are discarded
func (r Rules) TravelBound() float64 {
	return r.FarEdge() + r.TileSize
}

// Height is the extent of the grid footprint along Y
func (r Rules) Height() float64 {
	return float64(r.Lanes) * r.TileSize
}

// CellCenter returns the world position of a cell centre
func (r Rules) CellCenter(col, lane int) (x, y float64) {
	return (float64(col) + 0.5) * r.TileSize, (float64(lane) + 0.5) * r.TileSize
}

// Stats returns the constants for a defender kind
func (r Rules) Stats(kind DefenderKind) (DefenderStats, bool) {
	s, ok := r.Defenders[kind]
	return s, ok
}

// Validate reports the first constant that would make the simulation ill-formed
func (r Rules) Validate() error {
	switch {
	case r.Cols <= 0 || r.Lanes <= 0:
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", r.Cols, r.Lanes)
	case r.TileSize <= 0:
		return fmt.Errorf("tile size must be positive, got %v", r.TileSize)
	case r.EngageRadius >= r.TileSize/2:
		return fmt.Errorf("engage radius %v must be below half a tile (%v)", r.EngageRadius, r.TileSize/2)
	case r.SpawnFloor <= 0:
		return fmt.Errorf("spawn floor must be positive, got %v", r.SpawnFloor)
	case r.CollectibleInterval <= 0:
		return fmt.Errorf("collectible interval must be positive, got %v", r.CollectibleInterval)
	case r.StartingCurrency < 0:
		return fmt.Errorf("starting currency must not be negative, got %d", r.StartingCurrency)
	}
	for _, kind := range AllDefenderKinds {
		s, ok := r.Defenders[kind]
		if !ok {
			return fmt.Errorf("missing stats for %s", kind)
		}
		if s.Cost < 0 || s.Health <= 0 {
			return fmt.Errorf("invalid stats for %s: cost %d health %d", kind, s.Cost, s.Health)
		}
	}
	return nil
}

// defenderFile is the on-disk form of DefenderStats
type defenderFile struct {
	Cost       *int `json:"cost"`
	Health     *int `json:"health"`
	CooldownMs *int `json:"cooldown_ms"`
	Damage     *int `json:"damage"`
}

// rulesFile is the on-disk overlay. Absent fields keep their defaults.
type rulesFile struct {
	Cols             *int     `json:"cols"`
	Lanes            *int     `json:"lanes"`
	TileSize         *float64 `json:"tile_size"`
	StartingCurrency *int     `json:"starting_currency"`

	Defenders map[string]defenderFile `json:"defenders"`

	ProjectileSpeed *float64 `json:"projectile_speed"`
	HitRadius       *float64 `json:"hit_radius"`
	MuzzleOffset    *float64 `json:"muzzle_offset"`

	HostileHealth           *int     `json:"hostile_health"`
	HostileSpeed            *float64 `json:"hostile_speed"`
	HostileDamage           *int     `json:"hostile_damage"`
	HostileAttackIntervalMs *int     `json:"hostile_attack_interval_ms"`
	KillBonus               *int     `json:"kill_bonus"`
	EngageRadius            *float64 `json:"engage_radius"`
	LossThreshold           *float64 `json:"loss_threshold"`

	SpawnBaseIntervalMs *int `json:"spawn_base_interval_ms"`
	SpawnRampPerPointMs *int `json:"spawn_ramp_per_point_ms"`
	SpawnMaxRampMs      *int `json:"spawn_max_ramp_ms"`
	SpawnFloorMs        *int `json:"spawn_floor_ms"`

	CollectibleIntervalMs *int     `json:"collectible_interval_ms"`
	CollectValue          *int     `json:"collect_value"`
	SkyHeight             *float64 `json:"sky_height"`
	RestHeight            *float64 `json:"rest_height"`
	ProducerDropHeight    *float64 `json:"producer_drop_height"`
	FallRate              *float64 `json:"fall_rate"`
	PickupRadius          *float64 `json:"pickup_radius"`
	Jitter                *float64 `json:"jitter"`
}

// LoadRules reads a JSON overlay on top of DefaultRules.
// An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules applies a JSON overlay to DefaultRules
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()

	var f rulesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return rules, fmt.Errorf("failed to parse rules: %w", err)
	}

	setInt(&rules.Cols, f.Cols)
	setInt(&rules.Lanes, f.Lanes)
	setFloat(&rules.TileSize, f.TileSize)
	setInt(&rules.StartingCurrency, f.StartingCurrency)

	for name, df := range f.Defenders {
		kind, err := ParseDefenderKind(name)
		if err != nil {
			return rules, fmt.Errorf("rules defenders: %w", err)
		}
		s := rules.Defenders[kind]
		setInt(&s.Cost, df.Cost)
		setInt(&s.Health, df.Health)
		setMs(&s.Cooldown, df.CooldownMs)
		setInt(&s.Damage, df.Damage)
		rules.Defenders[kind] = s
	}

	setFloat(&rules.ProjectileSpeed, f.ProjectileSpeed)
	setFloat(&rules.HitRadius, f.HitRadius)
	setFloat(&rules.MuzzleOffset, f.MuzzleOffset)

	setInt(&rules.HostileHealth, f.HostileHealth)
	setFloat(&rules.HostileSpeed, f.HostileSpeed)
	setInt(&rules.HostileDamage, f.HostileDamage)
	setMs(&rules.HostileAttackInterval, f.HostileAttackIntervalMs)
	setInt(&rules.KillBonus, f.KillBonus)
	setFloat(&rules.EngageRadius, f.EngageRadius)
	setFloat(&rules.LossThreshold, f.LossThreshold)

	setMs(&rules.SpawnBaseInterval, f.SpawnBaseIntervalMs)
	setMs(&rules.SpawnRampPerPoint, f.SpawnRampPerPointMs)
	setMs(&rules.SpawnMaxRamp, f.SpawnMaxRampMs)
	setMs(&rules.SpawnFloor, f.SpawnFloorMs)

	setMs(&rules.CollectibleInterval, f.CollectibleIntervalMs)
	setInt(&rules.CollectValue, f.CollectValue)
	setFloat(&rules.SkyHeight, f.SkyHeight)
	setFloat(&rules.RestHeight, f.RestHeight)
	setFloat(&rules.ProducerDropHeight, f.ProducerDropHeight)
	setFloat(&rules.FallRate, f.FallRate)
	setFloat(&rules.PickupRadius, f.PickupRadius)
	setFloat(&rules.Jitter, f.Jitter)

	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid rules: %w", err)
	}
	return rules, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setMs(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

// MarshalJSON encodes the rules in the same shape LoadRules reads
func (r Rules) MarshalJSON() ([]byte, error) {
	ms := func(d time.Duration) *int { v := int(d / time.Millisecond); return &v }
	i := func(v int) *int { return &v }
	f := func(v float64) *float64 { return &v }

	out := rulesFile{
		Cols:                    i(r.Cols),
		Lanes:                   i(r.Lanes),
		TileSize:                f(r.TileSize),
		StartingCurrency:        i(r.StartingCurrency),
		Defenders:               make(map[string]defenderFile, len(r.Defenders)),
		ProjectileSpeed:         f(r.ProjectileSpeed),
		HitRadius:               f(r.HitRadius),
		MuzzleOffset:            f(r.MuzzleOffset),
		HostileHealth:           i(r.HostileHealth),
		HostileSpeed:            f(r.HostileSpeed),
		HostileDamage:           i(r.HostileDamage),
		HostileAttackIntervalMs: ms(r.HostileAttackInterval),
		KillBonus:               i(r.KillBonus),
		EngageRadius:            f(r.EngageRadius),
		LossThreshold:           f(r.LossThreshold),
		SpawnBaseIntervalMs:     ms(r.SpawnBaseInterval),
		SpawnRampPerPointMs:     ms(r.SpawnRampPerPoint),
		SpawnMaxRampMs:          ms(r.SpawnMaxRamp),
		SpawnFloorMs:            ms(r.SpawnFloor),
		CollectibleIntervalMs:   ms(r.CollectibleInterval),
		CollectValue:            i(r.CollectValue),
		SkyHeight:               f(r.SkyHeight),
		RestHeight:              f(r.RestHeight),
		ProducerDropHeight:      f(r.ProducerDropHeight),
		FallRate:                f(r.FallRate),
		PickupRadius:            f(r.PickupRadius),
		Jitter:                  f(r.Jitter),
	}
	for kind, s := range r.Defenders {
		out.Defenders[kind.String()] = defenderFile{
			Cost:       i(s.Cost),
			Health:     i(s.Health),
			CooldownMs: ms(s.Cooldown),
			Damage:     i(s.Damage),
		}
	}
	return json.Marshal(out)
}
