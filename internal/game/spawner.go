package game

import "time"

// HostileSpawnInterval returns the current hostile spawn interval for a score:
// max(base - min(maxRamp, score*rampPerPoint), floor)
func (r Rules) HostileSpawnInterval(score int) time.Duration {
	ramp := time.Duration(score) * r.SpawnRampPerPoint
	if ramp > r.SpawnMaxRamp {
		ramp = r.SpawnMaxRamp
	}
	interval := r.SpawnBaseInterval - ramp
	if interval < r.SpawnFloor {
		interval = r.SpawnFloor
	}
	return interval
}

// runSpawner fires the hostile and sky-collectible timers. Timers reset to now on firing.
func (s *Sim) runSpawner() {
	if s.now-s.lastHostileSpawn >= s.rules.HostileSpawnInterval(s.score) {
		s.SpawnHostile(s.rng.Intn(s.rules.Lanes))
		s.lastHostileSpawn = s.now
	}

	if s.now-s.lastCollectibleSpawn >= s.rules.CollectibleInterval {
		x := s.rng.Float64() * s.rules.FarEdge()
		y := s.rng.Float64() * s.rules.Height()
		s.spawnCollectible(x, y, s.rules.SkyHeight, SourceSky)
		s.lastCollectibleSpawn = s.now
	}
}

// SpawnHostile places a new hostile at the far edge of a lane.
// Returns zero for an invalid lane or after the run is lost.
func (s *Sim) SpawnHostile(lane int) EntityID {
	if s.lost || lane < 0 || lane >= s.rules.Lanes {
		return 0
	}
	h := newHostile(s.nextEntityID(), lane, s.rules, s.now)
	s.hostiles = append(s.hostiles, h)
	s.emit(EventTypeHostileSpawned, HostileSpawnPayload{
		HostileID: h.ID,
		Lane:      lane,
		Interval:  s.rules.HostileSpawnInterval(s.score).Milliseconds(),
	})
	return h.ID
}

// SpawnCollectible drops a sky collectible at (x, y)
func (s *Sim) SpawnCollectible(x, y float64) EntityID {
	if s.lost {
		return 0
	}
	return s.spawnCollectible(x, y, s.rules.SkyHeight, SourceSky)
}
