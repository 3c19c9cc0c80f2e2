package game

// MaxProjectiles caps live projectiles per simulation
const MaxProjectiles = 512

// Projectile travels along its lane toward the far edge and hits at most one hostile
type Projectile struct {
	ID     EntityID
	Source EntityID // Attacker that fired it
	Lane   int

	X, Y   float64
	Speed  float64 // units per second along +X
	Damage int

	Alive bool
}

func newProjectile(id EntityID, lane int, x, y float64, damage int, source EntityID, speed float64) *Projectile {
	return &Projectile{
		ID:     id,
		Source: source,
		Lane:   lane,
		X:      x,
		Y:      y,
		Speed:  speed,
		Damage: damage,
		Alive:  true,
	}
}

// fireProjectile spawns a projectile. Silently dropped at the cap.
func (s *Sim) fireProjectile(lane int, x, y float64, damage int, source EntityID) EntityID {
	if len(s.projectiles) >= MaxProjectiles {
		return 0
	}
	p := newProjectile(s.nextEntityID(), lane, x, y, damage, source, s.rules.ProjectileSpeed)
	s.projectiles = append(s.projectiles, p)
	return p.ID
}

// updateProjectile moves a projectile and resolves its first hit.
// The hit test sweeps the whole distance covered this tick, so long
// frames cannot carry a projectile past a hostile. Among hostiles in the
// swept span the nearest one is hit, ties going to the earliest created.
// Returns false if the projectile should be removed.
func (s *Sim) updateProjectile(p *Projectile, dt float64) bool {
	from := p.X
	p.X += p.Speed * dt

	var hit *Hostile
	for _, h := range s.hostiles {
		if h.Dead || h.Lane != p.Lane {
			continue
		}
		if h.X < from-s.rules.HitRadius || h.X >= p.X+s.rules.HitRadius {
			continue
		}
		if hit == nil || h.X < hit.X {
			hit = h
		}
	}
	if hit != nil {
		s.damageHostile(hit, p.Damage, p.ID)
		p.Alive = false
		return false
	}

	if p.X > s.rules.TravelBound() {
		p.Alive = false
		return false
	}
	return true
}

// updateProjectiles moves projectiles and sweeps spent ones in place
func (s *Sim) updateProjectiles(dt float64) {
	n := 0
	for _, p := range s.projectiles {
		if !p.Alive || !s.updateProjectile(p, dt) {
			continue
		}
		s.projectiles[n] = p
		n++
	}
	for i := n; i < len(s.projectiles); i++ {
		s.projectiles[i] = nil
	}
	s.projectiles = s.projectiles[:n]
}
