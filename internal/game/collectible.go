package game

import (
	"fmt"
	"math"
	"time"
)

// settleEpsilon is how close to rest height a collectible must be to count as settled
const settleEpsilon = 0.01

// CollectibleSource records where a collectible came from
type CollectibleSource uint8

const (
	SourceSky CollectibleSource = iota
	SourceProducer
)

// String returns the source name
func (src CollectibleSource) String() string {
	if src == SourceProducer {
		return "producer"
	}
	return "sky"
}

// MarshalText encodes the source by name
func (src CollectibleSource) MarshalText() ([]byte, error) {
	return []byte(src.String()), nil
}

// UnmarshalText decodes a source name
func (src *CollectibleSource) UnmarshalText(b []byte) error {
	switch string(b) {
	case "sky":
		*src = SourceSky
	case "producer":
		*src = SourceProducer
	default:
		return fmt.Errorf("unknown collectible source %q", b)
	}
	return nil
}

// Collectible is a currency pickup that eases down to rest and stays until collected
type Collectible struct {
	ID     EntityID
	X, Y   float64
	Height float64

	RestHeight float64
	Value      int
	Source     CollectibleSource
	CreatedAt  time.Duration
	Settled    bool
}

// update eases the height toward rest
func (c *Collectible) update(fallRate, dt float64) {
	if c.Settled {
		return
	}
	step := math.Min(1, fallRate*dt)
	c.Height += (c.RestHeight - c.Height) * step
	if math.Abs(c.Height-c.RestHeight) < settleEpsilon {
		c.Height = c.RestHeight
		c.Settled = true
	}
}

func (s *Sim) spawnCollectible(x, y, height float64, src CollectibleSource) EntityID {
	c := &Collectible{
		ID:         s.nextEntityID(),
		X:          x,
		Y:          y,
		Height:     height,
		RestHeight: s.rules.RestHeight,
		Value:      s.rules.CollectValue,
		Source:     src,
		CreatedAt:  s.now,
	}
	s.collectibles = append(s.collectibles, c)
	s.emit(EventTypeCollectibleSpawned, CollectiblePayload{
		CollectibleID: c.ID,
		X:             c.X,
		Y:             c.Y,
		Source:        src,
	})
	return c.ID
}

func (s *Sim) updateCollectibles(dt float64) {
	for _, c := range s.collectibles {
		c.update(s.rules.FallRate, dt)
	}
}

// removeCollectible drops a collectible by id, preserving order
func (s *Sim) removeCollectible(id EntityID) (*Collectible, bool) {
	for i, c := range s.collectibles {
		if c.ID != id {
			continue
		}
		copy(s.collectibles[i:], s.collectibles[i+1:])
		s.collectibles[len(s.collectibles)-1] = nil
		s.collectibles = s.collectibles[:len(s.collectibles)-1]
		return c, true
	}
	return nil, false
}
