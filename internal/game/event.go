package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with seed and counts
	EventTypeDefenderPlaced
	EventTypeDefenderDestroyed
	EventTypeHostileSpawned
	EventTypeKill
	EventTypeCollectibleSpawned
	EventTypeCollected
	EventTypeLost
	EventTypeRestart
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	Source    string          `json:"source"` // Input origin (for rate limiting), empty for simulation events
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeDefenderPlaced:
		return "defender_placed"
	case EventTypeDefenderDestroyed:
		return "defender_destroyed"
	case EventTypeHostileSpawned:
		return "hostile_spawned"
	case EventTypeKill:
		return "kill"
	case EventTypeCollectibleSpawned:
		return "collectible_spawned"
	case EventTypeCollected:
		return "collected"
	case EventTypeLost:
		return "lost"
	case EventTypeRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes an event type name; unknown names map to EventTypeUnknown
func (t *EventType) UnmarshalText(b []byte) error {
	name := string(b)
	for et := EventTypeTick; et <= EventTypeRestart; et++ {
		if et.String() == name {
			*t = et
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	Seed        int64 `json:"seed"`
	Hostiles    int   `json:"hostiles"`
	Defenders   int   `json:"defenders"`
	DeltaTimeNs int64 `json:"deltaTimeNs"`
}

// PlacementPayload contains defender placement details
type PlacementPayload struct {
	DefenderID EntityID     `json:"defenderId"`
	Kind       DefenderKind `json:"kind"`
	Col        int          `json:"col"`
	Lane       int          `json:"lane"`
	Cost       int          `json:"cost"`
	Currency   int          `json:"currency"`
}

// DefenderDestroyedPayload contains defender death details
type DefenderDestroyedPayload struct {
	DefenderID EntityID     `json:"defenderId"`
	Kind       DefenderKind `json:"kind"`
	Col        int          `json:"col"`
	Lane       int          `json:"lane"`
	HostileID  EntityID     `json:"hostileId"`
}

// HostileSpawnPayload contains hostile spawn details
type HostileSpawnPayload struct {
	HostileID EntityID `json:"hostileId"`
	Lane      int      `json:"lane"`
	Interval  int64    `json:"intervalMs"` // Spawn interval in effect at spawn time
}

// KillPayload contains hostile kill details
type KillPayload struct {
	HostileID    EntityID `json:"hostileId"`
	Lane         int      `json:"lane"`
	X            float64  `json:"x"`
	ProjectileID EntityID `json:"projectileId"`
	Score        int      `json:"score"`
}

// CollectiblePayload contains collectible spawn details
type CollectiblePayload struct {
	CollectibleID EntityID          `json:"collectibleId"`
	X             float64           `json:"x"`
	Y             float64           `json:"y"`
	Source        CollectibleSource `json:"source"`
}

// CollectPayload contains pickup details
type CollectPayload struct {
	CollectibleID EntityID `json:"collectibleId"`
	Value         int      `json:"value"`
	Currency      int      `json:"currency"`
}

// LostPayload contains the end-of-run details
type LostPayload struct {
	HostileID EntityID `json:"hostileId"`
	Lane      int      `json:"lane"`
	Score     int      `json:"score"`
	SimTimeMs int64    `json:"simTimeMs"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
