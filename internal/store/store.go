// Package store records finished runs.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lane-defense/internal/game"
)

// Result is one finished run
type Result struct {
	ID              int64     `json:"id"`
	Seed            int64     `json:"seed"`
	Score           int       `json:"score"`
	Kills           int       `json:"kills"`
	DefendersPlaced int       `json:"defendersPlaced"`
	Ticks           uint64    `json:"ticks"`
	SimTimeMs       int64     `json:"simTimeMs"`
	EndedAt         time.Time `json:"endedAt"`
}

// ResultFromSummary converts an engine run summary
func ResultFromSummary(s game.RunSummary, endedAt time.Time) Result {
	return Result{
		Seed:            s.Seed,
		Score:           s.Score,
		Kills:           s.Kills,
		DefendersPlaced: s.DefendersPlaced,
		Ticks:           s.Ticks,
		SimTimeMs:       s.SimTime.Milliseconds(),
		EndedAt:         endedAt.UTC(),
	}
}

// Store persists run results
type Store interface {
	SaveResult(ctx context.Context, r Result) (int64, error)
	TopResults(ctx context.Context, limit int) ([]Result, error)
	Close() error
}

// Config selects a Store implementation
type Config struct {
	Driver      string // "json", "postgres" or "none"
	DatabaseURL string
	Path        string
}

// Open returns the Store named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "json", "":
		return NewJSONStore(cfg.Path)
	case "none":
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("unknown results driver %q", cfg.Driver)
}

// NopStore discards results
type NopStore struct{}

func (NopStore) SaveResult(context.Context, Result) (int64, error) { return 0, nil }
func (NopStore) TopResults(context.Context, int) ([]Result, error) { return nil, nil }
func (NopStore) Close() error { return nil }

// rank orders results best first: score, then kills, then earliest end
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		return a.EndedAt.Before(b.EndedAt)
	})
}
