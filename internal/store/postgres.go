package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore records results in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and ensures the schema exists
func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_results (
		id BIGSERIAL PRIMARY KEY,
		seed BIGINT NOT NULL,
		score INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		defenders_placed INTEGER NOT NULL,
		ticks BIGINT NOT NULL,
		sim_time_ms BIGINT NOT NULL,
		ended_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS run_results_score_idx ON run_results (score DESC, kills DESC);
	`

	_, err := ps.db.ExecContext(ctx, schema)
	return err
}

// SaveResult inserts a result and returns its id
func (ps *PostgresStore) SaveResult(ctx context.Context, r Result) (int64, error) {
	query := `
	INSERT INTO run_results (seed, score, kills, defenders_placed, ticks, sim_time_ms, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`

	var id int64
	err := ps.db.QueryRowContext(ctx, query,
		r.Seed, r.Score, r.Kills, r.DefendersPlaced, int64(r.Ticks), r.SimTimeMs, r.EndedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save result: %w", err)
	}
	return id, nil
}

// TopResults returns the best results, best first
func (ps *PostgresStore) TopResults(ctx context.Context, limit int) ([]Result, error) {
	query := `
	SELECT id, seed, score, kills, defenders_placed, ticks, sim_time_ms, ended_at
	FROM run_results
	ORDER BY score DESC, kills DESC, ended_at ASC
	LIMIT $1
	`

	rows, err := ps.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var ticks int64
		if err := rows.Scan(&r.ID, &r.Seed, &r.Score, &r.Kills, &r.DefendersPlaced, &ticks, &r.SimTimeMs, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Ticks = uint64(ticks)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return out, nil
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
