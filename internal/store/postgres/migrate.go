package postgres

import (
	"context"
	"fmt"
)

// migrations create the five catalogue tables and their indexes. Every
// statement is IF NOT EXISTS so EnsureSchema is a no-op on an already
// migrated database.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS series (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		alternative_names JSONB NOT NULL DEFAULT '[]',
		genres JSONB NOT NULL DEFAULT '[]',
		categories JSONB NOT NULL DEFAULT '[]',
		languages JSONB NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		advancement TEXT NOT NULL DEFAULT '',
		correspondence TEXT NOT NULL DEFAULT '',
		synopsis TEXT NOT NULL DEFAULT '',
		is_mature BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seasons (
		id BIGSERIAL PRIMARY KEY,
		series_id BIGINT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (series_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seasons_series ON seasons (series_id)`,
	`CREATE TABLE IF NOT EXISTS episodes (
		id BIGSERIAL PRIMARY KEY,
		season_id BIGINT NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
		serie_name TEXT NOT NULL,
		season_name TEXT NOT NULL,
		episode_name TEXT NOT NULL,
		episode_index INT NOT NULL,
		season_number INT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (season_id, episode_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_season ON episodes (season_id)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_serie ON episodes (serie_name)`,
	`CREATE TABLE IF NOT EXISTS players (
		id BIGSERIAL PRIMARY KEY,
		episode_id BIGINT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
		language TEXT NOT NULL,
		player_url TEXT NOT NULL,
		player_hostname TEXT NOT NULL DEFAULT '',
		player_order INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_players_episode ON players (episode_id)`,
	`CREATE INDEX IF NOT EXISTS idx_players_language ON players (language)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id BIGSERIAL PRIMARY KEY,
		command TEXT NOT NULL,
		new_series INT NOT NULL DEFAULT 0,
		new_seasons INT NOT NULL DEFAULT 0,
		new_episodes INT NOT NULL DEFAULT 0,
		error_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_command ON logs (command)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs (created_at)`,
}

// EnsureSchema creates the tables, constraints, and indexes the store needs.
// Safe to invoke on every process start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.log.Info("database schema ensured")
	return nil
}

// MigrationCount reports how many DDL statements EnsureSchema applies.
func MigrationCount() int {
	return len(migrations)
}
