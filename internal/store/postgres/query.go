package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

// ErrNotFound is returned by lookups whose target row does not exist.
var ErrNotFound = catalog.ErrNotFound

const seriesColumns = `id, name, url, alternative_names, genres, categories, languages,
	image_url, advancement, correspondence, synopsis, is_mature, created_at, updated_at`

// SearchSeries returns series whose name or alternative names match the
// query, ordered by name.
func (s *Store) SearchSeries(ctx context.Context, query string, limit int) ([]catalog.SeriesRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+seriesColumns+`
		 FROM series
		 WHERE name ILIKE '%' || $1 || '%' OR alternative_names::text ILIKE '%' || $1 || '%'
		 ORDER BY name
		 LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}
	defer rows.Close()
	return scanSeriesRows(rows)
}

// GetSeries fetches one series by id.
func (s *Store) GetSeries(ctx context.Context, id int64) (catalog.SeriesRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = $1`, id)
	rec, err := scanSeries(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.SeriesRecord{}, ErrNotFound
	}
	if err != nil {
		return catalog.SeriesRecord{}, fmt.Errorf("get series %d: %w", id, err)
	}
	return rec, nil
}

// ListSeasons returns the seasons of a series in name order.
func (s *Store) ListSeasons(ctx context.Context, seriesID int64) ([]catalog.SeasonRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, series_id, name, url FROM seasons WHERE series_id = $1 ORDER BY name`,
		seriesID)
	if err != nil {
		return nil, fmt.Errorf("list seasons of %d: %w", seriesID, err)
	}
	defer rows.Close()

	var out []catalog.SeasonRecord
	for rows.Next() {
		var rec catalog.SeasonRecord
		if err := rows.Scan(&rec.ID, &rec.SeriesID, &rec.Name, &rec.URL); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEpisodes returns the episodes of a season ordered by episode index.
func (s *Store) ListEpisodes(ctx context.Context, seasonID int64) ([]catalog.EpisodeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, season_id, serie_name, season_name, episode_name, episode_index,
			COALESCE(season_number, 0)
		 FROM episodes WHERE season_id = $1 ORDER BY episode_index`,
		seasonID)
	if err != nil {
		return nil, fmt.Errorf("list episodes of %d: %w", seasonID, err)
	}
	defer rows.Close()

	var out []catalog.EpisodeRecord
	for rows.Next() {
		var rec catalog.EpisodeRecord
		if err := rows.Scan(&rec.ID, &rec.SeasonID, &rec.SerieName, &rec.SeasonName,
			&rec.Name, &rec.Index, &rec.SeasonNumber); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPlayers returns the players of an episode grouped by language in
// presentation order.
func (s *Store) ListPlayers(ctx context.Context, episodeID int64) ([]catalog.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, episode_id, language, player_url, player_hostname, player_order
		 FROM players WHERE episode_id = $1 ORDER BY language, player_order`,
		episodeID)
	if err != nil {
		return nil, fmt.Errorf("list players of %d: %w", episodeID, err)
	}
	defer rows.Close()

	var out []catalog.Player
	for rows.Next() {
		var p catalog.Player
		if err := rows.Scan(&p.ID, &p.EpisodeID, &p.Language, &p.URL, &p.Hostname, &p.Order); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]catalog.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, command, new_series, new_seasons, new_episodes, error_count, created_at
		 FROM logs ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []catalog.RunRecord
	for rows.Next() {
		var rec catalog.RunRecord
		if err := rows.Scan(&rec.ID, &rec.Command, &rec.NewSeries, &rec.NewSeasons,
			&rec.NewEpisodes, &rec.ErrorCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSeriesRows(rows pgx.Rows) ([]catalog.SeriesRecord, error) {
	var out []catalog.SeriesRecord
	for rows.Next() {
		rec, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSeries(row pgx.Row) (catalog.SeriesRecord, error) {
	var (
		rec      catalog.SeriesRecord
		altNames []byte
		genres   []byte
		cats     []byte
		langs    []byte
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.URL, &altNames, &genres, &cats, &langs,
		&rec.ImageURL, &rec.Advancement, &rec.Correspondence, &rec.Synopsis,
		&rec.IsMature, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return catalog.SeriesRecord{}, err
	}
	for _, col := range []struct {
		raw []byte
		dst *[]string
	}{
		{altNames, &rec.AlternativeNames},
		{genres, &rec.Genres},
		{cats, &rec.Categories},
		{langs, &rec.Languages},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return catalog.SeriesRecord{}, fmt.Errorf("decode list column: %w", err)
		}
	}
	return rec, nil
}
