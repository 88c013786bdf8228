package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/catalog"
	"github.com/scrapsama/scrapsama/internal/metrics"
)

const upsertSeriesSQL = `
INSERT INTO series
	(name, url, alternative_names, genres, categories, languages, image_url,
	 advancement, correspondence, synopsis, is_mature)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (name) DO UPDATE SET
	url = EXCLUDED.url,
	alternative_names = EXCLUDED.alternative_names,
	genres = EXCLUDED.genres,
	categories = EXCLUDED.categories,
	languages = EXCLUDED.languages,
	image_url = EXCLUDED.image_url,
	advancement = EXCLUDED.advancement,
	correspondence = EXCLUDED.correspondence,
	synopsis = EXCLUDED.synopsis,
	is_mature = EXCLUDED.is_mature,
	updated_at = NOW()
RETURNING id`

// SaveSeries upserts a series keyed on its name. isNew reflects whether the
// row existed before this call; on any failure the transaction rolls back
// and (0, false, err) is returned.
func (s *Store) SaveSeries(ctx context.Context, serie catalog.Series) (int64, bool, error) {
	if serie.Name == "" {
		return 0, false, fmt.Errorf("series name is required")
	}

	altNames, err := jsonList(serie.AlternativeNames)
	if err != nil {
		return 0, false, fmt.Errorf("marshal alternative names: %w", err)
	}
	genres, err := jsonList(serie.Genres)
	if err != nil {
		return 0, false, fmt.Errorf("marshal genres: %w", err)
	}
	categories, err := jsonList(serie.Categories)
	if err != nil {
		return 0, false, fmt.Errorf("marshal categories: %w", err)
	}
	languages, err := jsonList(serie.Languages)
	if err != nil {
		return 0, false, fmt.Errorf("marshal languages: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin save series: %w", err)
	}
	defer rollback(ctx, tx)

	isNew, err := missing(tx.QueryRow(ctx, `SELECT id FROM series WHERE name = $1`, serie.Name))
	if err != nil {
		return 0, false, fmt.Errorf("check series %q: %w", serie.Name, err)
	}

	var id int64
	err = tx.QueryRow(ctx, upsertSeriesSQL,
		serie.Name, serie.URL, altNames, genres, categories, languages,
		serie.ImageURL, serie.Advancement, serie.Correspondence, serie.Synopsis,
		serie.IsMature,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("upsert series %q: %w", serie.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit save series: %w", err)
	}

	metrics.RowsSavedTotal.WithLabelValues("series", metrics.SaveOutcome(isNew)).Inc()
	s.log.Info("series saved",
		zap.String("name", serie.Name), zap.Int64("id", id), zap.Bool("new", isNew))
	return id, isNew, nil
}

const upsertSeasonSQL = `
INSERT INTO seasons (series_id, name, url)
VALUES ($1, $2, $3)
ON CONFLICT (series_id, name) DO UPDATE SET
	url = EXCLUDED.url,
	updated_at = NOW()
RETURNING id`

// SaveSeason upserts a season keyed on (series_id, name).
func (s *Store) SaveSeason(ctx context.Context, season catalog.Season) (int64, bool, error) {
	if season.SeriesID == 0 {
		return 0, false, fmt.Errorf("season series id is required")
	}
	if season.Name == "" {
		return 0, false, fmt.Errorf("season name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin save season: %w", err)
	}
	defer rollback(ctx, tx)

	isNew, err := missing(tx.QueryRow(ctx,
		`SELECT id FROM seasons WHERE series_id = $1 AND name = $2`,
		season.SeriesID, season.Name))
	if err != nil {
		return 0, false, fmt.Errorf("check season %q: %w", season.Name, err)
	}

	var id int64
	err = tx.QueryRow(ctx, upsertSeasonSQL, season.SeriesID, season.Name, season.URL).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("upsert season %q: %w", season.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit save season: %w", err)
	}

	metrics.RowsSavedTotal.WithLabelValues("season", metrics.SaveOutcome(isNew)).Inc()
	s.log.Info("season saved",
		zap.String("name", season.Name), zap.Int64("id", id), zap.Bool("new", isNew))
	return id, isNew, nil
}

const upsertEpisodeSQL = `
INSERT INTO episodes
	(season_id, serie_name, season_name, episode_name, episode_index, season_number)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (season_id, episode_index) DO UPDATE SET
	serie_name = EXCLUDED.serie_name,
	season_name = EXCLUDED.season_name,
	episode_name = EXCLUDED.episode_name,
	season_number = EXCLUDED.season_number,
	updated_at = NOW()
RETURNING id`

// SaveEpisode upserts an episode keyed on (season_id, episode_index).
// The episode name is display text that may change between saves without
// altering identity.
func (s *Store) SaveEpisode(ctx context.Context, ep catalog.Episode) (int64, bool, error) {
	if ep.SeasonID == 0 {
		return 0, false, fmt.Errorf("episode season id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin save episode: %w", err)
	}
	defer rollback(ctx, tx)

	isNew, err := missing(tx.QueryRow(ctx,
		`SELECT id FROM episodes WHERE season_id = $1 AND episode_index = $2`,
		ep.SeasonID, ep.Index))
	if err != nil {
		return 0, false, fmt.Errorf("check episode %d: %w", ep.Index, err)
	}

	var id int64
	err = tx.QueryRow(ctx, upsertEpisodeSQL,
		ep.SeasonID, ep.SerieName, ep.SeasonName, ep.Name, ep.Index, ep.SeasonNumber,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("upsert episode %d: %w", ep.Index, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit save episode: %w", err)
	}

	metrics.RowsSavedTotal.WithLabelValues("episode", metrics.SaveOutcome(isNew)).Inc()
	s.log.Info("episode saved",
		zap.String("name", ep.Name), zap.Int64("id", id), zap.Bool("new", isNew))
	return id, isNew, nil
}

// SavePlayers replaces the full player set for (episodeID, language) with the
// given ordered URLs. The set is never diffed incrementally: delete-then-insert
// guarantees no stale or duplicate links survive a re-scrape, at the cost of
// churning surrogate ids.
func (s *Store) SavePlayers(ctx context.Context, episodeID int64, language string, urls []string) error {
	if episodeID == 0 {
		return fmt.Errorf("episode id is required")
	}
	if language == "" {
		return fmt.Errorf("language is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save players: %w", err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM players WHERE episode_id = $1 AND language = $2`,
		episodeID, language); err != nil {
		return fmt.Errorf("delete players: %w", err)
	}

	for order, playerURL := range urls {
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (episode_id, language, player_url, player_hostname, player_order)
			 VALUES ($1, $2, $3, $4, $5)`,
			episodeID, language, playerURL, hostnameOf(playerURL), order); err != nil {
			return fmt.Errorf("insert player %d: %w", order, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save players: %w", err)
	}

	s.log.Info("players saved",
		zap.Int64("episode_id", episodeID),
		zap.String("language", language),
		zap.Int("count", len(urls)))
	return nil
}

// IndexEpisode saves the episode row, resolving the owning season by natural
// key when SeasonID is zero, then saves the players of every language
// present. One language's failure is isolated: the remaining languages are
// still saved and the episode row already committed stays put.
func (s *Store) IndexEpisode(ctx context.Context, ep catalog.Episode) (int64, bool, error) {
	if ep.SeasonID == 0 {
		seasonID, err := s.lookupSeasonID(ctx, ep.SerieName, ep.SeasonName)
		if err != nil {
			return 0, false, err
		}
		ep.SeasonID = seasonID
	}

	id, isNew, err := s.SaveEpisode(ctx, ep)
	if err != nil {
		return 0, false, err
	}

	for _, language := range sortedLanguages(ep.Languages) {
		urls := ep.Languages[language]
		if len(urls) == 0 {
			continue
		}
		if err := s.SavePlayers(ctx, id, language, urls); err != nil {
			metrics.IndexErrorsTotal.WithLabelValues("players").Inc()
			s.log.Warn("players save failed, continuing with next language",
				zap.String("episode", ep.Name),
				zap.String("language", language),
				zap.Error(err))
		}
	}
	return id, isNew, nil
}

// LogRun appends one immutable run-summary row. It is deliberately outside
// any transaction: a logging failure must not roll back persistence already
// committed by the run.
func (s *Store) LogRun(ctx context.Context, run catalog.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO logs (command, new_series, new_seasons, new_episodes, error_count)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.Command, run.NewSeries, run.NewSeasons, run.NewEpisodes, run.ErrorCount)
	if err != nil {
		return fmt.Errorf("log run %q: %w", run.Command, err)
	}
	s.log.Info("run logged",
		zap.String("command", run.Command),
		zap.Int("new_series", run.NewSeries),
		zap.Int("new_seasons", run.NewSeasons),
		zap.Int("new_episodes", run.NewEpisodes),
		zap.Int("errors", run.ErrorCount))
	return nil
}

func (s *Store) lookupSeasonID(ctx context.Context, serieName, seasonName string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT s.id FROM seasons s
		 JOIN series sr ON s.series_id = sr.id
		 WHERE sr.name = $1 AND s.name = $2
		 LIMIT 1`,
		serieName, seasonName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("season not found: %s - %s", serieName, seasonName)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve season %s - %s: %w", serieName, seasonName, err)
	}
	return id, nil
}

// missing scans an id row and reports whether the lookup came back empty.
func missing(row pgx.Row) (bool, error) {
	var id int64
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// jsonList marshals a string list for a JSONB column, mapping nil to [].
func jsonList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sortedLanguages(languages map[string][]string) []string {
	out := make([]string, 0, len(languages))
	for lang := range languages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
