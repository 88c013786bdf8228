// Package indexer walks the remote catalogue and drives persistence: series,
// then seasons, then episodes with their per-language player sets. Failures
// below the series level are isolated and counted instead of aborting runs.
package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/catalog"
	"github.com/scrapsama/scrapsama/internal/metrics"
	"github.com/scrapsama/scrapsama/internal/scrape"
)

// Indexer wires the acquisition layer to the store. One Indexer may run
// multiple commands; each run gets its own correlation id in the logs.
type Indexer struct {
	fetch   catalog.Fetcher
	store   catalog.Store
	baseURL string
	log     *zap.Logger
}

func New(fetch catalog.Fetcher, store catalog.Store, baseURL string, logger *zap.Logger) (*Indexer, error) {
	if fetch == nil || store == nil {
		return nil, fmt.Errorf("indexer needs both a fetcher and a store")
	}
	base := strings.TrimRight(baseURL, "/") + "/"
	if _, err := url.Parse(base); err != nil || !strings.HasPrefix(base, "http") {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{fetch: fetch, store: store, baseURL: base, log: logger}, nil
}

// SearchSeries resolves a free-text query to catalogue detail URLs via the
// site's search endpoint.
func (ix *Indexer) SearchSeries(ctx context.Context, query string) ([]string, error) {
	form := url.Values{"query": {query}}.Encode()
	resp, err := ix.fetch.Post(ctx, ix.baseURL+"catalogue/searchbar.php",
		"application/x-www-form-urlencoded", []byte(form))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: unexpected status %d", query, resp.StatusCode)
	}
	return scrape.ParseCatalogueLinks(ix.baseURL, resp.Body)
}

// IndexSeries indexes one series end to end and logs a run summary row
// under the given command label.
func (ix *Indexer) IndexSeries(ctx context.Context, command, seriesURL string) (catalog.RunSummary, error) {
	run := catalog.RunSummary{Command: command}
	log := ix.runLogger(command)

	if err := ix.indexOneSeries(ctx, log, seriesURL, &run); err != nil {
		run.ErrorCount++
		ix.logRun(ctx, log, run)
		return run, err
	}
	ix.logRun(ctx, log, run)
	return run, nil
}

// IndexAll walks the whole catalogue listing page by page until a page
// yields no series, indexing every series found. Per-series failures are
// counted and skipped.
func (ix *Indexer) IndexAll(ctx context.Context) (catalog.RunSummary, error) {
	run := catalog.RunSummary{Command: "index-all"}
	log := ix.runLogger(run.Command)

	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		links, err := ix.cataloguePage(ctx, page)
		if err != nil {
			ix.logRun(ctx, log, run)
			return run, err
		}
		fresh := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			fresh++
			if err := ctx.Err(); err != nil {
				ix.logRun(ctx, log, run)
				return run, err
			}
			if err := ix.indexOneSeries(ctx, log, link, &run); err != nil {
				run.ErrorCount++
				log.Warn("series indexing failed, continuing",
					zap.String("url", link), zap.Error(err))
			}
		}
		if fresh == 0 {
			break
		}
	}
	ix.logRun(ctx, log, run)
	return run, nil
}

// IndexNew re-indexes only the series currently listed on the planning page,
// picking up freshly released episodes without a full catalogue sweep.
func (ix *Indexer) IndexNew(ctx context.Context) (catalog.RunSummary, error) {
	run := catalog.RunSummary{Command: "index-new"}
	log := ix.runLogger(run.Command)

	resp, err := ix.fetch.Get(ctx, ix.baseURL+"planning/")
	if err != nil {
		ix.logRun(ctx, log, run)
		return run, fmt.Errorf("fetch planning page: %w", err)
	}
	links, err := scrape.ParseCatalogueLinks(ix.baseURL, resp.Body)
	if err != nil {
		ix.logRun(ctx, log, run)
		return run, err
	}

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			ix.logRun(ctx, log, run)
			return run, err
		}
		if err := ix.indexOneSeries(ctx, log, link, &run); err != nil {
			run.ErrorCount++
			log.Warn("series indexing failed, continuing",
				zap.String("url", link), zap.Error(err))
		}
	}
	ix.logRun(ctx, log, run)
	return run, nil
}

func (ix *Indexer) cataloguePage(ctx context.Context, page int) ([]string, error) {
	resp, err := ix.fetch.Get(ctx, fmt.Sprintf("%scatalogue/?page=%d", ix.baseURL, page))
	if err != nil {
		return nil, fmt.Errorf("fetch catalogue page %d: %w", page, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalogue page %d: unexpected status %d", page, resp.StatusCode)
	}
	return scrape.ParseCatalogueLinks(ix.baseURL, resp.Body)
}

func (ix *Indexer) indexOneSeries(ctx context.Context, log *zap.Logger, seriesURL string, run *catalog.RunSummary) error {
	resp, err := ix.fetch.Get(ctx, seriesURL)
	if err != nil {
		return fmt.Errorf("fetch series page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("series page %s: unexpected status %d", seriesURL, resp.StatusCode)
	}

	serie, err := scrape.ParseSeries(seriesURL, resp.Body)
	if err != nil {
		return err
	}
	seriesID, isNew, err := ix.store.SaveSeries(ctx, serie)
	if err != nil {
		return err
	}
	if isNew {
		run.NewSeries++
	}
	log = log.With(zap.String("series", serie.Name))
	log.Info("series indexed", zap.Int64("id", seriesID), zap.Bool("new", isNew))

	seasons, err := scrape.ParseSeasons(seriesURL, resp.Body)
	if err != nil {
		return err
	}
	languages := serie.Languages
	if len(languages) == 0 {
		languages = []string{"vostfr"}
	}

	for number, season := range seasons {
		season.SeriesID = seriesID
		seasonID, seasonIsNew, err := ix.store.SaveSeason(ctx, season)
		if err != nil {
			run.ErrorCount++
			metrics.IndexErrorsTotal.WithLabelValues("season").Inc()
			log.Warn("season save failed, continuing",
				zap.String("season", season.Name), zap.Error(err))
			continue
		}
		if seasonIsNew {
			run.NewSeasons++
		}
		if err := ix.indexSeason(ctx, log, serie, season, seasonID, number+1, languages, run); err != nil {
			run.ErrorCount++
			metrics.IndexErrorsTotal.WithLabelValues("episodes").Inc()
			log.Warn("season episodes failed, continuing",
				zap.String("season", season.Name), zap.Error(err))
		}
	}
	return nil
}

// indexSeason gathers every language variant's player arrays, merges them
// into per-episode language maps and saves each episode with its players.
func (ix *Indexer) indexSeason(ctx context.Context, log *zap.Logger, serie catalog.Series,
	season catalog.Season, seasonID int64, seasonNumber int, languages []string,
	run *catalog.RunSummary) error {

	type variant struct {
		lang  string
		lists [][]string
	}
	var variants []variant

	for _, lang := range languages {
		scriptURL := scrape.EpisodesScriptURL(scrape.SeasonVariantURL(season.URL, lang))
		resp, err := ix.fetch.Get(ctx, scriptURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("language variant unavailable",
				zap.String("lang", lang), zap.Error(err))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			log.Debug("language variant unavailable",
				zap.String("lang", lang), zap.Int("status", resp.StatusCode))
			continue
		}
		lists, err := scrape.ParsePlayerLists(string(resp.Body))
		if err != nil {
			log.Debug("language variant has no usable players",
				zap.String("lang", lang), zap.Error(err))
			continue
		}
		variants = append(variants, variant{lang: lang, lists: lists})
	}
	if len(variants) == 0 {
		return fmt.Errorf("season %q has no usable language variant", season.Name)
	}

	count := 0
	for _, v := range variants {
		if c := scrape.EpisodeCount(v.lists); c > count {
			count = c
		}
	}

	for index := 1; index <= count; index++ {
		langs := make(map[string][]string)
		for _, v := range variants {
			if urls := scrape.EpisodePlayers(v.lists, index); len(urls) > 0 {
				langs[v.lang] = urls
			}
		}
		ep := catalog.Episode{
			SeasonID:     seasonID,
			SerieName:    serie.Name,
			SeasonName:   season.Name,
			Name:         scrape.EpisodeName(index),
			Index:        index,
			SeasonNumber: seasonNumber,
			Languages:    langs,
		}
		_, isNew, err := ix.store.IndexEpisode(ctx, ep)
		if err != nil {
			run.ErrorCount++
			metrics.IndexErrorsTotal.WithLabelValues("episode").Inc()
			log.Warn("episode save failed, continuing",
				zap.String("episode", ep.Name), zap.Error(err))
			continue
		}
		if isNew {
			run.NewEpisodes++
		}
	}
	return nil
}

func (ix *Indexer) runLogger(command string) *zap.Logger {
	return ix.log.With(
		zap.String("command", command),
		zap.String("run_id", uuid.NewString()))
}

// logRun records the summary row. Logging is best effort: a failure here
// must not mask the run's real outcome.
func (ix *Indexer) logRun(ctx context.Context, log *zap.Logger, run catalog.RunSummary) {
	if err := ix.store.LogRun(ctx, run); err != nil {
		log.Error("run summary could not be persisted", zap.Error(err))
	}
	log.Info("run finished",
		zap.Int("new_series", run.NewSeries),
		zap.Int("new_seasons", run.NewSeasons),
		zap.Int("new_episodes", run.NewEpisodes),
		zap.Int("errors", run.ErrorCount))
}
