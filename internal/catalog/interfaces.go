package catalog

import (
	"context"
	"errors"
)

// ErrNotFound marks lookups whose target row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists the catalogue hierarchy with upsert semantics. Save methods
// return the row id and whether the row was newly created; a returned error
// means the transaction rolled back and nothing was persisted by that call.
//
// A Store instance is not safe for unsynchronized concurrent use; callers
// needing concurrency must pool instances or serialize through one.
type Store interface {
	SaveSeries(ctx context.Context, s Series) (id int64, isNew bool, err error)
	SaveSeason(ctx context.Context, s Season) (id int64, isNew bool, err error)
	SaveEpisode(ctx context.Context, e Episode) (id int64, isNew bool, err error)
	SavePlayers(ctx context.Context, episodeID int64, language string, urls []string) error
	// IndexEpisode saves the episode row (resolving the season by name when
	// SeasonID is zero) and then the players of every language present,
	// continuing past per-language failures.
	IndexEpisode(ctx context.Context, e Episode) (id int64, isNew bool, err error)
	LogRun(ctx context.Context, run RunSummary) error
}

// Fetcher retrieves pages from the target site, masking anti-bot failures
// whenever any viable path exists.
type Fetcher interface {
	Get(ctx context.Context, url string) (FetchResponse, error)
	Post(ctx context.Context, url string, contentType string, body []byte) (FetchResponse, error)
}
