// Package catalog defines the value types and interfaces shared across subsystems.
package catalog

import (
	"net/http"
	"time"
)

// Series is the top level of the catalogue hierarchy. Name is the sole
// natural key: saving a Series with an existing name updates every mutable
// field of the stored row instead of creating a duplicate.
type Series struct {
	Name             string   `json:"name"`
	URL              string   `json:"url"`
	AlternativeNames []string `json:"alternative_names"`
	Genres           []string `json:"genres"`
	Categories       []string `json:"categories"`
	Languages        []string `json:"languages"`
	ImageURL         string   `json:"image_url"`
	Advancement      string   `json:"advancement"`
	Correspondence   string   `json:"correspondence"`
	Synopsis         string   `json:"synopsis"`
	IsMature         bool     `json:"is_mature"`
}

// Season belongs to exactly one Series and is unique per (series, name).
type Season struct {
	SeriesID int64  `json:"series_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// Episode belongs to exactly one Season, keyed by (season, index).
// SerieName and SeasonName are denormalized for read convenience and,
// when SeasonID is zero, used to resolve the owning season.
// Languages maps a language id to the ordered player URLs for that language.
type Episode struct {
	SeasonID     int64               `json:"season_id"`
	SerieName    string              `json:"serie_name"`
	SeasonName   string              `json:"season_name"`
	Name         string              `json:"episode_name"`
	Index        int                 `json:"episode_index"`
	SeasonNumber int                 `json:"season_number"`
	Languages    map[string][]string `json:"languages,omitempty"`
}

// Player is one playable link of an episode in a given language. The full
// player set of an (episode, language) pair is replaced wholesale on every
// save, so surrogate ids churn between saves.
type Player struct {
	ID        int64  `json:"id"`
	EpisodeID int64  `json:"episode_id"`
	Language  string `json:"language"`
	URL       string `json:"player_url"`
	Hostname  string `json:"player_hostname"`
	Order     int    `json:"player_order"`
}

// RunSummary is the immutable record of one indexing run.
type RunSummary struct {
	Command     string `json:"command"`
	NewSeries   int    `json:"new_series"`
	NewSeasons  int    `json:"new_seasons"`
	NewEpisodes int    `json:"new_episodes"`
	ErrorCount  int    `json:"error_count"`
}

// SeriesRecord is a stored series row, surrogate id included.
type SeriesRecord struct {
	ID int64 `json:"id"`
	Series
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeasonRecord is a stored season row.
type SeasonRecord struct {
	ID       int64  `json:"id"`
	SeriesID int64  `json:"series_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// EpisodeRecord is a stored episode row.
type EpisodeRecord struct {
	ID           int64  `json:"id"`
	SeasonID     int64  `json:"season_id"`
	SerieName    string `json:"serie_name"`
	SeasonName   string `json:"season_name"`
	Name         string `json:"episode_name"`
	Index        int    `json:"episode_index"`
	SeasonNumber int    `json:"season_number"`
}

// RunRecord is a stored logs row.
type RunRecord struct {
	ID int64 `json:"id"`
	RunSummary
	CreatedAt time.Time `json:"created_at"`
}

// FetchResponse is the result of one page fetch, whichever path served it.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}
