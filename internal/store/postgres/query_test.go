package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

var seriesRowHeader = []string{
	"id", "name", "url", "alternative_names", "genres", "categories", "languages",
	"image_url", "advancement", "correspondence", "synopsis", "is_mature",
	"created_at", "updated_at",
}

func seriesRow(id int64, name string) []any {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []any{
		id, name, "https://anime-sama.example/catalogue/" + name + "/",
		[]byte(`["Alt"]`), []byte(`["Action"]`), []byte(`["Anime"]`), []byte(`["vostfr"]`),
		"https://cdn.example/" + name + ".jpg", "", "", "Synopsis.", false, now, now,
	}
}

func TestSearchSeriesDecodesListColumns(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM series`).
		WithArgs("naru", 50).
		WillReturnRows(pgxmock.NewRows(seriesRowHeader).
			AddRow(seriesRow(1, "naruto")...).
			AddRow(seriesRow(2, "naruto-shippuden")...))

	got, err := store.SearchSeries(context.Background(), "naru", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "naruto", got[0].Name)
	require.Equal(t, []string{"Alt"}, got[0].AlternativeNames)
	require.Equal(t, []string{"vostfr"}, got[0].Languages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeriesNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM series WHERE id`).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(seriesRowHeader))

	_, err := store.GetSeries(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEpisodesOrderedByIndex(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM episodes WHERE season_id`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "season_id", "serie_name", "season_name", "episode_name",
			"episode_index", "season_number",
		}).
			AddRow(int64(9), int64(5), "Test Serie", "Saison 1", "Episode 1", 1, 1).
			AddRow(int64(11), int64(5), "Test Serie", "Saison 1", "Episode 2", 2, 1))

	got, err := store.ListEpisodes(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].Index)
	require.Equal(t, "Episode 2", got[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlayersKeepsPresentationOrder(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM players WHERE episode_id`).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "episode_id", "language", "player_url", "player_hostname", "player_order",
		}).
			AddRow(int64(1), int64(11), "vf", "https://a.example/1", "a.example", 0).
			AddRow(int64(2), int64(11), "vostfr", "https://b.example/1", "b.example", 0).
			AddRow(int64(3), int64(11), "vostfr", "https://c.example/1", "c.example", 1))

	got, err := store.ListPlayers(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, []catalog.Player{
		{ID: 1, EpisodeID: 11, Language: "vf", URL: "https://a.example/1", Hostname: "a.example"},
		{ID: 2, EpisodeID: 11, Language: "vostfr", URL: "https://b.example/1", Hostname: "b.example"},
		{ID: 3, EpisodeID: 11, Language: "vostfr", URL: "https://c.example/1", Hostname: "c.example", Order: 1},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM logs ORDER BY created_at DESC`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "command", "new_series", "new_seasons", "new_episodes", "error_count", "created_at",
		}).
			AddRow(int64(2), "index-new", 1, 0, 4, 0, now).
			AddRow(int64(1), "index-all", 2, 3, 10, 1, now.Add(-time.Hour)))

	got, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "index-new", got[0].Command)
	require.Equal(t, 10, got[1].NewEpisodes)
	require.NoError(t, mock.ExpectationsWereMet())
}
