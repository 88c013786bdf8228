package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store, mock
}

func testSeries() catalog.Series {
	return catalog.Series{
		Name:             "Test Serie",
		URL:              "https://anime-sama.example/catalogue/test-serie/",
		AlternativeNames: []string{"Alt"},
		Genres:           []string{"Action"},
		Categories:       []string{"Anime"},
		Languages:        []string{"vostfr", "vf"},
		ImageURL:         "https://cdn.example/test.jpg",
		Synopsis:         "A test serie.",
	}
}

func expectSeriesUpsert(mock pgxmock.PgxPoolIface, s catalog.Series, existingID int64, returnedID int64) {
	mock.ExpectBegin()
	existing := pgxmock.NewRows([]string{"id"})
	if existingID != 0 {
		existing.AddRow(existingID)
	}
	mock.ExpectQuery(`SELECT id FROM series WHERE name`).
		WithArgs(s.Name).
		WillReturnRows(existing)
	mock.ExpectQuery(`INSERT INTO series`).
		WithArgs(s.Name, s.URL,
			mustJSON(s.AlternativeNames), mustJSON(s.Genres),
			mustJSON(s.Categories), mustJSON(s.Languages),
			s.ImageURL, s.Advancement, s.Correspondence, s.Synopsis, s.IsMature).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(returnedID))
	mock.ExpectCommit()
}

func mustJSON(values []string) []byte {
	b, err := jsonList(values)
	if err != nil {
		panic(err)
	}
	return b
}

func TestSaveSeriesFreshThenExisting(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	serie := testSeries()

	expectSeriesUpsert(mock, serie, 0, 1)
	id, isNew, err := store.SaveSeries(context.Background(), serie)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.True(t, isNew)

	expectSeriesUpsert(mock, serie, 1, 1)
	id, isNew, err = store.SaveSeries(context.Background(), serie)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.False(t, isNew)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSeriesUpdatesMutableFields(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	serie := testSeries()
	serie.Synopsis = "A rewritten synopsis."

	// Same name, changed synopsis: id unchanged, row updated.
	expectSeriesUpsert(mock, serie, 7, 7)
	id, isNew, err := store.SaveSeries(context.Background(), serie)
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
	require.False(t, isNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSeriesRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	serie := testSeries()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM series WHERE name`).
		WithArgs(serie.Name).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO series`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	id, isNew, err := store.SaveSeries(context.Background(), serie)
	require.Error(t, err)
	require.Zero(t, id)
	require.False(t, isNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSeriesRequiresName(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	_, _, err := store.SaveSeries(context.Background(), catalog.Series{})
	require.ErrorContains(t, err, "name is required")
}

func TestSaveSeasonFreshThenExisting(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	season := catalog.Season{SeriesID: 1, Name: "Saison 1", URL: "https://anime-sama.example/catalogue/test-serie/saison1/"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM seasons WHERE series_id`).
		WithArgs(season.SeriesID, season.Name).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO seasons`).
		WithArgs(season.SeriesID, season.Name, season.URL).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	id, isNew, err := store.SaveSeason(context.Background(), season)
	require.NoError(t, err)
	require.EqualValues(t, 3, id)
	require.True(t, isNew)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM seasons WHERE series_id`).
		WithArgs(season.SeriesID, season.Name).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(`INSERT INTO seasons`).
		WithArgs(season.SeriesID, season.Name, season.URL).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	id, isNew, err = store.SaveSeason(context.Background(), season)
	require.NoError(t, err)
	require.EqualValues(t, 3, id)
	require.False(t, isNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectEpisodeUpsert(mock pgxmock.PgxPoolIface, ep catalog.Episode, existingID, returnedID int64) {
	mock.ExpectBegin()
	existing := pgxmock.NewRows([]string{"id"})
	if existingID != 0 {
		existing.AddRow(existingID)
	}
	mock.ExpectQuery(`SELECT id FROM episodes WHERE season_id`).
		WithArgs(ep.SeasonID, ep.Index).
		WillReturnRows(existing)
	mock.ExpectQuery(`INSERT INTO episodes`).
		WithArgs(ep.SeasonID, ep.SerieName, ep.SeasonName, ep.Name, ep.Index, ep.SeasonNumber).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(returnedID))
	mock.ExpectCommit()
}

func TestSaveEpisodeRenameKeepsIdentity(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ep := catalog.Episode{
		SeasonID:   5,
		SerieName:  "Test Serie",
		SeasonName: "Saison 1",
		Name:       "Episode 1",
		Index:      1,
	}

	expectEpisodeUpsert(mock, ep, 0, 9)
	id, isNew, err := store.SaveEpisode(context.Background(), ep)
	require.NoError(t, err)
	require.EqualValues(t, 9, id)
	require.True(t, isNew)

	// Same (season, index) with a new display name updates the single row.
	ep.Name = "Episode 1 - Renamed"
	expectEpisodeUpsert(mock, ep, 9, 9)
	id, isNew, err = store.SaveEpisode(context.Background(), ep)
	require.NoError(t, err)
	require.EqualValues(t, 9, id)
	require.False(t, isNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectPlayersReplace(mock pgxmock.PgxPoolIface, episodeID int64, language string, urls []string) {
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM players`).
		WithArgs(episodeID, language).
		WillReturnResult(pgxmock.NewResult("DELETE", int64(len(urls))))
	for order, u := range urls {
		mock.ExpectExec(`INSERT INTO players`).
			WithArgs(episodeID, language, u, hostnameOf(u), order).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()
}

func TestSavePlayersReplacesWholeSet(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	first := []string{"https://video-a.example/embed/1", "https://video-b.example/embed/1"}
	expectPlayersReplace(mock, 9, "vostfr", first)
	require.NoError(t, store.SavePlayers(context.Background(), 9, "vostfr", first))

	// Second save wipes A and B before inserting C.
	second := []string{"https://video-c.example/embed/1"}
	expectPlayersReplace(mock, 9, "vostfr", second)
	require.NoError(t, store.SavePlayers(context.Background(), 9, "vostfr", second))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePlayersDerivesHostname(t *testing.T) {
	t.Parallel()

	require.Equal(t, "video.example.com", hostnameOf("https://video.example.com/embed/42?x=1"))
	require.Equal(t, "", hostnameOf("://not a url"))
}

func TestIndexEpisodeResolvesSeasonAndIsolatesLanguageFailures(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ep := catalog.Episode{
		SerieName:  "Test Serie",
		SeasonName: "Saison 1",
		Name:       "Episode 2",
		Index:      2,
		Languages: map[string][]string{
			"vf":     {"https://video-a.example/vf/2"},
			"vostfr": {"https://video-b.example/vostfr/2"},
		},
	}

	mock.ExpectQuery(`SELECT s.id FROM seasons s`).
		WithArgs(ep.SerieName, ep.SeasonName).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

	resolved := ep
	resolved.SeasonID = 5
	expectEpisodeUpsert(mock, resolved, 0, 11)

	// vf players fail, vostfr must still be saved.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM players`).
		WithArgs(int64(11), "vf").
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()
	expectPlayersReplace(mock, 11, "vostfr", ep.Languages["vostfr"])

	id, isNew, err := store.IndexEpisode(context.Background(), ep)
	require.NoError(t, err)
	require.EqualValues(t, 11, id)
	require.True(t, isNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexEpisodeUnknownSeason(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ep := catalog.Episode{SerieName: "Missing", SeasonName: "Saison 3", Index: 1}

	mock.ExpectQuery(`SELECT s.id FROM seasons s`).
		WithArgs(ep.SerieName, ep.SeasonName).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, _, err := store.IndexEpisode(context.Background(), ep)
	require.ErrorContains(t, err, "season not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRunAppendsExactCounts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO logs`).
		WithArgs("index-all", 2, 3, 10, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := catalog.RunSummary{Command: "index-all", NewSeries: 2, NewSeasons: 3, NewEpisodes: 10, ErrorCount: 1}
	require.NoError(t, store.LogRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaIsIdempotentDDL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	for _, stmt := range migrations {
		require.Contains(t, stmt, "IF NOT EXISTS")
		mock.ExpectExec(`IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Child tables must cascade on parent deletion so removing a series takes
// its whole subtree with it.
func TestSchemaCascadesChildTables(t *testing.T) {
	t.Parallel()

	cascades := 0
	for _, stmt := range migrations {
		if strings.Contains(stmt, "ON DELETE CASCADE") {
			cascades++
		}
	}
	require.Equal(t, 3, cascades, "seasons, episodes and players must cascade")
}
