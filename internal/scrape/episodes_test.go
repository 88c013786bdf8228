package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const episodesJS = `
var eps1 = ['https://video-a.example/embed/101', 'https://video-a.example/embed/102', 'https://video-a.example/embed/103'];

var eps2 = ['https://video-b.example/embed/201', 'https://video-b.example/embed/202'];

var eps3 = ['https://vk.example/video_ext.php?oid=', 'https://video-c.example/embed/'];
`

func TestParsePlayerLists(t *testing.T) {
	t.Parallel()

	lists, err := ParsePlayerLists(episodesJS)
	require.NoError(t, err)
	require.Len(t, lists, 3)

	require.Equal(t, []string{
		"https://video-a.example/embed/101",
		"https://video-a.example/embed/102",
		"https://video-a.example/embed/103",
	}, lists[0])
	require.Equal(t, 2, len(lists[1]))

	// Placeholder entries keep their slot but carry no URL.
	require.Equal(t, []string{"", ""}, lists[2])
}

func TestParsePlayerListsOrderedByPlayerNumber(t *testing.T) {
	t.Parallel()

	js := `
	var eps10 = ['https://j.example/1'];
	var eps2 = ['https://b.example/1'];
	var eps1 = ['https://a.example/1'];
	`
	lists, err := ParsePlayerLists(js)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"https://a.example/1"},
		{"https://b.example/1"},
		{"https://j.example/1"},
	}, lists)
}

func TestParsePlayerListsRejectsEmptyScript(t *testing.T) {
	t.Parallel()

	_, err := ParsePlayerLists(`var something = 1;`)
	require.ErrorContains(t, err, "no player arrays")

	_, err = ParsePlayerLists(`var eps1 = ['', 'not-a-url'];`)
	require.ErrorContains(t, err, "no usable URLs")
}

func TestEpisodeCount(t *testing.T) {
	t.Parallel()

	lists, err := ParsePlayerLists(episodesJS)
	require.NoError(t, err)
	require.Equal(t, 3, EpisodeCount(lists))
}

func TestEpisodePlayersTransposes(t *testing.T) {
	t.Parallel()

	lists, err := ParsePlayerLists(episodesJS)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://video-a.example/embed/101",
		"https://video-b.example/embed/201",
	}, EpisodePlayers(lists, 1))

	// Only the first player carries episode 3.
	require.Equal(t, []string{"https://video-a.example/embed/103"}, EpisodePlayers(lists, 3))
	require.Empty(t, EpisodePlayers(lists, 4))
}

func TestEpisodeName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Episode 7", EpisodeName(7))
}

func TestPlausiblePlayerURL(t *testing.T) {
	t.Parallel()

	require.True(t, plausiblePlayerURL("https://video.example/embed/1"))
	require.False(t, plausiblePlayerURL(""))
	require.False(t, plausiblePlayerURL("ftp://video.example/1"))
	require.False(t, plausiblePlayerURL("https://vk.example/video_ext.php?oid="))
	require.False(t, plausiblePlayerURL("https://video.example/embed/"))
}
