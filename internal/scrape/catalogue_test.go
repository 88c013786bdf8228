package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const seriesPageHTML = `<!DOCTYPE html>
<html><head><title>Test Serie - catalogue</title></head><body>
<img id="coverOeuvre" src="/images/test-serie.jpg">
<h4 id="titreOeuvre">Test Serie</h4>
<p id="titreAlternatif">Tesuto Shirizu, TS</p>
<h2>Synopsis</h2>
<p>A test serie about parsing.</p>
<h2>Genres</h2>
<a href="/genres">Action - Aventure, Shounen</a>
<h2>Catégories</h2>
<p>Anime</p>
<h2>Avancement</h2>
<p>Aucune donnée.</p>
<h2>Correspondance</h2>
<p>Episode 1 -> Chapitre 1</p>
<script>
	/* Template:
	panneauAnime("nom", "url");
	*/
	panneauAnime("Saison 1", "saison1/vostfr");
	panneauAnime("Saison 2", "saison2/vostfr");
	panneauAnime("Saison 1", "saison1/vf");
</script>
</body></html>`

func TestParseSeries(t *testing.T) {
	t.Parallel()

	serie, err := ParseSeries("https://anime-sama.example/catalogue/test-serie/", []byte(seriesPageHTML))
	require.NoError(t, err)

	require.Equal(t, "Test Serie", serie.Name)
	require.Equal(t, "https://anime-sama.example/catalogue/test-serie/", serie.URL)
	require.Equal(t, []string{"Tesuto Shirizu", "TS"}, serie.AlternativeNames)
	require.Equal(t, "A test serie about parsing.", serie.Synopsis)
	require.Equal(t, []string{"Action", "Aventure", "Shounen"}, serie.Genres)
	require.Equal(t, []string{"Anime"}, serie.Categories)
	require.Equal(t, "Aucune donnée.", serie.Advancement)
	require.Equal(t, "Episode 1 -> Chapitre 1", serie.Correspondence)
	require.Equal(t, "https://anime-sama.example/images/test-serie.jpg", serie.ImageURL)
	require.Equal(t, []string{"vostfr", "vf"}, serie.Languages)
	require.False(t, serie.IsMature)
}

func TestParseSeriesMissingTitle(t *testing.T) {
	t.Parallel()

	_, err := ParseSeries("https://anime-sama.example/catalogue/x/", []byte(`<html><body></body></html>`))
	require.ErrorContains(t, err, "no title")
}

func TestParseSeriesMatureFlag(t *testing.T) {
	t.Parallel()

	page := `<html><body><h4 id="titreOeuvre">X</h4><span>Contenu +18</span></body></html>`
	serie, err := ParseSeries("https://anime-sama.example/catalogue/x/", []byte(page))
	require.NoError(t, err)
	require.True(t, serie.IsMature)
}

func TestParseCatalogueLinks(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<a href="/catalogue/">Catalogue</a>
	<a href="/catalogue/naruto/">Naruto</a>
	<a href="/catalogue/one-piece/">One Piece</a>
	<a href="/catalogue/naruto/">Naruto again</a>
	<a href="/catalogue/naruto/saison1/vostfr/">deep link</a>
	<a href="/planning/">Planning</a>
	</body></html>`

	links, err := ParseCatalogueLinks("https://anime-sama.example/catalogue/?page=1", []byte(page))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://anime-sama.example/catalogue/naruto/",
		"https://anime-sama.example/catalogue/one-piece/",
	}, links)
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"Action", "Aventure", "Shounen"}, splitList("Action - Aventure, Shounen"))
	require.Equal(t, []string{"Drame"}, splitList(" Drame "))
	require.Empty(t, splitList(""))
}
