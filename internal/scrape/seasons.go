package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

// Season panels are emitted as inline panneauAnime("Saison 1", "saison1/vostfr")
// calls. The commented-out template panel uses the literal arguments
// "nom"/"url" and must be skipped.
var reSeasonPanel = regexp.MustCompile(`panneauAnime\(\s*"([^"]+)"\s*,\s*"([^"]+)"\s*\)`)

// ParseSeasons extracts the season panels of a series page in display order,
// deduplicated by name. URLs are resolved against pageURL.
func ParseSeasons(pageURL string, body []byte) ([]catalog.Season, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse seasons: %w", err)
	}

	seen := make(map[string]struct{})
	var seasons []catalog.Season
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		for _, m := range reSeasonPanel.FindAllStringSubmatch(script.Text(), -1) {
			name, ref := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if name == "" || name == "nom" || ref == "url" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			seasons = append(seasons, catalog.Season{
				Name: name,
				URL:  resolveURL(pageURL, ensureTrailingSlash(ref)),
			})
		}
	})
	return seasons, nil
}

// SplitSeasonPath separates a season path from its trailing language
// segment. "saison1/vostfr" yields ("saison1", "vostfr"); a path without a
// known language id comes back unchanged with an empty language.
func SplitSeasonPath(seasonPath string) (base, lang string) {
	trimmed := strings.Trim(seasonPath, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed, ""
	}
	last := trimmed[idx+1:]
	if !catalog.KnownLang(last) {
		return trimmed, ""
	}
	return trimmed[:idx], last
}

// SeasonVariantURL swaps the language segment of a season URL, producing the
// address of the same season in another language.
func SeasonVariantURL(seasonURL, lang string) string {
	base, _ := SplitSeasonPath(seasonURL)
	return ensureTrailingSlash(base) + ensureTrailingSlash(lang)
}

// EpisodesScriptURL is the address of a season variant's episodes.js.
func EpisodesScriptURL(seasonVariantURL string) string {
	return ensureTrailingSlash(seasonVariantURL) + "episodes.js"
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
