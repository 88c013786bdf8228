// Package scrape turns anime-sama HTML and inline JS into catalog values.
// It is purely structural: callers hand it bytes already fetched through the
// acquisition layer, and it never touches the network itself.
package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

// ParseSeries extracts the series sheet from a catalogue detail page.
// Section headings drive the metadata fields, so cosmetic markup changes
// around them do not break the parse.
func ParseSeries(pageURL string, body []byte) (catalog.Series, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Series{}, fmt.Errorf("parse series page: %w", err)
	}

	serie := catalog.Series{URL: pageURL}
	serie.Name = strings.TrimSpace(doc.Find("#titreOeuvre").First().Text())
	if serie.Name == "" {
		return catalog.Series{}, fmt.Errorf("series page %s has no title", pageURL)
	}

	if alt := strings.TrimSpace(doc.Find("#titreAlternatif").First().Text()); alt != "" {
		serie.AlternativeNames = splitList(alt)
	}
	if img, ok := doc.Find("#coverOeuvre").First().Attr("src"); ok {
		serie.ImageURL = resolveURL(pageURL, img)
	}

	doc.Find("h2").Each(func(_ int, heading *goquery.Selection) {
		value := strings.TrimSpace(heading.Next().Text())
		if value == "" {
			return
		}
		switch section := strings.ToUpper(strings.TrimSpace(heading.Text())); {
		case strings.Contains(section, "SYNOPSIS"):
			serie.Synopsis = value
		case strings.Contains(section, "GENRES"):
			serie.Genres = splitList(value)
		case strings.Contains(section, "CAT"): // CATEGORIES, with or without accents
			serie.Categories = splitList(value)
		case strings.Contains(section, "AVANCEMENT"):
			serie.Advancement = value
		case strings.Contains(section, "CORRESPONDANCE"):
			serie.Correspondence = value
		}
	})

	serie.Languages = pageLanguages(doc)
	serie.IsMature = bytes.Contains(body, []byte("+18"))
	return serie, nil
}

// ParseCatalogueLinks collects the series detail URLs referenced by a
// catalogue listing or planning page, deduplicated in document order.
func ParseCatalogueLinks(pageURL string, body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse catalogue page: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(`a[href*="/catalogue/"]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(pageURL, href)
		if !isSeriesURL(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

// isSeriesURL keeps only /catalogue/<slug>/ detail links, rejecting the
// listing root and deeper season paths.
func isSeriesURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(parts) == 2 && parts[0] == "catalogue" && parts[1] != ""
}

// pageLanguages reads the language ids out of the season panel URLs
// embedded in the page scripts.
func pageLanguages(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var langs []string
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		for _, m := range reSeasonPanel.FindAllStringSubmatch(script.Text(), -1) {
			_, lang := SplitSeasonPath(m[2])
			if lang == "" {
				continue
			}
			if _, dup := seen[lang]; dup {
				continue
			}
			seen[lang] = struct{}{}
			langs = append(langs, lang)
		}
	})
	return langs
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// splitList breaks a metadata line on the separators the site mixes freely.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, part := range parts {
		for _, sub := range strings.Split(part, " - ") {
			if sub = strings.TrimSpace(sub); sub != "" {
				out = append(out, sub)
			}
		}
	}
	return out
}
