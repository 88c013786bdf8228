package scrape

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// episodes.js declares one array per player: var eps1 = ['url', 'url', ...];
// where position k holds episode k+1's URL on that player.
var (
	reEpisodeArray = regexp.MustCompile(`var\s+eps(\d+)\s*=\s*\[([^\]]*)\];`)
	reQuotedURL    = regexp.MustCompile(`['"]([^'"]*)['"]`)
)

// ParsePlayerLists reads the per-player episode URL arrays out of an
// episodes.js body, ordered by player number. Implausible entries (site
// placeholders, truncated embeds) become empty strings so episode positions
// stay aligned across players.
func ParsePlayerLists(js string) ([][]string, error) {
	matches := reEpisodeArray.FindAllStringSubmatch(js, -1)
	if len(matches) == 0 {
		return nil, errors.New("no player arrays found")
	}

	byPlayer := make(map[int][]string, len(matches))
	for _, m := range matches {
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		var urls []string
		for _, quoted := range reQuotedURL.FindAllStringSubmatch(m[2], -1) {
			u := strings.TrimSpace(quoted[1])
			if !plausiblePlayerURL(u) {
				u = ""
			}
			urls = append(urls, u)
		}
		byPlayer[num] = urls
	}

	players := make([]int, 0, len(byPlayer))
	for num := range byPlayer {
		players = append(players, num)
	}
	sort.Ints(players)

	lists := make([][]string, 0, len(players))
	for _, num := range players {
		lists = append(lists, byPlayer[num])
	}
	if EpisodeCount(lists) == 0 {
		return nil, errors.New("player arrays contain no usable URLs")
	}
	return lists, nil
}

// EpisodeCount is the highest episode position carrying at least one URL.
func EpisodeCount(lists [][]string) int {
	count := 0
	for _, urls := range lists {
		for i := len(urls) - 1; i >= 0; i-- {
			if urls[i] != "" {
				if i+1 > count {
					count = i + 1
				}
				break
			}
		}
	}
	return count
}

// EpisodePlayers transposes player lists into the ordered player URLs of one
// episode. index is 1-based.
func EpisodePlayers(lists [][]string, index int) []string {
	var out []string
	for _, urls := range lists {
		if index-1 < len(urls) && urls[index-1] != "" {
			out = append(out, urls[index-1])
		}
	}
	return out
}

// EpisodeName renders the display name for an episode position.
func EpisodeName(index int) string {
	return fmt.Sprintf("Episode %d", index)
}

// plausiblePlayerURL rejects the placeholder entries the site leaves in
// arrays for not-yet-released episodes: bare embed roots and URLs with an
// empty trailing query value.
func plausiblePlayerURL(raw string) bool {
	if raw == "" {
		return false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	if strings.HasSuffix(raw, "=") || strings.HasSuffix(raw, "/embed/") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return true
}
