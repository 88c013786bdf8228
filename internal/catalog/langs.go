package catalog

import "strings"

// Language ids used by the site, in presentation order.
var LanguageIDs = []string{"vostfr", "vf", "vf1", "vf2", "va", "vkr", "vcn", "vqc", "vj"}

var langNames = map[string]string{
	"vostfr": "VO sous-titrée",
	"vf":     "Français",
	"vf1":    "Français (1)",
	"vf2":    "Français (2)",
	"va":     "Anglais",
	"vkr":    "Coréen",
	"vcn":    "Chinois",
	"vqc":    "Québécois",
	"vj":     "Japonais",
}

var langFlags = map[string]string{
	"vostfr": "🇯🇵",
	"vf":     "🇫🇷",
	"vf1":    "🇫🇷",
	"vf2":    "🇫🇷",
	"va":     "🇬🇧",
	"vkr":    "🇰🇷",
	"vcn":    "🇨🇳",
	"vqc":    "🇨🇦",
	"vj":     "🇯🇵",
}

// LangName returns the display name for a language id, falling back to the
// upper-cased id for languages the table does not know.
func LangName(id string) string {
	if name, ok := langNames[normalizeLang(id)]; ok {
		return name
	}
	return strings.ToUpper(id)
}

// LangFlag returns the flag emoji for a language id, empty when unknown.
func LangFlag(id string) string {
	return langFlags[normalizeLang(id)]
}

// KnownLang reports whether id is one of the site's language ids.
func KnownLang(id string) bool {
	_, ok := langNames[normalizeLang(id)]
	return ok
}

func normalizeLang(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
