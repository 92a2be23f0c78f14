package filter

import (
	"regexp"
	"strings"

	"github.com/amishk599/jobagg/internal/model"
)

var usStates = []string{
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana",
	"maine", "maryland", "massachusetts", "michigan", "minnesota",
	"mississippi", "missouri", "montana", "nebraska", "nevada",
	"new hampshire", "new jersey", "new mexico", "new york",
	"north carolina", "north dakota", "ohio", "oklahoma", "oregon",
	"pennsylvania", "rhode island", "south carolina", "south dakota",
	"tennessee", "texas", "utah", "vermont", "virginia", "washington",
	"west virginia", "wisconsin", "wyoming",
	"washington dc", "district of columbia", "puerto rico",
}

var usStateCodes = map[string]bool{
	"al": true, "ak": true, "az": true, "ar": true, "ca": true, "co": true, "ct": true,
	"de": true, "fl": true, "ga": true, "hi": true, "id": true, "il": true, "in": true,
	"ia": true, "ks": true, "ky": true, "la": true, "me": true, "md": true, "ma": true,
	"mi": true, "mn": true, "ms": true, "mo": true, "mt": true, "ne": true, "nv": true,
	"nh": true, "nj": true, "nm": true, "ny": true, "nc": true, "nd": true, "oh": true,
	"ok": true, "or": true, "pa": true, "ri": true, "sc": true, "sd": true, "tn": true,
	"tx": true, "ut": true, "vt": true, "va": true, "wa": true, "wv": true, "wi": true,
	"wy": true, "dc": true, "pr": true,
}

var usCities = []string{
	"new york", "los angeles", "chicago", "houston", "phoenix", "philadelphia",
	"san antonio", "san diego", "dallas", "san jose", "austin", "jacksonville",
	"fort worth", "columbus", "charlotte", "san francisco", "indianapolis",
	"seattle", "denver", "boston", "el paso", "nashville",
	"detroit", "oklahoma city", "portland", "las vegas", "memphis",
	"louisville", "baltimore", "milwaukee", "albuquerque", "tucson", "fresno",
	"mesa", "sacramento", "atlanta", "kansas city", "colorado springs", "omaha",
	"raleigh", "miami", "long beach", "virginia beach", "oakland", "minneapolis",
	"tulsa", "tampa", "arlington", "new orleans", "nyc", "sf",
}

var usIndicators = []string{
	"usa", "us", "u s", "united states", "america", "american", "nationwide", "us only", "usa only",
}

var nonUSPlaces = []string{
	"uk", "united kingdom", "england", "london", "scotland", "wales",
	"canada", "canadian", "toronto", "vancouver", "montreal", "ottawa",
	"australia", "australian", "sydney", "melbourne", "brisbane",
	"germany", "german", "berlin", "munich", "frankfurt",
	"france", "french", "paris", "lyon",
	"spain", "spanish", "madrid", "barcelona",
	"italy", "italian", "rome", "milan",
	"netherlands", "dutch", "amsterdam",
	"india", "indian", "bangalore", "mumbai", "delhi", "hyderabad",
	"china", "chinese", "beijing", "shanghai",
	"japan", "japanese", "tokyo", "osaka",
	"singapore", "hong kong", "brazil", "mexico", "argentina",
	"ireland", "dublin", "sweden", "stockholm", "norway", "oslo",
	"denmark", "copenhagen", "finland", "helsinki", "poland", "warsaw",
	"portugal", "lisbon", "israel", "tel aviv", "south africa",
	"new zealand", "auckland", "europe", "european", "asia", "emea", "latam",
	"worldwide", "global", "international", "anywhere",
}

var bareRemote = map[string]bool{
	"remote": true, "remote work": true, "work from home": true, "wfh": true,
}

var (
	wordSep      = regexp.MustCompile(`[^a-z]+`)
	trailingCode = regexp.MustCompile(`,\s*([a-z]{2})\b`)
)

// USLocationFilter keeps postings located in the United States. Explicit
// non-US places win over US hints, so "Remote (US or Canada)" is rejected.
// Locations that say nothing either way are rejected, except a bare "remote"
// and an unknown location.
type USLocationFilter struct{}

// NewUSLocationFilter returns a USLocationFilter.
func NewUSLocationFilter() *USLocationFilter {
	return &USLocationFilter{}
}

func (f *USLocationFilter) Match(p model.Posting) bool {
	return IsUSLocation(p.Location)
}

// IsUSLocation classifies a free-form location string. Words are matched on
// boundaries, so "Milwaukee" does not hit "uk".
func IsUSLocation(location string) bool {
	lower := strings.ToLower(strings.TrimSpace(location))
	switch lower {
	case "", "n/a", "unknown":
		return true
	}
	if bareRemote[lower] {
		return true
	}

	text := " " + strings.TrimSpace(wordSep.ReplaceAllString(lower, " ")) + " "

	if hasPhrase(text, nonUSPlaces) {
		return false
	}
	if hasPhrase(text, usIndicators) || hasPhrase(text, usStates) || hasPhrase(text, usCities) {
		return true
	}
	if m := trailingCode.FindStringSubmatch(lower); m != nil && usStateCodes[m[1]] {
		return true
	}
	return false
}

func hasPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
