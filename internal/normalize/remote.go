package normalize

import (
	"regexp"
	"strings"
)

var remotePhrases = []string{
	"remote",
	"anywhere",
	"worldwide",
	"work from home",
	"wfh",
	"distributed",
	"telecommute",
	"home based",
	"home-based",
}

var nonWord = regexp.MustCompile(`[^a-z0-9-]+`)

// InferRemote reports whether the title or location mentions a remote-work
// token. Matching is on whole words, so "remoteness" or "premote" don't count.
func InferRemote(title, location string) bool {
	text := " " + nonWord.ReplaceAllString(strings.ToLower(title+" "+location), " ") + " "
	for _, p := range remotePhrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
