package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"January 2, 2006",
	"Jan 2, 2006",
}

var relativeDate = regexp.MustCompile(`^(\d+)\+?\s*(minute|min|hour|hr|day|week|month|year)s?\s+ago$`)

const (
	// Numbers below this are not plausible epoch timestamps (1973).
	epochMin = 1e8
	// Seconds above this are treated as milliseconds (year 5138 in seconds).
	epochMillisThreshold = 1e11
)

// ParseDate best-effort parses a posted date. ok is false when nothing matched,
// in which case the caller falls back to ingestion time.
func ParseDate(s string, now time.Time) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) || n < epochMin {
			return time.Time{}, false
		}
		if n >= epochMillisThreshold {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		return time.Unix(int64(n), 0).UTC(), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return parseRelative(strings.ToLower(s), now)
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	switch s {
	case "just now", "today", "just posted", "new":
		return now, true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	}

	s = strings.TrimPrefix(s, "posted ")
	m := relativeDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	switch m[2] {
	case "minute", "min":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour", "hr":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	default:
		return now.AddDate(-n, 0, 0), true
	}
}
