// Package normalize maps raw source postings onto the canonical Posting
// record and computes the dedup fingerprint.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/amishk599/jobagg/internal/model"
)

const (
	remoteLocation  = "Remote"
	unknownLocation = "N/A"
)

// Normalizer turns RawPostings into Postings. The clock is injectable so
// fallback dates are deterministic in tests.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock returns a Normalizer whose ingestion time comes from now.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize validates and canonicalizes raw. Only a missing title, company or
// url is an error; everything else is coerced to an explicit default.
func (n *Normalizer) Normalize(raw model.RawPosting, source string) (model.Posting, error) {
	title := CollapseSpace(raw.Title)
	company := CollapseSpace(raw.Company)
	url := strings.TrimSpace(raw.URL)

	switch {
	case isMissing(title):
		return model.Posting{}, &model.NormalizationError{Field: "title", Reason: "is empty"}
	case isMissing(company):
		return model.Posting{}, &model.NormalizationError{Field: "company", Reason: "is empty"}
	case url == "":
		return model.Posting{}, &model.NormalizationError{Field: "url", Reason: "is empty"}
	}

	location := CollapseSpace(raw.Location)
	remote := InferRemote(title, location)
	if raw.RemoteHint != nil {
		remote = remote || *raw.RemoteHint
	}
	if isMissing(location) {
		location = unknownLocation
		if remote {
			location = remoteLocation
		}
	}

	now := n.now().UTC()
	postedAt, ok := ParseDate(raw.PostedDate, now)
	if !ok {
		postedAt = now
	}

	return model.Posting{
		Fingerprint:       Fingerprint(title, company, location),
		Title:             title,
		Company:           company,
		Location:          location,
		Description:       strings.TrimSpace(raw.Description),
		URL:               url,
		Source:            source,
		PostedAt:          postedAt,
		PostedAtEstimated: !ok,
		JobType:           CollapseSpace(raw.JobType),
		Salary:            CollapseSpace(raw.Salary),
		Tags:              cleanTags(raw.Tags),
		Remote:            remote,
		CreatedAt:         now,
	}, nil
}

// Fingerprint is the dedup key: md5 over the case-folded, whitespace-collapsed
// title, company and location joined by "|".
func Fingerprint(title, company, location string) string {
	key := strings.ToLower(CollapseSpace(title)) + "|" +
		strings.ToLower(CollapseSpace(company)) + "|" +
		strings.ToLower(CollapseSpace(location))
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sources fill unknown fields with placeholders; treat those as absent.
func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "n/a", "na", "none", "null", "unknown":
		return true
	}
	return false
}

func cleanTags(tags []string) []string {
	cleaned := lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = CollapseSpace(t)
		return t, t != ""
	})
	return lo.Uniq(cleaned)
}
