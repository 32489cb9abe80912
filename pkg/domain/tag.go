package domain

import (
	"regexp"
	"strings"
)

const MaxTags = 10

var (
	tagStrip   = regexp.MustCompile(`[^a-z0-9-]+`)
	TagPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

type Tag struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
}

type TagSuggestion struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
	Count      int    `json:"count"`
}

// NormalizeTag canonicalises a user supplied tag into its lookup key.
// An empty result means the tag must be dropped.
func NormalizeTag(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return tagStrip.ReplaceAllString(s, "")
}

// NormalizeTags normalises raw in order, dropping empties and keeping the
// first display form seen for each key.
func NormalizeTags(raw []string) []Tag {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]Tag, 0, len(raw))
	for _, r := range raw {
		n := NormalizeTag(r)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, Tag{Name: strings.TrimSpace(r), Normalized: n})
	}
	return out
}

// NormalizedKeys is NormalizeTags without display names.
func NormalizedKeys(raw []string) []string {
	tags := NormalizeTags(raw)
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = t.Normalized
	}
	return keys
}
