package domain

import (
	"strings"
	"time"
	"unicode"
)

type SearchFilters struct {
	Query  string
	Syntax string
	Tags   []string
	From   *time.Time
	To     *time.Time
}

type SearchPage struct {
	Results    []*Paste `json:"results"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
}

type MatchType string

const (
	MatchTitle   MatchType = "title"
	MatchContent MatchType = "content"
)

type QuickMatch struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Syntax    string    `json:"syntax"`
	MatchType MatchType `json:"match_type"`
	Snippet   *string   `json:"snippet"`
}

// SyntaxFilterActive reports whether s narrows a search. "plaintext" is the
// default label and is treated the same as no selection.
func SyntaxFilterActive(s string) bool {
	return s != "" && s != "all" && s != DefaultSyntax
}

// Fold lowercases rune by rune so the rune count never changes. The store
// registers the same mapping as an SQL function.
func Fold(s string) string {
	return strings.Map(unicode.ToLower, s)
}
