package svc

import (
	"strings"
	"unicode"

	"snipbin/pkg/domain"
)

const (
	snippetRadius = 30
	ellipsis      = "..."
)

// Snippet returns the text around the first case-insensitive occurrence of
// query, with up to snippetRadius runes of context on each side. Whitespace
// runs in text are collapsed first; query is only trimmed, so a query with
// inner runs of whitespace finds nothing. Nil when query does not occur.
func Snippet(text, query string) *string {
	src := []rune(collapseSpace(text))
	needle := []rune(domain.Fold(strings.TrimSpace(query)))
	if len(needle) == 0 {
		return nil
	}
	idx := runeIndex([]rune(domain.Fold(string(src))), needle)
	if idx < 0 {
		return nil
	}
	start := max(0, idx-snippetRadius)
	end := min(len(src), idx+len(needle)+snippetRadius)
	s := string(src[start:end])
	if start > 0 {
		s = ellipsis + s
	}
	if end < len(src) {
		s += ellipsis
	}
	return &s
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func runeIndex(hay, needle []rune) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
