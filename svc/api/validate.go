package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"snipbin/cfg"
	"snipbin/pkg/domain"

	"golang.org/x/text/unicode/norm"
)

type CreateReq struct {
	Text   string   `json:"text"`
	Title  string   `json:"title"`
	Syntax string   `json:"syntax,omitempty"`
	Expiry string   `json:"expiry,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

func validateCreate(req CreateReq, c *cfg.Cfg) (domain.CreateParams, error) {
	title := strings.TrimSpace(sanitizeText(req.Title))
	if title == "" {
		return domain.CreateParams{}, domain.ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > c.MaxTitleLength {
		return domain.CreateParams{}, domain.ErrTitleTooLong
	}
	text := sanitizeText(req.Text)
	if text == "" {
		return domain.CreateParams{}, domain.ErrContentRequired
	}
	if utf8.RuneCountInString(text) > c.MaxPasteSize {
		return domain.CreateParams{}, domain.ErrPasteTooLarge
	}
	syntax := req.Syntax
	if syntax == "" {
		syntax = domain.DefaultSyntax
	}
	if !domain.ValidSyntax(syntax) {
		return domain.CreateParams{}, domain.ErrInvalidSyntax
	}
	expiry := req.Expiry
	if expiry == "" {
		expiry = string(domain.ExpiryNever)
	}
	if !domain.ValidExpiry(expiry) {
		return domain.CreateParams{}, domain.ErrInvalidExpiry
	}
	for _, t := range req.Tags {
		if domain.NormalizeTag(t) == "" {
			return domain.CreateParams{}, domain.ErrInvalidTag
		}
	}
	if len(domain.NormalizeTags(req.Tags)) > c.MaxTags {
		return domain.CreateParams{}, domain.ErrTooManyTags
	}
	return domain.CreateParams{
		Text:   text,
		Title:  title,
		Syntax: syntax,
		Expiry: domain.Expiry(expiry),
		Tags:   req.Tags,
	}, nil
}

// sanitizeText applies NFC, drops invalid UTF-8 and strips control
// characters other than newline, carriage return and tab.
func sanitizeText(s string) string {
	s = norm.NFC.String(strings.ToValidUTF8(s, ""))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

func parsePositive(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.ErrInvalidPagination
	}
	return n, nil
}

// parsePaging reads page and limit. A limit above maxLimit is clamped.
func parsePaging(r *http.Request, defLimit, maxLimit int) (page, limit int, err error) {
	q := r.URL.Query()
	if page, err = parsePositive(q.Get("page"), 1); err != nil {
		return 0, 0, err
	}
	if limit, err = parsePositive(q.Get("limit"), defLimit); err != nil {
		return 0, 0, err
	}
	return page, min(limit, maxLimit), nil
}

func parseQuery(raw string, c *cfg.Cfg) (string, error) {
	q := strings.TrimSpace(raw)
	if utf8.RuneCountInString(q) > c.MaxQueryLength {
		return "", domain.ErrQueryTooLong
	}
	return q, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseSearch(r *http.Request, c *cfg.Cfg, now time.Time) (domain.SearchFilters, error) {
	v := r.URL.Query()
	var f domain.SearchFilters
	var err error
	if f.Query, err = parseQuery(v.Get("q"), c); err != nil {
		return f, err
	}
	f.Syntax = v.Get("syntax")
	if f.Syntax != "" && f.Syntax != "all" && !domain.ValidSyntax(f.Syntax) {
		return f, domain.ErrInvalidSyntax
	}
	f.Tags = splitTags(v.Get("tags"))
	if len(domain.NormalizedKeys(f.Tags)) > c.MaxTags {
		return f, domain.ErrTooManyTags
	}

	if raw := v.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, domain.ErrInvalidTimeRange
		}
		f.From = &t
	} else if window := v.Get("time"); window != "" && window != "all" {
		d, ok := domain.TimeWindows[window]
		if !ok {
			return f, domain.ErrInvalidTimeRange
		}
		from := now.Add(-d)
		f.From = &from
	}
	if raw := v.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, domain.ErrInvalidTimeRange
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return f, domain.ErrInvalidTimeRange
	}
	return f, nil
}
