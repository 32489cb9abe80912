package test

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"snipbin/cfg"
)

type searchResp struct {
	Results    []pasteResp `json:"results"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
}

func titles(ps []pasteResp) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func TestPasteLifecycle(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, map[string]any{
		"title":  "Deploy script",
		"text":   "#!/bin/sh\nmake deploy\n",
		"syntax": "plaintext",
		"tags":   []string{"DevOps", "shell"},
	})
	if p.ExpiresAt != nil {
		t.Errorf("expires_at = %v, want null", *p.ExpiresAt)
	}

	var got pasteResp
	h.getJSON(t, "/pastes/"+p.ID, http.StatusOK, &got)
	if got.Text != p.Text || got.Title != p.Title {
		t.Errorf("GET returned %+v, want %+v", got, p)
	}
	if len(got.Tags) != 2 || got.Tags[0].Name != "DevOps" || got.Tags[0].Normalized != "devops" {
		t.Errorf("tags = %+v", got.Tags)
	}

	resp, raw := h.do(t, http.MethodGet, "/pastes/"+p.ID+"/raw", nil)
	if resp.StatusCode != http.StatusOK || string(raw) != p.Text {
		t.Errorf("raw = %d %q", resp.StatusCode, raw)
	}

	var latest []pasteResp
	h.getJSON(t, "/pastes", http.StatusOK, &latest)
	if len(latest) != 1 || latest[0].ID != p.ID {
		t.Errorf("latest = %v", titles(latest))
	}
}

func TestSearchScenario(t *testing.T) {
	h := newHarness(t)
	h.create(t, map[string]any{"title": "Greeting", "text": "Hello, World!"})
	h.create(t, map[string]any{"title": "Cosmos", "text": "Hello, Universe!"})
	h.create(t, map[string]any{"title": "Farewell", "text": "Goodbye, World!"})

	var res searchResp
	h.getJSON(t, "/search?q=Hello", http.StatusOK, &res)
	if got := titles(res.Results); strings.Join(got, ",") != "Cosmos,Greeting" {
		t.Errorf("Hello = %v, want [Cosmos Greeting]", got)
	}

	h.getJSON(t, "/search?q=world", http.StatusOK, &res)
	if res.Total != 2 {
		t.Errorf("world total = %d, want 2", res.Total)
	}

	var matches []struct {
		Title     string  `json:"title"`
		MatchType string  `json:"match_type"`
		Snippet   *string `json:"snippet"`
	}
	h.getJSON(t, "/suggest?q=universe", http.StatusOK, &matches)
	if len(matches) != 1 || matches[0].MatchType != "content" || matches[0].Snippet == nil {
		t.Fatalf("suggest = %+v", matches)
	}
	if !strings.Contains(*matches[0].Snippet, "Universe") {
		t.Errorf("snippet %q does not contain the match", *matches[0].Snippet)
	}
}

func TestSearchPagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		h.create(t, map[string]any{"title": "item", "text": "page body", "tags": []string{"batch"}})
	}
	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		var res searchResp
		h.getJSON(t, "/search?tags=batch&limit=3&page="+strconv.Itoa(page), http.StatusOK, &res)
		if res.Total != 7 || res.TotalPages != 3 {
			t.Fatalf("page %d meta = %+v", page, res)
		}
		for _, p := range res.Results {
			if seen[p.ID] {
				t.Errorf("paste %s returned twice", p.ID)
			}
			seen[p.ID] = true
		}
	}
	if len(seen) != 7 {
		t.Errorf("saw %d pastes, want 7", len(seen))
	}
}

func TestTagSuggestFlow(t *testing.T) {
	h := newHarness(t)
	h.create(t, map[string]any{"title": "a", "text": "x", "tags": []string{"golang", "go-kit"}})
	h.create(t, map[string]any{"title": "b", "text": "x", "tags": []string{"golang"}})

	var tags []struct {
		Normalized string `json:"normalized"`
		Count      int    `json:"count"`
	}
	h.getJSON(t, "/tags/suggest?q="+url.QueryEscape("GO"), http.StatusOK, &tags)
	if len(tags) != 2 || tags[0].Normalized != "golang" || tags[0].Count != 2 {
		t.Errorf("tag suggestions = %+v", tags)
	}
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		req  map[string]any
		code string
	}{
		{"missing title", map[string]any{"text": "x"}, "TITLE_REQUIRED"},
		{"missing text", map[string]any{"title": "t"}, "CONTENT_REQUIRED"},
		{"bad syntax", map[string]any{"title": "t", "text": "x", "syntax": "brainfuck"}, "INVALID_SYNTAX"},
		{"bad expiry", map[string]any{"title": "t", "text": "x", "expiry": "forever"}, "INVALID_EXPIRY"},
		{"bad tag", map[string]any{"title": "t", "text": "x", "tags": []string{"***"}}, "INVALID_TAG"},
		{"title too long", map[string]any{"title": strings.Repeat("t", 201), "text": "x"}, "TITLE_TOO_LONG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := h.do(t, http.MethodPost, "/pastes", tt.req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", resp.StatusCode, body)
			}
			if got := code(t, body); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}

	resp, body := h.do(t, http.MethodGet, "/pastes/AAAAAAAA", nil)
	if resp.StatusCode != http.StatusNotFound || code(t, body) != "PASTE_NOT_FOUND" {
		t.Errorf("missing paste = %d %s", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/search?from=2025-02-01T00:00:00Z&to=2025-01-01T00:00:00Z", nil)
	if resp.StatusCode != http.StatusBadRequest || code(t, body) != "INVALID_TIME_RANGE" {
		t.Errorf("inverted range = %d %s", resp.StatusCode, body)
	}
}

func TestRateLimitFlow(t *testing.T) {
	h := newHarness(t, withCfg(func(c *cfg.Cfg) {
		c.RateLimit.Burst = 3
		c.RateLimit.ConservativeLimit = 3
	}))
	limited := 0
	for i := 0; i < 5; i++ {
		resp, _ := h.do(t, http.MethodPost, "/pastes", map[string]any{"title": "t", "text": "x"})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
			if resp.Header.Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if limited != 2 {
		t.Errorf("limited %d of 5 creates, want 2", limited)
	}
}
