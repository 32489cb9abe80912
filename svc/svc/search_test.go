package svc

import (
	"context"
	"testing"
	"time"

	"snipbin/pkg/domain"

	"github.com/pkg/errors"
)

func TestSearchGreetingScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	a := f.create(t, domain.CreateParams{Title: "Greeting", Text: "Hello, World!"})
	f.clock.Advance(time.Second)
	b := f.create(t, domain.CreateParams{Title: "Cosmos", Text: "Hello, Universe!"})
	f.clock.Advance(time.Second)
	f.create(t, domain.CreateParams{Title: "Farewell", Text: "Goodbye, World!"})

	lower, err := f.svc.Search(ctx, domain.SearchFilters{Query: "Hello"}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !sameIDs(pasteIDs(lower.Results), []string{b.ID, a.ID}) {
		t.Errorf("Search(Hello) = %v, want [%s %s]", pasteIDs(lower.Results), b.ID, a.ID)
	}
	if lower.Total != 2 || lower.Page != 1 || lower.TotalPages != 1 {
		t.Errorf("page meta = total %d page %d pages %d", lower.Total, lower.Page, lower.TotalPages)
	}

	upper, err := f.svc.Search(ctx, domain.SearchFilters{Query: "HELLO"}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !sameIDs(pasteIDs(upper.Results), pasteIDs(lower.Results)) {
		t.Errorf("case changed the result set: %v vs %v", pasteIDs(upper.Results), pasteIDs(lower.Results))
	}
}

func TestSearchRequiresAllTags(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.create(t, domain.CreateParams{Tags: []string{"rust", "cli"}})

	tests := []struct {
		tags  []string
		match bool
	}{
		{[]string{"rust"}, true},
		{[]string{"rust", "cli"}, true},
		{[]string{"Rust", "CLI!"}, true},
		{[]string{"rust", "web"}, false},
		{[]string{"web"}, false},
	}
	for _, tt := range tests {
		page, err := f.svc.Search(ctx, domain.SearchFilters{Tags: tt.tags}, 1, 10)
		if err != nil {
			t.Fatalf("Search(%v): %v", tt.tags, err)
		}
		got := len(page.Results) == 1 && page.Results[0].ID == p.ID
		if got != tt.match {
			t.Errorf("tags %v matched = %v, want %v", tt.tags, got, tt.match)
		}
	}
}

func TestSearchPaginationConsistency(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		f.create(t, domain.CreateParams{Tags: []string{"bulk"}})
		if i%3 == 0 {
			f.clock.Advance(time.Second)
		}
	}
	f.create(t, domain.CreateParams{Tags: []string{"other"}})

	filters := domain.SearchFilters{Tags: []string{"bulk"}}
	first, err := f.svc.Search(ctx, filters, 1, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Total != 23 || first.TotalPages != 5 {
		t.Fatalf("total %d pages %d, want 23 and 5", first.Total, first.TotalPages)
	}

	seen := map[string]bool{}
	sum := 0
	for page := 1; page <= first.TotalPages; page++ {
		res, err := f.svc.Search(ctx, filters, page, 5)
		if err != nil {
			t.Fatalf("Search page %d: %v", page, err)
		}
		sum += len(res.Results)
		for _, p := range res.Results {
			if seen[p.ID] {
				t.Errorf("paste %s returned on two pages", p.ID)
			}
			seen[p.ID] = true
			if len(p.Tags) != 1 || p.Tags[0].Normalized != "bulk" {
				t.Errorf("paste %s tags = %+v", p.ID, p.Tags)
			}
		}
	}
	if sum != first.Total {
		t.Errorf("sum of page sizes %d != total %d", sum, first.Total)
	}

	beyond, err := f.svc.Search(ctx, filters, 9, 5)
	if err != nil {
		t.Fatalf("Search beyond last page: %v", err)
	}
	if len(beyond.Results) != 0 || beyond.Total != 23 {
		t.Errorf("beyond last page = %d results, total %d", len(beyond.Results), beyond.Total)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	f := newFixture(t, false)
	page, err := f.svc.Search(context.Background(), domain.SearchFilters{Query: "nothing"}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Results == nil || len(page.Results) != 0 || page.Total != 0 || page.TotalPages != 0 {
		t.Errorf("unexpected empty page: %+v", page)
	}
}

func TestSearchTimeRange(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	old := f.create(t, domain.CreateParams{})
	f.clock.Advance(48 * time.Hour)
	recent := f.create(t, domain.CreateParams{})

	from := f.clock.Now().Add(-24 * time.Hour)
	page, err := f.svc.Search(ctx, domain.SearchFilters{From: &from}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !sameIDs(pasteIDs(page.Results), []string{recent.ID}) {
		t.Errorf("from filter = %v, want [%s]", pasteIDs(page.Results), recent.ID)
	}
	to := old.CreatedAt
	page, err = f.svc.Search(ctx, domain.SearchFilters{To: &to}, 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !sameIDs(pasteIDs(page.Results), []string{old.ID}) {
		t.Errorf("to filter = %v, want [%s]", pasteIDs(page.Results), old.ID)
	}
}

func TestSearchInvalidPagination(t *testing.T) {
	f := newFixture(t, false)
	for _, args := range [][2]int{{0, 10}, {1, 0}, {-2, -2}} {
		_, err := f.svc.Search(context.Background(), domain.SearchFilters{}, args[0], args[1])
		if !errors.Is(err, domain.ErrInvalidPagination) {
			t.Errorf("Search(page=%d, limit=%d) err = %v", args[0], args[1], err)
		}
	}
}
