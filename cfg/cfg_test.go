package cfg

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := Defaults()
	if c.MaxTags != d.MaxTags || c.MaxPasteSize != d.MaxPasteSize || c.MaxIDAttempts != d.MaxIDAttempts {
		t.Errorf("Load defaults drifted from Defaults(): %+v", c)
	}
	if c.DefaultPageSize != 10 || c.QuickMatchLimit != 5 || c.TagSuggestLimit != 8 {
		t.Errorf("unexpected paging/suggestion defaults: page=%d quick=%d tags=%d",
			c.DefaultPageSize, c.QuickMatchLimit, c.TagSuggestLimit)
	}
	if err := Validate(c); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_TAGS", "5")
	t.Setenv("PASTE_CACHE_TTL", "90s")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.1 , 192.168.0.0/16,")
	t.Setenv("METRICS_PASS", "hunter2")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Port != "9090" {
		t.Errorf("Port = %q", c.Port)
	}
	if c.MaxTags != 5 {
		t.Errorf("MaxTags = %d", c.MaxTags)
	}
	if c.PasteCacheTTL != 90*time.Second {
		t.Errorf("PasteCacheTTL = %v", c.PasteCacheTTL)
	}
	if len(c.TrustedProxies) != 2 || c.TrustedProxies[1] != "192.168.0.0/16" {
		t.Errorf("TrustedProxies = %v", c.TrustedProxies)
	}
	if c.MetricsPass.String() != "***REDACTED***" || c.MetricsPass.Value() != "hunter2" {
		t.Error("secret should redact on String but keep its value")
	}
	c.Wipe()
	if strings.Trim(c.MetricsPass.Value(), "\x00") != "" {
		t.Error("Wipe should zero secrets")
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("MAX_PAGE_SIZE", "lots")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-integer MAX_PAGE_SIZE")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Cfg)
		errSub string
	}{
		{"bad port", func(c *Cfg) { c.Port = "http" }, "PORT"},
		{"no db", func(c *Cfg) { c.DatabasePath = "" }, "DATABASE_PATH"},
		{"redis scheme", func(c *Cfg) { c.RedisURL = "tcp://x" }, "REDIS_URL"},
		{"rediss without tls", func(c *Cfg) { c.RedisURL = "rediss://x:6379" }, "REDIS_TLS"},
		{"too many tags", func(c *Cfg) { c.MaxTags = 11 }, "MAX_TAGS"},
		{"paste too large", func(c *Cfg) { c.MaxPasteSize = 2000000 }, "MAX_PASTE_SIZE"},
		{"title too long", func(c *Cfg) { c.MaxTitleLength = 500 }, "MAX_TITLE_LENGTH"},
		{"page sizes", func(c *Cfg) { c.MaxPageSize = 5 }, "DEFAULT_PAGE_SIZE"},
		{"id attempts", func(c *Cfg) { c.MaxIDAttempts = 0 }, "MAX_ID_ATTEMPTS"},
		{"bad proxy", func(c *Cfg) { c.TrustedProxies = []string{"nope"} }, "TRUSTED_PROXIES"},
		{"prod metrics", func(c *Cfg) { c.Environment = "production" }, "METRICS_USER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := Validate(c)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error %q does not mention %s", err, tt.errSub)
			}
		})
	}
}
