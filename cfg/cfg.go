package cfg

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"snipbin/pkg/domain"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	for i := range s.value {
		s.value[i] = 0
	}
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port               string
	Environment        string
	LogLevel           string
	DatabasePath       string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBQueryTimeout     time.Duration
	RedisURL           string
	RedisTLS           bool
	RedisUsername      string
	RedisPassword      Secret
	RedisTimeout       time.Duration
	LRUCacheSize       int
	PasteCacheTTL      time.Duration
	TagSuggestCacheTTL time.Duration
	RateLimit          RateLimitCfg
	MaxPasteSize       int
	MaxTitleLength     int
	MaxTags            int
	MaxQueryLength     int
	DefaultPageSize    int
	MaxPageSize        int
	QuickMatchLimit    int
	TagSuggestLimit    int
	MaxIDAttempts      int
	TrustedProxies     []string
	AllowedOrigins     []string
	MetricsUser        string
	MetricsPass        Secret
	ContextTimeout     time.Duration
	CleanupInterval    time.Duration
}

type RateLimitCfg struct {
	RPM               int
	Burst             int
	ConservativeLimit int
}

// Load reads the environment. A .env file in the working directory, when
// present, seeds variables that are not already set.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	c := &Cfg{}
	c.Port = getEnv("PORT", "8080")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.DatabasePath = getEnv("DATABASE_PATH", "snipbin.db")
	c.RedisURL = getEnv("REDIS_URL", "")
	c.RedisTLS = getEnv("REDIS_TLS", "false") == "true"
	c.RedisUsername = getEnv("REDIS_USERNAME", "")
	c.RedisPassword = NewSecret(getEnv("REDIS_PASSWORD", ""))
	c.TrustedProxies = getSlice("TRUSTED_PROXIES", []string{})
	c.AllowedOrigins = getSlice("ALLOWED_ORIGINS", []string{})
	c.MetricsUser = getEnv("METRICS_USER", "")
	c.MetricsPass = NewSecret(getEnv("METRICS_PASS", ""))

	ints := []struct {
		key      string
		dst      *int
		fallback int
	}{
		{"DB_MAX_OPEN_CONNS", &c.DBMaxOpenConns, 25},
		{"DB_MAX_IDLE_CONNS", &c.DBMaxIdleConns, 10},
		{"LRU_CACHE_SIZE", &c.LRUCacheSize, 1000},
		{"RATE_LIMIT_RPM", &c.RateLimit.RPM, 600},
		{"RATE_LIMIT_BURST", &c.RateLimit.Burst, 20},
		{"RATE_LIMIT_CONSERVATIVE", &c.RateLimit.ConservativeLimit, 60},
		{"MAX_PASTE_SIZE", &c.MaxPasteSize, 1000000},
		{"MAX_TITLE_LENGTH", &c.MaxTitleLength, 200},
		{"MAX_TAGS", &c.MaxTags, 10},
		{"MAX_QUERY_LENGTH", &c.MaxQueryLength, 50},
		{"DEFAULT_PAGE_SIZE", &c.DefaultPageSize, 10},
		{"MAX_PAGE_SIZE", &c.MaxPageSize, 100},
		{"QUICK_MATCH_LIMIT", &c.QuickMatchLimit, 5},
		{"TAG_SUGGEST_LIMIT", &c.TagSuggestLimit, 8},
		{"MAX_ID_ATTEMPTS", &c.MaxIDAttempts, 20},
	}
	for _, it := range ints {
		v, err := getInt(it.key, it.fallback)
		if err != nil {
			return nil, err
		}
		*it.dst = v
	}

	durations := []struct {
		key      string
		dst      *time.Duration
		fallback time.Duration
	}{
		{"DB_QUERY_TIMEOUT", &c.DBQueryTimeout, 5 * time.Second},
		{"REDIS_TIMEOUT", &c.RedisTimeout, 2 * time.Second},
		{"PASTE_CACHE_TTL", &c.PasteCacheTTL, 5 * time.Minute},
		{"TAG_SUGGEST_CACHE_TTL", &c.TagSuggestCacheTTL, 30 * time.Second},
		{"CONTEXT_TIMEOUT", &c.ContextTimeout, 10 * time.Second},
		{"CLEANUP_INTERVAL", &c.CleanupInterval, 10 * time.Minute},
	}
	for _, it := range durations {
		v, err := getDuration(it.key, it.fallback)
		if err != nil {
			return nil, err
		}
		*it.dst = v
	}
	return c, nil
}

// Defaults returns the configuration Load would produce from an empty
// environment.
func Defaults() *Cfg {
	return &Cfg{
		Port:               "8080",
		Environment:        "development",
		LogLevel:           "info",
		DatabasePath:       "snipbin.db",
		DBMaxOpenConns:     25,
		DBMaxIdleConns:     10,
		DBQueryTimeout:     5 * time.Second,
		RedisTimeout:       2 * time.Second,
		LRUCacheSize:       1000,
		PasteCacheTTL:      5 * time.Minute,
		TagSuggestCacheTTL: 30 * time.Second,
		RateLimit:          RateLimitCfg{RPM: 600, Burst: 20, ConservativeLimit: 60},
		MaxPasteSize:       1000000,
		MaxTitleLength:     200,
		MaxTags:            10,
		MaxQueryLength:     50,
		DefaultPageSize:    10,
		MaxPageSize:        100,
		QuickMatchLimit:    5,
		TagSuggestLimit:    8,
		MaxIDAttempts:      20,
		ContextTimeout:     10 * time.Second,
		CleanupInterval:    10 * time.Minute,
	}
}

func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.New("PORT must be a number")
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH is required")
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.DBQueryTimeout <= 0 {
		return errors.New("DB_QUERY_TIMEOUT must be positive")
	}
	if c.RedisURL != "" {
		if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
			return errors.New("REDIS_URL must start with redis:// or rediss://")
		}
		if strings.HasPrefix(c.RedisURL, "rediss://") && !c.RedisTLS {
			return errors.New("REDIS_URL uses rediss:// but REDIS_TLS=false")
		}
	}
	if c.LRUCacheSize <= 0 {
		return errors.New("LRU_CACHE_SIZE must be positive")
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if c.MaxPasteSize <= 0 || c.MaxPasteSize > 1000000 {
		return errors.New("MAX_PASTE_SIZE must be between 1 and 1000000")
	}
	if c.MaxTitleLength <= 0 || c.MaxTitleLength > 200 {
		return errors.New("MAX_TITLE_LENGTH must be between 1 and 200")
	}
	if c.MaxTags <= 0 || c.MaxTags > domain.MaxTags {
		return fmt.Errorf("MAX_TAGS must be between 1 and %d", domain.MaxTags)
	}
	if c.MaxQueryLength <= 0 {
		return errors.New("MAX_QUERY_LENGTH must be positive")
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return errors.New("DEFAULT_PAGE_SIZE must be positive and <= MAX_PAGE_SIZE")
	}
	if c.QuickMatchLimit <= 0 || c.TagSuggestLimit <= 0 {
		return errors.New("QUICK_MATCH_LIMIT and TAG_SUGGEST_LIMIT must be positive")
	}
	if c.MaxIDAttempts <= 0 {
		return errors.New("MAX_ID_ATTEMPTS must be positive")
	}
	if c.CleanupInterval < 0 {
		return errors.New("CLEANUP_INTERVAL cannot be negative")
	}
	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid CIDR in TRUSTED_PROXIES: %s", proxy)
			}
		} else if net.ParseIP(proxy) == nil {
			return fmt.Errorf("invalid IP in TRUSTED_PROXIES: %s", proxy)
		}
	}
	if c.Environment == "production" {
		if c.MetricsUser == "" || c.MetricsPass.Value() == "" {
			return errors.New("METRICS_USER and METRICS_PASS are required in production")
		}
	}
	return nil
}
func (c *Cfg) Wipe() {
	c.RedisPassword.Wipe()
	c.MetricsPass.Wipe()
}
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
func getSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	var result []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
