package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"snipbin/cfg"
	"snipbin/svc/api"
	"snipbin/svc/cache"
	"snipbin/svc/db"
	"snipbin/svc/lim"
	"snipbin/svc/svc"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
)

var envLoadOnce sync.Once

// loadTestEnv seeds the environment from the first .env.test it finds.
func loadTestEnv() {
	envLoadOnce.Do(func() {
		for _, p := range []string{".env.test", "../.env.test"} {
			abs, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			if _, err := os.Stat(abs); err != nil {
				continue
			}
			if err := godotenv.Load(abs); err == nil {
				return
			}
		}
	})
}

func createTestConfig(t *testing.T) *cfg.Cfg {
	t.Helper()
	loadTestEnv()
	c, err := cfg.Load()
	if err != nil {
		t.Logf("cfg.Load failed, using defaults: %v", err)
		c = cfg.Defaults()
	}
	c.Port = "0"
	c.Environment = "test"
	c.LogLevel = "error"
	c.DatabasePath = filepath.Join(t.TempDir(), "integration.db")
	c.RedisURL = ""
	c.RateLimit = cfg.RateLimitCfg{RPM: 100000, Burst: 10000, ConservativeLimit: 100000}
	return c
}

type harness struct {
	cfg   *cfg.Cfg
	store *db.SQLite
	rdb   *db.Redis
	mr    *miniredis.Miniredis
	paste *svc.Paste
	srv   *httptest.Server
}

type option func(*testing.T, *harness)

func withRedis() option {
	return func(t *testing.T, h *harness) {
		h.mr = miniredis.RunT(t)
		rdb, err := db.NewRedis("redis://"+h.mr.Addr(), h.cfg)
		if err != nil {
			t.Fatalf("redis: %v", err)
		}
		t.Cleanup(func() { rdb.Close() })
		h.rdb = rdb
	}
}

func withCfg(fn func(*cfg.Cfg)) option {
	return func(t *testing.T, h *harness) { fn(h.cfg) }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{cfg: createTestConfig(t)}
	for _, o := range opts {
		o(t, h)
	}
	store, err := db.NewSQLiteWithConfig(h.cfg.DatabasePath, h.cfg.DBMaxOpenConns, h.cfg.DBMaxIdleConns, h.cfg.DBQueryTimeout)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	h.store = store
	lru, err := cache.NewLRU(h.cfg.LRUCacheSize)
	if err != nil {
		t.Fatalf("lru: %v", err)
	}
	h.paste = svc.NewPaste(store, lru, h.rdb, h.cfg)
	limiter := lim.New(h.cfg.RateLimit, h.rdb, h.cfg.TrustedProxies)
	t.Cleanup(limiter.Stop)
	h.srv = httptest.NewServer(api.NewServer(h.cfg, h.paste, limiter, store, h.rdb))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (h *harness) getJSON(t *testing.T, path string, want int, out any) {
	t.Helper()
	resp, body := h.do(t, http.MethodGet, path, nil)
	if resp.StatusCode != want {
		t.Fatalf("GET %s = %d, want %d: %s", path, resp.StatusCode, want, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

type pasteResp struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Syntax    string    `json:"syntax"`
	ExpiresAt *string   `json:"expires_at"`
	Tags      []tagResp `json:"tags"`
}

type tagResp struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
}

type errResp struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (h *harness) create(t *testing.T, req map[string]any) pasteResp {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/pastes", req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d: %s", resp.StatusCode, body)
	}
	var p pasteResp
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	return p
}

func code(t *testing.T, body []byte) string {
	t.Helper()
	var e errResp
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e.Error.Code
}
