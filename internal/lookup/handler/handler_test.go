package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup/cache"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (b *memBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *memBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(len(b.data))
	b.data = make(map[string]string)
	return n, nil
}

func newServer(t *testing.T, withCache bool) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	w := partition.NewWriter(dir)
	if _, err := w.Write('w', []index.WordEntry{{Word: "world", FileIDs: []int{1, 2}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write('h', []index.WordEntry{{Word: "hello", FileIDs: []int{1}}}); err != nil {
		t.Fatal(err)
	}
	var c *cache.Cache
	if withCache {
		c = cache.New(&memBackend{data: make(map[string]string)}, time.Minute)
	}
	mux := http.NewServeMux()
	New(lookup.NewIndex(dir), c).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestLookup(t *testing.T) {
	srv := newServer(t, true)

	var body LookupResponse
	if code := getJSON(t, srv.URL+"/api/v1/lookup?word=World!", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := LookupResponse{Word: "world", FileIDs: []int{1, 2}, FileCount: 2}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %+v, want %+v", body, want)
	}

	getJSON(t, srv.URL+"/api/v1/lookup?word=world", &body)
	if !body.Cached {
		t.Error("second lookup should be served from the cache")
	}
}

func TestLookupErrors(t *testing.T) {
	srv := newServer(t, false)
	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?word=", http.StatusBadRequest},
		{"?word=1234", http.StatusBadRequest},
		{"?word=wax", http.StatusNotFound},
		{"?word=zebra", http.StatusNotFound},
	}
	for _, tt := range tests {
		var body map[string]string
		if code := getJSON(t, srv.URL+"/api/v1/lookup"+tt.query, &body); code != tt.want {
			t.Errorf("%q: status = %d, want %d", tt.query, code, tt.want)
		}
		if body["error"] == "" {
			t.Errorf("%q: missing error message", tt.query)
		}
	}
}

func TestPartition(t *testing.T) {
	srv := newServer(t, false)

	var body PartitionResponse
	if code := getJSON(t, srv.URL+"/api/v1/partitions/w", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Words != 1 || body.Entries[0].Word != "world" {
		t.Errorf("body = %+v", body)
	}
	if code := getJSON(t, srv.URL+"/api/v1/partitions/q", nil); code != http.StatusNotFound {
		t.Errorf("missing partition status = %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/v1/partitions/Q", nil); code != http.StatusBadRequest {
		t.Errorf("bad letter status = %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/v1/partitions/ab", nil); code != http.StatusBadRequest {
		t.Errorf("long letter status = %d", code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv := newServer(t, true)
	getJSON(t, srv.URL+"/api/v1/lookup?word=hello", nil)
	getJSON(t, srv.URL+"/api/v1/lookup?word=hello", nil)

	var stats cache.Stats
	getJSON(t, srv.URL+"/api/v1/cache/stats", &stats)
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || out["keys_deleted"] != float64(1) {
		t.Errorf("invalidate = %d %v", resp.StatusCode, out)
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	srv := newServer(t, false)
	var body map[string]string
	getJSON(t, srv.URL+"/api/v1/cache/stats", &body)
	if body["status"] != "disabled" {
		t.Errorf("body = %v", body)
	}
}
