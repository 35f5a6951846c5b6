package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
)

// lookupStats aggregates the outcome of every lookup request.
type lookupStats struct {
	total    atomic.Int64
	found    atomic.Int64
	notFound atomic.Int64
	failed   atomic.Int64
	cached   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *lookupStats) record(d time.Duration, status int, cached bool, err error) {
	s.total.Add(1)
	switch {
	case err != nil:
		s.failed.Add(1)
		return
	case status == http.StatusOK:
		s.found.Add(1)
		if cached {
			s.cached.Add(1)
		}
	case status == http.StatusNotFound:
		s.notFound.Add(1)
	default:
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8090", "base URL of the lookup service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	dataDir := flag.String("data", "", "partition directory to draw query words from")
	perLetter := flag.Int("per-letter", 20, "most frequent words taken from each partition")
	words := flag.String("words", "", "comma-separated query words, used when -data is empty")
	flag.Parse()

	queries, err := queryWords(*dataDir, *perLetter, *words)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading query words: %v\n", err)
		os.Exit(1)
	}
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "no query words: pass -data or -words")
		os.Exit(2)
	}

	fmt.Println("=== Lookup Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Words:       %d\n\n", len(queries))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	stats := runLoad(ctx, *baseURL, *concurrency, queries)

	if !report(stats, *duration) {
		os.Exit(1)
	}
}

// queryWords picks lookup words from the heads of the partitions in dir, or
// from the explicit list.
func queryWords(dir string, perLetter int, list string) ([]string, error) {
	if dir == "" {
		var out []string
		for _, w := range strings.Split(list, ",") {
			if w = strings.TrimSpace(w); w != "" {
				out = append(out, w)
			}
		}
		return out, nil
	}
	letters, err := partition.List(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range letters {
		p, err := partition.Open(dir, l)
		if err != nil {
			return nil, err
		}
		entries := p.Entries()
		for i := 0; i < len(entries) && i < perLetter; i++ {
			out = append(out, entries[i].Word)
		}
	}
	return out, nil
}

func runLoad(ctx context.Context, baseURL string, concurrency int, queries []string) *lookupStats {
	stats := &lookupStats{latencies: make([]time.Duration, 0, 100000)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				word := queries[i%len(queries)]
				target := baseURL + "/api/v1/lookup?word=" + url.QueryEscape(word)
				start := time.Now()
				status, cached, err := lookupOnce(ctx, client, target)
				if ctx.Err() != nil {
					return nil
				}
				stats.record(time.Since(start), status, cached, err)
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

func lookupOnce(ctx context.Context, client *http.Client, target string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	var body struct {
		Cached bool `json:"cached"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, false, err
		}
	}
	return resp.StatusCode, body.Cached, nil
}

// report prints the summary and reports whether any request completed.
func report(stats *lookupStats, duration time.Duration) bool {
	total := stats.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Requests:     %d\n", total)
	fmt.Printf("Found:        %d\n", stats.found.Load())
	fmt.Printf("Not found:    %d\n", stats.notFound.Load())
	fmt.Printf("Failed:       %d\n", stats.failed.Load())
	if total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the lookup service running?")
		return false
	}
	fmt.Printf("Cache hits:   %.1f%%\n", float64(stats.cached.Load())/float64(max(stats.found.Load(), 1))*100)
	fmt.Printf("Requests/sec: %.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.mu.Unlock()
	if len(latencies) == 0 {
		return true
	}
	slices.Sort(latencies)
	fmt.Println("\n=== Latency ===")
	for _, p := range []float64{50, 90, 99} {
		fmt.Printf("P%-3.0f %s\n", p, percentile(latencies, p))
	}
	fmt.Printf("Max  %s\n", latencies[len(latencies)-1])
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
