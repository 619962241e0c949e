// Command loadtest drives concurrent search traffic at a searcher or the
// gateway and reports throughput, latency percentiles, cache hit rate and
// status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8082 -key dp_... -concurrency 20 -duration 1m
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// scenario is one request shape in the rotation.
type scenario struct {
	name  string
	build func(ctx context.Context, base string) (*http.Request, error)
}

func getSearch(name string, params url.Values) scenario {
	return scenario{name: name, build: func(ctx context.Context, base string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/search?"+params.Encode(), nil)
	}}
}

func postSearch(name string, body map[string]any) scenario {
	payload, _ := json.Marshal(body)
	return scenario{name: name, build: func(ctx context.Context, base string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/search", bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, err
	}}
}

var scenarios = []scenario{
	getSearch("text", url.Values{"q": {"runbook"}, "limit": {"10"}}),
	getSearch("text-multi", url.Values{"q": {"payment api"}, "limit": {"10"}}),
	getSearch("team-filter", url.Values{"filter": {"team:equals:platform"}, "sort": {"overallScore"}}),
	getSearch("criticality-range", url.Values{"filter": {"criticality:range:4..5"}, "limit": {"25"}}),
	getSearch("high-risk", url.Values{"filter": {"status:equals:high_risk"}, "sort": {"overallScore"}, "order": {"desc"}}),
	getSearch("unowned", url.Values{"filter": {"owner:exists:false"}}),
	postSearch("post-in", map[string]any{
		"filters": []map[string]any{{"field": "docType", "operator": "in", "value": []string{"Runbook", "Playbook"}}},
		"limit":   20,
	}),
	postSearch("post-text-sort", map[string]any{"text": "onboarding", "sortBy": "lastUpdated", "sortOrder": "asc"}),
}

type stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
	perName   map[string]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
		perName:   make(map[string]int64),
	}
}

func (s *stats) record(name string, d time.Duration, resp *http.Response, err error) {
	s.total.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.success.Add(1)
	} else {
		s.failures.Add(1)
	}
	if resp.Header.Get("X-Cache") == "hit" {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[resp.StatusCode]++
	s.perName[name]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the searcher or gateway")
	apiKey := flag.String("key", os.Getenv("DOCPULSE_API_KEY"), "API key sent as a bearer token")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	fmt.Println("=== DocPulse Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Scenarios:   %d\n", len(scenarios))
	fmt.Println()

	s, err := run(*baseURL, *apiKey, *concurrency, *duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	if !report(s, *duration) {
		os.Exit(1)
	}
}

func run(base, key string, concurrency int, duration time.Duration) (*stats, error) {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				sc := scenarios[i%len(scenarios)]
				req, err := sc.build(ctx, base)
				if err != nil {
					return fmt.Errorf("building %s request: %w", sc.name, err)
				}
				if key != "" {
					req.Header.Set("Authorization", "Bearer "+key)
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if errors.Is(ctx.Err(), context.DeadlineExceeded) {
						return nil
					}
					s.record(sc.name, elapsed, nil, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(sc.name, elapsed, resp, nil)
			}
			return nil
		})
	}

	fmt.Print("Running")
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	for {
		select {
		case <-progress.C:
			fmt.Print(".")
		case err := <-done:
			fmt.Println(" done!")
			fmt.Println()
			return s, err
		}
	}
}

// report prints the results and returns false when nothing succeeded.
func report(s *stats, duration time.Duration) bool {
	total := s.total.Load()
	success := s.success.Load()
	failures := s.failures.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Failed:          %d\n", failures)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(failures)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(success)*100)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) > 0 {
		lat := slices.Clone(s.latencies)
		slices.Sort(lat)

		var sum time.Duration
		for _, l := range lat {
			sum += l
		}
		avg := sum / time.Duration(len(lat))
		var sq float64
		for _, l := range lat {
			diff := float64(l - avg)
			sq += diff * diff
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", lat[0])
		fmt.Printf("Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-5.0f %s\n", p, percentile(lat, p))
		}
		fmt.Printf("Max:    %s\n", lat[len(lat)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(lat)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.codes[code])
	}

	fmt.Println()
	fmt.Println("=== Scenarios ===")
	for _, sc := range scenarios {
		fmt.Printf("  %-18s %d\n", sc.name, s.perName[sc.name])
	}

	if success == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests succeeded. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
