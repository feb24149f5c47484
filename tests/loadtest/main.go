package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"tgmed/internal/telegram"
	"time"

	"github.com/goccy/go-json"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numUsers     = 500
	numAnalyses  = 20
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

// initData holds one signed token per simulated user.
var initData []string

func main() {
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		fmt.Println("BOT_TOKEN must match the server's telegram.botToken")
		return
	}
	callbackSecret := os.Getenv("TGMED_CALLBACK_SECRET")

	initData = make([]string, numUsers)
	for i := range initData {
		user, _ := json.Marshal(map[string]any{"id": 100000 + i, "first_name": "load"})
		initData[i] = telegram.Sign(url.Values{
			"user":      {string(user)},
			"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
		}, botToken)
	}

	fmt.Println("=== tgmed Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Users: %d\n\n", numWorkers, testDuration, numUsers)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Profile writes (POST /api/me) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doUpdateProfile(rng)
	})

	if callbackSecret != "" {
		fmt.Println("\n--- Phase 2: Pipeline reports (POST /webhook/analysis-result) ---")
		runPhase(testDuration, func(rng *rand.Rand) result {
			return doAnalysisResult(rng, callbackSecret)
		})
	} else {
		fmt.Println("\nTGMED_CALLBACK_SECRET not set, skipping pipeline phase")
	}

	fmt.Println("\n--- Phase 3: Read-heavy load (10% POST, 90% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doUpdateProfile(rng)
		case r < 0.60:
			return doGetMe(rng)
		case r < 0.80:
			return doGetHistory(rng)
		default:
			return doGetRecommendation(rng)
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func send(req *http.Request, endpoint string, want int) result {
	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != want}
}

func userRequest(rng *rand.Rand, method, path string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, baseURL+path, reader)
	req.Header.Set(telegram.HeaderName, initData[rng.Intn(len(initData))])
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func doUpdateProfile(rng *rand.Rand) result {
	body := map[string]any{
		"profile": map[string]any{
			"age":    rng.Intn(60) + 18,
			"weight": rng.Intn(60) + 50,
			"goal":   []string{"energy", "sleep", "weight"}[rng.Intn(3)],
		},
	}
	return send(userRequest(rng, http.MethodPost, "/api/me", body), "POST /api/me", http.StatusOK)
}

func doGetMe(rng *rand.Rand) result {
	return send(userRequest(rng, http.MethodGet, "/api/me", nil), "GET /api/me", http.StatusOK)
}

func doGetHistory(rng *rand.Rand) result {
	return send(userRequest(rng, http.MethodGet, "/api/analyses/history", nil), "GET /api/analyses/history", http.StatusOK)
}

func doGetRecommendation(rng *rand.Rand) result {
	path := fmt.Sprintf("/api/recommendations/a%d", rng.Intn(numAnalyses))
	return send(userRequest(rng, http.MethodGet, path, nil), "GET /api/recommendations", http.StatusOK)
}

func doAnalysisResult(rng *rand.Rand, secret string) result {
	data, _ := json.Marshal(map[string]any{
		"tgid":     strconv.Itoa(100000 + rng.Intn(numUsers)),
		"text":     fmt.Sprintf("report %d", rng.Intn(numAnalyses)),
		"fileName": fmt.Sprintf("blood_%d.pdf", rng.Intn(numAnalyses)),
	})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/webhook/analysis-result", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", secret)
	return send(req, "POST /webhook/analysis-result", http.StatusOK)
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
