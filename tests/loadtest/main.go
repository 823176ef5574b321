package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

const (
	baseURL         = "http://127.0.0.1:8095"
	numWorkers      = 50
	testDuration    = 10 * time.Second
	numThreads      = 200
	commentsPerPage = 300
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

func main() {
	fmt.Println("=== Threadmark Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Threads: %d | Comments per thread: %d\n\n", numThreads, commentsPerPage)

	// Wait for server
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

	// Phase 1: Save every thread
	fmt.Println("\n--- Phase 1: Saving threads (POST /thread/save) ---")
	for i := 0; i < numThreads; i++ {
		r := doSave(i)
		if r.err {
			fmt.Printf("FAILED: save returned %d\n", r.status)
			return
		}
	}
	fmt.Printf("  %d threads saved\n", numThreads)

	// Phase 2: Reading traffic
	fmt.Println("\n--- Phase 2: Reading (60% mark-seen, 20% continue, 20% stats) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.60:
			return doMarkSeen(rng)
		case r < 0.80:
			return doThreadCommand(rng, "/thread/continue")
		default:
			return doThreadCommand(rng, "/thread/stats")
		}
	})

	// Phase 3: Tracker sessions
	fmt.Println("\n--- Phase 3: Sessions (open, observe, close) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doSession(rng)
	})

	// Phase 4: List-heavy load
	fmt.Println("\n--- Phase 4: List-heavy load (10% mark-seen, 90% GET /threads) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.10 {
			return doMarkSeen(rng)
		}
		return doGet("/threads")
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

func threadID(n int) string {
	return fmt.Sprintf("lt_%d", n)
}

func comments() []string {
	out := make([]string, commentsPerPage)
	for i := range out {
		out[i] = fmt.Sprintf("c_%d", 1000+i)
	}
	return out
}

var rendered = comments()

func post(endpoint string, body any) result {
	data, _ := json.Marshal(body)
	start := time.Now()
	resp, err := httpClient.Post(baseURL+endpoint, "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{"POST " + endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST " + endpoint, resp.StatusCode, lat, resp.StatusCode != 200}
}

func doGet(endpoint string) result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + endpoint)
	lat := time.Since(start)
	if err != nil {
		return result{"GET " + endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET " + endpoint, resp.StatusCode, lat, resp.StatusCode != 200}
}

func doSave(n int) result {
	return post("/thread/save", map[string]interface{}{
		"id":      threadID(n),
		"title":   fmt.Sprintf("Load test thread %d", n),
		"url":     fmt.Sprintf("https://news.example/item?id=%d", n),
		"addedAt": time.Now().UnixMilli(),
	})
}

func doMarkSeen(rng *rand.Rand) result {
	return post("/thread/mark-seen", map[string]interface{}{
		"id":        threadID(rng.Intn(numThreads)),
		"comments":  rendered,
		"commentId": rendered[rng.Intn(len(rendered))],
	})
}

func doThreadCommand(rng *rand.Rand, endpoint string) result {
	return post(endpoint, map[string]interface{}{
		"id":       threadID(rng.Intn(numThreads)),
		"comments": rendered,
	})
}

// doSession reports the observe latency; open and close are part of the cycle.
func doSession(rng *rand.Rand) result {
	data, _ := json.Marshal(map[string]interface{}{
		"threadId": threadID(rng.Intn(numThreads)),
		"comments": rendered,
	})
	resp, err := httpClient.Post(baseURL+"/session/open", "application/json", bytes.NewReader(data))
	if err != nil {
		return result{"POST /session/open", 0, 0, true}
	}
	var opened struct {
		SessionID string `json:"sessionId"`
	}
	err = json.NewDecoder(resp.Body).Decode(&opened)
	resp.Body.Close()
	if err != nil || opened.SessionID == "" {
		return result{"POST /session/open", resp.StatusCode, 0, true}
	}

	events := make([]map[string]interface{}, 20)
	first := rng.Intn(len(rendered) - len(events))
	for i := range events {
		events[i] = map[string]interface{}{"commentId": rendered[first+i], "visible": true}
	}
	r := post("/session/observe", map[string]interface{}{"sessionId": opened.SessionID, "events": events})
	post("/session/close", map[string]interface{}{"sessionId": opened.SessionID})
	return r
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
		return fmt.Sprintf("%dÂµs", d.Microseconds())
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
