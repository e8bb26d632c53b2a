package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/luxesuite/luxeapi"
	"github.com/luxesuite/luxeapi/session"
	"github.com/redis/go-redis/v9"
)

// backend is a fake Luxe Suite API. Every token it issues is valid until the
// next rotation, so expiring it turns every in-flight call into a 401.
type backend struct {
	mu      sync.RWMutex
	valid   string
	issued  int
	latency time.Duration

	refreshes atomic.Int64
	rejected  atomic.Int64
}

func (b *backend) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/refresh-token", b.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 1, "email": "load@luxe.test"}})
	})).Methods(http.MethodGet)
	r.HandleFunc("/api/subscriptions/{id}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": "active"}})
	})).Methods(http.MethodGet)
	return r
}

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshes.Add(1)
	if b.latency > 0 {
		time.Sleep(b.latency)
	}
	b.mu.Lock()
	b.issued++
	b.valid = "T" + strconv.Itoa(b.issued)
	tok := b.valid
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"access_token": tok})
}

func (b *backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.RLock()
		want := "Bearer " + b.valid
		b.mu.RUnlock()
		if r.Header.Get("Authorization") != want {
			b.rejected.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		next(w, r)
	}
}

// expire invalidates the current token without issuing a new one.
func (b *backend) expire() {
	b.mu.Lock()
	b.valid = "expired-" + strconv.Itoa(b.issued)
	b.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	var (
		concurrency = flag.Int("concurrency", 256, "concurrent callers per storm")
		rounds      = flag.Int("rounds", 5, "number of 401 storms")
		latency     = flag.Duration("refresh-latency", 50*time.Millisecond, "artificial latency of the refresh endpoint")
		cooldown    = flag.Duration("cooldown", time.Second, "refresh cooldown; 0 disables it")
		redisAddr   = flag.String("redis-addr", "", "redis address for the token store; if empty, REDIS_ADDR env or miniredis is used")
		memory      = flag.Bool("memory", false, "use the in-memory token store instead of redis")
		logLevel    = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	if *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	be := &backend{valid: "T1", issued: 1, latency: *latency}
	srv := httptest.NewServer(be.router())
	defer srv.Close()

	store, cleanup, err := openStore(*memory, *redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := luxeapi.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Refresh.Cooldown = *cooldown
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	client, err := luxeapi.New().
		WithConfig(cfg).
		WithTokenStore(store).
		WithHTTPClient(&http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}).
		WithLogger(luxeapi.NewLogger(*logLevel, os.Stderr)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.SignIn(ctx, "T1"); err != nil {
		fmt.Fprintf(os.Stderr, "sign in: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("running %d storms of %d concurrent callers (refresh latency %s, cooldown %s)\n",
		*rounds, *concurrency, *latency, *cooldown)

	all := make([]stormStats, 0, *rounds)
	for round := 1; round <= *rounds; round++ {
		if round > 1 && *cooldown > 0 {
			// A storm inside the cooldown window would be answered with the
			// previous token and fail its retry.
			time.Sleep(*cooldown + 10*time.Millisecond)
		}
		before := be.refreshes.Load()
		be.expire()
		s := runStorm(ctx, client, round, *concurrency)
		s.refreshes = be.refreshes.Load() - before
		all = append(all, s)
		printStats(s)
		if s.terminated > 0 {
			if err := client.SignIn(ctx, currentToken(be)); err != nil {
				fmt.Fprintf(os.Stderr, "re-sign in: %v\n", err)
				os.Exit(1)
			}
		}
	}

	fmt.Println("---- results ----")
	var refreshes, failures int64
	for _, s := range all {
		refreshes += s.refreshes
		failures += s.failures
	}
	fmt.Printf("storms=%d refreshes=%d failures=%d rejected=%d\n", len(all), refreshes, failures, be.rejected.Load())
	snap := client.MetricsSnapshot()
	for _, c := range []struct {
		name string
		id   luxeapi.MetricID
	}{
		{"requests", luxeapi.MetricRequestTotal},
		{"unauthorized", luxeapi.MetricUnauthorized},
		{"retried", luxeapi.MetricRequestRetried},
		{"refresh_started", luxeapi.MetricRefreshStarted},
		{"refresh_joined", luxeapi.MetricRefreshJoined},
		{"refresh_suppressed", luxeapi.MetricRefreshSuppressed},
		{"session_terminated", luxeapi.MetricSessionTerminated},
	} {
		fmt.Printf("  %-20s %d\n", c.name, snap.Counters[c.id])
	}
	// Without a cooldown, callers whose 401 arrives after the flight finished
	// start another refresh, so the count is only exact with one.
	if *cooldown > 0 && refreshes != int64(len(all)) {
		fmt.Fprintf(os.Stderr, "expected exactly one refresh per storm, saw %d\n", refreshes)
		os.Exit(1)
	}
}

func openStore(memory bool, addr string) (session.Store, func(), error) {
	if memory {
		return session.NewMemoryStore(), func() {}, nil
	}
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return session.NewRedisStore(rdb, "luxe-loadtest", "loadtest", 0), func() { _ = rdb.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return session.NewRedisStore(rdb, "luxe-loadtest", "loadtest", 0), func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func currentToken(b *backend) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.valid
}

type stormStats struct {
	round      int
	calls      int
	failures   int64
	terminated int64
	refreshes  int64
	total      time.Duration
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
}

func runStorm(ctx context.Context, client *luxeapi.Client, round, concurrency int) stormStats {
	var (
		wg         sync.WaitGroup
		failures   atomic.Int64
		terminated atomic.Int64
		mu         sync.Mutex
		latencies  = make([]time.Duration, 0, concurrency)
		start      = make(chan struct{})
	)

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-start
			path := "/api/me"
			if worker%2 == 1 {
				path = "/api/subscriptions/" + strconv.Itoa(worker)
			}
			t0 := time.Now()
			err := client.Get(ctx, path, nil)
			d := time.Since(t0)
			if err != nil {
				failures.Add(1)
				if errors.Is(err, luxeapi.ErrSessionTerminated) {
					terminated.Add(1)
				}
			}
			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
		}(w)
	}

	t0 := time.Now()
	close(start)
	wg.Wait()
	total := time.Since(t0)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	return stormStats{
		round:      round,
		calls:      len(latencies),
		failures:   failures.Load(),
		terminated: terminated.Load(),
		total:      total,
		p50:        percentile(latencies, 50),
		p95:        percentile(latencies, 95),
		p99:        percentile(latencies, 99),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(s stormStats) {
	fmt.Printf("storm %d: calls=%d refreshes=%d failures=%d terminated=%d total=%s p50=%s p95=%s p99=%s\n",
		s.round,
		s.calls,
		s.refreshes,
		s.failures,
		s.terminated,
		s.total.Round(time.Millisecond),
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
	if s.failures > 0 {
		fmt.Println("  some calls failed")
	}
}
