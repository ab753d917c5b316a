// Command rsm-stress fires concurrent catalogue requests at an expired
// session and checks that the client tears the session down exactly once
// per round.
//
// It runs the mock marketplace API on a loopback listener, backed by
// miniredis unless -redis-addr or REDIS_ADDR points at a real server.
//
// Run:
//
//	go run ./cmd/rsm-stress -rounds 20 -concurrency 64
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/api"
	"github.com/redseamarket/adminkit/internal/mockapi"
	"github.com/redseamarket/adminkit/invalidate"
	otelexport "github.com/redseamarket/adminkit/metrics/export/otel"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/storage"
)

func main() {
	var (
		rounds      = flag.Int("rounds", 20, "expire-and-burst rounds")
		concurrency = flag.Int("concurrency", 64, "concurrent requests per round")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rsm-stress", "storage key prefix")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *rounds <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "rounds and concurrency must be > 0")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), logger, *redisAddr, *prefix, *rounds, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "rsm-stress: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr, prefix string, rounds, concurrency int) error {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	backend, err := mockapi.NewDemo(mockapi.Options{
		Redis:     rdb,
		KeyPrefix: prefix + ":api",
		Logger:    logger.With("component", "mockapi"),
	})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	cfg := adminkit.DefaultConfig()
	cfg.API.BaseURL = "http://" + ln.Addr().String() + "/api"
	cfg.Events.Enabled = false

	history := route.NewHistory(cfg.Routes.Landing)
	client, err := adminkit.New().
		WithConfig(cfg).
		WithStorage(storage.NewRedis(rdb, prefix)).
		WithLogger(logger).
		WithNavigator(history).
		Build()
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)
	exporter, err := otelexport.NewOTelExporter(provider.Meter("rsm-stress"), client)
	if err != nil {
		return err
	}
	defer exporter.Close()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var (
		latencies    []time.Duration
		failures     int
		unauthorized int
		anomalies    []string
	)
	start := time.Now()
	for r := 1; r <= rounds; r++ {
		res, err := runRound(ctx, client, backend, history, concurrency)
		if err != nil {
			return fmt.Errorf("round %d: %w", r, err)
		}
		latencies = append(latencies, res.latencies...)
		failures += res.failures
		unauthorized += res.unauthorized
		if res.problem != "" {
			anomalies = append(anomalies, fmt.Sprintf("round %d: %s", r, res.problem))
		}
	}
	total := time.Since(start)

	fmt.Println("---- results ----")
	printStats("burst", computeStats(total, latencies, int64(unauthorized)))
	if failures > 0 {
		fmt.Printf("non-auth failures=%d\n", failures)
	}
	fmt.Printf("rounds=%d backend_requests=%d backend_unauthorized=%d hard_redirects=%d\n",
		rounds, backend.Requests(), backend.Unauthorized(), history.HardRedirects())

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	printMetrics(rm)

	if len(anomalies) > 0 {
		for _, a := range anomalies {
			fmt.Fprintln(os.Stderr, a)
		}
		return fmt.Errorf("%d of %d rounds misbehaved", len(anomalies), rounds)
	}
	fmt.Println("every round invalidated the session exactly once")
	return nil
}

type roundResult struct {
	latencies    []time.Duration
	unauthorized int
	failures     int
	problem      string
}

// runRound signs in, revokes every token server side and fires a burst of
// list calls that all come back unauthorized.
func runRound(ctx context.Context, client *adminkit.Client, backend *mockapi.Server, history *route.History, concurrency int) (roundResult, error) {
	var res roundResult
	if _, err := client.Login(ctx, adminkit.Credentials{Email: mockapi.DemoEmail, Password: mockapi.DemoPassword}); err != nil {
		return res, fmt.Errorf("login: %w", err)
	}
	if _, err := client.Navigate("/products"); err != nil {
		return res, err
	}
	if err := backend.ExpireAll(); err != nil {
		return res, fmt.Errorf("expire: %w", err)
	}
	client.State().ClearNotifications()
	before := client.MetricsSnapshot()
	hardBefore := history.HardRedirects()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			t0 := time.Now()
			_, _, err := client.ListProducts(gctx, 1, "")
			d := time.Since(t0)
			mu.Lock()
			defer mu.Unlock()
			res.latencies = append(res.latencies, d)
			switch {
			case err == nil:
			case errors.Is(err, api.ErrUnauthorized):
				res.unauthorized++
			case errors.Is(err, context.Canceled):
				return err
			default:
				res.failures++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	after := client.MetricsSnapshot()
	invalidations := after.Counters[adminkit.MetricSessionInvalidated] - before.Counters[adminkit.MetricSessionInvalidated]
	notices := 0
	for _, n := range client.State().UI().Notifications {
		if n.Title == invalidate.SessionExpiredTitle {
			notices++
		}
	}
	switch {
	case invalidations != 1:
		res.problem = fmt.Sprintf("%d invalidations", invalidations)
	case notices != 1:
		res.problem = fmt.Sprintf("%d expiry notifications", notices)
	case history.HardRedirects() != hardBefore:
		res.problem = "fell back to a hard redirect"
	case history.Current() != client.Config().Routes.SignIn:
		res.problem = "ended at " + history.Current()
	case client.Session().IsAuthenticated:
		res.problem = "session still authenticated"
	}
	return res, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
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

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d unauthorized=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printMetrics(rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var v int64
				for _, dp := range data.DataPoints {
					v += dp.Value
				}
				if v > 0 {
					fmt.Printf("  %s %d\n", m.Name, v)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if dp.Value > 0 {
						fmt.Printf("  %s %d\n", m.Name, dp.Value)
					}
				}
			}
		}
	}
}
