package adminkit

import (
	"testing"
	"time"

	"github.com/redseamarket/adminkit/api"
)

// dashboardTraffic approximates one dashboard refresh: mostly successful
// reads, an occasional validation error, and a session that expires midway.
var dashboardTraffic = [...]api.Result{
	{Kind: api.KindUnknown, Status: 200, Elapsed: 4 * time.Millisecond},
	{Kind: api.KindUnknown, Status: 200, Elapsed: 9 * time.Millisecond},
	{Kind: api.KindUnknown, Status: 200, Elapsed: 22 * time.Millisecond},
	{Kind: api.KindClient, Status: 422, Elapsed: 7 * time.Millisecond},
	{Kind: api.KindUnknown, Status: 200, Elapsed: 60 * time.Millisecond},
	{Kind: api.KindUnauthorized, Status: 401, Elapsed: 3 * time.Millisecond},
	{Kind: api.KindServer, Status: 502, Elapsed: 300 * time.Millisecond},
	{Kind: api.KindNetwork, Elapsed: time.Second},
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRequestSuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRequestSuccess)
	}
}

func BenchmarkRequestResult(b *testing.B) {
	c := &Client{metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		c.onAPIResult(dashboardTraffic[i%len(dashboardTraffic)])
	}
}

func BenchmarkRequestResultParallel(b *testing.B) {
	c := &Client{metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.onAPIResult(dashboardTraffic[i%len(dashboardTraffic)])
			i++
		}
	})
}

func BenchmarkRequestResultLatencyDisabled(b *testing.B) {
	c := &Client{metrics: NewMetrics(MetricsConfig{Enabled: true})}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		c.onAPIResult(dashboardTraffic[i%len(dashboardTraffic)])
	}
}

func BenchmarkMetricsSnapshotUnderTraffic(b *testing.B) {
	c := &Client{metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})}
	for _, r := range dashboardTraffic {
		c.onAPIResult(r)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				c.onAPIResult(dashboardTraffic[i%len(dashboardTraffic)])
			}
		}
	}()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = c.metrics.Snapshot()
	}
	b.StopTimer()
	close(stop)
	<-done
}
