package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads on every scrape.
type MetricsSource interface {
	MetricsSnapshot() adminkit.MetricsSnapshot
	EventsDropped() uint64
}

// PrometheusExporter renders adminkit metrics in Prometheus text format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from client.
func NewPrometheusExporter(client *adminkit.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource creates an exporter from a custom source.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the current metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when metrics are disabled.
//
// Counters are written as labeled families: request outcomes, auth actions,
// session invalidations, reconcile actions, persist outcomes and route
// redirects. The request latency histogram and the dropped-event counter
// follow.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.EventsDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w exposition
	w.b.Grow(2048)
	for _, fam := range internaldefs.Families {
		w.header(fam.Name, fam.Help, "counter")
		for _, m := range fam.Members {
			w.sample(fam.Name, fam.Label, m.Value, snapshot.Counters[m.ID])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
	}

	w.header(internaldefs.EventsDroppedName, "Lifecycle events dropped due to dispatcher backpressure.", "counter")
	w.sample(internaldefs.EventsDroppedName, "", "", dropped)
	return w.b.String()
}

type exposition struct {
	b strings.Builder
}

func (w *exposition) header(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line; an empty label writes the bare name.
func (w *exposition) sample(name, label, value string, v uint64) {
	w.b.WriteString(name)
	if label != "" {
		w.b.WriteString("{" + label + "=\"" + value + "\"}")
	}
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

func (w *exposition) histogram(name, help string, cumulative [8]uint64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", "le", le, cumulative[i])
	}
	w.sample(name+"_count", "", "", cumulative[len(cumulative)-1])
	// Snapshots carry no sum.
	w.b.WriteString(name + "_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
