package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/output"
	"github.com/redseamarket/adminkit/metrics/export/internaldefs"
	"github.com/redseamarket/adminkit/metrics/export/prometheus"
	"github.com/redseamarket/adminkit/route"
)

func (a *app) metricsCommand() *cobra.Command {
	var (
		format string
		probe  bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print session counters for this invocation",
		Long: `Print the counters collected while starting the session. With --probe the
current user is fetched first, exercising the request path.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				if probe && c.Session().IsAuthenticated {
					if _, err := c.Me(cmd.Context()); err != nil {
						a.printer.Warning("probe failed: %v", err)
					}
				}
				switch format {
				case "prometheus":
					_, err := fmt.Fprint(a.stdout, prometheus.NewPrometheusExporter(c).Render())
					return err
				case "table":
					return renderMetrics(a.printer, c.MetricsSnapshot(), c.EventsDropped())
				default:
					return fmt.Errorf("invalid --format %q (must be table or prometheus)", format)
				}
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or prometheus")
	cmd.Flags().BoolVar(&probe, "probe", false, "fetch the current user before printing")
	return cmd
}

func renderMetrics(p *output.Printer, snap adminkit.MetricsSnapshot, dropped uint64) error {
	tbl := output.NewTable(p.Out(), "Metric", "Value")
	for _, def := range internaldefs.CounterDefs {
		tbl.AddRow(def.Name, strconv.FormatUint(snap.Counters[def.ID], 10))
	}
	tbl.AddRow(internaldefs.EventsDroppedName, strconv.FormatUint(dropped, 10))
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		tbl.AddRow(def.Name+"_count", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	}
	return tbl.Render()
}

func (a *app) watchCommand() *cobra.Command {
	var (
		interval time.Duration
		addr     string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and serve Prometheus metrics",
		Long: `Fetch the current user every --interval and serve /metrics on --addr until
interrupted or the session ends.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.withClient(ctx, func(c *adminkit.Client, _ *route.History) error {
				if !c.Session().IsAuthenticated {
					return adminkit.ErrNotAuthenticated
				}

				mux := http.NewServeMux()
				mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(c).Handler())
				srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server stopped", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.printer.Info("serving metrics on http://%s/metrics", ln.Addr())

				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					if _, err := c.Me(ctx); err != nil {
						a.logger.Warn("session probe failed", "error", err)
					}
					if !c.Session().IsAuthenticated {
						return errors.New("session ended")
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "probe interval")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9464", "metrics listen address")
	return cmd
}
