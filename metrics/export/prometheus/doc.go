// Package prometheus renders adminkit counters in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] wraps a [adminkit.Client] and exposes an
// [http.Handler]. Counters are grouped into labeled families such as
// rsm_admin_requests_total{outcome="unauthorized"} and
// rsm_admin_reconcile_actions_total{action="stale_session"}. The request
// latency histogram, rsm_admin_request_latency_seconds, is written only when
// latency recording is enabled. Nothing is registered globally; callers mount
// the handler.
package prometheus
