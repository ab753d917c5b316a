package internaldefs

import (
	"github.com/redseamarket/adminkit"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   adminkit.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   adminkit.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for lifecycle events lost to backpressure.
const EventsDroppedName = "rsm_admin_events_dropped_total"

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: adminkit.MetricLoginSuccess, Name: "rsm_admin_login_success_total", Help: "Accepted logins."},
	{ID: adminkit.MetricLoginFailure, Name: "rsm_admin_login_failure_total", Help: "Rejected or failed logins."},
	{ID: adminkit.MetricLogout, Name: "rsm_admin_logout_total", Help: "Operator logouts."},
	{ID: adminkit.MetricRequestSuccess, Name: "rsm_admin_request_success_total", Help: "Successful API responses."},
	{ID: adminkit.MetricUnauthorizedResponse, Name: "rsm_admin_unauthorized_response_total", Help: "Responses classified as unauthorized."},
	{ID: adminkit.MetricForbiddenResponse, Name: "rsm_admin_forbidden_response_total", Help: "403 responses."},
	{ID: adminkit.MetricServerErrorResponse, Name: "rsm_admin_server_error_response_total", Help: "5xx responses."},
	{ID: adminkit.MetricClientErrorResponse, Name: "rsm_admin_client_error_response_total", Help: "Other 4xx responses."},
	{ID: adminkit.MetricNetworkError, Name: "rsm_admin_network_error_total", Help: "Requests that got no response."},
	{ID: adminkit.MetricSessionInvalidated, Name: "rsm_admin_session_invalidated_total", Help: "Completed session invalidations."},
	{ID: adminkit.MetricInvalidationHardRedirect, Name: "rsm_admin_invalidation_hard_redirect_total", Help: "Invalidations that fell back to a hard redirect."},
	{ID: adminkit.MetricReconcileStaleSession, Name: "rsm_admin_reconcile_stale_session_total", Help: "Sessions logged out because no token was stored."},
	{ID: adminkit.MetricReconcileMissingUser, Name: "rsm_admin_reconcile_missing_user_total", Help: "Sessions logged out because no user was present."},
	{ID: adminkit.MetricReconcileOrphanToken, Name: "rsm_admin_reconcile_orphan_token_total", Help: "Stored tokens cleared without a session."},
	{ID: adminkit.MetricPersistWrite, Name: "rsm_admin_persist_write_total", Help: "Persisted slice writes."},
	{ID: adminkit.MetricPersistWriteFailure, Name: "rsm_admin_persist_write_failure_total", Help: "Failed persisted slice writes."},
	{ID: adminkit.MetricPersistDiscarded, Name: "rsm_admin_persist_discarded_total", Help: "Stored blobs discarded on load."},
	{ID: adminkit.MetricPersistPurge, Name: "rsm_admin_persist_purge_total", Help: "Persisted state purges."},
	{ID: adminkit.MetricRouteRedirect, Name: "rsm_admin_route_redirect_total", Help: "Route guard redirects."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: adminkit.MetricRequestLatency, Name: "rsm_admin_request_latency_seconds", Help: "API request latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
