package internaldefs

import "github.com/redseamarket/adminkit"

// Family is one labeled counter family. Each member is a counter exported as
// name{label="value"}. A family with an empty Label has exactly one member.
type Family struct {
	Name    string
	Help    string
	Label   string
	Members []Member
}

// Member binds one counter to its label value.
type Member struct {
	ID    adminkit.MetricID
	Value string
}

// Families groups every counter by what the operator asks of it: how API
// calls ended, what happened to the session, and what the persistor did.
var Families = []Family{
	{
		Name:  "rsm_admin_requests_total",
		Help:  "API responses by outcome.",
		Label: "outcome",
		Members: []Member{
			{ID: adminkit.MetricRequestSuccess, Value: "success"},
			{ID: adminkit.MetricUnauthorizedResponse, Value: "unauthorized"},
			{ID: adminkit.MetricForbiddenResponse, Value: "forbidden"},
			{ID: adminkit.MetricClientErrorResponse, Value: "client_error"},
			{ID: adminkit.MetricServerErrorResponse, Value: "server_error"},
			{ID: adminkit.MetricNetworkError, Value: "network_error"},
		},
	},
	{
		Name:  "rsm_admin_auth_actions_total",
		Help:  "Operator login and logout attempts.",
		Label: "action",
		Members: []Member{
			{ID: adminkit.MetricLoginSuccess, Value: "login_success"},
			{ID: adminkit.MetricLoginFailure, Value: "login_failure"},
			{ID: adminkit.MetricLogout, Value: "logout"},
		},
	},
	{
		Name:    "rsm_admin_session_invalidations_total",
		Help:    "Completed session invalidations.",
		Members: []Member{{ID: adminkit.MetricSessionInvalidated}},
	},
	{
		Name:    "rsm_admin_session_hard_redirects_total",
		Help:    "Invalidations that fell back to a hard redirect.",
		Members: []Member{{ID: adminkit.MetricInvalidationHardRedirect}},
	},
	{
		Name:  "rsm_admin_reconcile_actions_total",
		Help:  "Corrections made when session and stored token disagreed.",
		Label: "action",
		Members: []Member{
			{ID: adminkit.MetricReconcileStaleSession, Value: "stale_session"},
			{ID: adminkit.MetricReconcileMissingUser, Value: "missing_user"},
			{ID: adminkit.MetricReconcileOrphanToken, Value: "orphan_token"},
		},
	},
	{
		Name:  "rsm_admin_persist_operations_total",
		Help:  "Persisted state operations by outcome.",
		Label: "outcome",
		Members: []Member{
			{ID: adminkit.MetricPersistWrite, Value: "written"},
			{ID: adminkit.MetricPersistWriteFailure, Value: "write_failed"},
			{ID: adminkit.MetricPersistDiscarded, Value: "discarded"},
			{ID: adminkit.MetricPersistPurge, Value: "purged"},
		},
	},
	{
		Name:    "rsm_admin_route_redirects_total",
		Help:    "Route guard redirects.",
		Members: []Member{{ID: adminkit.MetricRouteRedirect}},
	},
}
