// Package metrics defines and registers the custom Prometheus metrics of the
// user-management API. It is the single source of truth for metric names,
// labels and help strings.
//
// Metrics register with the default registry on package init via promauto,
// so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "user_management"

// ── User metrics ──────────────────────────────────────────────────────────────

// UsersCreatedTotal counts successful registrations.
// Labels:
//   - tenant: the tenant the user was created in (e.g. "general")
//   - role: the role assigned at creation
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of users created, by tenant and role.",
	},
	[]string{"tenant", "role"},
)

// UserMutationsTotal counts privileged and self-service mutations.
// Labels:
//   - tenant
//   - operation: "update_self", "delete_user" or "change_role"
//   - outcome: "ok", "denied" or "error"
var UserMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_mutations_total",
		Help:      "Total number of user mutations, by operation and outcome.",
	},
	[]string{"tenant", "operation", "outcome"},
)

// PolicyDecisionsTotal counts authorization decisions that gated a mutation.
// Labels:
//   - operation: the policy operation evaluated
//   - allowed: "true" or "false"
var PolicyDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policy_decisions_total",
		Help:      "Total number of policy decisions, by operation and result.",
	},
	[]string{"operation", "allowed"},
)

// PermissionChecksTotal counts dry-run evaluations served by the permissions
// endpoint. They never gate a mutation, so they stay out of PolicyDecisionsTotal.
// Labels:
//   - operation: the policy operation evaluated
//   - allowed: "true" or "false"
var PermissionChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_checks_total",
		Help:      "Total number of dry-run permission checks, by operation and result.",
	},
	[]string{"operation", "allowed"},
)

// AuthFailuresTotal counts rejected bearer credentials.
// Label:
//   - reason: "missing", "invalid_token", "wrong_tenant", "unknown_subject" or "inactive"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of rejected authentication attempts.",
	},
	[]string{"reason"},
)

// ── Audit pipeline metrics ────────────────────────────────────────────────────

// AuditEventsProcessedTotal counts audit events taken off the queue.
// Label:
//   - result: "stored" or "error"
var AuditEventsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_processed_total",
		Help:      "Total number of audit events processed by the dispatcher.",
	},
	[]string{"result"},
)

// AuditEventsDroppedTotal counts events discarded because a worker queue was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped on a full queue.",
	},
)

// AuditRetriesTotal counts redelivery steps of events that failed to persist.
// Label:
//   - result: "retried" (in-worker attempt), "parked" (set aside in Redis),
//     "replayed" (taken back into the queue), "dropped" (given up) or
//     "discarded" (undecodable parked entry)
var AuditRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_retries_total",
		Help:      "Total number of audit redelivery steps, labelled by result.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditProcessingDuration measures how long a single event takes from dequeue
// to persistence.
var AuditProcessingDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_processing_duration_seconds",
		Help:      "Duration of audit event processing from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
)
