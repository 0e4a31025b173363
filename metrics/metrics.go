package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ContentIngestedTotal tracks the total number of content items ingested.
var ContentIngestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_content_ingested_total",
		Help: "Total number of content items ingested",
	},
	[]string{"namespace"},
)

// GraphInvocationsTotal tracks the total number of graph invocations.
var GraphInvocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_graph_invocations_total",
		Help: "Total graph invocations",
	},
	[]string{"namespace", "graph"},
)

// TasksCreatedTotal tracks the total number of tasks created.
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_tasks_created_total",
		Help: "Total tasks created",
	},
	[]string{"namespace", "graph", "compute_fn"},
)

// TasksCompletedTotal tracks the total number of tasks completed, by outcome.
var TasksCompletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_tasks_completed_total",
		Help: "Total tasks completed",
	},
	[]string{"namespace", "graph", "compute_fn", "outcome"},
)

// ExecutorsRegisteredTotal tracks the total number of executors registered.
var ExecutorsRegisteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_executors_registered_total",
		Help: "Total executors registered",
	},
	[]string{},
)

// ExecutorsLostTotal tracks the total number of executors marked lost.
var ExecutorsLostTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_executors_lost_total",
		Help: "Total executors marked lost by the heartbeat sweep",
	},
	[]string{},
)

// TasksReclaimedTotal tracks the total number of tasks returned to the
// unassigned pool by executor removal.
var TasksReclaimedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_tasks_reclaimed_total",
		Help: "Total tasks reclaimed to the unassigned pool on executor removal",
	},
	[]string{},
)

// ActiveExecutors tracks the current number of active executors.
var ActiveExecutors = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "coordinator_active_executors",
		Help: "Current number of active executors",
	},
)

// UnassignedTasks tracks the current number of unassigned tasks per
// namespace.
var UnassignedTasks = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "coordinator_unassigned_tasks",
		Help: "Current number of unassigned tasks",
	},
	[]string{"namespace"},
)

// ExecutorState tracks executor state (value 1 for current state, 0
// otherwise).
var ExecutorState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "coordinator_executor_state",
		Help: "Executor state (1 for current state, 0 otherwise)",
	},
	[]string{"executor_id", "state"},
)

// SchedulerTickDuration tracks time spent in one drain-and-allocate tick.
var SchedulerTickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "coordinator_scheduler_tick_duration_seconds",
		Help:    "Time spent in one scheduler drain-and-allocate tick",
		Buckets: prometheus.DefBuckets,
	},
)

// TaskAllocationDuration tracks time spent computing an allocation plan.
var TaskAllocationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "coordinator_task_allocation_duration_seconds",
		Help:    "Time spent computing a task allocation plan",
		Buckets: prometheus.DefBuckets,
	},
)

// HeartbeatLatency tracks executor heartbeat round-trip latency as
// observed by the gateway.
var HeartbeatLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "coordinator_heartbeat_latency_seconds",
		Help:    "Executor heartbeat round-trip latency",
		Buckets: prometheus.DefBuckets,
	},
)

// ChangeLogLag tracks how many state changes the Scheduler is currently
// behind the log's tail.
var ChangeLogLag = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "coordinator_change_log_lag",
		Help: "Number of state changes behind the log tail the scheduler cursor currently sits",
	},
)
