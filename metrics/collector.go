package metrics

// Collector provides helper methods that fill in the common label
// combinations for the coordination core's metrics, so call sites don't
// repeat WithLabelValues wiring.
type Collector struct{}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// IncContentIngested increments the content-ingested counter.
func (c *Collector) IncContentIngested(namespace string) {
	ContentIngestedTotal.WithLabelValues(namespace).Inc()
}

// IncGraphInvocations increments the graph-invocations counter.
func (c *Collector) IncGraphInvocations(namespace, graph string) {
	GraphInvocationsTotal.WithLabelValues(namespace, graph).Inc()
}

// IncTasksCreated increments the tasks-created counter by n.
func (c *Collector) IncTasksCreated(namespace, graph, computeFn string, n int) {
	TasksCreatedTotal.WithLabelValues(namespace, graph, computeFn).Add(float64(n))
}

// IncTasksCompleted increments the tasks-completed counter for outcome.
func (c *Collector) IncTasksCompleted(namespace, graph, computeFn, outcome string) {
	TasksCompletedTotal.WithLabelValues(namespace, graph, computeFn, outcome).Inc()
}

// IncExecutorsRegistered increments the executors-registered counter.
func (c *Collector) IncExecutorsRegistered() {
	ExecutorsRegisteredTotal.WithLabelValues().Inc()
}

// IncExecutorsLost increments the executors-lost counter.
func (c *Collector) IncExecutorsLost() {
	ExecutorsLostTotal.WithLabelValues().Inc()
}

// IncTasksReclaimed increments the tasks-reclaimed counter by n.
func (c *Collector) IncTasksReclaimed(n int) {
	TasksReclaimedTotal.WithLabelValues().Add(float64(n))
}

// SetActiveExecutors sets the active executors gauge.
func (c *Collector) SetActiveExecutors(count int) {
	ActiveExecutors.Set(float64(count))
}

// SetUnassignedTasks sets the unassigned tasks gauge for namespace.
func (c *Collector) SetUnassignedTasks(namespace string, count int) {
	UnassignedTasks.WithLabelValues(namespace).Set(float64(count))
}

// executorStates lists every state ExecutorState tracks, so
// SetExecutorState can zero the states the executor is not currently in.
var executorStates = []string{"registering", "active", "lost", "removed"}

// SetExecutorState sets the executor state gauge. Sets value to 1 for
// the given state, 0 for every other tracked state.
func (c *Collector) SetExecutorState(executorID, state string) {
	for _, s := range executorStates {
		if s == state {
			ExecutorState.WithLabelValues(executorID, s).Set(1)
		} else {
			ExecutorState.WithLabelValues(executorID, s).Set(0)
		}
	}
}

// ObserveSchedulerTickDuration records a scheduler tick duration
// observation.
func (c *Collector) ObserveSchedulerTickDuration(seconds float64) {
	SchedulerTickDuration.Observe(seconds)
}

// ObserveTaskAllocationDuration records a task allocation duration
// observation.
func (c *Collector) ObserveTaskAllocationDuration(seconds float64) {
	TaskAllocationDuration.Observe(seconds)
}

// ObserveHeartbeatLatency records a heartbeat latency observation.
func (c *Collector) ObserveHeartbeatLatency(seconds float64) {
	HeartbeatLatency.Observe(seconds)
}

// SetChangeLogLag sets the change-log lag gauge.
func (c *Collector) SetChangeLogLag(lag int) {
	ChangeLogLag.Set(float64(lag))
}
