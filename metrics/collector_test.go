package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	require.NotNil(t, c)
}

func TestCollectorIncContentIngested(t *testing.T) {
	c := NewCollector()
	before := testutil.ToFloat64(ContentIngestedTotal.WithLabelValues("images"))
	c.IncContentIngested("images")
	after := testutil.ToFloat64(ContentIngestedTotal.WithLabelValues("images"))
	assert.Equal(t, before+1, after)
}

func TestCollectorIncTasksCreated(t *testing.T) {
	c := NewCollector()
	before := testutil.ToFloat64(TasksCreatedTotal.WithLabelValues("images", "extract", "ocr"))
	c.IncTasksCreated("images", "extract", "ocr", 3)
	after := testutil.ToFloat64(TasksCreatedTotal.WithLabelValues("images", "extract", "ocr"))
	assert.Equal(t, before+3, after)
}

func TestCollectorIncTasksCompleted(t *testing.T) {
	c := NewCollector()
	before := testutil.ToFloat64(TasksCompletedTotal.WithLabelValues("images", "extract", "ocr", "failed"))
	c.IncTasksCompleted("images", "extract", "ocr", "failed")
	after := testutil.ToFloat64(TasksCompletedTotal.WithLabelValues("images", "extract", "ocr", "failed"))
	assert.Equal(t, before+1, after)
}

func TestCollectorSetExecutorStateZeroesOtherStates(t *testing.T) {
	c := NewCollector()
	c.SetExecutorState("exec-9", "lost")

	assert.Equal(t, float64(1), testutil.ToFloat64(ExecutorState.WithLabelValues("exec-9", "lost")))
	assert.Equal(t, float64(0), testutil.ToFloat64(ExecutorState.WithLabelValues("exec-9", "active")))
	assert.Equal(t, float64(0), testutil.ToFloat64(ExecutorState.WithLabelValues("exec-9", "registering")))
	assert.Equal(t, float64(0), testutil.ToFloat64(ExecutorState.WithLabelValues("exec-9", "removed")))
}

func TestCollectorSetActiveExecutorsAndUnassignedTasks(t *testing.T) {
	c := NewCollector()
	c.SetActiveExecutors(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(ActiveExecutors))

	c.SetUnassignedTasks("images", 4)
	assert.Equal(t, float64(4), testutil.ToFloat64(UnassignedTasks.WithLabelValues("images")))
}

func TestCollectorObserveDurations(t *testing.T) {
	c := NewCollector()
	c.ObserveSchedulerTickDuration(0.2)
	c.ObserveTaskAllocationDuration(0.1)
	c.ObserveHeartbeatLatency(0.05)

	assert.Greater(t, testutil.CollectAndCount(SchedulerTickDuration), 0)
	assert.Greater(t, testutil.CollectAndCount(TaskAllocationDuration), 0)
	assert.Greater(t, testutil.CollectAndCount(HeartbeatLatency), 0)
}

func TestCollectorIncExecutorLifecycleCounters(t *testing.T) {
	c := NewCollector()
	beforeReg := testutil.ToFloat64(ExecutorsRegisteredTotal.WithLabelValues())
	c.IncExecutorsRegistered()
	assert.Equal(t, beforeReg+1, testutil.ToFloat64(ExecutorsRegisteredTotal.WithLabelValues()))

	beforeLost := testutil.ToFloat64(ExecutorsLostTotal.WithLabelValues())
	c.IncExecutorsLost()
	assert.Equal(t, beforeLost+1, testutil.ToFloat64(ExecutorsLostTotal.WithLabelValues()))

	beforeReclaimed := testutil.ToFloat64(TasksReclaimedTotal.WithLabelValues())
	c.IncTasksReclaimed(2)
	assert.Equal(t, beforeReclaimed+2, testutil.ToFloat64(TasksReclaimedTotal.WithLabelValues()))
}

func TestCollectorSetChangeLogLag(t *testing.T) {
	c := NewCollector()
	c.SetChangeLogLag(9)
	assert.Equal(t, float64(9), testutil.ToFloat64(ChangeLogLag))
}
