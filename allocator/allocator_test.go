package allocator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/allocator"
)

func noConstraints(string) map[coordinator.Label]struct{} { return nil }

func TestPlanLeastLoadedPrefersIdleExecutor(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{
		{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
	}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive},
		{ID: "e2", State: coordinator.ExecutorStateActive},
	}
	inFlight := []coordinator.Task{
		{ID: "prior", AssignedExecutor: "e1", Outcome: coordinator.TaskOutcomeUnknown},
	}

	plan, err := a.Plan(tasks, executors, inFlight, noConstraints)
	require.NoError(t, err)
	assert.Equal(t, "e2", plan["t1"])
}

func TestPlanSkipsInactiveExecutors(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown}}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateLost},
		{ID: "e2", State: coordinator.ExecutorStateRegistering},
	}

	plan, err := a.Plan(tasks, executors, nil, noConstraints)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanFiltersByPlacementConstraints(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{{ID: "t1", ComputeFnName: "gpu-embed", Outcome: coordinator.TaskOutcomeUnknown}}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive, Labels: map[coordinator.Label]struct{}{"cpu": {}}},
		{ID: "e2", State: coordinator.ExecutorStateActive, Labels: map[coordinator.Label]struct{}{"gpu": {}}},
	}
	constraints := func(fn string) map[coordinator.Label]struct{} {
		if fn == "gpu-embed" {
			return map[coordinator.Label]struct{}{"gpu": {}}
		}
		return nil
	}

	plan, err := a.Plan(tasks, executors, nil, constraints)
	require.NoError(t, err)
	assert.Equal(t, "e2", plan["t1"])
}

func TestPlanOmitsTaskWithNoEligibleExecutor(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{{ID: "t1", ComputeFnName: "gpu-embed", Outcome: coordinator.TaskOutcomeUnknown}}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive, Labels: map[coordinator.Label]struct{}{"cpu": {}}},
	}
	constraints := func(string) map[coordinator.Label]struct{} {
		return map[coordinator.Label]struct{}{"gpu": {}}
	}

	plan, err := a.Plan(tasks, executors, nil, constraints)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanSkipsAlreadyAssignedTasks(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{{ID: "t1", ComputeFnName: "chunk", AssignedExecutor: "e1", Outcome: coordinator.TaskOutcomeUnknown}}
	executors := []coordinator.Executor{{ID: "e1", State: coordinator.ExecutorStateActive}}

	plan, err := a.Plan(tasks, executors, nil, noConstraints)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanExcludesExecutorsAtMaxConcurrent(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{
		{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
	}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive, MaxConcurrent: 1},
		{ID: "e2", State: coordinator.ExecutorStateActive, MaxConcurrent: 1},
	}
	inFlight := []coordinator.Task{
		{ID: "prior", AssignedExecutor: "e1", Outcome: coordinator.TaskOutcomeUnknown},
	}

	plan, err := a.Plan(tasks, executors, inFlight, noConstraints)
	require.NoError(t, err)
	assert.Equal(t, "e2", plan["t1"])
}

func TestPlanOmitsTaskWhenAllExecutorsAtMaxConcurrent(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{
		{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
	}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive, MaxConcurrent: 1},
	}
	inFlight := []coordinator.Task{
		{ID: "prior", AssignedExecutor: "e1", Outcome: coordinator.TaskOutcomeUnknown},
	}

	plan, err := a.Plan(tasks, executors, inFlight, noConstraints)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanTreatsNonPositiveMaxConcurrentAsUnlimited(t *testing.T) {
	a := allocator.New(allocator.Config{})
	tasks := []coordinator.Task{
		{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
	}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive},
	}
	inFlight := []coordinator.Task{
		{ID: "prior", AssignedExecutor: "e1", Outcome: coordinator.TaskOutcomeUnknown},
	}

	plan, err := a.Plan(tasks, executors, inFlight, noConstraints)
	require.NoError(t, err)
	assert.Equal(t, "e1", plan["t1"])
}

func TestRoundRobinCyclesDeterministically(t *testing.T) {
	a := allocator.New(allocator.Config{Strategy: &allocator.RoundRobin{}})
	tasks := []coordinator.Task{
		{ID: "t1", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
		{ID: "t2", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
		{ID: "t3", ComputeFnName: "chunk", Outcome: coordinator.TaskOutcomeUnknown},
	}
	executors := []coordinator.Executor{
		{ID: "e1", State: coordinator.ExecutorStateActive},
		{ID: "e2", State: coordinator.ExecutorStateActive},
	}

	plan, err := a.Plan(tasks, executors, nil, noConstraints)
	require.NoError(t, err)
	assert.Equal(t, "e1", plan["t1"])
	assert.Equal(t, "e2", plan["t2"])
	assert.Equal(t, "e1", plan["t3"])
}
