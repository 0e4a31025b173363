// Package allocator maps unassigned tasks to eligible active executors.
// Allocation is a pure function of the tasks, the executor pool, and the
// strategy's own internal counters: it produces a plan (task id ->
// executor id) that the caller commits through statemachine.Machine, but
// never writes to the store itself.
package allocator

import (
	"fmt"
	"sort"

	"github.com/vertexflow/coordinator"
)

// Strategy picks an executor for one task from a set of eligible
// candidates, already filtered for placement-constraint eligibility and
// sorted by executor ID for determinism.
type Strategy interface {
	// Pick returns the index into candidates of the executor to assign,
	// given the load (assigned task count) currently on each candidate.
	Pick(candidates []coordinator.Executor, load map[string]int) int
}

// LeastLoaded assigns each task to the eligible executor currently
// holding the fewest tasks, breaking ties by executor ID for
// determinism. This is the default strategy.
type LeastLoaded struct{}

// Pick implements Strategy.
func (LeastLoaded) Pick(candidates []coordinator.Executor, load map[string]int) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if load[candidates[i].ID] < load[candidates[best].ID] {
			best = i
		}
	}
	return best
}

// RoundRobin cycles through eligible executors in sorted-ID order,
// ignoring current load. Useful when tasks are uniform cost and the
// operator wants to spread work evenly by count rather than by current
// queue depth.
type RoundRobin struct {
	next int
}

// Pick implements Strategy.
func (r *RoundRobin) Pick(candidates []coordinator.Executor, _ map[string]int) int {
	i := r.next % len(candidates)
	r.next++
	return i
}

// Config holds the Allocator's dependencies.
type Config struct {
	// Strategy picks among eligible executors for each task. Defaults to
	// LeastLoaded.
	Strategy Strategy
}

// Allocator computes assignment plans for a batch of unassigned tasks
// against a snapshot of the executor pool and each function's placement
// constraints.
type Allocator struct {
	cfg Config
}

// New creates an Allocator, defaulting Strategy to LeastLoaded.
func New(cfg Config) *Allocator {
	if cfg.Strategy == nil {
		cfg.Strategy = LeastLoaded{}
	}
	return &Allocator{cfg: cfg}
}

// Plan computes a task id -> executor id assignment for tasks, given the
// current executor pool, each in-flight task's current assignment (for
// load accounting), and a lookup from a task's ComputeFnName to its
// placement constraints. Only executors in the Active state are
// eligible, and an executor already holding MaxConcurrent tasks (a
// non-positive MaxConcurrent means unlimited) is never chosen, even if
// no other candidate is available. A task whose function has
// constraints no active, unsaturated executor satisfies is silently
// omitted from the plan; the caller should log this as backpressure
// rather than treat it as an error, since it resolves itself once a
// matching executor registers or frees up capacity.
func (a *Allocator) Plan(tasks []coordinator.Task, executors []coordinator.Executor, inFlight []coordinator.Task, constraints func(fnName string) map[coordinator.Label]struct{}) (map[string]string, error) {
	active := make([]coordinator.Executor, 0, len(executors))
	for _, e := range executors {
		if e.State == coordinator.ExecutorStateActive {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	load := make(map[string]int, len(active))
	for _, t := range inFlight {
		if t.AssignedExecutor != "" && t.Outcome == coordinator.TaskOutcomeUnknown {
			load[t.AssignedExecutor]++
		}
	}

	plan := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if !t.Unassigned() {
			continue
		}
		want := constraints(t.ComputeFnName)
		eligible := filterUnderCapacity(filterEligible(active, want), load)
		if len(eligible) == 0 {
			continue
		}
		idx := a.cfg.Strategy.Pick(eligible, load)
		if idx < 0 || idx >= len(eligible) {
			return nil, fmt.Errorf("allocator: strategy returned out-of-range index %d for %d candidates", idx, len(eligible))
		}
		chosen := eligible[idx]
		plan[t.ID] = chosen.ID
		load[chosen.ID]++
	}
	return plan, nil
}

// filterEligible returns the subset of candidates whose Labels are a
// superset of want.
func filterEligible(candidates []coordinator.Executor, want map[coordinator.Label]struct{}) []coordinator.Executor {
	if len(want) == 0 {
		return candidates
	}
	out := make([]coordinator.Executor, 0, len(candidates))
	for _, e := range candidates {
		if satisfies(e.Labels, want) {
			out = append(out, e)
		}
	}
	return out
}

// filterUnderCapacity drops any candidate already holding MaxConcurrent
// tasks or more. MaxConcurrent <= 0 means the executor declared no cap.
func filterUnderCapacity(candidates []coordinator.Executor, load map[string]int) []coordinator.Executor {
	out := make([]coordinator.Executor, 0, len(candidates))
	for _, e := range candidates {
		if e.MaxConcurrent > 0 && load[e.ID] >= e.MaxConcurrent {
			continue
		}
		out = append(out, e)
	}
	return out
}

func satisfies(have, want map[coordinator.Label]struct{}) bool {
	for label := range want {
		if _, ok := have[label]; !ok {
			return false
		}
	}
	return true
}
