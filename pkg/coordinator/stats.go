package coordinator

import (
	"context"
	"fmt"

	root "github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/changelog"
)

// Stats summarizes a read-only view over one namespace/graph pair: task
// outcome counts, per-executor load, and how far the Scheduler's derived
// state lags the durable change log. It is computed fresh from State
// Store scans on every call rather than cached.
type Stats struct {
	Namespace       string
	GraphName       string
	TasksByOutcome  map[root.TaskOutcome]int
	UnassignedTasks int
	TasksByExecutor map[string]int
	ActiveExecutors int
	ChangeLogLag    int
}

// Stats computes a Stats snapshot for namespace/graphName. It performs no
// locking and offers no consistency guarantee across the several reads it
// issues, matching the "no transactional guarantees across namespaces"
// scope of the rest of the coordination core: a task or executor change
// racing with a Stats call may or may not be reflected in the result.
func (c *Coordinator) Stats(ctx context.Context, namespace, graphName string) (Stats, error) {
	tasks, err := c.store.ListTasksByGraph(ctx, namespace, graphName)
	if err != nil {
		return Stats{}, fmt.Errorf("coordinator: stats: list tasks: %w", err)
	}
	executors, err := c.store.ListExecutors(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("coordinator: stats: list executors: %w", err)
	}

	stats := Stats{
		Namespace:       namespace,
		GraphName:       graphName,
		TasksByOutcome:  make(map[root.TaskOutcome]int),
		TasksByExecutor: make(map[string]int),
	}
	for _, t := range tasks {
		stats.TasksByOutcome[t.Outcome]++
		if t.Unassigned() {
			stats.UnassignedTasks++
		}
		if t.AssignedExecutor != "" && t.Outcome == root.TaskOutcomeUnknown {
			stats.TasksByExecutor[t.AssignedExecutor]++
		}
	}
	for _, e := range executors {
		if e.State == root.ExecutorStateActive {
			stats.ActiveExecutors++
		}
	}

	lag, err := changeLogLag(ctx, c.changes)
	if err != nil {
		return Stats{}, fmt.Errorf("coordinator: stats: change log lag: %w", err)
	}
	stats.ChangeLogLag = lag

	return stats, nil
}

// changeLogLag counts state changes past the Scheduler's committed
// cursor, without advancing it, computed on demand.
func changeLogLag(ctx context.Context, reader *changelog.Reader) (int, error) {
	cursor, err := reader.SchedulerCursor(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		page, err := reader.Drain(ctx, cursor, changelog.DefaultScanLimit)
		if err != nil {
			return 0, err
		}
		n += len(page.Items)
		if len(page.Items) == 0 || page.NextCursor == "" {
			return n, nil
		}
		cursor = page.Items[len(page.Items)-1].ID
	}
}
