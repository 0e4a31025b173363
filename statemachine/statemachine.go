// Package statemachine is the single writer of authoritative state: every
// mutating command arrives through a Machine method, which validates the
// command, applies it to the State Store, and, for commands that other
// components react to, appends the resulting StateChange to the durable
// log in the same store write. Nothing else
// in the coordination core is allowed to write to the store's
// namespace/graph/content/task/executor tables directly.
package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/internal/idgen"
	"github.com/vertexflow/coordinator/store"
)

// Config holds the Machine's dependencies.
type Config struct {
	// Store is the durable State Store (required).
	Store store.Store

	// Logger is for observability (optional).
	Logger coordinator.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Machine applies coordination-core commands to a Store, one writer at a
// time.
type Machine struct {
	cfg Config
}

// New creates a Machine, applying defaults for any zero-value Config
// fields.
func New(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = coordinator.NewNoopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{cfg: cfg}
}

// CreateNamespace creates namespace name, or returns the existing one if
// it is already present (idempotent).
func (m *Machine) CreateNamespace(ctx context.Context, name string) (coordinator.Namespace, error) {
	existing, err := m.cfg.Store.GetNamespace(ctx, name)
	if err == nil {
		return existing, nil
	}
	if err != store.ErrNotFound {
		return coordinator.Namespace{}, fmt.Errorf("statemachine: create namespace: %w", err)
	}

	ns := coordinator.Namespace{Name: name, CreatedAt: m.cfg.Now()}
	if err := m.cfg.Store.PutNamespace(ctx, ns); err != nil {
		return coordinator.Namespace{}, fmt.Errorf("statemachine: create namespace: %w", err)
	}
	m.cfg.Logger.Info(ctx, "namespace created", "namespace", name)
	return ns, nil
}

// CreateGraph validates and stores a new ComputeGraph. The namespace
// must already exist; a graph name collision within the namespace
// overwrites the prior definition, since graphs are versionless.
func (m *Machine) CreateGraph(ctx context.Context, g coordinator.ComputeGraph) (coordinator.ComputeGraph, error) {
	if _, err := m.cfg.Store.GetNamespace(ctx, g.Namespace); err != nil {
		if err == store.ErrNotFound {
			return coordinator.ComputeGraph{}, fmt.Errorf("statemachine: create graph: %w", coordinator.ErrNamespaceNotFound)
		}
		return coordinator.ComputeGraph{}, fmt.Errorf("statemachine: create graph: %w", err)
	}

	if err := coordinator.ValidateGraph(g); err != nil {
		return coordinator.ComputeGraph{}, fmt.Errorf("statemachine: create graph: %w", err)
	}

	g.CreatedAt = m.cfg.Now()
	g.Tombstoned = false
	if err := m.cfg.Store.PutGraph(ctx, g); err != nil {
		return coordinator.ComputeGraph{}, fmt.Errorf("statemachine: create graph: %w", err)
	}
	m.cfg.Logger.Info(ctx, "graph created", "namespace", g.Namespace, "graph", g.Name)
	return g, nil
}

// TombstoneGraph marks a graph as no longer invokable. Tasks already in
// flight are left to complete; the Scheduler stops expanding new work
// for a tombstoned graph.
func (m *Machine) TombstoneGraph(ctx context.Context, namespace, name string) error {
	if err := m.cfg.Store.TombstoneGraph(ctx, namespace, name); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("statemachine: tombstone graph: %w", coordinator.ErrGraphNotFound)
		}
		return fmt.Errorf("statemachine: tombstone graph: %w", err)
	}
	m.cfg.Logger.Info(ctx, "graph tombstoned", "namespace", namespace, "graph", name)
	return nil
}

// IngestContent records a new content item — either an ingested root
// (ParentID empty) or a task-produced item — and emits a ContentCreated
// StateChange in the same store write.
func (m *Machine) IngestContent(ctx context.Context, c coordinator.Content) (coordinator.Content, error) {
	if _, err := m.cfg.Store.GetGraph(ctx, c.Namespace, c.GraphName); err != nil {
		if err == store.ErrNotFound {
			return coordinator.Content{}, fmt.Errorf("statemachine: ingest content: %w", coordinator.ErrGraphNotFound)
		}
		return coordinator.Content{}, fmt.Errorf("statemachine: ingest content: %w", err)
	}

	if c.ID == "" {
		c.ID = idgen.ContentID()
	}
	if c.ParentID == "" {
		c.RootID = c.ID
		c.SourceFn = coordinator.SourceIngestion
	}
	c.CreatedAt = m.cfg.Now()

	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.PutContent(ctx, c); err != nil {
			return err
		}
		_, err := tx.AppendStateChange(ctx, coordinator.StateChangeContentCreated, coordinator.ContentCreatedPayload{
			ContentID: c.ID,
			Namespace: c.Namespace,
			GraphName: c.GraphName,
		})
		return err
	})
	if err != nil {
		if err == store.ErrAlreadyExists {
			return coordinator.Content{}, fmt.Errorf("statemachine: ingest content: %w", coordinator.ErrContentExists)
		}
		return coordinator.Content{}, fmt.Errorf("statemachine: ingest content: %w", err)
	}

	m.cfg.Logger.Info(ctx, "content ingested", "namespace", c.Namespace, "content", c.ID)
	return c, nil
}

// InvokeGraph emits an InvokeComputeGraph StateChange directing the
// Scheduler to run graphName's StartFn against contentID. This does not
// itself create tasks; the Scheduler derives tasks from the change log.
func (m *Machine) InvokeGraph(ctx context.Context, namespace, graphName, contentID string) (coordinator.StateChange, error) {
	g, err := m.cfg.Store.GetGraph(ctx, namespace, graphName)
	if err != nil {
		if err == store.ErrNotFound {
			return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", coordinator.ErrGraphNotFound)
		}
		return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", err)
	}
	if g.Tombstoned {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", coordinator.ErrGraphTombstoned)
	}
	if _, err := m.cfg.Store.GetContent(ctx, namespace, contentID); err != nil {
		if err == store.ErrNotFound {
			return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", coordinator.ErrContentNotFound)
		}
		return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", err)
	}

	sc, err := m.cfg.Store.AppendStateChange(ctx, coordinator.StateChangeInvokeComputeGraph, coordinator.InvokeComputeGraphPayload{
		Namespace: namespace,
		GraphName: graphName,
		ContentID: contentID,
	})
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: invoke graph: %w", err)
	}
	return sc, nil
}

// CreateTasks persists a batch of newly-derived tasks and emits a single
// TasksCreated StateChange referencing causeID (the StateChange that led
// the Scheduler to derive them).
func (m *Machine) CreateTasks(ctx context.Context, tasks []coordinator.Task, causeID uint64) ([]coordinator.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = idgen.TaskID()
		}
		tasks[i].CreatedAt = m.cfg.Now()
		tasks[i].Outcome = coordinator.TaskOutcomeUnknown
		ids = append(ids, tasks[i].ID)
	}

	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		for _, t := range tasks {
			if err := tx.PutTask(ctx, t); err != nil {
				return err
			}
		}
		_, err := tx.AppendStateChange(ctx, coordinator.StateChangeTasksCreated, coordinator.TasksCreatedPayload{
			TaskIDs: ids,
			CauseID: causeID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("statemachine: create tasks: %w", err)
	}
	m.cfg.Logger.Info(ctx, "tasks created", "count", len(tasks), "cause_id", causeID)
	return tasks, nil
}

// CommitAssignments records an allocation plan — task id to executor id —
// produced by the Task Allocator, and emits a TasksAssigned StateChange.
// Every task and executor referenced by plan must already exist.
func (m *Machine) CommitAssignments(ctx context.Context, plan map[string]string, causeID uint64) (coordinator.StateChange, error) {
	if len(plan) == 0 {
		return coordinator.StateChange{}, nil
	}

	var sc coordinator.StateChange
	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		for taskID, executorID := range plan {
			task, err := tx.GetTask(ctx, taskID)
			if err != nil {
				if err == store.ErrNotFound {
					return coordinator.ErrPlanInvalid
				}
				return err
			}
			if _, err := tx.GetExecutor(ctx, executorID); err != nil {
				if err == store.ErrNotFound {
					return coordinator.ErrPlanInvalid
				}
				return err
			}
			task.AssignedExecutor = executorID
			if err := tx.UpdateTask(ctx, task); err != nil {
				return err
			}
		}
		var err error
		sc, err = tx.AppendStateChange(ctx, coordinator.StateChangeTasksAssigned, coordinator.TasksAssignedPayload{
			Plan:    plan,
			CauseID: causeID,
		})
		return err
	})
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: commit assignments: %w", err)
	}
	return sc, nil
}

// CompleteTask transitions a task from Unknown to a terminal outcome
// exactly once, and emits a TaskCompleted StateChange. Completing an
// already-terminal task returns ErrTaskTerminal.
//
// On TaskOutcomeSuccess, output.Data is inserted as one Content row per
// payload, parented under the task's input content and sharing its
// root; output.Router.Edges, if non-empty, is copied onto every one of
// those rows under coordinator.RouteLabel so the Scheduler can resolve
// any DynamicEdgeRouter fed by this task's output. On
// TaskOutcomeFailed, a fresh task row is created with Attempt+1 and
// Outcome Unknown so the next allocation tick picks it back up; the
// failed row itself is never mutated beyond its own outcome. All of
// this happens in the same store transaction as the task update.
func (m *Machine) CompleteTask(ctx context.Context, taskID string, outcome coordinator.TaskOutcome, output coordinator.NodeOutput) (coordinator.StateChange, error) {
	if outcome != coordinator.TaskOutcomeSuccess && outcome != coordinator.TaskOutcomeFailed {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: complete task: outcome %q is not terminal", outcome)
	}

	var sc coordinator.StateChange
	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			if err == store.ErrNotFound {
				return coordinator.ErrTaskNotFound
			}
			return err
		}
		if task.Outcome != coordinator.TaskOutcomeUnknown {
			return coordinator.ErrTaskTerminal
		}
		task.Outcome = outcome
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		if outcome == coordinator.TaskOutcomeSuccess && len(output.Data) > 0 {
			if err := m.insertProduced(ctx, tx, task, output); err != nil {
				return err
			}
		}

		if outcome == coordinator.TaskOutcomeFailed {
			retry := coordinator.Task{
				ID:             idgen.TaskID(),
				Namespace:      task.Namespace,
				GraphName:      task.GraphName,
				ComputeFnName:  task.ComputeFnName,
				InputContentID: task.InputContentID,
				CreatedAt:      m.cfg.Now(),
				Outcome:        coordinator.TaskOutcomeUnknown,
				Attempt:        task.Attempt + 1,
			}
			if err := tx.PutTask(ctx, retry); err != nil {
				return err
			}
		}

		sc, err = tx.AppendStateChange(ctx, coordinator.StateChangeTaskCompleted, coordinator.TaskCompletedPayload{
			TaskID:  taskID,
			Outcome: outcome,
		})
		return err
	})
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: complete task: %w", err)
	}
	m.cfg.Logger.Info(ctx, "task completed", "task", taskID, "outcome", outcome)
	return sc, nil
}

// insertProduced writes one Content row per output.Data payload,
// parented under task's input content, propagating RootID from that
// parent and stamping SourceFn with the producing compute fn so the
// Scheduler's fan-out lookup (ListContentByParent filtered by SourceFn)
// finds them.
func (m *Machine) insertProduced(ctx context.Context, tx store.Store, task coordinator.Task, output coordinator.NodeOutput) error {
	parent, err := tx.GetContent(ctx, task.Namespace, task.InputContentID)
	if err != nil {
		if err == store.ErrNotFound {
			return coordinator.ErrContentNotFound
		}
		return err
	}

	var route []any
	if len(output.Router.Edges) > 0 {
		route = make([]any, len(output.Router.Edges))
		for i, edge := range output.Router.Edges {
			route[i] = edge
		}
	}

	for _, d := range output.Data {
		c := coordinator.Content{
			ID:         idgen.ContentID(),
			Namespace:  task.Namespace,
			GraphName:  task.GraphName,
			ParentID:   task.InputContentID,
			RootID:     parent.RootID,
			StorageURL: d.StorageURL,
			Size:       d.Size,
			SHA256:     d.SHA256,
			CreatedAt:  m.cfg.Now(),
			SourceFn:   task.ComputeFnName,
		}
		if route != nil {
			c.Labels = map[string]any{coordinator.RouteLabel: route}
		}
		if err := tx.PutContent(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterExecutor admits a new executor in the Registering state and
// mints its reconnect epoch, emitting an ExecutorAdded StateChange.
func (m *Machine) RegisterExecutor(ctx context.Context, e coordinator.Executor) (coordinator.Executor, error) {
	if e.ID == "" {
		e.ID = idgen.ExecutorID()
	}
	e.Epoch = idgen.Epoch()
	e.State = coordinator.ExecutorStateRegistering
	e.LastHeartbeatTS = m.cfg.Now()

	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.PutExecutor(ctx, e); err != nil {
			return err
		}
		_, err := tx.AppendStateChange(ctx, coordinator.StateChangeExecutorAdded, coordinator.ExecutorAddedPayload{
			ExecutorID: e.ID,
		})
		return err
	})
	if err != nil {
		return coordinator.Executor{}, fmt.Errorf("statemachine: register executor: %w", err)
	}
	m.cfg.Logger.Info(ctx, "executor registered", "executor", e.ID, "epoch", e.Epoch)
	return e, nil
}

// Heartbeat records liveness for an executor and promotes it to Active
// on its first heartbeat after Registering. Heartbeat does not append a
// StateChange: liveness is high-frequency and derived state, not part of
// the durable event history.
//
// runningTaskIDs is the executor's own view of what it currently holds;
// Heartbeat compares each against the store's AssignedExecutor and
// returns the subset that no longer belongs to this executor (reclaimed
// by a Sweep-driven RemoveExecutor, or by a task that no longer exists
// at all), so the caller can tell the executor to stop working on them.
func (m *Machine) Heartbeat(ctx context.Context, executorID string, runningTaskIDs []string) ([]string, error) {
	e, err := m.cfg.Store.GetExecutor(ctx, executorID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("statemachine: heartbeat: %w", coordinator.ErrExecutorNotFound)
		}
		return nil, fmt.Errorf("statemachine: heartbeat: %w", err)
	}
	e.LastHeartbeatTS = m.cfg.Now()
	if e.State == coordinator.ExecutorStateRegistering || e.State == coordinator.ExecutorStateLost {
		e.State = coordinator.ExecutorStateActive
	}
	if err := m.cfg.Store.PutExecutor(ctx, e); err != nil {
		return nil, fmt.Errorf("statemachine: heartbeat: %w", err)
	}

	removed := make([]string, 0, len(runningTaskIDs))
	for _, taskID := range runningTaskIDs {
		task, err := m.cfg.Store.GetTask(ctx, taskID)
		if err != nil {
			if err == store.ErrNotFound {
				removed = append(removed, taskID)
				continue
			}
			return nil, fmt.Errorf("statemachine: heartbeat: %w", err)
		}
		if task.AssignedExecutor != executorID {
			removed = append(removed, taskID)
		}
	}
	return removed, nil
}

// MarkExecutorLost transitions an executor whose heartbeat has expired
// into the Lost state, without unassigning its tasks: RemoveExecutor is
// the operation that returns its work to the unassigned pool.
func (m *Machine) MarkExecutorLost(ctx context.Context, executorID string) error {
	e, err := m.cfg.Store.GetExecutor(ctx, executorID)
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("statemachine: mark executor lost: %w", coordinator.ErrExecutorNotFound)
		}
		return fmt.Errorf("statemachine: mark executor lost: %w", err)
	}
	if e.State == coordinator.ExecutorStateLost || e.State == coordinator.ExecutorStateRemoved {
		return nil
	}
	e.State = coordinator.ExecutorStateLost
	if err := m.cfg.Store.PutExecutor(ctx, e); err != nil {
		return fmt.Errorf("statemachine: mark executor lost: %w", err)
	}
	m.cfg.Logger.Warn(ctx, "executor marked lost", "executor", executorID)
	return nil
}

// RemoveExecutor deletes an executor and returns any tasks assigned to
// it to the unassigned pool, emitting an ExecutorRemoved StateChange. Task
// rescan on removal is unscoped: the Scheduler's next unassigned-task
// scan is namespace-wide rather than filtered to the removed executor's
// prior namespace, trading a slightly larger scan for simplicity.
func (m *Machine) RemoveExecutor(ctx context.Context, executorID string) (coordinator.StateChange, error) {
	var sc coordinator.StateChange
	var reclaimed int
	err := m.cfg.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		tasks, err := tx.ListTasksByExecutor(ctx, executorID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.Outcome != coordinator.TaskOutcomeUnknown {
				continue
			}
			t.AssignedExecutor = ""
			if err := tx.UpdateTask(ctx, t); err != nil {
				return err
			}
			reclaimed++
		}
		if err := tx.DeleteExecutor(ctx, executorID); err != nil {
			return err
		}
		sc, err = tx.AppendStateChange(ctx, coordinator.StateChangeExecutorRemoved, coordinator.ExecutorRemovedPayload{
			ExecutorID: executorID,
		})
		return err
	})
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("statemachine: remove executor: %w", err)
	}
	m.cfg.Logger.Info(ctx, "executor removed", "executor", executorID, "reclaimed_tasks", reclaimed)
	return sc, nil
}
