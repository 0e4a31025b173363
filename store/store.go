// Package store defines the State Store contract: a durable,
// linearizable key/value store with logical column families for
// namespaces, graphs, content, tasks, executors, state changes, the
// scheduler cursor, and stream offsets. Every mutation arrives through
// the single applier described in package statemachine; readers use
// stable snapshots for the duration of a scan.
package store

import (
	"context"

	"github.com/vertexflow/coordinator"
)

// Page is a resumable prefix-scan result: Items plus a cursor to resume
// from when more results exist.
type Page[T any] struct {
	Items      []T
	NextCursor string // empty when the scan reached the end
}

// Store is the State Store's contract. Implementations must be safe for
// concurrent access; all writes are expected to arrive from a single
// applier (the State Machine) so implementations are not required to
// serialize writers themselves, only to make each individual method call
// atomic and durable before it returns.
type Store interface {
	// Namespaces.
	PutNamespace(ctx context.Context, ns coordinator.Namespace) error
	GetNamespace(ctx context.Context, name string) (coordinator.Namespace, error)
	ListNamespaces(ctx context.Context) ([]coordinator.Namespace, error)

	// Graphs.
	PutGraph(ctx context.Context, g coordinator.ComputeGraph) error
	GetGraph(ctx context.Context, namespace, name string) (coordinator.ComputeGraph, error)
	ListGraphs(ctx context.Context, namespace string) ([]coordinator.ComputeGraph, error)
	TombstoneGraph(ctx context.Context, namespace, name string) error

	// Content.
	PutContent(ctx context.Context, c coordinator.Content) error
	GetContent(ctx context.Context, namespace, id string) (coordinator.Content, error)
	ListContentByParent(ctx context.Context, namespace, parentID string) ([]coordinator.Content, error)

	// Tasks.
	PutTask(ctx context.Context, t coordinator.Task) error
	GetTask(ctx context.Context, id string) (coordinator.Task, error)
	UpdateTask(ctx context.Context, t coordinator.Task) error
	ListUnassignedTasks(ctx context.Context, namespace string) ([]coordinator.Task, error)
	ListTasksByExecutor(ctx context.Context, executorID string) ([]coordinator.Task, error)
	ListTasksByGraph(ctx context.Context, namespace, graphName string) ([]coordinator.Task, error)

	// Executors.
	PutExecutor(ctx context.Context, e coordinator.Executor) error
	GetExecutor(ctx context.Context, id string) (coordinator.Executor, error)
	ListExecutors(ctx context.Context) ([]coordinator.Executor, error)
	DeleteExecutor(ctx context.Context, id string) error

	// State changes / change log.
	AppendStateChange(ctx context.Context, kind coordinator.StateChangeKind, payload any) (coordinator.StateChange, error)
	GetStateChange(ctx context.Context, id uint64) (coordinator.StateChange, error)
	ScanStateChanges(ctx context.Context, fromID uint64, limit int) (Page[coordinator.StateChange], error)
	MarkStateChangeProcessed(ctx context.Context, id uint64, derivationErr string) error
	PruneStateChangesBefore(ctx context.Context, id uint64) (int, error)

	// Scheduler cursor: the single persisted position the Scheduler
	// resumes from on restart.
	GetSchedulerCursor(ctx context.Context) (uint64, error)
	SetSchedulerCursor(ctx context.Context, id uint64) error

	// Content-stream subscriber offsets, keyed by an opaque subscriber
	// key (namespace/graph/policy, see package streamserver).
	GetStreamOffset(ctx context.Context, subscriberKey string) (uint64, bool, error)
	SetStreamOffset(ctx context.Context, subscriberKey string, offset uint64) error
	// ListStreamOffsets returns every currently tracked subscriber
	// offset, for computing a safe change-log prune point across all
	// known consumers.
	ListStreamOffsets(ctx context.Context) ([]uint64, error)

	// RunInTransaction executes fn with a Store handle whose writes are
	// applied atomically as a single batch. Implementations that cannot
	// offer a real transaction must still guarantee all-or-nothing
	// application before RunInTransaction returns.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Close releases any resources (connections, file handles) held by
	// the store.
	Close() error
}
