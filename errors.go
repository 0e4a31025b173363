package coordinator

import "errors"

var (
	// ErrNamespaceNotFound indicates the referenced namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrNamespaceExists indicates CreateNamespace found the namespace
	// already present; CreateNamespace is idempotent, so callers should
	// treat this as success rather than a failure.
	ErrNamespaceExists = errors.New("namespace already exists")

	// ErrGraphNotFound indicates the referenced graph does not exist.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrGraphTombstoned indicates an operation targeted a tombstoned graph.
	ErrGraphTombstoned = errors.New("graph is tombstoned")

	// ErrGraphInvalid wraps a violation of a graph structural invariant
	// (dangling edge, missing start function, or a cycle).
	ErrGraphInvalid = errors.New("graph invariant violated")

	// ErrContentExists indicates IngestContent found a colliding content id.
	ErrContentExists = errors.New("content id collision")

	// ErrContentNotFound indicates the referenced content does not exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrTaskExists indicates CreateTasks found a colliding task id.
	ErrTaskExists = errors.New("task id collision")

	// ErrTaskNotFound indicates the referenced task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskTerminal indicates CompleteTask targeted a task that has
	// already transitioned to Success or Failed.
	ErrTaskTerminal = errors.New("task already terminal")

	// ErrExecutorNotFound indicates the referenced executor is unknown.
	ErrExecutorNotFound = errors.New("executor not found")

	// ErrPlanInvalid indicates CommitAssignments referenced an unknown
	// task or executor.
	ErrPlanInvalid = errors.New("assignment plan references unknown task or executor")
)
