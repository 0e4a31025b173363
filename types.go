package coordinator

import "time"

// Namespace is a top-level tenant scope. It owns graphs, content, and
// their indexes; namespaces do not nest and offer no cross-namespace
// transactional guarantees.
type Namespace struct {
	Name      string
	CreatedAt time.Time
}

// Label is a placement/capability tag attached to compute functions and
// executors. An executor is eligible to run a task only if its label set
// is a superset of the function's placement constraints.
type Label string

// ComputeFn is a single unit of content transformation executed by an
// executor.
type ComputeFn struct {
	Name                 string
	FnName               string
	Description          string
	PlacementConstraints map[Label]struct{}
}

// DynamicEdgeRouter chooses, at task-completion time, which subset of its
// declared target functions to activate. A router is never itself
// dispatched to an executor; it is resolved in-process by the Scheduler
// against the upstream task's RouterOutput.
type DynamicEdgeRouter struct {
	Name            string
	SourceFn        string
	TargetFunctions []string
	Description     string
}

// NodeKind discriminates the tagged-union Node type.
type NodeKind int

const (
	// NodeKindCompute marks a Node holding a ComputeFn.
	NodeKindCompute NodeKind = iota
	// NodeKindRouter marks a Node holding a DynamicEdgeRouter.
	NodeKindRouter
)

// Node is a tagged variant over the two kinds of graph vertex. Exactly one
// of Compute/Router is populated, matching Kind.
type Node struct {
	Kind    NodeKind
	Compute ComputeFn
	Router  DynamicEdgeRouter
}

// Name returns the node's identifying name regardless of kind.
func (n Node) Name() string {
	if n.Kind == NodeKindRouter {
		return n.Router.Name
	}
	return n.Compute.Name
}

// CodeRef describes the extractor code package backing a graph's compute
// functions, as an opaque blob-storage handle: the coordinator never
// inspects the bytes, only forwards the descriptor to executors.
type CodeRef struct {
	Path   string
	Size   int64
	SHA256 string
}

// ComputeGraph (a.k.a. ExtractionGraph) is a namespaced, versionless,
// acyclic plan of compute functions and routers. Edges are static
// outgoing adjacency; router fan-out is resolved lazily, never
// pre-expanded at creation time.
type ComputeGraph struct {
	Namespace   string
	Name        string
	Nodes       map[string]Node
	Edges       map[string][]string
	StartFn     string
	Code        CodeRef
	CreatedAt   time.Time
	Tombstoned  bool
}

// Content (a.k.a. InvocationPayload) is a single item in the content
// forest: either an ingested root or output produced by a task.
type Content struct {
	ID         string
	Namespace  string
	GraphName  string
	ParentID   string // empty for ingest roots
	RootID     string // ingest root; equals ID for roots
	StorageURL string
	Size       int64
	SHA256     string
	MIME       string
	Labels     map[string]any
	CreatedAt  time.Time
	// SourceFn is the compute fn that produced this content, or the
	// literal string "ingestion" for ingested roots.
	SourceFn string
}

// SourceIngestion is the sentinel Content.SourceFn value for ingest roots.
const SourceIngestion = "ingestion"

// TaskOutcome is the terminal (or pending) result of running a task.
type TaskOutcome string

const (
	TaskOutcomeUnknown TaskOutcome = "unknown"
	TaskOutcomeSuccess TaskOutcome = "success"
	TaskOutcomeFailed  TaskOutcome = "failed"
)

// Task is a pending or completed execution of one compute fn against one
// input content item. A task transitions at most once, Unknown ->
// {Success, Failed}; a Failed task may be retried by creating a new task
// row with Attempt+1, never by mutating this one.
type Task struct {
	ID              string
	Namespace       string
	GraphName       string
	ComputeFnName   string
	InputContentID  string
	CreatedAt       time.Time
	Outcome         TaskOutcome
	AssignedExecutor string // empty when unassigned
	Attempt         uint32
}

// Unassigned reports whether the task is a pure function of the store:
// outcome unknown and no assignment.
func (t Task) Unassigned() bool {
	return t.Outcome == TaskOutcomeUnknown && t.AssignedExecutor == ""
}

// DataPayload describes a single produced content item, as returned by a
// Compute-kind task.
type DataPayload struct {
	StorageURL string
	Size       int64
	SHA256     string
}

// RouterOutput is the set of downstream function names a router elected
// to activate, as returned by a Router-kind task.
type RouterOutput struct {
	Edges []string
}

// NodeOutputKind discriminates NodeOutput's tagged payload.
type NodeOutputKind int

const (
	NodeOutputKindData NodeOutputKind = iota
	NodeOutputKindRouter
)

// NodeOutput is what an executor reports back for a completed task: one
// or more produced content items (Fn output) or a routing decision
// (Router output). A single Compute task may legitimately fan out to
// several DataPayloads (e.g. a splitter fn); each produces its own
// downstream task: fan-out is by content, never collapsed. Only Compute
// nodes are ever dispatched as tasks (see ValidateGraph), so Router is
// carried alongside Data rather than instead of it: a compute fn whose
// output feeds a DynamicEdgeRouter attaches its routing decision to the
// content it produced via the RouteLabel, and CompleteTask copies
// Router.Edges onto every content row created from Data.
type NodeOutput struct {
	TaskID string
	Kind   NodeOutputKind
	Data   []DataPayload
	Router RouterOutput
}

// RouteLabel is the Content.Labels key holding the []any of function
// names a router elected to activate, when the content it keys is input
// to a DynamicEdgeRouter node. Written by statemachine.CompleteTask and
// read by the scheduler package.
const RouteLabel = "route"

// ExecutorState is the lifecycle state of a registered executor.
type ExecutorState string

const (
	ExecutorStateRegistering ExecutorState = "registering"
	ExecutorStateActive      ExecutorState = "active"
	ExecutorStateLost        ExecutorState = "lost"
	ExecutorStateRemoved     ExecutorState = "removed"
)

// Executor is a remote worker process that claims and runs tasks matching
// its labels.
type Executor struct {
	ID              string
	RunnerName      string
	Addr            string // multiaddr-normalised, see internal/idgen and gateway
	Labels          map[Label]struct{}
	State           ExecutorState
	LastHeartbeatTS time.Time
	MaxConcurrent   int
	Epoch           string // opaque token minted at Register, distinguishes reconnects
}

// StateChangeKind enumerates the kinds of durable event the State Machine
// emits.
type StateChangeKind string

const (
	StateChangeContentCreated     StateChangeKind = "ContentCreated"
	StateChangeInvokeComputeGraph StateChangeKind = "InvokeComputeGraph"
	StateChangeTasksCreated       StateChangeKind = "TasksCreated"
	StateChangeTasksAssigned      StateChangeKind = "TasksAssigned"
	StateChangeTaskCompleted      StateChangeKind = "TaskCompleted"
	StateChangeExecutorAdded      StateChangeKind = "ExecutorAdded"
	StateChangeExecutorRemoved    StateChangeKind = "ExecutorRemoved"
)

// StateChange is an ordered, durable event describing a transition in the
// authoritative state. IDs are assigned strictly increasingly by the
// State Machine at apply time.
type StateChange struct {
	ID          uint64
	Kind        StateChangeKind
	Payload     any
	CreatedAt   time.Time
	ProcessedAt *time.Time
	// Err, when non-empty, records a derivation error: the change is
	// processed but the scheduler could not act on it.
	Err string
}

// Processed reports whether the scheduler has fully handled this change.
func (s StateChange) Processed() bool {
	return s.ProcessedAt != nil
}

// Payload types carried by StateChange.Payload, one per StateChangeKind.

type ContentCreatedPayload struct {
	ContentID string
	Namespace string
	GraphName string
}

type InvokeComputeGraphPayload struct {
	Namespace string
	GraphName string
	ContentID string
}

type TasksCreatedPayload struct {
	TaskIDs []string
	CauseID uint64
}

type TasksAssignedPayload struct {
	Plan    map[string]string // task id -> executor id
	CauseID uint64
}

type TaskCompletedPayload struct {
	TaskID  string
	Outcome TaskOutcome
}

type ExecutorAddedPayload struct {
	ExecutorID string
}

type ExecutorRemovedPayload struct {
	ExecutorID string
}
