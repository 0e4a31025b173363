package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/store"
)

func TestPutGetNamespace(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetNamespace(ctx, "acme")
	require.ErrorIs(t, err, store.ErrNotFound)

	ns := coordinator.Namespace{Name: "acme", CreatedAt: time.Now()}
	require.NoError(t, s.PutNamespace(ctx, ns))

	got, err := s.GetNamespace(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, ns.Name, got.Name)
}

func TestListNamespacesSorted(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutNamespace(ctx, coordinator.Namespace{Name: "zeta"}))
	require.NoError(t, s.PutNamespace(ctx, coordinator.Namespace{Name: "alpha"}))

	list, err := s.ListNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestGraphTombstone(t *testing.T) {
	s := New()
	ctx := context.Background()

	g := coordinator.ComputeGraph{Namespace: "acme", Name: "pipeline"}
	require.NoError(t, s.PutGraph(ctx, g))

	err := s.TombstoneGraph(ctx, "acme", "pipeline")
	require.NoError(t, err)

	got, err := s.GetGraph(ctx, "acme", "pipeline")
	require.NoError(t, err)
	assert.True(t, got.Tombstoned)

	err = s.TombstoneGraph(ctx, "acme", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContentDuplicateIDRejected(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := coordinator.Content{ID: "c1", Namespace: "acme"}
	require.NoError(t, s.PutContent(ctx, c))

	err := s.PutContent(ctx, c)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestListContentByParent(t *testing.T) {
	s := New()
	ctx := context.Background()

	root := coordinator.Content{ID: "root", Namespace: "acme"}
	child1 := coordinator.Content{ID: "child1", Namespace: "acme", ParentID: "root"}
	child2 := coordinator.Content{ID: "child2", Namespace: "acme", ParentID: "root"}
	other := coordinator.Content{ID: "other", Namespace: "acme", ParentID: "somewhere-else"}

	for _, c := range []coordinator.Content{root, child1, child2, other} {
		require.NoError(t, s.PutContent(ctx, c))
	}

	children, err := s.ListContentByParent(ctx, "acme", "root")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "child1", children[0].ID)
	assert.Equal(t, "child2", children[1].ID)
}

func TestTaskUnassignedListing(t *testing.T) {
	s := New()
	ctx := context.Background()

	unassigned := coordinator.Task{ID: "t1", Namespace: "acme", Outcome: coordinator.TaskOutcomeUnknown}
	assigned := coordinator.Task{ID: "t2", Namespace: "acme", AssignedExecutor: "exec-1", Outcome: coordinator.TaskOutcomeUnknown}
	done := coordinator.Task{ID: "t3", Namespace: "acme", Outcome: coordinator.TaskOutcomeSuccess}

	for _, tsk := range []coordinator.Task{unassigned, assigned, done} {
		require.NoError(t, s.PutTask(ctx, tsk))
	}

	list, err := s.ListUnassignedTasks(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)
}

func TestUpdateTaskMissingFails(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.UpdateTask(ctx, coordinator.Task{ID: "ghost"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStateChangeAppendAndScan(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.AppendStateChange(ctx, coordinator.StateChangeContentCreated, coordinator.ContentCreatedPayload{})
		require.NoError(t, err)
	}

	page, err := s.ScanStateChanges(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, uint64(1), page.Items[0].ID)
	assert.Equal(t, uint64(2), page.Items[1].ID)
	assert.Equal(t, "3", page.NextCursor)

	last, err := s.ScanStateChanges(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, last.Items, 2)
	assert.Empty(t, last.NextCursor)
}

func TestMarkStateChangeProcessed(t *testing.T) {
	s := New()
	ctx := context.Background()

	sc, err := s.AppendStateChange(ctx, coordinator.StateChangeTaskCompleted, coordinator.TaskCompletedPayload{})
	require.NoError(t, err)
	assert.False(t, sc.Processed())

	require.NoError(t, s.MarkStateChangeProcessed(ctx, sc.ID, ""))

	got, err := s.GetStateChange(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed())
}

func TestSchedulerCursorRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	cur, err := s.GetSchedulerCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cur)

	require.NoError(t, s.SetSchedulerCursor(ctx, 42))

	cur, err = s.GetSchedulerCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cur)
}

func TestStreamOffsetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok, err := s.GetStreamOffset(ctx, "acme/pipeline/default")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetStreamOffset(ctx, "acme/pipeline/default", 7))

	off, ok, err := s.GetStreamOffset(ctx, "acme/pipeline/default")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), off)
}

func TestRunInTransactionAppliesImmediately(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.PutNamespace(ctx, coordinator.Namespace{Name: "acme"})
	})
	require.NoError(t, err)

	_, err = s.GetNamespace(ctx, "acme")
	require.NoError(t, err)
}
