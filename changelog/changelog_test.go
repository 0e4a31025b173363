package changelog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/changelog"
	"github.com/vertexflow/coordinator/store/memory"
)

func TestDrainReturnsChangesAfterCursor(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := st.AppendStateChange(ctx, coordinator.StateChangeContentCreated, coordinator.ContentCreatedPayload{})
		require.NoError(t, err)
	}

	r := changelog.New(st)
	page, err := r.Drain(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	page2, err := r.Drain(ctx, page.Items[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, page.Items[2].ID, page2.Items[0].ID)
}

func TestSchedulerCursorRoundTrip(t *testing.T) {
	st := memory.New()
	r := changelog.New(st)
	ctx := context.Background()

	cur, err := r.SchedulerCursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, cur)

	require.NoError(t, r.AdvanceSchedulerCursor(ctx, 42))
	cur, err = r.SchedulerCursor(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, cur)
}

func TestMarkProcessedWithDerivationError(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	sc, err := st.AppendStateChange(ctx, coordinator.StateChangeContentCreated, coordinator.ContentCreatedPayload{})
	require.NoError(t, err)

	r := changelog.New(st)
	require.NoError(t, r.MarkProcessed(ctx, sc.ID, "router activated undeclared target \"nope\""))

	got, err := st.GetStateChange(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed())
	assert.Contains(t, got.Err, "undeclared target")
}

func TestSubscriberOffsetRoundTrip(t *testing.T) {
	st := memory.New()
	r := changelog.New(st)
	ctx := context.Background()

	_, ok, err := r.SubscriberOffset(ctx, "docs/extract")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.AdvanceSubscriberOffset(ctx, "docs/extract", 7))
	off, ok, err := r.SubscriberOffset(ctx, "docs/extract")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 7, off)
}

func TestSafePruneID(t *testing.T) {
	id, ok := changelog.SafePruneID(100, nil)
	assert.False(t, ok)
	assert.Zero(t, id)

	id, ok = changelog.SafePruneID(100, []uint64{80, 95, 50})
	assert.True(t, ok)
	assert.EqualValues(t, 50, id)
}
