package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexflow/coordinator/tracing"
)

func TestInitDefaultsToNoop(t *testing.T) {
	t.Setenv("COORDINATOR_OTEL_EXPORTER", "")
	shutdown, err := tracing.Init("coordinator-test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanReturnsUsableSpan(t *testing.T) {
	ctx, span := tracing.StartSpan(context.Background(), "test.op")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}
