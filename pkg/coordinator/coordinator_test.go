package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexflow/coordinator/config"
	"github.com/vertexflow/coordinator/pkg/coordinator"
	"github.com/vertexflow/coordinator/store/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.FromEnv()
	cfg.GatewayAddr = "127.0.0.1:0"
	cfg.StreamAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.SchedulerPollInterval = 10 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond
	return cfg
}

func TestNewAppliesDefaultsAndBuildsAgainstMemoryStore(t *testing.T) {
	st := memory.New()
	coord, err := coordinator.New(
		coordinator.WithConfig(testConfig(t)),
		coordinator.WithStore(st),
	)
	require.NoError(t, err)
	require.NotNil(t, coord.Machine())
	assert.Same(t, st, coord.Store())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""

	_, err := coordinator.New(coordinator.WithConfig(cfg))
	assert.Error(t, err)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	coord, err := coordinator.New(
		coordinator.WithConfig(testConfig(t)),
		coordinator.WithStore(memory.New()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop within timeout after cancellation")
	}
}
