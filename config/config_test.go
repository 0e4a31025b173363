package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexflow/coordinator/config"
)

func TestFromEnvAppliesDefaults(t *testing.T) {
	c := config.FromEnv()
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, ":8080", c.GatewayAddr)
	assert.Equal(t, ":8081", c.StreamAddr)
	assert.Equal(t, ":9090", c.MetricsAddr)
	assert.Equal(t, 30*time.Second, c.HeartbeatTTL)
	assert.Equal(t, "off", c.GatewayTLS.Mode)
	assert.False(t, c.GatewayTLS.Enabled())
}

func TestFromEnvReadsOverrides(t *testing.T) {
	t.Setenv("COORDINATOR_STORE_DRIVER", "postgres")
	t.Setenv("COORDINATOR_STORE_DSN", "postgres://localhost/coordinator")
	t.Setenv("COORDINATOR_GATEWAY_ADDR", ":9999")
	t.Setenv("COORDINATOR_HEARTBEAT_TTL", "1m")

	c := config.FromEnv()
	assert.Equal(t, "postgres", c.Store.Driver)
	assert.Equal(t, "postgres://localhost/coordinator", c.Store.DSN)
	assert.Equal(t, ":9999", c.GatewayAddr)
	assert.Equal(t, time.Minute, c.HeartbeatTTL)
}

func TestValidateRejectsNonMemoryDriverWithoutDSN(t *testing.T) {
	c := config.FromEnv()
	c.Store.Driver = "postgres"
	c.Store.DSN = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsTLSModeWithoutCertAndKey(t *testing.T) {
	c := config.FromEnv()
	c.GatewayTLS.Mode = "tls"
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := config.FromEnv()
	require.NoError(t, c.Validate())
}

func TestLoadOverlaysYAMLFileOnEnvDefaults(t *testing.T) {
	t.Setenv("COORDINATOR_GATEWAY_ADDR", ":8080")
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway_addr: \":7000\"\ngateway_tls:\n  mode: tls\n  cert: /tmp/c.pem\n  key: /tmp/k.pem\n"), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.GatewayAddr)
	assert.Equal(t, "tls", c.GatewayTLS.Mode)
	assert.Equal(t, ":8081", c.StreamAddr) // untouched field keeps its env default
}

func TestLoadWithEmptyPathReturnsEnvDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.FromEnv(), c)
}

func TestLoadTLSConfigDisabledReturnsNil(t *testing.T) {
	cfg, err := config.LoadTLSConfig(config.TLS{Mode: "off"})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
