package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NotEmpty(t, cfg.NodeName)
	require.Equal(t, "0.0.0.0:8815", cfg.BindAddr)
	require.Equal(t, 4, cfg.MaxInFlight)
	require.Equal(t, 30*time.Second, cfg.StatusInterval)
	require.Equal(t, 5*time.Minute, cfg.ShuffleStaleAfter)
	require.Zero(t, cfg.RegistryQueueSize)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SWARM_NODE_NAME", "node-env")
	t.Setenv("SWARM_BIND_ADDR", "127.0.0.1:9900")
	t.Setenv("SWARM_ADVERTISE_ADDR", "10.0.0.9:9900")
	t.Setenv("SWARM_MAX_IN_FLIGHT", "8")
	t.Setenv("SWARM_STATUS_INTERVAL", "45s")
	t.Setenv("SWARM_REGISTRY_QUEUE_SIZE", "64")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "node-env", cfg.NodeName)
	require.Equal(t, "127.0.0.1:9900", cfg.BindAddr)
	require.Equal(t, "10.0.0.9:9900", cfg.AdvertiseAddr)
	require.Equal(t, 8, cfg.MaxInFlight)
	require.Equal(t, 45*time.Second, cfg.StatusInterval)
	require.Equal(t, 64, cfg.RegistryQueueSize)

	// Untouched fields keep their defaults.
	require.Equal(t, 5*time.Minute, cfg.ShuffleStaleAfter)
}

func TestLoadConfigDefaultsWithoutEnv(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().BindAddr, cfg.BindAddr)
	require.Equal(t, DefaultConfig().MaxInFlight, cfg.MaxInFlight)
}
