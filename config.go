package swarm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix LoadConfig reads.
const EnvPrefix = "SWARM_"

// Config holds configuration for a Node.
type Config struct {
	// NodeName identifies this node in the cluster and in the service
	// registry.
	NodeName string `mapstructure:"node_name"`

	// BindAddr is the host:port the exchange server listens on. Port 0
	// picks an ephemeral port.
	BindAddr string `mapstructure:"bind_addr"`

	// AdvertiseAddr is the host:port other nodes dial for exchanges.
	// Empty means advertise the bound address.
	AdvertiseAddr string `mapstructure:"advertise_addr"`

	// RedisAddr is the gossip Redis address, for deployments that wire
	// the Redis store from config.
	RedisAddr string `mapstructure:"redis_addr"`

	// MaxInFlight bounds concurrent partition sends per shuffle.
	MaxInFlight int `mapstructure:"max_in_flight"`

	// RegistryQueueSize is the async bridge queue capacity. Zero keeps
	// registry writes synchronous.
	RegistryQueueSize int `mapstructure:"registry_queue_size"`

	// StatusInterval is how often the node republishes its registry
	// record.
	StatusInterval time.Duration `mapstructure:"status_interval"`

	// ShuffleStaleAfter is how long an abandoned shuffle survives in the
	// registry before the sweep reclaims it.
	ShuffleStaleAfter time.Duration `mapstructure:"shuffle_stale_after"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NodeName:          defaultNodeName(),
		BindAddr:          "0.0.0.0:8815",
		MaxInFlight:       4,
		StatusInterval:    30 * time.Second,
		ShuffleStaleAfter: 5 * time.Minute,
	}
}

func defaultNodeName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "swarm-node"
	}
	return host
}

// LoadConfig builds a Config from defaults, an optional .env file, and
// SWARM_* environment variables (SWARM_NODE_NAME sets NodeName, and so
// on). Environment variables win over the .env file.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("swarm: read .env: %w", err)
			}
		}
	}

	for _, envStr := range os.Environ() {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		// SWARM_NODE_NAME -> node_name
		v.Set(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("swarm: unmarshal config: %w", err)
	}
	return cfg, nil
}
