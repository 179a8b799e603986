package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, home string) (Config, error) {
	t.Helper()
	v := viper.New()
	v.Set(HomeFlag, home)
	return Load(v)
}

func TestDefaultsResolveAgainstHome(t *testing.T) {
	home := t.TempDir()
	c, err := load(t, home)
	require.NoError(t, err)

	assert.Equal(t, home, c.Home)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, filepath.Join(home, "data", "wal_entry"), c.EntryWAL.Dir)
	assert.Equal(t, filepath.Join(home, "data", "wal_exit"), c.ExitWAL.Dir)
	assert.Equal(t, filepath.Join(home, "data", "snapshot"), c.Snapshot.Dir)
	assert.Equal(t, int64(2<<20), c.EntryWAL.SegmentSize)
	assert.True(t, c.EntryWAL.Sync)
	assert.Equal(t, DriverNone, c.Broadcast.Driver)
	assert.Empty(t, c.MarketsFile)
}

func TestFileThenEnv(t *testing.T) {
	home := t.TempDir()
	yml := `
grpc-addr: ":6000"
log-format: plain
markets-file: markets.yaml
entry-wal:
  dir: /var/lib/econia/wal
  segment-size: 1024
  segment-duration: 30s
broadcast:
  driver: sarama
  brokers: ["a:9092", "b:9092"]
  topic: from-file
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yml), 0o644))
	t.Setenv("ECONIA_GRPC_ADDR", ":7000")
	t.Setenv("ECONIA_BROADCAST_TOPIC", "from-env")

	c, err := load(t, home)
	require.NoError(t, err)

	assert.Equal(t, ":7000", c.GRPCAddr)
	assert.Equal(t, "plain", c.LogFormat)
	assert.Equal(t, filepath.Join(home, "markets.yaml"), c.MarketsFile)
	assert.Equal(t, "/var/lib/econia/wal", c.EntryWAL.Dir)
	assert.Equal(t, int64(1024), c.EntryWAL.SegmentSize)
	assert.Equal(t, 30*time.Second, c.EntryWAL.SegmentDuration)
	assert.Equal(t, DriverSarama, c.Broadcast.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Broadcast.Brokers)
	assert.Equal(t, "from-env", c.Broadcast.Topic)
	assert.Equal(t, uint32(10), c.Broadcast.MaxRetries)
}

func TestLoadRejectsBadFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("log-format: xml\n"), 0o644))
	_, err := load(t, home)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no grpc addr", func(c *Config) { c.GRPCAddr = "" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"negative segment", func(c *Config) { c.EntryWAL.SegmentSize = -1 }, false},
		{"no exit dir", func(c *Config) { c.ExitWAL.Dir = "" }, false},
		{"negative snapshot interval", func(c *Config) { c.Snapshot.Interval = -time.Second }, false},
		{"snapshots off need no dir", func(c *Config) { c.Snapshot = SnapshotConfig{} }, true},
		{"unknown driver", func(c *Config) { c.Broadcast.Driver = "nats" }, false},
		{"kafka without brokers", func(c *Config) { c.Broadcast.Driver = DriverKafkaGo }, false},
		{"kafka", func(c *Config) {
			c.Broadcast.Driver = DriverKafkaGo
			c.Broadcast.Brokers = []string{"localhost:9092"}
		}, true},
		{"zero batch", func(c *Config) {
			c.Broadcast.Driver = DriverSarama
			c.Broadcast.Brokers = []string{"localhost:9092"}
			c.Broadcast.BatchSize = 0
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(&c)
			if tc.ok {
				require.NoError(t, c.Validate())
			} else {
				require.Error(t, c.Validate())
			}
		})
	}
}
