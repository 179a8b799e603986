// Package config holds the server configuration. Values come from defaults,
// an optional config.yaml in the home directory, ECONIA_* environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"econia/infra/logging"
)

const (
	EnvPrefix   = "ECONIA"
	HomeFlag    = "home"
	DefaultHome = ".econia"
)

const (
	DriverNone    = "none"
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
)

type Config struct {
	Home        string `mapstructure:"home"`
	GRPCAddr    string `mapstructure:"grpc-addr"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	// MarketsFile lists markets registered at startup when missing.
	MarketsFile string `mapstructure:"markets-file"`

	EntryWAL  EntryWALConfig  `mapstructure:"entry-wal"`
	ExitWAL   ExitWALConfig   `mapstructure:"exit-wal"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
}

type EntryWALConfig struct {
	Dir             string        `mapstructure:"dir"`
	SegmentSize     int64         `mapstructure:"segment-size"`
	SegmentDuration time.Duration `mapstructure:"segment-duration"`
	Sync            bool          `mapstructure:"sync"`
}

type ExitWALConfig struct {
	Dir string `mapstructure:"dir"`
}

type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
	// Interval between snapshots. Zero disables the job.
	Interval time.Duration `mapstructure:"interval"`
}

type BroadcastConfig struct {
	Driver     string        `mapstructure:"driver"`
	Brokers    []string      `mapstructure:"brokers"`
	Topic      string        `mapstructure:"topic"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch-size"`
	MaxRetries uint32        `mapstructure:"max-retries"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Home:        DefaultHome,
		GRPCAddr:    ":50051",
		MetricsAddr: ":9100",
		LogLevel:    "info",
		LogFormat:   logging.FormatJSON,
		EntryWAL: EntryWALConfig{
			Dir:             "data/wal_entry",
			SegmentSize:     2 << 20,
			SegmentDuration: time.Minute,
			Sync:            true,
		},
		ExitWAL: ExitWALConfig{Dir: "data/wal_exit"},
		Snapshot: SnapshotConfig{
			Dir:      "data/snapshot",
			Interval: 5 * time.Minute,
		},
		Broadcast: BroadcastConfig{
			Driver:     DriverNone,
			Topic:      "econia.events",
			Interval:   250 * time.Millisecond,
			BatchSize:  256,
			MaxRetries: 10,
		},
	}
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("home", c.Home)
	v.SetDefault("grpc-addr", c.GRPCAddr)
	v.SetDefault("metrics-addr", c.MetricsAddr)
	v.SetDefault("log-level", c.LogLevel)
	v.SetDefault("log-format", c.LogFormat)
	v.SetDefault("markets-file", c.MarketsFile)
	v.SetDefault("entry-wal.dir", c.EntryWAL.Dir)
	v.SetDefault("entry-wal.segment-size", c.EntryWAL.SegmentSize)
	v.SetDefault("entry-wal.segment-duration", c.EntryWAL.SegmentDuration)
	v.SetDefault("entry-wal.sync", c.EntryWAL.Sync)
	v.SetDefault("exit-wal.dir", c.ExitWAL.Dir)
	v.SetDefault("snapshot.dir", c.Snapshot.Dir)
	v.SetDefault("snapshot.interval", c.Snapshot.Interval)
	v.SetDefault("broadcast.driver", c.Broadcast.Driver)
	v.SetDefault("broadcast.brokers", c.Broadcast.Brokers)
	v.SetDefault("broadcast.topic", c.Broadcast.Topic)
	v.SetDefault("broadcast.interval", c.Broadcast.Interval)
	v.SetDefault("broadcast.batch-size", c.Broadcast.BatchSize)
	v.SetDefault("broadcast.max-retries", c.Broadcast.MaxRetries)
}

// InitEnv makes v read ECONIA_* variables, with dots and dashes in keys
// replaced by underscores (ECONIA_ENTRY_WAL_DIR).
func InitEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration into a Config. Flags must already be bound
// to v.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v, Default())
	InitEnv(v)

	home := v.GetString(HomeFlag)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, "config"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.SetRoot(home)
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("error in config: %w", err)
	}
	return c, nil
}

// SetRoot resolves every relative path against home.
func (c *Config) SetRoot(home string) {
	c.Home = home
	c.EntryWAL.Dir = rootify(c.EntryWAL.Dir, home)
	c.ExitWAL.Dir = rootify(c.ExitWAL.Dir, home)
	c.Snapshot.Dir = rootify(c.Snapshot.Dir, home)
	if c.MarketsFile != "" {
		c.MarketsFile = rootify(c.MarketsFile, home)
	}
}

func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// EnsureRoot creates the home directory.
func EnsureRoot(home string) error {
	return os.MkdirAll(home, 0o755)
}

// Validate performs basic checks on the values.
func (c Config) Validate() error {
	if c.GRPCAddr == "" {
		return errors.New("grpc-addr is empty")
	}
	if _, err := logging.New(c.LogLevel, c.LogFormat, os.Stderr); err != nil {
		return err
	}
	if c.EntryWAL.Dir == "" {
		return errors.New("entry-wal.dir is empty")
	}
	if c.EntryWAL.SegmentSize < 0 {
		return fmt.Errorf("entry-wal.segment-size can't be negative, got %d", c.EntryWAL.SegmentSize)
	}
	if c.EntryWAL.SegmentDuration < 0 {
		return fmt.Errorf("entry-wal.segment-duration can't be negative, got %s", c.EntryWAL.SegmentDuration)
	}
	if c.ExitWAL.Dir == "" {
		return errors.New("exit-wal.dir is empty")
	}
	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot.interval can't be negative, got %s", c.Snapshot.Interval)
	}
	if c.Snapshot.Interval > 0 && c.Snapshot.Dir == "" {
		return errors.New("snapshot.dir is empty")
	}
	return c.Broadcast.Validate()
}

func (b BroadcastConfig) Validate() error {
	switch b.Driver {
	case DriverNone:
		return nil
	case DriverSarama, DriverKafkaGo:
	default:
		return fmt.Errorf("broadcast.driver %q: want %s, %s or %s", b.Driver, DriverNone, DriverSarama, DriverKafkaGo)
	}
	if len(b.Brokers) == 0 {
		return errors.New("broadcast.brokers is empty")
	}
	if b.Topic == "" {
		return errors.New("broadcast.topic is empty")
	}
	if b.Interval <= 0 {
		return fmt.Errorf("broadcast.interval must be positive, got %s", b.Interval)
	}
	if b.BatchSize <= 0 {
		return fmt.Errorf("broadcast.batch-size must be positive, got %d", b.BatchSize)
	}
	return nil
}
