package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LODCACHE_"

// Configuration represents the complete runtime configuration
type Configuration struct {
	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Workers WorkersConfig `yaml:"workers"`
	Metrics MetricsConfig `yaml:"metrics"`
	Source  SourceConfig  `yaml:"source"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `yaml:"format"` // text, json
}

// CacheConfig represents one cache instance
type CacheConfig struct {
	Name         string   `yaml:"name"`
	MaxMemory    string   `yaml:"max_memory"` // e.g. "512MiB"
	CleanupRatio float64  `yaml:"cleanup_ratio"`
	ProtectList  []uint64 `yaml:"protect_list"`
	Policy       string   `yaml:"policy"` // lru, 2q
	Ghosts       int      `yaml:"ghosts"` // 2q ghost ring size
	Shards       int      `yaml:"shards"`
}

// WorkersConfig represents the worker pool
type WorkersConfig struct {
	Threads   int `yaml:"threads"`
	QueueSize int `yaml:"queue_size"`
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// SourceConfig represents the data source the cache loads from
type SourceConfig struct {
	Kind        string `yaml:"kind"` // memory, dir, s3, minio
	Dir         string `yaml:"dir"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Secure      bool   `yaml:"secure"`
	Codec       string `yaml:"codec"` // none, lz4, zstd
	MaxInFlight int64  `yaml:"max_in_flight"`
	BytesPerSec string `yaml:"bytes_per_sec"` // e.g. "200MB"; empty = unlimited
}

// NewDefault returns a configuration with default values
func NewDefault() *Configuration {
	return &Configuration{
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Cache: CacheConfig{
			Name:         "data cache",
			MaxMemory:    "512MiB",
			CleanupRatio: 0.8,
			Policy:       "lru",
			Ghosts:       1024,
		},
		Workers: WorkersConfig{
			Threads: 4,
		},
		Metrics: MetricsConfig{
			Addr:      ":2112",
			Namespace: "lodcache",
		},
		Source: SourceConfig{
			Kind:  "memory",
			Codec: "none",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides settings from LODCACHE_* environment variables
func (c *Configuration) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = val
		}
	}
	integer := func(name string, dst *int) error {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("CACHE_MAX_MEMORY", &c.Cache.MaxMemory)
	str("CACHE_POLICY", &c.Cache.Policy)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("SOURCE_KIND", &c.Source.Kind)
	str("SOURCE_DIR", &c.Source.Dir)
	str("SOURCE_BUCKET", &c.Source.Bucket)
	str("SOURCE_ENDPOINT", &c.Source.Endpoint)
	str("SOURCE_CODEC", &c.Source.Codec)

	if val := os.Getenv(EnvPrefix + "CACHE_CLEANUP_RATIO"); val != "" {
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %sCACHE_CLEANUP_RATIO: %w", EnvPrefix, err)
		}
		c.Cache.CleanupRatio = r
	}
	if val := os.Getenv(EnvPrefix + "CACHE_PROTECT_LIST"); val != "" {
		ids, err := parseIDList(val)
		if err != nil {
			return fmt.Errorf("invalid %sCACHE_PROTECT_LIST: %w", EnvPrefix, err)
		}
		c.Cache.ProtectList = ids
	}
	if err := integer("CACHE_SHARDS", &c.Cache.Shards); err != nil {
		return err
	}
	if err := integer("WORKERS_THREADS", &c.Workers.Threads); err != nil {
		return err
	}
	return nil
}

func parseIDList(s string) ([]uint64, error) {
	var ids []uint64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseUint(f, 0, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	maxMem, err := ParseSize(c.Cache.MaxMemory)
	if err != nil {
		return fmt.Errorf("cache.max_memory: %w", err)
	}
	if maxMem <= 0 {
		return fmt.Errorf("cache.max_memory must be greater than 0")
	}
	if c.Cache.CleanupRatio <= 0 || c.Cache.CleanupRatio > 1 {
		return fmt.Errorf("cache.cleanup_ratio must be in (0, 1], got %v", c.Cache.CleanupRatio)
	}
	switch strings.ToLower(c.Cache.Policy) {
	case "", "lru", "2q":
	default:
		return fmt.Errorf("invalid cache.policy: %s (must be one of: lru, 2q)", c.Cache.Policy)
	}
	if c.Cache.Shards < 0 {
		return fmt.Errorf("cache.shards must not be negative")
	}
	if c.Workers.Threads <= 0 {
		return fmt.Errorf("workers.threads must be greater than 0")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %s (must be one of: text, json)", c.Log.Format)
	}

	switch c.Source.Kind {
	case "memory":
	case "dir":
		if c.Source.Dir == "" {
			return fmt.Errorf("source.dir is required for kind dir")
		}
	case "s3", "minio":
		if c.Source.Bucket == "" {
			return fmt.Errorf("source.bucket is required for kind %s", c.Source.Kind)
		}
		if c.Source.Kind == "minio" && c.Source.Endpoint == "" {
			return fmt.Errorf("source.endpoint is required for kind minio")
		}
	default:
		return fmt.Errorf("invalid source.kind: %s (must be one of: memory, dir, s3, minio)", c.Source.Kind)
	}
	if c.Source.BytesPerSec != "" {
		if _, err := ParseSize(c.Source.BytesPerSec); err != nil {
			return fmt.Errorf("source.bytes_per_sec: %w", err)
		}
	}
	return nil
}

// MaxMemoryBytes returns cache.max_memory in bytes.
func (c *Configuration) MaxMemoryBytes() int64 {
	n, _ := ParseSize(c.Cache.MaxMemory)
	return n
}

// ParseSize parses sizes such as "4096", "512MiB" or "2GB".
// SI suffixes are powers of 1000, IEC suffixes (KiB, MiB, GiB) powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", s)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size too large: %s", s)
	}
	return int64(n), nil
}
