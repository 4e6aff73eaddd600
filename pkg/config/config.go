package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/KevoDB/lsmcore/pkg/common/log"
	"github.com/KevoDB/lsmcore/pkg/telemetry"
	"github.com/cockroachdb/errors"
)

const (
	CurrentConfigVersion = 1

	// MaxBlockSize is the largest block an entry-count and offset of u16 can describe
	MaxBlockSize = 65535

	envPrefix = "LSMCORE_"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("configuration file not found")
)

type Config struct {
	Version int `json:"version"`

	// MemTable configuration
	MemTableSize          int64 `json:"memtable_size"`
	MaxImmutableMemTables int   `json:"max_immutable_memtables"`
	MaxMemTableAge        int64 `json:"max_memtable_age"` // seconds, 0 disables age-based rotation

	// Sorted run configuration
	BlockSize     int   `json:"block_size"`
	RunTargetSize int64 `json:"run_target_size"`

	LogLevel string `json:"log_level"`

	Telemetry telemetry.Config `json:"telemetry"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,

		// MemTable defaults
		MemTableSize:          32 * 1024 * 1024, // 32MB
		MaxImmutableMemTables: 4,
		MaxMemTableAge:        600, // 10 minutes

		// Sorted run defaults
		BlockSize:     16 * 1024,        // 16KB
		RunTargetSize: 64 * 1024 * 1024, // 64MB

		LogLevel: "info",

		Telemetry: telemetry.DefaultConfig(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "invalid version %d", c.Version)
	}

	if c.MemTableSize <= 0 {
		return errors.Wrap(ErrInvalidConfig, "memtable size must be positive")
	}

	if c.MaxImmutableMemTables <= 0 {
		return errors.Wrap(ErrInvalidConfig, "max immutable memtables must be positive")
	}

	if c.MaxMemTableAge < 0 {
		return errors.Wrap(ErrInvalidConfig, "max memtable age cannot be negative")
	}

	if c.BlockSize <= 0 || c.BlockSize > MaxBlockSize {
		return errors.Wrapf(ErrInvalidConfig, "block size must be in (0, %d], got %d", MaxBlockSize, c.BlockSize)
	}

	if c.RunTargetSize < int64(c.BlockSize) {
		return errors.Wrapf(ErrInvalidConfig, "run target size %d is smaller than block size %d",
			c.RunTargetSize, c.BlockSize)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}

	if c.Telemetry.Enabled {
		if err := c.Telemetry.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "telemetry: %v", err)
		}
	}

	return nil
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() log.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// LoadFromEnv overrides fields from LSMCORE_* variables, including the
// LSMCORE_TELEMETRY_* group. Unparseable values are ignored and left for
// Validate to judge what remains.
func (c *Config) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := os.Getenv(envPrefix + "MEMTABLE_SIZE"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.MemTableSize = size
		}
	}

	if val := os.Getenv(envPrefix + "MAX_IMMUTABLE_MEMTABLES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxImmutableMemTables = n
		}
	}

	if val := os.Getenv(envPrefix + "MAX_MEMTABLE_AGE"); val != "" {
		if age, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.MaxMemTableAge = age
		}
	}

	if val := os.Getenv(envPrefix + "BLOCK_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.BlockSize = size
		}
	}

	if val := os.Getenv(envPrefix + "RUN_TARGET_SIZE"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.RunTargetSize = size
		}
	}

	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}

	c.Telemetry.LoadFromEnv()
}

// LoadJSON reads and validates a configuration file written by SaveJSON
func LoadJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrap(err, "failed to read config")
	}

	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "decode %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveJSON validates the configuration and writes it to path atomically
func (c *Config) SaveJSON(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	if err := os.Rename(tempPath, path); err != nil {
		return errors.Wrap(err, "failed to rename config")
	}

	return nil
}

// Clone returns an independent copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cloneLocked()
}

func (c *Config) cloneLocked() *Config {
	clone := &Config{
		Version:               c.Version,
		MemTableSize:          c.MemTableSize,
		MaxImmutableMemTables: c.MaxImmutableMemTables,
		MaxMemTableAge:        c.MaxMemTableAge,
		BlockSize:             c.BlockSize,
		RunTargetSize:         c.RunTargetSize,
		LogLevel:              c.LogLevel,
		Telemetry:             c.Telemetry,
	}
	clone.Telemetry.Exporters = append([]string(nil), c.Telemetry.Exporters...)
	return clone
}

// Update applies fn to a copy of the configuration and commits the result
// only if it validates. On error the configuration is left unchanged.
func (c *Config) Update(fn func(*Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneLocked()
	fn(next)
	if err := next.Validate(); err != nil {
		return err
	}

	c.Version = next.Version
	c.MemTableSize = next.MemTableSize
	c.MaxImmutableMemTables = next.MaxImmutableMemTables
	c.MaxMemTableAge = next.MaxMemTableAge
	c.BlockSize = next.BlockSize
	c.RunTargetSize = next.RunTargetSize
	c.LogLevel = next.LogLevel
	c.Telemetry = next.Telemetry
	return nil
}
