// Package config loads the optional .candy configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default values for runner configuration.
const (
	DefaultMaxLine       = 1 << 20 // 1 MiB
	DefaultLogLevel      = "info"
	DefaultStoreKind     = StoreDisk
	DefaultStoreCapacity = 5
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
	StoreSQLite = "sqlite"
)

// FileNames lists the config file names searched for, in order of preference.
var FileNames = []string{".candy.yaml", ".candy.yml", ".candy.toml"}

// Config holds the parsed .candy configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version    int               `yaml:"version" toml:"version"`
	Env        map[string]string `yaml:"env" toml:"env"` // added to every task's environment
	RawMaxLine int               `yaml:"max_line" toml:"max_line"`
	RawLevel   string            `yaml:"log_level" toml:"log_level"`
	Store      StoreConfig       `yaml:"store" toml:"store"`
}

// StoreConfig selects where run records are kept.
type StoreConfig struct {
	Kind        string `yaml:"kind" toml:"kind"` // memory, disk or sqlite
	Dir         string `yaml:"dir" toml:"dir"`   // default: os.TempDir()/candy-runs
	RawCapacity int    `yaml:"capacity" toml:"capacity"`
}

// MaxLine returns the configured maximum line length or the default.
func (c *Config) MaxLine() int {
	if c.RawMaxLine > 0 {
		return c.RawMaxLine
	}
	return DefaultMaxLine
}

// LogLevel returns the configured log level or the default.
func (c *Config) LogLevel() string {
	if c.RawLevel != "" {
		return c.RawLevel
	}
	return DefaultLogLevel
}

// StoreKind returns the configured store kind or the default.
func (c *Config) StoreKind() string {
	if c.Store.Kind != "" {
		return c.Store.Kind
	}
	return DefaultStoreKind
}

// StoreDir returns the configured store directory or the default.
func (c *Config) StoreDir() string {
	if c.Store.Dir != "" {
		return c.Store.Dir
	}
	return filepath.Join(os.TempDir(), "candy-runs")
}

// StoreCapacity returns the configured in-memory cache size or the default.
func (c *Config) StoreCapacity() int {
	if c.Store.RawCapacity > 0 {
		return c.Store.RawCapacity
	}
	return DefaultStoreCapacity
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.StoreKind() {
	case StoreMemory, StoreDisk, StoreSQLite:
	default:
		return fmt.Errorf("store.kind %q: want memory, disk or sqlite", c.Store.Kind)
	}
	if c.RawMaxLine < 0 {
		return fmt.Errorf("max_line %d: must not be negative", c.RawMaxLine)
	}
	return nil
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // config file that was read; empty when none was found
}

// Load finds and reads the nearest .candy file, walking upward from dir.
// If none exists, a default Config is returned. CANDY_* environment
// variables are applied on top of the file either way.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := &Config{}
		applyEnv(cfg, os.LookupEnv)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg}, nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file, choosing the decoder by extension.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if filepath.Ext(path) == ".toml" {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// applyEnv overlays CANDY_* variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("CANDY_LOG_LEVEL"); ok && v != "" {
		cfg.RawLevel = strings.ToLower(v)
	}
	if v, ok := lookup("CANDY_STORE_KIND"); ok && v != "" {
		cfg.Store.Kind = strings.ToLower(v)
	}
	if v, ok := lookup("CANDY_STORE_DIR"); ok && v != "" {
		cfg.Store.Dir = v
	}
	if v, ok := lookup("CANDY_MAX_LINE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RawMaxLine = n
		}
	}
}

// find walks upward from dir and returns the first config file found.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
