// Package config loads inspector settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// BasePolicy says what happens to the cached EE memory base when the
// session attaches to a process again.
type BasePolicy string

const (
	// Reattach forgets the base on every attach, so a restarted emulator
	// is resolved afresh.
	Reattach BasePolicy = "reattach"
	// Keep holds the first resolved base for the life of the session.
	Keep BasePolicy = "keep"
)

type Process struct {
	Name string `yaml:"name"`
	PID  int    `yaml:"pid"`
}

type Config struct {
	Process       Process       `yaml:"process"`
	Symbol        string        `yaml:"symbol"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BasePolicy    BasePolicy    `yaml:"base_policy"`
	Layout        string        `yaml:"layout"`
	RootAddress   uint64        `yaml:"root_address"`
	MaxDepth      int           `yaml:"max_depth"`
	NameCacheSize uint32        `yaml:"name_cache_size"`
	Verbose       bool          `yaml:"verbose"`
}

func defaultProcessName() string {
	if runtime.GOOS == "windows" {
		return "pcsx2-qt.exe"
	}
	return "pcsx2-qt"
}

func Default() *Config {
	return &Config{
		Process:       Process{Name: defaultProcessName()},
		Symbol:        "EEmem",
		PollInterval:  250 * time.Millisecond,
		BasePolicy:    Reattach,
		MaxDepth:      16,
		NameCacheSize: 4096,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// an empty or comment-only file leaves the defaults
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Process.Name == "" && c.Process.PID <= 0 {
		return fmt.Errorf("process: need a name or a pid")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol: must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval: must be positive, got %s", c.PollInterval)
	}
	switch c.BasePolicy {
	case Reattach, Keep:
	default:
		return fmt.Errorf("base_policy: %q is not %q or %q", c.BasePolicy, Reattach, Keep)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth: must be at least 1, got %d", c.MaxDepth)
	}
	return nil
}
