package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config is the livecode configuration, loaded from YAML and overridden by
// flags.
type Config struct {
	File     string         `yaml:"file"`
	LogLevel string         `yaml:"log_level"`
	Watch    WatchConfig    `yaml:"watch"`
	Sketch   SketchConfig   `yaml:"sketch"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	// MaxCallStackSize bounds script recursion.
	MaxCallStackSize int `yaml:"max_call_stack_size"`
	// PrintFrame logs the display list after every successful run.
	PrintFrame bool `yaml:"print_frame"`
}

// WatchConfig controls polling of the script file.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// SketchConfig controls the drawing library.
type SketchConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Seed   *uint64 `yaml:"seed"`
}

// Watchdog trip policies, see WatchdogConfig.OnTrip.
const (
	OnTripAbort    = `abort`
	OnTripContinue = `continue`
)

// WatchdogConfig controls infinite loop detection.
type WatchdogConfig struct {
	// OnTrip is either OnTripAbort (the default) or OnTripContinue, which
	// lets a stalled script keep running, checking again after twice the
	// delay.
	OnTrip    string        `yaml:"on_trip"`
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxStall aborts a continued script once it has stalled this long. Zero
	// means no limit.
	MaxStall time.Duration `yaml:"max_stall"`
	Disabled bool          `yaml:"disabled"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func defaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == `` {
		c.LogLevel = logiface.LevelInformational.String()
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 250 * time.Millisecond
	}
	if c.Watch.Debounce < 0 {
		c.Watch.Debounce = 0
	}
	if c.Sketch.Width <= 0 {
		c.Sketch.Width = 400
	}
	if c.Sketch.Height <= 0 {
		c.Sketch.Height = 400
	}
	if c.Watchdog.OnTrip == `` {
		c.Watchdog.OnTrip = OnTripAbort
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.File == `` {
		return errors.New("no script file")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxCallStackSize < 0 {
		return errors.New("max_call_stack_size must not be negative")
	}
	switch c.Watchdog.OnTrip {
	case OnTripAbort, OnTripContinue:
	default:
		return fmt.Errorf("watchdog.on_trip: unknown policy %q", c.Watchdog.OnTrip)
	}
	if c.Watchdog.MaxStall < 0 {
		return errors.New("watchdog.max_stall must not be negative")
	}
	return nil
}

// parseLevel accepts the short level names used in log output.
func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
