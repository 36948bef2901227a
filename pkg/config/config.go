// Package config handles gomvd.toml host configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"gomvd/pkg/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "gomvd.toml"

// Config is the host configuration. Every section is optional.
type Config struct {
	VM      VMConfig      `toml:"vm"`
	Desktop DesktopConfig `toml:"desktop"`
	Log     LogConfig     `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// VMConfig configures the stack machine.
type VMConfig struct {
	MemorySize int  `toml:"memory-size"`
	Trace      bool `toml:"trace"`
	// StepBudget bounds a console run; 0 means unlimited.
	StepBudget int `toml:"step-budget"`
}

// DesktopConfig configures the windowed host.
type DesktopConfig struct {
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	StepsPerFrame int    `toml:"steps-per-frame"`
	Title         string `toml:"title"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

func Default() *Config {
	return &Config{
		VM: VMConfig{MemorySize: 1024},
		Desktop: DesktopConfig{
			Width:         640,
			Height:        480,
			StepsPerFrame: 10000,
			Title:         "MVD",
		},
	}
}

// Parse reads configuration text on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c)
	if err != nil {
		return nil, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("unknown key %q", undec[0].String())
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses the gomvd.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir looking for gomvd.toml and loads the
// first one found. Defaults are returned when there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	switch {
	case c.VM.MemorySize < 1:
		return fmt.Errorf("vm.memory-size must be positive, got %d", c.VM.MemorySize)
	case c.VM.StepBudget < 0:
		return fmt.Errorf("vm.step-budget must not be negative, got %d", c.VM.StepBudget)
	case c.Desktop.Width < 1 || c.Desktop.Height < 1:
		return fmt.Errorf("desktop window size must be positive, got %dx%d", c.Desktop.Width, c.Desktop.Height)
	case c.Desktop.StepsPerFrame < 1:
		return fmt.Errorf("desktop.steps-per-frame must be positive, got %d", c.Desktop.StepsPerFrame)
	}
	return nil
}

// VMOptions turns the [vm] section into machine options.
func (c *Config) VMOptions() []vm.Option {
	return []vm.Option{
		vm.WithMemorySize(c.VM.MemorySize),
		vm.WithTrace(c.VM.Trace),
	}
}

// ConfigureLogging applies the [log] section. Tracing needs debug verbosity
// to be visible, so it raises the level when set.
func (c *Config) ConfigureLogging() {
	verbosity := c.Log.Verbosity
	if c.VM.Trace && verbosity < 2 {
		verbosity = 2
	}
	var path *string
	if c.Log.File != "" {
		path = &c.Log.File
	}
	commonlog.Configure(verbosity, path)
}
