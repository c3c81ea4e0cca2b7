// Package config loads the description of a simulated system from TOML and
// from the environment.
package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variables that override file values.
const (
	EnvLogLevel    = "BUSIM_LOG_LEVEL"
	EnvTraceSQLite = "BUSIM_TRACE_SQLITE"
	EnvMaxTicks    = "BUSIM_MAX_TICKS"
	EnvMonitorPort = "BUSIM_MONITOR_PORT"
)

// Config describes a whole system.
type Config struct {
	LogLevel string        `toml:"log_level"`
	Clock    ClockConfig   `toml:"clock"`
	Trace    TraceConfig   `toml:"trace"`
	Monitor  MonitorConfig `toml:"monitor"`
	Devices  []Device      `toml:"devices"`
}

// ClockConfig bounds how long a single access may take.
type ClockConfig struct {
	MaxTicksPerAccess int `toml:"max_ticks_per_access"`
}

// TraceConfig selects the tracers attached to the bus and the memories.
type TraceConfig struct {
	Log bool `toml:"log"`

	// SQLite is the name of the trace database. Empty disables it.
	SQLite string `toml:"sqlite"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Port int `toml:"port"`
}

// Device describes one memory and its window on the bus.
type Device struct {
	Name      string `toml:"name"`
	Start     int64  `toml:"start"`
	Size      int64  `toml:"size"`
	Capacity  uint64 `toml:"capacity"`
	Latency   int    `toml:"latency"`
	ByteOrder string `toml:"byte_order"`
}

// End returns the first address above the window.
func (d Device) End() int64 {
	return d.Start + d.Size
}

// Order returns the byte order named by the device.
func (d Device) Order() (binary.ByteOrder, error) {
	return ParseByteOrder(d.ByteOrder)
}

// ParseByteOrder maps "little" and "big" to byte orders. An empty name means
// little endian.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "", "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, errors.Errorf("unknown byte order %q", name)
	}
}

// Defaults returns a system with a single 4 KB little-endian RAM at address
// 0 with a latency of 2 cycles.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Clock:    ClockConfig{MaxTicksPerAccess: 1000},
		Trace:    TraceConfig{},
		Monitor:  MonitorConfig{Port: 0},
		Devices: []Device{
			{
				Name:      "ram",
				Start:     0,
				Size:      0x1000,
				Capacity:  0x1000,
				Latency:   2,
				ByteOrder: "little",
			},
		},
	}
}

// Load reads a system file. Values missing from the file keep their
// defaults, except for the devices, which the file replaces entirely.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "loading config")
	}

	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading %s", path)
	}

	return cfg, nil
}

// Parse decodes a system description held in memory. Unknown keys are
// errors.
func Parse(data string) (Config, error) {
	cfg := Defaults()
	cfg.Devices = nil

	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown key %q", undecoded[0].String())
	}

	cfg.fillDeviceDefaults()

	return cfg, nil
}

func (c *Config) fillDeviceDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]

		if d.Capacity == 0 && d.Size > 0 {
			d.Capacity = uint64(d.Size)
		}

		if d.ByteOrder == "" {
			d.ByteOrder = "little"
		}
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored. Without arguments, ".env" in the
// working directory is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "loading %s", f)
		}
	}

	return nil
}

// ApplyEnv overrides values with the BUSIM_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	if v, ok := lookup(EnvTraceSQLite); ok {
		c.Trace.SQLite = v
	}

	if v, ok := lookup(EnvMaxTicks); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvMaxTicks)
		}
		c.Clock.MaxTicksPerAccess = n
	}

	if v, ok := lookup(EnvMonitorPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvMonitorPort)
		}
		c.Monitor.Port = n
	}

	return nil
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the config and reports all problems at once. Overlapping
// windows are allowed; the bus resolves them by device order.
func (c Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Clock.MaxTicksPerAccess <= 0 {
		addf("clock.max_ticks_per_access must be positive")
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		addf("monitor.port %d out of range", c.Monitor.Port)
	}

	if len(c.Devices) == 0 {
		addf("at least one device is required")
	}

	names := make(map[string]bool)
	for i, d := range c.Devices {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("devices[%d]", i)
			addf("%s has no name", label)
		} else if names[d.Name] {
			addf("device name %q is used twice", d.Name)
		}
		names[d.Name] = true

		if d.Start < 0 {
			addf("%s: start must not be negative", label)
		}

		if d.Size <= 0 {
			addf("%s: size must be positive", label)
		}

		if d.Capacity < uint64(max(d.Size, 0)) {
			addf("%s: capacity %#x is smaller than the window %#x",
				label, d.Capacity, d.Size)
		}

		if d.Latency < 0 {
			addf("%s: latency must not be negative", label)
		}

		if _, err := d.Order(); err != nil {
			addf("%s: %v", label, err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}
