// Package config loads the simulator's YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/timing"
)

// Default values applied to fields left empty.
const (
	DefaultSpeed      = "HS"
	DefaultAddress    = 1
	DefaultTurnaround = 4
	DefaultStore      = "utmisim.db"
	DefaultMaxPayload = 16
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"
	DefaultLogSizeMB  = 10
	DefaultLogBackups = 3
)

// Config is the on-disk configuration.
type Config struct {
	Speed   string        `yaml:"speed"`
	Timing  TimingConfig  `yaml:"timing"`
	Device  DeviceConfig  `yaml:"device"`
	Store   string        `yaml:"store"`
	Vectors VectorsConfig `yaml:"vectors"`
	Logs    LogsConfig    `yaml:"logs"`
}

// TimingConfig overrides entries of the default timing table. Nil fields
// keep the default.
type TimingConfig struct {
	TxInterEventDelay *int `yaml:"txInterEventDelay"`
	RxInterEventDelay *int `yaml:"rxInterEventDelay"`
	RxTimeout         *int `yaml:"rxTimeout"`
	StartDelay        *int `yaml:"startDelay"`
	EndDelay          *int `yaml:"endDelay"`
	StrobeHoldFS      *int `yaml:"strobeHoldFS"`
	StrobeHoldHS      *int `yaml:"strobeHoldHS"`
}

// DeviceConfig describes the simulated device.
type DeviceConfig struct {
	Address    int `yaml:"address"`
	Turnaround int `yaml:"turnaround"`
}

// VectorsConfig controls vector catalog generation.
type VectorsConfig struct {
	MaxPayload int `yaml:"maxPayload"`
}

// LogsConfig configures logging output.
type LogsConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration at path. Relative store and log file paths
// are resolved against the directory holding the file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	cfg.Store = resolvePath(base, cfg.Store)
	cfg.Logs.File = resolvePath(base, cfg.Logs.File)
	return cfg, nil
}

// Decode reads a configuration from r, rejecting unknown fields, then
// fills defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// Marshal encodes cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Speed) == "" {
		c.Speed = DefaultSpeed
	}
	if c.Device.Address == 0 {
		c.Device.Address = DefaultAddress
	}
	if c.Device.Turnaround == 0 {
		c.Device.Turnaround = DefaultTurnaround
	}
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.Vectors.MaxPayload == 0 {
		c.Vectors.MaxPayload = DefaultMaxPayload
	}
	if c.Logs.Level == "" {
		c.Logs.Level = DefaultLogLevel
	}
	if c.Logs.Format == "" {
		c.Logs.Format = DefaultLogFormat
	}
	if c.Logs.MaxSizeMB == 0 {
		c.Logs.MaxSizeMB = DefaultLogSizeMB
	}
	if c.Logs.MaxBackups == 0 {
		c.Logs.MaxBackups = DefaultLogBackups
	}
}

// Validate checks every field holds a usable value.
func (c Config) Validate() error {
	if _, err := timing.ParseSpeed(c.Speed); err != nil {
		return err
	}
	if c.Device.Address < 0 || c.Device.Address > packet.MaxAddress {
		return fmt.Errorf("device address %d: %w", c.Device.Address, pkg.ErrInvalidParameter)
	}
	if c.Device.Turnaround < 0 {
		return fmt.Errorf("device turnaround %d: %w", c.Device.Turnaround, pkg.ErrInvalidParameter)
	}
	if c.Vectors.MaxPayload < 0 {
		return fmt.Errorf("vector payload %d: %w", c.Vectors.MaxPayload, pkg.ErrInvalidParameter)
	}
	for name, v := range map[string]*int{
		"txInterEventDelay": c.Timing.TxInterEventDelay,
		"rxInterEventDelay": c.Timing.RxInterEventDelay,
		"rxTimeout":         c.Timing.RxTimeout,
		"startDelay":        c.Timing.StartDelay,
		"endDelay":          c.Timing.EndDelay,
		"strobeHoldFS":      c.Timing.StrobeHoldFS,
		"strobeHoldHS":      c.Timing.StrobeHoldHS,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("timing %s %d: %w", name, *v, pkg.ErrInvalidParameter)
		}
	}
	if _, err := pkg.ParseLevel(c.Logs.Level); err != nil {
		return err
	}
	if _, err := pkg.ParseLogFormat(c.Logs.Format); err != nil {
		return err
	}
	return nil
}

// BusSpeed returns the parsed bus speed.
func (c Config) BusSpeed() timing.Speed {
	s, _ := timing.ParseSpeed(c.Speed)
	return s
}

// Table returns the default timing table with the configured overrides.
func (c Config) Table() timing.Table {
	t := timing.DefaultTable()
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	set(&t.TxInterEventDelay, c.Timing.TxInterEventDelay)
	set(&t.RxInterEventDelay, c.Timing.RxInterEventDelay)
	set(&t.RxTimeout, c.Timing.RxTimeout)
	set(&t.StartDelay, c.Timing.StartDelay)
	set(&t.EndDelay, c.Timing.EndDelay)
	set(&t.StrobeHoldFS, c.Timing.StrobeHoldFS)
	set(&t.StrobeHoldHS, c.Timing.StrobeHoldHS)
	return t
}

// Rotation returns the log rotation settings.
func (c Config) Rotation() pkg.RotationConfig {
	return pkg.RotationConfig{
		Filename:   c.Logs.File,
		MaxSizeMB:  c.Logs.MaxSizeMB,
		MaxAgeDays: c.Logs.MaxAgeDays,
		MaxBackups: c.Logs.MaxBackups,
		Compress:   c.Logs.Compress,
	}
}

// ApplyLogging configures the package logger from c. When a log file is
// set the returned closer must be closed on exit; otherwise it is nil.
func (c Config) ApplyLogging(stderr io.Writer) (io.Closer, error) {
	level, err := pkg.ParseLevel(c.Logs.Level)
	if err != nil {
		return nil, err
	}
	format, err := pkg.ParseLogFormat(c.Logs.Format)
	if err != nil {
		return nil, err
	}
	pkg.SetLogLevel(level)

	var closer io.Closer
	out := stderr
	if c.Logs.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logs.File), 0o755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		rf := pkg.NewRotatingFile(c.Rotation())
		out, closer = rf, rf
	}
	pkg.SetOutput(out)
	pkg.SetLogFormat(format)
	pkg.LogDebug(pkg.ComponentCLI, "logging configured",
		slog.String("level", level.String()), slog.String("format", format.String()))
	return closer, nil
}

func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}
