package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/firmware"
	"github.com/fiberpos/tendo-go/pkg/log"
	"github.com/fiberpos/tendo-go/pkg/positioner"
	"github.com/fiberpos/tendo-go/pkg/transport"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("invalid configuration")

var bitratePattern = regexp.MustCompile(`^S[0-8]$`)

// Config is the complete driver configuration.
type Config struct {
	// Serial holds the settings shared by every transceiver.
	Serial transport.Config `yaml:"serial"`

	// Transceivers selects transceivers by serial number or port. An empty
	// list opens every transceiver found.
	Transceivers []Transceiver `yaml:"transceivers"`

	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Positioner PositionerConfig `yaml:"positioner"`
	Firmware   firmware.Config  `yaml:"firmware"`
	Reopen     ReopenConfig     `yaml:"reopen"`
	Trace      TraceConfig      `yaml:"trace"`
	State      StateConfig      `yaml:"state"`
}

// Transceiver selects one USB-CAN adapter.
type Transceiver struct {
	SerialNumber string `yaml:"serial,omitempty"`
	PortName     string `yaml:"port,omitempty"`
}

// DispatchConfig configures the request dispatchers.
type DispatchConfig struct {
	PollInterval time.Duration     `yaml:"poll_interval"`
	Timeouts     dispatch.Timeouts `yaml:"timeouts"`
}

// PositionerConfig configures the units.
type PositionerConfig struct {
	// RebootSettle is the pause after a reboot before the bootloader is
	// queried.
	RebootSettle time.Duration `yaml:"reboot_settle"`
}

// ReopenConfig configures recovery of a lost transceiver.
type ReopenConfig struct {
	MaxAttempts int                     `yaml:"max_attempts"`
	Backoff     transport.BackoffConfig `yaml:"backoff"`
}

// TraceConfig configures the protocol trace.
type TraceConfig struct {
	// File is the .plog path. Empty disables the file trace.
	File string `yaml:"file"`

	// Console also writes trace events to the operational logger at
	// debug level.
	Console bool `yaml:"console"`
}

// StateConfig configures the fleet state file.
type StateConfig struct {
	// File is the JSON state path. Empty disables persistence.
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := decode(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load reads the file at path over the built-in defaults and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the built-in defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Serial.Bitrate != "" && !bitratePattern.MatchString(c.Serial.Bitrate) {
		bad("serial.bitrate %q is not one of S0..S8", c.Serial.Bitrate)
	}
	if c.Serial.BaudRate < 0 {
		bad("serial.baud must not be negative")
	}
	if c.Serial.CommandDelay < 0 || c.Serial.ReadTimeout < 0 {
		bad("serial delays must not be negative")
	}

	seen := make(map[Transceiver]bool)
	for i, t := range c.Transceivers {
		if t.SerialNumber == "" && t.PortName == "" {
			bad("transceivers[%d] names neither serial nor port", i)
		}
		if seen[t] {
			bad("transceivers[%d] is listed twice", i)
		}
		seen[t] = true
	}

	if c.Dispatch.PollInterval <= 0 {
		bad("dispatch.poll_interval must be positive")
	}
	t := c.Dispatch.Timeouts
	for class, d := range map[dispatch.TimeoutClass]time.Duration{
		dispatch.ClassDefault:        t.Default,
		dispatch.ClassQuick:          t.Quick,
		dispatch.ClassSetPosition:    t.SetPosition,
		dispatch.ClassSave:           t.Save,
		dispatch.ClassBootloader:     t.Bootloader,
		dispatch.ClassFirmwareHeader: t.FirmwareHeader,
		dispatch.ClassFirmwareChunk:  t.FirmwareChunk,
		dispatch.ClassStatus:         t.Status,
	} {
		if d < 0 {
			bad("dispatch.timeouts for %s must not be negative", class)
		}
	}

	if c.Positioner.RebootSettle < 0 {
		bad("positioner.reboot_settle must not be negative")
	}

	if c.Firmware.RebootDelay < 0 || c.Firmware.HeaderSettle < 0 {
		bad("firmware delays must not be negative")
	}
	if c.Firmware.VerifyAttempts < 1 {
		bad("firmware.verify_attempts must be at least 1")
	}
	if c.Firmware.ProgressEvery < 1 {
		bad("firmware.progress_every must be at least 1")
	}

	if c.Reopen.MaxAttempts < 0 {
		bad("reopen.max_attempts must not be negative")
	}
	if b := c.Reopen.Backoff; b.Jitter < 0 || b.Jitter > 1 {
		bad("reopen.backoff.jitter must be within [0, 1]")
	}

	return errors.Join(errs...)
}

// TransportConfigs returns one transport configuration per listed
// transceiver, or the shared settings alone when none is listed.
func (c *Config) TransportConfigs(trace log.Logger, logger *slog.Logger) []transport.Config {
	base := c.Serial
	base.Trace = trace
	base.Logger = logger
	if len(c.Transceivers) == 0 {
		return []transport.Config{base}
	}
	out := make([]transport.Config, 0, len(c.Transceivers))
	for _, t := range c.Transceivers {
		tc := base
		tc.SerialNumber = t.SerialNumber
		tc.PortName = t.PortName
		out = append(out, tc)
	}
	return out
}

// DispatchConfig returns the dispatcher configuration for one session.
func (c *Config) DispatchConfig(sessionID string, trace log.Logger, logger *slog.Logger) dispatch.Config {
	return dispatch.Config{
		PollInterval: c.Dispatch.PollInterval,
		Timeouts:     c.Dispatch.Timeouts,
		Trace:        trace,
		SessionID:    sessionID,
		Logger:       logger,
	}
}

// FleetConfig returns the fleet configuration.
func (c *Config) FleetConfig(logger *slog.Logger) positioner.FleetConfig {
	return positioner.FleetConfig{
		Unit: positioner.UnitConfig{
			RebootSettle: c.Positioner.RebootSettle,
			Logger:       logger,
		},
		Logger: logger,
	}
}

// FirmwareConfig returns the upgrade configuration.
func (c *Config) FirmwareConfig(trace log.Logger, logger *slog.Logger) firmware.Config {
	fc := c.Firmware
	fc.Trace = trace
	fc.Logger = logger
	return fc
}
