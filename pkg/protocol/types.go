package protocol

import (
	"fmt"
	"time"

	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/errors"
)

// Config is the root configuration of the boot controller.
type Config struct {
	Version       string              `yaml:"version"`
	Controller    ControllerConfig    `yaml:"controller"`
	Reset         ResetConfig         `yaml:"reset"`
	GPIO          GPIOConfig          `yaml:"gpio"`
	Paths         PathsConfig         `yaml:"paths"`
	Services      []ServiceConfig     `yaml:"services"`
	Recovery      RecoveryConfig      `yaml:"recovery"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ControllerConfig struct {
	Name string `yaml:"name"`
}

// ResetConfig holds the hold-classification timing knobs as duration strings
// ("3s", "20ms"). Empty fields fall back to the hardware defaults.
type ResetConfig struct {
	Debounce     string `yaml:"debounce"`
	PollInterval string `yaml:"poll_interval"`
	HoldReboot   string `yaml:"hold_reboot"`
	HoldRecovery string `yaml:"hold_recovery"`
	HoldFactory  string `yaml:"hold_factory"`

	// RebootCommand and HaltCommand hand the device to the init system after
	// a classified hold; empty values fall back to "reboot" and "halt".
	RebootCommand []string `yaml:"reboot_command"`
	HaltCommand   []string `yaml:"halt_command"`
}

// GPIOConfig holds Broadcom line numbers for the four hardware signals.
type GPIOConfig struct {
	StatusSolid int `yaml:"status_solid"` // high = solid, low = blinking
	StatusGreen int `yaml:"status_green"` // high = green, low = red
	ResetN      int `yaml:"reset_n"`      // active-low reset button input
	Standby     int `yaml:"standby"`      // high = power MCU standby request
}

type PathsConfig struct {
	MarkerDir  string `yaml:"marker_dir"`
	UpdateDir  string `yaml:"update_dir"`
	UpdateGlob string `yaml:"update_glob"`
	BootLog    string `yaml:"boot_log"`
}

// ServiceConfig describes one supervised service: the artifact it runs and
// the fixed resource bindings its container gets.
type ServiceConfig struct {
	Name       consts.ServiceName `yaml:"name"`
	Image      string             `yaml:"image"`
	Network    string             `yaml:"network"`
	Privileged bool               `yaml:"privileged"`
	Mounts     []string           `yaml:"mounts"`
	Devices    []string           `yaml:"devices"`
}

type RecoveryConfig struct {
	Command []string `yaml:"command"`
}

type ObservabilityConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
}

// ResetTimings is ResetConfig parsed into concrete durations.
type ResetTimings struct {
	Debounce     time.Duration
	PollInterval time.Duration
	HoldReboot   time.Duration
	HoldRecovery time.Duration
	HoldFactory  time.Duration
}

// Timings parses the reset section, applying defaults for empty fields.
func (c *Config) Timings() (ResetTimings, error) {
	t := ResetTimings{
		Debounce:     consts.DefaultDebounce,
		PollInterval: consts.DefaultPollInterval,
		HoldReboot:   consts.DefaultHoldReboot,
		HoldRecovery: consts.DefaultHoldRecovery,
		HoldFactory:  consts.DefaultHoldFactory,
	}
	fields := []struct {
		raw string
		dst *time.Duration
		tag string
	}{
		{c.Reset.Debounce, &t.Debounce, "debounce"},
		{c.Reset.PollInterval, &t.PollInterval, "poll_interval"},
		{c.Reset.HoldReboot, &t.HoldReboot, "hold_reboot"},
		{c.Reset.HoldRecovery, &t.HoldRecovery, "hold_recovery"},
		{c.Reset.HoldFactory, &t.HoldFactory, "hold_factory"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return t, errors.New(errors.ErrCodeConfigInvalid, "timings",
				fmt.Sprintf("reset.%s: bad duration %q", f.tag, f.raw), err)
		}
		*f.dst = d
	}
	return t, nil
}

// Validate checks the configuration for the error class that must never reach
// the pipeline: unordered hold thresholds, unknown or missing service names,
// and incomplete service definitions.
func (c *Config) Validate() error {
	t, err := c.Timings()
	if err != nil {
		return err
	}
	if t.PollInterval <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "validate",
			"reset.poll_interval must be positive", nil)
	}
	if t.Debounce < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "validate",
			"reset.debounce must not be negative", nil)
	}
	if !(t.HoldReboot < t.HoldRecovery && t.HoldRecovery < t.HoldFactory) {
		return errors.New(errors.ErrCodeConfigInvalid, "validate",
			fmt.Sprintf("hold thresholds must be strictly increasing, got %v < %v < %v",
				t.HoldReboot, t.HoldRecovery, t.HoldFactory), nil)
	}

	seen := make(map[consts.ServiceName]bool, len(c.Services))
	for _, svc := range c.Services {
		if !consts.KnownService(svc.Name) {
			return errors.New(errors.ErrCodeConfigInvalid, "validate",
				fmt.Sprintf("unknown service name %q", svc.Name), nil)
		}
		if seen[svc.Name] {
			return errors.New(errors.ErrCodeConfigInvalid, "validate",
				fmt.Sprintf("duplicate service %q", svc.Name), nil)
		}
		if svc.Image == "" {
			return errors.New(errors.ErrCodeConfigInvalid, "validate",
				fmt.Sprintf("service %q has no image", svc.Name), nil)
		}
		seen[svc.Name] = true
	}
	for _, required := range consts.RequiredServices {
		if !seen[required] {
			return errors.New(errors.ErrCodeConfigInvalid, "validate",
				fmt.Sprintf("service %q is not configured", required), nil)
		}
	}

	if len(c.Recovery.Command) == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "validate",
			"recovery.command is empty", nil)
	}
	if c.Paths.MarkerDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "validate",
			"paths.marker_dir is empty", nil)
	}
	return nil
}

// Service returns the configuration for the named service.
func (c *Config) Service(name consts.ServiceName) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// ServiceByImage returns the service whose artifact repository matches image.
func (c *Config) ServiceByImage(image string) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.Image == image {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}
