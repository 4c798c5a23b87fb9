package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/breeze-rmm/host-inventory/internal/collectors"
)

const (
	minCommandTimeout = time.Second
	maxCommandTimeout = time.Hour

	minMaxOutputBytes = 4 * 1024
	maxMaxOutputBytes = 256 * 1024 * 1024
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that must stop the run from those
// that were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// ValidateTiered checks the config. Out-of-range numbers and unknown log
// settings are clamped or reset and reported as warnings; missing output
// paths and unusable command overrides are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if strings.TrimSpace(c.OutputPath) == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("output path must not be empty"))
	}
	if strings.TrimSpace(c.AppsPath) == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("apps path must not be empty"))
	}
	if c.OutputPath != "" && filepath.Clean(c.OutputPath) == filepath.Clean(c.AppsPath) {
		r.Fatals = append(r.Fatals, fmt.Errorf("output and apps paths must differ, both are %q", c.OutputPath))
	}

	known := make(map[string]bool)
	for _, f := range collectors.KnownFields() {
		known[f] = true
	}
	for field := range c.Commands {
		if !known[strings.ToLower(field)] {
			r.Fatals = append(r.Fatals, fmt.Errorf("commands: unknown field %q", field))
		}
	}
	if _, err := c.CommandOverrides(); err != nil {
		r.Fatals = append(r.Fatals, err)
	}

	if c.CommandTimeout < minCommandTimeout {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_timeout %s is below minimum %s, clamping", c.CommandTimeout, minCommandTimeout))
		c.CommandTimeout = minCommandTimeout
	} else if c.CommandTimeout > maxCommandTimeout {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_timeout %s exceeds maximum %s, clamping", c.CommandTimeout, maxCommandTimeout))
		c.CommandTimeout = maxCommandTimeout
	}

	if c.MaxOutputBytes < minMaxOutputBytes {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_output_bytes %d is below minimum %d, clamping", c.MaxOutputBytes, minMaxOutputBytes))
		c.MaxOutputBytes = minMaxOutputBytes
	} else if c.MaxOutputBytes > maxMaxOutputBytes {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_output_bytes %d exceeds maximum %d, clamping", c.MaxOutputBytes, maxMaxOutputBytes))
		c.MaxOutputBytes = maxMaxOutputBytes
	}

	if c.LogMaxSizeMB < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	}
	if c.LogMaxBackups < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_backups %d is below minimum 1, clamping", c.LogMaxBackups))
		c.LogMaxBackups = 1
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), using info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), using text", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}
