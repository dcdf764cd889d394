package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncode() error {
	if c.Encode.SafetyFactor <= 0 || c.Encode.SafetyFactor > 1 {
		return errors.New("encode.safety_factor must be in (0, 1]")
	}
	if c.Encode.RetryFactor <= 0 || c.Encode.RetryFactor > 1 {
		return errors.New("encode.retry_factor must be in (0, 1]")
	}
	if c.Encode.RetryFactor > c.Encode.SafetyFactor {
		return errors.New("encode.retry_factor must not exceed encode.safety_factor")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.KeepRuns < 0 {
		return errors.New("history.keep_runs must not be negative")
	}
	return nil
}
