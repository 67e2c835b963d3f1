package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateToolchain(); err != nil {
		return err
	}
	if err := c.validateChains(); err != nil {
		return err
	}
	if err := c.validatePorts(); err != nil {
		return err
	}
	if err := c.validateProcesses(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateToolchain() error {
	if c.Toolchain.GethVersion == "" {
		return errors.New("toolchain.geth_version must be set")
	}
	if c.Toolchain.GethCommit == "" {
		return errors.New("toolchain.geth_commit must be set")
	}
	return nil
}

func (c *Config) validateChains() error {
	if c.L1.ChainID == 0 {
		return errors.New("l1.chain_id must be positive")
	}
	if c.L2.ChainID == 0 {
		return errors.New("l2.chain_id must be positive")
	}
	if c.L1.ChainID == c.L2.ChainID {
		return fmt.Errorf("l1.chain_id and l2.chain_id must differ (both %d)", c.L1.ChainID)
	}
	if c.L1.BlockTime <= 0 {
		return errors.New("l1.block_time must be positive")
	}
	if c.L1.ReadyTimeout <= 0 {
		return errors.New("l1.ready_timeout must be positive")
	}
	if c.L2.ReadyTimeout <= 0 {
		return errors.New("l2.ready_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePorts() error {
	ports := []struct {
		key   string
		value int
	}{
		{"l1.rpc_port", c.L1.RPCPort},
		{"l1.ws_port", c.L1.WSPort},
		{"l2.rpc_port", c.L2.RPCPort},
		{"l2.ws_port", c.L2.WSPort},
		{"l2.auth_port", c.L2.AuthPort},
	}
	seen := make(map[int]string, len(ports))
	for _, port := range ports {
		if port.value <= 0 || port.value > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", port.key, port.value)
		}
		if other, ok := seen[port.value]; ok {
			return fmt.Errorf("%s and %s both use port %d", other, port.key, port.value)
		}
		seen[port.value] = port.key
	}
	return nil
}

func (c *Config) validateProcesses() error {
	if c.Processes.ShutdownTimeout < 0 {
		return errors.New("processes.shutdown_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
