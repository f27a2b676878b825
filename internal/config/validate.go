package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxSize < 1 {
		return errors.New("queue.max_size must be at least 1")
	}
	if c.Queue.BatchSize < 1 {
		return errors.New("queue.batch_size must be at least 1")
	}
	if c.Queue.BatchSize > c.Queue.MaxSize {
		return fmt.Errorf("queue.batch_size (%d) cannot exceed queue.max_size (%d)", c.Queue.BatchSize, c.Queue.MaxSize)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	parsed, err := url.Parse(c.Network.ProbeURL)
	if err != nil {
		return fmt.Errorf("network.probe_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("network.probe_url must use http or https, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateRemote() error {
	if strings.TrimSpace(c.Remote.Endpoint) == "" {
		return nil
	}
	parsed, err := url.Parse(c.Remote.Endpoint)
	if err != nil {
		return fmt.Errorf("remote.endpoint is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("remote.endpoint must use http or https, got %q", parsed.Scheme)
	}
	return nil
}
