package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeNetwork()
	c.normalizeRemote()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.MaxSize <= 0 {
		c.Queue.MaxSize = defaultQueueMaxSize
	}
	if c.Queue.BatchSize <= 0 {
		c.Queue.BatchSize = defaultQueueBatchSize
	}
	if c.Queue.MaxRetries < 0 {
		c.Queue.MaxRetries = defaultQueueMaxRetries
	}
	if c.Queue.BaseDelayMs <= 0 {
		c.Queue.BaseDelayMs = defaultQueueBaseDelayMs
	}
}

func (c *Config) normalizeNetwork() {
	c.Network.ProbeURL = strings.TrimSpace(c.Network.ProbeURL)
	if c.Network.ProbeURL == "" {
		c.Network.ProbeURL = defaultProbeURL
	}
	if c.Network.ProbeTimeout <= 0 {
		c.Network.ProbeTimeout = defaultProbeTimeout
	}
	if c.Network.ProbeInterval <= 0 {
		c.Network.ProbeInterval = defaultProbeInterval
	}
	if c.Network.TypeChangeDebounceMs <= 0 {
		c.Network.TypeChangeDebounceMs = defaultTypeChangeDebounceMs
	}
}

func (c *Config) normalizeRemote() {
	c.Remote.Endpoint = strings.TrimSpace(c.Remote.Endpoint)
	if c.Remote.Token == "" {
		if value, ok := os.LookupEnv("DRIFTQ_REMOTE_TOKEN"); ok {
			c.Remote.Token = strings.TrimSpace(value)
		}
	}
	c.Remote.Token = strings.TrimSpace(c.Remote.Token)
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = defaultRemoteTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
