package config

const (
	defaultDataDir              = "~/.local/share/driftq"
	defaultLogDir               = "~/.local/share/driftq/logs"
	defaultAPIBind              = "127.0.0.1:7519"
	defaultQueueMaxSize         = 200
	defaultQueueBatchSize       = 5
	defaultQueueMaxRetries      = 3
	defaultQueueBaseDelayMs     = 1000
	defaultProbeURL             = "https://www.gstatic.com/generate_204"
	defaultProbeTimeout         = 5
	defaultProbeInterval        = 30
	defaultTypeChangeDebounceMs = 2000
	defaultRemoteTimeout        = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			MaxSize:         defaultQueueMaxSize,
			BatchSize:       defaultQueueBatchSize,
			BatchingEnabled: true,
			MaxRetries:      defaultQueueMaxRetries,
			BaseDelayMs:     defaultQueueBaseDelayMs,
		},
		Network: Network{
			ProbeURL:             defaultProbeURL,
			ProbeTimeout:         defaultProbeTimeout,
			ProbeInterval:        defaultProbeInterval,
			TypeChangeDebounceMs: defaultTypeChangeDebounceMs,
		},
		Remote: Remote{
			Timeout: defaultRemoteTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
