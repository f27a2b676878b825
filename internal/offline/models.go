package offline

import (
	"encoding/json"
	"strings"
	"time"

	"driftq/internal/config"
)

// Priority is the queue position band for an operation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return normalized, true
	}
	return "", false
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Operation is the unit of durable work: an opaque descriptor plus variables
// the remote executor knows how to perform, with retry bookkeeping.
type Operation struct {
	ID               string          `json:"id"`
	Descriptor       string          `json:"descriptor"`
	Variables        map[string]any  `json:"variables,omitempty"`
	OptimisticResult json.RawMessage `json:"optimistic_result,omitempty"`
	SideEffect       string          `json:"side_effect,omitempty"`
	EnqueuedAt       time.Time       `json:"enqueued_at"`
	RetryCount       int             `json:"retry_count"`
	MaxRetries       int             `json:"max_retries"`
	Priority         Priority        `json:"priority"`
	Category         string          `json:"category"`
}

// Stats carries the queue's monotonically accumulated counters. Pending
// always equals the in-memory queue length after any mutation.
type Stats struct {
	TotalEnqueued int        `json:"total_enqueued"`
	Pending       int        `json:"pending"`
	Failed        int        `json:"failed"`
	Succeeded     int        `json:"succeeded"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// Config bounds the queue and shapes its flush and retry behavior.
type Config struct {
	MaxSize         int           `json:"max_size"`
	BatchSize       int           `json:"batch_size"`
	BatchingEnabled bool          `json:"batching_enabled"`
	MaxRetries      int           `json:"max_retries"`
	BaseDelay       time.Duration `json:"base_delay_ns"`
}

// ConfigFrom maps the application queue section onto queue settings.
func ConfigFrom(cfg config.Queue) Config {
	return Config{
		MaxSize:         cfg.MaxSize,
		BatchSize:       cfg.BatchSize,
		BatchingEnabled: cfg.BatchingEnabled,
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       time.Duration(cfg.BaseDelayMs) * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	return c
}

// EnqueueOptions are the caller-supplied knobs for a single operation.
type EnqueueOptions struct {
	Priority Priority
	Category string
	// MaxRetries overrides the queue default when non-nil. Zero means any
	// failure is terminal.
	MaxRetries       *int
	OptimisticResult json.RawMessage
	SideEffect       string
}
