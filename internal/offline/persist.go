package offline

import (
	"context"
	"encoding/json"

	"driftq/internal/logging"
)

const (
	queueKey  = "queue"
	statsKey  = "stats"
	configKey = "config"
)

// persistedConfig is the snapshot written alongside the queue so the on-disk
// state records which limits produced it. It is informational; the live
// configuration always wins on startup.
type persistedConfig struct {
	MaxSize         int   `json:"maxSize"`
	BatchSize       int   `json:"batchSize"`
	BatchingEnabled bool  `json:"batchingEnabled"`
	MaxRetries      int   `json:"maxRetries"`
	BaseDelayMs     int64 `json:"baseDelayMs"`
}

// reload restores the queue and counters from the store. Missing or corrupt
// records start the queue empty rather than failing construction.
func (q *Queue) reload() {
	ctx := context.Background()
	if raw, ok, err := q.store.Get(ctx, queueKey); err != nil {
		q.logger.Warn("could not read persisted queue",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data directory permissions"),
		)
	} else if ok {
		var items []*Operation
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			q.logger.Warn("persisted queue is corrupt; starting empty",
				logging.Error(err),
				logging.String(logging.FieldImpact, "previously queued writes were lost"),
			)
		} else {
			q.items = items
		}
	}

	if raw, ok, err := q.store.Get(ctx, statsKey); err != nil {
		q.logger.Warn("could not read persisted stats", logging.Error(err))
	} else if ok {
		var stats Stats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			q.logger.Warn("persisted stats are corrupt; resetting counters",
				logging.Error(err),
			)
		} else {
			q.stats = stats
		}
	}

	// Pending is derived, never trusted from disk.
	q.stats.Pending = len(q.items)

	if len(q.items) > 0 {
		q.logger.Info("restored queued operations",
			logging.Int("pending", len(q.items)),
			logging.String(logging.FieldEventType, "queue_restored"),
		)
	}
}

func (q *Queue) persistQueueLocked() {
	payload, err := json.Marshal(q.items)
	if err != nil {
		q.logger.Error("could not encode queue", logging.Error(err))
		return
	}
	if err := q.store.Set(context.Background(), queueKey, string(payload)); err != nil {
		q.logger.Error("could not persist queue",
			logging.Error(err),
			logging.String(logging.FieldImpact, "queued writes will not survive a restart"),
		)
	}
}

func (q *Queue) persistStatsLocked() {
	payload, err := json.Marshal(q.stats)
	if err != nil {
		q.logger.Error("could not encode stats", logging.Error(err))
		return
	}
	if err := q.store.Set(context.Background(), statsKey, string(payload)); err != nil {
		q.logger.Error("could not persist stats", logging.Error(err))
	}
}

func (q *Queue) persistConfig() {
	snapshot := persistedConfig{
		MaxSize:         q.cfg.MaxSize,
		BatchSize:       q.cfg.BatchSize,
		BatchingEnabled: q.cfg.BatchingEnabled,
		MaxRetries:      q.cfg.MaxRetries,
		BaseDelayMs:     q.cfg.BaseDelay.Milliseconds(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := q.store.Set(context.Background(), configKey, string(payload)); err != nil {
		q.logger.Warn("could not persist configuration snapshot", logging.Error(err))
	}
}
