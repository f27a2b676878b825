package offline

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"driftq/internal/logging"
)

// Process runs one flush cycle: priority-ordered, batched, aborted early when
// connectivity drops between batches. At most one cycle is active at a time;
// a call while another cycle runs (or while offline or empty) is a no-op.
func (q *Queue) Process(ctx context.Context) error {
	q.mu.Lock()
	if q.closed || q.processing || !q.online || len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	q.processing = true
	q.wg.Add(1)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
		q.wg.Done()
	}()

	order := q.processingOrder()
	batchSize := q.cfg.BatchSize
	if !q.cfg.BatchingEnabled {
		batchSize = 1
	}

	q.logger.Info("flush cycle started",
		logging.Int("operations", len(order)),
		logging.Int("batch_size", batchSize),
		logging.String(logging.FieldEventType, "flush_started"),
	)

	completed := true
	for start := 0; start < len(order); start += batchSize {
		if ctx.Err() != nil {
			completed = false
			break
		}
		if !q.Online() {
			q.logger.Warn("connectivity lost mid-flush; remaining batches deferred",
				logging.String(logging.FieldEventType, "flush_aborted"),
				logging.String(logging.FieldImpact, "unexecuted operations stay queued"),
			)
			completed = false
			break
		}

		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		batch := order[start:end]

		q.logger.Debug("dispatching batch", logging.Int("size", len(batch)))

		var g errgroup.Group
		for _, id := range batch {
			id := id
			g.Go(func() error {
				q.executeOne(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
	}

	if completed {
		now := time.Now().UTC()
		q.mu.Lock()
		q.stats.LastSyncAt = &now
		q.persistStatsLocked()
		listeners := q.statsListenerSnapshot()
		stats := q.stats
		q.mu.Unlock()

		for _, fn := range listeners {
			fn(stats)
		}

		q.logger.Info("flush cycle complete",
			logging.Int("pending", stats.Pending),
			logging.Int("succeeded", stats.Succeeded),
			logging.Int("failed", stats.Failed),
			logging.String(logging.FieldEventType, "flush_complete"),
		)
	}
	return nil
}

// processingOrder snapshots operation ids sorted by priority band, ties broken
// by arrival order. Computed fresh each cycle; priority is fixed at enqueue
// time but high-priority arrivals may have changed the picture since the last
// flush.
func (q *Queue) processingOrder() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := make([]*Operation, len(q.items))
	copy(ops, q.items)
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Priority.rank() != ops[j].Priority.rank() {
			return ops[i].Priority.rank() > ops[j].Priority.rank()
		}
		return ops[i].EnqueuedAt.Before(ops[j].EnqueuedAt)
	})

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}

// executeOne runs a single operation and applies the outcome. The operation
// may have been dequeued while a batch was in flight; membership is checked
// on both sides of the executor call.
func (q *Queue) executeOne(ctx context.Context, id string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	op := q.findLocked(id)
	if op == nil {
		q.mu.Unlock()
		return
	}
	// Executing now supersedes any scheduled retry for the same operation.
	if timer, ok := q.retryTimers[id]; ok {
		timer.Stop()
		delete(q.retryTimers, id)
	}
	descriptor := op.Descriptor
	variables := op.Variables
	q.mu.Unlock()

	result, err := q.executor.Execute(ctx, descriptor, variables)

	q.mu.Lock()
	op = q.findLocked(id)
	if op == nil {
		q.mu.Unlock()
		return
	}

	if err == nil {
		q.removeLocked(id)
		q.stats.Succeeded++
		q.stats.Pending = len(q.items)
		q.persistQueueLocked()
		q.persistStatsLocked()
		listeners := q.statsListenerSnapshot()
		stats := q.stats
		onCommit := q.onCommit
		committed := *op
		q.mu.Unlock()

		for _, fn := range listeners {
			fn(stats)
		}
		if onCommit != nil {
			onCommit(committed, result)
		}

		q.logger.Info("operation succeeded",
			logging.String(logging.FieldOperationID, id),
			logging.String(logging.FieldCategory, committed.Category),
		)
		return
	}

	if op.RetryCount >= op.MaxRetries {
		// Terminal failure: surfaced only through stats and listeners.
		q.removeLocked(id)
		q.stats.Failed++
		q.stats.Pending = len(q.items)
		q.persistQueueLocked()
		q.persistStatsLocked()
		listeners := q.statsListenerSnapshot()
		stats := q.stats
		q.mu.Unlock()

		for _, fn := range listeners {
			fn(stats)
		}

		q.logger.Warn("operation failed permanently",
			logging.Error(err),
			logging.String(logging.FieldOperationID, id),
			logging.Int("attempts", op.RetryCount+1),
			logging.String(logging.FieldEventType, "operation_failed"),
			logging.String(logging.FieldImpact, "the write was dropped after exhausting retries"),
		)
		return
	}

	op.RetryCount++
	delay := q.cfg.BaseDelay * time.Duration(1<<(op.RetryCount-1))
	q.persistQueueLocked()
	q.scheduleRetryLocked(id, delay)
	q.mu.Unlock()

	q.logger.Debug("operation failed; retry scheduled",
		logging.Error(err),
		logging.String(logging.FieldOperationID, id),
		logging.Int("retry", op.RetryCount),
		logging.Duration("delay", delay),
	)
}

// scheduleRetryLocked arms a solitary re-execution for one operation. The
// timer is keyed by id so Dequeue can suppress it; at fire time the callback
// re-checks connectivity and is a no-op while offline, leaving the item
// queued for the next natural flush.
func (q *Queue) scheduleRetryLocked(id string, delay time.Duration) {
	if timer, ok := q.retryTimers[id]; ok {
		timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if q.retryTimers[id] == t {
			delete(q.retryTimers, id)
		}
		fire := q.online && !q.closed
		q.mu.Unlock()
		if !fire {
			return
		}
		q.executeOne(context.Background(), id)
	})
	q.retryTimers[id] = t
}
