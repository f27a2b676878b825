package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftq/internal/logging"
	"driftq/internal/store"
)

// Executor performs one operation against the backend. Any error is treated
// as retryable; the queue applies its own backoff policy.
type Executor interface {
	Execute(ctx context.Context, descriptor string, variables map[string]any) ([]byte, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, descriptor string, variables map[string]any) ([]byte, error)

func (f ExecutorFunc) Execute(ctx context.Context, descriptor string, variables map[string]any) ([]byte, error) {
	return f(ctx, descriptor, variables)
}

// Queue is the bounded, priority-ordered, persisted queue of pending write
// operations. All mutations happen under one mutex; "concurrent" batch
// execution means multiple in-flight Executor calls whose completions
// re-acquire the mutex one at a time.
type Queue struct {
	cfg      Config
	store    *store.Store
	executor Executor
	logger   *slog.Logger

	mu             sync.Mutex
	items          []*Operation
	stats          Stats
	processing     bool
	online         bool
	closed         bool
	retryTimers    map[string]*time.Timer
	statsListeners map[int]func(Stats)
	nextListener   int
	onCommit       func(op Operation, result []byte)
	wg             sync.WaitGroup
}

// New constructs a queue and reloads persisted state. A structurally invalid
// persisted payload is treated as absent, never fatal.
func New(cfg Config, st *store.Store, executor Executor, logger *slog.Logger) *Queue {
	q := &Queue{
		cfg:            cfg.withDefaults(),
		store:          st,
		executor:       executor,
		logger:         logging.NewComponentLogger(logger, "offline-queue"),
		retryTimers:    make(map[string]*time.Timer),
		statsListeners: make(map[int]func(Stats)),
	}
	q.reload()
	q.persistConfig()
	return q
}

// Enqueue records a write operation for eventual execution and returns its id
// without waiting for remote confirmation. When the queue is full, the oldest
// low-priority operation is evicted to make room; if none exists the call
// fails with ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, descriptor string, variables map[string]any, opts EnqueueOptions) (string, error) {
	priority := opts.Priority
	if _, ok := ParsePriority(string(priority)); !ok {
		priority = PriorityMedium
	}
	maxRetries := q.cfg.MaxRetries
	if opts.MaxRetries != nil && *opts.MaxRetries >= 0 {
		maxRetries = *opts.MaxRetries
	}

	op := &Operation{
		ID:               uuid.NewString(),
		Descriptor:       descriptor,
		Variables:        variables,
		OptimisticResult: opts.OptimisticResult,
		SideEffect:       opts.SideEffect,
		EnqueuedAt:       time.Now().UTC(),
		MaxRetries:       maxRetries,
		Priority:         priority,
		Category:         opts.Category,
	}

	q.mu.Lock()
	if len(q.items) >= q.cfg.MaxSize {
		evicted, ok := q.evictOldestLowLocked()
		if !ok {
			q.mu.Unlock()
			return "", ErrQueueFull
		}
		q.logger.Warn("queue full; evicted oldest low-priority operation",
			logging.String(logging.FieldOperationID, evicted.ID),
			logging.String(logging.FieldCategory, evicted.Category),
			logging.String(logging.FieldEventType, "operation_evicted"),
			logging.String(logging.FieldImpact, "the evicted write will never reach the backend"),
		)
	}

	// High priority jumps the line; everything else keeps arrival order.
	if priority == PriorityHigh {
		q.items = append([]*Operation{op}, q.items...)
	} else {
		q.items = append(q.items, op)
	}

	q.stats.TotalEnqueued++
	q.stats.Pending = len(q.items)
	q.persistQueueLocked()
	q.persistStatsLocked()
	listeners := q.statsListenerSnapshot()
	stats := q.stats
	online := q.online
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(stats)
	}

	q.logger.Info("operation enqueued",
		logging.String(logging.FieldOperationID, op.ID),
		logging.String(logging.FieldPriority, string(op.Priority)),
		logging.String(logging.FieldCategory, op.Category),
		logging.Int("pending", stats.Pending),
	)

	if online {
		go func() { _ = q.Process(context.WithoutCancel(ctx)) }()
	}

	return op.ID, nil
}

// Dequeue cancels a pending operation. A retry timer already scheduled for it
// is stopped so the removal is deterministic.
func (q *Queue) Dequeue(id string) bool {
	q.mu.Lock()
	if timer, ok := q.retryTimers[id]; ok {
		timer.Stop()
		delete(q.retryTimers, id)
	}
	removed := q.removeLocked(id)
	var listeners []func(Stats)
	var stats Stats
	if removed {
		q.stats.Pending = len(q.items)
		q.persistQueueLocked()
		q.persistStatsLocked()
		listeners = q.statsListenerSnapshot()
		stats = q.stats
	}
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(stats)
	}
	return removed
}

// ForceSync flushes immediately, rejecting when offline.
func (q *Queue) ForceSync(ctx context.Context) error {
	q.mu.Lock()
	online := q.online
	q.mu.Unlock()
	if !online {
		return ErrOffline
	}
	return q.Process(ctx)
}

// Clear drops all pending operations and resets counters. Destructive; meant
// for explicit user-initiated resets only.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	for id, timer := range q.retryTimers {
		timer.Stop()
		delete(q.retryTimers, id)
	}
	q.items = nil
	q.stats = Stats{}
	q.persistQueueLocked()
	q.persistStatsLocked()
	listeners := q.statsListenerSnapshot()
	stats := q.stats
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(stats)
	}

	q.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_cleared"),
	)
}

// NotifyConnectivity informs the queue of a connectivity change. The
// disconnected-to-connected transition triggers a flush.
func (q *Queue) NotifyConnectivity(online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()

	if online && !wasOnline {
		q.logger.Info("connectivity restored; flushing queue",
			logging.String(logging.FieldEventType, "queue_flush_triggered"),
		)
		go func() { _ = q.Process(context.Background()) }()
	}
}

// Online reports the queue's view of connectivity.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Stats returns a copy of the current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Size returns the number of pending operations.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Operations returns copies of all pending operations in queue order.
func (q *Queue) Operations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := make([]Operation, 0, len(q.items))
	for _, op := range q.items {
		ops = append(ops, *op)
	}
	return ops
}

// OperationsByCategory filters pending operations by category.
func (q *Queue) OperationsByCategory(category string) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ops []Operation
	for _, op := range q.items {
		if op.Category == category {
			ops = append(ops, *op)
		}
	}
	return ops
}

// OperationsByPriority filters pending operations by priority band.
func (q *Queue) OperationsByPriority(priority Priority) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ops []Operation
	for _, op := range q.items {
		if op.Priority == priority {
			ops = append(ops, *op)
		}
	}
	return ops
}

// OnStatsChange registers a callback invoked after every stats mutation. The
// returned function unsubscribes.
func (q *Queue) OnStatsChange(fn func(Stats)) func() {
	q.mu.Lock()
	id := q.nextListener
	q.nextListener++
	q.statsListeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.statsListeners, id)
		q.mu.Unlock()
	}
}

// OnCommit registers a hook invoked with the executor result after an
// operation succeeds, for callers that attached side effects.
func (q *Queue) OnCommit(fn func(op Operation, result []byte)) {
	q.mu.Lock()
	q.onCommit = fn
	q.mu.Unlock()
}

// Close stops all retry timers and waits for any in-flight flush cycle to
// settle. The queue must not be used after Close returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for id, timer := range q.retryTimers {
		timer.Stop()
		delete(q.retryTimers, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) statsListenerSnapshot() []func(Stats) {
	ids := make([]int, 0, len(q.statsListeners))
	for id := range q.statsListeners {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	fns := make([]func(Stats), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, q.statsListeners[id])
	}
	return fns
}

func (q *Queue) findLocked(id string) *Operation {
	for _, op := range q.items {
		if op.ID == id {
			return op
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) bool {
	for i, op := range q.items {
		if op.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// evictOldestLowLocked removes the earliest-enqueued low-priority operation.
func (q *Queue) evictOldestLowLocked() (*Operation, bool) {
	index := -1
	for i, op := range q.items {
		if op.Priority != PriorityLow {
			continue
		}
		if index == -1 || op.EnqueuedAt.Before(q.items[index].EnqueuedAt) {
			index = i
		}
	}
	if index == -1 {
		return nil, false
	}
	evicted := q.items[index]
	if timer, ok := q.retryTimers[evicted.ID]; ok {
		timer.Stop()
		delete(q.retryTimers, evicted.ID)
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	return evicted, true
}
