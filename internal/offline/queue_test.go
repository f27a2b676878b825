package offline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"driftq/internal/logging"
	"driftq/internal/offline"
	"driftq/internal/store"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingExecutor) Execute(_ context.Context, descriptor string, _ map[string]any) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, descriptor)
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return []byte(`{"ok":true}`), nil
}

func (r *recordingExecutor) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingExecutor) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestQueue(t *testing.T, cfg offline.Config, exec offline.Executor) (*offline.Queue, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	q := offline.New(cfg, st, exec, logging.NewNop())
	t.Cleanup(q.Close)
	return q, st
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestEnqueueWhileOfflineDoesNotExecute(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	id, err := q.Enqueue(context.Background(), "createNote", map[string]any{"title": "a"}, offline.EnqueueOptions{Category: "notes"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty operation id")
	}
	time.Sleep(30 * time.Millisecond)
	if exec.callCount() != 0 {
		t.Fatalf("expected no executions while offline, got %d", exec.callCount())
	}
	if q.Size() != 1 {
		t.Fatalf("expected 1 pending operation, got %d", q.Size())
	}
	stats := q.Stats()
	if stats.TotalEnqueued != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestConnectivityRestoredFlushesQueue(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	for _, descriptor := range []string{"op-1", "op-2", "op-3"} {
		if _, err := q.Enqueue(context.Background(), descriptor, nil, offline.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	q.NotifyConnectivity(true)
	waitFor(t, 2*time.Second, func() bool { return q.Size() == 0 }, "queue to drain")

	if exec.callCount() != 3 {
		t.Fatalf("expected 3 executions, got %d", exec.callCount())
	}
	stats := q.Stats()
	if stats.Succeeded != 3 || stats.Pending != 0 {
		t.Fatalf("unexpected stats after flush: %+v", stats)
	}
	if stats.LastSyncAt == nil {
		t.Fatal("expected LastSyncAt to be set after a completed flush")
	}
}

func TestEnqueueWhileOnlineExecutesImmediately(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)
	q.NotifyConnectivity(true)

	if _, err := q.Enqueue(context.Background(), "createNote", nil, offline.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return q.Size() == 0 }, "operation to execute")
}

func TestPriorityOrdering(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{BatchingEnabled: false, BatchSize: 1}, exec)

	enqueue := func(descriptor string, priority offline.Priority) {
		t.Helper()
		if _, err := q.Enqueue(context.Background(), descriptor, nil, offline.EnqueueOptions{Priority: priority}); err != nil {
			t.Fatalf("Enqueue %s failed: %v", descriptor, err)
		}
	}
	enqueue("low-1", offline.PriorityLow)
	enqueue("med-1", offline.PriorityMedium)
	enqueue("med-2", offline.PriorityMedium)
	enqueue("high-1", offline.PriorityHigh)

	q.NotifyConnectivity(true)
	waitFor(t, 2*time.Second, func() bool { return q.Size() == 0 }, "queue to drain")

	got := exec.snapshot()
	want := []string{"high-1", "med-1", "med-2", "low-1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d executions, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestEnqueueEvictsOldestLowWhenFull(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{MaxSize: 3}, exec)

	firstLow, err := q.Enqueue(context.Background(), "low-old", nil, offline.EnqueueOptions{Priority: offline.PriorityLow})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "med", nil, offline.EnqueueOptions{Priority: offline.PriorityMedium}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "low-new", nil, offline.EnqueueOptions{Priority: offline.PriorityLow}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := q.Enqueue(context.Background(), "high", nil, offline.EnqueueOptions{Priority: offline.PriorityHigh}); err != nil {
		t.Fatalf("expected eviction to make room, got %v", err)
	}
	if q.Size() != 3 {
		t.Fatalf("expected size to stay at 3, got %d", q.Size())
	}
	for _, op := range q.Operations() {
		if op.ID == firstLow {
			t.Fatal("expected the oldest low-priority operation to be evicted")
		}
	}
}

func TestEnqueueFailsWhenFullWithoutLowPriority(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{MaxSize: 2}, exec)

	for i := 0; i < 2; i++ {
		if _, err := q.Enqueue(context.Background(), "med", nil, offline.EnqueueOptions{Priority: offline.PriorityMedium}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if _, err := q.Enqueue(context.Background(), "extra", nil, offline.EnqueueOptions{Priority: offline.PriorityHigh}); !errors.Is(err, offline.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Size() != 2 {
		t.Fatalf("expected size unchanged at 2, got %d", q.Size())
	}
}

func TestRetriesExhaustThenFail(t *testing.T) {
	exec := &recordingExecutor{fail: true}
	maxRetries := 2
	q, _ := newTestQueue(t, offline.Config{
		MaxRetries: maxRetries,
		BaseDelay:  10 * time.Millisecond,
	}, exec)

	if _, err := q.Enqueue(context.Background(), "doomed", nil, offline.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	q.NotifyConnectivity(true)

	waitFor(t, 3*time.Second, func() bool { return q.Stats().Failed == 1 }, "operation to fail permanently")

	if got := exec.callCount(); got != maxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", maxRetries+1, got)
	}
	if q.Size() != 0 {
		t.Fatalf("expected failed operation removed, size %d", q.Size())
	}
}

func TestZeroMaxRetriesFailsOnFirstError(t *testing.T) {
	exec := &recordingExecutor{fail: true}
	zero := 0
	q, _ := newTestQueue(t, offline.Config{BaseDelay: 10 * time.Millisecond}, exec)

	if _, err := q.Enqueue(context.Background(), "one-shot", nil, offline.EnqueueOptions{MaxRetries: &zero}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	q.NotifyConnectivity(true)

	waitFor(t, 2*time.Second, func() bool { return q.Stats().Failed == 1 }, "terminal failure")
	if got := exec.callCount(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestDequeueCancelsScheduledRetry(t *testing.T) {
	exec := &recordingExecutor{fail: true}
	q, _ := newTestQueue(t, offline.Config{
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
	}, exec)

	id, err := q.Enqueue(context.Background(), "flaky", nil, offline.EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	q.NotifyConnectivity(true)

	waitFor(t, 2*time.Second, func() bool { return exec.callCount() >= 1 }, "first attempt")
	if !q.Dequeue(id) {
		t.Fatal("expected Dequeue to remove the operation")
	}
	attempts := exec.callCount()
	time.Sleep(200 * time.Millisecond)
	if exec.callCount() != attempts {
		t.Fatalf("expected no further attempts after Dequeue, got %d then %d", attempts, exec.callCount())
	}
	if q.Size() != 0 {
		t.Fatalf("expected empty queue, size %d", q.Size())
	}
}

func TestForceSyncRejectedOffline(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	if _, err := q.Enqueue(context.Background(), "op", nil, offline.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.ForceSync(context.Background()); !errors.Is(err, offline.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
	if exec.callCount() != 0 {
		t.Fatal("expected no executions while offline")
	}
}

func TestClearResetsQueueAndStats(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(context.Background(), "op", nil, offline.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	q.Clear(context.Background())

	if q.Size() != 0 {
		t.Fatalf("expected empty queue after Clear, size %d", q.Size())
	}
	stats := q.Stats()
	if stats.TotalEnqueued != 0 || stats.Pending != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	exec := &recordingExecutor{}
	q := offline.New(offline.Config{}, st, exec, logging.NewNop())

	id, err := q.Enqueue(context.Background(), "persisted", map[string]any{"n": float64(1)}, offline.EnqueueOptions{
		Priority: offline.PriorityHigh,
		Category: "notes",
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	q.Close()
	if err := st.Close(); err != nil {
		t.Fatalf("Close store failed: %v", err)
	}

	st2, err := store.Open(dir)
	if err != nil {
		t.Fatalf("reopen store failed: %v", err)
	}
	t.Cleanup(func() { st2.Close() })
	q2 := offline.New(offline.Config{}, st2, exec, logging.NewNop())
	t.Cleanup(q2.Close)

	ops := q2.Operations()
	if len(ops) != 1 {
		t.Fatalf("expected 1 restored operation, got %d", len(ops))
	}
	op := ops[0]
	if op.ID != id || op.Descriptor != "persisted" || op.Priority != offline.PriorityHigh || op.Category != "notes" {
		t.Fatalf("restored operation mismatch: %+v", op)
	}
	stats := q2.Stats()
	if stats.Pending != 1 || stats.TotalEnqueued != 1 {
		t.Fatalf("unexpected restored stats: %+v", stats)
	}
}

func TestCorruptPersistedQueueStartsEmpty(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Set(context.Background(), "queue", "{not json"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Set(context.Background(), "stats", "also garbage"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	q := offline.New(offline.Config{}, st, &recordingExecutor{}, logging.NewNop())
	t.Cleanup(q.Close)

	if q.Size() != 0 {
		t.Fatalf("expected empty queue from corrupt state, size %d", q.Size())
	}
	if stats := q.Stats(); stats.Pending != 0 {
		t.Fatalf("expected zero pending, got %+v", stats)
	}
}

func TestOnStatsChangeNotifiesAndUnsubscribes(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	var mu sync.Mutex
	var seen []offline.Stats
	unsubscribe := q.OnStatsChange(func(s offline.Stats) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if _, err := q.Enqueue(context.Background(), "op", nil, offline.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	mu.Lock()
	count := len(seen)
	var last offline.Stats
	if count > 0 {
		last = seen[count-1]
	}
	mu.Unlock()
	if count == 0 {
		t.Fatal("expected a stats notification after Enqueue")
	}
	if last.Pending != 1 {
		t.Fatalf("unexpected stats payload: %+v", last)
	}

	unsubscribe()
	if _, err := q.Enqueue(context.Background(), "op-2", nil, offline.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	mu.Lock()
	after := len(seen)
	mu.Unlock()
	if after != count {
		t.Fatalf("expected no notifications after unsubscribe, got %d then %d", count, after)
	}
}

func TestOnCommitReceivesExecutorResult(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	type commit struct {
		op     offline.Operation
		result []byte
	}
	commits := make(chan commit, 1)
	q.OnCommit(func(op offline.Operation, result []byte) {
		commits <- commit{op: op, result: result}
	})

	id, err := q.Enqueue(context.Background(), "createNote", nil, offline.EnqueueOptions{SideEffect: "refresh-notes"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	q.NotifyConnectivity(true)

	select {
	case c := <-commits:
		if c.op.ID != id || c.op.SideEffect != "refresh-notes" {
			t.Fatalf("unexpected commit payload: %+v", c.op)
		}
		if string(c.result) != `{"ok":true}` {
			t.Fatalf("unexpected result: %s", c.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit hook")
	}
}

func TestConnectivityLossMidFlushStopsBatches(t *testing.T) {
	var q *offline.Queue
	var executed int
	var mu sync.Mutex
	exec := offline.ExecutorFunc(func(_ context.Context, _ string, _ map[string]any) ([]byte, error) {
		mu.Lock()
		executed++
		mu.Unlock()
		// Simulate the link dropping while the first batch is in flight.
		q.NotifyConnectivity(false)
		return []byte(`{}`), nil
	})
	q, _ = newTestQueue(t, offline.Config{BatchingEnabled: false, BatchSize: 1}, exec)

	for i := 0; i < 4; i++ {
		if _, err := q.Enqueue(context.Background(), "op", nil, offline.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	q.NotifyConnectivity(true)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return executed >= 1
	}, "first execution")
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	got := executed
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected flush to stop after connectivity loss, executed %d", got)
	}
	if q.Size() != 3 {
		t.Fatalf("expected 3 operations left queued, size %d", q.Size())
	}
}

func TestFilterAccessors(t *testing.T) {
	exec := &recordingExecutor{}
	q, _ := newTestQueue(t, offline.Config{}, exec)

	if _, err := q.Enqueue(context.Background(), "a", nil, offline.EnqueueOptions{Priority: offline.PriorityHigh, Category: "notes"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), "b", nil, offline.EnqueueOptions{Category: "tasks"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if got := q.OperationsByCategory("notes"); len(got) != 1 || got[0].Descriptor != "a" {
		t.Fatalf("unexpected category filter result: %+v", got)
	}
	if got := q.OperationsByPriority(offline.PriorityHigh); len(got) != 1 || got[0].Descriptor != "a" {
		t.Fatalf("unexpected priority filter result: %+v", got)
	}
	if got := q.OperationsByPriority(offline.PriorityLow); len(got) != 0 {
		t.Fatalf("expected no low-priority operations, got %+v", got)
	}
}
