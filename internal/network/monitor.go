package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"driftq/internal/logging"
	"driftq/internal/store"
)

// Persisted state keys.
const (
	keyEvents = "network.events"
	keyTests  = "network.tests"
	keyStats  = "network.stats"
)

// Source delivers platform connectivity state, push and pull.
type Source interface {
	// Current reads the present state on demand.
	Current(ctx context.Context) (RawState, error)
	// Subscribe registers a callback invoked on every state change and
	// returns an unsubscribe function.
	Subscribe(onChange func(RawState)) (func(), error)
}

// MonitorOptions tunes probe timing. Zero values fall back to defaults.
type MonitorOptions struct {
	ProbeInterval      time.Duration
	TypeChangeDebounce time.Duration
}

// Monitor owns the current Quality snapshot, the transition history, and the
// derived probe statistics. It is the single source of truth for "are we
// online enough to flush".
type Monitor struct {
	source Source
	prober Prober
	store  *store.Store
	logger *slog.Logger

	probeInterval time.Duration
	debounceDelay time.Duration

	mu             sync.Mutex
	current        *Quality
	disconnectedAt *time.Time
	events         []Event
	tests          []ConnectionTest
	listeners      map[int]func(Quality)
	nextListener   int
	debounce       *time.Timer
	running        bool
	cancel         context.CancelFunc
	unsubscribe    func()
	wg             sync.WaitGroup
}

// NewMonitor constructs a monitor and reloads persisted history. A corrupt or
// missing persisted payload starts empty; reload problems are logged, never
// fatal.
func NewMonitor(source Source, prober Prober, st *store.Store, logger *slog.Logger, opts MonitorOptions) *Monitor {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 30 * time.Second
	}
	if opts.TypeChangeDebounce <= 0 {
		opts.TypeChangeDebounce = 2 * time.Second
	}
	m := &Monitor{
		source:        source,
		prober:        prober,
		store:         st,
		logger:        logging.NewComponentLogger(logger, "network-monitor"),
		probeInterval: opts.ProbeInterval,
		debounceDelay: opts.TypeChangeDebounce,
		listeners:     make(map[int]func(Quality)),
	}
	m.reload()
	return m
}

// Start begins watching the platform source and running interval probes.
// Idempotent.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if m.source != nil {
		if raw, err := m.source.Current(runCtx); err != nil {
			m.logger.Warn("initial connectivity read failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "connectivity_read_failed"),
				logging.String(logging.FieldImpact, "monitor starts without a baseline snapshot"),
			)
		} else {
			m.Update(raw)
		}

		unsubscribe, err := m.source.Subscribe(func(raw RawState) {
			m.Update(raw)
		})
		if err != nil {
			m.logger.Warn("connectivity subscription failed; relying on interval probes only",
				logging.Error(err),
				logging.String(logging.FieldEventType, "connectivity_subscribe_failed"),
				logging.String(logging.FieldErrorHint, "check netlink socket permissions"),
			)
		} else {
			m.mu.Lock()
			m.unsubscribe = unsubscribe
			m.mu.Unlock()
		}
	}

	m.wg.Add(1)
	go m.probeLoop(runCtx)

	m.logger.Info("network monitor started",
		logging.String(logging.FieldEventType, "network_monitor_started"),
		logging.Duration("probe_interval", m.probeInterval),
	)
	return nil
}

// Stop tears down the subscription and all timers. Idempotent; no callbacks
// fire after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.logger.Info("network monitor stopped",
		logging.String(logging.FieldEventType, "network_monitor_stopped"),
	)
}

// CurrentQuality returns the latest snapshot, or false when no platform
// callback has been observed yet.
func (m *Monitor) CurrentQuality() (Quality, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Quality{}, false
	}
	return *m.current, true
}

// Online reports whether the current snapshot permits queue flushing.
func (m *Monitor) Online() bool {
	quality, ok := m.CurrentQuality()
	return ok && quality.Online()
}

// AddListener registers a callback invoked synchronously with each new
// snapshot, in registration order. The returned function unsubscribes.
func (m *Monitor) AddListener(fn func(Quality)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Update applies one raw platform callback: classify, derive the event kind,
// record history, and notify listeners.
func (m *Monitor) Update(raw RawState) {
	next := Classify(raw)
	now := time.Now().UTC()

	m.mu.Lock()
	prev := m.current

	event := Event{Timestamp: now, Current: next}
	if prev != nil {
		prevCopy := *prev
		event.Previous = &prevCopy
	}

	prevConnected := prev != nil && prev.Connected
	switch {
	case next.Connected && !prevConnected:
		event.Kind = EventConnected
		if m.disconnectedAt != nil {
			event.DurationMs = now.Sub(*m.disconnectedAt).Milliseconds()
			m.disconnectedAt = nil
		}
	case !next.Connected && prevConnected:
		event.Kind = EventDisconnected
		m.disconnectedAt = &now
	case prev != nil && prev.Type != next.Type:
		event.Kind = EventTypeChanged
	default:
		event.Kind = EventQualityChanged
		if prev == nil && !next.Connected {
			// First observation while offline still needs a disconnect anchor
			// so the next connected event carries a duration.
			event.Kind = EventDisconnected
			m.disconnectedAt = &now
		}
	}

	m.current = &next
	m.events = append(m.events, event)
	if len(m.events) > eventHistoryLimit {
		m.events = m.events[len(m.events)-eventHistoryLimit:]
	}

	probeNow := event.Kind == EventConnected
	debounceProbe := event.Kind == EventTypeChanged && next.Connected
	listeners := m.listenerSnapshot()
	m.persistLocked()
	m.mu.Unlock()

	m.logger.Debug("connectivity transition",
		logging.String(logging.FieldEventType, string(event.Kind)),
		logging.String("connection_type", string(next.Type)),
		logging.Bool("connected", next.Connected),
		logging.String("strength", string(next.Strength)),
	)

	for _, fn := range listeners {
		fn(next)
	}

	if probeNow {
		m.asyncProbe()
	}
	if debounceProbe {
		m.scheduleDebouncedProbe()
	}
}

// TestConnectionNow runs a manual probe. When disconnected it fails fast with
// a synthetic sample and never touches the network.
func (m *Monitor) TestConnectionNow(ctx context.Context) ConnectionTest {
	if !m.Online() {
		sample := ConnectionTest{
			Timestamp: time.Now().UTC(),
			Error:     "no network connection",
		}
		m.recordTest(sample)
		return sample
	}
	sample := m.prober.Probe(ctx)
	m.recordTest(sample)
	return sample
}

// Events returns a copy of the transition history, oldest first.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

// Tests returns a copy of the probe sample history, oldest first.
func (m *Monitor) Tests() []ConnectionTest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ConnectionTest, len(m.tests))
	copy(cp, m.tests)
	return cp
}

// Stats derives aggregate probe statistics. The rolling average covers the
// last rollingSampleLimit successful samples inside rollingWindow.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Monitor) statsLocked() Stats {
	stats := Stats{TotalTests: len(m.tests)}
	cutoff := time.Now().UTC().Add(-rollingWindow)

	var sum int64
	for i := len(m.tests) - 1; i >= 0; i-- {
		test := m.tests[i]
		if stats.LastTestAt == nil {
			ts := test.Timestamp
			stats.LastTestAt = &ts
		}
		if !test.Success {
			continue
		}
		if stats.SampleCount >= rollingSampleLimit || test.Timestamp.Before(cutoff) {
			continue
		}
		sum += test.LatencyMs
		stats.SampleCount++
	}
	for _, test := range m.tests {
		if !test.Success {
			stats.FailedTests++
		}
	}
	if stats.SampleCount > 0 {
		stats.AverageLatencyMs = sum / int64(stats.SampleCount)
	}
	return stats
}

func (m *Monitor) recordTest(sample ConnectionTest) {
	m.mu.Lock()
	m.tests = append(m.tests, sample)
	if len(m.tests) > testHistoryLimit {
		m.tests = m.tests[len(m.tests)-testHistoryLimit:]
	}

	var listeners []func(Quality)
	var snapshot Quality
	if sample.Success && m.current != nil {
		updated := *m.current
		updated.LatencyMs = sample.LatencyMs
		updated.Speed = speedForLatency(sample.LatencyMs)
		m.current = &updated
		snapshot = updated
		listeners = m.listenerSnapshot()
	}
	m.persistLocked()
	m.mu.Unlock()

	if sample.Success {
		m.logger.Debug("probe sample recorded",
			logging.Int64("latency_ms", sample.LatencyMs),
		)
	} else {
		m.logger.Debug("probe failed",
			logging.String("error", sample.Error),
		)
	}

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (m *Monitor) listenerSnapshot() []func(Quality) {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	// Registration order: ids are monotonically assigned.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	fns := make([]func(Quality), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	return fns
}

func (m *Monitor) asyncProbe() {
	m.mu.Lock()
	if !m.running || m.prober == nil {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		sample := m.prober.Probe(context.Background())
		m.recordTest(sample)
	}()
}

func (m *Monitor) scheduleDebouncedProbe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.debounceDelay, func() {
		if m.Online() {
			m.asyncProbe()
		}
	})
}

func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.Online() || m.prober == nil {
				continue
			}
			sample := m.prober.Probe(ctx)
			m.recordTest(sample)
		}
	}
}

// persistLocked writes history and stats through the store. Failures degrade
// to memory-only operation.
func (m *Monitor) persistLocked() {
	if m.store == nil {
		return
	}
	ctx := context.Background()
	records := []struct {
		key   string
		value any
	}{
		{keyEvents, m.events},
		{keyTests, m.tests},
		{keyStats, m.statsLocked()},
	}
	for _, record := range records {
		payload, err := json.Marshal(record.value)
		if err != nil {
			continue
		}
		if err := m.store.Set(ctx, record.key, string(payload)); err != nil {
			m.logger.Warn("persist network state failed",
				logging.Error(err),
				logging.String("key", record.key),
				logging.String(logging.FieldEventType, "network_persist_failed"),
				logging.String(logging.FieldImpact, "history will not survive a restart"),
			)
			return
		}
	}
}

func (m *Monitor) reload() {
	if m.store == nil {
		return
	}
	ctx := context.Background()

	if payload, ok, err := m.store.Get(ctx, keyEvents); err != nil {
		m.logger.Warn("load event history failed; starting empty", logging.Error(err))
	} else if ok {
		var events []Event
		if err := json.Unmarshal([]byte(payload), &events); err != nil {
			m.logger.Warn("event history payload invalid; starting empty", logging.Error(err))
		} else {
			m.events = events
		}
	}

	if payload, ok, err := m.store.Get(ctx, keyTests); err != nil {
		m.logger.Warn("load probe history failed; starting empty", logging.Error(err))
	} else if ok {
		var tests []ConnectionTest
		if err := json.Unmarshal([]byte(payload), &tests); err != nil {
			m.logger.Warn("probe history payload invalid; starting empty", logging.Error(err))
		} else {
			m.tests = tests
		}
	}
}
