package daemon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"driftq/internal/config"
	"driftq/internal/daemon"
	"driftq/internal/logging"
	"driftq/internal/network"
	"driftq/internal/offline"
	"driftq/internal/testsupport"
)

type stubSource struct {
	mu       sync.Mutex
	state    network.RawState
	onChange func(network.RawState)
}

func (s *stubSource) Current(context.Context) (network.RawState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *stubSource) Subscribe(onChange func(network.RawState)) (func(), error) {
	s.mu.Lock()
	s.onChange = onChange
	s.mu.Unlock()
	return func() {}, nil
}

func (s *stubSource) push(state network.RawState) {
	s.mu.Lock()
	s.state = state
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

type stubProber struct{}

func (stubProber) Probe(context.Context) network.ConnectionTest {
	return network.ConnectionTest{Timestamp: time.Now(), Success: true, LatencyMs: 40}
}

func newTestDaemon(t *testing.T, cfg *config.Config, source network.Source) (*daemon.Daemon, *offline.Queue) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	q := offline.New(offline.Config{}, st, offline.ExecutorFunc(
		func(context.Context, string, map[string]any) ([]byte, error) { return nil, nil },
	), logger)
	mon := network.NewMonitor(source, stubProber{}, st, logger, network.MonitorOptions{
		ProbeInterval: time.Hour,
	})

	d, err := daemon.New(cfg, st, q, mon, logger)
	if err != nil {
		t.Fatalf("New daemon failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, q
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := &stubSource{state: network.RawState{Type: "wifi", Connected: true, InternetReachable: true}}

	first, _ := newTestDaemon(t, cfg, source)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second, _ := newTestDaemon(t, cfg, &stubSource{})
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while lock is held")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected Start to succeed after lock release, got %v", err)
	}
	second.Stop()
}

func TestConnectivityChangesReachQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := &stubSource{state: network.RawState{Type: "none"}}

	d, q := newTestDaemon(t, cfg, source)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	if q.Online() {
		t.Fatal("expected queue offline before any connectivity")
	}

	source.push(network.RawState{Type: "wifi", Connected: true, InternetReachable: true, WifiSignalPercent: 90})
	deadline := time.Now().Add(2 * time.Second)
	for !q.Online() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for queue to observe connectivity")
		}
		time.Sleep(5 * time.Millisecond)
	}

	source.push(network.RawState{Type: "none"})
	deadline = time.Now().Add(2 * time.Second)
	for q.Online() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for queue to observe disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusReportsRuntimeState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := &stubSource{state: network.RawState{Type: "wifi", Connected: true, InternetReachable: true, WifiSignalPercent: 85}}

	d, _ := newTestDaemon(t, cfg, source)
	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("expected not running before Start")
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	status = d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running after Start")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}
	if status.Network == nil || status.Network.Type != network.TypeWifi {
		t.Fatalf("unexpected network snapshot: %+v", status.Network)
	}
	if status.StoreDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths: %+v", status)
	}
}
