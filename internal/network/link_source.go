package network

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"driftq/internal/logging"
)

// LinkSource derives connectivity state from kernel network interfaces and
// watches udev netlink events for link changes. It is the Linux
// implementation of Source.
type LinkSource struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewLinkSource creates a source backed by /sys networking state and udev
// uevents.
func NewLinkSource(logger *slog.Logger) *LinkSource {
	return &LinkSource{
		logger: logging.NewComponentLogger(logger, "link-source"),
	}
}

// Current inspects the kernel interface table and reports the best available
// transport. Internet reachability mirrors link state here; probe samples
// refine it.
func (s *LinkSource) Current(_ context.Context) (RawState, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return RawState{Type: TypeUnknown}, err
	}

	state := RawState{Type: TypeNone}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
			continue
		}
		candidate := transportForInterface(iface.Name)
		if !preferTransport(candidate, state.Type) {
			continue
		}
		state.Type = candidate
		state.Connected = true
		state.InternetReachable = true
		if candidate == TypeWifi {
			state.WifiSignalPercent = wifiSignalPercent(iface.Name)
		}
	}
	return state, nil
}

// Subscribe starts a udev watch for SUBSYSTEM=net events. Every matched event
// triggers a fresh Current read pushed to onChange.
func (s *LinkSource) Subscribe(onChange func(RawState)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return func() {}, nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}

	s.conn = conn
	s.quit = make(chan struct{})
	s.running = true

	quit := s.quit
	go s.watchLoop(quit, onChange)

	s.logger.Info("link watch started",
		logging.String(logging.FieldEventType, "link_watch_started"),
	)

	return func() { s.stop() }, nil
}

func (s *LinkSource) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.running = false

	s.logger.Info("link watch stopped",
		logging.String(logging.FieldEventType, "link_watch_stopped"),
	)
}

func (s *LinkSource) watchLoop(quit <-chan struct{}, onChange func(RawState)) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, s.buildMatcher())

	for {
		select {
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			s.logger.Debug("link event",
				logging.String("action", string(uevent.Action)),
				logging.String("interface", uevent.Env["INTERFACE"]),
			)
			state, err := s.Current(context.Background())
			if err != nil {
				s.logger.Warn("interface read after link event failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "link_read_failed"),
					logging.String(logging.FieldErrorHint, "check kernel networking state"),
				)
				continue
			}
			onChange(state)
		case err := <-errs:
			s.logger.Warn("link watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "link_watch_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "connectivity changes may be missed"),
			)
		}
	}
}

// buildMatcher matches network interface uevents:
// SUBSYSTEM=net, ACTION=add|remove|change|move
func (s *LinkSource) buildMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func transportForInterface(name string) ConnectionType {
	switch {
	case strings.HasPrefix(name, "wl"):
		return TypeWifi
	case strings.HasPrefix(name, "en"), strings.HasPrefix(name, "eth"):
		return TypeEthernet
	case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "usb"):
		return TypeCellular
	default:
		return TypeUnknown
	}
}

// preferTransport ranks candidate over current: ethernet > wifi > cellular > unknown.
func preferTransport(candidate, current ConnectionType) bool {
	rank := func(t ConnectionType) int {
		switch t {
		case TypeEthernet:
			return 4
		case TypeWifi:
			return 3
		case TypeCellular:
			return 2
		case TypeUnknown:
			return 1
		default:
			return 0
		}
	}
	return rank(candidate) > rank(current)
}

// wifiSignalPercent reads link quality for iface from /proc/net/wireless and
// scales the kernel's 0-70 quality value to a percentage. Returns -1 when the
// value is unavailable.
func wifiSignalPercent(iface string) int {
	file, err := os.Open("/proc/net/wireless")
	if err != nil {
		return -1
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, iface+":") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return -1
		}
		quality, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return -1
		}
		percent := int(quality / 70 * 100)
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
		return percent
	}
	return -1
}
