package network

import "time"

// ConnectionType identifies the transport carrying traffic.
type ConnectionType string

const (
	TypeWifi     ConnectionType = "wifi"
	TypeCellular ConnectionType = "cellular"
	TypeEthernet ConnectionType = "ethernet"
	TypeNone     ConnectionType = "none"
	TypeUnknown  ConnectionType = "unknown"
)

// Strength is the transport-derived signal classification.
type Strength string

const (
	StrengthExcellent Strength = "excellent"
	StrengthGood      Strength = "good"
	StrengthFair      Strength = "fair"
	StrengthPoor      Strength = "poor"
	StrengthUnknown   Strength = "unknown"
)

// Speed is the measured performance classification. It is never set by the
// classifier; only latency probe samples update it.
type Speed string

const (
	SpeedFast    Speed = "fast"
	SpeedMedium  Speed = "medium"
	SpeedSlow    Speed = "slow"
	SpeedUnknown Speed = "unknown"
)

// Quality is an immutable connectivity snapshot. Each classifier update
// supersedes the previous snapshot wholesale; listeners receive copies.
type Quality struct {
	Type              ConnectionType `json:"connection_type"`
	Connected         bool           `json:"is_connected"`
	InternetReachable bool           `json:"is_internet_reachable"`
	Strength          Strength       `json:"strength"`
	Speed             Speed          `json:"speed"`
	LatencyMs         int64          `json:"latency_ms"`
	BandwidthKbps     int64          `json:"bandwidth_kbps"`
}

// Online reports whether the snapshot is good enough to flush queued work.
func (q Quality) Online() bool {
	return q.Connected && q.InternetReachable
}

// RawState is the normalized form of a platform connectivity callback.
type RawState struct {
	Type               ConnectionType `json:"type"`
	Connected          bool           `json:"is_connected"`
	InternetReachable  bool           `json:"is_internet_reachable"`
	WifiSignalPercent  int            `json:"wifi_signal_percent"`
	CellularGeneration string         `json:"cellular_generation"`
}

// ConnectionTest is a single latency probe sample. Probe failures are data,
// not errors.
type ConnectionTest struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
}

// EventKind classifies a connectivity transition.
type EventKind string

const (
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
	EventTypeChanged    EventKind = "type_changed"
	EventQualityChanged EventKind = "quality_changed"
)

// Event records one connectivity transition. DurationMs is populated only on
// connected events, measured from the preceding disconnect.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       EventKind `json:"kind"`
	Previous   *Quality  `json:"previous,omitempty"`
	Current    Quality   `json:"current"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Stats aggregates probe outcomes for display and gating decisions.
type Stats struct {
	AverageLatencyMs int64      `json:"average_latency_ms"`
	SampleCount      int        `json:"sample_count"`
	TotalTests       int        `json:"total_tests"`
	FailedTests      int        `json:"failed_tests"`
	LastTestAt       *time.Time `json:"last_test_at,omitempty"`
}

const (
	// eventHistoryLimit bounds the retained transition history (FIFO eviction).
	eventHistoryLimit = 100
	// testHistoryLimit bounds the retained probe samples (FIFO eviction).
	testHistoryLimit = 50
	// rollingSampleLimit is how many recent successful probes feed the average.
	rollingSampleLimit = 10
	// rollingWindow excludes stale samples from the rolling average.
	rollingWindow = 5 * time.Minute
)
