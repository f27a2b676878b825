// Package network turns raw platform connectivity signals into actionable
// quality metrics.
//
// The classifier maps a raw link state to a Quality snapshot using
// technology-specific strength thresholds. The latency prober measures round
// trips against a known endpoint; samples are data, never errors. The Monitor
// stitches both together: it owns the current snapshot, the bounded event and
// sample history, and the listener registry that downstream consumers (the
// offline queue foremost) use to gate their work.
package network
