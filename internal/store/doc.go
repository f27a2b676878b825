// Package store provides the durable key-value persistence layer shared by
// the offline queue and the network monitor.
//
// It is a thin SQLite wrapper: string keys map to opaque string values, every
// write is flushed by the WAL journal, and callers own serialization. Write
// failures are reported to callers, who log them and continue in memory-only
// mode.
package store
