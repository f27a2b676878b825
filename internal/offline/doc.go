// Package offline implements the durable write queue. Operations enqueued
// while disconnected persist across restarts and flush automatically when
// connectivity returns, in priority order, with exponential backoff on
// failures.
package offline
