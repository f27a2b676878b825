package offline

import "errors"

// ErrQueueFull is returned by Enqueue when the queue is saturated and no
// low-priority operation is available for eviction. It is the queue's only
// hard rejection path; every other failure is absorbed into stats.
var ErrQueueFull = errors.New("queue full: no evictable low-priority operation")

// ErrOffline is returned by ForceSync when no usable connection exists.
var ErrOffline = errors.New("no network connection")
