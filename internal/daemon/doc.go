// Package daemon wires the network monitor, offline queue, and remote
// executor into a long-running service with single-instance locking and a
// local HTTP API.
package daemon
