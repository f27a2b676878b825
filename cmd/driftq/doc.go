// Command driftq is the CLI entry point: it runs the daemon in the
// foreground and provides queue, network, and configuration subcommands that
// talk to a running daemon over its local HTTP API.
package main
