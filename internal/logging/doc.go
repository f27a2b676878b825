// Package logging builds the slog loggers used across driftq.
//
// It provides a human-readable console handler and a JSON handler selected by
// configuration, typed attribute constructors, and component loggers that
// prefix console output with the emitting subsystem. Standard field names are
// defined in fields.go so queue and network records stay greppable.
package logging
