package logging

// Standardized structured logging keys shared across components.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldEventType is a machine-readable event identifier.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step when a warning or error is logged.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldOperationID identifies a queued operation.
	FieldOperationID = "operation_id"
	// FieldCategory is the caller-supplied operation grouping label.
	FieldCategory = "category"
	// FieldPriority is the operation priority band.
	FieldPriority = "priority"
)
