package logging

const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldRunID     = "run_id"
	FieldSource    = "source"
	FieldStrategy  = "strategy"
	FieldAttempt   = "attempt"
)
