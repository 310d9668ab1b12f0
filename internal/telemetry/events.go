package telemetry

// Event names sent by the CLI. Property values are counts, durations, and
// status strings only.
const (
	// EventEnrichCompleted fires after an enrichment attempt, with the
	// outcome status, source count, and elapsed time.
	EventEnrichCompleted = "enrich_completed"

	// EventCacheCleanup fires after `cache cleanup` or `cache clear`, with
	// the number of entries removed.
	EventCacheCleanup = "cache_cleanup"

	// EventDoctorRun fires after `doctor`, with pass/warn/fail counts.
	EventDoctorRun = "doctor_run"

	// EventCommandError fires when a command exits with an error, with the
	// command name only.
	EventCommandError = "command_error"
)
