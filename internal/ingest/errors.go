package ingest

import "errors"

var (
	// ErrPassAborted wraps a panic recovered inside an ingestion pass.
	ErrPassAborted = errors.New("ingestion pass aborted")

	// ErrInvalidSchedule is returned for an unparsable cron expression.
	ErrInvalidSchedule = errors.New("invalid ingest schedule")
)
