package agent

import "errors"

var (
	// ErrDecode is returned when a chunk payload is not valid UTF-8.
	ErrDecode = errors.New("chunk payload is not valid UTF-8")

	// ErrStreamConsumed is returned when a Stream is ranged over twice.
	ErrStreamConsumed = errors.New("response stream already consumed")

	// ErrIngestionFailed is returned by WaitIngestion when the job ends in
	// the FAILED state.
	ErrIngestionFailed = errors.New("ingestion job failed")
)
