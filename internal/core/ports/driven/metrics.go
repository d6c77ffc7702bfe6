package driven

import "time"

// MetricsRecorder exports run counters. Implementations must tolerate calls
// from multiple goroutines.
type MetricsRecorder interface {
	// ObserveStage records the item count leaving a stage and its duration.
	ObserveStage(stage string, count int, d time.Duration)

	// IncError counts a non-fatal error in a stage.
	IncError(stage string)

	// ObserveVerdict counts a semantic validation verdict.
	ObserveVerdict(verdict string)

	// Flush persists the collected metrics, if the implementation buffers.
	Flush() error
}
