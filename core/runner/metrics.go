package runner

import "github.com/WIGGLES-dev/pobox/core/metrics"

// Metrics receives runner instrumentation. Implementations must be safe for
// concurrent use; see adapters/prometheus for the Prometheus one.
type Metrics interface {
	// Dispatch metrics
	DispatchDuration(dispatch string) metrics.Timer
	DispatchCompleted(dispatch string, success bool)
	DispatchPanic(dispatch string)

	// Loop metrics
	TickReceived(runner string, n int)
	MailboxDepth(runner string, depth int)
	ParallelInflight(runner string, n int)
	BorrowConflict(runner string)
	ActorsResident(runner string, n int)

	// Routing metrics
	MessagesDropped(runner string, reason string, n int)
	MessageForwarded(runner string)
	ShardSpawned(runner string)
	MigrationCompleted(runner string, success bool)
	LockViolation(runner string, kind string)
}

type nopMetrics struct{}

func (nopMetrics) DispatchDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) DispatchCompleted(string, bool)        {}
func (nopMetrics) DispatchPanic(string)                  {}
func (nopMetrics) TickReceived(string, int)              {}
func (nopMetrics) MailboxDepth(string, int)              {}
func (nopMetrics) ParallelInflight(string, int)          {}
func (nopMetrics) BorrowConflict(string)                 {}
func (nopMetrics) ActorsResident(string, int)            {}
func (nopMetrics) MessagesDropped(string, string, int)   {}
func (nopMetrics) MessageForwarded(string)               {}
func (nopMetrics) ShardSpawned(string)                   {}
func (nopMetrics) MigrationCompleted(string, bool)       {}
func (nopMetrics) LockViolation(string, string)          {}

// NopMetrics discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
