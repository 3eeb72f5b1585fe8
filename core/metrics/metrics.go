// Package metrics holds the backend-neutral instruments the runtime reports
// through, so core packages never import a metrics library directly.
package metrics

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.DispatchDuration("add_todo").ObserveDuration()
type Timer interface {
	ObserveDuration()
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }
