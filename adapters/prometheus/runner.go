package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/WIGGLES-dev/pobox/core/metrics"
	"github.com/WIGGLES-dev/pobox/core/runner"
)

// runnerMetrics implements runner.Metrics using Prometheus.
type runnerMetrics struct {
	dispatchDuration *prometheus.HistogramVec
	dispatchTotal    *prometheus.CounterVec
	panicTotal       *prometheus.CounterVec

	ticksTotal       *prometheus.CounterVec
	ticksSize        *prometheus.HistogramVec
	mailboxDepth     *prometheus.GaugeVec
	parallelInflight *prometheus.GaugeVec
	borrowConflicts  *prometheus.CounterVec
	actorsResident   *prometheus.GaugeVec

	droppedTotal    *prometheus.CounterVec
	forwardedTotal  *prometheus.CounterVec
	shardsTotal     *prometheus.CounterVec
	migrationsTotal *prometheus.CounterVec
	lockViolations  *prometheus.CounterVec
}

// NewRunnerMetrics creates a Prometheus implementation of runner.Metrics
// and registers its collectors with reg.
func NewRunnerMetrics(reg prometheus.Registerer) runner.Metrics {
	m := &runnerMetrics{
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pobox_dispatch_duration_seconds",
			Help:    "Dispatch execution time in seconds",
			Buckets: defaultBuckets,
		}, []string{"dispatch"}),

		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_dispatches_total",
			Help: "Total number of dispatches executed",
		}, []string{"dispatch", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_dispatch_panics_total",
			Help: "Total number of dispatch panics",
		}, []string{"dispatch"}),

		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_runner_ticks_total",
			Help: "Total number of loop ticks",
		}, []string{"runner"}),

		ticksSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pobox_runner_tick_messages",
			Help:    "Messages received per tick",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}, []string{"runner"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pobox_runner_mailbox_depth",
			Help: "Messages left in the runner channel after a tick",
		}, []string{"runner"}),

		parallelInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pobox_runner_parallel_inflight",
			Help: "Number of dispatches running on the parallel pool",
		}, []string{"runner"}),

		borrowConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_runner_borrow_conflicts_total",
			Help: "Dispatches that had to wait for a conflicting borrow",
		}, []string{"runner"}),

		actorsResident: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pobox_runner_actors_resident",
			Help: "Actors whose state lives on the runner",
		}, []string{"runner"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_router_messages_dropped_total",
			Help: "Messages dropped by the drop policy",
		}, []string{"runner", "reason"}),

		forwardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_router_messages_forwarded_total",
			Help: "Messages forwarded to shards",
		}, []string{"runner"}),

		shardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_router_shards_spawned_total",
			Help: "Shards spawned under load",
		}, []string{"runner"}),

		migrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_router_migrations_total",
			Help: "Actor migrations onto shards",
		}, []string{"runner", "success"}),

		lockViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pobox_runner_lock_violations_total",
			Help: "Rejected lock, unlock, pause and resume requests",
		}, []string{"runner", "kind"}),
	}

	reg.MustRegister(
		m.dispatchDuration,
		m.dispatchTotal,
		m.panicTotal,
		m.ticksTotal,
		m.ticksSize,
		m.mailboxDepth,
		m.parallelInflight,
		m.borrowConflicts,
		m.actorsResident,
		m.droppedTotal,
		m.forwardedTotal,
		m.shardsTotal,
		m.migrationsTotal,
		m.lockViolations,
	)

	return m
}

func (m *runnerMetrics) DispatchDuration(dispatch string) metrics.Timer {
	return newTimer(m.dispatchDuration.WithLabelValues(dispatch))
}

func (m *runnerMetrics) DispatchCompleted(dispatch string, success bool) {
	m.dispatchTotal.WithLabelValues(dispatch, boolToStr(success)).Inc()
}

func (m *runnerMetrics) DispatchPanic(dispatch string) {
	m.panicTotal.WithLabelValues(dispatch).Inc()
}

func (m *runnerMetrics) TickReceived(runner string, n int) {
	m.ticksTotal.WithLabelValues(runner).Inc()
	m.ticksSize.WithLabelValues(runner).Observe(float64(n))
}

func (m *runnerMetrics) MailboxDepth(runner string, depth int) {
	m.mailboxDepth.WithLabelValues(runner).Set(float64(depth))
}

func (m *runnerMetrics) ParallelInflight(runner string, n int) {
	m.parallelInflight.WithLabelValues(runner).Set(float64(n))
}

func (m *runnerMetrics) BorrowConflict(runner string) {
	m.borrowConflicts.WithLabelValues(runner).Inc()
}

func (m *runnerMetrics) ActorsResident(runner string, n int) {
	m.actorsResident.WithLabelValues(runner).Set(float64(n))
}

func (m *runnerMetrics) MessagesDropped(runner string, reason string, n int) {
	m.droppedTotal.WithLabelValues(runner, reason).Add(float64(n))
}

func (m *runnerMetrics) MessageForwarded(runner string) {
	m.forwardedTotal.WithLabelValues(runner).Inc()
}

func (m *runnerMetrics) ShardSpawned(runner string) {
	m.shardsTotal.WithLabelValues(runner).Inc()
}

func (m *runnerMetrics) MigrationCompleted(runner string, success bool) {
	m.migrationsTotal.WithLabelValues(runner, boolToStr(success)).Inc()
}

func (m *runnerMetrics) LockViolation(runner string, kind string) {
	m.lockViolations.WithLabelValues(runner, kind).Inc()
}

var _ runner.Metrics = (*runnerMetrics)(nil)
