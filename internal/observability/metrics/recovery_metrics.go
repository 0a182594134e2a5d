package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config carries the constant labels attached to every collector.
type Config struct {
	ServiceName string
	Environment string
}

const (
	ErrorReasonDeadlineExceeded     = "deadline_exceeded"
	ErrorReasonDBLockTimeout        = "db_lock_timeout"
	ErrorReasonSerializationFailure = "serialization_failure"
	ErrorReasonUniqueViolation      = "unique_violation"
	ErrorReasonDB                   = "db"
	ErrorReasonUnknown              = "unknown"
)

const (
	OutcomeSent       = "sent"
	OutcomeEscalated  = "escalated"
	OutcomeStopped    = "stopped"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// RecoveryMetrics tracks sweep throughput and reminder delivery health.
type RecoveryMetrics struct {
	sweepRuns        *prometheus.CounterVec
	sweepDuration    *prometheus.HistogramVec
	sweepTimeouts    *prometheus.CounterVec
	sweepErrors      *prometheus.CounterVec
	sweepItems       *prometheus.CounterVec
	remindersSent    *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	runLoopLag       prometheus.Observer
}

var (
	recoveryMetricsOnce sync.Once
	recoveryMetrics     *RecoveryMetrics
)

// Recovery returns the singleton recovery metrics registry.
func Recovery() *RecoveryMetrics {
	return RecoveryWithConfig(Config{})
}

// RecoveryWithConfig returns the singleton recovery metrics registry using config labels.
func RecoveryWithConfig(cfg Config) *RecoveryMetrics {
	recoveryMetricsOnce.Do(func() {
		recoveryMetrics = newRecoveryMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return recoveryMetrics
}

// ResetForTest resets the singleton so tests can register against a fresh registry.
func ResetForTest() {
	recoveryMetricsOnce = sync.Once{}
	recoveryMetrics = nil
}

func newRecoveryMetrics(registerer prometheus.Registerer, cfg Config) *RecoveryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "invoicerecovery"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &RecoveryMetrics{
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_sweep_runs_total",
			Help:        "Reminder sweep runs by job.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "recovery_sweep_duration_seconds",
			Help:        "Reminder sweep latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		sweepTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_sweep_timeouts_total",
			Help:        "Reminder sweeps that hit their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		sweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_sweep_errors_total",
			Help:        "Reminder sweep errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_sweep_items_total",
			Help:        "Due automations handled by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_reminders_sent_total",
			Help:        "Reminders delivered to a channel by stage.",
			ConstLabels: constLabels,
		}, []string{"stage", "channel"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_reminders_failed_total",
			Help:        "Reminder sends rejected by a channel.",
			ConstLabels: constLabels,
		}, []string{"channel"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_automation_transitions_total",
			Help:        "Automation lifecycle transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_dispatch_conflicts_total",
			Help:        "Dispatch writes discarded because a concurrent update won.",
			ConstLabels: constLabels,
		}, []string{"phase"}),
	}
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "recovery_sweep_runloop_lag_seconds",
		Help:        "Sweep run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})
	m.runLoopLag = runLoopLag

	registerer.MustRegister(
		m.sweepRuns,
		m.sweepDuration,
		m.sweepTimeouts,
		m.sweepErrors,
		m.sweepItems,
		m.remindersSent,
		m.dispatchFailures,
		m.transitions,
		m.conflicts,
		runLoopLag,
	)
	return m
}

// IncSweepRun increments the run counter for a sweep job.
func (m *RecoveryMetrics) IncSweepRun(job string) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(job).Inc()
}

// ObserveSweepDuration records sweep latency.
func (m *RecoveryMetrics) ObserveSweepDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *RecoveryMetrics) IncSweepTimeout(job string) {
	if m == nil {
		return
	}
	m.sweepTimeouts.WithLabelValues(job).Inc()
}

// IncSweepError counts a failed sweep with a classified reason.
func (m *RecoveryMetrics) IncSweepError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.sweepErrors.WithLabelValues(job, ClassifyErrorReason(err)).Inc()
}

// AddSweepItems adds count items to the given outcome.
func (m *RecoveryMetrics) AddSweepItems(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepItems.WithLabelValues(outcome).Add(float64(count))
}

func (m *RecoveryMetrics) IncReminderSent(stage, channel string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(stage, channel).Inc()
}

func (m *RecoveryMetrics) IncReminderFailed(channel string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(channel).Inc()
}

// IncTransition counts an automation moving between stages or statuses.
func (m *RecoveryMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// IncConflict counts a discarded write in the named dispatch phase.
func (m *RecoveryMetrics) IncConflict(phase string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(phase).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and the actual run start.
func (m *RecoveryMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(max(duration, 0).Seconds())
}

// ClassifyErrorReason maps errors to low-cardinality reasons.
func ClassifyErrorReason(err error) string {
	switch {
	case err == nil:
		return ErrorReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ErrorReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ErrorReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ErrorReasonUniqueViolation
	case isDBError(err):
		return ErrorReasonDB
	default:
		return ErrorReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
