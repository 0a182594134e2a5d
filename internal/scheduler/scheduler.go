package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	obsmetrics "github.com/smallbiznis/invoicerecovery/internal/observability/metrics"
	"github.com/smallbiznis/invoicerecovery/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const JobSweepReminders = "sweep_reminders"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

var tracer = otel.Tracer("github.com/smallbiznis/invoicerecovery/internal/scheduler")

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	AppConfig      config.Config
	Recovery       *config.RecoveryConfigHolder
	Locker         lock.Locker
	AutomationRepo automationdomain.Repository
	InvoiceRepo    invoicedomain.Repository
	ClientRepo     clientdomain.Repository
	Behavior       behaviordomain.Service
	Sender         channel.Sender
	Config         Config `optional:"true"`
}

// SweepResult aggregates the outcome of one pass over due automations.
type SweepResult struct {
	Processed  int `json:"processed"`
	Sent       int `json:"sent"`
	Escalated  int `json:"escalated"`
	Stopped    int `json:"stopped"`
	Superseded int `json:"superseded"`
	Errors     int `json:"errors"`
}

type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	cfg            Config
	genID          *snowflake.Node
	clock          clock.Clock
	senderName     string
	recovery       *config.RecoveryConfigHolder
	locker         lock.Locker
	automationRepo automationdomain.Repository
	invoiceRepo    invoicedomain.Repository
	clientRepo     clientdomain.Repository
	behavior       behaviordomain.Service
	sender         channel.Sender
	metrics        *obsmetrics.RecoveryMetrics

	// serializes overlapping triggers in one process
	running sync.Mutex
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Locker == nil ||
		p.AutomationRepo == nil || p.InvoiceRepo == nil || p.ClientRepo == nil || p.Behavior == nil || p.Sender == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
		genID:          p.GenID,
		clock:          p.Clock,
		senderName:     p.AppConfig.Email.SMTPFromName,
		recovery:       p.Recovery,
		locker:         p.Locker,
		automationRepo: p.AutomationRepo,
		invoiceRepo:    p.InvoiceRepo,
		clientRepo:     p.ClientRepo,
		behavior:       p.Behavior,
		sender:         p.Sender,
		metrics:        obsmetrics.Recovery(),
	}, nil
}

// RunOnce performs one sweep with the job timeout applied. A timeout is logged, not returned.
func (s *Scheduler) RunOnce(parent context.Context) (SweepResult, error) {
	var result SweepResult
	err := s.runJob(parent, JobSweepReminders, s.cfg.BatchSize, s.cfg.JobTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.ProcessScheduledReminders(ctx)
		return err
	})
	return result, err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler.run.failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.metrics.IncSweepRun(name)
	err := fn(ctx)
	s.metrics.ObserveSweepDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	s.metrics.IncSweepError(name, err)
	if isTimeout {
		s.metrics.IncSweepTimeout(name)
		s.logger(ctx).Warn("scheduler.job.timeout",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Int("batch_size", batchSize),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// ProcessScheduledReminders dispatches every automation due at the sweep start. Per-automation
// failures are counted in the result; only a failure to read the due list is returned.
func (s *Scheduler) ProcessScheduledReminders(ctx context.Context) (SweepResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	ctx, run, owner := s.ensureJobRun(ctx, JobSweepReminders, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	ctx, span := tracer.Start(ctx, "scheduler.sweep")
	defer span.End()

	now := s.clock.Now()
	var (
		mu     sync.Mutex
		result SweepResult
		cursor *automationdomain.DueCursor
	)
	for {
		if err := ctx.Err(); err != nil {
			return s.finishSweep(ctx, run, owner, span, result, err)
		}

		batch, err := s.automationRepo.ListDue(ctx, s.db, now, cursor, s.cfg.BatchSize)
		if err != nil {
			return s.finishSweep(ctx, run, owner, span, result, fmt.Errorf("list due automations: %w", err))
		}
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for _, item := range batch {
			g.Go(func() error {
				out, err := s.dispatch(ctx, item, now)
				if err != nil {
					s.logDispatchError(ctx, "scheduler.dispatch.failed", item.OrgID, item.ID, err,
						zap.String("stage", string(item.CurrentStage)),
					)
				}
				mu.Lock()
				result.record(out, err)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		last := batch[len(batch)-1]
		cursor = &automationdomain.DueCursor{At: *last.NextScheduledAt, ID: last.ID}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	return s.finishSweep(ctx, run, owner, span, result, nil)
}

func (s *Scheduler) finishSweep(ctx context.Context, run *jobRun, owner bool, span trace.Span, result SweepResult, err error) (SweepResult, error) {
	span.SetAttributes(
		attribute.Int("sweep.processed", result.Processed),
		attribute.Int("sweep.sent", result.Sent),
		attribute.Int("sweep.errors", result.Errors),
	)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "sweep failed")
	}

	s.metrics.AddSweepItems(obsmetrics.OutcomeSent, result.Sent)
	s.metrics.AddSweepItems(obsmetrics.OutcomeEscalated, result.Escalated)
	s.metrics.AddSweepItems(obsmetrics.OutcomeStopped, result.Stopped)
	s.metrics.AddSweepItems(obsmetrics.OutcomeSuperseded, result.Superseded)
	s.metrics.AddSweepItems(obsmetrics.OutcomeFailed, result.Errors)

	if owner {
		s.logJobFinish(ctx, run, result)
	}
	return result, err
}

func (r *SweepResult) record(out outcome, err error) {
	r.Processed++
	if err != nil {
		r.Errors++
		return
	}
	switch out {
	case outcomeEscalated:
		r.Sent++
		r.Escalated++
	case outcomeExhausted:
		r.Sent++
		r.Stopped++
	case outcomeStopped:
		r.Stopped++
	case outcomeSuperseded:
		r.Superseded++
	}
}
