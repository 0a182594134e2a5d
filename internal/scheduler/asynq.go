package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/zap"
)

const TaskSweepReminders = "reminders:sweep"

type SweepPayload struct {
	Source string `json:"source"`
}

func NewSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepReminders, data), nil
}

func ParseSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepPayload{}, fmt.Errorf("decode sweep payload: %w", err)
	}
	return payload, nil
}

// AsynqTrigger enqueues a sweep task on a fixed interval and runs it on a queue worker.
// Unique tasks keep replicas from stacking sweeps for the same interval.
type AsynqTrigger struct {
	sched     *Scheduler
	log       *zap.Logger
	queue     string
	interval  time.Duration
	periodic  *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	redisConn asynq.RedisClientOpt
}

func NewAsynqTrigger(cfg config.Config, sched *Scheduler, log *zap.Logger) (*AsynqTrigger, error) {
	if !cfg.Redis.Enabled() {
		return nil, fmt.Errorf("%w: redis address required for asynq trigger", ErrInvalidConfig)
	}
	queue := cfg.Scheduler.AsynqQueue
	if queue == "" {
		queue = "default"
	}
	opt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	t := &AsynqTrigger{
		sched:     sched,
		log:       log.Named("scheduler.asynq"),
		queue:     queue,
		interval:  sched.cfg.RunInterval,
		redisConn: opt,
		periodic:  asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{queue: 1},
		}),
		mux: asynq.NewServeMux(),
	}
	t.mux.HandleFunc(TaskSweepReminders, t.handleSweep)
	return t, nil
}

func (t *AsynqTrigger) Start() error {
	task, err := NewSweepTask(SweepPayload{Source: "periodic"})
	if err != nil {
		return err
	}
	spec := fmt.Sprintf("@every %s", t.interval)
	if _, err := t.periodic.Register(spec, task,
		asynq.Queue(t.queue),
		asynq.Unique(t.interval),
		asynq.Timeout(t.sched.cfg.JobTimeout),
		asynq.MaxRetry(0),
	); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	if err := t.periodic.Start(); err != nil {
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	if err := t.server.Start(t.mux); err != nil {
		t.periodic.Shutdown()
		return fmt.Errorf("start asynq worker: %w", err)
	}
	t.log.Info("scheduler.asynq.started",
		zap.String("queue", t.queue),
		zap.Duration("interval", t.interval),
	)
	return nil
}

func (t *AsynqTrigger) Stop() {
	t.periodic.Shutdown()
	t.server.Shutdown()
}

// Enqueue schedules a single sweep outside the periodic cadence.
func (t *AsynqTrigger) Enqueue(ctx context.Context, source string) error {
	task, err := NewSweepTask(SweepPayload{Source: source})
	if err != nil {
		return err
	}
	client := asynq.NewClient(t.redisConn)
	defer client.Close()
	_, err = client.EnqueueContext(ctx, task, asynq.Queue(t.queue), asynq.MaxRetry(0))
	return err
}

func (t *AsynqTrigger) handleSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSweepPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result, err := t.sched.RunOnce(ctx)
	if err != nil {
		return err
	}
	t.log.Debug("scheduler.asynq.sweep",
		zap.String("source", payload.Source),
		zap.Int("processed", result.Processed),
	)
	return nil
}
