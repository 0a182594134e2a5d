package scheduler

import (
	"context"

	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

// RunModule starts the configured sweep trigger. Only the scheduler process includes it.
var RunModule = fx.Module("scheduler.run",
	fx.Invoke(StartTrigger),
)

func StartTrigger(lc fx.Lifecycle, cfg config.Config, sched *Scheduler, log *zap.Logger) error {
	switch cfg.Scheduler.Trigger {
	case config.TriggerNone:
		log.Info("scheduler.trigger.disabled")
		return nil
	case config.TriggerAsynq:
		trigger, err := NewAsynqTrigger(cfg, sched, log)
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return trigger.Start() },
			OnStop: func(context.Context) error {
				trigger.Stop()
				return nil
			},
		})
		return nil
	}

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
