package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules named background jobs. Jobs receive the process
// base context so an in-flight sweep is canceled on shutdown.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(name, spec string, job func(context.Context)) error {
	_, err := r.cron.AddFunc(spec, func() {
		if r.baseCtx.Err() != nil {
			return
		}
		started := time.Now()
		job(r.baseCtx)
		r.logger.Debug("cron job finished",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(started)))
	})
	if err != nil {
		return err
	}
	r.logger.Info("cron job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop waits for running jobs to finish before returning.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("cron stopped")
}
