package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"salyqbot/internal/logging"
)

// Scheduler runs the daily report job.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New creates a scheduler for the given cron spec, evaluated in UTC.
// An empty spec disables it.
func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	log := logging.L()
	if s.spec == "" || s.reportFunc == nil {
		log.Warn("report schedule or function not set, scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		log.Info("daily report triggered")
		if err := s.reportFunc(s.ctx); err != nil {
			log.Error("daily report failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	logging.L().Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
