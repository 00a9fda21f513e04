package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/pkg/config"
)

// Scheduler periodically runs the pending report batch.
type Scheduler struct {
	cron    *cron.Cron
	reports *service.ReportService
	metrics *service.MetricsService
	limit   int
	spec    string
	logger  *zap.Logger
}

// New constructs the scheduler from the reports configuration.
func New(reports *service.ReportService, metrics *service.MetricsService, cfg config.ReportsConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec := cfg.Interval
	if spec == "" {
		spec = "@every 5m"
	}
	return &Scheduler{
		cron:    cron.New(),
		reports: reports,
		metrics: metrics,
		limit:   cfg.BatchLimit,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the batch job and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Sugar().Infow("report scheduler started", "interval", s.spec, "batch_limit", s.limit)
	return nil
}

// RunOnce executes a single batch pass. Exposed so an operator endpoint can
// trigger it outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) service.BatchResult {
	start := time.Now()
	result, err := s.reports.ProcessPending(ctx, s.limit)
	if err != nil {
		s.logger.Sugar().Errorw("report batch failed", "error", err)
		return result
	}
	s.metrics.ObserveReportBatch(result, time.Since(start))
	s.logger.Sugar().Infow("report batch finished",
		"selected", result.Selected,
		"delivered", result.Delivered,
		"failed", result.Failed,
		"duration", time.Since(start))
	return result
}

// Stop halts the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
