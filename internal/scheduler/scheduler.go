package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

// DailyArchiver builds and stores the report for one day.
type DailyArchiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// Scheduler manages the store's calendar jobs.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	archiver DailyArchiver
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(spec string, loc *time.Location, archiver DailyArchiver, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		archiver: archiver,
		now:      func() time.Time { return time.Now().In(loc) },
		logger:   logger,
	}
}

// Start schedules the daily archive and starts the cron runner.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("daily_report", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.archiveToday); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.spec, err)
	}

	s.cron.Start()
	return nil
}

// Every runs job on spec with a bounded context. Jobs may be added after Start.
func (s *Scheduler) Every(spec, name string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		job(ctx)
		s.logger.Debug("job finished", zap.String("job", name))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) archiveToday() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	day := s.now()
	report, err := s.archiver.ArchiveDay(ctx, day)
	if err != nil {
		s.logger.Error("failed to archive daily report", zap.Error(err))
		return
	}

	s.logger.Info("daily report archived",
		zap.Time("date", report.Date),
		zap.Int("receipts", report.Receipts),
		zap.Float64("sales", report.SalesAmount))
}
