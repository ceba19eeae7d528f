package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// rateLimitCleanupSchedule runs every five minutes
const rateLimitCleanupSchedule = "0 */5 * * * *"

// CronService manages scheduled background jobs
type CronService struct {
	cron              *cron.Cron
	bookingSvc        *BookingService
	counter           *MemoryCounter
	autoCompleteAfter time.Duration
	sweepSchedule     string
	logger            *logrus.Logger
}

// NewCronService creates a new CronService. counter may be nil when rate
// limit windows live in redis.
func NewCronService(bookingSvc *BookingService, counter *MemoryCounter, autoCompleteAfter time.Duration, sweepSchedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		// second minute hour day month weekday
		cron:              cron.New(cron.WithSeconds()),
		bookingSvc:        bookingSvc,
		counter:           counter,
		autoCompleteAfter: autoCompleteAfter,
		sweepSchedule:     sweepSchedule,
		logger:            logger,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if s.autoCompleteAfter > 0 {
		if _, err := s.cron.AddFunc(s.sweepSchedule, s.completePaidBookingsJob); err != nil {
			return fmt.Errorf("failed to schedule paid booking sweep: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"schedule": s.sweepSchedule,
			"after":    s.autoCompleteAfter.String(),
		}).Info("Scheduled: complete stale paid bookings")
	}

	if s.counter != nil {
		if _, err := s.cron.AddFunc(rateLimitCleanupSchedule, s.cleanupRateLimitsJob); err != nil {
			return fmt.Errorf("failed to schedule rate limit cleanup: %w", err)
		}
		s.logger.Info("Scheduled: rate limit window cleanup (every 5 minutes)")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) completePaidBookingsJob() {
	s.logger.Info("[CRON] Starting paid booking sweep...")
	if _, err := s.RunSweepNow(context.Background()); err != nil {
		s.logger.WithError(err).Error("[CRON] Paid booking sweep failed")
	}
}

// RunSweepNow completes bookings paid longer ago than the configured
// threshold and returns how many it completed
func (s *CronService) RunSweepNow(ctx context.Context) (int, error) {
	startTime := time.Now()

	completed, err := s.bookingSvc.CompleteStalePaidBookings(ctx, s.autoCompleteAfter)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"completed": completed,
		"duration":  time.Since(startTime).String(),
	}).Info("Paid booking sweep finished")
	return completed, nil
}

func (s *CronService) cleanupRateLimitsJob() {
	removed := s.counter.Cleanup()
	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("[CRON] Cleaned up rate limit windows")
	}
}
