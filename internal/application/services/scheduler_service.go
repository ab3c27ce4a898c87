package services

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/promptcrm/backend/pkg/constants"
)

// SchedulerService runs periodic maintenance. Currently only the expired
// lock sweep: correctness doesn't depend on it (acquire purges lazily), it
// just keeps the lock table from accumulating dead rows.
type SchedulerService struct {
	cron  *cron.Cron
	locks *LockService
}

// NewSchedulerService creates a new SchedulerService
func NewSchedulerService(locks *LockService) *SchedulerService {
	return &SchedulerService{
		cron:  cron.New(),
		locks: locks,
	}
}

// Start registers the jobs and starts the cron loop
func (s *SchedulerService) Start() error {
	_, err := s.cron.AddFunc(constants.LockSweepCronSpec, func() {
		s.locks.PurgeExpired(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("⏰ Scheduler started (lock sweep: %s)", constants.LockSweepCronSpec)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("⏰ Scheduler stopped")
}
