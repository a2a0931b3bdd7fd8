package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eromax-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SettlementScheduler fires the settlement jobs on wall-clock schedules.
type SettlementScheduler struct {
	settlement ports.SettlementService
	cron       *cron.Cron
	now        func() time.Time
	log        zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewSettlementScheduler registers the daily and pickup jobs. Schedules are
// standard five-field cron specs evaluated in loc.
func NewSettlementScheduler(
	settlement ports.SettlementService,
	dailySpec, pickupSpec string,
	loc *time.Location,
	log zerolog.Logger,
) (*SettlementScheduler, error) {
	s := &SettlementScheduler{
		settlement: settlement,
		cron:       cron.New(cron.WithLocation(loc)),
		now:        time.Now,
		log:        log,
	}
	if _, err := s.cron.AddFunc(dailySpec, func() { s.fire(JobDaily) }); err != nil {
		return nil, fmt.Errorf("schedule %s settlement %q: %w", JobDaily, dailySpec, err)
	}
	if _, err := s.cron.AddFunc(pickupSpec, func() { s.fire(JobPickups) }); err != nil {
		return nil, fmt.Errorf("schedule %s settlement %q: %w", JobPickups, pickupSpec, err)
	}
	return s, nil
}

// Start begins firing jobs in the background.
func (s *SettlementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("settlement scheduler started")
}

// Stop prevents new runs and waits for a running job until ctx expires.
func (s *SettlementScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	select {
	case <-s.cron.Stop().Done():
		s.log.Info().Msg("settlement scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for settlement jobs: %w", ctx.Err())
	}
}

func (s *SettlementScheduler) fire(job string) {
	ctx := context.Background()
	day := s.now()

	var (
		run *ports.SettlementRun
		err error
	)
	switch job {
	case JobDaily:
		run, err = s.settlement.RunDaily(ctx, day)
	case JobPickups:
		run, err = s.settlement.RunPickups(ctx, day)
	}
	if err != nil {
		s.log.Error().Err(err).Str("job", job).Msg("scheduled settlement failed")
		return
	}
	if run.Failed > 0 {
		s.log.Warn().Str("job", job).Int("failed", run.Failed).Msg("scheduled settlement finished with failed groups")
	}
}
