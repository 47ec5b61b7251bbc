// Package jobs runs the recurring maintenance work: extending every doctor's
// bookable slot horizon overnight so the window never shrinks as days pass.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/medline/medline/internal/domain/scheduling"
)

// nightly runs shortly after midnight so the new day's horizon is in place
// before clinics open.
const nightlySpec = "5 0 * * *"

type Scheduler struct {
	cron      *cron.Cron
	scheduler *scheduling.Service
	log       zerolog.Logger
	params    scheduling.GenerationParams
}

func NewScheduler(svc *scheduling.Service, daysAhead, slotsPerDay int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		scheduler: svc,
		log:       log.With().Str("component", "jobs").Logger(),
		params:    scheduling.GenerationParams{DaysAhead: daysAhead, SlotsPerDay: slotsPerDay},
	}
}

// Start registers the nightly sweep and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(nightlySpec, s.runNightly); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", nightlySpec).Msg("nightly slot regeneration scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runNightly() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	ok, err := s.scheduler.RegenerateAll(ctx, s.params)
	if err != nil {
		s.log.Error().Err(err).Msg("nightly slot regeneration failed")
		return
	}
	s.log.Info().Int("doctors", ok).Dur("took", time.Since(start)).
		Msg("nightly slot regeneration complete")
}
