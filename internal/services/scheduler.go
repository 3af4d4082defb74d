package services

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic maintenance jobs: the stuck-record watchdog and the
// momentum decay.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func NewScheduler(ctx context.Context) *Scheduler {
	logger := cron.VerbosePrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags))
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		ctx: ctx,
	}
}

// Add registers a job. Failures are logged; the next tick runs it again.
func (s *Scheduler) Add(name, schedule string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job(s.ctx); err != nil {
			log.Printf("scheduler: job=%s err=%v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, schedule, err)
	}
	log.Printf("scheduler: job=%s schedule=%q", name, schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RegisterMaintenance wires the watchdog and decay jobs.
func RegisterMaintenance(s *Scheduler, p *ValidationPipeline, l *LexiconService, watchdog, decay string, factor float64) error {
	if err := s.Add("recover-stuck", watchdog, func(ctx context.Context) error {
		n, err := p.RecoverStuck(ctx)
		if n > 0 {
			log.Printf("scheduler: recovered stuck submissions=%d", n)
		}
		return err
	}); err != nil {
		return err
	}
	return s.Add("momentum-decay", decay, func(ctx context.Context) error {
		_, err := l.DecayMomentum(ctx, factor)
		return err
	})
}
