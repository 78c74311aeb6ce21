package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jask/jaskledger/internal/config"
	"github.com/jask/jaskledger/internal/logger"
)

// Scheduler periodically applies single-match rules across all accounts.
type Scheduler struct {
	Accounts    AccountStore
	Apply       *ApplyService
	Schedule    string
	Location    *time.Location
	Concurrency int

	mu   sync.Mutex
	cron *cron.Cron
	done chan struct{}
}

func NewScheduler(accounts AccountStore, apply *ApplyService, cfg config.SchedulerConfig) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("scheduler schedule %q: %w", cfg.Schedule, err)
	}
	return &Scheduler{
		Accounts:    accounts,
		Apply:       apply,
		Schedule:    cfg.Schedule,
		Location:    loc,
		Concurrency: max(1, cfg.Concurrency),
	}, nil
}

// RunOnce applies rules to every account, several accounts at a time. A failing
// account does not stop the others; their errors are joined in the result.
func (s *Scheduler) RunOnce(ctx context.Context) (map[string]ApplyResult, error) {
	accts, err := s.Accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]ApplyResult, len(accts))
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(max(1, s.Concurrency))
	for _, a := range accts {
		a := a
		g.Go(func() error {
			res, err := s.Apply.Apply(ctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("account %s: %w", a.Name, err))
				return nil
			}
			results[a.ID] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Start runs RunOnce on the schedule until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}
	log := logger.FromContext(ctx)
	c := cron.New(cron.WithLocation(s.Location))
	_, err := c.AddFunc(s.Schedule, func() {
		results, err := s.RunOnce(ctx)
		updated := 0
		for _, r := range results {
			updated += r.Updated
		}
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Int("accounts", len(results)).Int("updated", updated).Msg("scheduled apply finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	done := make(chan struct{})
	s.cron, s.done = c, done
	log.Info().Str("schedule", s.Schedule).Str("timezone", s.Location.String()).Msg("scheduler started")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to finish. It is safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, done := s.cron, s.done
	s.cron, s.done = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	close(done)
	<-c.Stop().Done()
}
