package service

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/jaskledger/internal/config"
	"github.com/jask/jaskledger/internal/rules"
)

func TestSchedulerRunOnce(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	f.rule(t, "R1", "STARBUCKS", coffee)
	tx := f.tx(t, "STARBUCKS", date(2024, 1, 1))

	savings, err := f.svc.Ledger.CreateAccount(f.ctx, "Savings")
	require.NoError(t, err)
	broken, err := f.svc.Rules.CreateForAccount(f.ctx, savings.ID, RuleInput{Name: "broken", CategoryID: coffee.ID, Pattern: strPtr("x")})
	require.NoError(t, err)
	f.breakRule(t, broken.ID, "(")

	s, err := NewScheduler(f.svc.Ledger.Accounts, f.svc.Apply, config.SchedulerConfig{Schedule: "@hourly", Timezone: "Europe/Rome", Concurrency: 2})
	require.NoError(t, err)

	results, err := s.RunOnce(f.ctx)
	require.ErrorIs(t, err, rules.ErrInvalidPattern)
	require.Len(t, results, 1)
	require.Equal(t, 1, results[f.acct.ID].Updated)
	require.True(t, f.get(t, tx.ID).Categorized())
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(nil, nil, config.SchedulerConfig{Schedule: "not cron"})
	require.Error(t, err)
	_, err = NewScheduler(nil, nil, config.SchedulerConfig{Schedule: "0 18 * * *", Timezone: "Mars/Olympus"})
	require.Error(t, err)

	s, err := NewScheduler(nil, nil, config.SchedulerConfig{Schedule: "0 18 * * *"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Concurrency)
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()
	f := setupTest(t)

	s, err := NewScheduler(f.svc.Ledger.Accounts, f.svc.Apply, config.SchedulerConfig{Schedule: "@daily", Concurrency: 1})
	require.NoError(t, err)
	require.NoError(t, s.Start(f.ctx))
	require.Error(t, s.Start(f.ctx))
	s.Stop()
	require.NoError(t, s.Start(f.ctx))
	s.Stop()
}

// Not parallel: it counts goroutines.
func TestSchedulerStopReleasesWatcher(t *testing.T) {
	s, err := NewScheduler(nil, nil, config.SchedulerConfig{Schedule: "@daily", Concurrency: 1})
	require.NoError(t, err)

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Start(context.Background()))
		s.Stop()
	}
	s.Stop()

	require.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler(nil, nil, config.SchedulerConfig{Schedule: "@daily", Concurrency: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	// once the watcher has stopped it, the scheduler can start again
	require.Eventually(t, func() bool {
		if err := s.Start(context.Background()); err != nil {
			return false
		}
		s.Stop()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}
