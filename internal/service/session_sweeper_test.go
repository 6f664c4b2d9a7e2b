package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"hoofprint/internal/observability"
	"hoofprint/internal/testutil"
)

func TestSessionSweeper_SweepOnce(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	ctx := context.Background()

	live := testutil.NewTestSession()
	dead := testutil.NewTestSession(testutil.WithExpired())
	testutil.AssertNoError(t, sessions.Create(ctx, live))
	testutil.AssertNoError(t, sessions.Create(ctx, dead))

	before := promtestutil.ToFloat64(observability.SessionsSweptTotal)

	sweeper := NewSessionSweeper(sessions, time.Minute, nil)
	testutil.AssertEqual(t, sweeper.SweepOnce(ctx), int64(1))
	testutil.AssertTrue(t, sessions.Has(live.ID), "live session kept")
	testutil.AssertFalse(t, sessions.Has(dead.ID), "expired session removed")
	testutil.AssertEqual(t, promtestutil.ToFloat64(observability.SessionsSweptTotal)-before, 1.0)

	testutil.AssertEqual(t, sweeper.SweepOnce(ctx), int64(0))
}

func TestSessionSweeper_SweepOnce_Failure(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	sessions.DeleteExpiredFunc = func(ctx context.Context) (int64, error) {
		return 0, testutil.ErrMockStorage
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	before := promtestutil.ToFloat64(observability.SessionSweepFailuresTotal)

	sweeper := NewSessionSweeper(sessions, time.Minute, logger)
	testutil.AssertEqual(t, sweeper.SweepOnce(context.Background()), int64(0))
	testutil.AssertEqual(t, promtestutil.ToFloat64(observability.SessionSweepFailuresTotal)-before, 1.0)
	testutil.AssertContains(t, buf.String(), "failed to sweep expired sessions")
}

func TestSessionSweeper_Run(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()

	var mu sync.Mutex
	calls := 0
	sessions.DeleteExpiredFunc = func(ctx context.Context) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return 0, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSessionSweeper(sessions, 10*time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls < 2 {
		t.Errorf("Expected at least 2 sweeps, got %d", calls)
	}
}
