package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerService_RunsUntilCancelled(t *testing.T) {
	var ok, failing atomic.Int32
	svc := NewSchedulerService(newNoopLogger(),
		Job{Name: "resync", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			ok.Add(1)
			return nil
		}},
		Job{Name: "broken", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
			failing.Add(1)
			return errors.New("panel down")
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ok.Load() >= 2 && failing.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewSchedulerService_SkipsDisabledJobs(t *testing.T) {
	svc := NewSchedulerService(newNoopLogger(),
		Job{Name: "off", Interval: 0, Run: func(ctx context.Context) error { return nil }},
		Job{Name: "no-func", Interval: time.Minute},
		Job{Name: "on", Interval: time.Minute, Run: func(ctx context.Context) error { return nil }},
	)

	assert.Len(t, svc.jobs, 1)
	assert.Equal(t, "on", svc.jobs[0].Name)
}

func TestSchedulerService_FirstRunImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	svc := NewSchedulerService(newNoopLogger(), Job{Name: "hourly", Interval: time.Hour, Run: func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}
