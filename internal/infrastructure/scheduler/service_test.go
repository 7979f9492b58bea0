package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
	blockscheduler "github.com/binaryplan/binaryd/internal/infrastructure/scheduler/block"
	timescheduler "github.com/binaryplan/binaryd/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

type service struct {
	name      string
	scheduler ports.SchedulerService
}

func TestScheduleTask(t *testing.T) {
	t.Parallel()

	svcs := servicesToTest(t)

	for _, svc := range svcs {
		t.Run(svc.name, func(t *testing.T) {
			var called atomic.Bool
			handlerFunc := func() {
				called.Store(true)
			}

			err := svc.scheduler.ScheduleTaskOnce(svc.scheduler.AddNow(2), handlerFunc)
			require.NoError(t, err)

			require.Eventually(t, called.Load, 5*time.Second, 100*time.Millisecond)
		})
	}
}

func TestScheduleEvery(t *testing.T) {
	t.Parallel()

	svcs := servicesToTest(t)

	for _, svc := range svcs {
		t.Run(svc.name, func(t *testing.T) {
			var calls atomic.Int32
			err := svc.scheduler.ScheduleEvery(1, func() {
				calls.Add(1)
			})
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				return calls.Load() >= 2
			}, 6*time.Second, 100*time.Millisecond)

			require.Error(t, svc.scheduler.ScheduleEvery(0, func() {}))
		})
	}
}

func TestBlockSchedulerRequiresTipFetcher(t *testing.T) {
	_, err := blockscheduler.NewScheduler(nil)
	require.Error(t, err)
}

func servicesToTest(t *testing.T) []service {
	// every tick of the fake ledger mines a new block
	var blockHeight atomic.Uint64
	blockHeight.Store(99)
	fetchTip := func(context.Context) (uint64, error) {
		return blockHeight.Add(1), nil
	}

	blockService, err := blockscheduler.NewScheduler(
		fetchTip,
		blockscheduler.WithTickerInterval(time.Millisecond*500),
	)
	if err != nil {
		t.Fatalf("failed to create block scheduler: %v", err)
	}

	svcs := []service{
		{name: "gocron", scheduler: timescheduler.NewScheduler()},
		{name: "block", scheduler: blockService},
	}

	for _, svc := range svcs {
		svc.scheduler.Start()
		t.Cleanup(func() { svc.scheduler.Stop() })
	}

	return svcs
}
