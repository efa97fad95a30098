package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	reconcileuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/reconcile"
	syncuc "github.com/TheDarkKnight1989/archvd-sub000/internal/usecase/sync"
)

// AutoSyncer drives the two background loops: periodic refresh of stale
// catalog items and reconciliation of pending mutation operations. Each
// loop carries its own CAS guard so a slow pass is skipped, not stacked.
type AutoSyncer struct {
	Sync   *syncuc.Orchestrator
	Poller *reconcileuc.Poller

	SyncInterval time.Duration
	SyncTimeout  time.Duration
	StaleLimit   int
	SyncOpts     syncuc.Options

	PollInterval time.Duration
	PollTimeout  time.Duration

	Logger *slog.Logger

	syncing int32
	polling int32
}

func (a *AutoSyncer) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *AutoSyncer) Start(ctx context.Context) {
	syncEvery := a.SyncInterval
	if syncEvery <= 0 {
		syncEvery = 30 * time.Minute
	}
	pollEvery := a.PollInterval
	if pollEvery <= 0 {
		pollEvery = time.Minute
	}
	syncTimeout := a.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = 10 * time.Minute
	}
	pollTimeout := a.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	limit := a.StaleLimit
	if limit <= 0 {
		limit = 20
	}

	// Jittered start so replicas restarted together do not hit the
	// providers in lockstep.
	delay := time.Duration(5+rand.Intn(20)) * time.Second

	if a.Sync != nil {
		go a.loop(ctx, delay, syncEvery, &a.syncing, func() {
			cctx, cancel := context.WithTimeout(ctx, syncTimeout)
			defer cancel()
			synced, failed, err := a.Sync.SyncStale(cctx, limit, a.SyncOpts)
			if err != nil {
				a.log().Error("auto-sync: stale pass", "err", err)
				return
			}
			a.log().Info("auto-sync: stale pass", "synced", synced, "failed", failed)
		})
	}
	if a.Poller != nil {
		go a.loop(ctx, delay, pollEvery, &a.polling, func() {
			cctx, cancel := context.WithTimeout(ctx, pollTimeout)
			defer cancel()
			stats, err := a.Poller.PollPending(cctx)
			if err != nil {
				a.log().Error("auto-sync: reconcile pass", "err", err)
				return
			}
			if stats.Processed > 0 {
				a.log().Info("auto-sync: reconcile pass",
					"processed", stats.Processed,
					"completed", stats.Completed,
					"failed", stats.Failed,
					"timed_out", stats.TimedOut,
					"in_progress", stats.InProgress)
			}
		})
	}
}

func (a *AutoSyncer) loop(ctx context.Context, delay, every time.Duration, guard *int32, run func()) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !atomic.CompareAndSwapInt32(guard, 0, 1) {
				continue
			}
			func() {
				defer atomic.StoreInt32(guard, 0)
				run()
			}()
		}
	}
}
