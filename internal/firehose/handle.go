package firehose

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is one firehose run. The caller that started it may stop it
// directly; the Controller can also stop it.
type Handle struct {
	id        string
	opts      Options
	startedAt time.Time
	cancel    context.CancelFunc

	loopDone chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup

	ticks    atomic.Int64
	failures atomic.Int64
}

// ID returns the run ID.
func (h *Handle) ID() string { return h.id }

// Options returns the options the run was started with.
func (h *Handle) Options() Options { return h.opts }

// Ticks returns the number of completed ticks.
func (h *Handle) Ticks() int64 { return h.ticks.Load() }

// Failures returns the number of completed ticks that failed.
func (h *Handle) Failures() int64 { return h.failures.Load() }

// Stop prevents further ticks and waits for the loop to exit. In-flight
// ticks keep running. It reports whether this call stopped the run;
// later calls are no-ops.
func (h *Handle) Stop() bool {
	stopped := false
	h.stopOnce.Do(func() {
		stopped = !h.Stopped()
		h.cancel()
		<-h.loopDone
	})
	return stopped
}

// Stopped reports whether the loop has exited.
func (h *Handle) Stopped() bool {
	select {
	case <-h.loopDone:
		return true
	default:
		return false
	}
}

// Wait blocks until the loop has exited and every in-flight tick is done.
func (h *Handle) Wait() {
	<-h.loopDone
	h.inflight.Wait()
}

func (h *Handle) run(ctx context.Context, ticks <-chan time.Time, release func(), tick func(context.Context, *Handle), onExit func()) {
	defer close(h.loopDone)
	defer onExit()
	defer release()

	tickCtx := context.WithoutCancel(ctx)
	spawned := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			// A stop racing the tick wins.
			if ctx.Err() != nil {
				return
			}
			spawned++
			h.inflight.Add(1)
			go func() {
				defer h.inflight.Done()
				tick(tickCtx, h)
			}()
			if h.opts.MaxTicks > 0 && spawned >= h.opts.MaxTicks {
				return
			}
		}
	}
}
