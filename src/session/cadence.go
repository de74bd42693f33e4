package session

import (
	"context"
	"sync"
	"time"
)

// DefaultCadence is the polling period while a session is running.
const DefaultCadence = 200 * time.Millisecond

// -----------------------------------------------------------------------------

// Cadence drives SyncController.Tick at a fixed period.
type Cadence interface {
	// Start begins firing tick. It returns false if already running.
	Start(tick func()) bool
	// Halt stops future firings without waiting. Safe to call from inside tick.
	Halt()
	// Stop halts and waits until no tick goroutine is left. Must not be
	// called from inside tick.
	Stop()
	Running() bool
}

// -----------------------------------------------------------------------------

type cadenceRun struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// TickerCadence fires on a time.Ticker and runs every firing on its own
// goroutine, so a slow tick never delays or queues the next one. Overlap is
// resolved by the tick function itself.
type TickerCadence struct {
	Period time.Duration

	mu      sync.Mutex
	current *cadenceRun
	live    map[*cadenceRun]struct{}
}

// -----------------------------------------------------------------------------

func NewTickerCadence(period time.Duration) *TickerCadence {
	if period <= 0 {
		period = DefaultCadence
	}
	return &TickerCadence{
		Period: period,
		live:   make(map[*cadenceRun]struct{}),
	}
}

// -----------------------------------------------------------------------------

func (tc *TickerCadence) Start(tick func()) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.current != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &cadenceRun{cancel: cancel}
	tc.current = r
	tc.live[r] = struct{}{}

	r.wg.Add(1)
	go tc.loop(ctx, r, tick)

	// Forget the run once its loop and every tick it spawned are done
	go func() {
		r.wg.Wait()
		tc.mu.Lock()
		delete(tc.live, r)
		tc.mu.Unlock()
	}()
	return true
}

// -----------------------------------------------------------------------------

func (tc *TickerCadence) loop(ctx context.Context, r *cadenceRun, tick func()) {
	defer r.wg.Done()

	ticker := time.NewTicker(tc.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				tick()
			}()
		}
	}
}

// -----------------------------------------------------------------------------

func (tc *TickerCadence) Halt() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.current != nil {
		tc.current.cancel()
		tc.current = nil
	}
}

// -----------------------------------------------------------------------------

func (tc *TickerCadence) Stop() {
	tc.mu.Lock()
	if tc.current != nil {
		tc.current.cancel()
		tc.current = nil
	}
	runs := make([]*cadenceRun, 0, len(tc.live))
	for r := range tc.live {
		runs = append(runs, r)
	}
	tc.mu.Unlock()

	for _, r := range runs {
		r.wg.Wait()
	}
}

// -----------------------------------------------------------------------------

func (tc *TickerCadence) Running() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.current != nil
}
