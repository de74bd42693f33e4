// Package session owns the lifecycle of one viewer session against the remote
// simulation: initialization, fixed-cadence polling, recovery and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parking-viewer/src/analysis"
	"parking-viewer/src/helpers"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
	"parking-viewer/src/spatial"
	"parking-viewer/src/utils"
)

var (
	ErrClosed            = errors.New("session controller closed")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSuperseded        = errors.New("session superseded by a newer start")
)

// TickResult reports what a single Tick did.
type TickResult int

const (
	TickIgnored TickResult = iota
	TickSkipped
	TickApplied
	TickReinitialized
	TickDegraded
	TickDiscarded
)

func (r TickResult) String() string {
	switch r {
	case TickSkipped:
		return "skipped"
	case TickApplied:
		return "applied"
	case TickReinitialized:
		return "reinitialized"
	case TickDegraded:
		return "degraded"
	case TickDiscarded:
		return "discarded"
	default:
		return "ignored"
	}
}

// transitions lists every legal state change. Close may reach Idle from anywhere.
var transitions = map[models.SessionState][]models.SessionState{
	models.StateIdle:         {models.StateInitializing},
	models.StateInitializing: {models.StateInitializing, models.StateRunning, models.StatePaused, models.StateDegraded, models.StateIdle},
	models.StateRunning:      {models.StateInitializing, models.StatePaused, models.StateDegraded, models.StateIdle},
	models.StatePaused:       {models.StateInitializing, models.StateRunning, models.StateIdle},
	models.StateDegraded:     {models.StateInitializing, models.StateIdle},
}

func canTransition(from, to models.SessionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type stateEvent struct {
	from, to models.SessionState
}

// Options tunes a SyncController.
type Options struct {
	HistoryCapacity int
	// AutoRetry re-enters Initializing this long after a transport failure.
	// Zero leaves recovery to an explicit Retry.
	AutoRetry time.Duration
}

// -----------------------------------------------------------------------------
// SyncController keeps the local view in step with the authoritative remote
// simulation. It is the only writer of the session state, the history window
// and the displayed snapshot.
// -----------------------------------------------------------------------------

type SyncController struct {
	Client  interfaces.ISimulationClient
	Logger  *logger.Logger
	policy  RecoveryPolicy
	cadence Cadence
	options Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      models.SessionState
	params     models.MSessionParams
	generation uint64
	inFlight   uint64 // generation of the pending step request, 0 when none
	sessionID  string
	grid       models.MGridConfig
	last       *models.MSnapshot
	cells      []models.MCellView
	history    *utils.HistoryWindow
	lastErr    string
	retryTimer *time.Timer
	closed     bool
	held       bool // polling suspended by Pause or Stop; sessions commit Paused
	skipped    uint64

	pending   []stateEvent
	dirty     bool
	emitMu    sync.Mutex
	sinks     []interfaces.IFrameSink
	listeners []interfaces.IStateListener
}

// -----------------------------------------------------------------------------

func NewSyncController(ctx context.Context, client interfaces.ISimulationClient, cadence Cadence, opts Options, log *logger.Logger) *SyncController {
	cctx, cancel := context.WithCancel(ctx)
	return &SyncController{
		Client:  client,
		Logger:  log,
		cadence: cadence,
		options: opts,
		ctx:     cctx,
		cancel:  cancel,
		state:   models.StateIdle,
		cells:   []models.MCellView{},
		history: utils.NewHistoryWindow(opts.HistoryCapacity),
	}
}

// -----------------------------------------------------------------------------

// AddFrameSink registers a receiver for accepted frames. Register before Start.
func (c *SyncController) AddFrameSink(sink interfaces.IFrameSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// AddStateListener registers a receiver for state transitions. Register before Start.
func (c *SyncController) AddStateListener(l interfaces.IStateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// Start discards any existing session and initializes a new one with params.
// It blocks until the session is Running, Degraded or superseded.
func (c *SyncController) Start(params models.MSessionParams) error {
	if err := params.Validate(); err != nil {
		return helpers.NewValidationError("invalid session parameters", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.held = false
	gen := c.beginSessionLocked(params)
	c.mu.Unlock()
	c.emit()

	return c.initialize(gen, params)
}

// -----------------------------------------------------------------------------

// SetParameters replaces the desired parameters and starts a fresh session.
func (c *SyncController) SetParameters(params models.MSessionParams) error {
	c.Logger.Info("Parameters changed: spawn_rate=%.2f mode=%s", params.SpawnRate, params.Mode)
	return c.Start(params)
}

// -----------------------------------------------------------------------------

// Pause stops polling. The displayed frame stays frozen.
func (c *SyncController) Pause() error {
	c.mu.Lock()
	if c.state != models.StateRunning {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidTransition, state)
	}
	c.held = true
	c.transitionLocked(models.StatePaused)
	c.cadence.Halt()
	c.mu.Unlock()
	c.emit()

	c.Logger.Info("Session paused")
	return nil
}

// -----------------------------------------------------------------------------

// Resume restarts polling from where the server is now.
func (c *SyncController) Resume() error {
	c.mu.Lock()
	if c.state != models.StatePaused {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidTransition, state)
	}
	c.held = false
	c.transitionLocked(models.StateRunning)
	c.cadence.Start(c.tick)
	c.mu.Unlock()
	c.emit()

	c.Logger.Info("Session resumed")
	return nil
}

// -----------------------------------------------------------------------------

// Retry starts a new session with the current parameters after a failure.
func (c *SyncController) Retry() error {
	c.mu.Lock()
	state, params := c.state, c.params
	c.mu.Unlock()

	if state != models.StateDegraded && state != models.StateIdle {
		return fmt.Errorf("%w: cannot retry while %s", ErrInvalidTransition, state)
	}
	c.Logger.Info("Retrying session (mode=%s)", params.Mode)
	return c.Start(params)
}

// -----------------------------------------------------------------------------

// Stop halts polling and waits for any tick in progress. A running session is
// left Paused, and a session still initializing comes up Paused. Only Resume
// or a new Start polls again. Must not be called from a frame sink or state
// listener.
func (c *SyncController) Stop() {
	c.mu.Lock()
	c.held = true
	c.stopRetryLocked()
	if c.state == models.StateRunning {
		c.transitionLocked(models.StatePaused)
	}
	c.cadence.Halt()
	c.mu.Unlock()
	c.emit()

	c.cadence.Stop()
}

// -----------------------------------------------------------------------------

// Close tears the session down. Requests in flight are cancelled and their
// results dropped; no tick runs once Close returns.
func (c *SyncController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.stopRetryLocked()
	c.transitionLocked(models.StateIdle)
	c.cadence.Halt()
	c.mu.Unlock()
	c.emit()

	c.cancel()
	c.cadence.Stop()
	c.Logger.Info("Session controller closed")
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func (c *SyncController) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SyncController) Params() models.MSessionParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *SyncController) Grid() models.MGridConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grid
}

func (c *SyncController) History() []models.MHistoryPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// Skipped counts cadence firings dropped because a request was still pending.
func (c *SyncController) Skipped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// View returns the current render-ready state.
func (c *SyncController) View() *models.MViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.buildViewLocked()
	v.Type = "INITIAL"
	return v
}

// -----------------------------------------------------------------------------
// Polling
// -----------------------------------------------------------------------------

func (c *SyncController) tick() {
	c.Tick()
}

// Tick performs one poll. It is a no-op unless Running, and it never overlaps a
// pending request of the same session: such firings are skipped, not queued.
func (c *SyncController) Tick() TickResult {
	c.mu.Lock()
	if c.closed || c.state != models.StateRunning {
		c.mu.Unlock()
		return TickIgnored
	}
	if c.inFlight == c.generation {
		c.skipped++
		c.mu.Unlock()
		return TickSkipped
	}
	gen := c.generation
	c.inFlight = gen
	c.mu.Unlock()

	snap, err := c.Client.Step(c.ctx)
	outcome := Classify(snap, err)

	c.mu.Lock()
	if c.inFlight == gen {
		c.inFlight = 0
	}
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.Logger.Debug("Discarding %s result of superseded session generation %d", outcome.Kind, gen)
		return TickDiscarded
	}

	lastStep, hasLast := c.lastStepLocked()
	switch c.policy.React(outcome, lastStep, hasLast) {
	case ReactAccept:
		c.acceptLocked(outcome.Snapshot)
		c.mu.Unlock()
		c.emit()
		return TickApplied

	case ReactReinitialize:
		params := c.params
		if outcome.Kind == OutcomeSuccess {
			c.Logger.Info("Server step went back from %d to %d; reinitializing", lastStep, outcome.Snapshot.Metrics.Step)
		} else {
			c.Logger.Info("Server lost the session (%v); reinitializing", outcome.Err)
		}
		next := c.beginSessionLocked(params)
		c.mu.Unlock()
		c.emit()

		if err := c.initialize(next, params); err != nil && !errors.Is(err, ErrSuperseded) {
			c.Logger.Warning("Reinitialization failed: %v", err)
		}
		return TickReinitialized

	default:
		if c.state != models.StateRunning {
			c.mu.Unlock()
			c.Logger.Debug("Ignoring transport failure while %s: %v", c.State(), outcome.Err)
			return TickDiscarded
		}
		c.degradeLocked(outcome.Err)
		c.mu.Unlock()
		c.emit()
		c.Logger.Error("Polling halted: %v", outcome.Err)
		return TickDegraded
	}
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// beginSessionLocked bumps the generation so any result of the previous
// session still in flight is discarded, then enters Initializing.
func (c *SyncController) beginSessionLocked(params models.MSessionParams) uint64 {
	c.generation++
	c.params = params
	c.sessionID = uuid.NewString()
	c.history.Reset()
	c.lastErr = ""
	c.stopRetryLocked()
	c.cadence.Halt()
	c.transitionLocked(models.StateInitializing)
	return c.generation
}

// -----------------------------------------------------------------------------

func (c *SyncController) initialize(gen uint64, params models.MSessionParams) error {
	c.Logger.Info("Initializing session: spawn_rate=%.2f mode=%s", params.SpawnRate, params.Mode)

	// 1. Ask the server for a fresh session
	grid, err := c.Client.Init(c.ctx, params)
	if err != nil {
		return c.failInit(gen, err)
	}

	// 2. Fetch the first frame; it is the first point of the new history
	snap, err := c.Client.Step(c.ctx)
	outcome := Classify(snap, err)
	if outcome.Kind != OutcomeSuccess {
		return c.failInit(gen, outcome.Err)
	}

	// 3. Commit unless a newer start or Close got in first
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.grid = grid
	c.last = nil
	c.acceptLocked(outcome.Snapshot)
	held := c.held
	if held {
		c.transitionLocked(models.StatePaused)
	} else {
		c.transitionLocked(models.StateRunning)
		c.cadence.Start(c.tick)
	}
	sessionID := c.sessionID
	c.mu.Unlock()
	c.emit()

	if held {
		c.Logger.Info("Session %s ready on %dx%d grid, held paused", sessionID, grid.Width, grid.Height)
	} else {
		c.Logger.Info("Session %s running on %dx%d grid", sessionID, grid.Width, grid.Height)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *SyncController) failInit(gen uint64, err error) error {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.degradeLocked(err)
	c.mu.Unlock()
	c.emit()

	c.Logger.Error("Session initialization failed: %v", err)
	return err
}

// -----------------------------------------------------------------------------

// degradeLocked halts polling and keeps the last good frame on display.
func (c *SyncController) degradeLocked(err error) {
	c.lastErr = DegradedMessage(err)
	c.transitionLocked(models.StateDegraded)
	c.cadence.Halt()
	c.scheduleRetryLocked()
}

// -----------------------------------------------------------------------------

func (c *SyncController) acceptLocked(snap *models.MSnapshot) {
	idx := spatial.Build(snap)
	if cols := idx.Collisions(); len(cols) > 0 {
		c.Logger.Warning("%v", helpers.NewInvariantViolation("%d coordinate collisions at step %d, first at (%d,%d)",
			len(cols), snap.Metrics.Step, cols[0].X, cols[0].Y))
	}
	if c.grid.Width > 0 {
		for i := range snap.Cars {
			if !c.grid.Contains(snap.Cars[i].X, snap.Cars[i].Y) {
				c.Logger.Warning("%v", helpers.NewInvariantViolation("car %q at (%d,%d) outside %dx%d grid",
					snap.Cars[i].ID, snap.Cars[i].X, snap.Cars[i].Y, c.grid.Width, c.grid.Height))
				break
			}
		}
	}

	c.last = snap
	c.cells = idx.Views()
	c.history.Append(models.MHistoryPoint{Step: snap.Metrics.Step, Revenue: snap.Metrics.Revenue})
	c.dirty = true
}

// -----------------------------------------------------------------------------

func (c *SyncController) lastStepLocked() (int64, bool) {
	if c.last == nil {
		return 0, false
	}
	return c.last.Metrics.Step, true
}

// -----------------------------------------------------------------------------

func (c *SyncController) transitionLocked(to models.SessionState) {
	from := c.state
	if from == to {
		return
	}
	if !canTransition(from, to) {
		c.Logger.Error("%v", helpers.NewInvariantViolation("illegal transition %s -> %s", from, to))
		return
	}
	c.state = to
	c.pending = append(c.pending, stateEvent{from: from, to: to})
	c.dirty = true
}

// -----------------------------------------------------------------------------

func (c *SyncController) scheduleRetryLocked() {
	if c.options.AutoRetry <= 0 || c.closed || c.held {
		return
	}
	c.stopRetryLocked()
	gen := c.generation
	c.retryTimer = time.AfterFunc(c.options.AutoRetry, func() {
		c.mu.Lock()
		due := !c.closed && c.state == models.StateDegraded && c.generation == gen
		c.mu.Unlock()
		if due {
			if err := c.Retry(); err != nil && !errors.Is(err, ErrSuperseded) {
				c.Logger.Debug("Automatic retry failed: %v", err)
			}
		}
	})
}

func (c *SyncController) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// -----------------------------------------------------------------------------

func (c *SyncController) buildViewLocked() *models.MViewState {
	history := c.history.Snapshot()
	cells := make([]models.MCellView, len(c.cells))
	copy(cells, c.cells)

	return &models.MViewState{
		Type:       "UPDATE",
		SessionID:  c.sessionID,
		Generation: c.generation,
		State:      c.state,
		Error:      c.lastErr,
		Params:     c.params,
		Grid:       c.grid,
		Snapshot:   c.last,
		Cells:      cells,
		History:    history,
		Trend:      analysis.SummarizeTrend(history),
		Timestamp:  time.Now().UTC().UnixMilli(),
	}
}

// -----------------------------------------------------------------------------

// emit delivers queued transitions, then the current frame if anything
// changed, outside the state lock and in order.
func (c *SyncController) emit() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	events := c.pending
	c.pending = nil
	var view *models.MViewState
	if c.dirty {
		view = c.buildViewLocked()
		c.dirty = false
	}
	listeners := c.listeners
	sinks := c.sinks
	c.mu.Unlock()

	for _, ev := range events {
		c.Logger.Debug("State %s -> %s", ev.from, ev.to)
		for _, l := range listeners {
			l.OnStateChange(ev.from, ev.to)
		}
	}
	if view != nil {
		for _, s := range sinks {
			s.PublishFrame(view)
		}
	}
}
