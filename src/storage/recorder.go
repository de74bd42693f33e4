package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parking-viewer/src/helpers"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
)

const (
	recorderQueueSize = 512
	recorderBatchSize = 50
	recorderFlush     = 2 * time.Second
	recorderCleanup   = time.Hour
)

// -----------------------------------------------------------------------------
// Recorder is a frame sink that writes per-step metrics to a database. It is
// write-only: nothing is ever read back into the viewer.
// -----------------------------------------------------------------------------

type Recorder struct {
	DB     interfaces.IDatabase
	Logger *logger.Logger

	errors  *helpers.ErrorHandler
	frames  chan *models.MViewState
	quit    chan struct{}
	done    chan struct{}
	stopped sync.Once

	// Owned by the run goroutine
	batch    []models.MMetricsSample
	sessions map[string]struct{}
	lastStep map[string]int64
}

// -----------------------------------------------------------------------------

func NewRecorder(db interfaces.IDatabase, log *logger.Logger) *Recorder {
	return &Recorder{
		DB:       db,
		Logger:   log,
		errors:   helpers.NewErrorHandler(log),
		frames:   make(chan *models.MViewState, recorderQueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: make(map[string]struct{}),
		lastStep: make(map[string]int64),
	}
}

// -----------------------------------------------------------------------------

// NewDatabase builds the store selected by storage.db_type. It returns nil for "none".
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "", "none":
		return nil, nil
	case "sqlite":
		db, err := NewAsyncSQLiteDB(cfg, log.Named("SQLiteDB"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgresDB(cfg, log.Named("PostgresDB"))
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, helpers.NewConfigurationError(fmt.Sprintf("unknown database type '%s'", cfg.Storage.DBType), nil)
	}
}

// -----------------------------------------------------------------------------

// Start runs the writer until ctx ends or Stop is called.
func (r *Recorder) Start(ctx context.Context) {
	go r.run(ctx)
}

// -----------------------------------------------------------------------------

// Stop flushes pending samples and waits for the writer to finish.
func (r *Recorder) Stop() {
	r.stopped.Do(func() { close(r.quit) })
	<-r.done
}

// -----------------------------------------------------------------------------

// PublishFrame queues a frame. It never blocks the polling path: when the
// queue is full the frame is dropped.
func (r *Recorder) PublishFrame(view *models.MViewState) {
	if view == nil || view.Snapshot == nil || view.SessionID == "" {
		return
	}
	select {
	case <-r.quit:
	case r.frames <- view:
	default:
		r.Logger.Debug("Recorder queue full, dropping step %d", view.Snapshot.Metrics.Step)
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	flush := time.NewTicker(recorderFlush)
	defer flush.Stop()
	cleanup := time.NewTicker(recorderCleanup)
	defer cleanup.Stop()

	r.cleanup()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case <-r.quit:
			r.drain()
			return
		case view := <-r.frames:
			r.add(view)
			if len(r.batch) >= recorderBatchSize {
				r.flush()
			}
		case <-flush.C:
			r.flush()
		case <-cleanup.C:
			r.cleanup()
		}
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) add(view *models.MViewState) {
	// 1. Register the session on its first frame
	if _, ok := r.sessions[view.SessionID]; !ok {
		err := r.DB.SaveSession(view.SessionID, view.Params, view.Grid)
		r.errors.Handle(err, "save session")
		if err != nil {
			return
		}
		r.sessions[view.SessionID] = struct{}{}
	}

	// 2. State-only frames repeat the last snapshot
	step := view.Snapshot.Metrics.Step
	if last, ok := r.lastStep[view.SessionID]; ok && step <= last {
		return
	}
	r.lastStep[view.SessionID] = step

	r.batch = append(r.batch, models.MMetricsSample{
		SessionID: view.SessionID,
		Metrics:   view.Snapshot.Metrics,
		Cars:      len(view.Snapshot.Cars),
		Spots:     len(view.Snapshot.Spots),
		FetchedAt: time.Now().UTC().Unix(),
	})
}

// -----------------------------------------------------------------------------

func (r *Recorder) drain() {
	for {
		select {
		case view := <-r.frames:
			r.add(view)
		default:
			r.flush()
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) flush() {
	if len(r.batch) == 0 {
		return
	}
	err := r.DB.SaveMetricsBulk(r.batch)
	r.errors.Handle(err, "save metrics")
	if err == nil {
		r.Logger.Debug("Recorded %d metrics samples", len(r.batch))
	}
	r.batch = r.batch[:0]
}

// -----------------------------------------------------------------------------

func (r *Recorder) cleanup() {
	if err := r.DB.CleanupOldData(); err != nil {
		r.errors.Handle(err, "cleanup")
	}
}
