package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"parking-viewer/src/logger"
	"parking-viewer/src/models"
)

func newTestSQLite(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{
		DBType:        "sqlite",
		DBPath:        filepath.Join(t.TempDir(), "viewer.db"),
		RetentionDays: 7,
	}}
	log := logger.NewLogger(nil, "sqlite")
	log.SetOutput(io.Discard)

	db, err := NewAsyncSQLiteDB(cfg, log)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func count(t *testing.T, db *AsyncSQLiteDB, table string) int {
	t.Helper()
	var n int
	if err := db.DB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSQLiteSaveAndCleanup(t *testing.T) {
	db := newTestSQLite(t)
	params := models.MSessionParams{SpawnRate: 0.3, Mode: models.ModeFCFS}

	if err := db.SaveSession("s1", params, models.MGridConfig{Width: 20, Height: 20}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	// Saving twice is harmless
	if err := db.SaveSession("s1", params, models.MGridConfig{Width: 20, Height: 20}); err != nil {
		t.Fatalf("save session again: %v", err)
	}

	old := time.Now().AddDate(0, 0, -30).Unix()
	samples := []models.MMetricsSample{
		{SessionID: "s1", Metrics: models.MMetrics{Step: 0, Revenue: 1}, FetchedAt: time.Now().Unix()},
		{SessionID: "s1", Metrics: models.MMetrics{Step: 1, Revenue: 2}, FetchedAt: time.Now().Unix()},
		{SessionID: "s1", Metrics: models.MMetrics{Step: 1, Revenue: 2}, FetchedAt: time.Now().Unix()},
		{SessionID: "s0", Metrics: models.MMetrics{Step: 5}, FetchedAt: old},
	}
	if err := db.SaveMetricsBulk(samples); err != nil {
		t.Fatalf("save metrics: %v", err)
	}
	if n := count(t, db, "metrics_samples"); n != 3 {
		t.Errorf("samples = %d, want 3", n)
	}

	if err := db.CleanupOldData(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n := count(t, db, "metrics_samples"); n != 2 {
		t.Errorf("samples after cleanup = %d, want 2", n)
	}
	if n := count(t, db, "sessions"); n != 1 {
		t.Errorf("sessions after cleanup = %d, want 1", n)
	}
}

func TestRecorderWritesSteps(t *testing.T) {
	db := newTestSQLite(t)
	rec := NewRecorder(db, db.Logger)
	rec.Start(context.Background())

	frame := func(session string, step int64) *models.MViewState {
		return &models.MViewState{
			SessionID: session,
			Params:    models.MSessionParams{SpawnRate: 0.3, Mode: models.ModeFCFS},
			Grid:      models.MGridConfig{Width: 20, Height: 20},
			Snapshot:  &models.MSnapshot{Metrics: models.MMetrics{Step: step}},
		}
	}
	rec.PublishFrame(frame("a", 0))
	rec.PublishFrame(frame("a", 1))
	rec.PublishFrame(frame("a", 1)) // state-only frame
	rec.PublishFrame(frame("b", 0))
	rec.PublishFrame(&models.MViewState{SessionID: "c"}) // no snapshot
	rec.Stop()

	if n := count(t, db, "metrics_samples"); n != 3 {
		t.Errorf("samples = %d, want 3", n)
	}
	if n := count(t, db, "sessions"); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
}

func TestNewDatabaseNone(t *testing.T) {
	db, err := NewDatabase(&models.MConfig{Storage: models.MStorageConfig{DBType: "none"}}, logger.NewLogger(nil, "t"))
	if err != nil || db != nil {
		t.Errorf("db=%v err=%v", db, err)
	}
	if _, err := NewDatabase(&models.MConfig{Storage: models.MStorageConfig{DBType: "mongo"}}, logger.NewLogger(nil, "t")); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestSchemaName(t *testing.T) {
	if got := schemaName("parking-viewer"); got != "parking_viewer" {
		t.Errorf("schema = %q", got)
	}
	if got := schemaName(""); got != "parking_viewer" {
		t.Errorf("empty schema = %q", got)
	}
}
