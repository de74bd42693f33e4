package storage

import (
	"database/sql"
	"fmt"
	"time"

	"parking-viewer/src/helpers"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, helpers.NewConfigurationError("sqlite db_path is empty", nil)
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT,
			spawn_rate REAL,
			width INTEGER,
			height INTEGER,
			started_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create sessions", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS metrics_samples (
			session_id TEXT,
			step INTEGER,
			occupancy REAL,
			revenue REAL,
			entered INTEGER,
			exited INTEGER,
			fairness_variance REAL,
			cars INTEGER,
			spots INTEGER,
			fetched_at INTEGER,
			PRIMARY KEY (session_id, step)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create metrics_samples", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSession(sessionID string, params models.MSessionParams, grid models.MGridConfig) error {
	_, err := d.DB.Exec(`
		INSERT INTO sessions (session_id, mode, spawn_rate, width, height, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, params.Mode, params.SpawnRate, grid.Width, grid.Height, time.Now().UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save session %s", sessionID), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveMetricsBulk(samples []models.MMetricsSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO metrics_samples (session_id, step, occupancy, revenue, entered, exited, fairness_variance, cars, spots, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, step) DO NOTHING
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare metrics insert", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		m := s.Metrics
		_, err := stmt.Exec(s.SessionID, m.Step, m.Occupancy, m.Revenue, m.Entered, m.Exited, m.FairnessVariance, s.Cars, s.Spots, s.FetchedAt)
		if err != nil {
			return helpers.NewDatabaseError("insert metrics sample", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Debug("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM metrics_samples WHERE fetched_at < ?", cutoff); err != nil {
		return helpers.NewDatabaseError("cleanup metrics_samples", err)
	}
	if _, err := d.DB.Exec(`
		DELETE FROM sessions WHERE started_at < ?
		AND session_id NOT IN (SELECT DISTINCT session_id FROM metrics_samples)
	`, cutoff); err != nil {
		return helpers.NewDatabaseError("cleanup sessions", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
