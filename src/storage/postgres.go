package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parking-viewer/src/helpers"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Each executable records into its own schema
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: schemaName(name),
		Logger: log,
	}, nil
}

// schemaName keeps letters, digits and underscores so the name can be quoted safely
func schemaName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "parking_viewer"
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	// The database container often comes up after us
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := helpers.RetryWithBackoff(ctx, "postgres ping", 5, 500*time.Millisecond, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."sessions" (
			session_id TEXT PRIMARY KEY,
			mode TEXT,
			spawn_rate DOUBLE PRECISION,
			width INTEGER,
			height INTEGER,
			started_at BIGINT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create sessions", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."metrics_samples" (
			session_id TEXT,
			step BIGINT,
			occupancy DOUBLE PRECISION,
			revenue DOUBLE PRECISION,
			entered BIGINT,
			exited BIGINT,
			fairness_variance DOUBLE PRECISION,
			cars INTEGER,
			spots INTEGER,
			fetched_at BIGINT,
			PRIMARY KEY (session_id, step)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create metrics_samples", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSession(sessionID string, params models.MSessionParams, grid models.MGridConfig) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."sessions" (session_id, mode, spawn_rate, width, height, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING
	`, d.Schema)
	if _, err := d.DB.Exec(query, sessionID, params.Mode, params.SpawnRate, grid.Width, grid.Height, time.Now().UTC().Unix()); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save session %s", sessionID), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveMetricsBulk(samples []models.MMetricsSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."metrics_samples" (session_id, step, occupancy, revenue, entered, exited, fairness_variance, cars, spots, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id, step) DO NOTHING
	`, d.Schema)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return helpers.NewDatabaseError("prepare metrics insert", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		m := s.Metrics
		if _, err := stmt.Exec(s.SessionID, m.Step, m.Occupancy, m.Revenue, m.Entered, m.Exited, m.FairnessVariance, s.Cars, s.Spots, s.FetchedAt); err != nil {
			return helpers.NewDatabaseError("insert metrics sample", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Debug("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM "%s"."metrics_samples" WHERE fetched_at < $1`, d.Schema), cutoff); err != nil {
		return helpers.NewDatabaseError("cleanup metrics_samples", err)
	}
	query := fmt.Sprintf(`
		DELETE FROM "%[1]s"."sessions" WHERE started_at < $1
		AND session_id NOT IN (SELECT DISTINCT session_id FROM "%[1]s"."metrics_samples")
	`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		return helpers.NewDatabaseError("cleanup sessions", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
