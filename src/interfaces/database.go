package interfaces

import "parking-viewer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the write-only metrics recorder.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSession records the start of a session.
	SaveSession(sessionID string, params models.MSessionParams, grid models.MGridConfig) error

	// -----------------------------------------------------------------------------

	// SaveMetricsBulk inserts a batch of per-frame metrics samples.
	SaveMetricsBulk(samples []models.MMetricsSample) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
