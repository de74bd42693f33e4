package interfaces

import (
	"context"
	"parking-viewer/src/models"
)

// -----------------------------------------------------------------------------
// ISimulationClient talks to the remote, authoritative parking simulation.
// -----------------------------------------------------------------------------

type ISimulationClient interface {

	// -----------------------------------------------------------------------------

	// Init requests a fresh server-side session and returns its grid.
	Init(ctx context.Context, params models.MSessionParams) (models.MGridConfig, error)

	// -----------------------------------------------------------------------------

	// Step advances the remote simulation and returns the full new frame.
	// A *helpers.StaleSessionError means the server no longer knows the session;
	// any other error is a *helpers.TransportError.
	Step(ctx context.Context) (*models.MSnapshot, error)
}
