package interfaces

import "parking-viewer/src/models"

// -----------------------------------------------------------------------------
// IFrameSink receives every render-ready frame accepted by the sync controller.
// Implementations must not block for long: they are called on the polling path.
// -----------------------------------------------------------------------------

type IFrameSink interface {
	PublishFrame(view *models.MViewState)
}

// -----------------------------------------------------------------------------
// IStateListener is notified on every session state transition.
// -----------------------------------------------------------------------------

type IStateListener interface {
	OnStateChange(from, to models.SessionState)
}

// -----------------------------------------------------------------------------
// IDataExchanger is the render surface: it serves frames to external viewers.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IFrameSink

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// ISessionControl is the command surface of the sync controller.
// -----------------------------------------------------------------------------

type ISessionControl interface {
	Start(params models.MSessionParams) error
	SetParameters(params models.MSessionParams) error
	Pause() error
	Resume() error
	Retry() error
	State() models.SessionState
	Params() models.MSessionParams
	View() *models.MViewState
}
