package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"parking-viewer/src/helpers"
	"parking-viewer/src/models"
	"parking-viewer/src/session"
)

// -----------------------------------------------------------------------------

// mergeParams applies the fields present in cmd on top of base
func mergeParams(base models.MSessionParams, cmd models.MSessionCommand) models.MSessionParams {
	if cmd.SpawnRate != nil {
		base.SpawnRate = *cmd.SpawnRate
	}
	if mode := strings.TrimSpace(cmd.Mode); mode != "" {
		base.Mode = canonicalMode(mode)
	}
	return base
}

// canonicalMode spells the UI modes the way the backend expects them; any
// other mode is forwarded untouched.
func canonicalMode(mode string) string {
	for _, known := range models.KnownModes {
		if strings.EqualFold(mode, known) {
			return known
		}
	}
	return mode
}

// -----------------------------------------------------------------------------

// currentParams is what a command without parameters runs with
func (s *ViewServer) currentParams() models.MSessionParams {
	if p := s.Control.Params(); p.Mode != "" {
		return p
	}
	s.saveMutex.Lock()
	defer s.saveMutex.Unlock()
	return s.Config.DefaultParams()
}

// -----------------------------------------------------------------------------

// runCommand dispatches one session command, shared by REST and websocket
func (s *ViewServer) runCommand(cmd models.MSessionCommand) error {
	switch strings.ToLower(cmd.Command) {
	case "start":
		return s.Control.Start(mergeParams(s.currentParams(), cmd))
	case "set_parameters", "parameters":
		params := mergeParams(s.currentParams(), cmd)
		if err := s.Control.SetParameters(params); err != nil {
			return err
		}
		s.persistParams(params)
		return nil
	case "pause":
		return s.Control.Pause()
	case "resume":
		return s.Control.Resume()
	case "retry":
		return s.Control.Retry()
	case "state", "":
		return nil
	default:
		return helpers.NewValidationError(fmt.Sprintf("unknown command %q", cmd.Command), nil)
	}
}

// -----------------------------------------------------------------------------

// statusFor maps a command error to an HTTP status
func statusFor(err error) int {
	var verr *helpers.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
