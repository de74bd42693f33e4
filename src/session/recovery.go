package session

import (
	"fmt"

	"parking-viewer/src/helpers"
	"parking-viewer/src/models"
)

// -----------------------------------------------------------------------------
// Outcome classification
// -----------------------------------------------------------------------------

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeStaleSession
	OutcomeTransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeStaleSession:
		return "stale_session"
	default:
		return "transport_failure"
	}
}

// Outcome is the classified result of one /step request.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot *models.MSnapshot
	Err      error
}

// Classify sorts a request result into success, stale session or transport
// failure. Anything that is neither a snapshot nor a stale-session signal is a
// transport failure.
func Classify(snap *models.MSnapshot, err error) Outcome {
	switch {
	case err == nil && snap != nil:
		return Outcome{Kind: OutcomeSuccess, Snapshot: snap}
	case helpers.IsStaleSession(err):
		return Outcome{Kind: OutcomeStaleSession, Err: err}
	case err == nil:
		return Outcome{Kind: OutcomeTransportFailure, Err: helpers.NewTransportError("empty step response", 0, nil)}
	default:
		return Outcome{Kind: OutcomeTransportFailure, Err: err}
	}
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

type Reaction int

const (
	// ReactAccept renders the snapshot.
	ReactAccept Reaction = iota
	// ReactReinitialize silently starts a new session with the current parameters.
	ReactReinitialize
	// ReactDegrade halts polling and surfaces an error until the user retries.
	ReactDegrade
)

func (r Reaction) String() string {
	switch r {
	case ReactAccept:
		return "accept"
	case ReactReinitialize:
		return "reinitialize"
	default:
		return "degrade"
	}
}

// RecoveryPolicy maps outcomes to controller reactions.
type RecoveryPolicy struct{}

// React decides what to do with an outcome. lastStep is the step of the last
// accepted snapshot of the session, valid when hasLast is set. A step going
// backwards means the server restarted under us and is handled like a stale
// session.
func (RecoveryPolicy) React(o Outcome, lastStep int64, hasLast bool) Reaction {
	switch o.Kind {
	case OutcomeSuccess:
		if hasLast && o.Snapshot.Metrics.Step < lastStep {
			return ReactReinitialize
		}
		return ReactAccept
	case OutcomeStaleSession:
		return ReactReinitialize
	default:
		return ReactDegrade
	}
}

// DegradedMessage is the persistent text shown while the session is degraded.
func DegradedMessage(err error) string {
	return fmt.Sprintf("Cannot reach the simulation server: %v. Check that the backend is running, then retry.", err)
}
