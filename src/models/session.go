package models

import "fmt"

// -----------------------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------------------

type SessionState int

const (
	StateIdle SessionState = iota
	StateInitializing
	StateRunning
	StatePaused
	StateDegraded
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	for _, st := range []SessionState{StateIdle, StateInitializing, StateRunning, StatePaused, StateDegraded} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// -----------------------------------------------------------------------------
// Session parameters
// -----------------------------------------------------------------------------

// Allocation modes offered by the UI. The backend may accept others, which are
// passed through untouched.
const (
	ModeFCFS     = "FCFS"
	ModeAuction  = "AUCTION"
	ModePriority = "PRIORITY"
)

// KnownModes lists the modes the UI offers for selection.
var KnownModes = []string{ModeFCFS, ModeAuction, ModePriority}

const (
	MinSpawnRate = 0.05
	MaxSpawnRate = 0.9
)

type MSessionParams struct {
	SpawnRate float64 `json:"spawn_rate" yaml:"spawn_rate"`
	Mode      string  `json:"mode" yaml:"mode"`
}

// Validate checks the ranges accepted by POST /init.
func (p MSessionParams) Validate() error {
	if p.SpawnRate < MinSpawnRate || p.SpawnRate > MaxSpawnRate {
		return fmt.Errorf("spawn rate %.2f outside [%.2f, %.2f]", p.SpawnRate, MinSpawnRate, MaxSpawnRate)
	}
	if p.Mode == "" {
		return fmt.Errorf("mode cannot be empty")
	}
	return nil
}
