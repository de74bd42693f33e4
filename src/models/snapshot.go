package models

// -----------------------------------------------------------------------------
// Wire types returned by the simulation backend
// -----------------------------------------------------------------------------

// MGridConfig is the coordinate space of one session. Fixed until the next init.
type MGridConfig struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	SpawnRate float64 `json:"spawn_rate,omitempty"`
	Mode      string  `json:"mode,omitempty"`
}

// Contains reports whether (x, y) lies inside the grid.
func (g MGridConfig) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// MInitResponse is the body of POST /init.
type MInitResponse struct {
	Message string      `json:"message"`
	Config  MGridConfig `json:"config"`
}

// Spot types known to the renderer. Unknown types are rendered as Standard.
const (
	SpotStandard = "Standard"
	SpotVIP      = "VIP"
	SpotHandicap = "Handicap"
)

type MSpot struct {
	ID       string `json:"id,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     string `json:"type"`
	Occupied bool   `json:"occupied"`
}

// Car states reported by the backend. The set is open.
const (
	CarSearching = "SEARCHING"
	CarMoving    = "MOVING"
	CarParked    = "PARKED"
)

type MCar struct {
	ID     string  `json:"id,omitempty"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	State  string  `json:"state"`
	Budget float64 `json:"budget"`
}

type MMetrics struct {
	Step             int64   `json:"step"`
	Occupancy        float64 `json:"occupancy"`
	Revenue          float64 `json:"revenue"`
	Entered          int64   `json:"entered"`
	Exited           int64   `json:"exited"`
	FairnessVariance float64 `json:"fairness_variance"`
}

// MSnapshot is one frame of simulation state. A new snapshot replaces the previous one.
type MSnapshot struct {
	Spots   []MSpot  `json:"spots"`
	Cars    []MCar   `json:"cars"`
	Metrics MMetrics `json:"metrics"`
}

// MHistoryPoint feeds the revenue trend.
type MHistoryPoint struct {
	Step    int64   `json:"step"`
	Revenue float64 `json:"revenue"`
}

// MMetricsSample is one recorded frame of metrics.
type MMetricsSample struct {
	SessionID string   `json:"session_id"`
	Metrics   MMetrics `json:"metrics"`
	Cars      int      `json:"cars"`
	Spots     int      `json:"spots"`
	FetchedAt int64    `json:"fetched_at"`
}
