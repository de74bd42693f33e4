package models

// -----------------------------------------------------------------------------
// Render-ready state pushed to view clients
// -----------------------------------------------------------------------------

type MViewState struct {
	Type       string          `json:"type"` // "INITIAL" or "UPDATE"
	SessionID  string          `json:"session_id"`
	Generation uint64          `json:"generation"`
	State      SessionState    `json:"state"`
	Error      string          `json:"error,omitempty"`
	Params     MSessionParams  `json:"params"`
	Grid       MGridConfig     `json:"grid"`
	Snapshot   *MSnapshot      `json:"snapshot,omitempty"`
	Cells      []MCellView     `json:"cells"`
	History    []MHistoryPoint `json:"history"`
	Trend      MTrend          `json:"trend"`
	Timestamp  int64           `json:"timestamp"`
}

// MCellView is one occupied grid coordinate as produced by the spatial index.
type MCellView struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Kind  string `json:"type"` // "spot" or "car_only"
	Spot  *MSpot `json:"spot,omitempty"`
	Car   *MCar  `json:"car,omitempty"`
	Class string `json:"class"`
}

// MTrend summarises the revenue history window.
type MTrend struct {
	Points        int     `json:"points"`
	MeanRevenue   float64 `json:"mean_revenue"`
	StdRevenue    float64 `json:"std_revenue"`
	MinRevenue    float64 `json:"min_revenue"`
	MaxRevenue    float64 `json:"max_revenue"`
	Slope         float64 `json:"slope"`
	Correlation   float64 `json:"correlation"`
	RevenueDelta  float64 `json:"revenue_delta"`
	RevenueChange float64 `json:"revenue_change"` // Fraction of the oldest point, 0 when it is 0
}

// -----------------------------------------------------------------------------
// Command bodies accepted by the view server
// -----------------------------------------------------------------------------

// MSessionCommand is both the REST body of the session routes and the
// websocket command frame. Command is only read on the websocket.
type MSessionCommand struct {
	Command   string   `json:"command,omitempty"` // start, pause, resume, retry, set_parameters, state
	SpawnRate *float64 `json:"spawn_rate,omitempty"`
	Mode      string   `json:"mode,omitempty"`
}

// MErrorMessage is sent to a websocket client whose command failed.
type MErrorMessage struct {
	Type    string       `json:"type"` // "ERROR"
	Command string       `json:"command"`
	Error   string       `json:"error"`
	State   SessionState `json:"state"`
}
