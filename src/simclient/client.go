package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"parking-viewer/src/helpers"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
)

// -----------------------------------------------------------------------------

// HTTPSimulationClient speaks the JSON protocol of the simulation backend:
// POST /init?spawn_rate=&mode= and GET /step.
type HTTPSimulationClient struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHTTPSimulationClient(baseURL string, netMgr interfaces.INetworkManager, log *logger.Logger) *HTTPSimulationClient {
	return &HTTPSimulationClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Init starts a new server-side session
func (c *HTTPSimulationClient) Init(ctx context.Context, params models.MSessionParams) (models.MGridConfig, error) {
	query := map[string]string{
		"spawn_rate": strconv.FormatFloat(params.SpawnRate, 'f', -1, 64),
		"mode":       params.Mode,
	}

	body, err := c.Network.Post(ctx, c.BaseURL+"/init", query)
	if err != nil {
		return models.MGridConfig{}, err
	}

	var resp models.MInitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MGridConfig{}, helpers.NewTransportError("malformed init response", 0, err)
	}
	if resp.Config.Width <= 0 || resp.Config.Height <= 0 {
		return models.MGridConfig{}, helpers.NewTransportError(
			fmt.Sprintf("init returned invalid grid %dx%d", resp.Config.Width, resp.Config.Height), 0, nil)
	}

	c.Logger.Info("Session initialized: %dx%d grid, mode=%s spawn_rate=%.2f",
		resp.Config.Width, resp.Config.Height, params.Mode, params.SpawnRate)
	return resp.Config, nil
}

// -----------------------------------------------------------------------------

// stepEnvelope keeps absent members distinguishable from empty ones.
type stepEnvelope struct {
	Error   json.RawMessage  `json:"error"`
	Spots   []models.MSpot   `json:"spots"`
	Cars    []models.MCar    `json:"cars"`
	Metrics *models.MMetrics `json:"metrics"`
}

// Step fetches the next frame. Every /step advances the server model, so a
// failed attempt is reported rather than retried.
func (c *HTTPSimulationClient) Step(ctx context.Context) (*models.MSnapshot, error) {
	body, err := c.Network.GetOnce(ctx, c.BaseURL+"/step", nil)
	if err != nil {
		return nil, err
	}

	return ParseStep(body)
}

// -----------------------------------------------------------------------------

// ParseStep decodes a /step body. A truthy "error" member means the server
// lost the session; a body without spots, cars and metrics is malformed.
func ParseStep(body []byte) (*models.MSnapshot, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, helpers.NewTransportError("malformed step response", 0, fmt.Errorf("expected a JSON object"))
	}

	var env stepEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, helpers.NewTransportError("malformed step response", 0, err)
	}

	if truthy(env.Error) {
		return nil, helpers.NewStaleSessionError(fmt.Sprintf("server reported: %s", string(env.Error)))
	}

	if env.Spots == nil || env.Cars == nil || env.Metrics == nil {
		return nil, helpers.NewTransportError("malformed step response", 0,
			fmt.Errorf("missing spots, cars or metrics in %.120s", string(trimmed)))
	}

	return &models.MSnapshot{Spots: env.Spots, Cars: env.Cars, Metrics: *env.Metrics}, nil
}

// -----------------------------------------------------------------------------

// truthy follows JSON-as-JavaScript truthiness: null, false, 0 and "" are false.
func truthy(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	switch v {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0
	}
	return true
}
