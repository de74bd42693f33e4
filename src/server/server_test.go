package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parking-viewer/src/config"
	"parking-viewer/src/helpers"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
	"parking-viewer/src/session"
)

// fakeControl records commands and serves a fixed view.
type fakeControl struct {
	mu       sync.Mutex
	state    models.SessionState
	params   models.MSessionParams
	commands []string
	// startGate, when set, holds Start until closed; startEntered is closed first
	startGate    chan struct{}
	startEntered chan struct{}
}

func (f *fakeControl) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeControl) Start(p models.MSessionParams) error {
	if err := p.Validate(); err != nil {
		return helpers.NewValidationError("invalid session parameters", err)
	}
	f.record("start")
	if f.startGate != nil {
		close(f.startEntered)
		<-f.startGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = p
	f.state = models.StateRunning
	return nil
}

func (f *fakeControl) SetParameters(p models.MSessionParams) error { return f.Start(p) }

func (f *fakeControl) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != models.StateRunning {
		return fmt.Errorf("%w: cannot pause while %s", session.ErrInvalidTransition, f.state)
	}
	f.state = models.StatePaused
	return nil
}

func (f *fakeControl) Resume() error { f.record("resume"); return nil }
func (f *fakeControl) Retry() error  { f.record("retry"); return nil }

func (f *fakeControl) State() models.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeControl) Params() models.MSessionParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakeControl) View() *models.MViewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.MViewState{
		Type:    "INITIAL",
		State:   f.state,
		Params:  f.params,
		Grid:    models.MGridConfig{Width: 4, Height: 3},
		Cells:   []models.MCellView{},
		History: []models.MHistoryPoint{{Step: 0, Revenue: 1}},
	}
}

// -----------------------------------------------------------------------------

const testConfig = `
name: parking-viewer
host: 127.0.0.1
port: 8090
simulation:
  base_url: http://127.0.0.1:8000
  spawn_rate: 0.3
  mode: FCFS
`

func newTestServer(t *testing.T) (*ViewServer, *fakeControl, *httptest.Server) {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	log := logger.NewLogger(nil, "server")
	log.SetOutput(io.Discard)

	ctl := &fakeControl{state: models.StateIdle}
	s := NewViewServer(cfg, ctl, log)
	s.RunHub()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ctl, ts
}

func post(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	out := map[string]interface{}{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// -----------------------------------------------------------------------------

func TestStartUsesConfigDefaults(t *testing.T) {
	_, ctl, ts := newTestServer(t)

	resp, body := post(t, ts.URL+"/api/session/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
	if p := ctl.Params(); p.Mode != models.ModeFCFS || p.SpawnRate != 0.3 {
		t.Errorf("params = %+v", p)
	}
	if body["state"] != "RUNNING" {
		t.Errorf("state = %v", body["state"])
	}
}

func TestParametersMerge(t *testing.T) {
	_, ctl, ts := newTestServer(t)
	post(t, ts.URL+"/api/session/start", "")

	resp, _ := post(t, ts.URL+"/api/session/parameters", `{"mode":"auction"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if p := ctl.Params(); p.Mode != models.ModeAuction || p.SpawnRate != 0.3 {
		t.Errorf("params = %+v", p)
	}
}

func TestCommandErrorsMapToStatus(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, _ := post(t, ts.URL+"/api/session/parameters", `{"spawn_rate":1.5}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid rate status = %d", resp.StatusCode)
	}
	resp, body := post(t, ts.URL+"/api/session/pause", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("pause while idle status = %d", resp.StatusCode)
	}
	if body["state"] != "IDLE" {
		t.Errorf("state = %v", body["state"])
	}
	resp, _ = post(t, ts.URL+"/api/session/start", `{"spawn_rate":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", resp.StatusCode)
	}
}

func TestTopologyAndModes(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/topology")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var topo struct {
		Grid  models.MGridConfig `json:"grid"`
		Lanes [][]struct {
			Direction string `json:"direction"`
			Corner    string `json:"corner"`
		} `json:"lanes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&topo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(topo.Lanes) != 3 || len(topo.Lanes[0]) != 4 {
		t.Fatalf("lanes %dx?", len(topo.Lanes))
	}
	if topo.Lanes[0][0].Direction != "left_right" || topo.Lanes[0][0].Corner != "in" {
		t.Errorf("corner cell = %+v", topo.Lanes[0][0])
	}
	if topo.Lanes[1][0].Direction != "down" || topo.Lanes[1][3].Direction != "up" {
		t.Errorf("edge columns = %+v %+v", topo.Lanes[1][0], topo.Lanes[1][3])
	}

	resp, err = http.Get(ts.URL + "/api/modes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var modes struct {
		Modes []string `json:"modes"`
	}
	json.NewDecoder(resp.Body).Decode(&modes)
	if len(modes.Modes) != 3 {
		t.Errorf("modes = %v", modes.Modes)
	}
}

func TestWebSocketInitialFrameAndBroadcast(t *testing.T) {
	s, _, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.MViewState
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("initial frame: %v", err)
	}
	if first.Type != "INITIAL" || first.State != models.StateIdle {
		t.Errorf("initial = %+v", first)
	}

	s.PublishFrame(&models.MViewState{Type: "UPDATE", Generation: 7, State: models.StateRunning})
	var next struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation"`
		State      string `json:"state"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if next.Type != "UPDATE" || next.Generation != 7 || next.State != "RUNNING" {
		t.Errorf("broadcast = %+v", next)
	}
}

func TestWebSocketCommands(t *testing.T) {
	_, ctl, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var initial map[string]interface{}
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("initial frame: %v", err)
	}

	conn.WriteJSON(models.MSessionCommand{Command: "pause"})
	var failure models.MErrorMessage
	if err := conn.ReadJSON(&failure); err != nil {
		t.Fatalf("read: %v", err)
	}
	if failure.Type != "ERROR" || failure.Command != "pause" {
		t.Errorf("failure = %+v", failure)
	}

	conn.WriteJSON(models.MSessionCommand{Command: "start", Mode: "priority"})
	var view models.MViewState
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("read: %v", err)
	}
	if view.State != models.StateRunning || ctl.Params().Mode != models.ModePriority {
		t.Errorf("state=%s params=%+v", view.State, ctl.Params())
	}
}

func TestUnknownModePassesThrough(t *testing.T) {
	_, ctl, ts := newTestServer(t)

	resp, _ := post(t, ts.URL+"/api/session/start", `{"mode":"auction_v2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if p := ctl.Params(); p.Mode != "auction_v2" {
		t.Errorf("mode = %q, want auction_v2", p.Mode)
	}

	post(t, ts.URL+"/api/session/parameters", `{"mode":" Priority "}`)
	if p := ctl.Params(); p.Mode != models.ModePriority {
		t.Errorf("mode = %q, want %q", p.Mode, models.ModePriority)
	}
}

// registerClient adds a connection-less client to the running hub and
// consumes the initial view it is sent.
func registerClient(t *testing.T, s *ViewServer, buffer int) *Client {
	t.Helper()
	client := &Client{hub: s, send: make(chan interface{}, buffer)}
	s.register <- client
	select {
	case <-client.send:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial view")
	}
	return client
}

func TestCommandReplyAfterHubStop(t *testing.T) {
	s, ctl, _ := newTestServer(t)
	ctl.startGate = make(chan struct{})
	ctl.startEntered = make(chan struct{})
	client := registerClient(t, s, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.HandleClientMessage(client, []byte(`{"command":"start"}`))
	}()
	<-ctl.startEntered

	s.Stop()
	// The hub closes every client channel on the way out
	for range client.send {
	}
	close(ctl.startGate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command reply blocked after hub stop")
	}
}

func TestCommandReplyToEvictedClient(t *testing.T) {
	s, _, _ := newTestServer(t)
	client := registerClient(t, s, 1)

	// Fill the buffer so the next broadcast evicts the client
	s.PublishFrame(&models.MViewState{Type: "UPDATE", Generation: 1})
	s.PublishFrame(&models.MViewState{Type: "UPDATE", Generation: 2})
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.stateMutex.RLock()
		n := s.connections
		s.stateMutex.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client was not evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for range client.send {
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.HandleClientMessage(client, []byte(`{"command":"state"}`))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command reply blocked for evicted client")
	}
}
