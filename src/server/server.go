package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"parking-viewer/src/config"
	"parking-viewer/src/interfaces"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// ViewServer
// -----------------------------------------------------------------------------

type ViewServer struct {
	Config  *config.Config
	Logger  *logger.Logger
	Control interfaces.ISessionControl
	// ConfigPath, when set, receives parameter changes so they survive a restart
	ConfigPath string

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MViewState // Buffered so the polling path never waits on viewers
	register   chan *Client
	unregister chan *Client
	replies    chan clientReply
	quit       chan struct{}
	stopOnce   sync.Once

	// Local cache
	latestState *models.MViewState
	connections int
	stateMutex  sync.RWMutex
	saveMutex   sync.Mutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewViewServer(cfg *config.Config, control interfaces.ISessionControl, logger *logger.Logger) *ViewServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ViewServer{
		Config:     cfg,
		Logger:     logger,
		Control:    control,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MViewState, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replies:    make(chan clientReply),
		quit:       make(chan struct{}),
		latestState: &models.MViewState{
			Type:    "INITIAL",
			State:   models.StateIdle,
			Cells:   []models.MCellView{},
			History: []models.MHistoryPoint{},
		},
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ViewServer) setupRoutes() {
	api := s.engine.Group("/api")

	// Read side
	api.GET("/state", s.getState)
	api.GET("/history", s.getHistory)
	api.GET("/topology", s.getTopology)
	api.GET("/modes", s.getModes)
	api.GET("/health", s.getHealth)

	// Session commands
	session := api.Group("/session")
	session.POST("/start", s.postStart)
	session.POST("/parameters", s.postParameters)
	session.POST("/pause", s.postPause)
	session.POST("/resume", s.postResume)
	session.POST("/retry", s.postRetry)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mostly for tests.
func (s *ViewServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP until Stop is called.
func (s *ViewServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting view server on %s", addr)

	go s.handleWebsockets()

	s.stateMutex.Lock()
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	srv := s.httpServer
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("view server on %s: %w", addr, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RunHub starts only the websocket hub, for callers serving Handler themselves.
func (s *ViewServer) RunHub() {
	go s.handleWebsockets()
}

// -----------------------------------------------------------------------------

func (s *ViewServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)

		s.stateMutex.RLock()
		srv := s.httpServer
		s.stateMutex.RUnlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
	})
	return err
}

// -----------------------------------------------------------------------------
// Frame Sink
// -----------------------------------------------------------------------------

// PublishFrame queues a frame for every connected viewer. A full queue drops
// the frame; the next one supersedes it anyway.
func (s *ViewServer) PublishFrame(view *models.MViewState) {
	select {
	case s.broadcast <- view:
	default:
		s.Logger.Debug("Broadcast queue full, dropping frame of generation %d", view.Generation)
	}
}

// -----------------------------------------------------------------------------

// persistParams writes accepted parameters back to the config file
func (s *ViewServer) persistParams(params models.MSessionParams) {
	if s.ConfigPath == "" {
		return
	}
	s.saveMutex.Lock()
	defer s.saveMutex.Unlock()

	s.Config.Simulation.SpawnRate = params.SpawnRate
	s.Config.Simulation.Mode = params.Mode
	if err := s.Config.Save(s.ConfigPath); err != nil {
		s.Logger.Warning("Could not persist parameters: %v", err)
	}
}
