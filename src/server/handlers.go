package server

import (
	"errors"
	"io"
	"net/http"

	"parking-viewer/src/models"
	"parking-viewer/src/topology"
	"parking-viewer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Read Handlers
// -----------------------------------------------------------------------------

func (s *ViewServer) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.Control.View())
}

// -----------------------------------------------------------------------------

func (s *ViewServer) getHistory(c *gin.Context) {
	view := s.Control.View()
	c.JSON(http.StatusOK, gin.H{
		"session_id": view.SessionID,
		"history":    view.History,
		"trend":      view.Trend,
	})
}

// -----------------------------------------------------------------------------

func (s *ViewServer) getTopology(c *gin.Context) {
	grid := s.Control.View().Grid
	c.JSON(http.StatusOK, gin.H{
		"grid":  grid,
		"lanes": topology.Layout(grid),
	})
}

// -----------------------------------------------------------------------------

func (s *ViewServer) getModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modes":          models.KnownModes,
		"min_spawn_rate": models.MinSpawnRate,
		"max_spawn_rate": models.MaxSpawnRate,
	})
}

// -----------------------------------------------------------------------------

func (s *ViewServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := s.connections
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"session_state": s.Control.State(),
		"connections":   connections,
		"latest_update": timestamp,
		"heap_mb":       utils.HeapAllocMB(),
		"goroutines":    utils.Goroutines(),
	})
}

// -----------------------------------------------------------------------------
// Command Handlers
// -----------------------------------------------------------------------------

func (s *ViewServer) postStart(c *gin.Context)      { s.command(c, "start") }
func (s *ViewServer) postParameters(c *gin.Context) { s.command(c, "set_parameters") }
func (s *ViewServer) postPause(c *gin.Context)      { s.command(c, "pause") }
func (s *ViewServer) postResume(c *gin.Context)     { s.command(c, "resume") }
func (s *ViewServer) postRetry(c *gin.Context)      { s.command(c, "retry") }

// -----------------------------------------------------------------------------

func (s *ViewServer) command(c *gin.Context, name string) {
	var cmd models.MSessionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	cmd.Command = name

	if err := s.runCommand(cmd); err != nil {
		s.Logger.Warning("Command %s failed: %v", name, err)
		c.JSON(statusFor(err), gin.H{
			"error": err.Error(),
			"state": s.Control.State(),
		})
		return
	}
	c.JSON(http.StatusOK, s.Control.View())
}
