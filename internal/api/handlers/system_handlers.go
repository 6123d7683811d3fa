package handlers

import (
	"net/http"
	"time"

	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// SystemHandler liefert Laufzeit- und Zustandsinformationen
type SystemHandler struct {
	pool      *processor.WorkerPool
	pipeline  *processor.Pipeline
	startedAt time.Time
	clients   []ClientCounter
}

// ClientCounter zählt verbundene Event-Clients
type ClientCounter interface {
	ClientCount() int
}

// NewSystemHandler erstellt den System-Handler. clients sind die Event-Hubs.
func NewSystemHandler(pool *processor.WorkerPool, pipeline *processor.Pipeline, clients ...ClientCounter) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		pipeline:  pipeline,
		startedAt: time.Now(),
		clients:   clients,
	}
}

// RegisterRoutes registriert die System-Endpunkte
func (h *SystemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/system/stats", h.GetSystemStats)
	router.GET("/health", h.Health)
}

// GetSystemStats liefert CPU-, Speicher- und Worker-Pool-Statistiken
func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	stats := utils.GetSystemStats(h.pool, h.pipeline)

	connected := 0
	for _, cc := range h.clients {
		connected += cc.ClientCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":          stats,
		"event_clients":  connected,
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
	})
}

// Health meldet, ob mindestens ein Detektor verfügbar ist
func (h *SystemHandler) Health(c *gin.Context) {
	available := 0
	if h.pipeline != nil {
		available = len(h.pipeline.Manager().AvailableNames())
	}
	status := http.StatusOK
	state := "ok"
	if available == 0 {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "detectors_available": available})
}
