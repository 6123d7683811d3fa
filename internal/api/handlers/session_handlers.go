package handlers

import (
	"net/http"
	"strconv"

	"emotion-cam-go/internal/db/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SessionHandler behandelt Anfragen für gespeicherte Sitzungen
type SessionHandler struct {
	repo repository.Repository
}

// NewSessionHandler erstellt einen neuen Sitzungs-Handler
func NewSessionHandler(repo repository.Repository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// RegisterRoutes registriert die Sitzungs-Endpunkte
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/sessions", h.handleListSessions)
	router.GET("/sessions/:id", h.handleGetSession)
	router.DELETE("/sessions/:id", h.handleDeleteSession)
	router.GET("/statistics", h.handleStatistics)
}

// handleListSessions listet Sitzungen seitenweise, neueste zuerst
func (h *SessionHandler) handleListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	sessions, total, err := h.repo.GetSessions(limit, offset)
	if err != nil {
		log.Errorf("Failed to list sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleGetSession liefert eine Sitzung, mit records=true samt allen Einträgen
func (h *SessionHandler) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	withRecords, _ := strconv.ParseBool(c.DefaultQuery("records", "false"))

	s, err := h.repo.GetSessionByID(id, withRecords)
	if err != nil {
		log.Errorf("Failed to load session %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "requested_id": id})
		return
	}
	c.JSON(http.StatusOK, s)
}

// handleDeleteSession löscht eine Sitzung samt Einträgen. Die Protokolldateien bleiben liegen.
func (h *SessionHandler) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")

	s, err := h.repo.GetSessionByID(id, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "requested_id": id})
		return
	}
	if s.EndTime == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session is still active"})
		return
	}

	log.Infof("Deleting session %s (%s)", id, s.Name)
	if err := h.repo.DeleteSession(id); err != nil {
		log.Errorf("Failed to delete session %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_id": id})
}

// handleStatistics liefert Kennzahlen über alle Sitzungen
func (h *SessionHandler) handleStatistics(c *gin.Context) {
	stats, err := h.repo.GetStatistics()
	if err != nil {
		log.Errorf("Failed to compute statistics: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
