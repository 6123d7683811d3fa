package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/api/middleware"
	"emotion-cam-go/internal/capture"
	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/integrations/emotion"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maximale Größe eines hochgeladenen Bildes
const maxUploadSize = 16 << 20

// APIHandler behandelt die Steuer- und Analyse-Endpunkte
type APIHandler struct {
	cfg        *config.Config
	controller *processor.Controller
	pipeline   *processor.Pipeline
	pool       *processor.WorkerPool
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(cfg *config.Config, controller *processor.Controller, pipeline *processor.Pipeline, pool *processor.WorkerPool) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		controller: controller,
		pipeline:   pipeline,
		pool:       pool,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Detektoren
	router.GET("/detectors", h.ListDetectors)

	// Stream-Steuerung
	router.GET("/status", h.GetStatus)
	router.POST("/stream/start", h.StartStream)
	router.POST("/stream/stop", h.StopStream)
	router.PUT("/stream/detector", h.SetDetector)

	// Aufnahme
	router.POST("/recording/start", h.StartRecording)
	router.POST("/recording/stop", h.StopRecording)
	router.GET("/recording/last", h.LastRecording)

	// Einzelbildanalyse
	router.POST("/analyze", h.AnalyzeImage)
}

type detectorView struct {
	emotion.Descriptor
	Selected bool `json:"selected"`
}

// ListDetectors listet alle registrierten Detektoren mit Beschreibung
func (h *APIHandler) ListDetectors(c *gin.Context) {
	manager := h.pipeline.Manager()
	selected := h.pipeline.Detector()

	descriptors := manager.Descriptors()
	views := make([]detectorView, len(descriptors))
	for i, d := range descriptors {
		views[i] = detectorView{Descriptor: d, Selected: d.Name == selected}
	}

	c.JSON(http.StatusOK, gin.H{
		"detectors": views,
		"available": manager.AvailableNames(),
		"default":   manager.Default(),
		"selected":  selected,
	})
}

// GetStatus liefert den Zustand von Stream, Aufnahme und Sitzung
func (h *APIHandler) GetStatus(c *gin.Context) {
	status := h.controller.Status()

	state := string(status.Stream.State)
	if status.Recording.Recording {
		state = "recording"
	}

	resp := gin.H{
		"status":  status,
		"state":   state,
		"message": middleware.T(c, "status."+state),
	}
	if status.LastResult != nil {
		resp["emotion_label"] = middleware.EmotionLabel(c, string(status.LastResult.Emotion))
	}
	c.JSON(http.StatusOK, resp)
}

type startStreamRequest struct {
	Source   string `json:"source"`
	Detector string `json:"detector"`
}

// StartStream öffnet die Kamera oder Videoquelle und startet die Erkennung
func (h *APIHandler) StartStream(c *gin.Context) {
	var req startStreamRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = h.cfg.Camera.Source
	}

	if err := h.controller.StartStream(c.Request.Context(), req.Source, req.Detector); err != nil {
		respondControlError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"source":   req.Source,
		"detector": h.pipeline.Detector(),
		"message":  middleware.T(c, "status.streaming"),
	})
}

// StopStream beendet den Stream und eine eventuell laufende Aufnahme
func (h *APIHandler) StopStream(c *gin.Context) {
	report := h.controller.StopStream()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"recording": report,
		"message":   middleware.T(c, "status.idle"),
	})
}

type detectorRequest struct {
	Detector string `json:"detector" binding:"required"`
}

// SetDetector wechselt den Detektor, auch während der Stream läuft
func (h *APIHandler) SetDetector(c *gin.Context) {
	var req detectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_detector")})
		return
	}
	if err := h.controller.SetDetector(req.Detector); err != nil {
		respondControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "detector": req.Detector})
}

type recordingRequest struct {
	Filename string `json:"filename"`
}

// StartRecording startet Videoaufnahme und Sitzungsprotokoll
func (h *APIHandler) StartRecording(c *gin.Context) {
	var req recordingRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.controller.StartRecording(req.Filename)
	if err != nil {
		respondControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"recording": info,
		"message":   middleware.T(c, "status.recording"),
	})
}

// StopRecording beendet die Aufnahme und liefert die Sitzungszusammenfassung
func (h *APIHandler) StopRecording(c *gin.Context) {
	report, err := h.controller.StopRecording()
	if err != nil {
		respondControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// LastRecording liefert den Bericht der zuletzt beendeten Aufnahme
func (h *APIHandler) LastRecording(c *gin.Context) {
	report := h.controller.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recording finished yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// AnalyzeImage analysiert ein hochgeladenes Bild über den Worker-Pool.
// Mit format=jpeg wird das annotierte Bild statt JSON zurückgegeben.
func (h *APIHandler) AnalyzeImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded or invalid form data"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	name := c.PostForm("detector")
	if name != "" && !h.pipeline.Manager().Has(name) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    middleware.EmotionLabel(c, string(emotion.UnknownDetector)),
			"detector": name,
		})
		return
	}

	asJPEG := c.Query("format") == "jpeg"
	annotate := asJPEG
	if v, err := strconv.ParseBool(c.PostForm("annotate")); err == nil {
		annotate = annotate || v
	}

	log.Debugf("Analyzing upload %s (%d bytes) with %q", header.Filename, len(data), name)
	analysis, err := h.pool.ProcessImage(c.Request.Context(), data, name, annotate)
	if err != nil {
		if errors.Is(err, processor.ErrPoolClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if asJPEG {
		c.Data(http.StatusOK, "image/jpeg", analysis.Annotated)
		return
	}

	resp := gin.H{
		"analysis":      analysis,
		"emotion_label": middleware.EmotionLabel(c, string(analysis.Result.Emotion)),
	}
	if annotate {
		resp["annotated"] = analysis.Annotated
	}
	c.JSON(http.StatusOK, resp)
}

// bindOptionalJSON bindet den Body, ein leerer Body ist erlaubt
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}

// respondControlError übersetzt Steuerfehler in HTTP-Antworten
func respondControlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, processor.ErrNotStreaming):
		c.JSON(http.StatusConflict, gin.H{"error": middleware.T(c, "error.not_streaming")})
	case errors.Is(err, processor.ErrNotRecording):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, capture.ErrAlreadyStreaming), errors.Is(err, capture.ErrAlreadyOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, processor.ErrNoDetector), errors.Is(err, processor.ErrUnknownDetector):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_detector"), "detail": err.Error()})
	case errors.Is(err, capture.ErrOpenFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": middleware.T(c, "error.camera"), "detail": err.Error()})
	default:
		log.Errorf("Control request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.T(c, "error.recording"), "detail": err.Error()})
	}
}
