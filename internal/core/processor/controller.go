package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emotion-cam-go/internal/capture"
	"emotion-cam-go/internal/recorder"
	"emotion-cam-go/internal/session"
	"emotion-cam-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	// ErrNotStreaming: Aufnahme ohne laufenden Stream
	ErrNotStreaming = errors.New("stream is not running")
	// ErrNotRecording: Stop ohne laufende Aufnahme
	ErrNotRecording = errors.New("no recording in progress")
	// ErrNoDetector: kein Detektor verfügbar oder gewählt
	ErrNoDetector = errors.New("no detector available")
)

// SessionPublisher veröffentlicht die Zusammenfassung einer beendeten Sitzung
type SessionPublisher interface {
	PublishSession(id, name string, summary session.Summary) error
}

// ControllerOptions enthält die Einstellungen für Stream und Aufnahme
type ControllerOptions struct {
	RecordingDir  string
	FPS           float64
	RetryAttempts int
	RetryDelay    time.Duration
}

// RecordingReport beschreibt eine beendete Aufnahme mit der zugehörigen Sitzung
type RecordingReport struct {
	Recording   recorder.Info   `json:"recording"`
	FileSizeMB  float64         `json:"file_size_mb"`
	SessionID   string          `json:"session_id,omitempty"`
	SessionName string          `json:"session_name,omitempty"`
	Files       session.Files   `json:"files"`
	Summary     session.Summary `json:"summary"`
}

// Status ist der Gesamtzustand für die Steuerungs-API
type Status struct {
	Stream     capture.Stats   `json:"stream"`
	Detector   string          `json:"detector"`
	Frames     uint64          `json:"frames_processed"`
	Recording  recorder.Info   `json:"recording"`
	Session    session.Info    `json:"session"`
	LastResult *DetectionEvent `json:"last_result,omitempty"`
}

// Controller koppelt Stream, Aufnahme und Sitzungsprotokoll: eine Aufnahme
// setzt einen laufenden Stream voraus und startet das Protokoll mit dem
// Dateinamen des Videos, das Stoppen des Streams beendet auch die Aufnahme.
type Controller struct {
	mu        sync.Mutex // serialisiert alle Zustandswechsel
	capture   *capture.Handler
	pipeline  *Pipeline
	recorder  *recorder.Recorder
	logger    *session.Logger
	publisher SessionPublisher
	opts      ControllerOptions
	now       func() time.Time

	lastReport *RecordingReport
}

// NewController erstellt den Controller. publisher ist optional.
func NewController(h *capture.Handler, p *Pipeline, rec *recorder.Recorder, logger *session.Logger, publisher SessionPublisher, opts ControllerOptions) *Controller {
	if opts.FPS <= 0 {
		opts.FPS = 20
	}
	if opts.RecordingDir == "" {
		opts.RecordingDir = "recordings"
	}
	c := &Controller{
		capture:   h,
		pipeline:  p,
		recorder:  rec,
		logger:    logger,
		publisher: publisher,
		opts:      opts,
		now:       timezone.Now,
	}
	h.SetTerminateHandler(func(err error) {
		// läuft in der Streaming-Goroutine, die beim Stoppen abgewartet wird
		go c.handleTerminate(err)
	})
	return c
}

// StartStream öffnet die Quelle und startet die Verarbeitung. detectorName ist
// optional; ohne Angabe bleibt der aktuell gewählte Detektor.
func (c *Controller) StartStream(ctx context.Context, source, detectorName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if detectorName != "" {
		if err := c.pipeline.SetDetector(detectorName); err != nil {
			return err
		}
	}
	if c.pipeline.Detector() == "" {
		return ErrNoDetector
	}
	if c.capture.State() == capture.StateStreaming {
		return capture.ErrAlreadyStreaming
	}

	if err := c.capture.OpenWithRetry(ctx, source, c.opts.RetryAttempts, c.opts.RetryDelay); err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	c.pipeline.Reset()
	if err := c.capture.StartStreaming(func(frame gocv.Mat) {
		c.pipeline.ProcessFrame(frame)
	}); err != nil {
		c.capture.StopCamera()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	c.pipeline.Notify(EventStream, "started", c.capture.Source().String(), nil)
	log.WithFields(logFields).Infof("Stream started from %s with detector %s", c.capture.Source(), c.pipeline.Detector())
	return nil
}

// StopStream beendet Stream und Kamera. Eine laufende Aufnahme wird beendet und
// ihr Bericht zurückgegeben, sonst nil.
func (c *Controller) StopStream() *RecordingReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasOpen := c.capture.State() != capture.StateIdle
	c.capture.StopCamera()

	var report *RecordingReport
	if c.recorder.IsRecording() {
		report = c.stopRecordingLocked()
	}
	if wasOpen {
		c.pipeline.Notify(EventStream, "stopped", "", nil)
	}
	return report
}

// SetDetector wählt den Detektor für laufende und künftige Streams
func (c *Controller) SetDetector(name string) error {
	return c.pipeline.SetDetector(name)
}

// StartRecording startet Aufnahme und Sitzungsprotokoll. Ohne Dateinamen wird
// emotion_recording_<Zeitstempel>.mp4 im Aufnahmeverzeichnis verwendet, ein
// Name ohne Verzeichnis landet ebenfalls dort.
func (c *Controller) StartRecording(filename string) (recorder.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture.State() != capture.StateStreaming {
		return recorder.Info{}, ErrNotStreaming
	}

	filename = c.recordingPath(filename)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return recorder.Info{}, fmt.Errorf("failed to create recording directory: %w", err)
	}

	if err := c.recorder.Start(filename, c.opts.FPS, c.capture.FrameSize()); err != nil {
		return recorder.Info{}, err
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if err := c.logger.Start(name); err != nil {
		c.recorder.Stop()
		return recorder.Info{}, fmt.Errorf("failed to start session log: %w", err)
	}

	info := c.recorder.Info()
	c.pipeline.Notify(EventRecording, "started", filename, info)
	return info, nil
}

func (c *Controller) recordingPath(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = recorder.DefaultFilename(c.now())
	}
	if filepath.Ext(filename) == "" {
		filename += ".mp4"
	}
	if filepath.Dir(filename) == "." && !strings.HasPrefix(filename, "."+string(filepath.Separator)) {
		filename = filepath.Join(c.opts.RecordingDir, filename)
	}
	return filename
}

// StopRecording beendet Aufnahme und Sitzungsprotokoll und liefert den Bericht
func (c *Controller) StopRecording() (*RecordingReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recorder.IsRecording() {
		return nil, ErrNotRecording
	}
	return c.stopRecordingLocked(), nil
}

func (c *Controller) stopRecordingLocked() *RecordingReport {
	info := c.recorder.Stop()
	sess := c.logger.Info()
	summary := c.logger.Stop()

	report := &RecordingReport{
		Recording:   info,
		FileSizeMB:  fileSizeMB(info.Filename),
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Files:       c.logger.Files(),
		Summary:     summary,
	}
	c.lastReport = report

	if c.publisher != nil && sess.ID != "" {
		if err := c.publisher.PublishSession(sess.ID, sess.Name, summary); err != nil {
			log.WithFields(logFields).Warnf("Failed to publish session summary: %v", err)
		}
	}

	c.pipeline.Notify(EventRecording, "stopped", info.Filename, report)
	log.WithFields(logFields).Infof("Recording %s finished: %.1fs, %d frames, %d records",
		info.Filename, info.DurationSeconds, info.FrameCount, summary.TotalRecords)
	return report
}

func fileSizeMB(path string) float64 {
	if path == "" {
		return 0
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(st.Size()) / (1024 * 1024)
}

func (c *Controller) handleTerminate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recorder.IsRecording() {
		log.WithFields(logFields).Warn("Stream terminated while recording, finishing recording")
		c.stopRecordingLocked()
	}
	c.pipeline.Notify(EventStream, "terminated", err.Error(), nil)
}

// Status gibt den aktuellen Gesamtzustand zurück
func (c *Controller) Status() Status {
	st := Status{
		Stream:    c.capture.Stats(),
		Detector:  c.pipeline.Detector(),
		Frames:    c.pipeline.FrameCount(),
		Recording: c.recorder.Info(),
		Session:   c.logger.Info(),
	}
	if ev, ok := c.pipeline.LastEvent(); ok {
		st.LastResult = &ev
	}
	return st
}

// LastReport gibt den Bericht der zuletzt beendeten Aufnahme zurück
func (c *Controller) LastReport() *RecordingReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

// Shutdown beendet Aufnahme, Stream und Kamera
func (c *Controller) Shutdown() {
	c.StopStream()
	if c.logger.IsActive() {
		c.logger.Stop()
	}
}

// Command ist ein Steuerbefehl über MQTT
type Command struct {
	Action   string `json:"action"`
	Source   string `json:"source,omitempty"`
	Detector string `json:"detector,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Befehle auf dem Befehls-Topic
const (
	CommandStartStream    = "start_stream"
	CommandStopStream     = "stop_stream"
	CommandStartRecording = "start_recording"
	CommandStopRecording  = "stop_recording"
	CommandSetDetector    = "set_detector"
)

// HandleMessage verarbeitet Befehle vom MQTT-Befehls-Topic
func (c *Controller) HandleMessage(topic string, payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.WithFields(logFields).Warnf("Ignoring malformed command on %s: %v", topic, err)
		return
	}
	if err := c.Execute(context.Background(), cmd); err != nil {
		log.WithFields(logFields).Warnf("Command %q from %s failed: %v", cmd.Action, topic, err)
	}
}

// Execute führt einen Steuerbefehl aus
func (c *Controller) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case CommandStartStream:
		return c.StartStream(ctx, cmd.Source, cmd.Detector)
	case CommandStopStream:
		c.StopStream()
		return nil
	case CommandStartRecording:
		_, err := c.StartRecording(cmd.Filename)
		return err
	case CommandStopRecording:
		_, err := c.StopRecording()
		return err
	case CommandSetDetector:
		return c.SetDetector(cmd.Detector)
	default:
		return fmt.Errorf("unknown command %q", cmd.Action)
	}
}
