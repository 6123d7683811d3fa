package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrUnknownDetector wird zurückgegeben, wenn ein nicht registrierter Detektor gewählt wird
var ErrUnknownDetector = errors.New("unknown detector")

var logFields = log.Fields{"component": "processor"}

// SessionSink nimmt die Erkennungsergebnisse einer laufenden Sitzung auf
type SessionSink interface {
	IsActive() bool
	Log(emotion string, confidence float64, detector string, faceCount int)
}

// FrameSink nimmt annotierte Bilder einer laufenden Aufnahme auf
type FrameSink interface {
	IsRecording() bool
	WriteFrame(frame gocv.Mat)
}

// PipelineOptions enthält die optionalen Abnehmer der Pipeline
type PipelineOptions struct {
	Session       SessionSink
	Recorder      FrameSink
	Snapshots     *opencv.SnapshotBuffer
	Publisher     ResultPublisher
	SnapshotEvery int // jedes n-te Bild in den Snapshot-Puffer, Standard 15
}

// Pipeline verarbeitet die Bilder der Streaming-Goroutine:
// erkennen → protokollieren → annotieren → aufnehmen → verteilen.
// ProcessFrame wird nur aus einer Goroutine gleichzeitig aufgerufen.
type Pipeline struct {
	manager       *detector.Manager
	session       SessionSink
	recorder      FrameSink
	snapshots     *opencv.SnapshotBuffer
	publisher     ResultPublisher
	snapshotEvery uint64
	now           func() time.Time

	mu           sync.RWMutex
	detector     string
	broadcasters []Broadcaster

	frames atomic.Uint64
	last   atomic.Pointer[DetectionEvent]
}

// NewPipeline erstellt eine Pipeline mit dem Standarddetektor des Managers
func NewPipeline(manager *detector.Manager, opts PipelineOptions) *Pipeline {
	every := opts.SnapshotEvery
	if every <= 0 {
		every = 15
	}
	return &Pipeline{
		manager:       manager,
		session:       opts.Session,
		recorder:      opts.Recorder,
		snapshots:     opts.Snapshots,
		publisher:     opts.Publisher,
		snapshotEvery: uint64(every),
		now:           timezone.Now,
		detector:      manager.Default(),
	}
}

// AddBroadcaster registriert einen Empfänger für Erkennungsereignisse
func (p *Pipeline) AddBroadcaster(b Broadcaster) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.broadcasters = append(p.broadcasters, b)
	p.mu.Unlock()
}

// SetDetector wählt den Detektor für die folgenden Bilder
func (p *Pipeline) SetDetector(name string) error {
	if !p.manager.Has(name) {
		return fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
	p.mu.Lock()
	changed := p.detector != name
	p.detector = name
	p.mu.Unlock()

	if changed {
		log.WithFields(logFields).Infof("Detector switched to %s", name)
	}
	return nil
}

// Detector gibt den aktuell gewählten Detektor zurück
func (p *Pipeline) Detector() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.detector
}

// Manager gibt den Detektor-Manager zurück
func (p *Pipeline) Manager() *detector.Manager {
	return p.manager
}

// ProcessFrame verarbeitet ein Bild. Das Bild selbst wird nicht verändert.
func (p *Pipeline) ProcessFrame(frame gocv.Mat) emotion.Result {
	name := p.Detector()
	res := p.manager.Detect(name, frame)
	at := p.now()

	logging := p.session != nil && p.session.IsActive()
	if logging {
		p.session.Log(string(res.Emotion), res.Confidence, name, res.FaceCount())
	}

	annotated := frame.Clone()
	defer annotated.Close()
	opencv.Annotate(&annotated, res)

	recording := p.recorder != nil && p.recorder.IsRecording()
	if recording {
		p.recorder.WriteFrame(annotated)
	}

	n := p.frames.Add(1)
	ev := &DetectionEvent{
		Type:       EventDetection,
		Frame:      n,
		Detector:   name,
		Emotion:    res.Emotion,
		Confidence: res.Confidence,
		Faces:      res.Faces,
		FaceCount:  res.FaceCount(),
		Recording:  recording,
		Logging:    logging,
		Timestamp:  at,
	}

	if p.snapshots != nil && (n-1)%p.snapshotEvery == 0 {
		snap, err := p.snapshots.AddAnnotated(annotated, name, res)
		if err != nil {
			log.WithFields(logFields).Warnf("Failed to store snapshot: %v", err)
		} else {
			ev.SnapshotID = snap.ID
		}
	}

	p.last.Store(ev)
	p.broadcast(ev)

	if p.publisher != nil {
		p.publisher.PublishResult(name, res, at)
	}
	return res
}

func (p *Pipeline) broadcast(v interface{}) {
	p.mu.RLock()
	targets := p.broadcasters
	p.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.WithFields(logFields).Errorf("Failed to marshal event: %v", err)
		return
	}
	for _, b := range targets {
		b.Broadcast(data)
	}
}

// Notify verteilt ein Zustandsereignis an alle Empfänger
func (p *Pipeline) Notify(eventType, state, message string, data interface{}) {
	p.broadcast(&StateEvent{
		Type:      eventType,
		State:     state,
		Message:   message,
		Data:      data,
		Timestamp: p.now(),
	})
}

// LastEvent gibt das Ereignis des zuletzt verarbeiteten Bildes zurück
func (p *Pipeline) LastEvent() (DetectionEvent, bool) {
	ev := p.last.Load()
	if ev == nil {
		return DetectionEvent{}, false
	}
	return *ev, true
}

// FrameCount gibt die Anzahl der verarbeiteten Bilder seit dem letzten Reset zurück
func (p *Pipeline) FrameCount() uint64 {
	return p.frames.Load()
}

// Reset setzt Bildzähler und letztes Ereignis zurück, z.B. beim Start eines Streams
func (p *Pipeline) Reset() {
	p.frames.Store(0)
	p.last.Store(nil)
	if r, ok := p.publisher.(interface{ Reset() }); ok {
		r.Reset()
	}
}
