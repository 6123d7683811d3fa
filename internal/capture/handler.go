package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"emotion-cam-go/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// State ist der Zustand des Handlers
type State string

const (
	StateIdle      State = "idle"
	StateOpened    State = "opened"
	StateStreaming State = "streaming"
)

var (
	// ErrNotOpened: StartStreaming ohne geöffnete Quelle
	ErrNotOpened = errors.New("capture source not opened")
	// ErrAlreadyStreaming: die Schleife läuft bereits
	ErrAlreadyStreaming = errors.New("capture already streaming")
	// ErrAlreadyOpen: eine andere Quelle wurde zwischenzeitlich geöffnet
	ErrAlreadyOpen = errors.New("capture source already open")
	// ErrOpenFailed: die Quelle ließ sich auch nach allen Versuchen nicht öffnen
	ErrOpenFailed = errors.New("failed to open video source")
	// ErrTooManyReadErrors beendet die Schleife nach zu vielen Lesefehlern
	ErrTooManyReadErrors = errors.New("too many consecutive frame read errors")
)

var logFields = log.Fields{"component": "capture"}

// FrameFunc wird für jedes Bild synchron aus der Streaming-Goroutine aufgerufen.
// Das Bild gehört dem Handler und ist nur während des Aufrufs gültig.
type FrameFunc func(frame gocv.Mat)

// TerminateFunc wird aufgerufen, wenn die Schleife wegen eines Fehlers endet
type TerminateFunc func(err error)

// Options steuert Bildgröße, Takt und Fehlerverhalten der Schleife
type Options struct {
	Width         int
	Height        int
	FrameDelay    time.Duration
	MaxReadErrors int
	ErrorWindow   time.Duration
	JoinTimeout   time.Duration
}

// OptionsFromConfig übernimmt die Kameraeinstellungen
func OptionsFromConfig(cfg config.CameraConfig) Options {
	return Options{
		Width:         cfg.Width,
		Height:        cfg.Height,
		FrameDelay:    cfg.FrameDelay,
		MaxReadErrors: cfg.MaxReadErrors,
		ErrorWindow:   cfg.ErrorWindow,
		JoinTimeout:   cfg.JoinTimeout,
	}
}

func (o *Options) applyDefaults() {
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 640, 480
	}
	if o.FrameDelay <= 0 {
		o.FrameDelay = 30 * time.Millisecond
	}
	if o.MaxReadErrors <= 0 {
		o.MaxReadErrors = 5
	}
	if o.ErrorWindow <= 0 {
		o.ErrorWindow = time.Second
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 2 * time.Second
	}
}

// Stats enthält Laufzeitzähler der Aufnahme
type Stats struct {
	State       State     `json:"state"`
	Source      string    `json:"source,omitempty"`
	FramesRead  uint64    `json:"frames_read"`
	ReadErrors  uint64    `json:"read_errors"`
	LastFrameAt time.Time `json:"last_frame_at,omitempty"`
}

// Handler besitzt höchstens eine geöffnete Videoquelle und die Streaming-Goroutine.
// Zustände: Idle → Opened → Streaming → Idle.
type Handler struct {
	mu     sync.Mutex // schützt Quelle und Zustandswechsel
	opts   Options
	opener Opener
	now    func() time.Time

	state  State
	source Source
	src    FrameSource

	stop    chan struct{}
	done    chan struct{}
	pending chan struct{} // Schleife, die beim Join nicht rechtzeitig beendet wurde

	onTerminate TerminateFunc

	framesRead  atomic.Uint64
	readErrors  atomic.Uint64
	lastFrameAt atomic.Int64
}

// NewHandler erstellt einen Handler. Ohne opener wird OpenDevice verwendet.
func NewHandler(opts Options, opener Opener) *Handler {
	opts.applyDefaults()
	if opener == nil {
		opener = OpenDevice
	}
	return &Handler{
		opts:   opts,
		opener: opener,
		now:    time.Now,
		state:  StateIdle,
	}
}

// SetTerminateHandler registriert eine Funktion, die bei Abbruch der Schleife aufgerufen wird
func (h *Handler) SetTerminateHandler(fn TerminateFunc) {
	h.mu.Lock()
	h.onTerminate = fn
	h.mu.Unlock()
}

// FrameSize gibt die Zielgröße der gelieferten Bilder zurück
func (h *Handler) FrameSize() image.Point {
	return image.Pt(h.opts.Width, h.opts.Height)
}

// FrameRate gibt die nominelle Bildrate der Schleife zurück
func (h *Handler) FrameRate() float64 {
	return float64(time.Second) / float64(h.opts.FrameDelay)
}

// State gibt den aktuellen Zustand zurück
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Source gibt die aktuell geöffnete Quelle zurück
func (h *Handler) Source() Source {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.source
}

// Stats gibt die Zähler der aktuellen Quelle zurück
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	state, source := h.state, h.source
	h.mu.Unlock()

	s := Stats{
		State:      state,
		FramesRead: h.framesRead.Load(),
		ReadErrors: h.readErrors.Load(),
	}
	if state != StateIdle {
		s.Source = source.String()
	}
	if ts := h.lastFrameAt.Load(); ts > 0 {
		s.LastFrameAt = time.Unix(0, ts)
	}
	return s
}

// StartCamera öffnet die Quelle und prüft sie durch Lesen eines Bildes.
// Eine bereits geöffnete Quelle wird vorher geschlossen.
func (h *Handler) StartCamera(raw string) error {
	h.StopCamera()

	src := ResolveSource(raw)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateIdle {
		return ErrAlreadyOpen
	}

	log.WithFields(logFields).Infof("Opening video source %s", src)
	fs, err := h.opener(src)
	if err != nil {
		return fmt.Errorf("failed to open video source %s: %w", src, err)
	}

	probe := gocv.NewMat()
	defer probe.Close()
	if ok := fs.Read(&probe); !ok || probe.Empty() {
		fs.Close()
		return fmt.Errorf("video source %s delivered no frame", src)
	}

	h.src = fs
	h.source = src
	h.state = StateOpened
	h.framesRead.Store(0)
	h.readErrors.Store(0)
	h.lastFrameAt.Store(0)

	log.WithFields(logFields).Infof("Video source %s opened (%dx%d)", src, probe.Cols(), probe.Rows())
	return nil
}

// OpenWithRetry versucht StartCamera bis zu attempts Mal
func (h *Handler) OpenWithRetry(ctx context.Context, raw string, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = h.StartCamera(raw); err == nil {
			return nil
		}
		log.WithFields(logFields).Warnf("Attempt %d/%d to open %q failed: %v", i, attempts, raw, err)

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrOpenFailed, attempts, err)
}

// StartStreaming startet die Streaming-Goroutine. Erfordert eine geöffnete Quelle.
func (h *Handler) StartStreaming(onFrame FrameFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateIdle:
		return ErrNotOpened
	case StateStreaming:
		return ErrAlreadyStreaming
	}
	if h.pending != nil {
		select {
		case <-h.pending:
			h.pending = nil
		default:
			return fmt.Errorf("previous capture loop is still running")
		}
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	h.state = StateStreaming

	go h.loop(h.src, onFrame, h.stop, h.done)

	log.WithFields(logFields).Infof("Streaming started from %s", h.source)
	return nil
}

// StopStreaming signalisiert der Schleife das Ende und wartet höchstens JoinTimeout.
// Ohne laufende Schleife passiert nichts.
func (h *Handler) StopStreaming() {
	h.mu.Lock()
	if h.state != StateStreaming {
		h.mu.Unlock()
		return
	}
	done := h.done
	close(h.stop)
	h.stop = nil
	h.done = nil
	h.state = StateOpened
	h.mu.Unlock()

	select {
	case <-done:
		log.WithFields(logFields).Info("Streaming stopped")
	case <-time.After(h.opts.JoinTimeout):
		log.WithFields(logFields).Warnf("Capture loop did not stop within %s, continuing without it", h.opts.JoinTimeout)
		h.mu.Lock()
		h.pending = done
		h.mu.Unlock()
	}
}

// StopCamera beendet das Streaming und gibt die Quelle frei. Mehrfacher Aufruf ist erlaubt.
func (h *Handler) StopCamera() {
	h.StopStreaming()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateIdle {
		return
	}
	h.releaseLocked()
	h.state = StateIdle
	log.WithFields(logFields).Infof("Video source %s released", h.source)
}

// releaseLocked schließt die Quelle. Läuft noch eine hängende Schleife, wird die
// Quelle erst nach deren Ende geschlossen.
func (h *Handler) releaseLocked() {
	src, pending := h.src, h.pending
	h.src = nil
	h.pending = nil
	if src == nil {
		return
	}

	if pending != nil {
		select {
		case <-pending:
		default:
			log.WithFields(logFields).Warn("Deferring release of video source until the capture loop exits")
			go func() {
				<-pending
				src.Close()
			}()
			return
		}
	}
	if err := src.Close(); err != nil {
		log.WithFields(logFields).Warnf("Failed to close video source: %v", err)
	}
}

func (h *Handler) loop(src FrameSource, onFrame FrameFunc, stop, done chan struct{}) {
	defer close(done)

	frame := gocv.NewMat()
	defer frame.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	target := h.FrameSize()
	errCount := 0
	var lastErr time.Time

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := src.Read(&frame); !ok || frame.Empty() {
			h.readErrors.Add(1)
			now := h.now()
			if now.Sub(lastErr) > h.opts.ErrorWindow {
				errCount = 0
			}
			errCount++
			lastErr = now

			if errCount >= h.opts.MaxReadErrors {
				h.terminate(done, fmt.Errorf("%w: %d failures within %s", ErrTooManyReadErrors, errCount, h.opts.ErrorWindow))
				return
			}
		} else {
			errCount = 0
			h.framesRead.Add(1)
			h.lastFrameAt.Store(h.now().UnixNano())

			out := frame
			if frame.Cols() != target.X || frame.Rows() != target.Y {
				gocv.Resize(frame, &resized, target, 0, 0, gocv.InterpolationLinear)
				out = resized
			}
			if onFrame != nil {
				onFrame(out)
			}
		}

		select {
		case <-stop:
			return
		case <-time.After(h.opts.FrameDelay):
		}
	}
}

// terminate beendet die Schleife nach einem Fehler und kehrt in den Leerlauf zurück,
// sofern die Schleife nicht bereits gestoppt wurde
func (h *Handler) terminate(done chan struct{}, err error) {
	log.WithFields(logFields).Errorf("Capture loop terminated: %v", err)

	h.mu.Lock()
	if h.done != done {
		h.mu.Unlock()
		return
	}
	close(h.stop)
	h.stop = nil
	h.done = nil
	src := h.src
	h.src = nil
	h.state = StateIdle
	fn := h.onTerminate
	h.mu.Unlock()

	if src != nil {
		if cerr := src.Close(); cerr != nil {
			log.WithFields(logFields).Warnf("Failed to close video source: %v", cerr)
		}
	}
	if fn != nil {
		fn(err)
	}
}
