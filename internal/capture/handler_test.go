package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// scriptedSource liefert Bilder nach einem Skript: true = Bild, false = Lesefehler.
// Nach dem Ende des Skripts wird der letzte Eintrag wiederholt.
type scriptedSource struct {
	mu     sync.Mutex
	script []bool
	reads  int
	closed bool
	width  int
	height int
}

func (s *scriptedSource) Read(m *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.reads
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.reads++
	if !s.script[i] {
		return false
	}
	img := gocv.NewMatWithSize(s.height, s.width, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.CopyTo(m)
	return true
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func newScripted(script ...bool) *scriptedSource {
	return &scriptedSource{script: script, width: 320, height: 240}
}

func testHandler(src *scriptedSource) *Handler {
	return NewHandler(Options{
		Width:       640,
		Height:      480,
		FrameDelay:  time.Millisecond,
		JoinTimeout: 200 * time.Millisecond,
	}, func(Source) (FrameSource, error) {
		return src, nil
	})
}

func TestStopWithoutStreamIsNoop(t *testing.T) {
	h := testHandler(newScripted(true))
	h.StopStreaming()
	h.StopCamera()
	h.StopCamera()
	if h.State() != StateIdle {
		t.Errorf("State() = %s, want idle", h.State())
	}
}

func TestStartStreamingRequiresOpenedSource(t *testing.T) {
	h := testHandler(newScripted(true))
	if err := h.StartStreaming(nil); !errors.Is(err, ErrNotOpened) {
		t.Errorf("StartStreaming() error = %v, want ErrNotOpened", err)
	}
}

func TestStartCameraProbeFailure(t *testing.T) {
	src := newScripted(false)
	h := testHandler(src)

	if err := h.StartCamera("0"); err == nil {
		t.Fatal("expected probe failure")
	}
	if h.State() != StateIdle || !src.isClosed() {
		t.Errorf("state = %s, closed = %v", h.State(), src.isClosed())
	}
}

func TestStartCameraOpenerError(t *testing.T) {
	h := NewHandler(Options{}, func(Source) (FrameSource, error) {
		return nil, errors.New("device busy")
	})
	err := h.OpenWithRetry(context.Background(), "1", 3, time.Millisecond)
	if !errors.Is(err, ErrOpenFailed) || h.State() != StateIdle {
		t.Errorf("OpenWithRetry() = %v, state %s", err, h.State())
	}
}

func TestStreamingDeliversResizedFrames(t *testing.T) {
	src := newScripted(true)
	h := testHandler(src)
	if err := h.StartCamera("0"); err != nil {
		t.Fatal(err)
	}

	sizes := make(chan [2]int, 100)
	err := h.StartStreaming(func(frame gocv.Mat) {
		select {
		case sizes <- [2]int{frame.Cols(), frame.Rows()}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.StartStreaming(nil); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("second StartStreaming() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case got := <-sizes:
			if got != [2]int{640, 480} {
				t.Fatalf("frame size = %v, want 640x480", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	h.StopStreaming()
	if h.State() != StateOpened {
		t.Errorf("after StopStreaming state = %s, want opened", h.State())
	}
	if h.Stats().FramesRead < 3 {
		t.Errorf("FramesRead = %d", h.Stats().FramesRead)
	}

	h.StopCamera()
	if h.State() != StateIdle || !src.isClosed() {
		t.Errorf("after StopCamera state = %s, closed = %v", h.State(), src.isClosed())
	}
}

func TestReadFailuresTerminateLoop(t *testing.T) {
	// Probe gelingt, danach schlägt jedes Lesen fehl
	src := newScripted(true, false)
	h := testHandler(src)

	terminated := make(chan error, 1)
	h.SetTerminateHandler(func(err error) { terminated <- err })

	if err := h.StartCamera("0"); err != nil {
		t.Fatal(err)
	}
	if err := h.StartStreaming(nil); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-terminated:
		if !errors.Is(err, ErrTooManyReadErrors) {
			t.Errorf("terminate error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate")
	}

	if h.State() != StateIdle || !src.isClosed() {
		t.Errorf("state = %s, closed = %v", h.State(), src.isClosed())
	}
	if got := src.readCount() - 1; got != 5 {
		t.Errorf("failed reads before termination = %d, want 5", got)
	}
	h.StopStreaming()
	h.StopCamera()
}

func TestErrorCounterResetsAfterWindow(t *testing.T) {
	script := []bool{true}
	for i := 0; i < 12; i++ {
		script = append(script, false)
	}
	script = append(script, true)
	src := newScripted(script...)
	h := testHandler(src)

	// Jeder Fehler liegt zwei Sekunden nach dem vorherigen
	var clockMu sync.Mutex
	now := time.Unix(1700000000, 0)
	h.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(2 * time.Second)
		return now
	}

	terminated := make(chan error, 1)
	h.SetTerminateHandler(func(err error) { terminated <- err })
	frames := make(chan struct{}, 10)

	if err := h.StartCamera("0"); err != nil {
		t.Fatal(err)
	}
	if err := h.StartStreaming(func(gocv.Mat) {
		select {
		case frames <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	defer h.StopCamera()

	select {
	case <-frames:
	case err := <-terminated:
		t.Fatalf("loop terminated although failures were spread out: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frames after failures")
	}
	if h.Stats().ReadErrors != 12 {
		t.Errorf("ReadErrors = %d, want 12", h.Stats().ReadErrors)
	}
}

func TestSuccessfulReadResetsErrorCounter(t *testing.T) {
	// je vier Fehler, unterbrochen von gültigen Bildern, alles innerhalb des Fensters
	script := []bool{true}
	for i := 0; i < 3; i++ {
		script = append(script, false, false, false, false, true)
	}
	src := newScripted(script...)
	h := testHandler(src)
	fixed := time.Unix(1700000000, 0)
	h.now = func() time.Time { return fixed }

	terminated := make(chan error, 1)
	h.SetTerminateHandler(func(err error) { terminated <- err })

	if err := h.StartCamera("0"); err != nil {
		t.Fatal(err)
	}
	if err := h.StartStreaming(nil); err != nil {
		t.Fatal(err)
	}
	defer h.StopCamera()

	deadline := time.After(2 * time.Second)
	for src.readCount() < len(script)+2 {
		select {
		case err := <-terminated:
			t.Fatalf("loop terminated although failures were not consecutive: %v", err)
		case <-deadline:
			t.Fatal("timed out waiting for reads")
		case <-time.After(time.Millisecond):
		}
	}
	if h.State() != StateStreaming {
		t.Errorf("State() = %s, want streaming", h.State())
	}
	if h.Stats().ReadErrors != 12 {
		t.Errorf("ReadErrors = %d, want 12", h.Stats().ReadErrors)
	}
}

func TestStopStreamingJoinTimeout(t *testing.T) {
	src := newScripted(true)
	h := testHandler(src)
	h.opts.JoinTimeout = 20 * time.Millisecond

	if err := h.StartCamera("0"); err != nil {
		t.Fatal(err)
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	if err := h.StartStreaming(func(gocv.Mat) {
		once.Do(func() { close(entered) })
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-entered

	start := time.Now()
	h.StopStreaming()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("StopStreaming blocked for %s", elapsed)
	}

	h.StopCamera()
	if src.isClosed() {
		t.Fatal("source must not be closed while the loop is still reading")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for !src.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("source was not released after the loop exited")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
