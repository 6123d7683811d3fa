package processor

import (
	"encoding/json"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	"gocv.io/x/gocv"
)

type stubDetector struct {
	name   string
	result emotion.Result
	mu     sync.Mutex
	calls  int
}

func (d *stubDetector) Name() string                   { return d.name }
func (d *stubDetector) IsAvailable() bool              { return true }
func (d *stubDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }
func (d *stubDetector) Close() error                   { return nil }

func (d *stubDetector) Detect(gocv.Mat) emotion.Result {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.result
}

func happyDetector(name string) *stubDetector {
	return &stubDetector{name: name, result: emotion.Result{
		Emotion:    emotion.Happy,
		Confidence: 0.9,
		Faces:      []emotion.FaceBox{{X1: 10, Y1: 10, X2: 40, Y2: 40}},
	}}
}

type logCall struct {
	emotion    string
	confidence float64
	detector   string
	faces      int
}

type fakeSession struct {
	active bool
	calls  []logCall
}

func (s *fakeSession) IsActive() bool { return s.active }
func (s *fakeSession) Log(emotion string, confidence float64, detector string, faceCount int) {
	s.calls = append(s.calls, logCall{emotion, confidence, detector, faceCount})
}

type fakeFrameSink struct {
	recording bool
	sizes     []image.Point
}

func (r *fakeFrameSink) IsRecording() bool { return r.recording }
func (r *fakeFrameSink) WriteFrame(frame gocv.Mat) {
	r.sizes = append(r.sizes, image.Pt(frame.Cols(), frame.Rows()))
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
}

func (b *fakeBroadcaster) Broadcast(message []byte) {
	b.mu.Lock()
	b.messages = append(b.messages, message)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type fakeResultPublisher struct {
	published int
	resets    int
}

func (p *fakeResultPublisher) PublishResult(string, emotion.Result, time.Time) bool {
	p.published++
	return true
}

func (p *fakeResultPublisher) Reset() { p.resets++ }

func blankFrame(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	t.Cleanup(func() { m.Close() })
	return m
}

func TestProcessFrameFanOut(t *testing.T) {
	sess := &fakeSession{active: true}
	rec := &fakeFrameSink{recording: true}
	pub := &fakeResultPublisher{}
	events := &fakeBroadcaster{}
	snaps := opencv.NewSnapshotBuffer(5)

	p := NewPipeline(detector.NewManager(happyDetector("A")), PipelineOptions{
		Session:       sess,
		Recorder:      rec,
		Snapshots:     snaps,
		Publisher:     pub,
		SnapshotEvery: 1,
	})
	p.AddBroadcaster(events)

	frame := blankFrame(t)
	res := p.ProcessFrame(frame)

	if res.Emotion != emotion.Happy || res.FaceCount() != 1 {
		t.Fatalf("ProcessFrame() = %+v", res)
	}
	if len(sess.calls) != 1 || sess.calls[0] != (logCall{"happy", 0.9, "A", 1}) {
		t.Errorf("session calls = %+v", sess.calls)
	}
	if len(rec.sizes) != 1 || rec.sizes[0] != image.Pt(64, 48) {
		t.Errorf("recorded frames = %v", rec.sizes)
	}
	if pub.published != 1 {
		t.Errorf("published = %d, want 1", pub.published)
	}
	if snaps.Len() != 1 {
		t.Errorf("snapshots = %d, want 1", snaps.Len())
	}

	if events.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", events.count())
	}
	var ev DetectionEvent
	if err := json.Unmarshal(events.messages[0], &ev); err != nil {
		t.Fatalf("event is not JSON: %v", err)
	}
	if ev.Type != EventDetection || ev.Detector != "A" || ev.Emotion != emotion.Happy || ev.Frame != 1 {
		t.Errorf("event = %+v", ev)
	}
	if !ev.Recording || !ev.Logging || ev.SnapshotID == "" {
		t.Errorf("event flags = recording %v logging %v snapshot %q", ev.Recording, ev.Logging, ev.SnapshotID)
	}

	last, ok := p.LastEvent()
	if !ok || last.Frame != 1 {
		t.Errorf("LastEvent() = %+v, %v", last, ok)
	}
}

func TestProcessFrameInactiveSinks(t *testing.T) {
	sess := &fakeSession{}
	rec := &fakeFrameSink{}
	p := NewPipeline(detector.NewManager(happyDetector("A")), PipelineOptions{Session: sess, Recorder: rec})

	p.ProcessFrame(blankFrame(t))

	if len(sess.calls) != 0 {
		t.Errorf("inactive session must not be logged: %+v", sess.calls)
	}
	if len(rec.sizes) != 0 {
		t.Errorf("idle recorder must not receive frames: %v", rec.sizes)
	}
}

func TestProcessFrameKeepsInputUntouched(t *testing.T) {
	p := NewPipeline(detector.NewManager(happyDetector("A")), PipelineOptions{Recorder: &fakeFrameSink{recording: true}})
	frame := blankFrame(t)

	p.ProcessFrame(frame)

	if sum := frame.Sum(); sum.Val1 != 0 || sum.Val2 != 0 || sum.Val3 != 0 {
		t.Errorf("input frame was modified, sum = %+v", sum)
	}
}

func TestProcessFrameLogsSentinels(t *testing.T) {
	noFace := &stubDetector{name: "A", result: emotion.NoFaceFound()}
	sess := &fakeSession{active: true}
	p := NewPipeline(detector.NewManager(noFace), PipelineOptions{Session: sess})

	p.ProcessFrame(blankFrame(t))

	if len(sess.calls) != 1 || sess.calls[0].emotion != "no_face" || sess.calls[0].faces != 0 {
		t.Errorf("session calls = %+v", sess.calls)
	}
}

func TestSnapshotEvery(t *testing.T) {
	snaps := opencv.NewSnapshotBuffer(10)
	p := NewPipeline(detector.NewManager(happyDetector("A")), PipelineOptions{Snapshots: snaps, SnapshotEvery: 3})

	frame := blankFrame(t)
	for i := 0; i < 7; i++ {
		p.ProcessFrame(frame)
	}

	// Bilder 1, 4 und 7
	if snaps.Len() != 3 {
		t.Errorf("snapshots = %d, want 3", snaps.Len())
	}
	if p.FrameCount() != 7 {
		t.Errorf("FrameCount() = %d, want 7", p.FrameCount())
	}
}

func TestSetDetector(t *testing.T) {
	a, b := happyDetector("A"), happyDetector("B")
	p := NewPipeline(detector.NewManager(a, b), PipelineOptions{})

	if p.Detector() != "A" {
		t.Fatalf("default detector = %q, want A", p.Detector())
	}
	if err := p.SetDetector("missing"); !errors.Is(err, ErrUnknownDetector) {
		t.Errorf("SetDetector(missing) = %v, want ErrUnknownDetector", err)
	}
	if p.Detector() != "A" {
		t.Errorf("failed switch changed detector to %q", p.Detector())
	}

	if err := p.SetDetector("B"); err != nil {
		t.Fatalf("SetDetector(B) = %v", err)
	}
	p.ProcessFrame(blankFrame(t))
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("calls A=%d B=%d, want 0/1", a.calls, b.calls)
	}
}

func TestPipelineReset(t *testing.T) {
	pub := &fakeResultPublisher{}
	p := NewPipeline(detector.NewManager(happyDetector("A")), PipelineOptions{Publisher: pub})
	p.ProcessFrame(blankFrame(t))

	p.Reset()

	if p.FrameCount() != 0 {
		t.Errorf("FrameCount() after Reset = %d", p.FrameCount())
	}
	if _, ok := p.LastEvent(); ok {
		t.Error("LastEvent() must be empty after Reset")
	}
	if pub.resets != 1 {
		t.Errorf("publisher resets = %d, want 1", pub.resets)
	}
}

func TestNotify(t *testing.T) {
	events := &fakeBroadcaster{}
	p := NewPipeline(detector.NewManager(), PipelineOptions{})
	p.AddBroadcaster(events)
	p.AddBroadcaster(nil)

	p.Notify(EventStream, "started", "camera 0", nil)

	if events.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", events.count())
	}
	var ev StateEvent
	if err := json.Unmarshal(events.messages[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventStream || ev.State != "started" || ev.Message != "camera 0" {
		t.Errorf("event = %+v", ev)
	}
}
