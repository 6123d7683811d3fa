package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/api/middleware"
	"emotion-cam-go/internal/capture"
	"emotion-cam-go/internal/core/processor"
	"emotion-cam-go/internal/db"
	"emotion-cam-go/internal/db/repository"
	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/recorder"
	"emotion-cam-go/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"
)

type sadDetector struct{ name string }

func (d sadDetector) Name() string                   { return d.name }
func (d sadDetector) IsAvailable() bool              { return true }
func (d sadDetector) Capability() emotion.Capability { return emotion.CapabilityBoundingBox }
func (d sadDetector) Close() error                   { return nil }
func (d sadDetector) Detect(gocv.Mat) emotion.Result {
	return emotion.Result{
		Emotion:    emotion.Sad,
		Confidence: 0.7,
		Faces:      []emotion.FaceBox{{X1: 5, Y1: 5, X2: 30, Y2: 30}},
	}
}

type blankSource struct{}

func (blankSource) Read(m *gocv.Mat) bool {
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.CopyTo(m)
	return true
}

func (blankSource) Close() error { return nil }

type nopSink struct{}

func (nopSink) Write(gocv.Mat) error { return nil }
func (nopSink) Close() error         { return nil }

type apiFixture struct {
	router *gin.Engine
	repo   *repository.SQLiteRepository
	ctrl   *processor.Controller
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo := repository.NewSQLiteRepository(conn)

	manager := detector.NewManager(sadDetector{"Sad A"}, sadDetector{"Sad B"})
	logger := session.NewLogger(filepath.Join(dir, "output"), repo)
	rec := recorder.New(func(string, string, float64, image.Point) (recorder.Sink, error) {
		return nopSink{}, nil
	})
	pipeline := processor.NewPipeline(manager, processor.PipelineOptions{
		Session:   logger,
		Recorder:  rec,
		Snapshots: opencv.NewSnapshotBuffer(5),
	})
	h := capture.NewHandler(capture.Options{
		Width:       160,
		Height:      120,
		FrameDelay:  time.Millisecond,
		JoinTimeout: time.Second,
	}, func(capture.Source) (capture.FrameSource, error) {
		return blankSource{}, nil
	})
	ctrl := processor.NewController(h, pipeline, rec, logger, nil, processor.ControllerOptions{
		RecordingDir:  filepath.Join(dir, "recordings"),
		RetryAttempts: 1,
	})
	t.Cleanup(ctrl.Shutdown)

	pool := processor.NewWorkerPool(processor.NewImageAnalyzer(manager), 2)
	t.Cleanup(pool.Shutdown)

	tr, err := middleware.NewTranslator("en")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Camera.Source = "0"

	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.Use(middleware.I18n(tr))
	api := r.Group("/api")
	NewAPIHandler(cfg, ctrl, pipeline, pool).RegisterRoutes(api)
	NewSessionHandler(repo).RegisterRoutes(api)
	NewSystemHandler(pool, pipeline).RegisterRoutes(api)

	return &apiFixture{router: r, repo: repo, ctrl: ctrl}
}

func (f *apiFixture) do(method, url string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return m
}

func TestListDetectors(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/api/detectors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	m := decode(t, w)
	if m["default"] != "Sad A" || m["selected"] != "Sad A" {
		t.Errorf("default/selected = %v/%v", m["default"], m["selected"])
	}
	if list := m["detectors"].([]interface{}); len(list) != 2 {
		t.Errorf("detectors = %v", list)
	}
}

func TestRecordingRequiresStream(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/recording/start", nil)
	req.Header.Set("Accept-Language", "de")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if m := decode(t, w); m["error"] == "error.not_streaming" || m["error"] == "" {
		t.Errorf("error message not translated: %v", m["error"])
	}
}

func TestSetDetectorUnknown(t *testing.T) {
	f := newAPIFixture(t)
	if w := f.do(http.MethodPut, "/api/stream/detector", map[string]string{"detector": "nope"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown detector status = %d", w.Code)
	}
	if w := f.do(http.MethodPut, "/api/stream/detector", map[string]string{"detector": "Sad B"}); w.Code != http.StatusOK {
		t.Errorf("known detector status = %d", w.Code)
	}
	if m := decode(t, f.do(http.MethodGet, "/api/detectors", nil)); m["selected"] != "Sad B" {
		t.Errorf("selected = %v", m["selected"])
	}
}

func TestStreamRecordingRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(http.MethodPost, "/api/stream/start", map[string]string{"detector": "Sad B"}); w.Code != http.StatusOK {
		t.Fatalf("start stream = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, "/api/stream/start", nil); w.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", w.Code)
	}

	w := f.do(http.MethodPost, "/api/recording/start", map[string]string{"filename": "clip"})
	if w.Code != http.StatusOK {
		t.Fatalf("start recording = %d %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	for f.ctrl.Status().Session.RecordsCount < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	status := decode(t, f.do(http.MethodGet, "/api/status", nil))
	if status["state"] != "recording" {
		t.Errorf("state = %v", status["state"])
	}
	if status["emotion_label"] != "Sad" {
		t.Errorf("emotion_label = %v", status["emotion_label"])
	}

	w = f.do(http.MethodPost, "/api/recording/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop recording = %d %s", w.Code, w.Body.String())
	}
	report := decode(t, w)["report"].(map[string]interface{})
	if report["session_name"] != "clip" {
		t.Errorf("session_name = %v", report["session_name"])
	}

	if w := f.do(http.MethodPost, "/api/recording/stop", nil); w.Code != http.StatusConflict {
		t.Errorf("second stop = %d, want 409", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/recording/last", nil); w.Code != http.StatusOK {
		t.Errorf("last recording = %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/stream/stop", nil); w.Code != http.StatusOK {
		t.Errorf("stop stream = %d", w.Code)
	}

	list := decode(t, f.do(http.MethodGet, "/api/sessions", nil))
	if list["total"].(float64) != 1 {
		t.Fatalf("sessions = %v", list)
	}
	id := list["sessions"].([]interface{})[0].(map[string]interface{})["id"].(string)

	detail := decode(t, f.do(http.MethodGet, "/api/sessions/"+id+"?records=true", nil))
	if recs, _ := detail["records"].([]interface{}); len(recs) < 3 {
		t.Errorf("records = %d, want >= 3", len(recs))
	}

	stats := decode(t, f.do(http.MethodGet, "/api/statistics", nil))
	if stats["total_sessions"].(float64) != 1 {
		t.Errorf("statistics = %v", stats)
	}

	if w := f.do(http.MethodDelete, "/api/sessions/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted session = %d, want 404", w.Code)
	}
}

func multipartImage(t *testing.T, detectorName string) (*bytes.Buffer, string) {
	t.Helper()
	img := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	data, err := opencv.EncodeJPEG(img)
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "face.jpg")
	fw.Write(data)
	if detectorName != "" {
		mw.WriteField("detector", detectorName)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestAnalyzeImage(t *testing.T) {
	f := newAPIFixture(t)

	body, ct := multipartImage(t, "Sad B")
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	analysis := m["analysis"].(map[string]interface{})
	if analysis["detector"] != "Sad B" || analysis["width"].(float64) != 64 {
		t.Errorf("analysis = %v", analysis)
	}
	if m["emotion_label"] != "Sad" {
		t.Errorf("emotion_label = %v", m["emotion_label"])
	}

	body, ct = multipartImage(t, "")
	req = httptest.NewRequest(http.MethodPost, "/api/analyze?format=jpeg", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" || w.Body.Len() == 0 {
		t.Errorf("jpeg response = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestAnalyzeImageErrors(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(http.MethodPost, "/api/analyze", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d", w.Code)
	}

	body, ct := multipartImage(t, "nope")
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown detector = %d", w.Code)
	}
}

func TestSystemEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	m := decode(t, f.do(http.MethodGet, "/api/system/stats", nil))
	stats := m["stats"].(map[string]interface{})
	if stats["worker_count"].(float64) != 2 {
		t.Errorf("worker_count = %v", stats["worker_count"])
	}

	w := f.do(http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || decode(t, w)["detectors_available"].(float64) != 2 {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newAPIFixture(t)
	if w := f.do(http.MethodGet, "/api/sessions/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if w := f.do(http.MethodDelete, "/api/sessions/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete status = %d", w.Code)
	}
}
