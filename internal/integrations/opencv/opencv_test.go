package opencv

import (
	"encoding/json"
	"image"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"
)

func TestSoftmax(t *testing.T) {
	probs := softmax([]float64{1, 2, 3})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("softmax sum = %v", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax must keep the order, got %v", probs)
	}
	if softmax(nil) != nil {
		t.Error("softmax(nil) should be nil")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		want     emotion.Label
		wantConf float64
		ok       bool
	}{
		{"probabilities are used as is", []float64{0.1, 0.1, 0.1, 0.6, 0.05, 0.05, 0}, emotion.Happy, 0.6, true},
		{"logits are normalized", []float64{0, 0, 0, 0, 0, 0, 10}, emotion.Neutral, 0, true},
		{"empty output", nil, "", 0, false},
		{"too many scores", make([]float64, 9), "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf, ok := classify(tt.scores, cnnLabels)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("classify = %s %v %v, want %s %v", got, conf, ok, tt.want, tt.ok)
			}
			if tt.wantConf > 0 && math.Abs(conf-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", conf, tt.wantConf)
			}
			if ok && (conf <= 0 || conf > 1) {
				t.Errorf("confidence out of range: %v", conf)
			}
		})
	}
}

func TestFERLabelsMapToVocabulary(t *testing.T) {
	for i, l := range ferLabels {
		if !l.IsEmotion() {
			t.Errorf("label %d (%s) not in vocabulary", i, l)
		}
	}
	if ferLabels[1] != emotion.Happy || ferLabels[7] != emotion.Disgust {
		t.Errorf("unexpected FER+ mapping: %v", ferLabels)
	}
}

func TestParseYuNetRow(t *testing.T) {
	row := []float32{10, 20, 100, 120, 70, 60, 40, 60, 55, 80, 75, 110, 35, 110, 0.95}
	f := parseYuNetRow(row)
	if f.rect != image.Rect(10, 20, 110, 140) {
		t.Errorf("rect = %v", f.rect)
	}
	if !f.ok {
		t.Fatal("landmarks should be parsed")
	}
	if f.points.RightEye.X != 70 || f.points.LeftEye.X != 40 || f.points.LeftMouth.X != 35 {
		t.Errorf("points = %+v", f.points)
	}

	short := parseYuNetRow(row[:4])
	if short.ok || short.rect.Empty() {
		t.Errorf("box-only row should keep the rect without landmarks: %+v", short)
	}
}

func TestConstructorsFailWithoutModels(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	cfg := config.DetectorsConfig{
		HaarCascade:   missing,
		FaceNetModel:  missing,
		FaceNetConfig: missing,
		FERModel:      missing,
		YuNetModel:    missing,
	}

	if _, err := NewBasicDetector(cfg); err == nil {
		t.Error("basic detector without cascade should fail")
	}
	if _, err := NewSimpleCNNDetector(cfg); err == nil {
		t.Error("simple CNN without cascade should fail")
	}
	if _, err := NewFERDetector(cfg); err == nil {
		t.Error("FER without models should fail")
	}
	if _, err := NewYuNetDetector(cfg); err == nil {
		t.Error("YuNet without model should fail")
	}

	svc := NewService(cfg, 5)
	for _, d := range []interface {
		IsAvailable() bool
		Name() string
	}{svc.FER(), svc.YuNet(), svc.SimpleCNN(), svc.Basic()} {
		if d.IsAvailable() {
			t.Errorf("%s should be unavailable", d.Name())
		}
	}
}

func TestGPUBackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DetectorsConfig
		backend gocv.NetBackendType
		target  gocv.NetTargetType
	}{
		{"cpu default", config.DetectorsConfig{}, gocv.NetBackendDefault, gocv.NetTargetCPU},
		{"explicit cuda", config.DetectorsConfig{Backend: BackendCUDA, Target: TargetCUDA}, gocv.NetBackendCUDA, gocv.NetTargetCUDA},
		{"explicit opencl", config.DetectorsConfig{Backend: BackendOpenCL, Target: TargetOpenCL}, gocv.NetBackendOpenCV, gocv.NetTargetFP32},
		{"unknown target", config.DetectorsConfig{Backend: BackendCUDA, Target: "tpu"}, gocv.NetBackendCUDA, gocv.NetTargetCPU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, tg := getGPUBackend(tt.cfg)
			if b != tt.backend || tg != tt.target {
				t.Errorf("getGPUBackend = %v/%v, want %v/%v", b, tg, tt.backend, tt.target)
			}
		})
	}
}

func TestAnnotateAndEncode(t *testing.T) {
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()

	res := emotion.Result{Emotion: emotion.Happy, Confidence: 0.8, Faces: []emotion.FaceBox{{X1: 20, Y1: 30, X2: 80, Y2: 100}}}
	Annotate(&img, res)

	// Rahmen ist grün (BGR)
	px := img.GetVecbAt(30, 50)
	if px[1] != 255 || px[0] != 0 || px[2] != 0 {
		t.Errorf("box pixel = %v, want green", px)
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	decoded, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 160 || decoded.Rows() != 120 {
		t.Errorf("decoded size = %dx%d", decoded.Cols(), decoded.Rows())
	}

	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("decoding garbage should fail")
	}
}

func TestSnapshotBufferEviction(t *testing.T) {
	buf := NewSnapshotBuffer(2)
	for _, id := range []string{"a", "b", "c"} {
		buf.Add(&Snapshot{ID: id, Emotion: emotion.Neutral})
	}

	if buf.Len() != 2 {
		t.Fatalf("Len = %d, want 2", buf.Len())
	}
	if buf.Get("a") != nil {
		t.Error("oldest snapshot should be evicted")
	}
	latest := buf.Latest(1)
	if len(latest) != 1 || latest[0].ID != "c" {
		t.Errorf("Latest(1) = %v", latest)
	}

	buf.Add(&Snapshot{ID: "b", Emotion: emotion.Sad})
	if buf.Len() != 2 || buf.Get("b").Emotion != emotion.Sad {
		t.Error("re-adding an ID should replace in place")
	}
	if all := buf.Latest(0); len(all) != 2 || all[0].ID != "b" {
		t.Errorf("Latest(0) = %v", all)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := NewSnapshotBuffer(5)
	router := gin.New()
	buf.RegisterRoutes(router.Group("/api"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots/latest", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("empty buffer latest = %d, want 404", w.Code)
	}

	buf.Add(&Snapshot{ID: "x1", Emotion: emotion.Happy, Confidence: 0.7, ImageData: []byte{0xff, 0xd8}})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots?count=abc", nil))
	var body struct {
		Count  int `json:"count"`
		Images []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 1 || body.Images[0].URL != "/api/snapshots/x1" {
		t.Errorf("unexpected list: %+v", body)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots/x1", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("image = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}
