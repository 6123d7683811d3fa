package dlib

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	face "github.com/Kagami/go-face"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Dateien, die go-face im Modellverzeichnis erwartet
var requiredModels = []string{
	"shape_predictor_5_face_landmarks.dat",
	"dlib_face_recognition_resnet_model_v1.dat",
	"mmod_human_face_detector.dat",
}

const hogFaceSize = 64

// Detector lokalisiert Gesichter mit dlib und klassifiziert über die Statistik
// der HOG-Merkmale des ersten Gesichts
type Detector struct {
	rec *face.Recognizer
}

// NewDetector lädt die dlib-Modelle aus cfg.DlibModelDir
func NewDetector(cfg config.DetectorsConfig) (*Detector, error) {
	if err := checkModels(cfg.DlibModelDir); err != nil {
		return nil, err
	}
	rec, err := face.NewRecognizer(cfg.DlibModelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dlib: %w", err)
	}
	log.Infof("dlib detector loaded from %s", cfg.DlibModelDir)
	return &Detector{rec: rec}, nil
}

func checkModels(dir string) error {
	for _, name := range requiredModels {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("dlib model not found: %s", path)
		}
	}
	return nil
}

func (d *Detector) Name() string                   { return emotion.NameDlibHOG }
func (d *Detector) IsAvailable() bool              { return d.rec != nil }
func (d *Detector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

// Detect sucht alle Gesichter und klassifiziert das erste
func (d *Detector) Detect(frame gocv.Mat) emotion.Result {
	data, err := opencv.EncodeJPEG(frame)
	if err != nil {
		log.Errorf("dlib: %v", err)
		return emotion.Failed()
	}

	faces, err := d.rec.Recognize(data)
	if err != nil {
		log.Errorf("dlib recognition failed: %v", err)
		return emotion.Failed()
	}
	if len(faces) == 0 {
		return emotion.NoFaceFound()
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	boxes := make([]emotion.FaceBox, 0, len(faces))
	for _, f := range faces {
		r := f.Rectangle.Intersect(bounds)
		if !r.Empty() {
			boxes = append(boxes, emotion.FaceBoxFromRect(r))
		}
	}
	if len(boxes) == 0 {
		return emotion.NoFaceFound()
	}

	g, ok := opencv.FaceGray(frame, boxes[0].Rect(), image.Pt(hogFaceSize, hogFaceSize))
	if !ok {
		return emotion.Result{Emotion: emotion.Neutral, Confidence: 0.5, Faces: boxes}
	}
	label, conf := emotion.FeatureStatsEmotion(emotion.VectorStats(emotion.HOGFeatures(g)))
	return emotion.Result{Emotion: label, Confidence: conf, Faces: boxes}
}

// Close gibt die dlib-Modelle frei
func (d *Detector) Close() error {
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}
