package opencv

import (
	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

// BasicDetector findet nur Gesichter und klassifiziert keine Emotion
type BasicDetector struct {
	haar *HaarLocator
}

// NewBasicDetector erstellt den Haar-Kaskaden-Detektor
func NewBasicDetector(cfg config.DetectorsConfig) (*BasicDetector, error) {
	haar, err := NewHaarLocator(cfg)
	if err != nil {
		return nil, err
	}
	return &BasicDetector{haar: haar}, nil
}

func (d *BasicDetector) Name() string                   { return emotion.NameOpenCVBasic }
func (d *BasicDetector) IsAvailable() bool              { return d.haar != nil }
func (d *BasicDetector) Capability() emotion.Capability { return emotion.CapabilityBoundingBox }

// Detect liefert face_detected mit Konfidenz 1.0, wenn mindestens ein Gesicht gefunden wurde
func (d *BasicDetector) Detect(frame gocv.Mat) emotion.Result {
	gray := GrayMat(frame)
	defer gray.Close()

	rects := d.haar.Locate(gray)
	if len(rects) == 0 {
		return emotion.NoFaceFound()
	}
	return emotion.Result{Emotion: emotion.FaceDetected, Confidence: 1.0, Faces: faceBoxes(rects)}
}

// Close gibt die Kaskade frei
func (d *BasicDetector) Close() error {
	if d.haar == nil {
		return nil
	}
	err := d.haar.Close()
	d.haar = nil
	return err
}
