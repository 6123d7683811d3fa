package pigo

import (
	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	"gocv.io/x/gocv"
)

// HeuristicsDetector findet Gesichter mit Pigo und klassifiziert über die
// Helligkeit der Gesichtsdrittel
type HeuristicsDetector struct {
	finder *finder
}

// NewHeuristicsDetector lädt die Facefinder-Kaskade
func NewHeuristicsDetector(cfg config.DetectorsConfig) (*HeuristicsDetector, error) {
	f, err := newFinder(cfg)
	if err != nil {
		return nil, err
	}
	return &HeuristicsDetector{finder: f}, nil
}

func (d *HeuristicsDetector) Name() string                   { return emotion.NamePigoHeuristics }
func (d *HeuristicsDetector) IsAvailable() bool              { return d.finder != nil }
func (d *HeuristicsDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

func (d *HeuristicsDetector) Detect(frame gocv.Mat) emotion.Result {
	gray := opencv.GrayMat(frame)
	defer gray.Close()
	return d.detectGray(gray)
}

func (d *HeuristicsDetector) detectGray(gray gocv.Mat) emotion.Result {
	g := opencv.GrayPixels(gray)
	_, fb := clip(d.finder.find(g), g)
	if len(fb) == 0 {
		return emotion.NoFaceFound()
	}

	s := opencv.FaceThirds(gray, fb[0].Rect())
	label, conf := emotion.BrightnessEmotion(s.UpperMean, s.MiddleMean, s.LowerMean)
	return emotion.Result{Emotion: label, Confidence: conf, Faces: fb}
}

func (d *HeuristicsDetector) Close() error {
	d.finder = nil
	return nil
}
