package opencv

import (
	"fmt"
	"image"

	"emotion-cam-go/config"

	"gocv.io/x/gocv"
)

// HaarLocator findet Gesichter mit einer Haar-Kaskade
type HaarLocator struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
}

// NewHaarLocator lädt die Kaskade aus cfg.HaarCascade
func NewHaarLocator(cfg config.DetectorsConfig) (*HaarLocator, error) {
	if !fileExists(cfg.HaarCascade) {
		return nil, fmt.Errorf("haar cascade not found: %s", cfg.HaarCascade)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.HaarCascade) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load haar cascade: %s", cfg.HaarCascade)
	}

	scale := cfg.ScaleFactor
	if scale <= 1 {
		scale = 1.1
	}
	neighbors := cfg.MinNeighbors
	if neighbors <= 0 {
		neighbors = 4
	}
	minFace := cfg.MinFaceSize
	if minFace <= 0 {
		minFace = 30
	}

	return &HaarLocator{
		classifier:   classifier,
		scaleFactor:  scale,
		minNeighbors: neighbors,
		minSize:      image.Pt(minFace, minFace),
	}, nil
}

// Locate gibt die Gesichter eines Graustufenbilds zurück
func (h *HaarLocator) Locate(gray gocv.Mat) []image.Rectangle {
	return h.classifier.DetectMultiScaleWithParams(gray, h.scaleFactor, h.minNeighbors, 0, h.minSize, image.Point{})
}

// Close gibt die Kaskade frei
func (h *HaarLocator) Close() error {
	return h.classifier.Close()
}
