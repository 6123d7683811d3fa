package pigo

import (
	"fmt"
	"image"
	"os"
	"sort"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	pigo "github.com/esimov/pigo/core"
)

const (
	shiftFactor      = 0.1
	scaleFactor      = 1.1
	iouThreshold     = 0.2
	qualityThreshold = 5.0
)

// Face ist ein Pigo-Treffer: Mittelpunkt, Durchmesser und Qualität
type Face struct {
	Row, Col, Scale int
	Q               float32
}

// Rect liefert den quadratischen Gesichtsrahmen
func (f Face) Rect() image.Rectangle {
	half := f.Scale / 2
	return image.Rect(f.Col-half, f.Row-half, f.Col+half, f.Row+half)
}

// finder kapselt die Facefinder-Kaskade
type finder struct {
	classifier *pigo.Pigo
	minSize    int
}

func newFinder(cfg config.DetectorsConfig) (*finder, error) {
	data, err := os.ReadFile(cfg.PigoCascade)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	minSize := cfg.MinFaceSize
	if minSize <= 0 {
		minSize = 30
	}
	return &finder{classifier: classifier, minSize: minSize}, nil
}

func imageParams(g emotion.Gray) pigo.ImageParams {
	return pigo.ImageParams{
		Pixels: g.Pix,
		Rows:   g.Height,
		Cols:   g.Width,
		Dim:    g.Width,
	}
}

// find sucht Gesichter, sortiert nach absteigender Qualität
func (f *finder) find(g emotion.Gray) []Face {
	maxSize := g.Width
	if g.Height < maxSize {
		maxSize = g.Height
	}
	if maxSize < f.minSize {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     f.minSize,
		MaxSize:     maxSize,
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: imageParams(g),
	}
	dets := f.classifier.RunCascade(params, 0.0)
	dets = f.classifier.ClusterDetections(dets, iouThreshold)

	faces := make([]Face, 0, len(dets))
	for _, d := range dets {
		if d.Q < qualityThreshold {
			continue
		}
		faces = append(faces, Face{Row: d.Row, Col: d.Col, Scale: d.Scale, Q: d.Q})
	}
	sortByQuality(faces)
	return faces
}

func sortByQuality(faces []Face) {
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Q > faces[j].Q })
}

// clip begrenzt die Treffer auf das Bild und verwirft leere Rahmen. faces[i]
// gehört zu boxes[i].
func clip(found []Face, g emotion.Gray) (faces []Face, boxes []emotion.FaceBox) {
	bounds := image.Rect(0, 0, g.Width, g.Height)
	faces = make([]Face, 0, len(found))
	boxes = make([]emotion.FaceBox, 0, len(found))
	for _, f := range found {
		r := f.Rect().Intersect(bounds)
		if r.Empty() {
			continue
		}
		faces = append(faces, f)
		boxes = append(boxes, emotion.FaceBoxFromRect(r))
	}
	return faces, boxes
}
