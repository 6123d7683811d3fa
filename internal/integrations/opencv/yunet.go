package opencv

import (
	"fmt"
	"image"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

// YuNetDetector findet Gesichter mit YuNet und klassifiziert über die fünf Gesichtspunkte.
// Fehlen die Punkte, wird die Kantenverteilung des Gesichts ausgewertet.
type YuNetDetector struct {
	fd     gocv.FaceDetectorYN
	size   image.Point
	loaded bool
}

// NewYuNetDetector lädt das YuNet-ONNX-Modell
func NewYuNetDetector(cfg config.DetectorsConfig) (*YuNetDetector, error) {
	if !fileExists(cfg.YuNetModel) {
		return nil, fmt.Errorf("YuNet model not found: %s", cfg.YuNetModel)
	}
	size := image.Pt(320, 320)
	return &YuNetDetector{
		fd:     gocv.NewFaceDetectorYN(cfg.YuNetModel, "", size),
		size:   size,
		loaded: true,
	}, nil
}

func (d *YuNetDetector) Name() string                   { return emotion.NameYuNetLandmarks }
func (d *YuNetDetector) IsAvailable() bool              { return d.loaded }
func (d *YuNetDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

// yunetFace ist eine Zeile der YuNet-Ausgabe
type yunetFace struct {
	rect   image.Rectangle
	points emotion.FivePoint
	ok     bool
}

// parseYuNetRow liest x, y, w, h, fünf Punktpaare und den Score.
// Reihenfolge der Punkte: rechtes Auge, linkes Auge, Nase, rechter und linker Mundwinkel.
func parseYuNetRow(v []float32) yunetFace {
	if len(v) < 4 {
		return yunetFace{}
	}
	f := yunetFace{rect: image.Rect(int(v[0]), int(v[1]), int(v[0]+v[2]), int(v[1]+v[3]))}
	if len(v) < 14 {
		return f
	}
	pt := func(i int) emotion.Point { return emotion.Point{X: float64(v[i]), Y: float64(v[i+1])} }
	f.points = emotion.FivePoint{
		RightEye:   pt(4),
		LeftEye:    pt(6),
		Nose:       pt(8),
		RightMouth: pt(10),
		LeftMouth:  pt(12),
	}
	f.ok = true
	return f
}

// Detect klassifiziert das erste gefundene Gesicht
func (d *YuNetDetector) Detect(frame gocv.Mat) emotion.Result {
	size := image.Pt(frame.Cols(), frame.Rows())
	if size != d.size {
		d.fd.SetInputSize(size)
		d.size = size
	}

	faces := gocv.NewMat()
	defer faces.Close()
	d.fd.Detect(frame, &faces)

	var parsed []yunetFace
	for i := 0; i < faces.Rows(); i++ {
		row := make([]float32, faces.Cols())
		for j := range row {
			row[j] = faces.GetFloatAt(i, j)
		}
		f := parseYuNetRow(row)
		f.rect = clampRect(f.rect, frame)
		if !f.rect.Empty() {
			parsed = append(parsed, f)
		}
	}
	if len(parsed) == 0 {
		return emotion.NoFaceFound()
	}

	rects := make([]image.Rectangle, len(parsed))
	for i, f := range parsed {
		rects[i] = f.rect
	}

	first := parsed[0]
	if first.ok {
		label, conf := emotion.LandmarkRatioEmotion(emotion.FivePointRatios(first.points))
		return emotion.Result{Emotion: label, Confidence: conf, Faces: faceBoxes(rects)}
	}

	gray := GrayMat(frame)
	defer gray.Close()
	face, ok := cropGray(gray, first.rect, image.Point{})
	defer face.Close()
	if !ok {
		return emotion.NoFaceFound()
	}
	label, conf := edgeEmotion(face)
	return emotion.Result{Emotion: label, Confidence: conf, Faces: faceBoxes(rects)}
}

// Close gibt den YuNet-Detektor frei
func (d *YuNetDetector) Close() error {
	if d.loaded {
		d.fd.Close()
		d.loaded = false
	}
	return nil
}
