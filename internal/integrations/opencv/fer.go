package opencv

import (
	"fmt"
	"image"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Ausgabereihenfolge des FER+-Netzes
var ferLabels = []emotion.Label{
	emotion.ParseLabel("neutral"),
	emotion.ParseLabel("happiness"),
	emotion.ParseLabel("surprise"),
	emotion.ParseLabel("sadness"),
	emotion.ParseLabel("anger"),
	emotion.ParseLabel("disgust"),
	emotion.ParseLabel("fear"),
	emotion.ParseLabel("contempt"),
}

const (
	ssdInputSize = 300
	ferInputSize = 64
)

// FERDetector findet Gesichter mit dem SSD-ResNet-Netz und klassifiziert sie mit FER+
type FERDetector struct {
	faceNet   gocv.Net
	ferNet    gocv.Net
	threshold float32
	loaded    bool
}

// NewFERDetector lädt beide Netze. Fehlt eines, ist der Detektor nicht verwendbar.
func NewFERDetector(cfg config.DetectorsConfig) (*FERDetector, error) {
	if !fileExists(cfg.FaceNetModel) || !fileExists(cfg.FaceNetConfig) {
		return nil, fmt.Errorf("face net not found: %s / %s", cfg.FaceNetModel, cfg.FaceNetConfig)
	}
	if !fileExists(cfg.FERModel) {
		return nil, fmt.Errorf("FER+ model not found: %s", cfg.FERModel)
	}

	faceNet := gocv.ReadNet(cfg.FaceNetModel, cfg.FaceNetConfig)
	if faceNet.Empty() {
		return nil, fmt.Errorf("failed to load face net: %s", cfg.FaceNetModel)
	}
	ferNet := gocv.ReadNetFromONNX(cfg.FERModel)
	if ferNet.Empty() {
		faceNet.Close()
		return nil, fmt.Errorf("failed to load FER+ model: %s", cfg.FERModel)
	}

	applyBackend(&faceNet, cfg)
	applyBackend(&ferNet, cfg)

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	log.Infof("FER detector loaded (%s, %s)", cfg.FaceNetModel, cfg.FERModel)

	return &FERDetector{faceNet: faceNet, ferNet: ferNet, threshold: float32(threshold), loaded: true}, nil
}

func (d *FERDetector) Name() string                   { return emotion.NameFER }
func (d *FERDetector) IsAvailable() bool              { return d.loaded }
func (d *FERDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

// Detect liefert die dominante Emotion des ersten Gesichts und alle Gesichtsrahmen
func (d *FERDetector) Detect(frame gocv.Mat) emotion.Result {
	rects := d.locate(frame)
	if len(rects) == 0 {
		return emotion.NoFaceFound()
	}

	gray := GrayMat(frame)
	defer gray.Close()

	face, ok := cropGray(gray, rects[0], image.Pt(ferInputSize, ferInputSize))
	defer face.Close()
	if !ok {
		return emotion.NoFaceFound()
	}

	blob := gocv.BlobFromImage(face, 1.0, image.Pt(ferInputSize, ferInputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.ferNet.SetInput(blob, "")
	out := d.ferNet.Forward("")
	defer out.Close()

	label, conf, ok := classify(readScores(out, len(ferLabels)), ferLabels)
	if !ok {
		log.Debug("Unexpected FER+ output shape")
		return emotion.Failed()
	}
	return emotion.Result{Emotion: label, Confidence: conf, Faces: faceBoxes(rects)}
}

// locate wertet die SSD-Ausgabe [image_id, class_id, confidence, left, top, right, bottom] aus
func (d *FERDetector) locate(frame gocv.Mat) []image.Rectangle {
	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.faceNet.SetInput(blob, "")
	out := d.faceNet.Forward("")
	defer out.Close()

	rows := out.Total() / 7
	if rows == 0 {
		return nil
	}
	detections := out.Reshape(1, rows)
	defer detections.Close()

	w := float32(frame.Cols())
	h := float32(frame.Rows())

	var rects []image.Rectangle
	for i := 0; i < rows; i++ {
		if detections.GetFloatAt(i, 2) < d.threshold {
			continue
		}
		r := image.Rect(
			int(detections.GetFloatAt(i, 3)*w),
			int(detections.GetFloatAt(i, 4)*h),
			int(detections.GetFloatAt(i, 5)*w),
			int(detections.GetFloatAt(i, 6)*h),
		)
		r = clampRect(r, frame)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

// Close gibt beide Netze frei
func (d *FERDetector) Close() error {
	if !d.loaded {
		return nil
	}
	d.loaded = false
	if err := d.faceNet.Close(); err != nil {
		d.ferNet.Close()
		return err
	}
	return d.ferNet.Close()
}
