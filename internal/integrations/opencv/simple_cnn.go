package opencv

import (
	"image"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// cnnLabels ist die Ausgabereihenfolge des 48x48-Netzes
var cnnLabels = []emotion.Label{
	emotion.Angry, emotion.Disgust, emotion.Fear, emotion.Happy,
	emotion.Sad, emotion.Surprise, emotion.Neutral,
}

const cnnInputSize = 48

// SimpleCNNDetector klassifiziert Haar-Gesichter mit einem kleinen CNN.
// Ohne Modell oder bei ungültiger Ausgabe wird die Helligkeitsheuristik verwendet.
type SimpleCNNDetector struct {
	haar *HaarLocator
	net  gocv.Net
	cnn  bool
}

// NewSimpleCNNDetector lädt Kaskade und, falls vorhanden, das ONNX-Modell
func NewSimpleCNNDetector(cfg config.DetectorsConfig) (*SimpleCNNDetector, error) {
	haar, err := NewHaarLocator(cfg)
	if err != nil {
		return nil, err
	}

	d := &SimpleCNNDetector{haar: haar}
	if fileExists(cfg.CNNModel) {
		net := gocv.ReadNetFromONNX(cfg.CNNModel)
		if net.Empty() {
			log.Warnf("Failed to load CNN model %s, using intensity heuristics", cfg.CNNModel)
		} else {
			applyBackend(&net, cfg)
			d.net = net
			d.cnn = true
		}
	} else {
		log.Debugf("CNN model %s not found, using intensity heuristics", cfg.CNNModel)
	}
	return d, nil
}

func (d *SimpleCNNDetector) Name() string                   { return emotion.NameSimpleCNN }
func (d *SimpleCNNDetector) IsAvailable() bool              { return d.haar != nil }
func (d *SimpleCNNDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

// Detect klassifiziert das erste Gesicht
func (d *SimpleCNNDetector) Detect(frame gocv.Mat) emotion.Result {
	gray := GrayMat(frame)
	defer gray.Close()

	rects := d.haar.Locate(gray)
	if len(rects) == 0 {
		return emotion.NoFaceFound()
	}

	face, ok := cropGray(gray, rects[0], image.Point{})
	defer face.Close()
	if !ok {
		return emotion.Result{Emotion: emotion.Neutral, Confidence: 0.5, Faces: faceBoxes(rects)}
	}

	label, conf := d.predict(face)
	return emotion.Result{Emotion: label, Confidence: conf, Faces: faceBoxes(rects)}
}

func (d *SimpleCNNDetector) predict(face gocv.Mat) (emotion.Label, float64) {
	if d.cnn {
		blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(cnnInputSize, cnnInputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
		defer blob.Close()

		d.net.SetInput(blob, "")
		out := d.net.Forward("")
		defer out.Close()

		if label, conf, ok := classify(readScores(out, len(cnnLabels)), cnnLabels); ok {
			return label, conf
		}
		log.Debug("Unexpected CNN output, falling back to intensity heuristics")
	}
	return regionEmotion(face)
}

// Close gibt Netz und Kaskade frei
func (d *SimpleCNNDetector) Close() error {
	if d.cnn {
		d.net.Close()
		d.cnn = false
	}
	if d.haar == nil {
		return nil
	}
	err := d.haar.Close()
	d.haar = nil
	return err
}
