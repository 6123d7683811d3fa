package deepface

import (
	"context"
	"fmt"
	"image"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Unterstützte Modelle und ihre Detektornamen
var modelNames = map[string]string{
	"VGG-Face": emotion.NameDeepFaceVGG,
	"Facenet":  emotion.NameDeepFaceFacenet,
	"OpenFace": emotion.NameDeepFaceOpenFace,
}

// Detector fragt den DeepFace-Dienst mit einem festen Modell ab
type Detector struct {
	client    *APIClient
	model     string
	name      string
	available bool
}

// NewDetector erstellt einen Detektor für ein Modell. Die Verfügbarkeit wird
// einmalig per Ping bestimmt.
func NewDetector(ctx context.Context, client *APIClient, model string) (*Detector, error) {
	name, ok := modelNames[model]
	if !ok {
		return nil, fmt.Errorf("unsupported DeepFace model: %s", model)
	}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	log.WithFields(logFields).Infof("DeepFace detector ready with model %s", model)
	return &Detector{client: client, model: model, name: name, available: true}, nil
}

// Detectors erstellt die Detektoren für alle konfigurierten Modelle. Nicht
// erreichbare Modelle werden als Platzhalter zurückgegeben.
func Detectors(ctx context.Context, cfg config.DeepFaceConfig) []detector.Detector {
	client := NewAPIClient(cfg)

	var out []detector.Detector
	for _, model := range cfg.Models {
		name, ok := modelNames[model]
		if !ok {
			log.WithFields(logFields).Warnf("Ignoring unsupported DeepFace model %q", model)
			continue
		}
		d, err := NewDetector(ctx, client, model)
		if err != nil {
			out = append(out, detector.NewUnavailable(name, emotion.CapabilityLandmarks, err))
			continue
		}
		out = append(out, d)
	}
	return out
}

func (d *Detector) Name() string                   { return d.name }
func (d *Detector) IsAvailable() bool              { return d.available }
func (d *Detector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

// Detect sendet das Bild an den Dienst und wertet das erste Ergebnis aus
func (d *Detector) Detect(frame gocv.Mat) emotion.Result {
	data, err := opencv.EncodeJPEG(frame)
	if err != nil {
		log.WithFields(logFields).Errorf("Failed to encode frame: %v", err)
		return emotion.Failed()
	}

	results, err := d.client.Analyze(context.Background(), data, d.model)
	if err != nil {
		log.WithFields(logFields).Errorf("DeepFace analysis failed: %v", err)
		return emotion.Failed()
	}
	return toResult(results, image.Rect(0, 0, frame.Cols(), frame.Rows()))
}

// isFace verwirft Ergebnisse ohne erkanntes Gesicht. Mit enforce_detection=false
// antwortet der Dienst auch dann, mit face_confidence 0 und dem ganzen Bild als Region.
func isFace(a Analysis, frame image.Rectangle) bool {
	if a.DominantEmotion == "" || a.Region == nil || a.Region.W <= 0 || a.Region.H <= 0 {
		return false
	}
	if a.FaceConfidence != nil {
		return *a.FaceConfidence > 0
	}
	return a.Region.Rect() != frame
}

// toResult übernimmt die dominante Emotion des ersten Gesichts; der Dienst
// liefert Prozentwerte
func toResult(results []Analysis, frame image.Rectangle) emotion.Result {
	faces := make([]emotion.FaceBox, 0, len(results))
	var first *Analysis
	for i := range results {
		if !isFace(results[i], frame) {
			continue
		}
		if first == nil {
			first = &results[i]
		}
		faces = append(faces, emotion.FaceBoxFromRect(results[i].Region.Rect()))
	}
	if first == nil {
		return emotion.NoFaceFound()
	}

	return emotion.Result{
		Emotion:    emotion.ParseLabel(first.DominantEmotion),
		Confidence: first.Emotion[first.DominantEmotion] / 100.0,
		Faces:      faces,
	}
}

// Close gibt die Verbindungen des HTTP-Clients frei
func (d *Detector) Close() error {
	d.client.httpClient.CloseIdleConnections()
	d.available = false
	return nil
}

// NameFor liefert den Detektornamen eines DeepFace-Modells
func NameFor(model string) (string, bool) {
	name, ok := modelNames[model]
	return name, ok
}
