package processor

import (
	"context"
	"fmt"

	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"
)

// Analysis ist das Ergebnis der Analyse eines Einzelbildes
type Analysis struct {
	Detector  string         `json:"detector"`
	Result    emotion.Result `json:"result"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Annotated []byte         `json:"-"` // JPEG mit eingezeichneten Gesichtern, nur wenn angefordert
}

// Analyzer analysiert ein kodiertes Bild mit dem angegebenen Detektor
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, detectorName string, annotate bool) (*Analysis, error)
}

// ImageAnalyzer dekodiert Bilder und leitet sie an den Detektor-Manager weiter
type ImageAnalyzer struct {
	manager *detector.Manager
}

// NewImageAnalyzer erstellt einen Analyzer für den Manager
func NewImageAnalyzer(manager *detector.Manager) *ImageAnalyzer {
	return &ImageAnalyzer{manager: manager}
}

// Analyze dekodiert data und führt die Erkennung aus. Ein leerer Detektorname
// wählt den Standarddetektor.
func (a *ImageAnalyzer) Analyze(ctx context.Context, data []byte, detectorName string, annotate bool) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := opencv.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	name := detectorName
	if name == "" {
		name = a.manager.Default()
	}

	res := a.manager.Detect(name, img)
	analysis := &Analysis{
		Detector: name,
		Result:   res,
		Width:    img.Cols(),
		Height:   img.Rows(),
	}

	if annotate {
		opencv.Annotate(&img, res)
		jpeg, err := opencv.EncodeJPEG(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode annotated image: %w", err)
		}
		analysis.Annotated = jpeg
	}
	return analysis, nil
}
