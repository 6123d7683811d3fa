package opencv

import (
	"fmt"
	"image"
	"image/color"

	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

var annotationColor = color.RGBA{0, 255, 0, 0}

// Annotate zeichnet alle Gesichtsrahmen und das Erkennungsergebnis in das Bild
func Annotate(img *gocv.Mat, res emotion.Result) {
	label := ""
	if !res.Emotion.IsSentinel() && res.Emotion != "" {
		label = fmt.Sprintf("%s: %.2f%%", res.Emotion, res.Confidence*100)
	}

	for _, face := range res.Faces {
		r := face.Rect()
		gocv.Rectangle(img, r, annotationColor, 2)
		if label != "" {
			gocv.PutText(img, label, image.Pt(r.Min.X, r.Min.Y-10), gocv.FontHersheySimplex, 0.7, annotationColor, 2)
		}
	}
}

// EncodeJPEG kodiert ein Bild als JPEG
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes verweist auf den nativen Puffer, daher kopieren
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// DecodeImage dekodiert ein Bild (JPEG, PNG, ...) in ein BGR-Mat
func DecodeImage(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("failed to decode image: empty result")
	}
	return img, nil
}
