package opencv

import (
	"image"

	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

// GrayMat wandelt ein BGR-Bild in Graustufen um. Der Aufrufer schließt das Ergebnis.
func GrayMat(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
		return gray
	}
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// GrayPixels kopiert ein Graustufenbild in einen emotion.Gray-Puffer
func GrayPixels(gray gocv.Mat) emotion.Gray {
	m := gray
	if !gray.IsContinuous() {
		m = gray.Clone()
		defer m.Close()
	}
	return emotion.Gray{Pix: m.ToBytes(), Width: m.Cols(), Height: m.Rows()}
}

// clampRect begrenzt ein Rechteck auf die Bildfläche
func clampRect(r image.Rectangle, img gocv.Mat) image.Rectangle {
	return r.Canon().Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
}

// cropGray schneidet ein Gesicht aus einem Graustufenbild und skaliert es optional.
// size == image.Point{} lässt die Größe unverändert.
func cropGray(gray gocv.Mat, r image.Rectangle, size image.Point) (gocv.Mat, bool) {
	r = clampRect(r, gray)
	if r.Empty() {
		return gocv.NewMat(), false
	}

	region := gray.Region(r)
	defer region.Close()

	out := gocv.NewMat()
	if size == (image.Point{}) {
		region.CopyTo(&out)
	} else {
		gocv.Resize(region, &out, size, 0, 0, gocv.InterpolationLinear)
	}
	return out, true
}

// faceBoxes wandelt Rechtecke in FaceBoxen um
func faceBoxes(rects []image.Rectangle) []emotion.FaceBox {
	boxes := make([]emotion.FaceBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, emotion.FaceBoxFromRect(r))
	}
	return boxes
}

// regionEmotion klassifiziert ein Gesicht über die Helligkeitsstatistik der Gesichtsdrittel
func regionEmotion(face gocv.Mat) (emotion.Label, float64) {
	return emotion.IntensityEmotion(Thirds(face))
}

// edgeEmotion klassifiziert ein Gesicht über die Kantenverteilung (Canny 50/150)
func edgeEmotion(face gocv.Mat) (emotion.Label, float64) {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(face, &edges, 50, 150)
	return emotion.EdgeDistributionEmotion(EdgeThirds(edges))
}

// FaceGray schneidet ein Gesicht aus, skaliert es auf size und liefert die Graustufen
func FaceGray(frame gocv.Mat, r image.Rectangle, size image.Point) (emotion.Gray, bool) {
	gray := GrayMat(frame)
	defer gray.Close()

	face, ok := cropGray(gray, r, size)
	defer face.Close()
	if !ok {
		return emotion.Gray{}, false
	}
	return GrayPixels(face), true
}
