package opencv

import (
	"image"

	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

// thirdRects teilt die Fläche in drei horizontale Streifen [0,h/3), [h/3,2h/3), [2h/3,h)
func thirdRects(r image.Rectangle) [3]image.Rectangle {
	h := r.Dy()
	return [3]image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+h/3),
		image.Rect(r.Min.X, r.Min.Y+h/3, r.Max.X, r.Min.Y+2*h/3),
		image.Rect(r.Min.X, r.Min.Y+2*h/3, r.Max.X, r.Max.Y),
	}
}

// meanStdDev liefert Mittelwert und Standardabweichung des ersten Kanals
func meanStdDev(img gocv.Mat) (mean, std float64) {
	m := gocv.NewMat()
	s := gocv.NewMat()
	defer m.Close()
	defer s.Close()

	gocv.MeanStdDev(img, &m, &s)
	return m.GetDoubleAt(0, 0), s.GetDoubleAt(0, 0)
}

// FaceThirds berechnet die Helligkeitsstatistik der drei Drittel eines
// Gesichts in einem Graustufenbild. Leere Streifen bleiben 0.
func FaceThirds(gray gocv.Mat, face image.Rectangle) emotion.ThirdsStats {
	var s emotion.ThirdsStats
	face = clampRect(face, gray)
	if face.Empty() {
		return s
	}

	means := [3]*float64{&s.UpperMean, &s.MiddleMean, &s.LowerMean}
	stds := [3]*float64{&s.UpperStd, &s.MiddleStd, &s.LowerStd}
	for i, r := range thirdRects(face) {
		if r.Empty() {
			continue
		}
		region := gray.Region(r)
		*means[i], *stds[i] = meanStdDev(region)
		region.Close()
	}
	return s
}

// Thirds berechnet die Drittelstatistik über das ganze Graustufenbild
func Thirds(gray gocv.Mat) emotion.ThirdsStats {
	return FaceThirds(gray, image.Rect(0, 0, gray.Cols(), gray.Rows()))
}

// EdgeThirds zählt die Kantenpixel (Wert > 0) der drei Drittel eines Kantenbilds
func EdgeThirds(edges gocv.Mat) (upper, middle, lower float64) {
	var counts [3]float64
	for i, r := range thirdRects(image.Rect(0, 0, edges.Cols(), edges.Rows())) {
		if r.Empty() {
			continue
		}
		region := edges.Region(r)
		counts[i] = float64(gocv.CountNonZero(region))
		region.Close()
	}
	return counts[0], counts[1], counts[2]
}
