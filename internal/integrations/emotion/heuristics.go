package emotion

import "math"

// Die folgenden Regeln sind feste Schwellenwerte auf einfachen Gesichtsmerkmalen.
// Sie sind Platzhalter-Heuristiken und kein trainierter Klassifikator.

// Point ist ein Bildpunkt mit Gleitkommakoordinaten
type Point struct {
	X, Y float64
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func mid(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// FivePoint enthält die fünf Gesichtspunkte eines Landmarken-Detektors
type FivePoint struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	LeftMouth  Point
	RightMouth Point
}

// FivePointRatios berechnet Mund/Augen-Verhältnis und Gesichtslängen-Verhältnis.
// Beide Werte sind 0, wenn der Augenabstand 0 ist.
func FivePointRatios(p FivePoint) (mouthEyeRatio, faceLengthRatio float64) {
	eyeDistance := dist(p.LeftEye, p.RightEye)
	if eyeDistance <= 0 {
		return 0, 0
	}
	mouthWidth := dist(p.LeftMouth, p.RightMouth)
	eyeMouthDistance := dist(mid(p.LeftEye, p.RightEye), mid(p.LeftMouth, p.RightMouth))
	return mouthWidth / eyeDistance, eyeMouthDistance / eyeDistance
}

// LandmarkRatioEmotion klassifiziert anhand der fünf Gesichtspunkte
func LandmarkRatioEmotion(mouthEyeRatio, faceLengthRatio float64) (Label, float64) {
	switch {
	case mouthEyeRatio > 0.8:
		return Happy, 0.75
	case mouthEyeRatio < 0.5:
		return Sad, 0.7
	case faceLengthRatio > 2.0:
		return Surprise, 0.8
	case faceLengthRatio < 1.5:
		return Angry, 0.65
	default:
		return Neutral, 0.6
	}
}

// FacialFeatures sind die Punkte, aus denen die Gesichtsverhältnisse berechnet werden.
// Bei den Augenpunkten sind der erste und der letzte Punkt die Augenwinkel.
type FacialFeatures struct {
	MouthLeft   Point
	MouthRight  Point
	MouthTop    Point
	MouthBottom Point
	LeftEye     []Point
	RightEye    []Point
	LeftBrow    []Point
	RightBrow   []Point
}

// FacialRatios berechnet Mundöffnung (MAR), Mund/Augenbreite und Augenbrauen-Versatz.
// Der Versatz ist negativ, wenn die Brauen über den Augen liegen (Bildkoordinaten).
func FacialRatios(f FacialFeatures) (mouthAspect, mouthEye, browOffset float64) {
	mouthWidth := dist(f.MouthLeft, f.MouthRight)
	mouthHeight := dist(f.MouthTop, f.MouthBottom)
	if mouthWidth > 0 {
		mouthAspect = mouthHeight / mouthWidth
	}

	avgEyeWidth := (eyeWidth(f.LeftEye) + eyeWidth(f.RightEye)) / 2
	if avgEyeWidth > 0 {
		mouthEye = mouthWidth / avgEyeWidth
	}

	left := meanY(f.LeftBrow) - meanY(f.LeftEye)
	right := meanY(f.RightBrow) - meanY(f.RightEye)
	browOffset = (left + right) / 2
	return mouthAspect, mouthEye, browOffset
}

func eyeWidth(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	return dist(pts[0], pts[len(pts)-1])
}

func meanY(pts []Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pts {
		sum += p.Y
	}
	return sum / float64(len(pts))
}

// FacialRatioEmotion klassifiziert anhand von Mundöffnung, Mundbreite und Brauenlage
func FacialRatioEmotion(mouthAspect, mouthEye, browOffset float64) (Label, float64) {
	switch {
	case mouthAspect > 0.3 && mouthEye > 0.8:
		return Happy, 0.8
	case mouthAspect < 0.1 && browOffset < -5:
		return Sad, 0.75
	case browOffset < -10 && mouthAspect < 0.2:
		return Angry, 0.7
	case mouthAspect > 0.4:
		return Surprise, 0.8
	case mouthAspect < 0.15:
		return Disgust, 0.6
	default:
		return Neutral, 0.65
	}
}

// EdgeDistributionEmotion klassifiziert anhand der Kantenanzahl im oberen, mittleren
// und unteren Gesichtsdrittel
func EdgeDistributionEmotion(upper, middle, lower float64) (Label, float64) {
	total := upper + middle + lower
	if total == 0 {
		return Neutral, 0.5
	}

	lowerRatio := lower / total
	upperRatio := upper / total

	switch {
	case lowerRatio > 0.4:
		return Happy, 0.7
	case upperRatio > 0.5:
		return Surprise, 0.6
	case middle > upper && middle > lower:
		return Angry, 0.65
	default:
		return Neutral, 0.6
	}
}

// BrightnessEmotion klassifiziert anhand der mittleren Helligkeit der Gesichtsdrittel
func BrightnessEmotion(upperMean, middleMean, lowerMean float64) (Label, float64) {
	switch {
	case lowerMean > middleMean*1.1:
		return Happy, 0.7
	case upperMean < middleMean*0.9:
		return Sad, 0.6
	case math.Abs(upperMean-lowerMean) > 20:
		return Surprise, 0.65
	default:
		return Neutral, 0.8
	}
}

// IntensityEmotion klassifiziert anhand von Mittelwert und Streuung der Gesichtsdrittel
func IntensityEmotion(s ThirdsStats) (Label, float64) {
	switch {
	case s.LowerMean > s.MiddleMean*1.1 && s.LowerStd > 20:
		return Happy, 0.6
	case s.UpperMean < s.MiddleMean*0.9:
		return Sad, 0.55
	case s.UpperStd > 30 && s.LowerStd > 25:
		return Surprise, 0.6
	case s.UpperStd > 35:
		return Angry, 0.55
	default:
		return Neutral, 0.7
	}
}

// FeatureStatsEmotion klassifiziert anhand der Statistik eines HOG-Merkmalsvektors
func FeatureStatsEmotion(mean, std, maxValue float64) (Label, float64) {
	switch {
	case mean > 0.1 && std > 0.05:
		return Happy, 0.7
	case mean < 0.05 && std < 0.03:
		return Sad, 0.65
	case maxValue > 0.5:
		return Surprise, 0.7
	case std > 0.08:
		return Angry, 0.6
	default:
		return Neutral, 0.6
	}
}
