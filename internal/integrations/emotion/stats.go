package emotion

import "math"

// Gray ist ein 8-Bit-Graustufenbild, zeilenweise gespeichert
type Gray struct {
	Pix    []byte
	Width  int
	Height int
}

func (g Gray) valid() bool {
	return g.Width > 0 && g.Height > 0 && len(g.Pix) >= g.Width*g.Height
}

func (g Gray) at(x, y int) float64 {
	return float64(g.Pix[y*g.Width+x])
}

// ThirdsStats enthält Mittelwert und Standardabweichung der drei horizontalen
// Gesichtsdrittel (oben, Mitte, unten)
type ThirdsStats struct {
	UpperMean, MiddleMean, LowerMean float64
	UpperStd, MiddleStd, LowerStd    float64
}

// HOG-Parameter: 9 Orientierungen, 8x8 Pixel pro Zelle, 2x2 Zellen pro Block
const (
	hogOrientations = 9
	hogCellSize     = 8
	hogBlockSize    = 2
	hogEpsilon      = 1e-5
)

// HOGFeatures berechnet einen HOG-Merkmalsvektor mit L2-Hys-Blocknormierung.
// Für ein 64x64-Bild ergeben sich 7*7*2*2*9 = 1764 Werte. gocv.HOGDescriptor
// stellt keine Deskriptorberechnung bereit.
func HOGFeatures(g Gray) []float64 {
	if !g.valid() {
		return nil
	}
	cellsX := g.Width / hogCellSize
	cellsY := g.Height / hogCellSize
	if cellsX < hogBlockSize || cellsY < hogBlockSize {
		return nil
	}

	// Zellhistogramme aus zentralen Differenzen, Randpixel haben Gradient 0
	hist := make([]float64, cellsX*cellsY*hogOrientations)
	binWidth := 180.0 / hogOrientations
	for y := 0; y < cellsY*hogCellSize; y++ {
		for x := 0; x < cellsX*hogCellSize; x++ {
			var gx, gy float64
			if x > 0 && x < g.Width-1 {
				gx = g.at(x+1, y) - g.at(x-1, y)
			}
			if y > 0 && y < g.Height-1 {
				gy = g.at(x, y+1) - g.at(x, y-1)
			}
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			bin := int(angle / binWidth)
			if bin >= hogOrientations {
				bin = hogOrientations - 1
			}
			cell := (y/hogCellSize)*cellsX + x/hogCellSize
			hist[cell*hogOrientations+bin] += mag
		}
	}
	cellArea := float64(hogCellSize * hogCellSize)
	for i := range hist {
		hist[i] /= cellArea
	}

	blocksX := cellsX - hogBlockSize + 1
	blocksY := cellsY - hogBlockSize + 1
	blockLen := hogBlockSize * hogBlockSize * hogOrientations
	features := make([]float64, 0, blocksX*blocksY*blockLen)

	block := make([]float64, blockLen)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			i := 0
			for cy := by; cy < by+hogBlockSize; cy++ {
				for cx := bx; cx < bx+hogBlockSize; cx++ {
					cell := cy*cellsX + cx
					copy(block[i:i+hogOrientations], hist[cell*hogOrientations:(cell+1)*hogOrientations])
					i += hogOrientations
				}
			}
			l2Hys(block)
			features = append(features, block...)
		}
	}
	return features
}

func l2Hys(v []float64) {
	normalize := func() {
		var sumSq float64
		for _, x := range v {
			sumSq += x * x
		}
		n := math.Sqrt(sumSq + hogEpsilon*hogEpsilon)
		for i := range v {
			v[i] /= n
		}
	}
	normalize()
	for i := range v {
		if v[i] > 0.2 {
			v[i] = 0.2
		}
	}
	normalize()
}

// VectorStats liefert Mittelwert, Standardabweichung und Maximum eines Vektors
func VectorStats(v []float64) (mean, std, maxValue float64) {
	if len(v) == 0 {
		return 0, 0, 0
	}
	maxValue = v[0]
	var sum float64
	for _, x := range v {
		sum += x
		if x > maxValue {
			maxValue = x
		}
	}
	mean = sum / float64(len(v))
	var sq float64
	for _, x := range v {
		sq += (x - mean) * (x - mean)
	}
	std = math.Sqrt(sq / float64(len(v)))
	return mean, std, maxValue
}
