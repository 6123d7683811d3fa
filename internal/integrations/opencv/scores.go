package opencv

import (
	"math"

	"emotion-cam-go/internal/integrations/emotion"

	"gocv.io/x/gocv"
)

// readScores liest die ersten n Werte einer 1xN-Netzausgabe
func readScores(out gocv.Mat, n int) []float64 {
	flat := out.Reshape(1, 1)
	defer flat.Close()

	if flat.Cols() < n {
		n = flat.Cols()
	}
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = float64(flat.GetFloatAt(0, i))
	}
	return scores
}

// softmax normalisiert Rohwerte zu Wahrscheinlichkeiten
func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		maxScore = math.Max(maxScore, s)
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// isDistribution prüft, ob die Werte bereits Wahrscheinlichkeiten sind
func isDistribution(scores []float64) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += s
	}
	return math.Abs(sum-1) < 1e-3
}

// classify wählt das Label mit der höchsten Wahrscheinlichkeit
func classify(scores []float64, labels []emotion.Label) (emotion.Label, float64, bool) {
	if len(scores) == 0 || len(scores) > len(labels) {
		return "", 0, false
	}
	probs := scores
	if !isDistribution(scores) {
		probs = softmax(scores)
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return labels[best], probs[best], true
}
