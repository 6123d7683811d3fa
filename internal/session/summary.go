package session

import (
	"encoding/json"
	"math"
)

// Record ist ein protokolliertes Erkennungsergebnis
type Record struct {
	Timestamp   string  `json:"timestamp"`
	TimeElapsed float64 `json:"time_elapsed"`
	Emotion     string  `json:"emotion"`
	Confidence  float64 `json:"confidence"`
	ModelUsed   string  `json:"model_used"`
	FaceCount   int     `json:"face_count"`
}

// ConfidenceStats fasst die Konfidenzwerte einer Sitzung zusammen
type ConfidenceStats struct {
	Average float64 `json:"average"`
	Maximum float64 `json:"maximum"`
	Minimum float64 `json:"minimum"`
}

// Summary ist die Auswertung einer beendeten Sitzung. Der Nullwert steht für
// "keine Daten" und wird als {} serialisiert.
type Summary struct {
	TotalRecords        int                `json:"total_records"`
	DurationMinutes     float64            `json:"duration_minutes"`
	AvgRecordsPerMinute float64            `json:"avg_records_per_minute"`
	EmotionDistribution map[string]int     `json:"emotion_distribution"`
	EmotionPercentages  map[string]float64 `json:"emotion_percentages"`
	MostCommonEmotion   string             `json:"most_common_emotion"`
	ConfidenceStats     ConfidenceStats    `json:"confidence_stats"`
	ModelUsage          map[string]int     `json:"model_usage"`

	// Emotionen und Modelle in der Reihenfolge ihres ersten Auftretens
	emotionOrder []string
	modelOrder   []string
}

// IsEmpty prüft, ob die Zusammenfassung keine Daten enthält
func (s Summary) IsEmpty() bool {
	return s.TotalRecords == 0
}

// MarshalJSON serialisiert eine leere Zusammenfassung als {}
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.IsEmpty() {
		return []byte("{}"), nil
	}
	type plain Summary
	return json.Marshal(plain(s))
}

// Emotions gibt die Emotionen in der Reihenfolge ihres ersten Auftretens zurück
func (s Summary) Emotions() []string {
	return s.emotionOrder
}

// Models gibt die Detektornamen in der Reihenfolge ihres ersten Auftretens zurück
func (s Summary) Models() []string {
	return s.modelOrder
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Summarize berechnet die Auswertung über alle Datensätze. Bei gleicher Häufigkeit
// gilt die zuerst aufgetretene Emotion als häufigste.
func Summarize(records []Record, durationSeconds float64) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	s := Summary{
		TotalRecords:        len(records),
		DurationMinutes:     round(durationSeconds/60, 2),
		EmotionDistribution: make(map[string]int),
		EmotionPercentages:  make(map[string]float64),
		ModelUsage:          make(map[string]int),
	}

	var sum float64
	minConf, maxConf := records[0].Confidence, records[0].Confidence
	for _, r := range records {
		if _, seen := s.EmotionDistribution[r.Emotion]; !seen {
			s.emotionOrder = append(s.emotionOrder, r.Emotion)
		}
		s.EmotionDistribution[r.Emotion]++

		if _, seen := s.ModelUsage[r.ModelUsed]; !seen {
			s.modelOrder = append(s.modelOrder, r.ModelUsed)
		}
		s.ModelUsage[r.ModelUsed]++

		sum += r.Confidence
		minConf = math.Min(minConf, r.Confidence)
		maxConf = math.Max(maxConf, r.Confidence)
	}

	best := 0
	for _, e := range s.emotionOrder {
		count := s.EmotionDistribution[e]
		s.EmotionPercentages[e] = round(float64(count)/float64(len(records))*100, 2)
		if count > best {
			best = count
			s.MostCommonEmotion = e
		}
	}

	s.ConfidenceStats = ConfidenceStats{
		Average: round(sum/float64(len(records)), 4),
		Maximum: round(maxConf, 4),
		Minimum: round(minConf, 4),
	}

	if durationSeconds > 0 {
		s.AvgRecordsPerMinute = round(float64(len(records))/(durationSeconds/60), 2)
	}

	return s
}
