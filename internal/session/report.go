package session

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"emotion-cam-go/internal/util/timezone"
)

// writeReport schreibt die lesbare Zusammenfassung einer Sitzung
func writeReport(w io.Writer, start time.Time, s Summary, files Files) error {
	var b strings.Builder

	b.WriteString("EMOTION RECOGNITION SESSION SUMMARY\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	fmt.Fprintf(&b, "Session start: %s\n", timezone.Format(start, "2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Duration: %.2f minutes\n", s.DurationMinutes)
	fmt.Fprintf(&b, "Total records: %d\n", s.TotalRecords)
	fmt.Fprintf(&b, "Record rate: %.2f records/minute\n\n", s.AvgRecordsPerMinute)

	b.WriteString("EMOTION DISTRIBUTION:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	emotions := append([]string(nil), s.Emotions()...)
	sort.SliceStable(emotions, func(i, j int) bool {
		return s.EmotionPercentages[emotions[i]] > s.EmotionPercentages[emotions[j]]
	})
	for _, e := range emotions {
		fmt.Fprintf(&b, "%-15s: %6.2f%%\n", e, s.EmotionPercentages[e])
	}

	mostCommon := s.MostCommonEmotion
	if mostCommon == "" {
		mostCommon = "N/A"
	}
	fmt.Fprintf(&b, "\nMost common emotion: %s\n\n", mostCommon)

	b.WriteString("CONFIDENCE STATISTICS:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "Average: %.4f\n", s.ConfidenceStats.Average)
	fmt.Fprintf(&b, "Maximum: %.4f\n", s.ConfidenceStats.Maximum)
	fmt.Fprintf(&b, "Minimum: %.4f\n\n", s.ConfidenceStats.Minimum)

	b.WriteString("MODEL USAGE:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	for _, m := range s.Models() {
		fmt.Fprintf(&b, "%s: %d times\n", m, s.ModelUsage[m])
	}

	b.WriteString("\n\nGenerated files:\n")
	fmt.Fprintf(&b, "- CSV data: %s\n", filepath.Base(files.CSV))
	fmt.Fprintf(&b, "- JSON data: %s\n", filepath.Base(files.JSON))
	fmt.Fprintf(&b, "- Summary: %s\n", filepath.Base(files.Summary))

	_, err := io.WriteString(w, b.String())
	return err
}
