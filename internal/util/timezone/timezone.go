package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Layouts für Sitzungs- und Dateinamen
const (
	// FileStampLayout wird in generierten Datei- und Sitzungsnamen verwendet
	FileStampLayout = "20060102_150405"
	// RecordLayout ist das Zeitstempelformat der Protokollzeilen (Millisekunden)
	RecordLayout = "2006-01-02 15:04:05.000"
)

var (
	currentLocation *time.Location
	locationOnce    sync.Once
)

// Initialize setzt die Zeitzone basierend auf der TZ-Umgebungsvariable.
// Ohne TZ wird die lokale Zeitzone des Systems verwendet.
func Initialize() {
	locationOnce.Do(func() {
		tzName := os.Getenv("TZ")
		if tzName == "" {
			currentLocation = time.Local
			return
		}

		loc, err := time.LoadLocation(tzName)
		if err != nil {
			log.Warnf("Failed to load timezone %s from environment: %v. Falling back to local time.", tzName, err)
			currentLocation = time.Local
			return
		}

		log.Infof("Successfully initialized timezone to %s", tzName)
		currentLocation = loc
	})
}

// Now gibt die aktuelle Zeit in der konfigurierten Zeitzone zurück
func Now() time.Time {
	Initialize()
	return time.Now().In(currentLocation)
}

// Format formatiert ein time.Time-Objekt mit der konfigurierten Zeitzone
func Format(t time.Time, layout string) string {
	Initialize()
	return t.In(currentLocation).Format(layout)
}

// FileStamp liefert den Zeitstempel-Anteil für Dateinamen, z.B. 20240102_150405
func FileStamp(t time.Time) string {
	return Format(t, FileStampLayout)
}

// ISO8601 formatiert ein time.Time-Objekt im ISO 8601-Format
func ISO8601(t time.Time) string {
	return Format(t, time.RFC3339)
}
