package session

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"emotion-cam-go/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyActive wird zurückgegeben, wenn bereits eine Sitzung läuft
var ErrAlreadyActive = errors.New("logging session already active")

// csvHeader sind die festen Spalten der Protokolldatei
var csvHeader = []string{"timestamp", "time_elapsed", "emotion", "confidence", "model_used", "face_count"}

var logFields = log.Fields{"component": "session"}

// Info beschreibt die laufende Sitzung
type Info struct {
	Active            bool    `json:"is_active"`
	ID                string  `json:"id,omitempty"`
	Name              string  `json:"name,omitempty"`
	StartTime         string  `json:"start_time,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds"`
	DurationFormatted string  `json:"duration_formatted,omitempty"`
	RecordsCount      int     `json:"records_count"`
	OutputFolder      string  `json:"output_folder,omitempty"`
}

// Logger protokolliert die Erkennungsergebnisse einer Sitzung.
// Log wird im normalen Betrieb nur aus der Streaming-Goroutine aufgerufen; der
// Mutex schützt den Zustand, weil Start und Stop auch über die API kommen.
type Logger struct {
	mu        sync.Mutex
	outputDir string
	store     Store
	now       func() time.Time

	active  bool
	id      string
	name    string
	start   time.Time
	records []Record
	files   Files
	csvFile *os.File
	csv     *csv.Writer
}

// NewLogger erstellt einen Logger, der in outputDir schreibt. store ist optional.
func NewLogger(outputDir string, store Store) *Logger {
	if outputDir == "" {
		outputDir = "output"
	}
	return &Logger{
		outputDir: outputDir,
		store:     store,
		now:       timezone.Now,
	}
}

// DefaultName erzeugt einen Sitzungsnamen aus dem Zeitstempel
func DefaultName(t time.Time) string {
	return "emotion_session_" + timezone.FileStamp(t)
}

// Start beginnt eine neue Sitzung und legt die CSV-Datei mit Kopfzeile an.
// Schlägt das Anlegen fehl, bleibt der Logger inaktiv.
func (l *Logger) Start(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active {
		return ErrAlreadyActive
	}

	start := l.now()
	if name == "" {
		name = DefaultName(start)
	}

	if err := os.MkdirAll(l.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create session output directory: %w", err)
	}

	files := Files{
		CSV:     filepath.Join(l.outputDir, name+".csv"),
		JSON:    filepath.Join(l.outputDir, name+".json"),
		Summary: filepath.Join(l.outputDir, name+"_summary.txt"),
	}

	f, err := os.Create(files.CSV)
	if err != nil {
		return fmt.Errorf("failed to create session log %s: %w", files.CSV, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write session log header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write session log header: %w", err)
	}

	l.id = uuid.NewString()
	l.name = name
	l.start = start
	l.records = nil
	l.files = files
	l.csvFile = f
	l.csv = w
	l.active = true

	if l.store != nil {
		if err := l.store.BeginSession(l.id, name, start, files); err != nil {
			log.WithFields(logFields).Warnf("Failed to persist session %s: %v", name, err)
		}
	}

	log.WithFields(logFields).Infof("Started logging session %s", name)
	return nil
}

// Log hängt einen Datensatz an Speicher und CSV-Datei an. Ohne aktive Sitzung passiert nichts.
func (l *Logger) Log(emotion string, confidence float64, detector string, faceCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	at := l.now()
	r := Record{
		Timestamp:   timezone.Format(at, timezone.RecordLayout),
		TimeElapsed: round(at.Sub(l.start).Seconds(), 3),
		Emotion:     emotion,
		Confidence:  round(confidence, 4),
		ModelUsed:   detector,
		FaceCount:   faceCount,
	}
	l.records = append(l.records, r)

	row := []string{
		r.Timestamp,
		strconv.FormatFloat(r.TimeElapsed, 'f', -1, 64),
		r.Emotion,
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		r.ModelUsed,
		strconv.Itoa(r.FaceCount),
	}
	if err := l.csv.Write(row); err != nil {
		log.WithFields(logFields).Errorf("Failed to write session record: %v", err)
	}
	l.csv.Flush()
	if err := l.csv.Error(); err != nil {
		log.WithFields(logFields).Errorf("Failed to flush session record: %v", err)
	}

	if l.store != nil {
		if err := l.store.AppendRecord(l.id, at, r); err != nil {
			log.WithFields(logFields).Debugf("Failed to persist session record: %v", err)
		}
	}
}

type snapshot struct {
	SessionInfo struct {
		ID              string  `json:"id"`
		Name            string  `json:"name"`
		StartTime       string  `json:"start_time"`
		EndTime         string  `json:"end_time"`
		DurationSeconds float64 `json:"duration_seconds"`
		TotalRecords    int     `json:"total_records"`
	} `json:"session_info"`
	Summary Summary  `json:"summary"`
	Data    []Record `json:"data"`
}

const isoLayout = "2006-01-02T15:04:05.000000"

// Stop beendet die Sitzung, schreibt JSON-Snapshot und Textbericht und gibt die
// Zusammenfassung zurück. Ohne aktive Sitzung wird eine leere Zusammenfassung
// zurückgegeben und nichts geschrieben.
func (l *Logger) Stop() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return Summary{}
	}
	l.active = false

	end := l.now()
	duration := end.Sub(l.start).Seconds()
	summary := Summarize(l.records, duration)

	if err := l.csvFile.Close(); err != nil {
		log.WithFields(logFields).Warnf("Failed to close session log: %v", err)
	}
	l.csvFile = nil
	l.csv = nil

	var snap snapshot
	snap.SessionInfo.ID = l.id
	snap.SessionInfo.Name = l.name
	snap.SessionInfo.StartTime = timezone.Format(l.start, isoLayout)
	snap.SessionInfo.EndTime = timezone.Format(end, isoLayout)
	snap.SessionInfo.DurationSeconds = duration
	snap.SessionInfo.TotalRecords = len(l.records)
	snap.Summary = summary
	snap.Data = l.records
	if snap.Data == nil {
		snap.Data = []Record{}
	}

	if err := writeJSON(l.files.JSON, snap); err != nil {
		log.WithFields(logFields).Errorf("Failed to write session snapshot: %v", err)
	}
	if err := l.writeSummary(summary); err != nil {
		log.WithFields(logFields).Errorf("Failed to write session report: %v", err)
	}

	if l.store != nil {
		if err := l.store.FinishSession(l.id, end, summary); err != nil {
			log.WithFields(logFields).Warnf("Failed to persist session summary: %v", err)
		}
	}

	log.WithFields(logFields).Infof("Stopped logging session %s (%d records) in %s", l.name, len(l.records), l.outputDir)
	return summary
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

func (l *Logger) writeSummary(s Summary) error {
	f, err := os.Create(l.files.Summary)
	if err != nil {
		return err
	}
	if err := writeReport(f, l.start, s, l.files); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// IsActive prüft, ob gerade eine Sitzung läuft
func (l *Logger) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Info gibt Informationen zur laufenden Sitzung zurück
func (l *Logger) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return Info{}
	}

	d := l.now().Sub(l.start).Seconds()
	return Info{
		Active:            true,
		ID:                l.id,
		Name:              l.name,
		StartTime:         timezone.Format(l.start, "15:04:05"),
		DurationSeconds:   d,
		DurationFormatted: fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60),
		RecordsCount:      len(l.records),
		OutputFolder:      l.outputDir,
	}
}

// Files gibt die Dateipfade der aktuellen oder zuletzt beendeten Sitzung zurück
func (l *Logger) Files() Files {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.files
}

// OutputDir gibt das Ausgabeverzeichnis zurück
func (l *Logger) OutputDir() string {
	return l.outputDir
}
