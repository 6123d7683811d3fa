package session

import "time"

// Files enthält die Pfade der Ausgabedateien einer Sitzung
type Files struct {
	CSV     string `json:"csv"`
	JSON    string `json:"json"`
	Summary string `json:"summary"`
}

// Store persistiert Sitzungen zusätzlich zu den Dateien, z.B. in der Datenbank.
// Fehler des Stores brechen die Sitzung nicht ab.
type Store interface {
	BeginSession(id, name string, start time.Time, files Files) error
	AppendRecord(sessionID string, at time.Time, r Record) error
	FinishSession(sessionID string, end time.Time, summary Summary) error
}
