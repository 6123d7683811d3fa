package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session repräsentiert eine protokollierte Aufnahme- oder Analysesitzung
type Session struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"` // UUID der Sitzung
	Name              string         `gorm:"index" json:"name"`
	StartTime         time.Time      `gorm:"index" json:"start_time"`
	EndTime           *time.Time     `json:"end_time,omitempty"` // nil solange die Sitzung läuft
	DurationSeconds   float64        `json:"duration_seconds"`
	TotalRecords      int            `json:"total_records"`
	MostCommonEmotion string         `gorm:"index" json:"most_common_emotion"`
	Summary           datatypes.JSON `gorm:"type:json" json:"summary"`
	CSVPath           string         `json:"csv_path"`
	JSONPath          string         `json:"json_path"`
	SummaryPath       string         `json:"summary_path"`
	Records           []Record       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE;" json:"records,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Record ist ein einzelnes Erkennungsergebnis einer Sitzung
type Record struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"index;size:36;not null" json:"session_id"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	TimeElapsed float64   `json:"time_elapsed"`
	Emotion     string    `gorm:"index" json:"emotion"`
	Confidence  float64   `json:"confidence"`
	ModelUsed   string    `json:"model_used"`
	FaceCount   int       `json:"face_count"`
}

// Statistics fasst die gespeicherten Sitzungen zusammen
type Statistics struct {
	TotalSessions   int64            `json:"total_sessions"`
	ActiveSessions  int64            `json:"active_sessions"`
	TotalRecords    int64            `json:"total_records"`
	EmotionCounts   map[string]int64 `json:"emotion_counts"`
	LastSessionTime *time.Time       `json:"last_session_time,omitempty"`
}
