package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"emotion-cam-go/internal/core/models"
	"emotion-cam-go/internal/session"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository definiert die Datenbank-Operationen für Sitzungen
type Repository interface {
	session.Store

	GetSessions(limit, offset int) ([]models.Session, int64, error)
	GetSessionByID(id string, withRecords bool) (*models.Session, error)
	DeleteSession(id string) error
	DeleteSessionsBefore(t time.Time) ([]models.Session, error)
	GetStatistics() (models.Statistics, error)
}

// SQLiteRepository implementiert die Repository-Schnittstelle für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// BeginSession legt eine laufende Sitzung an
func (r *SQLiteRepository) BeginSession(id, name string, start time.Time, files session.Files) error {
	s := models.Session{
		ID:          id,
		Name:        name,
		StartTime:   start,
		CSVPath:     files.CSV,
		JSONPath:    files.JSON,
		SummaryPath: files.Summary,
	}
	if err := r.db.Create(&s).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// AppendRecord speichert ein Erkennungsergebnis
func (r *SQLiteRepository) AppendRecord(sessionID string, at time.Time, rec session.Record) error {
	row := models.Record{
		SessionID:   sessionID,
		Timestamp:   at,
		TimeElapsed: rec.TimeElapsed,
		Emotion:     rec.Emotion,
		Confidence:  rec.Confidence,
		ModelUsed:   rec.ModelUsed,
		FaceCount:   rec.FaceCount,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// FinishSession schließt eine Sitzung ab und speichert die Zusammenfassung
func (r *SQLiteRepository) FinishSession(sessionID string, end time.Time, summary session.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	var s models.Session
	if err := r.db.First(&s, "id = ?", sessionID).Error; err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	updates := map[string]interface{}{
		"end_time":            end,
		"duration_seconds":    end.Sub(s.StartTime).Seconds(),
		"total_records":       summary.TotalRecords,
		"most_common_emotion": summary.MostCommonEmotion,
		"summary":             datatypes.JSON(data),
	}
	if err := r.db.Model(&s).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// GetSessions holt Sitzungen mit Pagination, neueste zuerst
func (r *SQLiteRepository) GetSessions(limit, offset int) ([]models.Session, int64, error) {
	var sessions []models.Session
	var total int64

	if err := r.db.Model(&models.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	result := r.db.Order("start_time DESC").Limit(limit).Offset(offset).Find(&sessions)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return sessions, total, nil
}

// GetSessionByID holt eine Sitzung, optional mit allen Einträgen.
// Gibt nil zurück, wenn die Sitzung nicht existiert.
func (r *SQLiteRepository) GetSessionByID(id string, withRecords bool) (*models.Session, error) {
	var s models.Session
	q := r.db
	if withRecords {
		q = q.Preload("Records", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		})
	}
	if err := q.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// DeleteSession löscht eine Sitzung samt Einträgen
func (r *SQLiteRepository) DeleteSession(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Record{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Session{}, "id = ?", id).Error
	})
}

// DeleteSessionsBefore löscht abgeschlossene Sitzungen, die vor t begonnen haben,
// und gibt sie zurück, damit die Dateien entfernt werden können
func (r *SQLiteRepository) DeleteSessionsBefore(t time.Time) ([]models.Session, error) {
	var old []models.Session
	if err := r.db.Where("start_time < ? AND end_time IS NOT NULL", t).Find(&old).Error; err != nil {
		return nil, err
	}
	for _, s := range old {
		if err := r.DeleteSession(s.ID); err != nil {
			return nil, fmt.Errorf("failed to delete session %s: %w", s.ID, err)
		}
	}
	return old, nil
}

// GetStatistics gibt Statistiken über die gespeicherten Sitzungen zurück
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	stats := models.Statistics{EmotionCounts: make(map[string]int64)}

	if err := r.db.Model(&models.Session{}).Count(&stats.TotalSessions).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Session{}).Where("end_time IS NULL").Count(&stats.ActiveSessions).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Record{}).Count(&stats.TotalRecords).Error; err != nil {
		return stats, err
	}

	var rows []struct {
		Emotion string
		Count   int64
	}
	if err := r.db.Model(&models.Record{}).Select("emotion, count(*) as count").Group("emotion").Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, row := range rows {
		stats.EmotionCounts[row.Emotion] = row.Count
	}

	var last models.Session
	if err := r.db.Order("start_time DESC").Limit(1).Find(&last).Error; err != nil {
		return stats, err
	}
	if last.ID != "" {
		t := last.StartTime
		stats.LastSessionTime = &t
	}
	return stats, nil
}
