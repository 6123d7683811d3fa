package repository

import (
	"encoding/json"
	"testing"
	"time"

	"emotion-cam-go/internal/db"
	"emotion-cam-go/internal/session"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSQLiteRepository(conn)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newRepo(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.BeginSession("s1", "demo", start, session.Files{CSV: "a.csv"}); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	records := []session.Record{
		{TimeElapsed: 1, Emotion: "happy", Confidence: 0.8, ModelUsed: "FER (Fast)", FaceCount: 1},
		{TimeElapsed: 2, Emotion: "happy", Confidence: 0.6, ModelUsed: "FER (Fast)", FaceCount: 1},
		{TimeElapsed: 3, Emotion: "sad", Confidence: 0.8, ModelUsed: "FER (Fast)", FaceCount: 2},
	}
	for i, r := range records {
		if err := repo.AppendRecord("s1", start.Add(time.Duration(i+1)*time.Second), r); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	stats, err := repo.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.ActiveSessions != 1 || stats.TotalRecords != 3 || stats.EmotionCounts["happy"] != 2 {
		t.Errorf("stats while active = %+v", stats)
	}

	summary := session.Summarize(records, 4)
	if err := repo.FinishSession("s1", start.Add(4*time.Second), summary); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	s, err := repo.GetSessionByID("s1", true)
	if err != nil || s == nil {
		t.Fatalf("GetSessionByID: %v %v", s, err)
	}
	if s.EndTime == nil || s.DurationSeconds != 4 || s.TotalRecords != 3 || s.MostCommonEmotion != "happy" {
		t.Errorf("finished session = %+v", s)
	}
	if len(s.Records) != 3 || s.Records[2].Emotion != "sad" || s.CSVPath != "a.csv" {
		t.Errorf("records = %+v", s.Records)
	}

	var stored map[string]interface{}
	if err := json.Unmarshal(s.Summary, &stored); err != nil || stored["most_common_emotion"] != "happy" {
		t.Errorf("stored summary = %s", s.Summary)
	}
}

func TestGetSessionMissing(t *testing.T) {
	repo := newRepo(t)
	s, err := repo.GetSessionByID("nope", false)
	if err != nil || s != nil {
		t.Errorf("missing session = %v, %v", s, err)
	}
	if err := repo.FinishSession("nope", time.Now(), session.Summary{}); err == nil {
		t.Error("finishing an unknown session should fail")
	}
}

func TestPaginationAndRetention(t *testing.T) {
	repo := newRepo(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		if err := repo.BeginSession(id, id, start, session.Files{}); err != nil {
			t.Fatal(err)
		}
		if err := repo.AppendRecord(id, start, session.Record{Emotion: "neutral"}); err != nil {
			t.Fatal(err)
		}
		if id != "mid" {
			if err := repo.FinishSession(id, start.Add(time.Minute), session.Summary{}); err != nil {
				t.Fatal(err)
			}
		}
	}

	page, total, err := repo.GetSessions(2, 0)
	if err != nil || total != 3 || len(page) != 2 || page[0].ID != "new" {
		t.Fatalf("GetSessions = %v %d %v", page, total, err)
	}

	deleted, err := repo.DeleteSessionsBefore(base.Add(36 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteSessionsBefore: %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != "old" {
		t.Errorf("deleted = %+v (running sessions must be kept)", deleted)
	}

	stats, _ := repo.GetStatistics()
	if stats.TotalSessions != 2 || stats.TotalRecords != 2 {
		t.Errorf("stats after cleanup = %+v", stats)
	}
	if stats.LastSessionTime == nil || !stats.LastSessionTime.Equal(base.Add(48*time.Hour)) {
		t.Errorf("last session time = %v", stats.LastSessionTime)
	}
}
