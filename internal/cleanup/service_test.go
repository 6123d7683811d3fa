package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emotion-cam-go/internal/core/models"
)

type fakePruner struct {
	cutoff   time.Time
	sessions []models.Session
	err      error
}

func (p *fakePruner) DeleteSessionsBefore(t time.Time) ([]models.Session, error) {
	p.cutoff = t
	return p.sessions, p.err
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestNewServiceDisabled(t *testing.T) {
	if s := NewService(nil, 0, time.Hour); s != nil {
		t.Error("retention 0 must disable the service")
	}
	var s *Service
	s.StartBackgroundCleanup()
	s.StopBackgroundCleanup()
	if res := s.RunCleanupCycle(); res != (Result{}) {
		t.Errorf("nil service cleaned %+v", res)
	}
}

func TestRunCleanupCycle(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	sessDir := filepath.Join(dir, "output")
	recDir := filepath.Join(dir, "recordings")
	os.MkdirAll(sessDir, 0755)
	os.MkdirAll(recDir, 0755)

	old := now.AddDate(0, 0, -10)
	fresh := now.Add(-time.Hour)

	csvPath := filepath.Join(sessDir, "s1.csv")
	jsonPath := filepath.Join(sessDir, "s1.json")
	touch(t, csvPath, fresh) // gehört zur alten Sitzung, wird trotz Datum gelöscht
	touch(t, jsonPath, fresh)

	oldVideo := filepath.Join(recDir, "old.mp4")
	newVideo := filepath.Join(recDir, "new.mp4")
	touch(t, oldVideo, old)
	touch(t, newVideo, fresh)

	pruner := &fakePruner{sessions: []models.Session{{
		ID:          "s1",
		CSVPath:     csvPath,
		JSONPath:    jsonPath,
		SummaryPath: filepath.Join(sessDir, "missing.txt"),
	}}}

	s := NewService(pruner, 7, time.Hour, sessDir, recDir, filepath.Join(dir, "does-not-exist"))
	s.now = func() time.Time { return now }

	res := s.RunCleanupCycle()

	if want := now.AddDate(0, 0, -7); !pruner.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", pruner.cutoff, want)
	}
	if res.Sessions != 1 || res.Files != 3 || res.Failed != 0 {
		t.Errorf("result = %+v, want 1 session, 3 files", res)
	}
	if exists(csvPath) || exists(jsonPath) || exists(oldVideo) {
		t.Error("old files must be deleted")
	}
	if !exists(newVideo) {
		t.Error("recent recording must be kept")
	}
}

func TestRunCleanupCyclePrunerError(t *testing.T) {
	s := NewService(&fakePruner{err: errors.New("db locked")}, 1, time.Hour)
	if res := s.RunCleanupCycle(); res.Failed != 1 {
		t.Errorf("result = %+v, want one failure", res)
	}
}
