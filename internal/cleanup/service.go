package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"emotion-cam-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// SessionPruner löscht beendete Sitzungen, die vor t begonnen haben
type SessionPruner interface {
	DeleteSessionsBefore(t time.Time) ([]models.Session, error)
}

// Result fasst einen Bereinigungslauf zusammen
type Result struct {
	Sessions int
	Files    int
	Failed   int
}

// Service handles the automatic cleanup of old sessions and recordings.
type Service struct {
	pruner        SessionPruner
	retentionDays int
	dirs          []string // Ausgabeverzeichnisse, deren alte Dateien entfernt werden
	checkInterval time.Duration
	now           func() time.Time
	stopChan      chan struct{}
}

// NewService creates a new cleanup service. pruner may be nil when sessions are
// not persisted; then only the directories are swept.
func NewService(pruner SessionPruner, retentionDays int, checkInterval time.Duration, dirs ...string) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	log.Infof("Initializing CleanupService: RetentionDays=%d, Dirs=%v, CheckInterval=%s", retentionDays, dirs, checkInterval)
	return &Service{
		pruner:        pruner,
		retentionDays: retentionDays,
		dirs:          dirs,
		checkInterval: checkInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the cleanup cycle.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		log.Info("Running initial cleanup check on startup...")
		s.RunCleanupCycle()

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("Running scheduled cleanup cycle...")
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background cleanup routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes sessions, their log files and recordings older than the retention period.
func (s *Service) RunCleanupCycle() Result {
	var res Result
	if s == nil || s.retentionDays <= 0 {
		log.Debug("Skipping cleanup cycle: service not initialized or cleanup disabled.")
		return res
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	log.Infof("Cleanup: Deleting data older than %s", cutoff.Format(time.RFC3339))

	if s.pruner != nil {
		sessions, err := s.pruner.DeleteSessionsBefore(cutoff)
		if err != nil {
			log.Errorf("Cleanup: Error deleting old sessions: %v", err)
			res.Failed++
		}
		for _, sess := range sessions {
			for _, path := range []string{sess.CSVPath, sess.JSONPath, sess.SummaryPath} {
				switch removeFile(path) {
				case nil:
					res.Files++
				case errSkipped:
				default:
					res.Failed++
				}
			}
		}
		res.Sessions = len(sessions)
	}

	for _, dir := range s.dirs {
		removed, failed := sweepDir(dir, cutoff)
		res.Files += removed
		res.Failed += failed
	}

	log.Infof("Cleanup cycle finished. Sessions: %d, Files: %d, Failed: %d", res.Sessions, res.Files, res.Failed)
	return res
}

var errSkipped = errors.New("skipped")

func removeFile(path string) error {
	if path == "" {
		return errSkipped
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errSkipped
		}
		log.Warnf("Cleanup: Failed to delete '%s': %v", path, err)
		return err
	}
	log.Debugf("Cleanup: Deleted '%s'", path)
	return nil
}

// sweepDir löscht reguläre Dateien direkt in dir, die vor cutoff zuletzt geändert wurden
func sweepDir(dir string, cutoff time.Time) (removed, failed int) {
	if dir == "" {
		return 0, 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnf("Cleanup: Cannot read directory '%s': %v", dir, err)
			failed++
		}
		return removed, failed
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		switch removeFile(filepath.Join(dir, e.Name())) {
		case nil:
			removed++
		case errSkipped:
		default:
			failed++
		}
	}
	return removed, failed
}
