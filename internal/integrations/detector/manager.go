package detector

import (
	"errors"
	"fmt"
	"sync"

	"emotion-cam-go/internal/integrations/emotion"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

type entry struct {
	mu       sync.Mutex // gocv-Netze sind nicht threadsicher
	detector Detector
}

// Manager hält alle verfügbaren Detektoren in Registrierungsreihenfolge.
// Nach NewManager werden keine Detektoren mehr hinzugefügt oder entfernt;
// ein "Refresh" erstellt einen neuen Manager.
type Manager struct {
	entries []*entry
	index   map[string]int
}

// NewManager registriert die Detektoren in der angegebenen Reihenfolge.
// Nicht verfügbare Detektoren werden verworfen. Bei gleichem Namen gewinnt die
// spätere Registrierung, behält aber die Position der ersten.
func NewManager(detectors ...Detector) *Manager {
	m := &Manager{index: make(map[string]int)}

	for _, d := range detectors {
		if d == nil {
			continue
		}
		name := d.Name()
		if !d.IsAvailable() {
			log.WithField("detector", name).Debug("Skipping unavailable detector")
			d.Close()
			continue
		}

		if i, exists := m.index[name]; exists {
			log.WithField("detector", name).Warn("Detector registered twice, replacing previous instance")
			if err := m.entries[i].detector.Close(); err != nil {
				log.WithField("detector", name).Warnf("Failed to close replaced detector: %v", err)
			}
			m.entries[i] = &entry{detector: d}
			continue
		}

		m.index[name] = len(m.entries)
		m.entries = append(m.entries, &entry{detector: d})
	}

	log.Infof("Detector manager ready with %d available detectors: %v", len(m.entries), m.AvailableNames())
	return m
}

// AvailableNames gibt die Namen aller registrierten Detektoren in Registrierungsreihenfolge zurück
func (m *Manager) AvailableNames() []string {
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.detector.Name())
	}
	return names
}

// Descriptors gibt die Deskriptoren aller registrierten Detektoren zurück
func (m *Manager) Descriptors() []emotion.Descriptor {
	descs := make([]emotion.Descriptor, 0, len(m.entries))
	for _, e := range m.entries {
		descs = append(descs, Describe(e.detector))
	}
	return descs
}

// Has prüft, ob ein Detektor mit diesem Namen registriert ist
func (m *Manager) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Get gibt den Detektor mit dem angegebenen Namen zurück
func (m *Manager) Get(name string) (Detector, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.entries[i].detector, true
}

// Default gibt den ersten registrierten Detektor zurück oder "" wenn keiner verfügbar ist
func (m *Manager) Default() string {
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[0].detector.Name()
}

// Resolve gibt name zurück, wenn er registriert ist, sonst den Standarddetektor
func (m *Manager) Resolve(name string) string {
	if m.Has(name) {
		return name
	}
	return m.Default()
}

// Detect leitet das Bild an den genannten Detektor weiter. Unbekannte Namen
// ergeben das Ergebnis unknown_detector, niemals einen Fehler.
func (m *Manager) Detect(name string, frame gocv.Mat) emotion.Result {
	i, ok := m.index[name]
	if !ok {
		return emotion.Unknown()
	}

	e := m.entries[i]
	e.mu.Lock()
	defer e.mu.Unlock()
	return SafeDetect(e.detector, frame)
}

// Len gibt die Anzahl der registrierten Detektoren zurück
func (m *Manager) Len() int {
	return len(m.entries)
}

// Close gibt alle Detektoren frei
func (m *Manager) Close() error {
	var errs []error
	for _, e := range m.entries {
		e.mu.Lock()
		if err := e.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.detector.Name(), err))
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}
