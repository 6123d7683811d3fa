package detector

import (
	"fmt"

	"emotion-cam-go/internal/integrations/emotion"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Detector definiert die Schnittstelle für Emotionserkennungs-Backends
type Detector interface {
	// Name gibt den eindeutigen Anzeigenamen des Detektors zurück
	Name() string

	// IsAvailable gibt an, ob das Backend bei der Erstellung geladen werden konnte.
	// Der Wert ändert sich danach nicht mehr.
	IsAvailable() bool

	// Capability beschreibt, ob der Detektor Emotionen klassifiziert oder nur Gesichter findet
	Capability() emotion.Capability

	// Detect analysiert ein einzelnes BGR-Bild. Nur das erste Gesicht bestimmt die Emotion,
	// alle Gesichter werden zurückgegeben.
	Detect(frame gocv.Mat) emotion.Result

	// Close gibt die Ressourcen des Backends frei
	Close() error
}

// SafeDetect ruft Detect mit den Garantien der Erkennungsgrenze auf: nicht verfügbare
// Detektoren werden nicht aufgerufen, leere Bilder und Panics ergeben ein Fehlerergebnis.
func SafeDetect(d Detector, frame gocv.Mat) (result emotion.Result) {
	if d == nil {
		return emotion.Unknown()
	}
	if !d.IsAvailable() {
		return emotion.Unavailable()
	}
	if frame.Empty() {
		return emotion.Failed()
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("detector", d.Name()).Errorf("Detection panicked: %v", r)
			result = emotion.Failed()
		}
	}()

	return d.Detect(frame).Normalize()
}

// Describe erstellt den Deskriptor eines Detektors inklusive Modellbeschreibung
func Describe(d Detector) emotion.Descriptor {
	return emotion.Descriptor{
		Name:       d.Name(),
		Available:  d.IsAvailable(),
		Capability: d.Capability(),
		Info:       emotion.InfoFor(d.Name()),
	}
}

// Unavailable ist ein Platzhalter für einen Detektor, dessen Backend nicht geladen werden konnte
type Unavailable struct {
	name       string
	capability emotion.Capability
	Reason     error
}

// NewUnavailable erstellt einen Platzhalter und protokolliert den Grund
func NewUnavailable(name string, capability emotion.Capability, reason error) *Unavailable {
	if reason == nil {
		reason = fmt.Errorf("backend not loaded")
	}
	log.WithField("detector", name).Warnf("Detector unavailable: %v", reason)
	return &Unavailable{name: name, capability: capability, Reason: reason}
}

func (u *Unavailable) Name() string                   { return u.name }
func (u *Unavailable) IsAvailable() bool              { return false }
func (u *Unavailable) Capability() emotion.Capability { return u.capability }
func (u *Unavailable) Detect(gocv.Mat) emotion.Result { return emotion.Unavailable() }
func (u *Unavailable) Close() error                   { return nil }
