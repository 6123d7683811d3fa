package mqtt

import (
	"sync"
	"time"

	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/session"

	log "github.com/sirupsen/logrus"
)

// Sender ist die Schnittstelle zum Broker
type Sender interface {
	PublishMessage(topic string, payload interface{}, retain bool) error
}

// ResultMessage ist die Nutzlast auf <topic>/emotion
type ResultMessage struct {
	Emotion    emotion.Label `json:"emotion"`
	Confidence float64       `json:"confidence"`
	FaceCount  int           `json:"face_count"`
	Detector   string        `json:"detector"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SessionMessage ist die Nutzlast auf <topic>/session
type SessionMessage struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Summary session.Summary `json:"summary"`
}

// Publisher veröffentlicht Erkennungsergebnisse, aber nur wenn sich die Emotion
// oder die Gesichtsanzahl ändert
type Publisher struct {
	sender    Sender
	base      string
	mu        sync.Mutex
	lastLabel emotion.Label
	lastFaces int
	started   bool
}

// NewPublisher erstellt einen Publisher für das Basis-Topic
func NewPublisher(sender Sender, baseTopic string) *Publisher {
	return &Publisher{sender: sender, base: baseTopic}
}

// PublishResult veröffentlicht ein Ergebnis bei Änderung. Gibt true zurück, wenn gesendet wurde.
func (p *Publisher) PublishResult(detector string, res emotion.Result, at time.Time) bool {
	p.mu.Lock()
	changed := !p.started || res.Emotion != p.lastLabel || res.FaceCount() != p.lastFaces
	if changed {
		p.started = true
		p.lastLabel = res.Emotion
		p.lastFaces = res.FaceCount()
	}
	p.mu.Unlock()

	if !changed {
		return false
	}

	msg := ResultMessage{
		Emotion:    res.Emotion,
		Confidence: res.Confidence,
		FaceCount:  res.FaceCount(),
		Detector:   detector,
		Timestamp:  at,
	}
	if err := p.sender.PublishMessage(topicFor(p.base, "emotion"), msg, false); err != nil {
		log.WithFields(logFields).Debugf("Failed to publish result: %v", err)
		return false
	}
	return true
}

// PublishSession veröffentlicht die Zusammenfassung einer beendeten Sitzung (retained)
func (p *Publisher) PublishSession(id, name string, summary session.Summary) error {
	return p.sender.PublishMessage(topicFor(p.base, "session"), SessionMessage{ID: id, Name: name, Summary: summary}, true)
}

// Reset vergisst das zuletzt gesendete Ergebnis, z.B. nach einem Kamerawechsel
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}
