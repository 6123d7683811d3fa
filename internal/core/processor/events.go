package processor

import (
	"time"

	"emotion-cam-go/internal/integrations/emotion"
)

// Broadcaster verteilt serialisierte Ereignisse an verbundene Clients (SSE, WebSocket)
type Broadcaster interface {
	Broadcast(message []byte)
}

// ResultPublisher veröffentlicht Erkennungsergebnisse nach außen (MQTT)
type ResultPublisher interface {
	PublishResult(detector string, res emotion.Result, at time.Time) bool
}

// DetectionEvent ist die Nutzlast, die pro Bild an die Clients geht
type DetectionEvent struct {
	Type       string            `json:"type"`
	Frame      uint64            `json:"frame"`
	Detector   string            `json:"detector"`
	Emotion    emotion.Label     `json:"emotion"`
	Confidence float64           `json:"confidence"`
	Faces      []emotion.FaceBox `json:"faces"`
	FaceCount  int               `json:"face_count"`
	Recording  bool              `json:"recording"`
	Logging    bool              `json:"logging"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Ereignistypen
const (
	EventDetection = "detection"
	EventStream    = "stream"
	EventRecording = "recording"
)

// StateEvent meldet Zustandswechsel von Stream und Aufnahme
type StateEvent struct {
	Type      string      `json:"type"`
	State     string      `json:"state"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
