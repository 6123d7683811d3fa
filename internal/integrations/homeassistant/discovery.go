package homeassistant

import (
	"fmt"
	"strings"

	"emotion-cam-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Konstanten für Home Assistant MQTT Discovery
const (
	// Discovery-Präfix für Home Assistant (Standard ist "homeassistant")
	DefaultPrefix = "homeassistant"

	// Component-Typ für Sensoren
	ComponentSensor = "sensor"
)

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	UnitOfMeasurement   string  `json:"unit_of_measurement,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Discovery meldet die Emotionssensoren bei Home Assistant an
type Discovery struct {
	sender    mqtt.Sender
	baseTopic string
	prefix    string
	nodeID    string
	version   string
}

// NewDiscovery erstellt die Discovery für das Basis-Topic der Ergebnisse
func NewDiscovery(sender mqtt.Sender, baseTopic, prefix, version string) *Discovery {
	if baseTopic == "" {
		baseTopic = "emotion-cam"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Discovery{
		sender:    sender,
		baseTopic: baseTopic,
		prefix:    prefix,
		nodeID:    strings.ReplaceAll(baseTopic, "-", "_"),
		version:   version,
	}
}

// Sensors liefert die Sensor-Konfigurationen, nach Objekt-ID
func (d *Discovery) Sensors() map[string]SensorConfig {
	device := &Device{
		Identifiers:  []string{d.nodeID},
		Name:         "Emotion Cam",
		Manufacturer: "emotion-cam-go",
		Model:        "Emotion Recognition",
		SWVersion:    d.version,
	}
	result := d.baseTopic + "/emotion"
	sessionTopic := d.baseTopic + "/session"

	sensor := func(name, id, state, tmpl, icon string) SensorConfig {
		return SensorConfig{
			Name:                name,
			UniqueID:            d.nodeID + "_" + id,
			StateTopic:          state,
			ValueTemplate:       tmpl,
			Icon:                icon,
			AvailabilityTopic:   d.baseTopic + "/status",
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			Device:              device,
		}
	}

	emotionSensor := sensor("Emotion", "emotion", result, "{{ value_json.emotion }}", "mdi:emoticon-outline")
	emotionSensor.JSONAttributesTopic = result

	confidence := sensor("Emotion Confidence", "confidence", result, "{{ (value_json.confidence * 100) | round(1) }}", "mdi:percent")
	confidence.UnitOfMeasurement = "%"

	lastSession := sensor("Last Session Emotion", "session_emotion", sessionTopic, "{{ value_json.summary.most_common_emotion | default('none') }}", "mdi:history")
	lastSession.JSONAttributesTopic = sessionTopic

	return map[string]SensorConfig{
		"emotion":         emotionSensor,
		"confidence":      confidence,
		"face_count":      sensor("Face Count", "face_count", result, "{{ value_json.face_count }}", "mdi:face-recognition"),
		"session_emotion": lastSession,
	}
}

// ConfigTopic bildet das Discovery-Topic eines Sensors
func (d *Discovery) ConfigTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", d.prefix, ComponentSensor, d.nodeID, objectID)
}

// Register veröffentlicht alle Sensor-Konfigurationen als retained Nachrichten
func (d *Discovery) Register() error {
	var failed []string
	for id, cfg := range d.Sensors() {
		if err := d.sender.PublishMessage(d.ConfigTopic(id), cfg, true); err != nil {
			log.Errorf("Failed to register Home Assistant sensor %s: %v", id, err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to publish discovery configuration for %s", strings.Join(failed, ", "))
	}
	log.Infof("Registered Home Assistant sensors under %s/%s/%s", d.prefix, ComponentSensor, d.nodeID)
	return nil
}

// Unregister entfernt die Sensoren durch leere retained Nachrichten
func (d *Discovery) Unregister() error {
	for id := range d.Sensors() {
		if err := d.sender.PublishMessage(d.ConfigTopic(id), "", true); err != nil {
			return fmt.Errorf("failed to remove sensor %s: %w", id, err)
		}
	}
	return nil
}
