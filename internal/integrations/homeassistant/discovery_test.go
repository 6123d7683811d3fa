package homeassistant

import (
	"encoding/json"
	"errors"
	"testing"
)

type recordingSender struct {
	topics   []string
	payloads []interface{}
	retained int
	err      error
}

func (s *recordingSender) PublishMessage(topic string, payload interface{}, retain bool) error {
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
	if retain {
		s.retained++
	}
	return nil
}

func TestDiscoveryRegister(t *testing.T) {
	s := &recordingSender{}
	d := NewDiscovery(s, "emotion-cam", "", "0.1.0")

	if err := d.Register(); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if len(s.topics) != 4 || s.retained != 4 {
		t.Fatalf("published %d (retained %d), want 4", len(s.topics), s.retained)
	}

	want := "homeassistant/sensor/emotion_cam/emotion/config"
	found := false
	for i, topic := range s.topics {
		if topic != want {
			continue
		}
		found = true
		cfg := s.payloads[i].(SensorConfig)
		if cfg.StateTopic != "emotion-cam/emotion" || cfg.AvailabilityTopic != "emotion-cam/status" {
			t.Errorf("emotion sensor topics = %+v", cfg)
		}
		data, _ := json.Marshal(cfg)
		var m map[string]interface{}
		json.Unmarshal(data, &m)
		if m["unique_id"] != "emotion_cam_emotion" {
			t.Errorf("unique_id = %v", m["unique_id"])
		}
	}
	if !found {
		t.Errorf("missing %s in %v", want, s.topics)
	}
}

func TestDiscoveryUnregister(t *testing.T) {
	s := &recordingSender{}
	d := NewDiscovery(s, "cam", "ha", "")
	if err := d.Unregister(); err != nil {
		t.Fatal(err)
	}
	for i, p := range s.payloads {
		if p != "" {
			t.Errorf("%s: payload %v, want empty", s.topics[i], p)
		}
	}
	if d.ConfigTopic("x") != "ha/sensor/cam/x/config" {
		t.Errorf("ConfigTopic = %s", d.ConfigTopic("x"))
	}
}

func TestDiscoveryRegisterError(t *testing.T) {
	d := NewDiscovery(&recordingSender{err: errors.New("not connected")}, "", "", "")
	if err := d.Register(); err == nil {
		t.Error("expected error")
	}
}
