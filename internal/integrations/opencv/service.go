package opencv

import (
	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"

	log "github.com/sirupsen/logrus"
)

// Service bündelt die OpenCV-Detektoren und den Puffer der Vorschaubilder
type Service struct {
	cfg       config.DetectorsConfig
	Snapshots *SnapshotBuffer
}

// NewService erstellt einen neuen OpenCV-Service
func NewService(cfg config.DetectorsConfig, snapshotBuffer int) *Service {
	backend, target := getGPUBackend(cfg)
	log.WithFields(log.Fields{
		"component": "opencv",
		"backend":   backend,
		"target":    target,
	}).Debug("OpenCV service created")

	return &Service{
		cfg:       cfg,
		Snapshots: NewSnapshotBuffer(snapshotBuffer),
	}
}

// FER erstellt den FER-Detektor oder einen nicht verfügbaren Platzhalter
func (s *Service) FER() detector.Detector {
	d, err := NewFERDetector(s.cfg)
	if err != nil {
		return detector.NewUnavailable(emotion.NameFER, emotion.CapabilityLandmarks, err)
	}
	return d
}

// YuNet erstellt den YuNet-Landmarken-Detektor
func (s *Service) YuNet() detector.Detector {
	d, err := NewYuNetDetector(s.cfg)
	if err != nil {
		return detector.NewUnavailable(emotion.NameYuNetLandmarks, emotion.CapabilityLandmarks, err)
	}
	return d
}

// SimpleCNN erstellt den CNN-Detektor mit Heuristik-Fallback
func (s *Service) SimpleCNN() detector.Detector {
	d, err := NewSimpleCNNDetector(s.cfg)
	if err != nil {
		return detector.NewUnavailable(emotion.NameSimpleCNN, emotion.CapabilityLandmarks, err)
	}
	return d
}

// Basic erstellt den reinen Gesichtsfinder
func (s *Service) Basic() detector.Detector {
	d, err := NewBasicDetector(s.cfg)
	if err != nil {
		return detector.NewUnavailable(emotion.NameOpenCVBasic, emotion.CapabilityBoundingBox, err)
	}
	return d
}
