package provider

import (
	"context"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/deepface"
	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/dlib"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"
	"emotion-cam-go/internal/integrations/pigo"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für die Detektor-Fabrik
var logFields = log.Fields{
	"component": "provider",
}

// Constructor erstellt einen Detektor unter einem festen Namen
type Constructor struct {
	Name  string
	Build func() []detector.Detector
}

func single(d detector.Detector) []detector.Detector {
	return []detector.Detector{d}
}

// Constructors liefert die eingebauten Detektoren in Prioritätsreihenfolge.
// Die Konstruktoren werden erst bei Bedarf aufgerufen.
func Constructors(ctx context.Context, cfg *config.Config, ocv *opencv.Service) []Constructor {
	dc := cfg.Detectors

	ctors := []Constructor{
		{emotion.NameFER, func() []detector.Detector { return single(ocv.FER()) }},
	}

	for _, model := range cfg.DeepFace.Models {
		model := model
		name, ok := deepface.NameFor(model)
		if !ok {
			log.WithFields(logFields).Warnf("Ignoring unsupported DeepFace model %q", model)
			continue
		}
		ctors = append(ctors, Constructor{name, func() []detector.Detector {
			dfCfg := cfg.DeepFace
			dfCfg.Models = []string{model}
			return deepface.Detectors(ctx, dfCfg)
		}})
	}

	ctors = append(ctors,
		Constructor{emotion.NamePigoHeuristics, func() []detector.Detector {
			d, err := pigo.NewHeuristicsDetector(dc)
			if err != nil {
				return single(detector.NewUnavailable(emotion.NamePigoHeuristics, emotion.CapabilityLandmarks, err))
			}
			return single(d)
		}},
		Constructor{emotion.NameYuNetLandmarks, func() []detector.Detector { return single(ocv.YuNet()) }},
		Constructor{emotion.NamePigoLandmarks, func() []detector.Detector {
			d, err := pigo.NewLandmarksDetector(dc)
			if err != nil {
				return single(detector.NewUnavailable(emotion.NamePigoLandmarks, emotion.CapabilityLandmarks, err))
			}
			return single(d)
		}},
		Constructor{emotion.NameDlibHOG, func() []detector.Detector {
			d, err := dlib.NewDetector(dc)
			if err != nil {
				return single(detector.NewUnavailable(emotion.NameDlibHOG, emotion.CapabilityLandmarks, err))
			}
			return single(d)
		}},
		Constructor{emotion.NameSimpleCNN, func() []detector.Detector { return single(ocv.SimpleCNN()) }},
		Constructor{emotion.NameOpenCVBasic, func() []detector.Detector { return single(ocv.Basic()) }},
	)
	return ctors
}

// Build ruft die Konstruktoren auf, die nicht per Konfiguration abgeschaltet sind,
// und registriert die Ergebnisse in einem Manager
func Build(ctors []Constructor, dc config.DetectorsConfig) *detector.Manager {
	var detectors []detector.Detector
	for _, c := range ctors {
		if dc.IsDetectorDisabled(c.Name) {
			log.WithFields(logFields).Infof("Detector %s disabled by configuration", c.Name)
			continue
		}
		detectors = append(detectors, c.Build()...)
	}
	return detector.NewManager(detectors...)
}

// CreateManager erstellt den Detektor-Manager basierend auf der Konfiguration.
// Ein "Refresh" ruft CreateManager erneut auf und schließt den alten Manager.
func CreateManager(ctx context.Context, cfg *config.Config, ocv *opencv.Service) *detector.Manager {
	m := Build(Constructors(ctx, cfg, ocv), cfg.Detectors)

	if m.Len() == 0 {
		log.WithFields(logFields).Warn("No emotion detector available, check the model paths")
	} else if cfg.Detectors.Default != "" && !m.Has(cfg.Detectors.Default) {
		log.WithFields(logFields).Warnf("Configured default detector '%s' is not available, using '%s'",
			cfg.Detectors.Default, m.Default())
	}
	return m
}
