package pigo

import (
	"fmt"
	"os"
	"path/filepath"

	"emotion-cam-go/config"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	pigo "github.com/esimov/pigo/core"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const perturbs = 63

// Kaskaden der Gesichtspunkte. Ohne Spiegelung liefern sie die linke Gesichtshälfte.
const (
	lpEyeOuter   = "lp46"
	lpEyeTop     = "lp42"
	lpEyeInner   = "lp44"
	lpBrowOuter  = "lp38"
	lpBrowInner  = "lp312"
	lpMouthSide  = "lp84"
	lpMouthUpper = "lp82"
	lpMouthLower = "lp81"
)

var landmarkCascades = []string{
	lpEyeOuter, lpEyeTop, lpEyeInner, lpBrowOuter, lpBrowInner,
	lpMouthSide, lpMouthUpper, lpMouthLower,
}

// LandmarksDetector findet Pupillen und Gesichtspunkte mit den Pigo-Kaskaden und
// klassifiziert über Mundöffnung, Mundbreite und Brauenlage.
// Ohne Pupillen wird die Helligkeit der Gesichtsdrittel ausgewertet.
type LandmarksDetector struct {
	finder *finder
	puploc *pigo.PuplocCascade
	flpcs  map[string]*pigo.PuplocCascade
}

// NewLandmarksDetector lädt Facefinder, Pupillen- und Landmarken-Kaskaden
func NewLandmarksDetector(cfg config.DetectorsConfig) (*LandmarksDetector, error) {
	f, err := newFinder(cfg)
	if err != nil {
		return nil, err
	}

	puploc, err := unpackPuploc(cfg.PigoPuploc)
	if err != nil {
		return nil, err
	}

	flpcs := make(map[string]*pigo.PuplocCascade, len(landmarkCascades))
	for _, name := range landmarkCascades {
		c, err := unpackPuploc(filepath.Join(cfg.PigoLandmarks, name))
		if err != nil {
			return nil, fmt.Errorf("landmark cascade %s: %w", name, err)
		}
		flpcs[name] = c
	}

	log.Debugf("Pigo landmark detector loaded %d cascades from %s", len(flpcs), cfg.PigoLandmarks)
	return &LandmarksDetector{finder: f, puploc: puploc, flpcs: flpcs}, nil
}

func unpackPuploc(path string) (*pigo.PuplocCascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	c, err := pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade %s: %w", path, err)
	}
	return c, nil
}

func (d *LandmarksDetector) Name() string                   { return emotion.NamePigoLandmarks }
func (d *LandmarksDetector) IsAvailable() bool              { return d.finder != nil }
func (d *LandmarksDetector) Capability() emotion.Capability { return emotion.CapabilityLandmarks }

func (d *LandmarksDetector) Detect(frame gocv.Mat) emotion.Result {
	gray := opencv.GrayMat(frame)
	defer gray.Close()

	g := opencv.GrayPixels(gray)
	faces, fb := clip(d.finder.find(g), g)
	if len(fb) == 0 {
		return emotion.NoFaceFound()
	}

	img := imageParams(g)
	left, right := d.pupils(faces[0], img)
	if left == nil || right == nil {
		s := opencv.FaceThirds(gray, fb[0].Rect())
		label, conf := emotion.BrightnessEmotion(s.UpperMean, s.MiddleMean, s.LowerMean)
		return emotion.Result{Emotion: label, Confidence: conf, Faces: fb}
	}

	features, ok := d.features(left, right, img)
	if !ok {
		return emotion.Result{Emotion: emotion.Neutral, Confidence: 0.5, Faces: fb}
	}

	label, conf := emotion.FacialRatioEmotion(emotion.FacialRatios(features))
	return emotion.Result{Emotion: label, Confidence: conf, Faces: fb}
}

// pupils sucht beide Pupillen relativ zum Gesichtsmittelpunkt
func (d *LandmarksDetector) pupils(f Face, img pigo.ImageParams) (left, right *pigo.Puploc) {
	find := func(colSign int) *pigo.Puploc {
		p := pigo.Puploc{
			Row:      f.Row - int(0.085*float32(f.Scale)),
			Col:      f.Col + colSign*int(0.185*float32(f.Scale)),
			Scale:    float32(f.Scale) * 0.4,
			Perturbs: perturbs,
		}
		eye := d.puploc.RunDetector(p, img, 0.0, false)
		if eye == nil || eye.Row <= 0 || eye.Col <= 0 {
			return nil
		}
		return eye
	}
	return find(-1), find(1)
}

// point wertet eine Landmarken-Kaskade aus; flip liefert die rechte Gesichtshälfte
func (d *LandmarksDetector) point(name string, left, right *pigo.Puploc, img pigo.ImageParams, flip bool) (emotion.Point, bool) {
	p := d.flpcs[name].GetLandmarkPoint(left, right, img, perturbs, flip)
	if p == nil || p.Row <= 0 || p.Col <= 0 {
		return emotion.Point{}, false
	}
	return emotion.Point{X: float64(p.Col), Y: float64(p.Row)}, true
}

func (d *LandmarksDetector) features(left, right *pigo.Puploc, img pigo.ImageParams) (emotion.FacialFeatures, bool) {
	var f emotion.FacialFeatures
	ok := true
	get := func(name string, flip bool) emotion.Point {
		p, found := d.point(name, left, right, img, flip)
		ok = ok && found
		return p
	}

	f.MouthLeft = get(lpMouthSide, false)
	f.MouthRight = get(lpMouthSide, true)
	f.MouthTop = get(lpMouthUpper, false)
	f.MouthBottom = get(lpMouthLower, false)
	f.LeftEye = []emotion.Point{get(lpEyeOuter, false), get(lpEyeTop, false), get(lpEyeInner, false)}
	f.RightEye = []emotion.Point{get(lpEyeInner, true), get(lpEyeTop, true), get(lpEyeOuter, true)}
	f.LeftBrow = []emotion.Point{get(lpBrowOuter, false), get(lpBrowInner, false)}
	f.RightBrow = []emotion.Point{get(lpBrowInner, true), get(lpBrowOuter, true)}

	return f, ok
}

func (d *LandmarksDetector) Close() error {
	d.finder = nil
	d.puploc = nil
	d.flpcs = nil
	return nil
}
