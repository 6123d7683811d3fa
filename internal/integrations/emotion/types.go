package emotion

import (
	"image"
	"strings"
)

// Label ist ein Emotions- oder Statuswert eines Erkennungsergebnisses
type Label string

// Emotionsvokabular
const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
	Disgust  Label = "disgust"
)

// Statuswerte, die kein Emotionsergebnis darstellen
const (
	// NoModel: das Backend des Detektors ist nicht geladen
	NoModel Label = "no_model"
	// NoFace: im Bild wurde kein Gesicht gefunden
	NoFace Label = "no_face"
	// Error: die Erkennung ist für dieses Bild fehlgeschlagen
	Error Label = "error"
	// UnknownDetector: der angefragte Detektorname ist nicht registriert
	UnknownDetector Label = "unknown_detector"
	// FaceDetected: Gesicht gefunden, der Detektor klassifiziert aber keine Emotion
	FaceDetected Label = "face_detected"
)

// Vocabulary enthält alle Emotionen in fester Reihenfolge
var Vocabulary = []Label{Happy, Sad, Angry, Fear, Surprise, Neutral, Disgust}

// IsEmotion prüft, ob das Label zum Emotionsvokabular gehört
func (l Label) IsEmotion() bool {
	for _, v := range Vocabulary {
		if v == l {
			return true
		}
	}
	return false
}

// IsSentinel prüft, ob das Label einen Fehler- oder Leerzustand beschreibt
func (l Label) IsSentinel() bool {
	switch l {
	case NoModel, NoFace, Error, UnknownDetector:
		return true
	}
	return false
}

func (l Label) String() string {
	return string(l)
}

// ParseLabel bildet die Bezeichnungen externer Modelle auf das eigene Vokabular ab.
// Unbekannte Werte werden unverändert (kleingeschrieben) übernommen.
func ParseLabel(s string) Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "happy", "happiness":
		return Happy
	case "sad", "sadness":
		return Sad
	case "angry", "anger":
		return Angry
	case "fear", "fearful", "scared":
		return Fear
	case "surprise", "surprised":
		return Surprise
	case "neutral":
		return Neutral
	case "disgust", "disgusted", "contempt":
		return Disgust
	}
	return Label(strings.ToLower(strings.TrimSpace(s)))
}

// FaceBox beschreibt ein Gesicht in Bildkoordinaten (oben links / unten rechts)
type FaceBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// FaceBoxFromRect erstellt eine FaceBox aus einem Rechteck und korrigiert vertauschte Ecken
func FaceBoxFromRect(r image.Rectangle) FaceBox {
	r = r.Canon()
	return FaceBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Rect liefert die FaceBox als image.Rectangle
func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Width gibt die Breite der Box zurück
func (b FaceBox) Width() int { return b.X2 - b.X1 }

// Height gibt die Höhe der Box zurück
func (b FaceBox) Height() int { return b.Y2 - b.Y1 }

// Result ist das Ergebnis einer Erkennung auf einem einzelnen Bild
type Result struct {
	Emotion    Label     `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Faces      []FaceBox `json:"faces"`
}

// FaceCount gibt die Anzahl der erkannten Gesichter zurück
func (r Result) FaceCount() int {
	return len(r.Faces)
}

// Normalize begrenzt die Konfidenz auf [0,1] und stellt eine nicht-nil Gesichtsliste sicher
func (r Result) Normalize() Result {
	if r.Confidence < 0 || r.Confidence != r.Confidence {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.Faces == nil {
		r.Faces = []FaceBox{}
	}
	if r.Emotion.IsSentinel() {
		r.Confidence = 0
	}
	return r
}

func sentinel(l Label) Result {
	return Result{Emotion: l, Confidence: 0, Faces: []FaceBox{}}
}

// Unavailable ist das Ergebnis eines Detektors ohne geladenes Backend
func Unavailable() Result { return sentinel(NoModel) }

// NoFaceFound ist das Ergebnis für ein Bild ohne Gesicht
func NoFaceFound() Result { return sentinel(NoFace) }

// Failed ist das Ergebnis einer fehlgeschlagenen Erkennung
func Failed() Result { return sentinel(Error) }

// Unknown ist das Ergebnis für einen nicht registrierten Detektornamen
func Unknown() Result { return sentinel(UnknownDetector) }

// Capability beschreibt, welche Informationen ein Detektor auswertet
type Capability string

const (
	// CapabilityLandmarks: Klassifikation anhand von Gesichtspunkten oder Modellen
	CapabilityLandmarks Capability = "landmarks"
	// CapabilityBoundingBox: nur Gesichtsrahmen
	CapabilityBoundingBox Capability = "bbox"
)

// Descriptor beschreibt einen registrierten Detektor. Unveränderlich nach dem Aufbau der Registry.
type Descriptor struct {
	Name       string     `json:"name"`
	Available  bool       `json:"available"`
	Capability Capability `json:"capability"`
	Info       ModelInfo  `json:"info"`
}
