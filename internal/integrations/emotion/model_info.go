package emotion

// Namen der eingebauten Detektoren in Registrierungsreihenfolge
const (
	NameFER              = "FER (Fast)"
	NameDeepFaceVGG      = "DeepFace - VGG-Face"
	NameDeepFaceFacenet  = "DeepFace - Facenet"
	NameDeepFaceOpenFace = "DeepFace - OpenFace"
	NamePigoHeuristics   = "Pigo + Heuristics"
	NameYuNetLandmarks   = "YuNet + Landmarks"
	NamePigoLandmarks    = "Pigo + Landmarks"
	NameDlibHOG          = "Dlib + HOG Features"
	NameSimpleCNN        = "Simple CNN"
	NameOpenCVBasic      = "OpenCV Basic"
)

// ModelInfo enthält die statische Beschreibung eines Detektors
type ModelInfo struct {
	Description string `json:"description"`
	Accuracy    string `json:"accuracy"`
	Speed       string `json:"speed"`
}

var modelInfos = map[string]ModelInfo{
	NameFER:              {"FER+ ONNX network on SSD face crops, fastest realtime option", "Medium", "Very Fast"},
	NameDeepFaceVGG:      {"DeepFace service with VGG-Face backend", "High", "Slow"},
	NameDeepFaceFacenet:  {"DeepFace service with Facenet backend, balanced", "High", "Medium"},
	NameDeepFaceOpenFace: {"DeepFace service with OpenFace backend, lightweight", "Medium", "Fast"},
	NamePigoHeuristics:   {"Pigo face finder with regional brightness heuristics", "Medium", "Fast"},
	NameYuNetLandmarks:   {"YuNet face detector with five facial landmarks", "Medium-High", "Medium"},
	NamePigoLandmarks:    {"Pigo pupil and landmark cascades with facial ratio heuristics", "High", "Medium"},
	NameDlibHOG:          {"dlib face detection with HOG feature statistics", "Medium", "Fast"},
	NameSimpleCNN:        {"Small 48x48 CNN, intensity heuristics as fallback", "Medium", "Fast"},
	NameOpenCVBasic:      {"Haar cascade face detection only", "Low", "Very Fast"},
}

// InfoFor liefert die Beschreibung eines Detektors oder einen leeren Wert
func InfoFor(name string) ModelInfo {
	return modelInfos[name]
}
