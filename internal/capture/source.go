package capture

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Kind ist die Art einer Videoquelle
type Kind string

const (
	KindIndex   Kind = "index"
	KindFile    Kind = "file"
	KindNetwork Kind = "network"
)

// videoExtensions sind die Dateiendungen, die als lokale Videodatei gelten
var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
}

var networkSchemes = []string{"http://", "https://", "rtsp://", "rtmp://"}

var leadingInt = regexp.MustCompile(`^\D*?(\d+)`)

// Source ist eine aufgelöste Videoquelle
type Source struct {
	Kind   Kind   `json:"kind"`
	Index  int    `json:"index"`
	Target string `json:"target,omitempty"` // Dateipfad oder URL
}

func (s Source) String() string {
	if s.Kind == KindIndex {
		return fmt.Sprintf("camera %d", s.Index)
	}
	return s.Target
}

// ResolveSource bestimmt die Art einer Quellangabe: Zahl → Kameraindex,
// bekannte Videoendung → Datei, http/https/rtsp/rtmp → Netzwerkstream,
// sonst die erste Zahl im Text als Index (Standard 0).
func ResolveSource(raw string) Source {
	s := strings.TrimSpace(raw)

	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return Source{Kind: KindIndex, Index: n}
	}

	if videoExtensions[strings.ToLower(filepath.Ext(s))] {
		return Source{Kind: KindFile, Target: s}
	}

	lower := strings.ToLower(s)
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return Source{Kind: KindNetwork, Target: s}
		}
	}

	if m := leadingInt.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Source{Kind: KindIndex, Index: n}
		}
	}
	return Source{Kind: KindIndex, Index: 0}
}

// FrameSource liefert Einzelbilder, z.B. eine gocv.VideoCapture
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener öffnet eine Videoquelle
type Opener func(src Source) (FrameSource, error)

// OpenDevice öffnet Kamera, Datei oder Stream über OpenCV
func OpenDevice(src Source) (FrameSource, error) {
	var device interface{} = src.Target
	if src.Kind == KindIndex {
		device = src.Index
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video source %s could not be opened", src)
	}
	return vc, nil
}
