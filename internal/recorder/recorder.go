package recorder

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emotion-cam-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DefaultCodec wird für unbekannte Dateiendungen verwendet
const DefaultCodec = "XVID"

// codecs ordnet Dateiendungen einen FourCC-Code zu
var codecs = map[string]string{
	"mp4": "mp4v",
	"mov": "mp4v",
	"avi": "XVID",
	"mkv": "XVID",
}

// ErrAlreadyRecording wird zurückgegeben, wenn bereits eine Aufnahme läuft
var ErrAlreadyRecording = errors.New("recording already active")

var logFields = log.Fields{"component": "recorder"}

// CodecForFile wählt den Codec anhand der Dateiendung
func CodecForFile(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if codec, ok := codecs[ext]; ok {
		return codec
	}
	return DefaultCodec
}

// DefaultFilename erzeugt einen Dateinamen aus dem Zeitstempel
func DefaultFilename(t time.Time) string {
	return "emotion_recording_" + timezone.FileStamp(t) + ".mp4"
}

// Sink nimmt die Bilder einer Aufnahme entgegen
type Sink interface {
	Write(img gocv.Mat) error
	Close() error
}

// SinkOpener öffnet eine Ausgabe für die Aufnahme
type SinkOpener func(filename, codec string, fps float64, size image.Point) (Sink, error)

// OpenVideoWriter öffnet eine Videodatei über OpenCV
func OpenVideoWriter(filename, codec string, fps float64, size image.Point) (Sink, error) {
	vw, err := gocv.VideoWriterFile(filename, codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, err
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer for %s could not be opened", filename)
	}
	return vw, nil
}

// Info beschreibt die laufende Aufnahme
type Info struct {
	Recording       bool      `json:"is_recording"`
	Filename        string    `json:"filename,omitempty"`
	Codec           string    `json:"codec,omitempty"`
	StartTime       time.Time `json:"start_time,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	FrameCount      int       `json:"frame_count"`
}

// Recorder schreibt annotierte Bilder in eine Videodatei.
// WriteFrame skaliert nicht, die Bildgröße muss zur Aufnahme passen.
type Recorder struct {
	mu     sync.Mutex
	opener SinkOpener
	now    func() time.Time

	sink     Sink
	filename string
	codec    string
	started  time.Time
	frames   int
}

// New erstellt einen Recorder. Ohne opener wird OpenVideoWriter verwendet.
func New(opener SinkOpener) *Recorder {
	if opener == nil {
		opener = OpenVideoWriter
	}
	return &Recorder{opener: opener, now: timezone.Now}
}

// Start öffnet die Ausgabe. Bei einem Fehler bleibt der Recorder im Leerlauf.
func (r *Recorder) Start(filename string, fps float64, size image.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink != nil {
		return ErrAlreadyRecording
	}
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %v", fps)
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", size.X, size.Y)
	}

	codec := CodecForFile(filename)
	sink, err := r.opener(filename, codec, fps, size)
	if err != nil {
		return fmt.Errorf("failed to open video sink %s: %w", filename, err)
	}

	r.sink = sink
	r.filename = filename
	r.codec = codec
	r.started = r.now()
	r.frames = 0

	log.WithFields(logFields).Infof("Started recording %s (%s, %.1f fps, %dx%d)", filename, codec, fps, size.X, size.Y)
	return nil
}

// WriteFrame hängt ein Bild an die Aufnahme an. Im Leerlauf passiert nichts.
func (r *Recorder) WriteFrame(frame gocv.Mat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink == nil {
		return
	}
	if err := r.sink.Write(frame); err != nil {
		log.WithFields(logFields).Warnf("Failed to write frame: %v", err)
		return
	}
	r.frames++
}

// Stop schließt die Ausgabe und setzt die Zähler zurück. Mehrfacher Aufruf ist erlaubt.
func (r *Recorder) Stop() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink == nil {
		return Info{}
	}

	info := r.infoLocked()
	if err := r.sink.Close(); err != nil {
		log.WithFields(logFields).Warnf("Failed to close video sink: %v", err)
	}
	log.WithFields(logFields).Infof("Stopped recording %s after %.1fs, %d frames", r.filename, info.DurationSeconds, r.frames)

	r.sink = nil
	r.started = time.Time{}
	r.frames = 0
	info.Recording = false
	return info
}

// IsRecording prüft, ob gerade aufgenommen wird
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink != nil
}

// FrameCount gibt die Anzahl der geschriebenen Bilder zurück
func (r *Recorder) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Filename gibt den Dateinamen der aktuellen oder letzten Aufnahme zurück
func (r *Recorder) Filename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filename
}

// Info gibt Informationen zur laufenden Aufnahme zurück
func (r *Recorder) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return Info{}
	}
	return r.infoLocked()
}

func (r *Recorder) infoLocked() Info {
	return Info{
		Recording:       true,
		Filename:        r.filename,
		Codec:           r.codec,
		StartTime:       r.started,
		DurationSeconds: r.now().Sub(r.started).Seconds(),
		FrameCount:      r.frames,
	}
}
