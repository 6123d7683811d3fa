package opencv

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/util/timezone"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Snapshot ist ein annotiertes Vorschaubild mit Erkennungsdaten
type Snapshot struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Detector   string            `json:"detector"`
	Emotion    emotion.Label     `json:"emotion"`
	Confidence float64           `json:"confidence"`
	Faces      []emotion.FaceBox `json:"faces"`
	ImageData  []byte            `json:"-"`
}

// SnapshotBuffer hält die letzten annotierten Bilder im Speicher
type SnapshotBuffer struct {
	images     map[string]*Snapshot
	imagesList []*Snapshot
	maxImages  int
	mutex      sync.RWMutex
}

// NewSnapshotBuffer erstellt einen Puffer für maxImages Bilder
func NewSnapshotBuffer(maxImages int) *SnapshotBuffer {
	if maxImages <= 0 {
		maxImages = 20
	}
	return &SnapshotBuffer{
		images:     make(map[string]*Snapshot),
		imagesList: make([]*Snapshot, 0, maxImages),
		maxImages:  maxImages,
	}
}

// AddFrame annotiert eine Kopie des Bildes, kodiert sie als JPEG und legt sie ab
func (s *SnapshotBuffer) AddFrame(frame gocv.Mat, detector string, res emotion.Result) (*Snapshot, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	vis := frame.Clone()
	defer vis.Close()
	Annotate(&vis, res)
	return s.AddAnnotated(vis, detector, res)
}

// AddAnnotated kodiert ein bereits annotiertes Bild und legt es ab
func (s *SnapshotBuffer) AddAnnotated(img gocv.Mat, detector string, res emotion.Result) (*Snapshot, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:         uuid.NewString(),
		Timestamp:  timezone.Now(),
		Detector:   detector,
		Emotion:    res.Emotion,
		Confidence: res.Confidence,
		Faces:      res.Faces,
		ImageData:  data,
	}
	s.Add(snap)
	return snap, nil
}

// Add legt ein fertiges Bild ab und verdrängt bei Bedarf das älteste
func (s *SnapshotBuffer) Add(snap *Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.images[snap.ID]; exists {
		s.images[snap.ID] = snap
		for i, img := range s.imagesList {
			if img.ID == snap.ID {
				s.imagesList[i] = snap
				break
			}
		}
		return
	}

	s.images[snap.ID] = snap
	s.imagesList = append(s.imagesList, snap)
	if len(s.imagesList) > s.maxImages {
		oldest := s.imagesList[0]
		delete(s.images, oldest.ID)
		s.imagesList = s.imagesList[1:]
	}
	log.Tracef("Snapshot %s added (%s %.2f)", snap.ID, snap.Emotion, snap.Confidence)
}

// Latest gibt die neuesten count Bilder zurück, das neueste zuletzt
func (s *SnapshotBuffer) Latest(count int) []*Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if count <= 0 || count > len(s.imagesList) {
		count = len(s.imagesList)
	}
	result := make([]*Snapshot, count)
	copy(result, s.imagesList[len(s.imagesList)-count:])
	return result
}

// Get gibt ein Bild anhand seiner ID zurück
func (s *SnapshotBuffer) Get(id string) *Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.images[id]
}

// Len gibt die Anzahl der gepufferten Bilder zurück
func (s *SnapshotBuffer) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.imagesList)
}

// RegisterRoutes registriert die Snapshot-Endpunkte
func (s *SnapshotBuffer) RegisterRoutes(router gin.IRouter) {
	router.GET("/snapshots", s.handleList)
	router.GET("/snapshots/latest", s.handleLatest)
	router.GET("/snapshots/:id", s.handleImage)
}

func (s *SnapshotBuffer) handleList(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil {
		count = 10
	}
	images := s.Latest(count)

	type snapshotMeta struct {
		*Snapshot
		URL string `json:"url"`
	}
	meta := make([]snapshotMeta, len(images))
	for i, img := range images {
		meta[i] = snapshotMeta{Snapshot: img, URL: "/api/snapshots/" + img.ID}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(meta),
		"images": meta,
	})
}

func (s *SnapshotBuffer) handleLatest(c *gin.Context) {
	latest := s.Latest(1)
	if len(latest) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot available"})
		return
	}
	writeJPEG(c, latest[0].ImageData)
}

func (s *SnapshotBuffer) handleImage(c *gin.Context) {
	img := s.Get(c.Param("id"))
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found", "requested_id": c.Param("id")})
		return
	}
	writeJPEG(c, img.ImageData)
}

func writeJPEG(c *gin.Context, data []byte) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/jpeg", data)
}
