package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Recording RecordingConfig `mapstructure:"recording"`
	Session   SessionConfig   `mapstructure:"session"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	DeepFace  DeepFaceConfig  `mapstructure:"deepface"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DataDir        string `mapstructure:"data_dir"`
	SessionSecret  string `mapstructure:"session_secret"`
	SnapshotBuffer int    `mapstructure:"snapshot_buffer"` // Anzahl der im Speicher gehaltenen Vorschaubilder
	AnalyzeWorkers int    `mapstructure:"analyze_workers"` // 0 = automatisch anhand der CPU-Anzahl
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text oder json
	File   string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen
type DBConfig struct {
	File string `mapstructure:"file"` // für SQLite
}

// CameraConfig enthält die Einstellungen für die Aufnahmeschleife
type CameraConfig struct {
	Source        string        `mapstructure:"source"` // Kameraindex, Dateipfad oder Stream-URL
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	FrameDelay    time.Duration `mapstructure:"frame_delay"`
	MaxReadErrors int           `mapstructure:"max_read_errors"`
	ErrorWindow   time.Duration `mapstructure:"error_window"`
	JoinTimeout   time.Duration `mapstructure:"join_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// RecordingConfig enthält Einstellungen für die Videoaufzeichnung
type RecordingConfig struct {
	OutputDir string  `mapstructure:"output_dir"`
	FPS       float64 `mapstructure:"fps"`
}

// SessionConfig enthält Einstellungen für die Sitzungsprotokolle
type SessionConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Persist   bool   `mapstructure:"persist"` // Sitzungen zusätzlich in der Datenbank ablegen
}

// DetectorsConfig enthält Modellpfade und Parameter der lokalen Detektoren
type DetectorsConfig struct {
	Default  string   `mapstructure:"default"`
	Disabled []string `mapstructure:"disabled"`
	UseGPU   bool     `mapstructure:"use_gpu"`
	Backend  string   `mapstructure:"backend"` // "default", "cuda", "opencl"
	Target   string   `mapstructure:"target"`  // "cpu", "cuda", "opencl"

	HaarCascade   string `mapstructure:"haar_cascade"`
	FaceNetModel  string `mapstructure:"face_net_model"`  // SSD ResNet Caffe-Modell
	FaceNetConfig string `mapstructure:"face_net_config"` // zugehörige prototxt-Datei
	FERModel      string `mapstructure:"fer_model"`       // FER+ ONNX-Modell
	CNNModel      string `mapstructure:"cnn_model"`       // optionales 48x48 ONNX-Modell
	YuNetModel    string `mapstructure:"yunet_model"`
	PigoCascade   string `mapstructure:"pigo_cascade"`
	PigoPuploc    string `mapstructure:"pigo_puploc"`
	PigoLandmarks string `mapstructure:"pigo_landmarks"` // Verzeichnis mit den lp-Kaskaden
	DlibModelDir  string `mapstructure:"dlib_model_dir"`

	ScaleFactor         float64 `mapstructure:"scale_factor"`
	MinNeighbors        int     `mapstructure:"min_neighbors"`
	MinFaceSize         int     `mapstructure:"min_face_size"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// DeepFaceConfig enthält die Einstellungen für den DeepFace-REST-Dienst
type DeepFaceConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Models          []string      `mapstructure:"models"`
	DetectorBackend string        `mapstructure:"detector_backend"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"` // Basis-Topic, z.B. "emotion-cam"

	// Home Assistant MQTT Discovery
	Discovery       bool   `mapstructure:"discovery"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CleanupConfig enthält Bereinigungseinstellungen
type CleanupConfig struct {
	RetentionDays int           `mapstructure:"retention_days"`
	Interval      time.Duration `mapstructure:"interval"`
}

// I18nConfig enthält die Spracheinstellungen der API
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("EMOTION_CAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.session_secret", "emotion-cam")
	v.SetDefault("server.snapshot_buffer", 30)
	v.SetDefault("server.analyze_workers", 0)

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "./data/logs/emotion-cam.log")

	// DB-Standardwerte
	v.SetDefault("db.file", "./data/emotion-cam.db")

	// Kamera: 640x480, ~33 fps, höchstens 5 Lesefehler pro Sekunde
	v.SetDefault("camera.source", "0")
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.frame_delay", "30ms")
	v.SetDefault("camera.max_read_errors", 5)
	v.SetDefault("camera.error_window", "1s")
	v.SetDefault("camera.join_timeout", "2s")
	v.SetDefault("camera.retry_attempts", 3)
	v.SetDefault("camera.retry_delay", "1s")

	// Aufzeichnung
	v.SetDefault("recording.output_dir", "./recordings")
	v.SetDefault("recording.fps", 20.0)

	// Sitzungsprotokolle
	v.SetDefault("session.output_dir", "./output")
	v.SetDefault("session.persist", true)

	// Detektoren
	v.SetDefault("detectors.default", "")
	v.SetDefault("detectors.disabled", []string{})
	v.SetDefault("detectors.use_gpu", false)
	v.SetDefault("detectors.backend", "default")
	v.SetDefault("detectors.target", "cpu")
	v.SetDefault("detectors.haar_cascade", "./models/haarcascade_frontalface_default.xml")
	v.SetDefault("detectors.face_net_model", "./models/res10_300x300_ssd_iter_140000.caffemodel")
	v.SetDefault("detectors.face_net_config", "./models/deploy.prototxt")
	v.SetDefault("detectors.fer_model", "./models/emotion-ferplus-8.onnx")
	v.SetDefault("detectors.cnn_model", "./models/simple_cnn_48x48.onnx")
	v.SetDefault("detectors.yunet_model", "./models/face_detection_yunet_2023mar.onnx")
	v.SetDefault("detectors.pigo_cascade", "./models/facefinder")
	v.SetDefault("detectors.pigo_puploc", "./models/puploc")
	v.SetDefault("detectors.pigo_landmarks", "./models/lps")
	v.SetDefault("detectors.dlib_model_dir", "./models/dlib")
	v.SetDefault("detectors.scale_factor", 1.1)
	v.SetDefault("detectors.min_neighbors", 4)
	v.SetDefault("detectors.min_face_size", 30)
	v.SetDefault("detectors.confidence_threshold", 0.5)

	// DeepFace-Standardwerte
	v.SetDefault("deepface.enabled", false)
	v.SetDefault("deepface.url", "http://localhost:5005")
	v.SetDefault("deepface.timeout", "10s")
	v.SetDefault("deepface.models", []string{"VGG-Face", "Facenet", "OpenFace"})
	v.SetDefault("deepface.detector_backend", "opencv")

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "emotion-cam-go")
	v.SetDefault("mqtt.topic", "emotion-cam")
	v.SetDefault("mqtt.discovery", false)
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)
	v.SetDefault("cleanup.interval", "24h")

	v.SetDefault("i18n.default_language", "en")
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	dirs := map[string]string{
		"data":      cfg.Server.DataDir,
		"session":   cfg.Session.OutputDir,
		"recording": cfg.Recording.OutputDir,
	}
	if cfg.Log.File != "" {
		dirs["log"] = filepath.Dir(cfg.Log.File)
	}
	if cfg.DB.File != "" {
		dirs["database"] = filepath.Dir(cfg.DB.File)
	}

	for name, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", name, err)
		}
	}

	return nil
}

// IsDetectorDisabled prüft, ob ein Detektor per Konfiguration abgeschaltet wurde
func (c DetectorsConfig) IsDetectorDisabled(name string) bool {
	for _, d := range c.Disabled {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return true
		}
	}
	return false
}
