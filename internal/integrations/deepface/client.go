package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"emotion-cam-go/config"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für die DeepFace-Komponente
var logFields = log.Fields{
	"component": "deepface",
}

// APIClient implementiert die Kommunikation mit dem DeepFace-REST-Dienst
type APIClient struct {
	config     config.DeepFaceConfig
	baseURL    string
	httpClient *http.Client
}

// analyzeRequest ist der Body von POST /analyze
type analyzeRequest struct {
	Image            string   `json:"img"`
	Actions          []string `json:"actions"`
	ModelName        string   `json:"model_name,omitempty"`
	DetectorBackend  string   `json:"detector_backend,omitempty"`
	EnforceDetection bool     `json:"enforce_detection"`
	Silent           bool     `json:"silent"`
}

// Region ist der Gesichtsbereich einer Analyse
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Analysis ist das Ergebnis für ein Gesicht
type Analysis struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion"`
	Region          *Region            `json:"region,omitempty"`
	FaceConfidence  *float64           `json:"face_confidence,omitempty"` // fehlt bei älteren Versionen
}

// Rect liefert die Region als Rechteck
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// analyzeResponse enthält die Antwort des Dienstes. Ältere Versionen liefern
// ein einzelnes Objekt statt einer Liste unter "results".
type analyzeResponse struct {
	Results []Analysis `json:"results"`
	Error   string     `json:"error,omitempty"`
}

// NewAPIClient erstellt einen neuen DeepFace-APIClient
func NewAPIClient(cfg config.DeepFaceConfig) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping prüft, ob der DeepFace-Dienst erreichbar ist
func (c *APIClient) Ping(ctx context.Context) error {
	if !c.config.Enabled {
		return fmt.Errorf("DeepFace is not enabled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to DeepFace: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("DeepFace service not available, status: %d", resp.StatusCode)
	}
	return nil
}

// Analyze sendet ein JPEG-Bild zur Emotionsanalyse
func (c *APIClient) Analyze(ctx context.Context, jpeg []byte, model string) ([]Analysis, error) {
	payload := analyzeRequest{
		Image:            "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		Actions:          []string{"emotion"},
		ModelName:        model,
		DetectorBackend:  c.config.DetectorBackend,
		EnforceDetection: false,
		Silent:           true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode, string(raw))
	}

	var apiResp analyzeResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("API error: %s", apiResp.Error)
	}
	if apiResp.Results == nil {
		var single Analysis
		if err := json.Unmarshal(raw, &single); err == nil && single.DominantEmotion != "" {
			return []Analysis{single}, nil
		}
	}

	log.WithFields(logFields).Tracef("DeepFace returned %d results for model %s", len(apiResp.Results), model)
	return apiResp.Results, nil
}
