package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-match/internal/imaging"
)

const defaultDeepFaceURL = "http://localhost:5005"

// DeepFaceClient calls the /verify route of a DeepFace REST service.
type DeepFaceClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewDeepFaceClient creates a client. A zero timeout means no client-side limit.
func NewDeepFaceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DeepFaceClient {
	if baseURL == "" {
		baseURL = defaultDeepFaceURL
	}
	return &DeepFaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("deepface_client"),
	}
}

type deepFaceRequest struct {
	Img1            string `json:"img1"`
	Img2            string `json:"img2"`
	ModelName       string `json:"model_name"`
	DetectorBackend string `json:"detector_backend"`
}

type deepFaceResponse struct {
	Verified        *bool   `json:"verified"`
	Distance        float64 `json:"distance"`
	Threshold       float64 `json:"threshold"`
	Model           string  `json:"model"`
	DetectorBackend string  `json:"detector_backend"`
}

func dataURI(px *imaging.PixelArray) (string, error) {
	encoded, err := px.EncodePNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(encoded), nil
}

// Verify posts both images as PNG data URIs and parses the verdict.
func (c *DeepFaceClient) Verify(ctx context.Context, img1, img2 *imaging.PixelArray, opts Options) (*Verification, error) {
	uri1, err := dataURI(img1)
	if err != nil {
		return nil, fmt.Errorf("failed to encode first image: %w", err)
	}
	uri2, err := dataURI(img2)
	if err != nil {
		return nil, fmt.Errorf("failed to encode second image: %w", err)
	}

	payload, err := json.Marshal(deepFaceRequest{
		Img1:            uri1,
		Img2:            uri2,
		ModelName:       opts.Model,
		DetectorBackend: opts.Detector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed deepFaceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Verified == nil {
		return nil, ErrNoVerdict
	}

	c.logger.Debug("deepface verify finished",
		zap.Bool("verified", *parsed.Verified),
		zap.Float64("distance", parsed.Distance),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Verification{
		Verified:  *parsed.Verified,
		Distance:  parsed.Distance,
		Threshold: parsed.Threshold,
		Model:     parsed.Model,
		Detector:  parsed.DetectorBackend,
	}, nil
}
