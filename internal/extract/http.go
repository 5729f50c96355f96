package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
)

// HTTPExtractor calls the embedding sidecar over HTTP. The sidecar accepts
// raw image bytes on POST /extract and answers with detected faces.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPExtractor(cfg config.ExtractorConfig) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type extractResponse struct {
	Faces []Face `json:"faces"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) ([]Face, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/extract", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The extractor rejected the input itself; retrying cannot help.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: extractor status %d: %s", ErrCorruptImage, resp.StatusCode, body)
	default:
		return nil, fmt.Errorf("%w: extractor status %d", ErrUnavailable, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode extractor response: %v", ErrUnavailable, err)
	}

	for i, face := range out.Faces {
		if len(face.Embedding) != models.EmbeddingDim {
			return nil, fmt.Errorf("%w: face %d has %d dimensions, want %d",
				ErrUnavailable, i, len(face.Embedding), models.EmbeddingDim)
		}
	}
	return out.Faces, nil
}

// Healthy probes the sidecar's health endpoint.
func (e *HTTPExtractor) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
