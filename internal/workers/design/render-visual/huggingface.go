// internal/workers/design/render-visual/huggingface.go
package rendervisual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	commonhttp "forgevision/internal/common/http"
)

const maxImageBytes = 32 << 20

// HuggingFaceClient calls the hosted inference API for a text-to-image model.
type HuggingFaceClient struct {
	client  *commonhttp.Client
	baseURL string
	model   string
}

func NewHuggingFaceClient(config *Config) (*HuggingFaceClient, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("hugging face token is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("image model is required")
	}

	return &HuggingFaceClient{
		client:  commonhttp.NewAuthenticatedClient(config.Timeout, config.Token),
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		model:   config.Model,
	}, nil
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func (c *HuggingFaceClient) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: req.Prompt,
		Parameters: inferenceParameters{
			Width:  req.Width,
			Height: req.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image service returned status %d: %s", resp.StatusCode, describeError(data))
	}

	// The API answers some failures with 200 and a JSON body.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil, fmt.Errorf("image service returned an error body: %s", describeError(data))
	}

	return data, nil
}

func (c *HuggingFaceClient) Model() string {
	return c.model
}

func describeError(body []byte) string {
	var apiErr inferenceError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		if apiErr.EstimatedTime > 0 {
			return fmt.Sprintf("%s (model loading, retry in ~%.0fs)", apiErr.Error, apiErr.EstimatedTime)
		}
		return apiErr.Error
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}
