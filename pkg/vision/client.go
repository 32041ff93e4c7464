// Package vision is a client for the label-vision microservice that OCRs
// wine label photos into structured attributes.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ClientOptions configures the vision service client
type ClientOptions struct {
	// BaseURL is the base URL of the vision service. Do not include /v1.
	BaseURL string
	// APIKey authenticates against the vision service
	APIKey string
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds)
	Timeout time.Duration
}

// Client is the vision service API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewClient creates a new vision service client with default settings
func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithOptions(ClientOptions{
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
}

// NewClientWithOptions creates a new vision service client with custom options
func NewClientWithOptions(opts ClientOptions) *Client {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/v1")

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // Disable logging by default

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: retryClient,
	}
}

// LabelExtraction holds the attributes the vision service read off a label.
// Any field may be empty when the label is unreadable or partial.
type LabelExtraction struct {
	Producer       string   `json:"producer,omitempty"`
	WineName       string   `json:"wine_name,omitempty"`
	Vintage        *int     `json:"vintage,omitempty"`
	AlcoholPercent *float64 `json:"alcohol_percent,omitempty"`
	Confidence     float64  `json:"confidence"`
}

type extractRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// ExtractLabel sends a base64-encoded label photo and returns the extracted
// attributes.
func (c *Client) ExtractLabel(ctx context.Context, imageBase64 string) (*LabelExtraction, error) {
	reqURL := fmt.Sprintf("%s/v1/labels/extract", c.baseURL)

	payload, err := json.Marshal(extractRequest{ImageBase64: imageBase64})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			slog.Error("Failed to read error response body", "error", err)
		}
		return nil, fmt.Errorf("vision request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var extraction LabelExtraction
	if err := json.Unmarshal(body, &extraction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &extraction, nil
}
