// Package imagegen generates images from text descriptions through an
// OpenAI-compatible images endpoint and saves the decoded results to
// disk.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quincekit/quince/internal/httpkit"
)

// Request carries the per-call generation parameters, captured from the
// session's image options.
type Request struct {
	Prompt  string
	Model   string
	N       int
	Quality string
	Size    string
	Style   string
}

// Image is one generated image as base64-encoded PNG data.
type Image struct {
	B64 string
}

// Generator is the image-generation service the tool dispatcher calls.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Image, error)
}

// OpenAIGenerator generates images via the images/generations endpoint.
type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIGenerator creates a generator for the given endpoint.
func NewOpenAIGenerator(baseURL, apiKey string, logger *slog.Logger) *OpenAIGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	// Image generation regularly takes tens of seconds before any
	// response arrives.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("component", "imagegen"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(3*time.Minute),
			httpkit.WithTransport(t),
		),
	}
}

type generationRequest struct {
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
	Model          string `json:"model,omitempty"`
	N              int    `json:"n,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Size           string `json:"size,omitempty"`
	Style          string `json:"style,omitempty"`
}

type generationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate requests req.N images and returns their base64 payloads.
// Cancellation propagates as the context error; no partial image list
// is fabricated.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) ([]Image, error) {
	body, err := json.Marshal(generationRequest{
		Prompt:         req.Prompt,
		ResponseFormat: "b64_json",
		Model:          req.Model,
		N:              req.N,
		Quality:        req.Quality,
		Size:           req.Size,
		Style:          req.Style,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	g.logger.Debug("generating images", "model", req.Model, "n", req.N, "size", req.Size)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		g.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("images API error %d: %s", resp.StatusCode, errBody)
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	images := make([]Image, 0, len(gen.Data))
	for _, d := range gen.Data {
		images = append(images, Image{B64: d.B64JSON})
	}
	return images, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
