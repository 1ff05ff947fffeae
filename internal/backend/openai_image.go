package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"draftsmith/internal/provider"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIImageBackend calls the images endpoint directly. langchaingo only
// covers chat completions, so image generation gets its own small client.
type OpenAIImageBackend struct {
	apiKey    string
	baseURL   string
	modelName string
	client    *http.Client
}

var _ ImageBackend = (*OpenAIImageBackend)(nil)

// NewOpenAIImageBackend creates an image client for a resolved handle.
func NewOpenAIImageBackend(h *provider.Handle) (*OpenAIImageBackend, error) {
	apiKey, err := h.APIKey()
	if err != nil {
		return nil, fmt.Errorf("reading credentials for %s: %w", h.Provider.ID, err)
	}
	baseURL := h.Provider.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIImageBackend{
		apiKey:    apiKey,
		baseURL:   baseURL,
		modelName: h.Model.Name,
		client:    &http.Client{},
	}, nil
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage requests one image and decodes the base64 payload.
func (b *OpenAIImageBackend) GenerateImage(ctx context.Context, req Request) (*File, error) {
	size, _ := req.Options["size"].(string)

	jsonBody, err := json.Marshal(openAIImageRequest{
		Model:          b.modelName,
		Prompt:         req.Prompt,
		N:              1,
		Size:           size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/images/generations", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var imageResp openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imageResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(imageResp.Data) == 0 || imageResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("model produced no image")
	}

	data, err := base64.StdEncoding.DecodeString(imageResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return &File{Name: "generated.png", Data: data, MimeType: "image/png"}, nil
}
