// Package client provides an HTTP client for the draftsmith server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to the draftsmith HTTP API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a new API client.
// If endpoint is empty, uses DRAFTSMITH_SERVER_URL env var or defaults to
// http://localhost:8080. The bearer token falls back to DRAFTSMITH_API_TOKEN.
func New(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("DRAFTSMITH_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if token == "" {
		token = os.Getenv("DRAFTSMITH_API_TOKEN")
	}

	timeout := 10 * time.Minute // generation calls can run long
	if t := os.Getenv("DRAFTSMITH_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorEnvelope
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			return &APIError{
				Status:  resp.StatusCode,
				Code:    envelope.Error.Code,
				Message: envelope.Error.Message,
				Details: envelope.Error.Details,
			}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// GenerateInput is the request for one field generation.
type GenerateInput struct {
	DocumentType  string         `json:"documentType"`
	Path          string         `json:"path"`
	InstructionID string         `json:"instructionId,omitempty"`
	Document      map[string]any `json:"document,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
	Apply         bool           `json:"apply,omitempty"`
}

// GeneratedFile is a binary generation result.
type GeneratedFile struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mimetype"`
	Size     int    `json:"size"`
}

// Job is an asynchronous generation job.
type Job struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	ResultRef   string     `json:"resultRef,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// GenerateResult is the outcome of one generation call.
type GenerateResult struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Object   map[string]any `json:"object,omitempty"`
	File     *GeneratedFile `json:"file,omitempty"`
	Job      *Job           `json:"job,omitempty"`
	Document map[string]any `json:"document,omitempty"`
}

// Generate runs one generation synchronously.
func (c *Client) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	var result GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate", input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadImage is a base64-encoded reference input.
type UploadImage struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mimetype"`
}

// GenerateUpload runs a media generation, optionally with reference images.
func (c *Client) GenerateUpload(ctx context.Context, input GenerateInput, images []UploadImage) (*GenerateResult, error) {
	payload := struct {
		GenerateInput
		Images []UploadImage `json:"images,omitempty"`
	}{GenerateInput: input, Images: images}

	var result GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate/upload", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns recent jobs, newest first.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	path := "/api/jobs"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// CancelJob cancels a queued or running job.
func (c *Client) CancelJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+id+"/cancel", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ReinitResult summarizes a reinitialization pass.
type ReinitResult struct {
	DocumentTypes int `json:"document_types"`
	Created       int `json:"created"`
}

// Reinit recomputes schema paths and seeds missing instructions.
func (c *Client) Reinit(ctx context.Context) (*ReinitResult, error) {
	var result ReinitResult
	if err := c.do(ctx, http.MethodPost, "/api/reinit", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// FetchVoices fetches the voice catalogue of a speech provider.
func (c *Client) FetchVoices(ctx context.Context, provider string) ([]Voice, error) {
	var result struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/fetch-voices", map[string]any{"provider": provider}, &result); err != nil {
		return nil, err
	}
	return result.Voices, nil
}

// Model is one model of a configured provider.
type Model struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	UseCase string `json:"use_case"`
	Enabled bool   `json:"enabled"`
}

// Provider is a configured provider with credentials redacted.
type Provider struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Enabled   bool      `json:"enabled"`
	HasKey    bool      `json:"hasKey"`
	BaseURL   string    `json:"baseUrl,omitempty"`
	Region    string    `json:"region,omitempty"`
	Models    []Model   `json:"models"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListProviders returns all configured providers.
func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var result struct {
		Providers []Provider `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/providers", nil, &result); err != nil {
		return nil, err
	}
	return result.Providers, nil
}

// SetProviderKey stores a provider API key. The server encrypts it at rest.
func (c *Client) SetProviderKey(ctx context.Context, providerID, key string) error {
	return c.do(ctx, http.MethodPut, "/api/providers/"+providerID+"/key", map[string]any{"key": key}, nil)
}

// Instruction is one generation instruction.
type Instruction struct {
	ID            string         `json:"id"`
	DocumentType  string         `json:"document_type"`
	SchemaPath    string         `json:"schema_path"`
	FieldType     string         `json:"field_type"`
	ModelID       string         `json:"model_id"`
	Template      string         `json:"template"`
	System        string         `json:"system,omitempty"`
	ModelSettings map[string]any `json:"model_settings,omitempty"`
	Disabled      bool           `json:"disabled"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ListInstructions returns the instructions of a document type.
func (c *Client) ListInstructions(ctx context.Context, documentType string) ([]Instruction, error) {
	path := "/api/instructions"
	if documentType != "" {
		path += "?documentType=" + documentType
	}
	var result struct {
		Instructions []Instruction `json:"instructions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Instructions, nil
}

// UpsertInstruction creates or updates an instruction.
func (c *Client) UpsertInstruction(ctx context.Context, in Instruction) (*Instruction, error) {
	var result Instruction
	if err := c.do(ctx, http.MethodPut, "/api/instructions", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// streamFrame mirrors the server's websocket message shape.
type streamFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Code   string          `json:"code,omitempty"`
	Result *GenerateResult `json:"result,omitempty"`
}

// GenerateStream runs a text generation over the websocket endpoint. The
// onDelta callback receives each chunk as it arrives; returning an error
// from it aborts the stream. The final result is returned once the server
// sends the done frame.
func (c *Client) GenerateStream(ctx context.Context, input GenerateInput, onDelta func(chunk string) error) (*GenerateResult, error) {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := dialer.DialContext(ctx, wsEndpoint+"/ws/generate", header)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(input); err != nil {
		return nil, fmt.Errorf("send request frame: %w", err)
	}

	// Cancel by sending a stop frame so the server can abort the upstream
	// call instead of just seeing a dropped connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteJSON(streamFrame{Type: "stop"})
			conn.Close()
		case <-done:
		}
	}()

	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}

		switch frame.Type {
		case "delta":
			if onDelta != nil {
				if err := onDelta(frame.Text); err != nil {
					conn.WriteJSON(streamFrame{Type: "stop"})
					return nil, err
				}
			}
		case "done":
			return frame.Result, nil
		case "error":
			return nil, &APIError{Code: frame.Code, Message: frame.Text}
		}
	}
}
