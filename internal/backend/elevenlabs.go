package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"draftsmith/internal/provider"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabsBackend synthesizes speech and lists voices through the
// ElevenLabs HTTP API.
type ElevenLabsBackend struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
}

var (
	_ SpeechBackend = (*ElevenLabsBackend)(nil)
	_ VoiceLister   = (*ElevenLabsBackend)(nil)
)

// NewElevenLabsBackend creates a speech client for a resolved handle.
func NewElevenLabsBackend(h *provider.Handle) (*ElevenLabsBackend, error) {
	apiKey, err := h.APIKey()
	if err != nil {
		return nil, fmt.Errorf("reading credentials for %s: %w", h.Provider.ID, err)
	}
	baseURL := h.Provider.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	return &ElevenLabsBackend{
		apiKey:  apiKey,
		baseURL: baseURL,
		modelID: h.Model.Name,
		client:  &http.Client{},
	}, nil
}

type elevenLabsSpeechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings map[string]any `json:"voice_settings,omitempty"`
}

// Synthesize converts the prompt text into audio with the configured voice.
func (b *ElevenLabsBackend) Synthesize(ctx context.Context, req Request) (*File, error) {
	voice, _ := req.Options["voice"].(string)
	if voice == "" {
		return nil, fmt.Errorf("speech generation requires a voice option")
	}

	settings, _ := req.Options["voiceSettings"].(map[string]any)
	jsonBody, err := json.Marshal(elevenLabsSpeechRequest{
		Text:          req.Prompt,
		ModelID:       b.modelID,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", b.baseURL, voice)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("model produced no audio")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &File{Name: "speech.mp3", Data: audio, MimeType: mime}, nil
}

type elevenLabsVoicesResponse struct {
	Voices []struct {
		VoiceID     string `json:"voice_id"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		PreviewURL  string `json:"preview_url"`
		Description string `json:"description"`
	} `json:"voices"`
}

// ListVoices fetches the provider's voice catalogue.
func (b *ElevenLabsBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voicesResp elevenLabsVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&voicesResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	voices := make([]Voice, 0, len(voicesResp.Voices))
	for _, v := range voicesResp.Voices {
		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Category:    v.Category,
			PreviewURL:  v.PreviewURL,
			Description: v.Description,
		})
	}
	return voices, nil
}
