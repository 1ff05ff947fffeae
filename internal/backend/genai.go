package backend

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"draftsmith/internal/provider"
)

// GeminiBackend drives Google models through the genai SDK. It covers
// standard image generation, multimodal text-to-image, speech synthesis
// and deferred video generation.
type GeminiBackend struct {
	client    *genai.Client
	modelName string
}

var (
	_ ImageBackend  = (*GeminiBackend)(nil)
	_ SpeechBackend = (*GeminiBackend)(nil)
	_ VideoBackend  = (*GeminiBackend)(nil)
)

// NewGeminiBackend creates a genai client for a resolved handle.
func NewGeminiBackend(ctx context.Context, h *provider.Handle) (*GeminiBackend, error) {
	apiKey, err := h.APIKey()
	if err != nil {
		return nil, fmt.Errorf("reading credentials for %s: %w", h.Provider.ID, err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: client, modelName: h.Model.Name}, nil
}

// GenerateImage calls the dedicated image model and returns the first
// generated image.
func (b *GeminiBackend) GenerateImage(ctx context.Context, req Request) (*File, error) {
	cfg := &genai.GenerateImagesConfig{NumberOfImages: 1}
	if ar, ok := req.Options["aspectRatio"].(string); ok {
		cfg.AspectRatio = ar
	}

	resp, err := b.client.Models.GenerateImages(ctx, b.modelName, req.Prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("model produced no image")
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &File{
		Name:     "generated" + extensionFor(mime),
		Data:     img.ImageBytes,
		MimeType: mime,
	}, nil
}

// GenerateInlineImage drives a multimodal text model that answers with
// inline image parts. The call shape differs from GenerateImage: the model
// is prompted like a chat model and the image is extracted from the
// response parts.
func (b *GeminiBackend) GenerateInlineImage(ctx context.Context, req Request) (*File, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctx, b.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate inline image: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				continue
			}
			return &File{
				Name:     "generated" + extensionFor(part.InlineData.MIMEType),
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
			}, nil
		}
	}
	return nil, fmt.Errorf("model produced no image")
}

// Synthesize turns text into speech using the model's TTS mode.
func (b *GeminiBackend) Synthesize(ctx context.Context, req Request) (*File, error) {
	voice, _ := req.Options["voice"].(string)
	if voice == "" {
		voice = "Kore"
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := b.client.Models.GenerateContent(ctx, b.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			return &File{
				Name:     "speech.wav",
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
			}, nil
		}
	}
	return nil, fmt.Errorf("model produced no audio")
}

// StartVideo kicks off deferred video generation and returns the operation
// name as the task id.
func (b *GeminiBackend) StartVideo(ctx context.Context, req Request) (*VideoTask, error) {
	cfg := &genai.GenerateVideosConfig{}
	if ar, ok := req.Options["aspectRatio"].(string); ok {
		cfg.AspectRatio = ar
	}

	op, err := b.client.Models.GenerateVideos(ctx, b.modelName, req.Prompt, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("start video generation: %w", err)
	}
	return videoTaskFromOperation(op), nil
}

// CheckVideo fetches the current state of a video generation task.
func (b *GeminiBackend) CheckVideo(ctx context.Context, taskID string) (*VideoTask, error) {
	op := &genai.GenerateVideosOperation{Name: taskID}
	op, err := b.client.Operations.GetVideosOperation(ctx, op, nil)
	if err != nil {
		return nil, fmt.Errorf("check video task: %w", err)
	}
	return videoTaskFromOperation(op), nil
}

func videoTaskFromOperation(op *genai.GenerateVideosOperation) *VideoTask {
	task := &VideoTask{TaskID: op.Name, Done: op.Done}
	if op.Error != nil {
		task.Failed = true
		task.Error = fmt.Sprintf("%v", op.Error["message"])
		return task
	}
	if op.Done && op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			task.ResultURL = v.URI
		}
	}
	return task
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
