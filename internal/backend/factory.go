package backend

import (
	"context"
	"fmt"

	"draftsmith/internal/provider"
)

// TextFor returns the text backend for a resolved handle.
func TextFor(h *provider.Handle) (TextBackend, error) {
	return NewChatBackend(h)
}

// ObjectFor returns the structured-output backend for a resolved handle.
func ObjectFor(h *provider.Handle) (ObjectBackend, error) {
	return NewChatBackend(h)
}

// inlineImageAdapter exposes a multimodal Gemini model through the
// ImageBackend interface.
type inlineImageAdapter struct{ gemini *GeminiBackend }

func (a inlineImageAdapter) GenerateImage(ctx context.Context, req Request) (*File, error) {
	return a.gemini.GenerateInlineImage(ctx, req)
}

// ImageFor returns the image backend for a resolved handle. Multimodal
// models get the inline call shape, dedicated image models the standard
// one.
func ImageFor(ctx context.Context, h *provider.Handle) (ImageBackend, error) {
	switch h.Provider.Kind {
	case "gemini":
		gemini, err := NewGeminiBackend(ctx, h)
		if err != nil {
			return nil, err
		}
		if h.Modality == provider.ModalityMultimodal {
			return inlineImageAdapter{gemini: gemini}, nil
		}
		return gemini, nil
	case "openai":
		return NewOpenAIImageBackend(h)
	case "bedrock":
		return NewBedrockBackend(ctx, h)
	default:
		return nil, fmt.Errorf("no image backend for provider kind: %s", h.Provider.Kind)
	}
}

// SpeechFor returns the speech backend for a resolved handle.
func SpeechFor(ctx context.Context, h *provider.Handle) (SpeechBackend, error) {
	switch h.Provider.Kind {
	case "elevenlabs":
		return NewElevenLabsBackend(h)
	case "gemini":
		return NewGeminiBackend(ctx, h)
	default:
		return nil, fmt.Errorf("no speech backend for provider kind: %s", h.Provider.Kind)
	}
}

// VideoFor returns the video backend for a resolved handle.
func VideoFor(ctx context.Context, h *provider.Handle) (VideoBackend, error) {
	switch h.Provider.Kind {
	case "gemini":
		return NewGeminiBackend(ctx, h)
	default:
		return nil, fmt.Errorf("no video backend for provider kind: %s", h.Provider.Kind)
	}
}

// VoicesFor returns the voice catalogue client for a resolved handle.
func VoicesFor(h *provider.Handle) (VoiceLister, error) {
	switch h.Provider.Kind {
	case "elevenlabs":
		return NewElevenLabsBackend(h)
	default:
		return nil, fmt.Errorf("no voice catalogue for provider kind: %s", h.Provider.Kind)
	}
}
