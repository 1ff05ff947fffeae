// Package backend implements the provider-specific generation calls. Each
// capability is its own small interface; the dispatcher picks one per
// resolved model.
package backend

import "context"

// Request carries the rendered prompts and merged call options for one
// generation.
type Request struct {
	System  string
	Prompt  string
	Options map[string]any
	// Images are reference inputs for multimodal image generation.
	Images []File
}

// File is a generated binary artifact.
type File struct {
	Name     string
	Data     []byte
	MimeType string
}

// VideoTask is the handle a video backend returns for deferred work.
type VideoTask struct {
	TaskID    string
	Done      bool
	Failed    bool
	Error     string
	ResultURL string
}

// TextBackend produces plain text.
type TextBackend interface {
	GenerateText(ctx context.Context, req Request) (string, error)
	// StreamText invokes fn for each chunk and returns the full text.
	StreamText(ctx context.Context, req Request, fn func(chunk string) error) (string, error)
}

// ObjectBackend produces structured output. The returned string is the raw
// model response; the dispatcher sanitizes, parses and validates it.
type ObjectBackend interface {
	GenerateObject(ctx context.Context, req Request, jsonSchema map[string]any) (string, error)
}

// ImageBackend produces one image per call.
type ImageBackend interface {
	GenerateImage(ctx context.Context, req Request) (*File, error)
}

// SpeechBackend synthesizes audio from text.
type SpeechBackend interface {
	Synthesize(ctx context.Context, req Request) (*File, error)
}

// VideoBackend starts deferred video generation and reports task status.
type VideoBackend interface {
	StartVideo(ctx context.Context, req Request) (*VideoTask, error)
	CheckVideo(ctx context.Context, taskID string) (*VideoTask, error)
}

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// VoiceLister exposes a provider's voice catalogue.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}
