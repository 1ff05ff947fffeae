// Package dispatch routes a generation request to the backend call matching
// its modality and normalizes the outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"draftsmith/internal/backend"
	"draftsmith/internal/nodes"
	"draftsmith/internal/provider"
)

// ResultKind discriminates what a generation produced.
type ResultKind string

const (
	KindText   ResultKind = "text"
	KindObject ResultKind = "object"
	KindFile   ResultKind = "file"
	KindJob    ResultKind = "job"
)

// Result is the normalized outcome of one dispatch. Exactly one payload
// field is set, matching Kind.
type Result struct {
	Kind   ResultKind
	Text   string
	Object map[string]any
	File   *backend.File
	Task   *backend.VideoTask
}

// Request is one generation to dispatch. The dispatcher has no side
// effects beyond the outbound call: it never writes the document and never
// creates job records.
type Request struct {
	Handle  *provider.Handle
	System  string
	Prompt  string
	Options map[string]any

	// Structured forces the object path for text models whose output must
	// conform to a schema.
	Structured bool
	// NodeSchema is the pruned grammar for rich-document output. Nil with
	// Structured set means a primitive schema inferred from FieldName.
	NodeSchema *nodes.Schema
	FieldName  string

	// Images are reference inputs for multimodal image generation.
	Images []backend.File
	// Stream, when set, receives text chunks as they arrive.
	Stream func(chunk string) error
}

// SchemaValidationError reports structured output that failed validation.
// It is retryable: nothing has been written, so the caller may ask the
// model again or surface the failure to the editor.
type SchemaValidationError struct {
	Violations []nodes.Violation
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("generated object failed schema validation (%d violations)", len(e.Violations))
}

// UpstreamError wraps a provider failure. The message shown to callers
// names only the provider; the cause stays attached for logging and must
// never reach a response body, since provider errors can echo credentials.
type UpstreamError struct {
	Provider string
	cause    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation failed (provider %s)", e.Provider)
}

func (e *UpstreamError) Unwrap() error { return e.cause }

// Dispatcher routes requests by modality. The backend factories are fields
// so tests can substitute fakes.
type Dispatcher struct {
	textFor   func(*provider.Handle) (backend.TextBackend, error)
	objectFor func(*provider.Handle) (backend.ObjectBackend, error)
	imageFor  func(context.Context, *provider.Handle) (backend.ImageBackend, error)
	speechFor func(context.Context, *provider.Handle) (backend.SpeechBackend, error)
	videoFor  func(context.Context, *provider.Handle) (backend.VideoBackend, error)
}

// New creates a dispatcher wired to the real backends.
func New() *Dispatcher {
	return &Dispatcher{
		textFor:   backend.TextFor,
		objectFor: backend.ObjectFor,
		imageFor:  backend.ImageFor,
		speechFor: backend.SpeechFor,
		videoFor:  backend.VideoFor,
	}
}

// Factories overrides backend construction per capability. Nil fields keep
// the real backends.
type Factories struct {
	Text   func(*provider.Handle) (backend.TextBackend, error)
	Object func(*provider.Handle) (backend.ObjectBackend, error)
	Image  func(context.Context, *provider.Handle) (backend.ImageBackend, error)
	Speech func(context.Context, *provider.Handle) (backend.SpeechBackend, error)
	Video  func(context.Context, *provider.Handle) (backend.VideoBackend, error)
}

// NewWithFactories creates a dispatcher with some backends substituted.
func NewWithFactories(f Factories) *Dispatcher {
	d := New()
	if f.Text != nil {
		d.textFor = f.Text
	}
	if f.Object != nil {
		d.objectFor = f.Object
	}
	if f.Image != nil {
		d.imageFor = f.Image
	}
	if f.Speech != nil {
		d.speechFor = f.Speech
	}
	if f.Video != nil {
		d.videoFor = f.Video
	}
	return d
}

// VideoBackend returns the backend that can poll a deferred video task
// started through the handle.
func (d *Dispatcher) VideoBackend(ctx context.Context, h *provider.Handle) (backend.VideoBackend, error) {
	return d.videoFor(ctx, h)
}

// Dispatch performs one generation call and normalizes the result.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	modality := req.Handle.Modality
	if modality == provider.ModalityText && req.Structured {
		modality = provider.ModalityObject
	}

	slog.Debug("dispatching generation",
		"provider", req.Handle.Provider.ID,
		"model", req.Handle.Model.ID,
		"modality", modality)

	switch modality {
	case provider.ModalityText:
		return d.text(ctx, req)
	case provider.ModalityObject:
		return d.object(ctx, req)
	case provider.ModalityImage, provider.ModalityMultimodal:
		return d.image(ctx, req)
	case provider.ModalitySpeech:
		return d.speech(ctx, req)
	case provider.ModalityVideo:
		return d.video(ctx, req)
	default:
		return nil, fmt.Errorf("unknown modality: %s", modality)
	}
}

func (d *Dispatcher) text(ctx context.Context, req Request) (*Result, error) {
	b, err := d.textFor(req.Handle)
	if err != nil {
		return nil, err
	}

	var text string
	if req.Stream != nil {
		text, err = b.StreamText(ctx, d.backendRequest(req), req.Stream)
	} else {
		text, err = b.GenerateText(ctx, d.backendRequest(req))
	}
	if err != nil {
		return nil, d.upstream(req, err)
	}
	return &Result{Kind: KindText, Text: text}, nil
}

func (d *Dispatcher) object(ctx context.Context, req Request) (*Result, error) {
	b, err := d.objectFor(req.Handle)
	if err != nil {
		return nil, err
	}

	jsonSchema := nodes.PrimitiveSchema(req.FieldName)
	if req.NodeSchema != nil {
		jsonSchema = req.NodeSchema.JSONSchema()
	}

	raw, err := b.GenerateObject(ctx, d.backendRequest(req), jsonSchema)
	if err != nil {
		return nil, d.upstream(req, err)
	}

	var object map[string]any
	if err := json.Unmarshal(SanitizeJSON([]byte(raw)), &object); err != nil {
		return nil, &SchemaValidationError{Violations: []nodes.Violation{
			{Path: "root", Message: fmt.Sprintf("response is not valid JSON: %v", err)},
		}}
	}

	if req.NodeSchema != nil {
		if violations := req.NodeSchema.Validate(object); len(violations) > 0 {
			return nil, &SchemaValidationError{Violations: violations}
		}
	} else if req.FieldName != "" {
		if _, ok := object[req.FieldName]; !ok {
			return nil, &SchemaValidationError{Violations: []nodes.Violation{
				{Path: "root", Attribute: req.FieldName, Message: "missing required field"},
			}}
		}
	}
	return &Result{Kind: KindObject, Object: object}, nil
}

func (d *Dispatcher) image(ctx context.Context, req Request) (*Result, error) {
	b, err := d.imageFor(ctx, req.Handle)
	if err != nil {
		return nil, err
	}
	file, err := b.GenerateImage(ctx, d.backendRequest(req))
	if err != nil {
		return nil, d.upstream(req, err)
	}
	return &Result{Kind: KindFile, File: file}, nil
}

func (d *Dispatcher) speech(ctx context.Context, req Request) (*Result, error) {
	b, err := d.speechFor(ctx, req.Handle)
	if err != nil {
		return nil, err
	}
	file, err := b.Synthesize(ctx, d.backendRequest(req))
	if err != nil {
		return nil, d.upstream(req, err)
	}
	return &Result{Kind: KindFile, File: file}, nil
}

func (d *Dispatcher) video(ctx context.Context, req Request) (*Result, error) {
	b, err := d.videoFor(ctx, req.Handle)
	if err != nil {
		return nil, err
	}
	task, err := b.StartVideo(ctx, d.backendRequest(req))
	if err != nil {
		return nil, d.upstream(req, err)
	}
	return &Result{Kind: KindJob, Task: task}, nil
}

func (d *Dispatcher) backendRequest(req Request) backend.Request {
	return backend.Request{
		System:  req.System,
		Prompt:  req.Prompt,
		Options: req.Handle.Options(req.Options),
		Images:  req.Images,
	}
}

func (d *Dispatcher) upstream(req Request, err error) error {
	wrapped := &UpstreamError{Provider: req.Handle.Provider.ID, cause: err}
	slog.Error("upstream generation failed",
		"provider", req.Handle.Provider.ID,
		"model", req.Handle.Model.ID,
		"error", err)
	return wrapped
}
