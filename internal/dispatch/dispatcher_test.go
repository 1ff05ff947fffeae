package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftsmith/internal/backend"
	"draftsmith/internal/models"
	"draftsmith/internal/nodes"
	"draftsmith/internal/provider"
)

type fakeText struct {
	response string
	err      error
	streamed bool
}

func (f *fakeText) GenerateText(ctx context.Context, req backend.Request) (string, error) {
	return f.response, f.err
}

func (f *fakeText) StreamText(ctx context.Context, req backend.Request, fn func(string) error) (string, error) {
	f.streamed = true
	for _, chunk := range []string{"Hel", "lo"} {
		if err := fn(chunk); err != nil {
			return "", err
		}
	}
	return f.response, f.err
}

type fakeObject struct {
	response string
	err      error
	schema   map[string]any
	prompt   string
}

func (f *fakeObject) GenerateObject(ctx context.Context, req backend.Request, jsonSchema map[string]any) (string, error) {
	f.schema = jsonSchema
	f.prompt = req.Prompt
	return f.response, f.err
}

type fakeMedia struct {
	file *backend.File
	task *backend.VideoTask
	err  error
}

func (f *fakeMedia) GenerateImage(ctx context.Context, req backend.Request) (*backend.File, error) {
	return f.file, f.err
}

func (f *fakeMedia) Synthesize(ctx context.Context, req backend.Request) (*backend.File, error) {
	return f.file, f.err
}

func (f *fakeMedia) StartVideo(ctx context.Context, req backend.Request) (*backend.VideoTask, error) {
	return f.task, f.err
}

func (f *fakeMedia) CheckVideo(ctx context.Context, taskID string) (*backend.VideoTask, error) {
	return f.task, f.err
}

func handle(modality provider.Modality) *provider.Handle {
	return &provider.Handle{
		Provider: models.ProviderSettings{ID: "test-provider", Kind: "openai", Enabled: true},
		Model:    models.ModelConfig{ID: "m", Name: "test-model", Enabled: true},
		Modality: modality,
	}
}

func dispatcherWith(text *fakeText, object *fakeObject, media *fakeMedia) *Dispatcher {
	return &Dispatcher{
		textFor: func(*provider.Handle) (backend.TextBackend, error) { return text, nil },
		objectFor: func(*provider.Handle) (backend.ObjectBackend, error) { return object, nil },
		imageFor: func(context.Context, *provider.Handle) (backend.ImageBackend, error) { return media, nil },
		speechFor: func(context.Context, *provider.Handle) (backend.SpeechBackend, error) { return media, nil },
		videoFor: func(context.Context, *provider.Handle) (backend.VideoBackend, error) { return media, nil },
	}
}

func TestDispatchText(t *testing.T) {
	text := &fakeText{response: "Hello"}
	d := dispatcherWith(text, nil, nil)

	res, err := d.Dispatch(context.Background(), Request{
		Handle: handle(provider.ModalityText),
		Prompt: "Write about Foo",
	})
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "Hello", res.Text)
	assert.False(t, text.streamed)
}

func TestDispatchTextStreaming(t *testing.T) {
	text := &fakeText{response: "Hello"}
	d := dispatcherWith(text, nil, nil)

	var chunks []string
	res, err := d.Dispatch(context.Background(), Request{
		Handle: handle(provider.ModalityText),
		Prompt: "p",
		Stream: func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.True(t, text.streamed)
}

func richDocSchema(t *testing.T) *nodes.Schema {
	t.Helper()
	s, err := nodes.Build(nodes.DefaultGrammar())
	require.NoError(t, err)
	return s.Prune([]string{"paragraph", "heading"})
}

func TestDispatchStructuredObject(t *testing.T) {
	object := &fakeObject{response: "```json\n{\"type\":\"root\",\"children\":[{\"type\":\"paragraph\",\"children\":[{\"type\":\"text\",\"text\":\"hi\"}]}]}\n```"}
	d := dispatcherWith(nil, object, nil)

	res, err := d.Dispatch(context.Background(), Request{
		Handle:     handle(provider.ModalityText),
		Prompt:     "Write about Foo",
		Structured: true,
		NodeSchema: richDocSchema(t),
	})
	require.NoError(t, err)
	assert.Equal(t, KindObject, res.Kind)
	assert.Equal(t, "root", res.Object["type"])

	// Node schema, not primitive, reached the backend
	assert.Contains(t, object.schema, "$defs")
}

func TestDispatchStructuredRejectsUnlistedType(t *testing.T) {
	object := &fakeObject{response: `{"type":"root","children":[{"type":"customEmbed","children":[]}]}`}
	d := dispatcherWith(nil, object, nil)

	_, err := d.Dispatch(context.Background(), Request{
		Handle:     handle(provider.ModalityText),
		Prompt:     "p",
		Structured: true,
		NodeSchema: richDocSchema(t),
	})
	var validationErr *SchemaValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Violations)
}

func TestDispatchStructuredRejectsBadJSON(t *testing.T) {
	object := &fakeObject{response: "sorry, I can't do that"}
	d := dispatcherWith(nil, object, nil)

	_, err := d.Dispatch(context.Background(), Request{
		Handle:     handle(provider.ModalityText),
		Prompt:     "p",
		Structured: true,
		NodeSchema: richDocSchema(t),
	})
	var validationErr *SchemaValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestDispatchPrimitiveObject(t *testing.T) {
	object := &fakeObject{response: `{"title":"A Headline"}`}
	d := dispatcherWith(nil, object, nil)

	res, err := d.Dispatch(context.Background(), Request{
		Handle:     handle(provider.ModalityText),
		Prompt:     "p",
		Structured: true,
		FieldName:  "title",
	})
	require.NoError(t, err)
	assert.Equal(t, "A Headline", res.Object["title"])

	// Missing field is a validation failure
	object.response = `{"other":"x"}`
	_, err = d.Dispatch(context.Background(), Request{
		Handle:     handle(provider.ModalityText),
		Prompt:     "p",
		Structured: true,
		FieldName:  "title",
	})
	var validationErr *SchemaValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestDispatchImage(t *testing.T) {
	media := &fakeMedia{file: &backend.File{Name: "generated.png", MimeType: "image/png"}}
	d := dispatcherWith(nil, nil, media)

	res, err := d.Dispatch(context.Background(), Request{
		Handle: handle(provider.ModalityImage),
		Prompt: "a lighthouse",
	})
	require.NoError(t, err)
	assert.Equal(t, KindFile, res.Kind)
	assert.Equal(t, "generated.png", res.File.Name)
}

func TestDispatchVideoNormalizesToJob(t *testing.T) {
	media := &fakeMedia{task: &backend.VideoTask{TaskID: "op-123"}}
	d := dispatcherWith(nil, nil, media)

	res, err := d.Dispatch(context.Background(), Request{
		Handle: handle(provider.ModalityVideo),
		Prompt: "a timelapse",
	})
	require.NoError(t, err)
	assert.Equal(t, KindJob, res.Kind)
	assert.Equal(t, "op-123", res.Task.TaskID)
}

func TestUpstreamErrorIsSanitized(t *testing.T) {
	cause := fmt.Errorf("401 unauthorized: api key sk-secret-123 rejected")
	media := &fakeMedia{err: cause}
	d := dispatcherWith(nil, nil, media)

	_, err := d.Dispatch(context.Background(), Request{
		Handle: handle(provider.ModalityImage),
		Prompt: "p",
	})
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.NotContains(t, upstream.Error(), "sk-secret-123")
	assert.Contains(t, upstream.Error(), "test-provider")
	assert.True(t, errors.Is(err, cause))
}

func TestSanitizeJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(SanitizeJSON([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(SanitizeJSON([]byte("```\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(SanitizeJSON([]byte(`  {"a":1}  `))))
}
