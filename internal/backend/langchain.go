package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"draftsmith/internal/provider"
)

// ChatBackend drives chat-completion style models through langchaingo. It
// covers both the text and the structured-object capabilities.
type ChatBackend struct {
	llm       llms.Model
	modelName string
}

var (
	_ TextBackend   = (*ChatBackend)(nil)
	_ ObjectBackend = (*ChatBackend)(nil)
)

// NewChatBackend creates the langchaingo model for a resolved handle.
func NewChatBackend(h *provider.Handle) (*ChatBackend, error) {
	apiKey, err := h.APIKey()
	if err != nil {
		return nil, fmt.Errorf("reading credentials for %s: %w", h.Provider.ID, err)
	}

	var model llms.Model
	switch h.Provider.Kind {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(h.Model.Name),
		}
		if h.Provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(h.Provider.BaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(apiKey),
			anthropic.WithModel(h.Model.Name),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(h.Model.Name),
		}
		if h.Provider.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(h.Provider.BaseURL))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported chat provider kind: %s", h.Provider.Kind)
	}

	return &ChatBackend{llm: model, modelName: h.Model.Name}, nil
}

// GenerateText generates text from the rendered prompts.
func (b *ChatBackend) GenerateText(ctx context.Context, req Request) (string, error) {
	response, err := b.llm.GenerateContent(ctx, messages(req), callOptions(req.Options)...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

// StreamText generates text, invoking fn for every chunk as it arrives.
func (b *ChatBackend) StreamText(ctx context.Context, req Request, fn func(chunk string) error) (string, error) {
	opts := append(callOptions(req.Options), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		return fn(string(chunk))
	}))

	response, err := b.llm.GenerateContent(ctx, messages(req), opts...)
	if err != nil {
		return "", fmt.Errorf("stream: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

// GenerateObject asks the model for JSON conforming to the given schema and
// returns the raw response text.
func (b *ChatBackend) GenerateObject(ctx context.Context, req Request, jsonSchema map[string]any) (string, error) {
	schemaJSON, err := json.Marshal(jsonSchema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}

	structured := req
	structured.Prompt = fmt.Sprintf(
		"%s\n\nRespond with a single JSON object conforming to this JSON schema. Output only the JSON, no prose.\n\nSchema:\n%s",
		req.Prompt, schemaJSON,
	)

	opts := append(callOptions(req.Options), llms.WithJSONMode())
	response, err := b.llm.GenerateContent(ctx, messages(structured), opts...)
	if err != nil {
		return "", fmt.Errorf("generate object: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

func messages(req Request) []llms.MessageContent {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
}

// callOptions maps merged option maps onto langchaingo call options.
// Unknown keys are ignored; providers differ in what they accept.
func callOptions(options map[string]any) []llms.CallOption {
	var opts []llms.CallOption
	if v, ok := floatOption(options, "temperature"); ok {
		opts = append(opts, llms.WithTemperature(v))
	}
	if v, ok := floatOption(options, "topP"); ok {
		opts = append(opts, llms.WithTopP(v))
	}
	if v, ok := intOption(options, "maxTokens"); ok {
		opts = append(opts, llms.WithMaxTokens(v))
	}
	return opts
}

func floatOption(options map[string]any, key string) (float64, bool) {
	switch v := options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intOption(options map[string]any, key string) (int, bool) {
	switch v := options[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
