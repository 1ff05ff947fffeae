package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"draftsmith/internal/provider"
)

// BedrockBackend generates images through Amazon Bedrock's Titan image
// models. Credentials come from the ambient AWS configuration, not a stored
// API key.
type BedrockBackend struct {
	client    *bedrockruntime.Client
	modelName string
}

var _ ImageBackend = (*BedrockBackend)(nil)

// NewBedrockBackend creates a Bedrock runtime client in the provider's
// configured region.
func NewBedrockBackend(ctx context.Context, h *provider.Handle) (*BedrockBackend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if h.Provider.Region != "" {
		opts = append(opts, awsconfig.WithRegion(h.Provider.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockBackend{
		client:    bedrockruntime.NewFromConfig(cfg),
		modelName: h.Model.Name,
	}, nil
}

type titanImageRequest struct {
	TaskType          string                 `json:"taskType"`
	TextToImageParams titanTextToImage       `json:"textToImageParams"`
	ImageConfig       titanImageGeneration   `json:"imageGenerationConfig"`
}

type titanTextToImage struct {
	Text string `json:"text"`
}

type titanImageGeneration struct {
	NumberOfImages int `json:"numberOfImages"`
	Width          int `json:"width"`
	Height         int `json:"height"`
}

type titanImageResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// GenerateImage invokes the Titan image model and decodes the first result.
func (b *BedrockBackend) GenerateImage(ctx context.Context, req Request) (*File, error) {
	width, height := 1024, 1024
	if v, ok := intOption(req.Options, "width"); ok {
		width = v
	}
	if v, ok := intOption(req.Options, "height"); ok {
		height = v
	}

	body, err := json.Marshal(titanImageRequest{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: titanTextToImage{Text: req.Prompt},
		ImageConfig: titanImageGeneration{
			NumberOfImages: 1,
			Width:          width,
			Height:         height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal titan request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &b.modelName,
		ContentType: ptr("application/json"),
		Accept:      ptr("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke titan model: %w", err)
	}

	var resp titanImageResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode titan response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("titan error: %s", resp.Error)
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("model produced no image")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decode titan image: %w", err)
	}
	return &File{Name: "generated.png", Data: data, MimeType: "image/png"}, nil
}

func ptr[T any](v T) *T { return &v }
