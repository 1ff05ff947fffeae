package models

import "time"

// UseCase tags a model with the kind of output it produces.
type UseCase string

const (
	UseCaseText   UseCase = "text"
	UseCaseImage  UseCase = "image"
	UseCaseSpeech UseCase = "speech"
	UseCaseVideo  UseCase = "video"
)

// ModelConfig describes one model offered by a provider. Model ids are
// unique within a provider, not globally.
type ModelConfig struct {
	ID                 string   `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	UseCase            UseCase  `json:"use_case" yaml:"useCase"`
	ResponseModalities []string `json:"response_modalities,omitempty" yaml:"responseModalities,omitempty"`
	Enabled            bool     `json:"enabled" yaml:"enabled"`
}

// ProviderSettings is the persisted configuration for one generation
// backend. The API key is stored encrypted; only a privileged read
// context decrypts it.
type ProviderSettings struct {
	ID             string                    `json:"id" yaml:"id"`
	Kind           string                    `json:"kind" yaml:"kind"`
	Enabled        bool                      `json:"enabled" yaml:"enabled"`
	APIKeyCipher   string                    `json:"api_key_cipher,omitempty" yaml:"apiKeyCipher,omitempty"`
	BaseURL        string                    `json:"base_url,omitempty" yaml:"baseURL,omitempty"`
	Region         string                    `json:"region,omitempty" yaml:"region,omitempty"`
	Models         []ModelConfig             `json:"models" yaml:"models"`
	DefaultOptions map[UseCase]map[string]any `json:"default_options,omitempty" yaml:"defaultOptions,omitempty"`
	UpdatedAt      time.Time                 `json:"updated_at" yaml:"-"`
}

// ModelRef points at one provider/model pair.
type ModelRef struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// GlobalDefaults picks the provider/model used per use case when an
// instruction does not name one.
type GlobalDefaults map[UseCase]ModelRef
