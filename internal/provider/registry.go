// Package provider resolves configured generation backends and their models.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
)

var (
	// ErrProviderNotConfigured is returned when a provider is missing,
	// disabled, or lacks required credentials.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrModelNotFound is returned when a model id is not listed (or not
	// enabled) under the provider for the requested use case.
	ErrModelNotFound = errors.New("model not found")
)

// Snapshot is an immutable view of all provider configuration. Requests
// resolve against one snapshot for their whole lifetime, so a concurrent
// reload can never produce a torn read.
type Snapshot struct {
	Providers map[string]models.ProviderSettings
	Defaults  models.GlobalDefaults
}

// Registry holds the current configuration snapshot and swaps it atomically
// on reload.
type Registry struct {
	store  db.Store
	cipher *Cipher
	snap   atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry with an empty snapshot. Call Reload before
// serving requests.
func NewRegistry(store db.Store, cipher *Cipher) *Registry {
	r := &Registry{store: store, cipher: cipher}
	r.snap.Store(&Snapshot{
		Providers: map[string]models.ProviderSettings{},
		Defaults:  models.GlobalDefaults{},
	})
	return r
}

// Reload reads all provider settings and global defaults from the store and
// swaps them in as the new snapshot.
func (r *Registry) Reload(ctx context.Context) error {
	providers, err := r.store.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("loading providers: %w", err)
	}
	defaults, err := r.store.GetDefaults(ctx)
	if err != nil {
		return fmt.Errorf("loading defaults: %w", err)
	}

	snap := &Snapshot{
		Providers: make(map[string]models.ProviderSettings, len(providers)),
		Defaults:  defaults,
	}
	for _, p := range providers {
		snap.Providers[p.ID] = p
	}
	r.snap.Store(snap)
	slog.Info("provider registry reloaded", "providers", len(providers))
	return nil
}

// Snapshot returns the current configuration view.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Handle is a resolved provider/model pair ready for dispatch.
type Handle struct {
	Provider models.ProviderSettings
	Model    models.ModelConfig
	Modality Modality

	cipher *Cipher
}

// APIKey decrypts the provider credential. Only call this at the point a
// backend request is built.
func (h *Handle) APIKey() (string, error) {
	if h.Provider.APIKeyCipher == "" {
		return "", nil
	}
	return h.cipher.Decrypt(h.Provider.APIKeyCipher)
}

// Options merges per-call overrides over the provider's defaults for the
// model's use case.
func (h *Handle) Options(overrides map[string]any) map[string]any {
	return MergeOptions(h.Provider.DefaultOptions[h.Model.UseCase], overrides)
}

// keyless provider kinds authenticate via ambient credentials instead of a
// stored API key.
var keyless = map[string]bool{
	"ollama":  true,
	"bedrock": true,
}

// ProviderHandle returns a handle for provider-level calls that need no
// model, like listing the voice catalogue.
func (r *Registry) ProviderHandle(providerID string) (*Handle, error) {
	snap := r.snap.Load()
	p, ok := snap.Providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, providerID)
	}
	if !p.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrProviderNotConfigured, providerID)
	}
	if p.APIKeyCipher == "" && !keyless[p.Kind] {
		return nil, fmt.Errorf("%w: %s has no credentials", ErrProviderNotConfigured, providerID)
	}
	return &Handle{Provider: p, cipher: r.cipher}, nil
}

// Resolve picks the provider and model for a request. Empty providerID or
// modelID fall back to the global defaults for the use case. Resolution
// never makes a network call.
func (r *Registry) Resolve(useCase models.UseCase, providerID, modelID string) (*Handle, error) {
	snap := r.snap.Load()

	if providerID == "" || modelID == "" {
		ref, ok := snap.Defaults[useCase]
		if !ok {
			return nil, fmt.Errorf("%w: no default for use case %q", ErrProviderNotConfigured, useCase)
		}
		if providerID == "" {
			providerID = ref.Provider
		}
		if modelID == "" {
			modelID = ref.Model
		}
	}

	p, ok := snap.Providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, providerID)
	}
	if !p.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrProviderNotConfigured, providerID)
	}
	if p.APIKeyCipher == "" && !keyless[p.Kind] {
		return nil, fmt.Errorf("%w: %s has no credentials", ErrProviderNotConfigured, providerID)
	}

	for _, m := range p.Models {
		if m.ID != modelID || m.UseCase != useCase {
			continue
		}
		if !m.Enabled {
			return nil, fmt.Errorf("%w: %s/%s is disabled", ErrModelNotFound, providerID, modelID)
		}
		return &Handle{
			Provider: p,
			Model:    m,
			Modality: detectModality(p, m),
			cipher:   r.cipher,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s for use case %q", ErrModelNotFound, providerID, modelID, useCase)
}
