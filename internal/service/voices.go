package service

import (
	"context"

	"draftsmith/internal/backend"
	"draftsmith/internal/provider"
)

// VoicesService proxies a provider's voice catalogue using the server-held
// credential. The credential never reaches the caller.
type VoicesService struct {
	registry  *provider.Registry
	voicesFor func(*provider.Handle) (backend.VoiceLister, error)
}

// NewVoicesService creates the voices service.
func NewVoicesService(registry *provider.Registry) *VoicesService {
	return &VoicesService{
		registry:  registry,
		voicesFor: backend.VoicesFor,
	}
}

// Fetch lists the voices a provider offers.
func (s *VoicesService) Fetch(ctx context.Context, providerID string) ([]backend.Voice, error) {
	handle, err := s.registry.ProviderHandle(providerID)
	if err != nil {
		return nil, err
	}
	lister, err := s.voicesFor(handle)
	if err != nil {
		return nil, err
	}
	return lister.ListVoices(ctx)
}
