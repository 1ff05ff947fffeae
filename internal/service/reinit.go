package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"draftsmith/internal/config"
	"draftsmith/internal/instruction"
	"draftsmith/internal/provider"
	"draftsmith/internal/schema"
)

// ReinitResult summarizes one reinitialization pass.
type ReinitResult struct {
	DocumentTypes int `json:"document_types"`
	Created       int `json:"created"`
}

// ReinitService recomputes schema paths and seeds missing instructions for
// every configured document type, then reloads the provider registry.
// Reinit reads and writes the instruction store, so concurrent runs are
// collapsed into one via singleflight.
type ReinitService struct {
	seed         *config.SeedFile
	instructions *instruction.Store
	registry     *provider.Registry
	generate     *GenerateService

	group singleflight.Group
}

// NewReinitService creates the reinit service.
func NewReinitService(seed *config.SeedFile, instructions *instruction.Store, registry *provider.Registry, generate *GenerateService) *ReinitService {
	return &ReinitService{
		seed:         seed,
		instructions: instructions,
		registry:     registry,
		generate:     generate,
	}
}

// Reinit runs one pass. Concurrent callers share the in-flight run and its
// result.
func (s *ReinitService) Reinit(ctx context.Context) (*ReinitResult, error) {
	v, err, shared := s.group.Do("reinit", func() (any, error) {
		return s.run(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("reinit shared with concurrent caller")
	}
	return v.(*ReinitResult), nil
}

func (s *ReinitService) run(ctx context.Context) (*ReinitResult, error) {
	result := &ReinitResult{}
	for _, dt := range s.seed.DocumentTypes {
		entries := schema.Flatten(dt.Fields)
		created, err := s.instructions.SeedMissing(ctx, dt.Name, entries)
		if err != nil {
			return nil, fmt.Errorf("seeding %s: %w", dt.Name, err)
		}
		result.DocumentTypes++
		result.Created += created
	}

	if err := s.registry.Reload(ctx); err != nil {
		return nil, err
	}
	if s.generate != nil {
		s.generate.Invalidate()
	}

	slog.Info("reinitialized", "document_types", result.DocumentTypes, "instructions_created", result.Created)
	return result, nil
}
