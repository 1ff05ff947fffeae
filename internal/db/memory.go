package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"draftsmith/internal/models"
)

// Memory is an in-process Store used by tests and single-binary
// development setups where no SurrealDB is available.
type Memory struct {
	mu           sync.RWMutex
	instructions map[string]models.InstructionRecord // by id
	byPath       map[string]string                   // documentType+"\x00"+schemaPath -> id
	providers    map[string]models.ProviderSettings
	defaults     models.GlobalDefaults
	jobs         map[string]models.GenerationJob
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		instructions: map[string]models.InstructionRecord{},
		byPath:       map[string]string{},
		providers:    map[string]models.ProviderSettings{},
		defaults:     models.GlobalDefaults{},
		jobs:         map[string]models.GenerationJob{},
	}
}

func pathKey(documentType, schemaPath string) string {
	return documentType + "\x00" + schemaPath
}

func (m *Memory) GetInstruction(_ context.Context, documentType, schemaPath string) (*models.InstructionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[pathKey(documentType, schemaPath)]
	if !ok {
		return nil, ErrNotFound
	}
	rec := m.instructions[id]
	return &rec, nil
}

func (m *Memory) GetInstructionByID(_ context.Context, id string) (*models.InstructionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.instructions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) ListInstructions(_ context.Context, documentType string) ([]models.InstructionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.InstructionRecord
	for _, rec := range m.instructions {
		if rec.DocumentType == documentType {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchemaPath < out[j].SchemaPath })
	return out, nil
}

func (m *Memory) UpsertInstruction(_ context.Context, rec *models.InstructionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.UpdatedAt = time.Now()
	m.instructions[cp.ID] = cp
	m.byPath[pathKey(cp.DocumentType, cp.SchemaPath)] = cp.ID
	return nil
}

func (m *Memory) ListProviders(_ context.Context) ([]models.ProviderSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ProviderSettings, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProvider(_ context.Context, id string) (*models.ProviderSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) UpsertProvider(_ context.Context, settings *models.ProviderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *settings
	cp.UpdatedAt = time.Now()
	m.providers[cp.ID] = cp
	return nil
}

func (m *Memory) GetDefaults(_ context.Context) (models.GlobalDefaults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(models.GlobalDefaults, len(m.defaults))
	for k, v := range m.defaults {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SetDefaults(_ context.Context, defaults models.GlobalDefaults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = make(models.GlobalDefaults, len(defaults))
	for k, v := range defaults {
		m.defaults[k] = v
	}
	return nil
}

func (m *Memory) CreateJob(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *job
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.jobs[cp.ID] = cp
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*models.GenerationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (m *Memory) UpdateJob(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *job
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	m.jobs[cp.ID] = cp
	return nil
}

func (m *Memory) ListJobs(_ context.Context, limit int) ([]models.GenerationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.GenerationJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
