// Package db persists instruction records, provider settings, and
// generation jobs. The SurrealDB client is the production implementation;
// Memory backs tests and single-process development.
package db

import (
	"context"
	"errors"

	"draftsmith/internal/models"
)

// Sentinel errors for store operations. Use errors.Is() in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store is the record store the pipeline runs against: create/find/update
// by id, nothing fancier.
type Store interface {
	// Instructions, keyed by (documentType, schemaPath).
	GetInstruction(ctx context.Context, documentType, schemaPath string) (*models.InstructionRecord, error)
	GetInstructionByID(ctx context.Context, id string) (*models.InstructionRecord, error)
	ListInstructions(ctx context.Context, documentType string) ([]models.InstructionRecord, error)
	UpsertInstruction(ctx context.Context, rec *models.InstructionRecord) error

	// Provider settings and global per-use-case defaults.
	ListProviders(ctx context.Context) ([]models.ProviderSettings, error)
	GetProvider(ctx context.Context, id string) (*models.ProviderSettings, error)
	UpsertProvider(ctx context.Context, settings *models.ProviderSettings) error
	GetDefaults(ctx context.Context) (models.GlobalDefaults, error)
	SetDefaults(ctx context.Context, defaults models.GlobalDefaults) error

	// Generation jobs.
	CreateJob(ctx context.Context, job *models.GenerationJob) error
	GetJob(ctx context.Context, id string) (*models.GenerationJob, error)
	UpdateJob(ctx context.Context, job *models.GenerationJob) error
	ListJobs(ctx context.Context, limit int) ([]models.GenerationJob, error)
}
