package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"draftsmith/internal/models"
)

// Row types mirror the persisted records with SurrealDB record ids; they
// never leave this package.

type instructionRow struct {
	ID            surrealmodels.RecordID `json:"id"`
	DocumentType  string                 `json:"document_type"`
	SchemaPath    string                 `json:"schema_path"`
	FieldType     string                 `json:"field_type"`
	ModelID       string                 `json:"model_id"`
	Template      string                 `json:"template"`
	System        *string                `json:"system,omitempty"`
	ModelSettings map[string]any         `json:"model_settings,omitempty"`
	Disabled      bool                   `json:"disabled"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func (r instructionRow) toModel() models.InstructionRecord {
	rec := models.InstructionRecord{
		ID:            models.MustRecordIDString(r.ID),
		DocumentType:  r.DocumentType,
		SchemaPath:    r.SchemaPath,
		FieldType:     r.FieldType,
		ModelID:       r.ModelID,
		Template:      r.Template,
		ModelSettings: r.ModelSettings,
		Disabled:      r.Disabled,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.System != nil {
		rec.System = *r.System
	}
	return rec
}

type providerRow struct {
	ID             surrealmodels.RecordID                   `json:"id"`
	Kind           string                                   `json:"kind"`
	Enabled        bool                                     `json:"enabled"`
	APIKeyCipher   *string                                  `json:"api_key_cipher,omitempty"`
	BaseURL        *string                                  `json:"base_url,omitempty"`
	Region         *string                                  `json:"region,omitempty"`
	Models         []models.ModelConfig                     `json:"models"`
	DefaultOptions map[models.UseCase]map[string]any        `json:"default_options,omitempty"`
	UpdatedAt      time.Time                                `json:"updated_at"`
}

func (r providerRow) toModel() models.ProviderSettings {
	s := models.ProviderSettings{
		ID:             models.MustRecordIDString(r.ID),
		Kind:           r.Kind,
		Enabled:        r.Enabled,
		Models:         r.Models,
		DefaultOptions: r.DefaultOptions,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.APIKeyCipher != nil {
		s.APIKeyCipher = *r.APIKeyCipher
	}
	if r.BaseURL != nil {
		s.BaseURL = *r.BaseURL
	}
	if r.Region != nil {
		s.Region = *r.Region
	}
	return s
}

type jobRow struct {
	ID            surrealmodels.RecordID `json:"id"`
	InstructionID *string                `json:"instruction_id,omitempty"`
	TaskID        string                 `json:"task_id"`
	ProviderID    string                 `json:"provider_id"`
	ModelID       string                 `json:"model_id"`
	Status        string                 `json:"status"`
	Progress      int                    `json:"progress"`
	ResultRef     *string                `json:"result_ref,omitempty"`
	Error         *string                `json:"error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

func (r jobRow) toModel() models.GenerationJob {
	j := models.GenerationJob{
		ID:          models.MustRecordIDString(r.ID),
		TaskID:      r.TaskID,
		ProviderID:  r.ProviderID,
		ModelID:     r.ModelID,
		Status:      models.JobStatus(r.Status),
		Progress:    r.Progress,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.InstructionID != nil {
		j.InstructionID = *r.InstructionID
	}
	if r.ResultRef != nil {
		j.ResultRef = *r.ResultRef
	}
	if r.Error != nil {
		j.Error = *r.Error
	}
	return j
}

// GetInstruction finds the instruction for one schema path of a document
// type. Returns ErrNotFound when no record exists.
func (c *Client) GetInstruction(ctx context.Context, documentType, schemaPath string) (*models.InstructionRecord, error) {
	results, err := surrealdb.Query[[]instructionRow](ctx, c.db, `
		SELECT * FROM instruction
		WHERE document_type = $document_type AND schema_path = $schema_path
		LIMIT 1
	`, map[string]any{
		"document_type": documentType,
		"schema_path":   schemaPath,
	})
	if err != nil {
		return nil, fmt.Errorf("get instruction: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	rec := (*results)[0].Result[0].toModel()
	return &rec, nil
}

// GetInstructionByID retrieves one instruction record by id.
func (c *Client) GetInstructionByID(ctx context.Context, id string) (*models.InstructionRecord, error) {
	results, err := surrealdb.Query[[]instructionRow](ctx, c.db, `
		SELECT * FROM type::record("instruction", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get instruction by id: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	rec := (*results)[0].Result[0].toModel()
	return &rec, nil
}

// ListInstructions returns every instruction of one document type in
// schema-path order.
func (c *Client) ListInstructions(ctx context.Context, documentType string) ([]models.InstructionRecord, error) {
	results, err := surrealdb.Query[[]instructionRow](ctx, c.db, `
		SELECT * FROM instruction
		WHERE document_type = $document_type
		ORDER BY schema_path
	`, map[string]any{"document_type": documentType})
	if err != nil {
		return nil, fmt.Errorf("list instructions: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]models.InstructionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// UpsertInstruction creates or replaces an instruction record by id.
func (c *Client) UpsertInstruction(ctx context.Context, rec *models.InstructionRecord) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("instruction", $id) CONTENT {
			document_type: $document_type,
			schema_path: $schema_path,
			field_type: $field_type,
			model_id: $model_id,
			template: $template,
			system: $system,
			model_settings: $model_settings,
			disabled: $disabled,
			updated_at: time::now()
		}
	`, map[string]any{
		"id":             rec.ID,
		"document_type":  rec.DocumentType,
		"schema_path":    rec.SchemaPath,
		"field_type":     rec.FieldType,
		"model_id":       rec.ModelID,
		"template":       rec.Template,
		"system":         rec.System,
		"model_settings": rec.ModelSettings,
		"disabled":       rec.Disabled,
	})
	if err != nil {
		return fmt.Errorf("upsert instruction: %w", wrapQueryError(err))
	}
	return nil
}

// ListProviders returns every stored provider configuration.
func (c *Client) ListProviders(ctx context.Context) ([]models.ProviderSettings, error) {
	results, err := surrealdb.Query[[]providerRow](ctx, c.db, `SELECT * FROM provider`, nil)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]models.ProviderSettings, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// GetProvider retrieves one provider configuration by id.
func (c *Client) GetProvider(ctx context.Context, id string) (*models.ProviderSettings, error) {
	results, err := surrealdb.Query[[]providerRow](ctx, c.db, `
		SELECT * FROM type::record("provider", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	s := (*results)[0].Result[0].toModel()
	return &s, nil
}

// UpsertProvider creates or replaces a provider configuration.
func (c *Client) UpsertProvider(ctx context.Context, settings *models.ProviderSettings) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("provider", $id) CONTENT {
			kind: $kind,
			enabled: $enabled,
			api_key_cipher: $api_key_cipher,
			base_url: $base_url,
			region: $region,
			models: $models,
			default_options: $default_options,
			updated_at: time::now()
		}
	`, map[string]any{
		"id":              settings.ID,
		"kind":            settings.Kind,
		"enabled":         settings.Enabled,
		"api_key_cipher":  settings.APIKeyCipher,
		"base_url":        settings.BaseURL,
		"region":          settings.Region,
		"models":          settings.Models,
		"default_options": settings.DefaultOptions,
	})
	if err != nil {
		return fmt.Errorf("upsert provider: %w", wrapQueryError(err))
	}
	return nil
}

// defaultsRecordID is the single record holding per-use-case defaults.
const defaultsRecordID = "global"

type defaultsRow struct {
	Entries models.GlobalDefaults `json:"entries"`
}

// GetDefaults returns the global per-use-case model defaults.
func (c *Client) GetDefaults(ctx context.Context) (models.GlobalDefaults, error) {
	results, err := surrealdb.Query[[]defaultsRow](ctx, c.db, `
		SELECT * FROM type::record("defaults", $id)
	`, map[string]any{"id": defaultsRecordID})
	if err != nil {
		return nil, fmt.Errorf("get defaults: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.GlobalDefaults{}, nil
	}
	return (*results)[0].Result[0].Entries, nil
}

// SetDefaults replaces the global per-use-case model defaults.
func (c *Client) SetDefaults(ctx context.Context, defaults models.GlobalDefaults) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("defaults", $id) CONTENT {
			entries: $entries,
			updated_at: time::now()
		}
	`, map[string]any{
		"id":      defaultsRecordID,
		"entries": defaults,
	})
	if err != nil {
		return fmt.Errorf("set defaults: %w", wrapQueryError(err))
	}
	return nil
}

// CreateJob persists a new generation job.
func (c *Client) CreateJob(ctx context.Context, job *models.GenerationJob) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("generation_job", $id) CONTENT {
			instruction_id: $instruction_id,
			task_id: $task_id,
			provider_id: $provider_id,
			model_id: $model_id,
			status: $status,
			progress: $progress,
			result_ref: $result_ref,
			error: $error,
			created_at: time::now(),
			updated_at: time::now(),
			completed_at: NONE
		}
	`, map[string]any{
		"id":             job.ID,
		"instruction_id": job.InstructionID,
		"task_id":        job.TaskID,
		"provider_id":    job.ProviderID,
		"model_id":       job.ModelID,
		"status":         string(job.Status),
		"progress":       job.Progress,
		"result_ref":     job.ResultRef,
		"error":          job.Error,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", wrapQueryError(err))
	}
	return nil
}

// GetJob retrieves one job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*models.GenerationJob, error) {
	results, err := surrealdb.Query[[]jobRow](ctx, c.db, `
		SELECT * FROM type::record("generation_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	j := (*results)[0].Result[0].toModel()
	return &j, nil
}

// UpdateJob replaces the mutable fields of a job record.
func (c *Client) UpdateJob(ctx context.Context, job *models.GenerationJob) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("generation_job", $id) MERGE {
			status: $status,
			progress: $progress,
			result_ref: $result_ref,
			error: $error,
			updated_at: time::now(),
			completed_at: $completed_at
		}
	`, map[string]any{
		"id":           job.ID,
		"status":       string(job.Status),
		"progress":     job.Progress,
		"result_ref":   job.ResultRef,
		"error":        job.Error,
		"completed_at": job.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("update job: %w", wrapQueryError(err))
	}
	return nil
}

// ListJobs returns jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]jobRow](ctx, c.db, `
		SELECT * FROM generation_job ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]models.GenerationJob, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
