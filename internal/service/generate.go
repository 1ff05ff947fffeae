// Package service orchestrates the generation pipeline: instruction lookup,
// prompt rendering, model resolution, dispatch and job creation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"draftsmith/internal/backend"
	"draftsmith/internal/config"
	"draftsmith/internal/db"
	"draftsmith/internal/dispatch"
	"draftsmith/internal/document"
	"draftsmith/internal/instruction"
	"draftsmith/internal/jobs"
	"draftsmith/internal/models"
	"draftsmith/internal/nodes"
	"draftsmith/internal/prompt"
	"draftsmith/internal/provider"
	"draftsmith/internal/schema"
)

// GenerateRequest is one field generation invocation.
type GenerateRequest struct {
	DocumentType string
	// LivePath addresses the field in the live document and may contain
	// array indices.
	LivePath string
	// InstructionID selects the instruction directly, bypassing the path
	// lookup.
	InstructionID string
	Document      map[string]any
	Options       map[string]any
	Images        []backend.File
	// Stream receives text chunks when the caller wants incremental output.
	Stream func(chunk string) error
}

// GenerateResponse is the pipeline outcome. Job is set when the backend
// deferred the work.
type GenerateResponse struct {
	Result *dispatch.Result
	Job    *models.GenerationJob
}

// GenerateService runs the full pipeline for one request.
type GenerateService struct {
	seed         *config.SeedFile
	instructions *instruction.Store
	registry     *provider.Registry
	dispatcher   *dispatch.Dispatcher
	tracker      *jobs.Tracker
	poll         jobs.PollConfig

	mu       sync.Mutex
	pathMaps map[string]*schema.PathMap
	entries  map[string][]schema.PathEntry
}

// NewGenerateService wires the pipeline stages together.
func NewGenerateService(seed *config.SeedFile, store db.Store, registry *provider.Registry, tracker *jobs.Tracker) *GenerateService {
	return &GenerateService{
		seed:         seed,
		instructions: instruction.NewStore(store),
		registry:     registry,
		dispatcher:   dispatch.New(),
		tracker:      tracker,
		poll:         jobs.DefaultPollConfig(),
		pathMaps:     make(map[string]*schema.PathMap),
		entries:      make(map[string][]schema.PathEntry),
	}
}

// Instructions exposes the underlying instruction store.
func (s *GenerateService) Instructions() *instruction.Store { return s.instructions }

// SetDispatcher swaps the backend dispatcher, letting callers substitute
// fake backends.
func (s *GenerateService) SetDispatcher(d *dispatch.Dispatcher) { s.dispatcher = d }

// SetPollConfig tunes how long deferred jobs are watched.
func (s *GenerateService) SetPollConfig(cfg jobs.PollConfig) { s.poll = cfg }

// Invalidate drops the cached schema path maps. Called after reinit, when
// document type schemas may have changed.
func (s *GenerateService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathMaps = make(map[string]*schema.PathMap)
	s.entries = make(map[string][]schema.PathEntry)
}

// schemaEntries returns the flattened schema for a document type, cached
// until the next Invalidate.
func (s *GenerateService) schemaEntries(documentType string) ([]schema.PathEntry, *schema.PathMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries, ok := s.entries[documentType]; ok {
		return entries, s.pathMaps[documentType], nil
	}

	dt, ok := s.seed.DocumentType(documentType)
	if !ok {
		return nil, nil, fmt.Errorf("unknown document type: %s", documentType)
	}
	entries := schema.Flatten(dt.Fields)
	s.entries[documentType] = entries
	s.pathMaps[documentType] = schema.NewPathMapFromEntries(entries)
	return entries, s.pathMaps[documentType], nil
}

// Generate runs the pipeline: look up the instruction, render the prompts,
// resolve the model, dispatch, and record a job when the backend defers.
func (s *GenerateService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	entries, _, err := s.schemaEntries(req.DocumentType)
	if err != nil {
		return nil, err
	}

	rec, err := s.lookupInstruction(ctx, req, entries)
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		return nil, fmt.Errorf("generation disabled for %s", rec.SchemaPath)
	}

	engine := s.promptEngine(entries)
	promptText, err := engine.Render(rec.Template, req.Document)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	system, err := engine.RenderSystem(rec.System, req.Document, "")
	if err != nil {
		return nil, fmt.Errorf("rendering system prompt: %w", err)
	}

	handle, err := s.resolve(rec, req.Options)
	if err != nil {
		return nil, err
	}

	dreq := dispatch.Request{
		Handle:  handle,
		System:  system,
		Prompt:  promptText,
		Options: callOverrides(rec, req.Options),
		Images:  req.Images,
		Stream:  req.Stream,
	}
	if rec.FieldType == string(schema.TypeRichDocument) {
		dreq.Structured = true
		dreq.NodeSchema, err = s.nodeSchema(rec)
		if err != nil {
			return nil, err
		}
	} else if structured, _ := req.Options["structured"].(bool); structured {
		dreq.Structured = true
		dreq.FieldName = lastSegment(rec.SchemaPath)
	}

	result, err := s.dispatcher.Dispatch(ctx, dreq)
	if err != nil {
		return nil, err
	}

	resp := &GenerateResponse{Result: result}
	if result.Kind == dispatch.KindJob {
		job, err := s.tracker.Create(ctx, result.Task.TaskID, handle.Provider.ID, handle.Model.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		resp.Job = job
		go s.watchJob(job, handle)
	}
	return resp, nil
}

// watchJob polls a deferred task in the background until the job record
// reaches a terminal state or the poll bound runs out. Detached from the
// request context: the job outlives the HTTP call that started it.
func (s *GenerateService) watchJob(job *models.GenerationJob, handle *provider.Handle) {
	ctx := context.Background()

	video, err := s.dispatcher.VideoBackend(ctx, handle)
	if err != nil {
		slog.Error("job watcher has no backend", "job_id", job.ID, "error", err)
		if _, terr := s.tracker.Transition(ctx, job.ID, models.JobFailed, func(j *models.GenerationJob) {
			j.Error = "backend unavailable"
		}); terr != nil {
			slog.Error("failing orphaned job", "job_id", job.ID, "error", terr)
		}
		return
	}

	checker := jobs.CheckerFunc(func(ctx context.Context, taskID string) (jobs.Status, error) {
		task, err := video.CheckVideo(ctx, taskID)
		if err != nil {
			return jobs.Status{}, err
		}
		return jobs.Status{
			Done:      task.Done,
			Failed:    task.Failed,
			Error:     task.Error,
			ResultRef: task.ResultURL,
		}, nil
	})

	if _, err := s.tracker.Poll(ctx, job.ID, checker, s.poll); err != nil {
		slog.Warn("job polling stopped", "job_id", job.ID, "error", err)
	}
}

// Apply writes a generated value into the document at the requested live
// path. Last write wins; callers needing version checks layer them on top.
func (s *GenerateService) Apply(doc map[string]any, livePath string, value any) map[string]any {
	return document.Apply(doc, livePath, value)
}

// lookupInstruction finds the instruction for the request, seeding defaults
// for the document type when the path has never been configured.
func (s *GenerateService) lookupInstruction(ctx context.Context, req GenerateRequest, entries []schema.PathEntry) (*models.InstructionRecord, error) {
	if req.InstructionID != "" {
		return s.instructions.GetByID(ctx, req.InstructionID)
	}

	rec, err := s.instructions.Get(ctx, req.DocumentType, req.LivePath)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if _, err := s.instructions.SeedMissing(ctx, req.DocumentType, entries); err != nil {
		return nil, err
	}
	return s.instructions.Get(ctx, req.DocumentType, req.LivePath)
}

// promptEngine builds a template engine with the document type's
// rich-document fields exposed as HTML-rendered computed variables.
func (s *GenerateService) promptEngine(entries []schema.PathEntry) *prompt.Engine {
	engine := prompt.NewEngine()
	for _, entry := range entries {
		if entry.FieldType == schema.TypeRichDocument {
			engine.RegisterComputed(lastSegment(entry.Path), prompt.RichDocumentHTML(entry.Path))
		}
	}
	return engine
}

func (s *GenerateService) resolve(rec *models.InstructionRecord, options map[string]any) (*provider.Handle, error) {
	useCase := models.UseCaseText
	switch rec.FieldType {
	case string(schema.TypeUpload):
		useCase = models.UseCaseImage
		if v, ok := stringSetting(rec.ModelSettings, options, "useCase"); ok {
			useCase = models.UseCase(v)
		}
	}

	providerID, _ := stringSetting(rec.ModelSettings, options, "provider")
	return s.registry.Resolve(useCase, providerID, rec.ModelID)
}

// nodeSchema builds the pruned grammar for a rich-document instruction.
func (s *GenerateService) nodeSchema(rec *models.InstructionRecord) (*nodes.Schema, error) {
	built, err := nodes.Build(nodes.DefaultGrammar())
	if err != nil {
		return nil, err
	}
	if allowed := stringSlice(rec.ModelSettings["allowedNodes"]); len(allowed) > 0 {
		built = built.Prune(allowed)
	}
	return built, nil
}

// callOverrides flattens instruction settings under per-request options.
func callOverrides(rec *models.InstructionRecord, options map[string]any) map[string]any {
	return provider.MergeOptions(rec.ModelSettings, options)
}

func stringSetting(settings, options map[string]any, key string) (string, bool) {
	if v, ok := options[key].(string); ok && v != "" {
		return v, true
	}
	if v, ok := settings[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
