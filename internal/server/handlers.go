package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"draftsmith/internal/backend"
	"draftsmith/internal/db"
	"draftsmith/internal/dispatch"
	"draftsmith/internal/jobs"
	"draftsmith/internal/models"
	"draftsmith/internal/provider"
	"draftsmith/internal/service"
)

// GenerateBody is the request payload for a generation call.
type GenerateBody struct {
	DocumentType  string         `json:"documentType" example:"post"`
	Path          string         `json:"path" example:"body"`
	InstructionID string         `json:"instructionId,omitempty"`
	Document      map[string]any `json:"document,omitempty" jsonschema:"type=object,additionalProperties=true"`
	Options       map[string]any `json:"options,omitempty" jsonschema:"type=object,additionalProperties=true"`
	// Apply writes the generated value back into the returned document.
	Apply bool `json:"apply,omitempty"`
}

// FileResponse carries a binary generation result. Data is base64 in JSON.
type FileResponse struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mimetype"`
	Size     int    `json:"size"`
}

// JobResponse is the wire shape of an asynchronous generation job.
type JobResponse struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Status      string     `json:"status" enum:"queued,running,completed,failed,canceled"`
	Progress    int        `json:"progress"`
	ResultRef   string     `json:"resultRef,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// GenerateResult is the response payload. Exactly one of Text, Object,
// File or Job is set, indicated by Kind.
type GenerateResult struct {
	Kind     string         `json:"kind" enum:"text,object,file,job"`
	Text     string         `json:"text,omitempty"`
	Object   map[string]any `json:"object,omitempty" jsonschema:"type=object,additionalProperties=true"`
	File     *FileResponse  `json:"file,omitempty"`
	Job      *JobResponse   `json:"job,omitempty"`
	Document map[string]any `json:"document,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

func generateResult(svc *service.GenerateService, body GenerateBody, resp *service.GenerateResponse) GenerateResult {
	out := GenerateResult{Kind: string(resp.Result.Kind)}
	switch resp.Result.Kind {
	case dispatch.KindText:
		out.Text = resp.Result.Text
		if body.Apply {
			out.Document = svc.Apply(body.Document, body.Path, resp.Result.Text)
		}
	case dispatch.KindObject:
		out.Object = resp.Result.Object
		if body.Apply {
			out.Document = svc.Apply(body.Document, body.Path, resp.Result.Object)
		}
	case dispatch.KindFile:
		f := resp.Result.File
		out.File = &FileResponse{
			Name:     f.Name,
			Data:     f.Data,
			MimeType: f.MimeType,
			Size:     len(f.Data),
		}
	case dispatch.KindJob:
		job := jobResponse(resp.Job)
		out.Job = &job
	}
	return out
}

func registerGenerate(api huma.API, svc *service.GenerateService) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate",
		Method:        http.MethodPost,
		Path:          "/generate",
		Summary:       "Generate content for one document field",
		DefaultStatus: http.StatusOK,
		Errors:        []int{400, 401, 404, 422, 502},
	}, func(ctx context.Context, input *struct {
		Body GenerateBody
	}) (*struct {
		Body GenerateResult
	}, error) {
		resp, err := svc.Generate(ctx, service.GenerateRequest{
			DocumentType:  input.Body.DocumentType,
			LivePath:      input.Body.Path,
			InstructionID: input.Body.InstructionID,
			Document:      input.Body.Document,
			Options:       input.Body.Options,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GenerateResult
		}{Body: generateResult(svc, input.Body, resp)}, nil
	})
}

func registerUpload(api huma.API, svc *service.GenerateService) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-upload",
		Method:        http.MethodPost,
		Path:          "/generate/upload",
		Summary:       "Generate a media asset, optionally from reference images",
		DefaultStatus: http.StatusOK,
		Errors:        []int{400, 401, 404, 422, 502},
	}, func(ctx context.Context, input *struct {
		Body struct {
			GenerateBody
			// Images are base64-encoded reference inputs for multimodal
			// image models.
			Images []struct {
				Name     string `json:"name"`
				Data     []byte `json:"data"`
				MimeType string `json:"mimetype"`
			} `json:"images,omitempty"`
		}
	}) (*struct {
		Body GenerateResult
	}, error) {
		images := make([]backend.File, 0, len(input.Body.Images))
		for _, img := range input.Body.Images {
			images = append(images, backend.File{
				Name:     img.Name,
				Data:     img.Data,
				MimeType: img.MimeType,
			})
		}
		resp, err := svc.Generate(ctx, service.GenerateRequest{
			DocumentType:  input.Body.DocumentType,
			LivePath:      input.Body.Path,
			InstructionID: input.Body.InstructionID,
			Document:      input.Body.Document,
			Options:       input.Body.Options,
			Images:        images,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GenerateResult
		}{Body: generateResult(svc, input.Body.GenerateBody, resp)}, nil
	})
}

func registerJobs(api huma.API, tracker *jobs.Tracker) {
	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get one generation job",
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body JobResponse
	}, error) {
		job, err := tracker.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse
		}{Body: jobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List generation jobs, newest first",
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body struct {
			Jobs []JobResponse `json:"jobs"`
		}
	}, error) {
		list, err := tracker.List(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Jobs []JobResponse `json:"jobs"`
			}
		}{}
		out.Body.Jobs = make([]JobResponse, 0, len(list))
		for i := range list {
			out.Body.Jobs = append(out.Body.Jobs, jobResponse(&list[i]))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-job",
		Method:        http.MethodPost,
		Path:          "/jobs/{id}/cancel",
		Summary:       "Cancel a queued or running job",
		DefaultStatus: http.StatusOK,
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body JobResponse
	}, error) {
		job, err := tracker.Cancel(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse
		}{Body: jobResponse(job)}, nil
	})
}

func registerReinit(api huma.API, svc *service.ReinitService) {
	huma.Register(api, huma.Operation{
		OperationID:   "reinit",
		Method:        http.MethodPost,
		Path:          "/reinit",
		Summary:       "Recompute schema paths and seed missing instructions",
		DefaultStatus: http.StatusOK,
		Errors:        []int{401, 403},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body service.ReinitResult
	}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		result, err := svc.Reinit(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body service.ReinitResult
		}{Body: *result}, nil
	})
}

func registerVoices(api huma.API, svc *service.VoicesService) {
	huma.Register(api, huma.Operation{
		OperationID:   "fetch-voices",
		Method:        http.MethodPost,
		Path:          "/fetch-voices",
		Summary:       "Fetch the voice catalogue of a speech provider",
		DefaultStatus: http.StatusOK,
		Errors:        []int{401, 422},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Provider string `json:"provider" example:"elevenlabs"`
		}
	}) (*struct {
		Body struct {
			Voices []backend.Voice `json:"voices"`
		}
	}, error) {
		voices, err := svc.Fetch(ctx, input.Body.Provider)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Voices []backend.Voice `json:"voices"`
			}
		}{}
		out.Body.Voices = voices
		return out, nil
	})
}

func registerInstructions(api huma.API, svc *service.GenerateService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-instructions",
		Method:      http.MethodGet,
		Path:        "/instructions",
		Summary:     "List generation instructions for a document type",
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		DocumentType string `query:"documentType"`
	}) (*struct {
		Body struct {
			Instructions []models.InstructionRecord `json:"instructions"`
		}
	}, error) {
		list, err := svc.Instructions().List(ctx, input.DocumentType)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Instructions []models.InstructionRecord `json:"instructions"`
			}
		}{}
		out.Body.Instructions = list
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "upsert-instruction",
		Method:        http.MethodPut,
		Path:          "/instructions",
		Summary:       "Create or update a generation instruction",
		DefaultStatus: http.StatusOK,
		Errors:        []int{400, 401},
	}, func(ctx context.Context, input *struct {
		Body models.InstructionRecord
	}) (*struct {
		Body models.InstructionRecord
	}, error) {
		rec := input.Body
		if err := svc.Instructions().Upsert(ctx, &rec); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body models.InstructionRecord
		}{Body: rec}, nil
	})
}

// redactedProvider is ProviderSettings without the stored cipher text.
type redactedProvider struct {
	ID        string               `json:"id"`
	Kind      string               `json:"kind"`
	Enabled   bool                 `json:"enabled"`
	HasKey    bool                 `json:"hasKey"`
	BaseURL   string               `json:"baseUrl,omitempty"`
	Region    string               `json:"region,omitempty"`
	Models    []models.ModelConfig `json:"models"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func registerProviders(api huma.API, store db.Store, registry *provider.Registry, cipher *provider.Cipher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/providers",
		Summary:     "List configured providers, credentials redacted",
		Errors:      []int{401, 403},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Providers []redactedProvider `json:"providers"`
		}
	}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		list, err := store.ListProviders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Providers []redactedProvider `json:"providers"`
			}
		}{}
		out.Body.Providers = make([]redactedProvider, 0, len(list))
		for _, p := range list {
			out.Body.Providers = append(out.Body.Providers, redactedProvider{
				ID:        p.ID,
				Kind:      p.Kind,
				Enabled:   p.Enabled,
				HasKey:    p.APIKeyCipher != "",
				BaseURL:   p.BaseURL,
				Region:    p.Region,
				Models:    p.Models,
				UpdatedAt: p.UpdatedAt,
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "set-provider-key",
		Method:        http.MethodPut,
		Path:          "/providers/{id}/key",
		Summary:       "Store a provider API key, encrypted at rest",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{400, 401, 403, 404},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Key string `json:"key" minLength:"1"`
		}
	}) (*struct{}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		settings, err := store.GetProvider(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		encrypted, err := cipher.Encrypt(strings.TrimSpace(input.Body.Key))
		if err != nil {
			return nil, handleError(err)
		}
		settings.APIKeyCipher = encrypted
		settings.UpdatedAt = time.Now().UTC()
		if err := store.UpsertProvider(ctx, settings); err != nil {
			return nil, handleError(err)
		}
		if err := registry.Reload(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// NewRequestID returns an id suitable for correlating log lines of one
// request.
func NewRequestID() string {
	return uuid.NewString()[:8]
}
