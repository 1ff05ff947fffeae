// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"draftsmith/internal/db"
	"draftsmith/internal/dispatch"
	"draftsmith/internal/jobs"
	"draftsmith/internal/models"
	"draftsmith/internal/provider"
	"draftsmith/internal/service"
)

// Config for the HTTP API handler.
type Config struct {
	Generate *service.GenerateService
	Reinit   *service.ReinitService
	Voices   *service.VoicesService
	Tracker  *jobs.Tracker
	Store    db.Store
	Registry *provider.Registry
	Cipher   *provider.Cipher

	JWTSecret string
	BasePath  string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"model_not_found"`
	Message string         `json:"message" example:"model not found: openai/gpt-5"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the draftsmith API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.JWTSecret))

	hcfg := huma.DefaultConfig("Draftsmith API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerGenerate(group, cfg.Generate)
	registerUpload(group, cfg.Generate)
	registerJobs(group, cfg.Tracker)
	registerReinit(group, cfg.Reinit)
	registerVoices(group, cfg.Voices)
	registerInstructions(group, cfg.Generate)
	registerProviders(group, cfg.Store, cfg.Registry, cfg.Cipher)
	registerStream(router, cfg.Generate)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps pipeline errors onto the envelope. Upstream causes stay
// server-side; the caller only sees the sanitized message.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}

	var validationErr *dispatch.SchemaValidationError
	if errors.As(err, &validationErr) {
		violations := make([]string, 0, len(validationErr.Violations))
		for _, v := range validationErr.Violations {
			violations = append(violations, v.String())
		}
		return newAPIError(http.StatusUnprocessableEntity, "schema_validation_failure", validationErr.Error(),
			map[string]any{"violations": violations, "retryable": true})
	}

	var upstream *dispatch.UpstreamError
	if errors.As(err, &upstream) {
		return newAPIError(http.StatusBadGateway, "upstream_provider_error", upstream.Error(), nil)
	}

	switch {
	case errors.Is(err, provider.ErrProviderNotConfigured):
		return newAPIError(http.StatusUnprocessableEntity, "provider_not_configured", err.Error(), nil)
	case errors.Is(err, provider.ErrModelNotFound):
		return newAPIError(http.StatusUnprocessableEntity, "model_not_found", err.Error(), nil)
	case errors.Is(err, jobs.ErrJobTimeout):
		return newAPIError(http.StatusGatewayTimeout, "job_timeout", err.Error(), nil)
	case errors.Is(err, db.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, db.ErrAlreadyExists):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}

	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unknown document type"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "missing"),
		strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case strings.Contains(lowered, "disabled"):
		return newAPIError(http.StatusUnprocessableEntity, "generation_disabled", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		out := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		out.Body.Status = "ok"
		return out, nil
	})
}

func jobResponse(job *models.GenerationJob) JobResponse {
	return JobResponse{
		ID:          job.ID,
		TaskID:      job.TaskID,
		Provider:    job.ProviderID,
		Model:       job.ModelID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		ResultRef:   job.ResultRef,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}
