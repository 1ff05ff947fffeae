package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"draftsmith/internal/backend"
	"draftsmith/internal/config"
	"draftsmith/internal/db"
	"draftsmith/internal/dispatch"
	"draftsmith/internal/jobs"
	"draftsmith/internal/models"
	"draftsmith/internal/provider"
	"draftsmith/internal/schema"
	"draftsmith/internal/service"
)

const (
	testSecret = "test-secret"
	testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

type stubText struct {
	response string
}

func (s *stubText) GenerateText(ctx context.Context, req backend.Request) (string, error) {
	return s.response, nil
}

func (s *stubText) StreamText(ctx context.Context, req backend.Request, fn func(string) error) (string, error) {
	if err := fn(s.response); err != nil {
		return "", err
	}
	return s.response, nil
}

type stubObject struct {
	response string
}

func (s *stubObject) GenerateObject(ctx context.Context, req backend.Request, jsonSchema map[string]any) (string, error) {
	return s.response, nil
}

type testServer struct {
	URL     string
	store   db.Store
	tracker *jobs.Tracker
	object  *stubObject
	close   func()
}

func testSeedFile() *config.SeedFile {
	return &config.SeedFile{
		DocumentTypes: []config.DocumentType{
			{
				Name: "post",
				Fields: []schema.Field{
					{Name: "title", Type: schema.TypeText, Label: "Title"},
					{Name: "body", Type: schema.TypeRichDocument, Label: "Body"},
				},
			},
		},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemory()

	cipher, err := provider.NewCipher(testKeyHex)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	key, err := cipher.Encrypt("sk-test")
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	if err := store.UpsertProvider(ctx, &models.ProviderSettings{
		ID:           "openai",
		Kind:         "openai",
		Enabled:      true,
		APIKeyCipher: key,
		Models: []models.ModelConfig{
			{ID: "text", Name: "gpt-4o", UseCase: models.UseCaseText, Enabled: true},
			{ID: "richtext", Name: "gpt-4o", UseCase: models.UseCaseText, Enabled: true},
		},
	}); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if err := store.SetDefaults(ctx, models.GlobalDefaults{
		models.UseCaseText: {Provider: "openai", Model: "text"},
	}); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	registry := provider.NewRegistry(store, cipher)
	if err := registry.Reload(ctx); err != nil {
		t.Fatalf("reload registry: %v", err)
	}

	tracker := jobs.NewTracker(store)
	seed := testSeedFile()
	generate := service.NewGenerateService(seed, store, registry, tracker)

	object := &stubObject{response: `{"type":"root","children":[{"type":"paragraph","children":[{"type":"text","text":"Hi"}]}]}`}
	generate.SetDispatcher(dispatch.NewWithFactories(dispatch.Factories{
		Text: func(*provider.Handle) (backend.TextBackend, error) {
			return &stubText{response: "generated text"}, nil
		},
		Object: func(*provider.Handle) (backend.ObjectBackend, error) {
			return object, nil
		},
	}))

	reinit := service.NewReinitService(seed, generate.Instructions(), registry, generate)
	voices := service.NewVoicesService(registry)

	handler, err := New(Config{
		Generate:  generate,
		Reinit:    reinit,
		Voices:    voices,
		Tracker:   tracker,
		Store:     store,
		Registry:  registry,
		Cipher:    cipher,
		JWTSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)

	ts := &testServer{
		URL:     "http://" + ln.Addr().String(),
		store:   store,
		tracker: tracker,
		object:  object,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func signToken(t *testing.T, subject string, admin bool) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Admin: admin,
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestGenerateText(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/generate", token, map[string]any{
		"documentType": "post",
		"path":         "title",
		"document":     map[string]any{"title": "Foo"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", res.StatusCode, string(data))
	}
	var out GenerateResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out.Kind != "text" || out.Text != "generated text" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestGenerateApplyReturnsDocument(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/generate", token, map[string]any{
		"documentType": "post",
		"path":         "title",
		"document":     map[string]any{"title": "Foo"},
		"apply":        true,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", res.StatusCode, string(data))
	}
	var out GenerateResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out.Document == nil || out.Document["title"] != "generated text" {
		t.Fatalf("expected applied document, got %+v", out.Document)
	}
}

func TestGenerateRichDocument(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/generate", token, map[string]any{
		"documentType": "post",
		"path":         "body",
		"document":     map[string]any{"title": "Foo"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", res.StatusCode, string(data))
	}
	var out GenerateResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out.Kind != "object" || out.Object["type"] != "root" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestGenerateSchemaValidationFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.object.response = `{"type":"root","children":[{"type":"customEmbed"}]}`
	token := signToken(t, "editor", false)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/generate", token, map[string]any{
		"documentType": "post",
		"path":         "body",
		"document":     map[string]any{"title": "Foo"},
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "schema_validation_failure") {
		t.Fatalf("expected schema_validation_failure code: %s", string(data))
	}
	if !strings.Contains(string(data), "retryable") {
		t.Fatalf("expected retryable detail: %s", string(data))
	}
	if !strings.Contains(string(data), "customEmbed") {
		t.Fatalf("expected the offending node type in the violations: %s", string(data))
	}
}

func TestGenerateUnknownDocumentType(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/generate", token, map[string]any{
		"documentType": "missing",
		"path":         "title",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/api/jobs", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, http.MethodGet, srv.URL+"/api/jobs", "not-a-token", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, http.MethodGet, srv.URL+"/api/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public, got %d", res.StatusCode)
	}
}

func TestReinitRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodPost, srv.URL+"/api/reinit", signToken(t, "editor", false), nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, http.MethodPost, srv.URL+"/api/reinit", signToken(t, "ops", true), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, string(data))
	}
	var result service.ReinitResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.DocumentTypes != 1 || result.Created != 2 {
		t.Fatalf("unexpected reinit result: %+v", result)
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	token := signToken(t, "editor", false)

	job, err := srv.tracker.Create(ctx, "task-1", "gemini", "veo", "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	res, data := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+job.ID, token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get job status %d: %s", res.StatusCode, string(data))
	}
	var fetched JobResponse
	if err := json.Unmarshal(data, &fetched); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if fetched.Status != "queued" || fetched.TaskID != "task-1" {
		t.Fatalf("unexpected job: %+v", fetched)
	}

	res, data = doJSON(t, http.MethodGet, srv.URL+"/api/jobs", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list jobs status %d: %s", res.StatusCode, string(data))
	}
	var list struct {
		Jobs []JobResponse `json:"jobs"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(list.Jobs))
	}

	res, data = doJSON(t, http.MethodPost, srv.URL+"/api/jobs/"+job.ID+"/cancel", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel status %d: %s", res.StatusCode, string(data))
	}
	var canceled JobResponse
	if err := json.Unmarshal(data, &canceled); err != nil {
		t.Fatalf("unmarshal canceled: %v", err)
	}
	if canceled.Status != "canceled" {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}

	res, data = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/nope", token, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestStreamGenerate(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/generate"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"documentType": "post",
		"path":         "title",
		"document":     map[string]any{"title": "Foo"},
	}); err != nil {
		t.Fatalf("write request frame: %v", err)
	}

	var sawDelta bool
	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		switch frame.Type {
		case "delta":
			sawDelta = true
			if frame.Text == "" {
				t.Fatal("empty delta frame")
			}
		case "done":
			if !sawDelta {
				t.Fatal("done before any delta")
			}
			if frame.Result == nil || frame.Result.Text != "generated text" {
				t.Fatalf("unexpected result frame: %+v", frame.Result)
			}
			return
		case "error":
			t.Fatalf("error frame: %s %s", frame.Code, frame.Text)
		}
	}
}

func TestProvidersRedacted(t *testing.T) {
	srv := newTestServer(t)
	admin := signToken(t, "ops", true)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/api/providers", signToken(t, "editor", false), nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, http.MethodGet, srv.URL+"/api/providers", admin, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list providers status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Providers []redactedProvider `json:"providers"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal providers: %v", err)
	}
	if len(out.Providers) != 1 || !out.Providers[0].HasKey {
		t.Fatalf("unexpected providers: %+v", out.Providers)
	}
	if strings.Contains(string(data), "api_key_cipher") || strings.Contains(string(data), "sk-test") {
		t.Fatalf("credential material leaked: %s", string(data))
	}
}

func TestSetProviderKey(t *testing.T) {
	srv := newTestServer(t)
	admin := signToken(t, "ops", true)

	res, data := doJSON(t, http.MethodPut, srv.URL+"/api/providers/openai/key", admin, map[string]any{
		"key": "sk-rotated",
	})
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("set key status %d: %s", res.StatusCode, string(data))
	}

	settings, err := srv.store.GetProvider(context.Background(), "openai")
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if settings.APIKeyCipher == "" || strings.Contains(settings.APIKeyCipher, "sk-rotated") {
		t.Fatalf("key not stored encrypted: %q", settings.APIKeyCipher)
	}

	res, data = doJSON(t, http.MethodPut, srv.URL+"/api/providers/nope/key", admin, map[string]any{
		"key": "sk-x",
	})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestInstructionsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "editor", false)

	res0, data0 := doJSON(t, http.MethodPost, srv.URL+"/api/reinit", signToken(t, "ops", true), nil)
	if res0.StatusCode != http.StatusOK {
		t.Fatalf("reinit status %d: %s", res0.StatusCode, string(data0))
	}

	res, data := doJSON(t, http.MethodGet, srv.URL+"/api/instructions?documentType=post", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list instructions status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Instructions []models.InstructionRecord `json:"instructions"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal instructions: %v", err)
	}
	if len(out.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(out.Instructions))
	}

	rec := out.Instructions[0]
	rec.Template = "Custom template for {{ title }}"
	res, data = doJSON(t, http.MethodPut, srv.URL+"/api/instructions", token, rec)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upsert status %d: %s", res.StatusCode, string(data))
	}
	var updated models.InstructionRecord
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal updated: %v", err)
	}
	if updated.Template != rec.Template {
		t.Fatalf("template not updated: %q", updated.Template)
	}
}
