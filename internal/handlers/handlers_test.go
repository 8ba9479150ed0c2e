package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
	"alfredoptarigan/readysetrole/internal/repositories"
	"alfredoptarigan/readysetrole/internal/services"
)

const tailorReply = "Pre-Score 61/100\n```json\n" +
	`{"scores": {"overall": 61, "subscores": {"skills": 55}, "missing_keywords": ["Go"]}, "packs": [{"id": 1, "name": "Backend", "keywords": ["Go"], "delta": 9}]}` +
	"\n```"

const applyReply = "TAILORED RESUME\nJane Doe\n```json\n{\"post_scores\": {\"overall\": 82}}\n```"

type stubChat struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (s *stubChat) Generate(context.Context, string, []models.Turn, models.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "ok", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

type stubFiles struct {
	mu   sync.Mutex
	next int
}

func (s *stubFiles) Upload(_ context.Context, _ string, mimeType string, data []byte) (*models.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return &models.RemoteFile{
		Name:      fmt.Sprintf("files/%d", s.next),
		URI:       fmt.Sprintf("https://files.test/%d", s.next),
		MIMEType:  mimeType,
		SizeBytes: int64(len(data)),
		State:     models.FileStateActive,
	}, nil
}

func (s *stubFiles) Get(_ context.Context, name string) (*models.RemoteFile, error) {
	return &models.RemoteFile{Name: name, State: models.FileStateActive}, nil
}

func (s *stubFiles) Delete(context.Context, string) error { return nil }

func (s *stubFiles) List(context.Context) ([]models.RemoteFile, error) { return nil, nil }

type stubJanitor struct{}

func (stubJanitor) Start(context.Context)          {}
func (stubJanitor) Stop()                          {}
func (stubJanitor) Enqueue(...string)              {}
func (stubJanitor) ReleaseSession(*models.Session) {}

func newTestApp(t *testing.T, chat *stubChat) *fiber.App {
	t.Helper()
	return newTestAppWithOptions(t, chat, services.SessionOptions{MaxAttachments: 2, MaxFileSize: 64})
}

func newTestAppWithOptions(t *testing.T, chat *stubChat, options services.SessionOptions) *fiber.App {
	t.Helper()

	exports, err := services.NewLocalExportStore(t.TempDir())
	require.NoError(t, err)

	nop := logger.NewNopLogger()
	files := &stubFiles{}
	svc := services.NewSessionService(
		repositories.NewMemorySessionRepository(time.Hour),
		chat,
		files,
		services.NewActivator(files, time.Millisecond, 20*time.Millisecond, nop),
		stubJanitor{},
		exports,
		services.NewPromptBuilder(""),
		options,
		nop,
	)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app.Group("/api/v1"), Handlers{
		Session: NewSessionHandler(svc),
		Upload:  NewUploadHandler(svc, 64),
		Tailor:  NewTailorHandler(svc),
		Result:  NewResultHandler(svc),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(t, app, req)
}

func doMultipart(t *testing.T, app *fiber.App, method, path string, fields map[string]string, field string, files map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestHealthAndModels(t *testing.T) {
	app := newTestApp(t, &stubChat{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/models", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.ModelPro, body["default"])
	assert.Len(t, body["models"], len(services.AllowedModels))

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/prompt", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["loaded"])
}

func TestModelsReportsConfiguredDefault(t *testing.T) {
	app := newTestAppWithOptions(t, &stubChat{}, services.SessionOptions{
		DefaultModel:   services.ModelFlash,
		MaxAttachments: 2,
		MaxFileSize:    64,
	})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/models", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.ModelFlash, body["default"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, services.ModelFlash, body["model"])
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t, &stubChat{})
	id := createSession(t, app)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["stage"])
	assert.Equal(t, float64(2), body["slots_left"])
	assert.Len(t, body["chat_history"], 1)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, float64(fiber.StatusNotFound), body["code"])
}

func TestInvalidSessionID(t *testing.T) {
	app := newTestApp(t, &stubChat{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid session ID format", body["error"])
}

func TestSelectModel(t *testing.T) {
	app := newTestApp(t, &stubChat{})
	id := createSession(t, app)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"allowed model", models.SelectModelRequest{Model: services.ModelFlash}, fiber.StatusOK},
		{"unknown model", models.SelectModelRequest{Model: "gpt-4"}, fiber.StatusBadRequest},
		{"missing model", map[string]string{}, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/sessions/"+id+"/model", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestResumeAndTailorFlow(t *testing.T) {
	chat := &stubChat{replies: []string{tailorReply, applyReply}}
	app := newTestApp(t, chat)
	id := createSession(t, app)

	resp, body := doMultipart(t, app, http.MethodPut, "/api/v1/sessions/"+id+"/resume",
		map[string]string{"text": "Jane Doe, Go engineer"}, "file", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jane Doe, Go engineer", body["resume_text"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/tailor",
		models.TailorRequest{JobDescription: "Senior Go developer"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "awaiting-choice", body["stage"])
	assert.Equal(t, float64(61), body["scores"].(map[string]interface{})["overall"])
	assert.Len(t, body["packs"], 1)

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/messages",
		models.ReplyRequest{Message: "1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "delivered", body["stage"])
	assert.Equal(t, float64(82), body["post_scores"].(map[string]interface{})["overall"])
	assert.Equal(t, []interface{}{float64(1)}, body["selection"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/download", nil)
	dl, err := app.Test(req, -1)
	require.NoError(t, err)
	text, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, dl.StatusCode)
	assert.Contains(t, dl.Header.Get(fiber.HeaderContentDisposition), "readysetrole-"+id+".txt")
	assert.Equal(t, applyReply, string(text))

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/export", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	key := body["key"].(string)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/exports/"+key, nil)
	ex, err := app.Test(req, -1)
	require.NoError(t, err)
	exported, err := io.ReadAll(ex.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, ex.StatusCode)
	assert.Equal(t, applyReply, string(exported))

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/clear", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["stage"])
	assert.Empty(t, body["chat_history"])
}

func TestTailorMissingInputs(t *testing.T) {
	app := newTestApp(t, &stubChat{})
	id := createSession(t, app)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/tailor",
		models.TailorRequest{JobDescription: "Senior Go developer"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/tailor", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTailorModelFailure(t *testing.T) {
	app := newTestApp(t, &stubChat{err: errors.New("quota exceeded")})
	id := createSession(t, app)

	resp, _ := doMultipart(t, app, http.MethodPut, "/api/v1/sessions/"+id+"/resume",
		map[string]string{"text": "Jane Doe"}, "file", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+id+"/tailor",
		models.TailorRequest{JobDescription: "Go developer"})
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "options", body["stage"])
	assert.Equal(t, "❌ Error from Gemini: quota exceeded", body["reply"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/sessions/"+id+"/download", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAttachments(t *testing.T) {
	app := newTestApp(t, &stubChat{})
	id := createSession(t, app)
	path := "/api/v1/sessions/" + id + "/attachments"

	resp, body := doMultipart(t, app, http.MethodPost, path, nil, "files", map[string]string{
		"a.txt":   "first",
		"big.txt": string(bytes.Repeat([]byte("x"), 100)),
		"b.exe":   "MZ\x90\x00",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"a.txt"}, body["added"])
	assert.Len(t, body["failed"], 2)
	assert.Equal(t, float64(1), body["slots_left"])

	resp, body = doMultipart(t, app, http.MethodPost, path, nil, "files", map[string]string{
		"a.txt": "first",
		"c.txt": "third",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"a.txt"}, body["skipped"])
	assert.Equal(t, []interface{}{"c.txt"}, body["added"])
	assert.Equal(t, float64(0), body["slots_left"])

	resp, _ = doMultipart(t, app, http.MethodPost, path, nil, "files", map[string]string{"d.txt": "fourth"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, path+"/7", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, path+"/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodDelete, path+"/0", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["slots_left"])
}

func TestSaveResumeFileTooLarge(t *testing.T) {
	app := newTestApp(t, &stubChat{})
	id := createSession(t, app)

	resp, _ := doMultipart(t, app, http.MethodPut, "/api/v1/sessions/"+id+"/resume",
		map[string]string{"text": " Jane Doe "}, "file",
		map[string]string{"resume.txt": string(bytes.Repeat([]byte("y"), 200))})
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jane Doe", body["resume_text"], "text survives a rejected file")
	assert.Nil(t, body["resume_file"])

	resp, body = doMultipart(t, app, http.MethodPut, "/api/v1/sessions/"+id+"/resume", nil, "file",
		map[string]string{"resume.txt": "Jane Doe"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, body["resume_file"])
	assert.Equal(t, "resume.txt", body["resume_file"].(map[string]interface{})["name"])

	resp, body = doJSON(t, app, http.MethodDelete, "/api/v1/sessions/"+id+"/resume", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, body["resume_file"])
}

func TestGetExportUnknownKey(t *testing.T) {
	app := newTestApp(t, &stubChat{})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/exports/notes.txt", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
