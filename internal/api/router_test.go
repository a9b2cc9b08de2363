package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/repository"
	"github.com/maheshrc27/postify/internal/service"
	"github.com/maheshrc27/postify/internal/storage"
	"github.com/maheshrc27/postify/internal/workflow"
	"github.com/maheshrc27/postify/pkg/utils"
)

const testSecret = "jwt-secret"

type memCredentials struct {
	mu   sync.Mutex
	sets map[string]*models.CredentialSet
}

func (m *memCredentials) Get(_ context.Context, userID int64, name string) (*models.CredentialSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[name]; ok {
		cp := *set
		return &cp, nil
	}
	return &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}, nil
}

func (m *memCredentials) ListByUserID(_ context.Context, _ int64) ([]*models.CredentialSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CredentialSet
	for _, set := range m.sets {
		cp := *set
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCredentials) Set(_ context.Context, userID int64, name string, fields map[string]string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: fields, LastUpdated: &at}
	return nil
}

func (m *memCredentials) Clear(_ context.Context, userID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[name] = &models.CredentialSet{UserID: userID, Platform: name, Fields: map[string]string{}}
	return nil
}

func (m *memCredentials) Seed(context.Context, *sql.Tx, int64, []string, time.Time) error {
	return nil
}

type oneUser struct {
	user *models.User
}

func (o *oneUser) GetByID(_ context.Context, id int64) (*models.User, bool, error) {
	if o.user == nil || o.user.ID != id {
		return nil, false, nil
	}
	cp := *o.user
	return &cp, true, nil
}

func (o *oneUser) GetByEmail(context.Context, string) (*models.User, bool, error) {
	return nil, false, nil
}

func (o *oneUser) Create(context.Context, *sql.Tx, *models.User) (int64, error) {
	return 0, nil
}

func (o *oneUser) Update(_ context.Context, user *models.User) error {
	cp := *user
	o.user = &cp
	return nil
}

type memHistory struct {
	records []*models.PublishRecord
}

func (h *memHistory) Create(_ context.Context, rec *models.PublishRecord) (int64, error) {
	h.records = append(h.records, rec)
	return int64(len(h.records)), nil
}

func (h *memHistory) ListByUserID(_ context.Context, _ int64, _ int) ([]*models.PublishRecord, error) {
	return h.records, nil
}

var _ repository.PublishHistoryRepository = (*memHistory)(nil)

type stubAuth struct{}

func (stubAuth) AuthCodeURL(state string) string { return "https://accounts.example/auth?state=" + state }

func (stubAuth) LoginCallback(context.Context, string) (*models.User, error) { return nil, sql.ErrNoRows }

func (stubAuth) SignIn(context.Context, *service.GoogleProfile) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (stubAuth) IssueToken(*models.User) (string, error) { return "", nil }

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req gateway.GenerateRequest) (string, error) {
	return "<b>" + req.Content + "</b>", nil
}

type stubPublisher struct {
	reqs []gateway.PublishRequest
}

func (p *stubPublisher) Publish(_ context.Context, req gateway.PublishRequest) error {
	p.reqs = append(p.reqs, req)
	return nil
}

type testEnv struct {
	app       *fiber.App
	token     string
	creds     *memCredentials
	publisher *stubPublisher
	history   *memHistory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{SecretKey: testSecret, CookieName: "postify_session", FrontendURL: "http://localhost:5173"}
	registry := platform.Default()
	env := &testEnv{
		creds:     &memCredentials{sets: map[string]*models.CredentialSet{}},
		publisher: &stubPublisher{},
		history:   &memHistory{},
	}
	users := &oneUser{user: &models.User{ID: 1, Email: "ada@example.com", Name: "Ada"}}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	connector := workflow.NewConnector(registry, env.creds, nil, workflow.WithConnectorMetrics(collector))
	composer := workflow.NewComposer(connector, storage.NewMemoryStore(), stubGenerator{}, env.publisher,
		workflow.WithHistory(env.history),
		workflow.WithComposerMetrics(collector))
	sessions := service.NewSessionService(connector, composer)

	env.app = NewApp(cfg, Services{
		Auth:     stubAuth{},
		User:     service.NewUserService(users, env.creds, connector, sessions),
		Sessions: sessions,
		History:  service.NewHistoryService(env.history),
		Registry: registry,
		Gatherer: reg,
	})

	token, err := utils.GenerateToken(testSecret, "1", "ada@example.com", time.Hour)
	require.NoError(t, err)
	env.token = token
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) json(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	return e.do(t, method, path, r, fiber.MIMEApplicationJSON)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/user", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListPlatforms(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.json(t, http.MethodGet, "/api/platforms", "")
	require.Equal(t, http.StatusOK, status)

	platforms := body["platforms"].([]any)
	require.Len(t, platforms, 3)
	first := platforms[0].(map[string]any)
	assert.Equal(t, "instagram", first["name"])
	assert.Equal(t, float64(2200), first["max_chars"])
}

func TestConnectionDialogOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.json(t, http.MethodPost, "/api/connections/instagram/select", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_connected", body["state"])

	status, body = env.json(t, http.MethodPost, "/api/connections/instagram/credentials", `{"username":"ada"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_connected", body["state"].(map[string]any)["state"])

	status, _ = env.json(t, http.MethodPost, "/api/connections/instagram/confirm", "")
	require.Equal(t, http.StatusOK, status)

	status, body = env.json(t, http.MethodPost, "/api/connections/instagram/credentials", `{"username":"ada"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"password"}, body["fields"])

	status, body = env.json(t, http.MethodPost, "/api/connections/instagram/credentials", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "connected", body["state"])

	status, body = env.json(t, http.MethodGet, "/api/connections/instagram", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["connected"])

	status, _ = env.json(t, http.MethodPost, "/api/connections/instagram/disconnect", "")
	require.Equal(t, http.StatusOK, status)
	status, body = env.json(t, http.MethodPost, "/api/connections/instagram/disconnect/confirm", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_connected", body["state"])
}

func TestUserRecordPatch(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.json(t, http.MethodPatch, "/api/user",
		`{"name":"Ada L.","twitter_config":{"consumer_key":"ck","consumer_secret":"cs","access_token":"at","access_token_secret":"ats"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ada L.", body["name"])

	twitter := body["social_configs"].(map[string]any)["twitter"].(map[string]any)
	assert.Equal(t, true, twitter["connected"])
	assert.Equal(t, "********", twitter["consumer_secret"])
	assert.Equal(t, "********", twitter["access_token"])
	assert.Equal(t, "ck", twitter["consumer_key"])
	assert.NotEmpty(t, twitter["lastUpdated"])
	assert.NotContains(t, twitter, "fields")

	status, body = env.json(t, http.MethodPatch, "/api/user", `{"twitter_config":""}`)
	require.Equal(t, http.StatusOK, status)
	twitter = body["social_configs"].(map[string]any)["twitter"].(map[string]any)
	assert.Equal(t, false, twitter["connected"])

	status, _ = env.json(t, http.MethodPatch, "/api/user", `{"twitter_config":42}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDraftPreviewAndPublish(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.creds.Set(context.Background(), 1, "twitter", map[string]string{
		"consumer_key": "ck", "consumer_secret": "cs", "access_token": "at", "access_token_secret": "ats",
	}, time.Now()))

	status, body := env.json(t, http.MethodGet, "/api/draft", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"twitter"}, body["platforms"])
	assert.Equal(t, float64(280), body["limit"])

	status, _ = env.json(t, http.MethodPut, "/api/draft/content", `{"content":"hello world"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = env.json(t, http.MethodPost, "/api/draft/publish", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "generate a preview before publishing", body["error"])
	assert.Empty(t, env.publisher.reqs)

	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	part, err := w.CreateFormFile("image", "a.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	status, body = env.do(t, http.MethodPost, "/api/draft/image", &form, w.FormDataContentType())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a.png", body["image"].(map[string]any)["name"])

	status, body = env.json(t, http.MethodPost, "/api/draft/preview", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello world", body["preview_content"])

	status, body = env.json(t, http.MethodPost, "/api/draft/publish", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", body["content"])
	require.Len(t, env.publisher.reqs, 1)
	assert.Equal(t, "hello world", env.publisher.reqs[0].Content)
	assert.NotNil(t, env.publisher.reqs[0].Image)

	status, body = env.json(t, http.MethodGet, "/api/posts/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["posts"], 1)
}

func TestDraftRejectsOverLimitContent(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.creds.Set(context.Background(), 1, "twitter", map[string]string{"consumer_key": "ck"}, time.Now()))

	long := bytes.Repeat([]byte("a"), 281)
	status, body := env.json(t, http.MethodPut, "/api/draft/content", `{"content":"`+string(long)+`"}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"content"}, body["fields"])
	assert.Equal(t, "", body["state"].(map[string]any)["content"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
