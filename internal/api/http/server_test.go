package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/quejas/complaint-service/internal/api/http/handlers"
	"github.com/quejas/complaint-service/internal/config"
	"github.com/quejas/complaint-service/internal/domain"
	"github.com/quejas/complaint-service/internal/observability"
	"github.com/quejas/complaint-service/internal/repository"
	"github.com/quejas/complaint-service/internal/service"
)

type memComplaints struct {
	mu     sync.Mutex
	rows   []domain.Complaint
	broken bool
}

func (m *memComplaints) Create(_ context.Context, c *domain.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errors.New("pq: connection refused at 10.0.0.5")
	}
	for _, row := range m.rows {
		if row.TrackingCode == c.TrackingCode {
			return repository.ErrDuplicateKey
		}
	}
	c.ID = int64(len(m.rows) + 1)
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(c.ID) * time.Minute)
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memComplaints) GetByTrackingCode(_ context.Context, code string) (*domain.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errors.New("pq: connection refused at 10.0.0.5")
	}
	for _, row := range m.rows {
		if row.TrackingCode == code {
			found := row
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memComplaints) ListAll(_ context.Context) ([]domain.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errors.New("pq: connection refused at 10.0.0.5")
	}
	out := make([]domain.Complaint, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *memComplaints) UpdateStatus(_ context.Context, code, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errors.New("pq: connection refused at 10.0.0.5")
	}
	for i := range m.rows {
		if m.rows[i].TrackingCode == code {
			m.rows[i].Status = status
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memCredentials struct {
	mu    sync.Mutex
	users map[string]domain.Credential
}

func (m *memCredentials) Create(_ context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[c.Username]; ok {
		return repository.ErrDuplicateKey
	}
	m.users[c.Username] = *c
	return nil
}

func (m *memCredentials) GetByUsername(_ context.Context, username string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app        *fiber.App
	complaints *memComplaints
}

type serverOption func(*service.ComplaintDependencies, *[]handlers.DependencyCheck)

func withCodes(codes ...string) serverOption {
	return func(deps *service.ComplaintDependencies, _ *[]handlers.DependencyCheck) {
		var mu sync.Mutex
		i := 0
		deps.CodeGenerator = func() string {
			mu.Lock()
			defer mu.Unlock()
			code := codes[i]
			if i < len(codes)-1 {
				i++
			}
			return code
		}
	}
}

func withCheck(name string, optional bool, err error) serverOption {
	return func(_ *service.ComplaintDependencies, checks *[]handlers.DependencyCheck) {
		*checks = append(*checks, handlers.DependencyCheck{Name: name, Pinger: stubPinger{err: err}, Optional: optional})
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	logger := zap.NewNop()
	complaints := &memComplaints{}
	credentials := &memCredentials{users: map[string]domain.Credential{}}

	deps := service.ComplaintDependencies{ComplaintRepo: complaints, Logger: logger}
	checks := []handlers.DependencyCheck{{Name: "postgres", Pinger: stubPinger{}}}
	for _, opt := range opts {
		opt(&deps, &checks)
	}

	authService := service.NewAuthService(config.AuthConfig{
		AdminUsername: "admin",
		AdminPassword: "initial-pass",
		BcryptCost:    bcrypt.MinCost,
	}, service.AuthDependencies{CredentialRepo: credentials, Logger: logger})
	_, err := authService.Bootstrap(context.Background())
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	app := NewServer("test", MiddlewareConfig{
		Logger:           logger,
		Metrics:          metrics,
		RequestTimeout:   5 * time.Second,
		CORSAllowOrigins: "*",
	}, RouteConfig{
		Health:     handlers.NewHealthHandler("complaint-intake-service", "test", checks...),
		Complaints: handlers.NewComplaintsHandler(service.NewComplaintService(deps), 3, logger),
		Auth:       handlers.NewAuthHandler(authService),
		Metrics:    metrics,
	})
	return &testServer{app: app, complaints: complaints}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestComplaintLifecycle(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"No hay agua"}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	var created struct {
		TrackingCode string `json:"trackingCode"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Regexp(t, `^QJ-\d+-\d{1,3}$`, created.TrackingCode)

	status, raw = srv.do(t, fiber.MethodGet, "/api/quejas/"+created.TrackingCode, "")
	require.Equal(t, fiber.StatusOK, status)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "Recibida", record["status"])
	assert.Equal(t, "No hay agua", record["body"])
	assert.Equal(t, "Servicio", record["category"])
	assert.Equal(t, created.TrackingCode, record["trackingCode"])

	status, raw = srv.do(t, fiber.MethodPut, "/api/quejas/"+created.TrackingCode, `{"status":"Resuelta"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"message":"complaint updated"}`, string(raw))

	_, raw = srv.do(t, fiber.MethodGet, "/api/quejas/"+created.TrackingCode, "")
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "Resuelta", record["status"])
}

func TestCreateComplaint_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{`{}`, `{"category":"Servicio"}`, `{"body":"texto"}`, `{"category":"  ","body":"texto"}`} {
		status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", body)
		assert.Equal(t, fiber.StatusBadRequest, status, body)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, raw).Error.Code, body)
	}
	assert.Empty(t, srv.complaints.rows)
}

func TestCreateComplaint_CategoryTooLong(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"`+strings.Repeat("x", 21)+`","body":"texto"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	body := decodeError(t, raw)
	assert.Equal(t, map[string]any{"category": "max"}, body.Error.Details["fields"])
}

func TestCreateComplaint_LimitsApplyToTrimmedValues(t *testing.T) {
	srv := newTestServer(t, withCodes("QJ-1-1"))

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"   Servicio publico   ","body":"  texto  "}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, raw = srv.do(t, fiber.MethodPut, "/api/quejas/QJ-1-1", `{"status":"  `+strings.Repeat("x", 50)+`  "}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	_, raw = srv.do(t, fiber.MethodGet, "/api/quejas/QJ-1-1", "")
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "Servicio publico", record["category"])
	assert.Equal(t, "texto", record["body"])
	assert.Equal(t, strings.Repeat("x", 50), record["status"])
}

func TestCreateComplaint_MalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, raw).Error.Code)
}

func TestCreateComplaint_RetriesOnCollision(t *testing.T) {
	srv := newTestServer(t, withCodes("QJ-1-1", "QJ-1-1", "QJ-1-2"))

	status, _ := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"primera"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"segunda"}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"trackingCode":"QJ-1-2"}`, string(raw))
	assert.Len(t, srv.complaints.rows, 2)
}

func TestCreateComplaint_CollisionAttemptsExhausted(t *testing.T) {
	srv := newTestServer(t, withCodes("QJ-1-1"))

	status, _ := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"primera"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, raw := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"segunda"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_CODE", decodeError(t, raw).Error.Code)
	assert.Len(t, srv.complaints.rows, 1)
}

func TestListComplaints(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodGet, "/api/quejas", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))

	for _, body := range []string{"uno", "dos", "tres"} {
		status, _ := srv.do(t, fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"`+body+`"}`)
		require.Equal(t, fiber.StatusOK, status)
	}

	_, raw = srv.do(t, fiber.MethodGet, "/api/quejas", "")
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 3)
	assert.Equal(t, "tres", list[0]["body"])
	assert.Equal(t, "uno", list[2]["body"])
}

func TestUnknownTrackingCode(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodGet, "/api/quejas/QJ-0-0", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeError(t, raw).Error.Code)

	status, raw = srv.do(t, fiber.MethodPut, "/api/quejas/QJ-0-0", `{"status":"Resuelta"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeError(t, raw).Error.Code)
}

func TestUpdateStatus_MissingStatus(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPut, "/api/quejas/QJ-1-1", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, raw).Error.Code)
}

func TestStorageFailureIsGeneric(t *testing.T) {
	srv := newTestServer(t)
	srv.complaints.broken = true

	requests := []struct{ method, path, body string }{
		{fiber.MethodPost, "/api/quejas", `{"category":"Servicio","body":"texto"}`},
		{fiber.MethodGet, "/api/quejas", ""},
		{fiber.MethodGet, "/api/quejas/QJ-1-1", ""},
		{fiber.MethodPut, "/api/quejas/QJ-1-1", `{"status":"Resuelta"}`},
	}
	for _, r := range requests {
		status, raw := srv.do(t, r.method, r.path, r.body)
		assert.Equal(t, fiber.StatusInternalServerError, status, r.path)
		body := decodeError(t, raw)
		assert.Equal(t, "STORAGE_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "storage error", body.Error.Message)
		assert.NotContains(t, string(raw), "10.0.0.5")
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPost, "/api/login", `{"username":"admin","password":"initial-pass"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"username":"admin"}`, string(raw))

	status, wrongPass := srv.do(t, fiber.MethodPost, "/api/login", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, unknownUser := srv.do(t, fiber.MethodPost, "/api/login", `{"username":"ghost","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.JSONEq(t, string(wrongPass), string(unknownUser))

	status, raw = srv.do(t, fiber.MethodPost, "/api/login", `{"username":"admin"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, raw).Error.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodGet, "/health/live", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"alive"`)

	status, raw = srv.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ready","dependencies":{"postgres":"ok"}}`, string(raw))
}

func TestHealth_RequiredDependencyDown(t *testing.T) {
	srv := newTestServer(t, withCheck("replica", false, errors.New("dial tcp: refused")))

	status, raw := srv.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	body := decodeError(t, raw)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "unavailable", body.Error.Details["replica"])
	assert.Equal(t, "ok", body.Error.Details["postgres"])
}

func TestHealth_OptionalDependencyDownStaysReady(t *testing.T) {
	srv := newTestServer(t, withCheck("redis", true, errors.New("dial tcp: refused")))

	status, raw := srv.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"degraded","dependencies":{"postgres":"ok","redis":"unavailable"}}`, string(raw))
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodGet, "/api/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeError(t, raw).Error.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t)
	srv.app.Get("/boom", func(*fiber.Ctx) error { panic("boom") })

	status, raw := srv.do(t, fiber.MethodGet, "/boom", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, raw).Error.Code)

	_, raw = srv.do(t, fiber.MethodGet, "/metrics", "")
	assert.Contains(t, string(raw), `complaints_http_requests_total{method="GET",route="/boom",status="500"} 1`)
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/quejas", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://quejas.example.org")
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, fiber.MethodGet, "/api/quejas/QJ-0-0", "")

	status, raw := srv.do(t, fiber.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `complaints_http_errors_total{code="NOT_FOUND",method="GET",route="/api/quejas/:code"} 1`)
}
