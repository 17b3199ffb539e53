package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opsdemo/internal/crm"
	"opsdemo/internal/models"
	"opsdemo/internal/storage"
	"opsdemo/internal/version"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockStorage implements storage.Storage for handler tests
type mockStorage struct {
	tasks   []models.Task
	err     error
	pingErr error
}

func (m *mockStorage) Tasks(_ context.Context) ([]models.Task, error) {
	return m.tasks, m.err
}

func (m *mockStorage) GetTask(_ context.Context, id int) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.tasks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, storage.ErrTaskNotFound
}

func (m *mockStorage) Ping(_ context.Context) error { return m.pingErr }
func (m *mockStorage) Close() error                 { return nil }

// MockStatusProvider implements crm.StatusProvider for testing
type MockStatusProvider struct {
	mock.Mock
}

func (m *MockStatusProvider) GetStatus(ctx context.Context) crm.Result {
	args := m.Called(ctx)
	return args.Get(0).(crm.Result)
}

func newTestHandlers(store storage.Storage, status crm.StatusProvider, opts ...HandlerOption) *Handlers {
	base := []HandlerOption{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMemoryStats(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 1000, Used: 250, UsedPercent: 25}, nil
		}),
	}
	return NewHandlers(store, status, append(base, opts...)...)
}

func defaultStore() *mockStorage {
	return &mockStorage{tasks: models.DefaultTasks()}
}

func TestNewHandlers(t *testing.T) {
	store := defaultStore()
	status := &MockStatusProvider{}
	handlers := NewHandlers(store, status)

	assert.Equal(t, store, handlers.storage)
	assert.Equal(t, status, handlers.status)
	assert.NotNil(t, handlers.memStats)
	assert.NotNil(t, handlers.logger)
	assert.Nil(t, handlers.crmPhase)
}

func TestHealthCheck(t *testing.T) {
	handlers := newTestHandlers(&mockStorage{pingErr: errors.New("down")}, &MockStatusProvider{})

	rr := httptest.NewRecorder()
	handlers.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestDetailedHealth(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		phase          crm.Phase
		expectedStatus int
		expectedHealth string
		expectedCRM    string
	}{
		{"healthy and connected", nil, crm.PhaseConnected, http.StatusOK, models.StatusHealthy, "Connected"},
		{"crm disabled stays healthy", nil, crm.PhaseDisabled, http.StatusOK, models.StatusHealthy, "Integration disabled: credentials not configured"},
		{"storage down", errors.New("storage is closed"), crm.PhaseUnconnected, http.StatusServiceUnavailable, models.StatusUnhealthy, "Not connected yet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := newTestHandlers(
				&mockStorage{pingErr: tt.pingErr},
				&MockStatusProvider{},
				WithVersion(version.Info{Version: "1.2.3", StartedAt: time.Now().Add(-90 * time.Second)}),
				WithCRMPhase(func() crm.Phase { return tt.phase }),
			)

			rr := httptest.NewRecorder()
			handlers.DetailedHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var resp models.HealthCheckResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Equal(t, "1m30s", resp.Uptime)
			assert.Equal(t, tt.expectedCRM, resp.Components["crm"].Message)
			assert.Equal(t, models.StatusHealthy, resp.Components["crm"].Status)
			assert.InDelta(t, 25.0, resp.Metrics["memory_used_percent"], 0.001)
			assert.InDelta(t, 90.0, resp.Metrics["uptime_seconds"], 1)
		})
	}
}

func TestDetailedHealth_MemoryStatsUnavailable(t *testing.T) {
	handlers := newTestHandlers(defaultStore(), &MockStatusProvider{},
		WithMemoryStats(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return nil, errors.New("not supported")
		}),
	)

	rr := httptest.NewRecorder()
	handlers.DetailedHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp models.HealthCheckResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotContains(t, resp.Metrics, "memory_used_percent")
	assert.NotContains(t, resp.Components, "crm")
}

func TestListTasks(t *testing.T) {
	handlers := newTestHandlers(defaultStore(), &MockStatusProvider{})

	rr := httptest.NewRecorder()
	handlers.ListTasks(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	require.NotEmpty(t, raw)
	for _, task := range raw {
		assert.Contains(t, task, "id")
		assert.Contains(t, task, "title")
		assert.Contains(t, task, "description")
		assert.Contains(t, task, "status")
	}
	assert.Equal(t, "Run CI pipeline", raw[0]["title"])
}

func TestListTasks_StatusFilter(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []int
	}{
		{"done", "done", http.StatusOK, []int{1}},
		{"normalized input", "In-Progress", http.StatusOK, []int{2}},
		{"pending", "pending", http.StatusOK, []int{3}},
		{"unknown status", "blocked", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := newTestHandlers(defaultStore(), &MockStatusProvider{})

			rr := httptest.NewRecorder()
			handlers.ListTasks(rr, httptest.NewRequest(http.MethodGet, "/api/tasks?status="+tt.query, nil))

			require.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus != http.StatusOK {
				var errResp models.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
				assert.Equal(t, models.ErrorCodeInvalidRequest, errResp.Code)
				return
			}

			var tasks []models.Task
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tasks))
			ids := make([]int, 0, len(tasks))
			for _, task := range tasks {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestListTasks_EmptyFilterResultIsArray(t *testing.T) {
	store := &mockStorage{tasks: []models.Task{{ID: 1, Title: "a", Status: models.TaskStatusDone}}}
	handlers := newTestHandlers(store, &MockStatusProvider{})

	rr := httptest.NewRecorder()
	handlers.ListTasks(rr, httptest.NewRequest(http.MethodGet, "/api/tasks?status=pending", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestListTasks_StorageError(t *testing.T) {
	handlers := newTestHandlers(&mockStorage{err: errors.New("disk on fire")}, &MockStatusProvider{})

	rr := httptest.NewRecorder()
	handlers.ListTasks(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk on fire")
}

func TestGetTask(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		store          *mockStorage
		expectedStatus int
		expectedCode   string
	}{
		{"found", "2", defaultStore(), http.StatusOK, ""},
		{"not found", "42", defaultStore(), http.StatusNotFound, models.ErrorCodeNotFound},
		{"not an integer", "abc", defaultStore(), http.StatusBadRequest, models.ErrorCodeBadRequest},
		{"storage failure", "1", &mockStorage{err: errors.New("boom")}, http.StatusInternalServerError, models.ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := newTestHandlers(tt.store, &MockStatusProvider{})

			req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+tt.id, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.id})
			rr := httptest.NewRecorder()
			handlers.GetTask(rr, req)

			require.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedCode == "" {
				var task models.Task
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
				assert.Equal(t, "Build Docker image", task.Title)
				return
			}
			var errResp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.Equal(t, tt.expectedCode, errResp.Code)
			assert.Equal(t, "error", errResp.Error)
		})
	}
}

func TestCRMStatus(t *testing.T) {
	tests := []struct {
		name     string
		result   crm.Result
		expected string
	}{
		{"ok", crm.OK("Sandbox", 123), `{"org":"Sandbox","contacts_count":123,"status":"ok"}`},
		{"disabled", crm.Disabled(), `{"org":null,"contacts_count":null,"status":"disabled"}`},
		{"auth error", crm.AuthError(), `{"org":null,"contacts_count":null,"status":"auth_error"}`},
		{"error", crm.Failed(), `{"org":null,"contacts_count":null,"status":"error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &MockStatusProvider{}
			status.On("GetStatus", mock.Anything).Return(tt.result).Once()
			handlers := newTestHandlers(defaultStore(), status)

			rr := httptest.NewRecorder()
			handlers.CRMStatus(rr, httptest.NewRequest(http.MethodGet, "/sf-status", nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, tt.expected, rr.Body.String())
			status.AssertExpectations(t)
		})
	}
}
