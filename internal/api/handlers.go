package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"opsdemo/internal/crm"
	"opsdemo/internal/models"
	"opsdemo/internal/storage"
	"opsdemo/internal/version"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthProbeTimeout bounds the storage ping of the detailed health check.
const healthProbeTimeout = 2 * time.Second

// MemoryStatsFunc reports host memory usage for the detailed health check.
type MemoryStatsFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// Handlers contains the HTTP handlers of the opsdemo API
type Handlers struct {
	storage  storage.Storage
	status   crm.StatusProvider
	crmPhase func() crm.Phase
	version  version.Info
	memStats MemoryStatsFunc
	logger   *slog.Logger
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithVersion sets the build info reported by the detailed health check.
func WithVersion(info version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = info
	}
}

// WithCRMPhase reports the CRM connection phase in the detailed health check.
func WithCRMPhase(phase func() crm.Phase) HandlerOption {
	return func(h *Handlers) {
		h.crmPhase = phase
	}
}

// WithMemoryStats replaces the gopsutil memory probe.
func WithMemoryStats(fn MemoryStatsFunc) HandlerOption {
	return func(h *Handlers) {
		h.memStats = fn
	}
}

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(store storage.Storage, status crm.StatusProvider, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		storage:  store,
		status:   status,
		memStats: mem.VirtualMemoryWithContext,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck is the liveness probe. It never touches dependencies.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.StatusOK})
}

// DetailedHealth reports storage, CRM and host state.
// GET /api/v1/health
func (h *Handlers) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = h.version.Uptime().String()

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	statusCode := http.StatusOK
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Task storage ping failed", "error", err)
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		response.Status = models.StatusUnhealthy
		statusCode = http.StatusServiceUnavailable
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Task catalog is available")
	}

	// The CRM is optional; its state never makes the service unhealthy.
	if h.crmPhase != nil {
		response.AddComponent("crm", models.StatusHealthy, crmPhaseMessage(h.crmPhase()))
	}

	if h.memStats != nil {
		if vm, err := h.memStats(ctx); err != nil {
			h.logger.Debug("Memory stats unavailable", "error", err)
		} else {
			response.AddMetric("memory_total_bytes", vm.Total)
			response.AddMetric("memory_used_bytes", vm.Used)
			response.AddMetric("memory_used_percent", vm.UsedPercent)
		}
	}
	response.AddMetric("uptime_seconds", int64(h.version.Uptime().Seconds()))

	h.writeJSONResponse(w, statusCode, response)
}

func crmPhaseMessage(phase crm.Phase) string {
	switch phase {
	case crm.PhaseConnected:
		return "Connected"
	case crm.PhaseDisabled:
		return "Integration disabled: credentials not configured"
	default:
		return "Not connected yet"
	}
}

// ListTasks returns the task catalog, optionally filtered by status.
// GET /api/tasks?status=pending
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	var status string
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseTaskStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
			return
		}
		status = parsed
	}

	tasks, err := h.storage.Tasks(r.Context())
	if err != nil {
		h.logger.Error("Failed to list tasks", "error", err)
		writeError(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to list tasks")
		return
	}

	if status != "" {
		tasks = slices.DeleteFunc(tasks, func(t models.Task) bool { return t.Status != status })
	}

	h.writeJSONResponse(w, http.StatusOK, tasks)
}

// GetTask returns one task.
// GET /api/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Task id must be an integer")
		return
	}

	task, err := h.storage.GetTask(r.Context(), id)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, r, http.StatusNotFound, models.ErrorCodeNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to get task", "task_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to get task")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, task)
}

// CRMStatus reports the CRM integration status. Integration failures are part
// of the body, so the response is always 200.
// GET /sf-status
func (h *Handlers) CRMStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.status.GetStatus(r.Context()))
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing left to send.
		h.logger.Error("Error encoding JSON response", "error", err)
	}
}
