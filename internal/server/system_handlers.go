package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// WorkflowMonitor reports trading workflow load.
type WorkflowMonitor interface {
	InFlight() int
}

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	workflows   WorkflowMonitor
	databases   []*database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, workflows WorkflowMonitor, databases []*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		workflows:   workflows,
		databases:   databases,
	}
}

// DatabaseStatus is the health of one sqlite database.
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status            string           `json:"status"`
	UptimeSeconds     int64            `json:"uptime_seconds"`
	WorkflowsInFlight int              `json:"workflows_in_flight"`
	Goroutines        int              `json:"goroutines"`
	CPUPercent        float64          `json:"cpu_percent"`
	MemoryPercent     float64          `json:"memory_percent"`
	Databases         []DatabaseStatus `json:"databases"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     h.databaseStatuses(r.Context()),
	}
	if h.workflows != nil {
		resp.WorkflowsInFlight = h.workflows.InFlight()
	}
	for _, db := range resp.Databases {
		if !db.Healthy {
			resp.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) databaseStatuses(ctx context.Context) []DatabaseStatus {
	statuses := make([]DatabaseStatus, 0, len(h.databases))
	for _, db := range h.databases {
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
		} else if stats, err := db.GetStats(); err == nil {
			status.Stats = stats
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// systemStats returns CPU and RAM usage percentages.
func (h *SystemHandlers) systemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
