package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shorlab/shorlab/internal/config"
	"github.com/shorlab/shorlab/internal/database"
)

// SystemHandlers serves health and capacity endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	runsDB      *database.DB
	engine      config.EngineConfig
	startupTime time.Time
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB, engine config.EngineConfig) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		runsDB:      runsDB,
		engine:      engine,
		startupTime: time.Now(),
	}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status      string  `json:"status"` // "healthy" or "unhealthy"
	Database    string  `json:"database"`
	UptimeHours float64 `json:"uptime_hours"`
}

// HandleHealth reports service and database health.
// GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Database:    "ok",
		UptimeHours: time.Since(h.startupTime).Hours(),
	}
	if h.runsDB != nil {
		if err := h.runsDB.QuickCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("Runs database ping failed")
			resp.Status = "unhealthy"
			resp.Database = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// CapacityResponse reports what the simulator can hold on this machine.
type CapacityResponse struct {
	MaxQubits       int     `json:"max_qubits"`      // Configured state vector ceiling
	MemoryQubits    int     `json:"memory_qubits"`   // Ceiling implied by available RAM
	LargestModulus  int64   `json:"largest_modulus"` // Largest N fitting the effective ceiling with m = 2n
	AvailableRAMMB  float64 `json:"available_ram_mb"`
	UsedRAMPercent  float64 `json:"used_ram_percent"`
	CPUPercent      float64 `json:"cpu_percent"`
	LogicalCPUCount int     `json:"logical_cpu_count"`
}

// HandleCapacity reports simulator capacity derived from configuration and
// live system resources. One basis amplitude costs 16 bytes; a circuit for
// modulus N needs 3·ceil(log2 N) qubits with the default m = 2n control
// register.
// GET /api/system/capacity
func (h *SystemHandlers) HandleCapacity(w http.ResponseWriter, r *http.Request) {
	resp := CapacityResponse{MaxQubits: h.engine.MaxQubits}

	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.AvailableRAMMB = float64(memStat.Available) / 1024 / 1024
		resp.UsedRAMPercent = memStat.UsedPercent
		for bytes := memStat.Available / 16; bytes > 1; bytes >>= 1 {
			resp.MemoryQubits++
		}
	}

	if counts, err := cpu.Counts(true); err == nil {
		resp.LogicalCPUCount = counts
	}
	// 100ms sample keeps the endpoint responsive for pollers.
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}

	effective := resp.MaxQubits
	if resp.MemoryQubits > 0 && resp.MemoryQubits < effective {
		effective = resp.MemoryQubits
	}
	if n := effective / 3; n > 0 && n < 63 {
		resp.LargestModulus = (int64(1) << n) - 1
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
