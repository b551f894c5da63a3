package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sorceryai/conjure/internal/database"
	"github.com/sorceryai/conjure/internal/scheduler"
)

// SystemHandlers serves system health and job trigger endpoints.
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	clientDataDB *database.DB
	refreshJob   scheduler.Job
	scheduler    *scheduler.Scheduler
	startTime    time.Time
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, clientDataDB *database.DB, refreshJob scheduler.Job, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("handler", "system").Logger(),
		dataDir:      dataDir,
		clientDataDB: clientDataDB,
		refreshJob:   refreshJob,
		scheduler:    sched,
		startTime:    time.Now(),
	}
}

// HandleHealth returns system resource usage and database status
// GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.getSystemStats()

	dbStatus := "ok"
	if h.clientDataDB != nil {
		if err := h.clientDataDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Client data database check failed")
			dbStatus = "error"
		}
	} else {
		dbStatus = "disabled"
	}

	h.writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"cpu_percent":    cpuPct,
		"ram_percent":    ramPct,
		"data_dir_mb":    h.getDirSize(h.dataDir),
		"database":       dbStatus,
	})
}

// HandleTriggerRefresh runs the market refresh job immediately
// POST /api/jobs/refresh
func (h *SystemHandlers) HandleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refreshJob == nil || h.scheduler == nil {
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Refresh job not registered",
		})
		return
	}

	h.log.Info().Msg("Manual market refresh triggered")

	if err := h.scheduler.RunNow(h.refreshJob); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Market rows refreshed",
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
