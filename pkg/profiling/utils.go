package profiling

import (
	"log/slog"
	"runtime"
	"time"
)

// GCStats provides garbage collection statistics
type GCStats struct {
	NumGC        uint32        `json:"num_gc"`
	PauseTotal   time.Duration `json:"pause_total_ns"`
	PauseRecent  time.Duration `json:"pause_recent_ns"`
	LastGC       time.Time     `json:"last_gc"`
	GCCPUPercent float64       `json:"cpu_percent"`
}

// GetGCStats returns current garbage collection statistics
func GetGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var recentPause time.Duration
	if m.NumGC > 0 {
		recentPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}

	return GCStats{
		NumGC:        m.NumGC,
		PauseTotal:   time.Duration(m.PauseTotalNs),
		PauseRecent:  recentPause,
		LastGC:       time.Unix(0, int64(m.LastGC)),
		GCCPUPercent: m.GCCPUFraction * 100,
	}
}

// MemStats is a megabyte summary of runtime.MemStats.
type MemStats struct {
	AllocMB      float64 `json:"alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	StackInUseMB float64 `json:"stack_in_use_mb"`
	Goroutines   int     `json:"goroutines"`
}

// GetMemStats returns current memory statistics
func GetMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{
		AllocMB:      bToMb(m.Alloc),
		TotalAllocMB: bToMb(m.TotalAlloc),
		SysMB:        bToMb(m.Sys),
		HeapAllocMB:  bToMb(m.HeapAlloc),
		HeapObjects:  m.HeapObjects,
		StackInUseMB: bToMb(m.StackInuse),
		Goroutines:   runtime.NumGoroutine(),
	}
}

// ForceGC triggers garbage collection and logs the pause
func ForceGC(logger *slog.Logger) {
	before := GetGCStats()
	runtime.GC()
	after := GetGCStats()

	logger.Info("🗑️ Forced GC",
		slog.Uint64("runs_before", uint64(before.NumGC)),
		slog.Uint64("runs_after", uint64(after.NumGC)),
		slog.Duration("pause", after.PauseRecent),
	)
}

// bToMb converts bytes to megabytes
func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
