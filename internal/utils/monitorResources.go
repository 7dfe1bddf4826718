package utils

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

type ResourceUsage struct {
	Goroutines  int
	HeapAllocKB float64
	HeapObjects uint64
}

func ReadResourceUsage() ResourceUsage {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return ResourceUsage{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocKB: float64(memStats.HeapAlloc) / 1024,
		HeapObjects: memStats.HeapObjects,
	}
}

// MonitorResources logs resource usage (goroutines and memory) periodically
// until ctx is done.
func MonitorResources(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u := ReadResourceUsage()
				log.Info().
					Int("goroutines", u.Goroutines).
					Float64("heap_alloc_kb", u.HeapAllocKB).
					Uint64("heap_objects", u.HeapObjects).
					Msg("resource monitor")
			}
		}
	}()
}
