package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
)

// Profiler tracks frame rate, draw and skinning statistics plus memory usage.
// Outputs a report to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	log            *slog.Logger

	draws    int
	failed   int
	degraded int
	skinning time.Duration
	last     Report
}

// Report is one interval summary produced by Tick.
type Report struct {
	FPS         float64
	DrawsPerSec float64
	FailedDraws int
	Degraded    int
	AvgSkinning time.Duration
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// ProfilerBuilderOption is a functional option applied to a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets the report interval. Defaults to 1 second.
//
// Parameters:
//   - d: the interval, values <= 0 are ignored
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		log:            logger.For("profiler"),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Record accumulates the statistics of one model frame into the current interval.
//
// Parameters:
//   - stats: the statistics returned by RenderFrame
//   - err: the error returned by RenderFrame, counted as a degraded frame when non-nil
func (p *Profiler) Record(stats renderer.FrameStats, err error) {
	p.draws += stats.Draws()
	p.failed += stats.Failed()
	p.skinning += stats.Skinning
	if err != nil {
		p.degraded++
	}
}

// Tick should be called once per frame to track frame timing.
// Logs a report when the update interval has elapsed.
//
// Returns:
//   - bool: true if a report was produced this tick, false otherwise
func (p *Profiler) Tick() bool {
	return p.tick(time.Now())
}

// Last returns the most recent report.
//
// Returns:
//   - Report: the last report, zero before the first interval elapsed
func (p *Profiler) Last() Report {
	return p.last
}

func (p *Profiler) tick(now time.Time) bool {
	p.frameCount++
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		DrawsPerSec: float64(p.draws) / elapsed.Seconds(),
		FailedDraws: p.failed,
		Degraded:    p.degraded,
		AvgSkinning: p.skinning / time.Duration(p.frameCount),
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}

	// PauseNs is a circular buffer of the last 256 GC pauses.
	if gc := r.GCCount; gc > 0 {
		r.LastPauseUs = p.memStats.PauseNs[(gc-1)%256] / 1000
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.log.Info("frame report",
		"fps", r.FPS,
		"draws_per_sec", r.DrawsPerSec,
		"failed_draws", r.FailedDraws,
		"degraded_frames", r.Degraded,
		"avg_skinning", r.AvgSkinning,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"gc_last_us", r.LastPauseUs,
		"gc_max_us", r.MaxPauseUs,
		"sys_mb", r.SysMB)
	if r.FailedDraws > 0 || r.Degraded > 0 {
		p.log.Warn("frames degraded in interval", "failed_draws", r.FailedDraws, "degraded_frames", r.Degraded)
	}

	p.last = r
	p.frameCount, p.draws, p.failed, p.degraded, p.skinning = 0, 0, 0, 0, 0
	p.lastTime = now
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
