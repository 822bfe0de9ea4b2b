package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Second))
	start := p.lastTime

	var stats renderer.FrameStats
	stats.Skinning = 2 * time.Millisecond
	stats.Passes[material.PassModel] = material.PassStats{Draws: 3, Failed: 1}

	for i := 0; i < 3; i++ {
		p.Record(stats, nil)
		assert.False(t, p.tick(start.Add(time.Duration(i)*100*time.Millisecond)))
	}
	p.Record(stats, errors.New("degraded"))
	require.True(t, p.tick(start.Add(2*time.Second)))

	r := p.Last()
	assert.InDelta(t, 2.0, r.FPS, 1e-9)
	assert.InDelta(t, 6.0, r.DrawsPerSec, 1e-9)
	assert.Equal(t, 4, r.FailedDraws)
	assert.Equal(t, 1, r.Degraded)
	assert.Equal(t, 2*time.Millisecond, r.AvgSkinning)

	assert.False(t, p.tick(start.Add(2500*time.Millisecond)))
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.updateInterval)
}
