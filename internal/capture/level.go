package capture

import (
	"math"
	"sync/atomic"
)

// LevelGain scales the RMS amplitude into a meter reading.
const LevelGain = 10

// WindowSize is the number of recent levels kept for waveform display.
const WindowSize = 50

// LevelMonitor keeps the loudness of the latest callback. Observe methods are
// safe to call from the audio callback; bad input is ignored.
type LevelMonitor struct {
	bits atomic.Uint32
}

// Level returns the most recent reading in [0,1].
func (m *LevelMonitor) Level() float32 {
	return math.Float32frombits(m.bits.Load())
}

// Reset sets the reading back to zero.
func (m *LevelMonitor) Reset() { m.bits.Store(0) }

// ObserveInterleaved updates the reading from interleaved samples.
func (m *LevelMonitor) ObserveInterleaved(samples []float32, channels int) {
	if channels <= 0 {
		return
	}
	frames := len(samples) / channels
	if frames == 0 {
		return
	}
	// Sum of per-channel mean squares equals total sum of squares over frames.
	var sum float64
	for _, s := range samples[:frames*channels] {
		sum += float64(s) * float64(s)
	}
	m.store(sum/float64(frames), channels)
}

// ObservePlanar updates the reading from one buffer per channel.
func (m *LevelMonitor) ObservePlanar(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	var total float64
	for _, ch := range channels {
		if len(ch) == 0 {
			return
		}
		var sum float64
		for _, s := range ch {
			sum += float64(s) * float64(s)
		}
		total += sum / float64(len(ch))
	}
	m.store(total, len(channels))
}

func (m *LevelMonitor) store(meanSquareSum float64, channels int) {
	level := ComputeLevel(meanSquareSum, channels)
	if math.IsNaN(float64(level)) {
		return
	}
	m.bits.Store(math.Float32bits(level))
}

// ComputeLevel turns the sum of per-channel mean squares into a meter reading:
// sqrt of the channel average, times LevelGain, clamped to [0,1].
func ComputeLevel(meanSquareSum float64, channels int) float32 {
	if channels <= 0 {
		return 0
	}
	rms := math.Sqrt(meanSquareSum / float64(channels))
	level := rms * LevelGain
	switch {
	case math.IsNaN(level):
		return float32(math.NaN())
	case level < 0:
		return 0
	case level > 1:
		return 1
	}
	return float32(level)
}

// LevelWindow is a fixed-length rolling window of readings, oldest first.
// It is not safe for concurrent use.
type LevelWindow struct {
	values []float32
}

// NewLevelWindow returns a window of size zeros.
func NewLevelWindow(size int) *LevelWindow {
	if size <= 0 {
		size = WindowSize
	}
	return &LevelWindow{values: make([]float32, size)}
}

// Push drops the oldest reading and appends v.
func (w *LevelWindow) Push(v float32) {
	copy(w.values, w.values[1:])
	w.values[len(w.values)-1] = v
}

// Values returns a copy of the window, oldest first.
func (w *LevelWindow) Values() []float32 {
	out := make([]float32, len(w.values))
	copy(out, w.values)
	return out
}

// Reset zeroes the window.
func (w *LevelWindow) Reset() {
	clear(w.values)
}
