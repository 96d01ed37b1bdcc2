package capture

import (
	"math"
	"testing"
)

func TestComputeLevel(t *testing.T) {
	tests := []struct {
		name     string
		sum      float64
		channels int
		want     float32
	}{
		{"silence", 0, 2, 0},
		{"quiet", 0.0025, 1, 0.5},
		{"average over channels", 0.0025 * 2, 2, 0.5},
		{"clamped", 1, 1, 1},
		{"no channels", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLevel(tt.sum, tt.channels)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("ComputeLevel(%v, %d) = %v, want %v", tt.sum, tt.channels, got, tt.want)
			}
		})
	}
}

func TestLevelMonitorPlanarMatchesInterleaved(t *testing.T) {
	var a, b LevelMonitor
	a.ObservePlanar([][]float32{{0.01, 0.02}, {0.03, 0.04}})
	b.ObserveInterleaved([]float32{0.01, 0.03, 0.02, 0.04}, 2)

	if math.Abs(float64(a.Level()-b.Level())) > 1e-6 {
		t.Errorf("planar %v != interleaved %v", a.Level(), b.Level())
	}
}

func TestLevelMonitorIgnoresBadInput(t *testing.T) {
	var m LevelMonitor
	m.ObserveInterleaved([]float32{0.05}, 1)
	before := m.Level()

	m.ObserveInterleaved(nil, 2)
	m.ObserveInterleaved([]float32{1, 1}, 0)
	m.ObservePlanar([][]float32{{1}, {}})
	m.ObservePlanar(nil)
	m.ObserveInterleaved([]float32{float32(math.NaN())}, 1)

	if m.Level() != before {
		t.Errorf("level = %v after bad input, want unchanged %v", m.Level(), before)
	}
}

func TestLevelWindowDropsOldest(t *testing.T) {
	w := NewLevelWindow(3)
	w.Push(0.1)
	w.Push(0.2)
	w.Push(0.3)
	w.Push(0.4)

	got := w.Values()
	want := []float32{0.2, 0.3, 0.4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	w.Reset()
	for i, v := range w.Values() {
		if v != 0 {
			t.Errorf("values[%d] = %v after reset, want 0", i, v)
		}
	}
}

func TestLevelWindowDefaultSize(t *testing.T) {
	if got := len(NewLevelWindow(0).Values()); got != WindowSize {
		t.Errorf("len = %d, want %d", got, WindowSize)
	}
}
