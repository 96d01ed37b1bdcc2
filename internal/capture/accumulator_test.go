package capture

import (
	"errors"
	"testing"
	"time"
)

// testFormat gives a small buffer: 10 Hz * 1s + 2 channels * 2 frames = 14 frames.
var testFormat = Format{SampleRate: 10, Channels: 2, FramesPerBuffer: 2}

type blockRecorder struct {
	blocks []Block
}

func (r *blockRecorder) flush(b Block) { r.blocks = append(r.blocks, b) }

func (r *blockRecorder) totalSamples() int {
	n := 0
	for _, b := range r.blocks {
		n += len(b.Samples)
	}
	return n
}

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func newTestAccumulator(t *testing.T, rec *blockRecorder) *Accumulator {
	t.Helper()
	acc, err := NewAccumulator(testFormat, time.Second, rec.flush, &LevelMonitor{})
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}
	return acc
}

func TestAccumulatorCapacityIncludesCallbackMargin(t *testing.T) {
	acc := newTestAccumulator(t, &blockRecorder{})
	if got := acc.Capacity(); got != 14 {
		t.Errorf("capacity = %d frames, want 14", got)
	}
}

func TestAccumulatorTimerFlushProducesOneBlock(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	acc.Write(ramp(0, 8))
	acc.Write(ramp(8, 8))

	if len(rec.blocks) != 0 {
		t.Fatalf("flushed %d blocks before timer, want 0", len(rec.blocks))
	}

	if !acc.Flush(FlushTimer) {
		t.Fatal("Flush returned false with buffered samples")
	}
	if len(rec.blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(rec.blocks))
	}
	b := rec.blocks[0]
	if len(b.Samples) != 16 {
		t.Errorf("block samples = %d, want 16", len(b.Samples))
	}
	if b.Reason != FlushTimer {
		t.Errorf("reason = %q, want %q", b.Reason, FlushTimer)
	}
	if b.Frames() != 8 {
		t.Errorf("frames = %d, want 8", b.Frames())
	}
	if acc.Len() != 0 {
		t.Errorf("len after flush = %d, want 0", acc.Len())
	}
	for i, s := range b.Samples {
		if s != float32(i) {
			t.Fatalf("sample %d = %v, want %v", i, s, float32(i))
		}
	}
}

func TestAccumulatorFlushEmptyIsNoop(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	if acc.Flush(FlushTimer) {
		t.Error("Flush on empty buffer returned true")
	}
	if len(rec.blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(rec.blocks))
	}
}

func TestAccumulatorEarlyFlushBeforeOverflow(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	// 12 of 14 frames used, then 4 more frames arrive.
	acc.Write(ramp(0, 24))
	acc.Write(ramp(24, 8))

	if len(rec.blocks) != 1 {
		t.Fatalf("blocks = %d, want 1 early flush", len(rec.blocks))
	}
	if rec.blocks[0].Reason != FlushEarly {
		t.Errorf("reason = %q, want %q", rec.blocks[0].Reason, FlushEarly)
	}
	if len(rec.blocks[0].Samples) != 24 {
		t.Errorf("early block samples = %d, want 24 (flushed before append)", len(rec.blocks[0].Samples))
	}
	if acc.Len() != 4 {
		t.Errorf("len after early flush = %d frames, want 4", acc.Len())
	}

	acc.Flush(FlushFinal)
	if got := rec.totalSamples(); got != 32 {
		t.Errorf("total flushed samples = %d, want 32", got)
	}

	// Order is preserved across the flush boundary.
	var all []float32
	for _, b := range rec.blocks {
		all = append(all, b.Samples...)
	}
	for i, s := range all {
		if s != float32(i) {
			t.Fatalf("sample %d = %v, want %v", i, s, float32(i))
		}
	}
}

func TestAccumulatorSplitsOversizedWrite(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	// 40 frames into a 14-frame buffer.
	acc.Write(ramp(0, 80))
	acc.Flush(FlushFinal)

	if got := rec.totalSamples(); got != 80 {
		t.Errorf("total flushed samples = %d, want 80", got)
	}
	for _, b := range rec.blocks {
		if b.Frames() > acc.Capacity() {
			t.Errorf("block of %d frames exceeds capacity %d", b.Frames(), acc.Capacity())
		}
	}
	if len(rec.blocks) != 3 {
		t.Errorf("blocks = %d, want 3", len(rec.blocks))
	}
}

func TestAccumulatorNoLossAcrossManyWrites(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	written := 0
	for i := 0; i < 50; i++ {
		n := (i%5 + 1) * 2
		acc.Write(ramp(written, n))
		written += n
		if i%17 == 0 {
			acc.Flush(FlushTimer)
		}
	}
	acc.Flush(FlushFinal)

	if got := rec.totalSamples(); got != written {
		t.Errorf("total flushed samples = %d, want %d", got, written)
	}
}

func TestAccumulatorWritePlanarInterleaves(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	acc.WritePlanar([][]float32{{1, 3, 5}, {2, 4, 6}})
	acc.Flush(FlushTimer)

	want := []float32{1, 2, 3, 4, 5, 6}
	got := rec.blocks[0].Samples
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAccumulatorUpdatesLevel(t *testing.T) {
	level := &LevelMonitor{}
	acc, err := NewAccumulator(testFormat, time.Second, func(Block) {}, level)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	acc.Write([]float32{0.05, 0.05, 0.05, 0.05})
	if got := level.Level(); got < 0.49 || got > 0.51 {
		t.Errorf("level = %v, want 0.5", got)
	}
}

func TestAccumulatorCapturedAtIsFirstSample(t *testing.T) {
	rec := &blockRecorder{}
	acc := newTestAccumulator(t, rec)

	base := time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)
	tick := base
	acc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	acc.Write(ramp(0, 4))
	acc.Write(ramp(4, 4))
	acc.Flush(FlushTimer)

	if want := base.Add(time.Second); !rec.blocks[0].CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", rec.blocks[0].CapturedAt, want)
	}
}

func TestNewAccumulatorRejectsBadFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		dur    time.Duration
	}{
		{"zero rate", Format{SampleRate: 0, Channels: 1}, time.Second},
		{"zero channels", Format{SampleRate: 16000, Channels: 0}, time.Second},
		{"zero duration", Format{SampleRate: 16000, Channels: 1}, 0},
		{"huge", Format{SampleRate: 1 << 30, Channels: 8}, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccumulator(tt.format, tt.dur, func(Block) {}, nil)
			var capErr *CaptureError
			if !errors.As(err, &capErr) {
				t.Fatalf("err = %v, want *CaptureError", err)
			}
		})
	}
}
