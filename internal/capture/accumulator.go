package capture

import (
	"errors"
	"sync"
	"time"
)

// DefaultSegmentDuration is the target length of one segment.
const DefaultSegmentDuration = 30 * time.Second

// maxBufferSamples bounds the accumulation buffer (about 10 minutes of
// 48 kHz stereo) so a bad format cannot request an absurd allocation.
const maxBufferSamples = 64 << 20

// FlushFunc receives each finalized block. It is called outside the
// accumulator's lock, possibly from the audio callback, and must not block.
type FlushFunc func(Block)

// Accumulator collects samples into a pre-sized buffer holding one segment
// plus one callback's worth of frames per channel.
type Accumulator struct {
	mu      sync.Mutex
	format  Format
	buf     []float32
	n       int
	started time.Time
	scratch []float32

	onFlush FlushFunc
	level   *LevelMonitor
	now     func() time.Time
}

// NewAccumulator allocates the buffer for format. level may be nil.
func NewAccumulator(format Format, segment time.Duration, onFlush FlushFunc, level *LevelMonitor) (*Accumulator, error) {
	if err := format.Validate(); err != nil {
		return nil, &CaptureError{Op: "allocate buffer", Err: err}
	}
	if segment <= 0 {
		return nil, &CaptureError{Op: "allocate buffer", Err: errors.New("segment duration must be positive")}
	}
	if onFlush == nil {
		return nil, &CaptureError{Op: "allocate buffer", Err: errors.New("flush func is required")}
	}

	frames := int(float64(format.SampleRate)*segment.Seconds()) + format.Channels*format.FramesPerBuffer
	samples := frames * format.Channels
	if samples <= 0 || samples > maxBufferSamples {
		return nil, &CaptureError{Op: "allocate buffer", Err: errors.New("buffer size out of range")}
	}

	return &Accumulator{
		format:  format,
		buf:     make([]float32, samples),
		onFlush: onFlush,
		level:   level,
		now:     time.Now,
	}, nil
}

// Format returns the format the buffer was sized for.
func (a *Accumulator) Format() Format { return a.format }

// Capacity returns the buffer capacity in frames.
func (a *Accumulator) Capacity() int { return len(a.buf) / a.format.Channels }

// Len returns the number of frames currently buffered.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n / a.format.Channels
}

// Write appends interleaved samples. If they do not fit in the remaining
// capacity the buffer is flushed first; nothing is dropped or truncated.
func (a *Accumulator) Write(samples []float32) {
	if a.level != nil {
		a.level.ObserveInterleaved(samples, a.format.Channels)
	}

	a.mu.Lock()
	blocks := a.appendLocked(samples)
	a.mu.Unlock()

	a.emit(blocks)
}

// WritePlanar appends one buffer per channel, interleaving them.
// Channels beyond the configured count are ignored.
func (a *Accumulator) WritePlanar(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	if a.level != nil {
		a.level.ObservePlanar(channels)
	}

	frames := len(channels[0])
	for _, ch := range channels[1:] {
		frames = min(frames, len(ch))
	}
	nch := a.format.Channels

	a.mu.Lock()
	need := frames * nch
	if cap(a.scratch) < need {
		a.scratch = make([]float32, need)
	}
	a.scratch = a.scratch[:need]
	for c := 0; c < nch; c++ {
		var src []float32
		if c < len(channels) {
			src = channels[c]
		}
		for i := 0; i < frames; i++ {
			if src != nil {
				a.scratch[i*nch+c] = src[i]
			} else {
				a.scratch[i*nch+c] = 0
			}
		}
	}
	blocks := a.appendLocked(a.scratch)
	a.mu.Unlock()

	a.emit(blocks)
}

// Flush finalizes whatever is buffered. It reports false when the buffer
// was empty and no block was produced.
func (a *Accumulator) Flush(reason FlushReason) bool {
	a.mu.Lock()
	if a.n == 0 {
		a.mu.Unlock()
		return false
	}
	b := a.takeLocked(reason)
	a.mu.Unlock()

	a.onFlush(b)
	return true
}

func (a *Accumulator) appendLocked(samples []float32) []Block {
	var blocks []Block
	for len(samples) > 0 {
		free := len(a.buf) - a.n
		if len(samples) > free && a.n > 0 {
			blocks = append(blocks, a.takeLocked(FlushEarly))
			continue
		}
		k := min(free, len(samples))
		if a.n == 0 {
			a.started = a.now()
		}
		copy(a.buf[a.n:], samples[:k])
		a.n += k
		samples = samples[k:]
	}
	return blocks
}

func (a *Accumulator) takeLocked(reason FlushReason) Block {
	out := make([]float32, a.n)
	copy(out, a.buf[:a.n])
	a.n = 0
	return Block{
		Samples:    out,
		Format:     a.format,
		CapturedAt: a.started,
		Reason:     reason,
	}
}

func (a *Accumulator) emit(blocks []Block) {
	for _, b := range blocks {
		a.onFlush(b)
	}
}
