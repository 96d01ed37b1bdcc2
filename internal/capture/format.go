// Package capture turns a live stream of audio callbacks into fixed-duration
// segment blocks and a loudness estimate for level meters.
package capture

import (
	"fmt"
	"time"
)

// Format describes the sample layout delivered by an Engine.
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Validate reports whether the format can size an accumulation buffer.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.FramesPerBuffer < 0 {
		return fmt.Errorf("invalid frames per buffer %d", f.FramesPerBuffer)
	}
	return nil
}

// Sink receives interleaved float32 samples from the audio callback.
// Implementations must not block.
type Sink interface {
	Write(samples []float32)
}

// Engine is a source of live audio. Start delivers callbacks to sink on the
// engine's own goroutine until Stop.
type Engine interface {
	Format() (Format, error)
	Start(sink Sink) error
	Pause() error
	Resume() error
	Stop() error
}

// CaptureError reports a failure to set up or drive the audio engine.
// A CaptureError returned from start means recording did not begin.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// FlushReason records what finalized a block.
type FlushReason string

const (
	FlushTimer FlushReason = "timer"
	FlushEarly FlushReason = "early"
	FlushFinal FlushReason = "final"
)

// Block is a finalized copy of accumulated samples, handed off for writing.
type Block struct {
	Samples    []float32 // interleaved
	Format     Format
	CapturedAt time.Time // arrival of the first sample in the block
	Reason     FlushReason
}

// Frames returns the number of sample frames in the block.
func (b Block) Frames() int {
	if b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the audio duration the block covers.
func (b Block) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}
