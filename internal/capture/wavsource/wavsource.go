// Package wavsource replays a WAV file as a live capture source, paced in
// real time. It lets the daemon run on hosts without a microphone.
package wavsource

import (
	"errors"
	"sync"
	"time"

	"github.com/mddudha/audiomind-app/internal/capture"
	"github.com/mddudha/audiomind-app/internal/segment"
)

// Engine is a capture.Engine that plays back a decoded file.
type Engine struct {
	path            string
	framesPerBuffer int
	// Speed multiplies playback pace; 0 or 1 is real time.
	Speed float64
	// Loop restarts the file at EOF instead of going silent.
	Loop bool

	mu      sync.Mutex
	pcm     *segment.PCM
	pos     int
	paused  bool
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns an engine for the WAV file at path.
func New(path string, framesPerBuffer int) *Engine {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &Engine{path: path, framesPerBuffer: framesPerBuffer}
}

// Format decodes the file and reports its format.
func (e *Engine) Format() (capture.Format, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pcm == nil {
		pcm, err := segment.ReadWAV(e.path)
		if err != nil {
			return capture.Format{}, &capture.CaptureError{Op: "open wav source", Err: err}
		}
		e.pcm = &pcm
	}
	return capture.Format{
		SampleRate:      e.pcm.SampleRate,
		Channels:        e.pcm.Channels,
		FramesPerBuffer: e.framesPerBuffer,
	}, nil
}

// Start begins delivering callbacks to sink.
func (e *Engine) Start(sink capture.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pcm == nil {
		return &capture.CaptureError{Op: "start", Err: errors.New("format not negotiated")}
	}
	if e.running {
		return &capture.CaptureError{Op: "start", Err: errors.New("already started")}
	}
	e.running = true
	e.paused = false
	e.pos = 0
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(sink, e.stop, e.done)
	return nil
}

// Pause suspends delivery; the playback position is kept.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	return nil
}

// Resume continues delivery after Pause.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return errors.New("resume wav source: not started")
	}
	e.paused = false
	return nil
}

// Stop ends delivery and waits for the playback goroutine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	<-done
	return nil
}

func (e *Engine) run(sink capture.Sink, stop, done chan struct{}) {
	defer close(done)

	interval := time.Duration(e.framesPerBuffer) * time.Second / time.Duration(e.pcm.SampleRate)
	if e.Speed > 0 {
		interval = time.Duration(float64(interval) / e.Speed)
	}
	ticker := time.NewTicker(max(interval, time.Microsecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		chunk := e.next()
		if chunk != nil {
			sink.Write(chunk)
		}
	}
}

func (e *Engine) next() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil
	}
	ch := e.pcm.Channels
	total := len(e.pcm.Samples)
	if e.pos >= total {
		if !e.Loop || total == 0 {
			return nil
		}
		e.pos = 0
	}
	end := min(e.pos+e.framesPerBuffer*ch, total)
	chunk := e.pcm.Samples[e.pos:end]
	e.pos = end
	return chunk
}
