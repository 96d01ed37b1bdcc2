// Package mic captures the default input device through PortAudio.
package mic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/mddudha/audiomind-app/internal/capture"
)

// DefaultFramesPerBuffer is the callback size requested from PortAudio.
const DefaultFramesPerBuffer = 1024

// Engine is a capture.Engine backed by the default PortAudio input device.
type Engine struct {
	framesPerBuffer int
	channels        int

	mu          sync.Mutex
	initialized bool
	format      capture.Format
	stream      *portaudio.Stream
}

// New returns an engine. channels <= 0 uses the device's channel count, up to stereo.
func New(framesPerBuffer, channels int) *Engine {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &Engine{framesPerBuffer: framesPerBuffer, channels: channels}
}

// Format initializes PortAudio and reports the default input device format.
func (e *Engine) Format() (capture.Format, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.initLocked(); err != nil {
		return capture.Format{}, err
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return capture.Format{}, &capture.CaptureError{Op: "query input device", Err: err}
	}
	if dev.MaxInputChannels <= 0 {
		return capture.Format{}, &capture.CaptureError{Op: "query input device", Err: fmt.Errorf("%s has no input channels", dev.Name)}
	}

	channels := e.channels
	if channels <= 0 {
		channels = min(dev.MaxInputChannels, 2)
	}
	e.format = capture.Format{
		SampleRate:      int(dev.DefaultSampleRate),
		Channels:        channels,
		FramesPerBuffer: e.framesPerBuffer,
	}
	return e.format, nil
}

// Start opens the input stream and delivers callbacks to sink.
func (e *Engine) Start(sink capture.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return &capture.CaptureError{Op: "start", Err: errors.New("already started")}
	}
	if e.format.SampleRate == 0 {
		return &capture.CaptureError{Op: "start", Err: errors.New("format not negotiated")}
	}

	callback := func(in []float32) {
		sink.Write(in)
	}
	stream, err := portaudio.OpenDefaultStream(e.format.Channels, 0, float64(e.format.SampleRate), e.framesPerBuffer, callback)
	if err != nil {
		return &capture.CaptureError{Op: "open stream", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return &capture.CaptureError{Op: "start stream", Err: err}
	}
	e.stream = stream
	return nil
}

// Pause stops callbacks without closing the stream.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return fmt.Errorf("pause stream: %w", err)
	}
	return nil
}

// Resume restarts callbacks after Pause.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return errors.New("resume stream: not started")
	}
	if err := e.stream.Start(); err != nil {
		return fmt.Errorf("resume stream: %w", err)
	}
	return nil
}

// Stop closes the stream and releases PortAudio.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.stream != nil {
		// Stop fails on an already paused stream; Close still releases it.
		_ = e.stream.Stop()
		if err := e.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		e.stream = nil
	}
	if e.initialized {
		if err := portaudio.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("terminate portaudio: %w", err))
		}
		e.initialized = false
	}
	e.format = capture.Format{}
	return errors.Join(errs...)
}

func (e *Engine) initLocked() error {
	if e.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return &capture.CaptureError{Op: "initialize portaudio", Err: err}
	}
	e.initialized = true
	return nil
}
