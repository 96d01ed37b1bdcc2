// Package recorder implements the session controller: the recording state
// machine, its timers, the per-session segment pipeline and the dispatch
// of segments for transcription.
//
// All state is owned by the goroutine running Run. Public methods send a
// closure to that goroutine and wait for its result, so transitions and
// store calls never interleave.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mddudha/audiomind-app/internal/capture"
	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/segment"
)

// State is the recording state.
type State string

const (
	NotRecording State = "notRecording"
	Recording    State = "recording"
	Paused       State = "paused"
)

// Interruption is the phase of an OS audio interruption.
type Interruption string

const (
	InterruptionBegan Interruption = "began"
	InterruptionEnded Interruption = "ended"
)

// RouteChangeReason describes why the audio route changed.
type RouteChangeReason string

// RouteOldDeviceUnavailable means the input device went away.
const RouteOldDeviceUnavailable RouteChangeReason = "old_device_unavailable"

// RoutePolicy decides what losing the input device does to a recording.
type RoutePolicy string

const (
	RouteStop  RoutePolicy = "stop"
	RoutePause RoutePolicy = "pause"
)

// Store is the durable store the controller writes through.
type Store interface {
	InsertSession(*db.Session) error
	SaveSession(*db.Session) error
	InsertSegment(*db.Segment) error
	SaveSegment(*db.Segment) error
	CountSessions() (int, error)
	DeleteSession(id string) error
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Submit(ctx context.Context, path string) (string, error)
}

// StatusPublisher shares the recording flag and session count with other
// processes.
type StatusPublisher interface {
	PublishStatus(recording bool, sessionCount int) error
}

// ConverterFactory returns the converter for a session directory.
type ConverterFactory func(sessionDir string) segment.Converter

// Options configures a Recorder. Engine, Store and Transcriber are required.
type Options struct {
	Engine      capture.Engine
	Store       Store
	Transcriber Transcriber
	Converter   ConverterFactory
	Status      StatusPublisher

	// DataDir holds one directory per session under sessions/.
	DataDir string
	// SegmentDuration sizes the accumulation buffer.
	SegmentDuration time.Duration
	// FlushInterval is the periodic flush cadence. Defaults to SegmentDuration.
	FlushInterval time.Duration
	// ElapsedInterval is the elapsed-time tick. Defaults to one second.
	ElapsedInterval time.Duration
	// LevelInterval is how often the level window is sampled.
	LevelInterval time.Duration
	RoutePolicy   RoutePolicy
	// Foreground reports whether the user-facing app is active. Nil means
	// always active.
	Foreground func() bool

	Logger *slog.Logger
	Now    func() time.Time
}

func (o *Options) setDefaults() {
	if o.SegmentDuration <= 0 {
		o.SegmentDuration = capture.DefaultSegmentDuration
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = o.SegmentDuration
	}
	if o.ElapsedInterval <= 0 {
		o.ElapsedInterval = time.Second
	}
	if o.LevelInterval <= 0 {
		o.LevelInterval = 100 * time.Millisecond
	}
	if o.RoutePolicy == "" {
		o.RoutePolicy = RouteStop
	}
	if o.Foreground == nil {
		o.Foreground = func() bool { return true }
	}
	if o.Converter == nil {
		o.Converter = func(dir string) segment.Converter {
			return &segment.NativeConverter{Dir: dir}
		}
	}
	if o.DataDir == "" {
		o.DataDir = db.DefaultDataDir()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Snapshot is a copy of the controller's observable state.
type Snapshot struct {
	State        State
	SessionID    string
	Elapsed      time.Duration
	Level        float32
	Levels       []float32
	Buffered     int
	Segments     []db.Segment
	SessionCount int
	LastError    string
}

// Recorder is the session controller.
type Recorder struct {
	opts    Options
	log     *slog.Logger
	events  *Broadcaster
	actions chan func()
	done    chan struct{}
	baseCtx context.Context

	// Everything below is owned by the Run goroutine.
	state                State
	current              *liveSession
	shown                *liveSession
	live                 map[string]*liveSession
	acc                  *capture.Accumulator
	level                *capture.LevelMonitor
	window               *capture.LevelWindow
	elapsed              time.Duration
	pausedByInterruption bool
	sessionCount         int
	lastErr              error
	outstanding          int
	draining             bool

	flushTicker   *time.Ticker
	elapsedTicker *time.Ticker
	levelTicker   *time.Ticker
}

// New returns a recorder. Call Run to start its loop.
func New(opts Options) (*Recorder, error) {
	if opts.Engine == nil {
		return nil, errors.New("recorder: engine is required")
	}
	if opts.Store == nil {
		return nil, errors.New("recorder: store is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("recorder: transcriber is required")
	}
	switch opts.RoutePolicy {
	case "", RouteStop, RoutePause:
	default:
		return nil, errors.New("recorder: unknown route policy " + string(opts.RoutePolicy))
	}
	opts.setDefaults()

	return &Recorder{
		opts:    opts,
		log:     opts.Logger,
		events:  NewBroadcaster(opts.Logger),
		actions: make(chan func()),
		done:    make(chan struct{}),
		state:   NotRecording,
		live:    make(map[string]*liveSession),
		level:   &capture.LevelMonitor{},
		window:  capture.NewLevelWindow(capture.WindowSize),
	}, nil
}

// Run owns the controller state until ctx is cancelled. On cancellation it
// stops any recording and keeps serving until pipelines and in-flight
// transcriptions have finished.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	r.baseCtx = context.WithoutCancel(ctx)

	if n, err := r.opts.Store.CountSessions(); err != nil {
		r.reportError(err)
	} else {
		r.sessionCount = n
	}
	r.publishStatus()

	stopping := ctx.Done()
	for {
		select {
		case <-stopping:
			stopping = nil
			r.draining = true
			if r.state != NotRecording {
				if err := r.stop(); err != nil {
					r.log.Warn("stop on shutdown failed", slog.Any("error", err))
				}
			}
			r.log.Info("recorder draining", slog.Int("outstanding", r.outstanding))
		case fn := <-r.actions:
			fn()
		case <-tickC(r.flushTicker):
			r.onFlushTick()
		case <-tickC(r.elapsedTicker):
			r.onElapsedTick()
		case <-tickC(r.levelTicker):
			r.onLevelTick()
		}

		if r.draining && r.outstanding == 0 {
			return nil
		}
	}
}

// Wait blocks until Run has returned.
func (r *Recorder) Wait() { <-r.done }

// Start begins a new session.
func (r *Recorder) Start(ctx context.Context) error {
	return r.do(ctx, r.start)
}

// Stop ends the current session.
func (r *Recorder) Stop(ctx context.Context) error {
	return r.do(ctx, r.stop)
}

// Pause suspends capture. Only Resume undoes an explicit pause.
func (r *Recorder) Pause(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.pause(); err != nil {
			return err
		}
		r.pausedByInterruption = false
		return nil
	})
}

// Resume continues a paused session.
func (r *Recorder) Resume(ctx context.Context) error {
	return r.do(ctx, r.resume)
}

// Toggle starts when idle, stops when recording and resumes when paused.
func (r *Recorder) Toggle(ctx context.Context) error {
	return r.do(ctx, func() error {
		switch r.state {
		case NotRecording:
			return r.start()
		case Recording:
			return r.stop()
		default:
			return r.resume()
		}
	})
}

// HandleInterruption applies an OS audio interruption. A session paused by
// the interruption resumes when it ends, if the app is in the foreground.
func (r *Recorder) HandleInterruption(ctx context.Context, phase Interruption) error {
	return r.do(ctx, func() error {
		switch phase {
		case InterruptionBegan:
			if r.state != Recording {
				return nil
			}
			if err := r.pause(); err != nil {
				return err
			}
			r.pausedByInterruption = true
			r.log.Info("recording interrupted")
			return nil
		case InterruptionEnded:
			resumable := r.state == Paused && r.pausedByInterruption
			r.pausedByInterruption = false
			if !resumable {
				return nil
			}
			if !r.opts.Foreground() {
				r.log.Info("interruption ended in background, staying paused")
				return nil
			}
			return r.resume()
		default:
			return errors.New("unknown interruption phase " + string(phase))
		}
	})
}

// HandleRouteChange applies an audio route change. Only the loss of the
// input device affects recording, as decided by the route policy.
func (r *Recorder) HandleRouteChange(ctx context.Context, reason RouteChangeReason) error {
	return r.do(ctx, func() error {
		if reason != RouteOldDeviceUnavailable || r.state == NotRecording {
			return nil
		}
		r.log.Info("input device unavailable", slog.String("policy", string(r.opts.RoutePolicy)))
		if r.opts.RoutePolicy == RoutePause {
			if r.state != Recording {
				return nil
			}
			if err := r.pause(); err != nil {
				return err
			}
			r.pausedByInterruption = false
			return nil
		}
		return r.stop()
	})
}

// DeleteSession removes a session, its segments and its audio directory.
// The recording session and sessions with segments in flight are refused.
func (r *Recorder) DeleteSession(ctx context.Context, id string) error {
	return r.do(ctx, func() error { return r.deleteSession(id) })
}

// DismissError clears the latest-error slot.
func (r *Recorder) DismissError(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.lastErr = nil
		return nil
	})
}

// Snapshot returns the current observable state.
func (r *Recorder) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, func() error {
		snap = r.snapshot()
		return nil
	})
	return snap, err
}

// Subscribe registers for events. Unsubscribe must be called with the id.
func (r *Recorder) Subscribe(bufSize int) (string, <-chan Event) {
	return r.events.Subscribe(bufSize)
}

// Unsubscribe releases a subscription.
func (r *Recorder) Unsubscribe(id string) { r.events.Unsubscribe(id) }

// do runs fn on the loop and returns its error.
func (r *Recorder) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case r.actions <- func() { errc <- fn() }:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop without waiting for it. It is used by
// pipeline and submission goroutines.
func (r *Recorder) post(fn func()) {
	select {
	case r.actions <- fn:
	case <-r.done:
	}
}

func (r *Recorder) sessionDir(id string) string {
	return filepath.Join(r.opts.DataDir, "sessions", id)
}

func tickC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func newTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func stopTicker(t **time.Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
