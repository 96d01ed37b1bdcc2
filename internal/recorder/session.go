package recorder

import (
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mddudha/audiomind-app/internal/capture"
	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/segment"
	"github.com/mddudha/audiomind-app/internal/transcribe"
)

// liveSession tracks a session while it records and until its pipeline
// has drained and every submission has resolved.
type liveSession struct {
	session  *db.Session
	segments []*db.Segment
	pipe     *pipeline
	inFlight int
	drained  bool
}

func (ls *liveSession) find(id string) *db.Segment {
	for _, seg := range ls.segments {
		if seg.ID == id {
			return seg
		}
	}
	return nil
}

func (ls *liveSession) sortedSegments() []db.Segment {
	out := make([]db.Segment, len(ls.segments))
	for i, seg := range ls.segments {
		out[i] = *seg
	}
	db.SortSegments(out)
	return out
}

func (r *Recorder) start() error {
	if r.draining {
		return ErrClosed
	}
	if r.state != NotRecording {
		return ErrAlreadyRecording
	}

	// Format may already have opened the audio backend, so every failure
	// from here on releases the engine.
	format, err := r.opts.Engine.Format()
	if err != nil {
		r.releaseEngine()
		return r.captureFailed("negotiate format", err)
	}

	id := uuid.NewString()
	dir := r.sessionDir(id)
	writer, err := segment.NewWriter(dir)
	if err != nil {
		r.releaseEngine()
		return r.captureFailed("prepare session dir", err)
	}
	pipe := newPipeline(id, writer, r.opts.Converter(dir), r.log)

	r.level.Reset()
	acc, err := capture.NewAccumulator(format, r.opts.SegmentDuration, pipe.push, r.level)
	if err != nil {
		os.Remove(dir)
		r.releaseEngine()
		return r.captureFailed("allocate buffer", err)
	}
	if err := r.opts.Engine.Start(acc); err != nil {
		os.Remove(dir)
		r.releaseEngine()
		return r.captureFailed("start engine", err)
	}

	sess := &db.Session{
		ID:        id,
		CreatedAt: r.opts.Now(),
		FilePath:  dir,
		Status:    db.SessionActive,
	}
	ls := &liveSession{session: sess, pipe: pipe}
	r.live[id] = ls
	r.current = ls
	r.shown = ls
	r.acc = acc
	r.outstanding++
	go pipe.run(r.baseCtx, r)

	r.state = Recording
	r.elapsed = 0
	r.pausedByInterruption = false
	r.window.Reset()
	r.startTimers()

	if err := r.opts.Store.InsertSession(sess); err != nil {
		r.reportError(err)
	} else {
		r.refreshCount()
	}

	r.log.Info("recording started",
		slog.String("session", id),
		slog.Int("sample_rate", format.SampleRate),
		slog.Int("channels", format.Channels))
	r.emitState()
	r.emitElapsed()
	r.publishStatus()
	return nil
}

func (r *Recorder) stop() error {
	if r.state == NotRecording {
		return ErrNotRecording
	}
	ls := r.current

	if err := r.opts.Engine.Stop(); err != nil {
		r.reportError(&capture.CaptureError{Op: "stop engine", Err: err})
	}
	r.acc.Flush(capture.FlushFinal)
	ls.pipe.close()
	r.stopTimers()

	ended := r.opts.Now()
	ls.session.EndedAt = &ended
	ls.session.Status = db.SessionCompleted
	if err := r.opts.Store.SaveSession(ls.session); err != nil {
		r.reportError(err)
	}

	r.state = NotRecording
	r.current = nil
	r.acc = nil
	r.pausedByInterruption = false
	r.elapsed = 0
	r.level.Reset()
	r.window.Reset()
	r.release(ls)

	r.log.Info("recording stopped",
		slog.String("session", ls.session.ID),
		slog.Duration("duration", ended.Sub(ls.session.CreatedAt)))
	r.emitState()
	r.emitElapsed()
	r.publishStatus()
	return nil
}

func (r *Recorder) pause() error {
	switch r.state {
	case NotRecording:
		return ErrNotRecording
	case Paused:
		return nil
	}
	if err := r.opts.Engine.Pause(); err != nil {
		ce := &capture.CaptureError{Op: "pause engine", Err: err}
		r.reportError(ce)
		return ce
	}
	r.state = Paused
	r.stopActivityTimers()

	r.log.Info("recording paused", slog.String("elapsed", FormatElapsed(r.elapsed)))
	r.emitState()
	r.publishStatus()
	return nil
}

func (r *Recorder) resume() error {
	switch r.state {
	case NotRecording:
		return ErrNotPaused
	case Recording:
		return nil
	}
	if err := r.opts.Engine.Resume(); err != nil {
		re := &ResumeError{Err: err}
		r.reportError(re)
		return re
	}
	r.state = Recording
	r.pausedByInterruption = false
	r.startActivityTimers()

	r.log.Info("recording resumed", slog.String("elapsed", FormatElapsed(r.elapsed)))
	r.emitState()
	r.publishStatus()
	return nil
}

// segmentReady, pipelineFailed and pipelineDone run on the pipeline
// goroutine and hand their results to the loop.

func (r *Recorder) segmentReady(sessionID string, c segment.Container, audioPath string) {
	r.post(func() { r.onSegmentReady(sessionID, c, audioPath) })
}

func (r *Recorder) pipelineFailed(sessionID string, err error) {
	r.post(func() { r.reportError(err) })
}

func (r *Recorder) pipelineDone(sessionID, finalPath string, err error) {
	r.post(func() { r.onPipelineDone(sessionID, finalPath, err) })
}

func (r *Recorder) onSegmentReady(sessionID string, c segment.Container, audioPath string) {
	ls := r.live[sessionID]
	if ls == nil {
		r.log.Warn("segment for unknown session", slog.String("session", sessionID))
		return
	}

	seg := &db.Segment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Index:     c.Index,
		Timestamp: c.CapturedAt,
		Status:    db.SegmentPending,
		AudioPath: audioPath,
	}
	ls.segments = append(ls.segments, seg)
	if err := r.opts.Store.InsertSegment(seg); err != nil {
		r.reportError(err)
	}
	r.emitSegment(seg)
	r.dispatch(ls, seg)
}

func (r *Recorder) dispatch(ls *liveSession, seg *db.Segment) {
	seg.Status = db.SegmentTranscribing
	if err := r.opts.Store.SaveSegment(seg); err != nil {
		r.reportError(err)
	}
	r.emitSegment(seg)

	ls.inFlight++
	r.outstanding++
	sessionID, segmentID, path := seg.SessionID, seg.ID, seg.AudioPath
	go func() {
		text, err := r.opts.Transcriber.Submit(r.baseCtx, path)
		r.post(func() { r.onSegmentResolved(sessionID, segmentID, text, err) })
	}()
}

func (r *Recorder) onSegmentResolved(sessionID, segmentID, text string, err error) {
	r.outstanding--
	ls := r.live[sessionID]
	if ls == nil {
		return
	}
	ls.inFlight--
	defer r.release(ls)

	seg := ls.find(segmentID)
	if seg == nil {
		return
	}
	next := db.SegmentCompleted
	switch {
	case errors.Is(err, transcribe.ErrEmptyTranscript):
		// Silence. The segment fails but the user has nothing to act on.
		next = db.SegmentFailed
		r.log.Info("segment has no speech",
			slog.String("session", sessionID),
			slog.Int("index", seg.Index))
	case err != nil:
		next = db.SegmentFailed
		r.log.Warn("transcription failed",
			slog.String("session", sessionID),
			slog.Int("index", seg.Index),
			slog.Any("error", err))
		r.reportError(err)
	}
	if !seg.Status.CanTransition(next) {
		return
	}
	seg.Status = next
	if next == db.SegmentCompleted {
		seg.Text = text
	}
	if err := r.opts.Store.SaveSegment(seg); err != nil {
		r.reportError(err)
	}
	r.emitSegment(seg)
}

func (r *Recorder) releaseEngine() {
	if err := r.opts.Engine.Stop(); err != nil {
		r.log.Warn("release engine failed", slog.Any("error", err))
	}
}

func (r *Recorder) onPipelineDone(sessionID, finalPath string, err error) {
	r.outstanding--
	ls := r.live[sessionID]
	if ls == nil {
		return
	}
	ls.drained = true
	defer r.release(ls)

	if err != nil {
		if !errors.Is(err, segment.ErrNoSegments) {
			r.log.Warn("finalize session audio failed",
				slog.String("session", sessionID), slog.Any("error", err))
		}
		return
	}
	ls.session.FilePath = finalPath
	if err := r.opts.Store.SaveSession(ls.session); err != nil {
		r.reportError(err)
	}
}

// release forgets a session once nothing can update it any more.
func (r *Recorder) release(ls *liveSession) {
	if ls == r.current || !ls.drained || ls.inFlight > 0 {
		return
	}
	delete(r.live, ls.session.ID)
}

func (r *Recorder) deleteSession(id string) error {
	if ls, ok := r.live[id]; ok {
		if ls == r.current || !ls.drained || ls.inFlight > 0 {
			return ErrSessionBusy
		}
		delete(r.live, id)
	}
	if err := r.opts.Store.DeleteSession(id); err != nil {
		r.reportError(err)
		return err
	}
	if r.shown != nil && r.shown.session.ID == id {
		r.shown = nil
	}
	if err := os.RemoveAll(r.sessionDir(id)); err != nil {
		r.log.Warn("remove session audio failed", slog.String("session", id), slog.Any("error", err))
	}

	r.log.Info("session deleted", slog.String("session", id))
	r.refreshCount()
	r.emitState()
	r.publishStatus()
	return nil
}

func (r *Recorder) startTimers() {
	r.flushTicker = newTicker(r.opts.FlushInterval)
	r.startActivityTimers()
}

func (r *Recorder) startActivityTimers() {
	r.elapsedTicker = newTicker(r.opts.ElapsedInterval)
	r.levelTicker = newTicker(r.opts.LevelInterval)
}

func (r *Recorder) stopActivityTimers() {
	stopTicker(&r.elapsedTicker)
	stopTicker(&r.levelTicker)
}

func (r *Recorder) stopTimers() {
	stopTicker(&r.flushTicker)
	r.stopActivityTimers()
}

// Flush ticks keep their cadence while paused but do not flush, so the
// partial buffer survives a pause.
func (r *Recorder) onFlushTick() {
	if r.state != Recording || r.acc == nil {
		return
	}
	r.acc.Flush(capture.FlushTimer)
}

func (r *Recorder) onElapsedTick() {
	if r.state != Recording {
		return
	}
	r.elapsed += r.opts.ElapsedInterval
	r.emitElapsed()
}

func (r *Recorder) onLevelTick() {
	if r.state != Recording {
		return
	}
	v := r.level.Level()
	r.window.Push(v)
	r.events.Emit(Event{Type: EventLevel, Level: v, Levels: r.window.Values()})
}

func (r *Recorder) refreshCount() {
	n, err := r.opts.Store.CountSessions()
	if err != nil {
		r.reportError(err)
		return
	}
	r.sessionCount = n
}

// reportError fills the latest-error slot, replacing any unseen error.
func (r *Recorder) reportError(err error) {
	r.lastErr = err
	r.log.Error("recorder error", slog.Any("error", err))
	r.events.Emit(Event{Type: EventError, Err: err.Error()})
}

func (r *Recorder) captureFailed(op string, err error) error {
	var ce *capture.CaptureError
	if !errors.As(err, &ce) {
		err = &capture.CaptureError{Op: op, Err: err}
	}
	r.reportError(err)
	return err
}

func (r *Recorder) publishStatus() {
	if r.opts.Status == nil {
		return
	}
	if err := r.opts.Status.PublishStatus(r.state != NotRecording, r.sessionCount); err != nil {
		r.log.Warn("publish status failed", slog.Any("error", err))
	}
}

func (r *Recorder) currentID() string {
	if r.current == nil {
		return ""
	}
	return r.current.session.ID
}

func (r *Recorder) emitState() {
	r.events.Emit(Event{
		Type:         EventState,
		State:        r.state,
		SessionID:    r.currentID(),
		SessionCount: r.sessionCount,
	})
}

func (r *Recorder) emitElapsed() {
	r.events.Emit(Event{Type: EventElapsed, SessionID: r.currentID(), Elapsed: r.elapsed})
}

func (r *Recorder) emitSegment(seg *db.Segment) {
	cp := *seg
	r.events.Emit(Event{Type: EventSegment, SessionID: seg.SessionID, Segment: &cp})
}

func (r *Recorder) snapshot() Snapshot {
	snap := Snapshot{
		State:        r.state,
		Elapsed:      r.elapsed,
		Level:        r.level.Level(),
		Levels:       r.window.Values(),
		SessionCount: r.sessionCount,
	}
	if r.acc != nil {
		snap.Buffered = r.acc.Len()
	}
	if r.shown != nil {
		snap.SessionID = r.shown.session.ID
		snap.Segments = r.shown.sortedSegments()
	}
	if r.lastErr != nil {
		snap.LastError = r.lastErr.Error()
	}
	return snap
}
