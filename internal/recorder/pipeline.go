package recorder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mddudha/audiomind-app/internal/capture"
	"github.com/mddudha/audiomind-app/internal/segment"
)

// blockQueue is an unbounded FIFO. push never blocks, so it is safe to
// call from the audio callback.
type blockQueue struct {
	mu     sync.Mutex
	items  []capture.Block
	closed bool
	signal chan struct{}
}

func newBlockQueue() *blockQueue {
	return &blockQueue{signal: make(chan struct{}, 1)}
}

func (q *blockQueue) push(b capture.Block) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, b)
	q.mu.Unlock()
	q.wake()
	return true
}

// close stops accepting blocks. Queued blocks are still delivered.
func (q *blockQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// pop waits for the next block. It returns false once the queue is closed
// and empty.
func (q *blockQueue) pop() (capture.Block, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			b := q.items[0]
			q.items[0] = capture.Block{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return b, true
		}
		if q.closed {
			q.mu.Unlock()
			return capture.Block{}, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *blockQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pipelineSink receives pipeline results. Implementations must not block
// the pipeline for long.
type pipelineSink interface {
	segmentReady(sessionID string, c segment.Container, audioPath string)
	pipelineFailed(sessionID string, err error)
	pipelineDone(sessionID, finalPath string, err error)
}

// pipeline writes and converts the blocks of one session, in order, off
// the audio callback and off the coordinating loop.
type pipeline struct {
	sessionID string
	writer    *segment.Writer
	converter segment.Converter
	queue     *blockQueue
	log       *slog.Logger
}

func newPipeline(sessionID string, writer *segment.Writer, converter segment.Converter, log *slog.Logger) *pipeline {
	return &pipeline{
		sessionID: sessionID,
		writer:    writer,
		converter: converter,
		queue:     newBlockQueue(),
		log:       log.With(slog.String("session", sessionID)),
	}
}

// push is the accumulator's flush callback.
func (p *pipeline) push(b capture.Block) {
	if !p.queue.push(b) {
		p.log.Warn("block arrived after session closed",
			slog.Int("frames", b.Frames()), slog.String("reason", string(b.Reason)))
	}
}

func (p *pipeline) close() { p.queue.close() }

func (p *pipeline) run(ctx context.Context, sink pipelineSink) {
	for {
		block, ok := p.queue.pop()
		if !ok {
			break
		}

		container, err := p.writer.Write(block)
		if err != nil {
			p.log.Error("write segment failed", slog.Any("error", err))
			sink.pipelineFailed(p.sessionID, err)
			continue
		}

		audioPath, err := p.converter.Convert(ctx, container.Path)
		if err != nil {
			p.log.Warn("segment dropped from transcription",
				slog.Int("index", container.Index), slog.Any("error", err))
			continue
		}
		p.log.Debug("segment ready",
			slog.Int("index", container.Index),
			slog.String("reason", string(block.Reason)),
			slog.Duration("duration", block.Duration()))
		sink.segmentReady(p.sessionID, container, audioPath)
	}

	finalPath, err := p.writer.Finalize(ctx)
	if err == nil {
		p.log.Info("session audio finalized",
			slog.Int("segments", p.writer.Next()), slog.String("path", finalPath))
	}
	sink.pipelineDone(p.sessionID, finalPath, err)
}
