// Package db provides SQLite persistence for recording sessions and their
// transcript segments.
package db

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a session row.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// SegmentStatus is the transcription state of a segment.
type SegmentStatus string

const (
	SegmentPending      SegmentStatus = "pending"
	SegmentTranscribing SegmentStatus = "transcribing"
	SegmentCompleted    SegmentStatus = "completed"
	SegmentFailed       SegmentStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s SegmentStatus) Terminal() bool {
	return s == SegmentCompleted || s == SegmentFailed
}

// CanTransition reports whether moving from s to next goes forward.
func (s SegmentStatus) CanTransition(next SegmentStatus) bool {
	switch s {
	case SegmentPending:
		return next == SegmentTranscribing || next.Terminal()
	case SegmentTranscribing:
		return next.Terminal()
	default:
		return false
	}
}

// Session represents a recording session.
type Session struct {
	ID        string
	CreatedAt time.Time
	EndedAt   *time.Time
	// FilePath is the session directory while recording and the finalized
	// container once the session has been stopped and drained.
	FilePath string
	Status   SessionStatus
	Segments []Segment
}

// Segment represents one flushed block of audio and its transcription.
type Segment struct {
	ID        string
	SessionID string
	Index     int
	Timestamp time.Time
	Status    SegmentStatus
	Text      string
	AudioPath string
}

// SortSegments orders segments by capture time, then index.
func SortSegments(segs []Segment) {
	slices.SortStableFunc(segs, func(a, b Segment) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

// Transcript joins the text of completed segments in capture order.
// A session without completed segments yields "".
func Transcript(segs []Segment) string {
	ordered := slices.Clone(segs)
	SortSegments(ordered)

	parts := make([]string, 0, len(ordered))
	for _, seg := range ordered {
		if seg.Status != SegmentCompleted || seg.Text == "" {
			continue
		}
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
