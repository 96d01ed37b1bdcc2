// Package daemon provides the protocol types, client and server for
// talking to the audiomind daemon over a Unix socket using NDJSON.
package daemon

import (
	"time"

	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/recorder"
)

// Command names.
const (
	CmdStart      = "start"
	CmdStop       = "stop"
	CmdToggle     = "toggle"
	CmdPause      = "pause"
	CmdResume     = "resume"
	CmdStatus     = "status"
	CmdSessions   = "sessions"
	CmdTranscript = "transcript"
	CmdDelete     = "delete"
	CmdDismiss    = "dismiss"
	CmdSubscribe  = "subscribe"
	CmdInterrupt  = "interrupt"
	CmdRoute      = "route"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd       string   `json:"cmd"`
	SessionID string   `json:"sessionId,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	Phase     string   `json:"phase,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Events    []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK           bool          `json:"ok"`
	Error        string        `json:"error,omitempty"`
	SessionID    string        `json:"sessionId,omitempty"`
	Recording    *bool         `json:"recording,omitempty"`
	State        string        `json:"state,omitempty"`
	Elapsed      string        `json:"elapsed,omitempty"`
	Level        *float32      `json:"level,omitempty"`
	Levels       []float32     `json:"levels,omitempty"`
	Segments     *int          `json:"segments,omitempty"`
	SessionCount *int          `json:"sessionCount,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	Sessions     []SessionInfo `json:"sessions,omitempty"`
	SegmentList  []SegmentInfo `json:"segmentList,omitempty"`
	Transcript   *string       `json:"transcript,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event        string       `json:"event"`
	SessionID    string       `json:"sessionId,omitempty"`
	State        string       `json:"state,omitempty"`
	Recording    *bool        `json:"recording,omitempty"`
	Elapsed      string       `json:"elapsed,omitempty"`
	Level        *float32     `json:"level,omitempty"`
	Levels       []float32    `json:"levels,omitempty"`
	Segment      *SegmentInfo `json:"segment,omitempty"`
	SessionCount *int         `json:"sessionCount,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// SessionInfo describes a session in listings.
type SessionInfo struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"createdAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Status       string     `json:"status"`
	FilePath     string     `json:"filePath,omitempty"`
	SegmentCount int        `json:"segmentCount"`
}

// SegmentInfo describes one segment and its transcription state.
type SegmentInfo struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Text      string    `json:"text,omitempty"`
	AudioPath string    `json:"audioPath,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to an int value.
func IntPtr(n int) *int { return &n }

// StringPtr returns a pointer to a string value.
func StringPtr(s string) *string { return &s }

// SessionInfoFrom converts a stored session.
func SessionInfoFrom(s db.Session, segmentCount int) SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		EndedAt:      s.EndedAt,
		Status:       string(s.Status),
		FilePath:     s.FilePath,
		SegmentCount: segmentCount,
	}
}

// SegmentInfoFrom converts a stored segment.
func SegmentInfoFrom(s db.Segment) SegmentInfo {
	return SegmentInfo{
		ID:        s.ID,
		SessionID: s.SessionID,
		Index:     s.Index,
		Timestamp: s.Timestamp,
		Status:    string(s.Status),
		Text:      s.Text,
		AudioPath: s.AudioPath,
	}
}

// Segment converts back to the stored form.
func (s SegmentInfo) Segment() db.Segment {
	return db.Segment{
		ID:        s.ID,
		SessionID: s.SessionID,
		Index:     s.Index,
		Timestamp: s.Timestamp,
		Status:    db.SegmentStatus(s.Status),
		Text:      s.Text,
		AudioPath: s.AudioPath,
	}
}

// EventFrom converts a recorder event to its wire form.
func EventFrom(ev recorder.Event) Event {
	out := Event{Event: string(ev.Type), SessionID: ev.SessionID}
	switch ev.Type {
	case recorder.EventState:
		out.State = string(ev.State)
		out.Recording = BoolPtr(ev.State != recorder.NotRecording)
		out.SessionCount = IntPtr(ev.SessionCount)
	case recorder.EventElapsed:
		out.Elapsed = recorder.FormatElapsed(ev.Elapsed)
	case recorder.EventLevel:
		level := ev.Level
		out.Level = &level
		out.Levels = ev.Levels
	case recorder.EventSegment:
		if ev.Segment != nil {
			info := SegmentInfoFrom(*ev.Segment)
			out.Segment = &info
		}
	case recorder.EventError:
		out.Message = ev.Err
	}
	return out
}

// StatusResponse builds the reply to a status command.
func StatusResponse(snap recorder.Snapshot) Response {
	level := snap.Level
	segs := make([]SegmentInfo, len(snap.Segments))
	for i, s := range snap.Segments {
		segs[i] = SegmentInfoFrom(s)
	}
	return Response{
		OK:           true,
		SessionID:    snap.SessionID,
		Recording:    BoolPtr(snap.State != recorder.NotRecording),
		State:        string(snap.State),
		Elapsed:      recorder.FormatElapsed(snap.Elapsed),
		Level:        &level,
		Levels:       snap.Levels,
		Segments:     IntPtr(len(snap.Segments)),
		SessionCount: IntPtr(snap.SessionCount),
		LastError:    snap.LastError,
		SegmentList:  segs,
	}
}
