package app

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mddudha/audiomind-app/internal/daemon"
)

func newTestModel() Model {
	m := New("/tmp/audiomind-test.sock")
	m.width = 100
	m.height = 30
	return m
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func seg(id string, idx int, offset time.Duration, status, text string) daemon.SegmentInfo {
	return daemon.SegmentInfo{
		ID:        id,
		SessionID: "sess-1",
		Index:     idx,
		Timestamp: time.Unix(1700000000, 0).Add(offset),
		Status:    status,
		Text:      text,
	}
}

func TestNewModel(t *testing.T) {
	m := New("x.sock")
	if m.connected {
		t.Error("new model should not be connected")
	}
	if m.state != stateIdle {
		t.Errorf("state = %q, want idle", m.state)
	}
	if m.elapsed != "00:00" {
		t.Errorf("elapsed = %q, want 00:00", m.elapsed)
	}
	if !m.transcriptLive {
		t.Error("new model should be in live mode")
	}
	if m.focusedPanel != FocusTranscript {
		t.Error("new model should focus transcript")
	}
}

func TestDaemonConnectError(t *testing.T) {
	m := newTestModel()

	updated, cmd := m.Update(DaemonConnectErrorMsg{Err: fmt.Errorf("connection refused")})
	model := updated.(Model)

	if model.connected {
		t.Error("should not be connected after error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting after connect error")
	}
	if cmd == nil {
		t.Error("connect error should schedule a reconnect")
	}
}

func TestReconnectDelayGrows(t *testing.T) {
	m := New("x.sock")
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, m.reconnectDelay.NextBackOff())
	}
	want := []time.Duration{1, 2, 4, 8, 16, 16}
	for i := range want {
		if got[i] != want[i]*time.Second {
			t.Errorf("delay %d = %v, want %v", i, got[i], want[i]*time.Second)
		}
	}

	updated, _ := m.Update(DaemonConnectedMsg{})
	model := updated.(Model)
	if d := model.reconnectDelay.NextBackOff(); d != time.Second {
		t.Errorf("delay after connect = %v, want 1s", d)
	}
}

func TestStatusResponse(t *testing.T) {
	m := newTestModel()
	m.connected = true

	level := float32(0.4)
	resp := StatusResponseMsg{Response: daemon.Response{
		OK:           true,
		SessionID:    "sess-1",
		Recording:    daemon.BoolPtr(true),
		State:        "recording",
		Elapsed:      "02:05",
		Level:        &level,
		Levels:       []float32{0.1, 0.4},
		SessionCount: daemon.IntPtr(7),
		SegmentList: []daemon.SegmentInfo{
			seg("b", 1, 30*time.Second, "pending", ""),
			seg("a", 0, 0, "completed", "Hello"),
		},
	}}

	updated, _ := m.Update(resp)
	model := updated.(Model)

	if model.state != stateRecording || model.statusText != "Recording" {
		t.Errorf("state = %q status = %q", model.state, model.statusText)
	}
	if model.sessionID != "sess-1" || model.elapsed != "02:05" || model.sessionCount != 7 {
		t.Errorf("model = %q %q %d", model.sessionID, model.elapsed, model.sessionCount)
	}
	if len(model.segments) != 2 || model.segments[0].ID != "a" {
		t.Errorf("segments not in capture order: %+v", model.segments)
	}
	if len(model.levels) != 2 || model.level != 0.4 {
		t.Errorf("levels = %v level = %v", model.levels, model.level)
	}
}

func TestControlResponseError(t *testing.T) {
	m := newTestModel()
	m.connected = true

	updated, cmd := m.Update(ControlResponseMsg{Cmd: daemon.CmdStart, Response: daemon.Response{Error: "already recording"}})
	model := updated.(Model)

	if model.errorMessage != "already recording" || !model.errorTransient {
		t.Errorf("error = %q transient = %v", model.errorMessage, model.errorTransient)
	}
	if cmd == nil {
		t.Error("transient error should return a clear command")
	}

	updated, _ = model.Update(ClearTransientErrorMsg{})
	if updated.(Model).errorMessage != "" {
		t.Error("transient error not cleared")
	}
}

func TestStateEvents(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}

	cmd := m.handleEvent(daemon.Event{Event: "state", State: "recording", SessionID: "sess-1", SessionCount: daemon.IntPtr(3)})
	if m.state != stateRecording || m.sessionID != "sess-1" || m.sessionCount != 3 {
		t.Errorf("after start: state=%q session=%q count=%d", m.state, m.sessionID, m.sessionCount)
	}
	if cmd == nil {
		t.Error("session start should refresh the session list")
	}

	m.handleEvent(daemon.Event{Event: "elapsed", Elapsed: "00:42"})
	if m.elapsed != "00:42" {
		t.Errorf("elapsed = %q", m.elapsed)
	}

	if cmd := m.handleEvent(daemon.Event{Event: "state", State: "paused", SessionID: "sess-1"}); cmd != nil {
		t.Error("pause should not refresh the session list")
	}
	if m.elapsed != "00:42" {
		t.Errorf("pause reset elapsed to %q", m.elapsed)
	}

	m.handleEvent(daemon.Event{Event: "state", State: "notRecording", SessionID: "sess-1"})
	if m.elapsed != "00:00" {
		t.Errorf("elapsed after stop = %q, want 00:00", m.elapsed)
	}
}

func TestSegmentEventsKeepCaptureOrder(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.sessionID = "sess-1"

	second := seg("b", 1, 30*time.Second, "transcribing", "")
	first := seg("a", 0, 0, "transcribing", "")
	m.handleEvent(daemon.Event{Event: "segment", Segment: &second})
	m.handleEvent(daemon.Event{Event: "segment", Segment: &first})

	// The later segment resolves first.
	second.Status, second.Text = "completed", "World"
	m.handleEvent(daemon.Event{Event: "segment", Segment: &second})
	first.Status, first.Text = "completed", "Hello"
	m.handleEvent(daemon.Event{Event: "segment", Segment: &first})

	if len(m.segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(m.segments))
	}
	if m.segments[0].Text != "Hello" || m.segments[1].Text != "World" {
		t.Errorf("segments = %+v", m.segments)
	}

	other := seg("z", 0, 0, "completed", "elsewhere")
	other.SessionID = "other"
	m.handleEvent(daemon.Event{Event: "segment", Segment: &other})
	if len(m.segments) != 2 {
		t.Error("segment of another session added to the live list")
	}
}

func TestLevelEvent(t *testing.T) {
	m := newTestModel()
	level := float32(0.8)
	m.handleEvent(daemon.Event{Event: "level", Level: &level, Levels: []float32{0.2, 0.8}})

	if m.level != 0.8 {
		t.Errorf("level = %v, want 0.8", m.level)
	}
	if len(m.levels) != 2 {
		t.Errorf("levels = %v", m.levels)
	}
}

func TestErrorEventIsSticky(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}

	if cmd := m.handleEvent(daemon.Event{Event: "error", Message: "transcription failed after 3 attempt(s)"}); cmd != nil {
		t.Error("daemon errors should not auto-clear")
	}
	if m.errorMessage == "" || m.errorTransient {
		t.Errorf("error = %q transient = %v", m.errorMessage, m.errorTransient)
	}

	updated, cmd := m.Update(keyRune('x'))
	model := updated.(Model)
	if model.errorMessage != "" {
		t.Error("x should clear the error")
	}
	if cmd == nil {
		t.Error("dismissing a daemon error should notify the daemon")
	}
}

func TestSpaceTogglesOnlyWhenConnected(t *testing.T) {
	m := newTestModel()
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace}); cmd != nil {
		t.Error("space while disconnected should do nothing")
	}

	m.connected = true
	m.client = &daemon.Client{}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace}); cmd == nil {
		t.Error("space while connected should send toggle")
	}
}

func TestPauseAndStopKeys(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}

	if _, cmd := m.Update(keyRune('p')); cmd != nil {
		t.Error("p while idle should do nothing")
	}
	if _, cmd := m.Update(keyRune('s')); cmd != nil {
		t.Error("s while idle should do nothing")
	}

	m.state = stateRecording
	if _, cmd := m.Update(keyRune('p')); cmd == nil {
		t.Error("p while recording should pause")
	}
	m.state = statePaused
	if _, cmd := m.Update(keyRune('p')); cmd == nil {
		t.Error("p while paused should resume")
	}
	if _, cmd := m.Update(keyRune('s')); cmd == nil {
		t.Error("s while paused should stop")
	}
}

func TestTabTogglesFocus(t *testing.T) {
	m := newTestModel()
	m.connected = true

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	model := updated.(Model)
	if model.focusedPanel != FocusSessions {
		t.Error("tab should switch to sessions")
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.focusedPanel != FocusTranscript {
		t.Error("tab again should switch back to transcript")
	}
}

func TestSessionNavigationAndOpen(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}
	m.focusedPanel = FocusSessions

	updated, _ := m.Update(SessionsResponseMsg{Response: daemon.Response{OK: true, Sessions: []daemon.SessionInfo{
		{ID: "s3", SegmentCount: 2},
		{ID: "s2"},
		{ID: "s1", SegmentCount: 5},
	}}})
	model := updated.(Model)

	updated, _ = model.Update(keyRune('j'))
	model = updated.(Model)
	updated, _ = model.Update(keyRune('j'))
	model = updated.(Model)
	updated, _ = model.Update(keyRune('j'))
	model = updated.(Model)
	if model.selectedSession != 2 {
		t.Errorf("selected = %d, want 2 (clamped)", model.selectedSession)
	}

	updated, _ = model.Update(keyRune('k'))
	model = updated.(Model)
	if model.selectedSession != 1 {
		t.Errorf("after k, selected = %d, want 1", model.selectedSession)
	}

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("enter should fetch the transcript")
	}
	if model.focusedPanel != FocusTranscript {
		t.Error("enter should focus the transcript")
	}
}

func TestTranscriptViewAndEsc(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.sessionID = "live"

	updated, _ := m.Update(TranscriptResponseMsg{Response: daemon.Response{
		OK:          true,
		SessionID:   "sess-1",
		Transcript:  daemon.StringPtr("Hello"),
		SegmentList: []daemon.SegmentInfo{seg("a", 0, 0, "completed", "Hello")},
	}})
	model := updated.(Model)
	if model.viewing == nil || model.viewing.id != "sess-1" || model.viewing.transcript != "Hello" {
		t.Fatalf("viewing = %+v", model.viewing)
	}
	if !strings.Contains(model.View(), "HISTORY") {
		t.Error("view should mark a historical session")
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(Model)
	if model.viewing != nil || !model.transcriptLive {
		t.Error("esc should return to the live transcript")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.client = &daemon.Client{}
	m.focusedPanel = FocusSessions
	m.sessions = []daemon.SessionInfo{{ID: "s1"}, {ID: "s2"}}

	updated, cmd := m.Update(keyRune('d'))
	model := updated.(Model)
	if cmd != nil {
		t.Error("first d should only ask for confirmation")
	}
	if model.pendingDelete != "s1" {
		t.Errorf("pendingDelete = %q", model.pendingDelete)
	}

	// Any other key cancels.
	updated, _ = model.Update(keyRune('j'))
	model = updated.(Model)
	if model.pendingDelete != "" {
		t.Error("other key should cancel the pending delete")
	}

	updated, _ = model.Update(keyRune('d'))
	model = updated.(Model)
	if _, cmd := model.Update(keyRune('d')); cmd == nil {
		t.Error("second d should delete")
	}

	model.viewing = &sessionView{id: "s2"}
	updated, _ = model.Update(DeleteResponseMsg{SessionID: "s2", Response: daemon.Response{OK: true}})
	model = updated.(Model)
	if model.viewing != nil {
		t.Error("deleting the viewed session should close it")
	}
}

func TestViewRendersStates(t *testing.T) {
	m := newTestModel()
	m.connected = true

	view := m.View()
	if !strings.Contains(view, "IDLE") || !strings.Contains(view, "00:00") {
		t.Errorf("idle view missing indicator or timer:\n%s", view)
	}
	if !strings.Contains(view, "Press Space to start recording") {
		t.Error("idle view should prompt to record")
	}

	m.state = stateRecording
	m.sessionID = "sess-1"
	m.elapsed = "01:07"
	view = m.View()
	if !strings.Contains(view, "REC") || !strings.Contains(view, "01:07") {
		t.Errorf("recording view missing indicator or timer:\n%s", view)
	}
	if !strings.Contains(view, "No segments") {
		t.Error("session without segments should say so")
	}

	m.segments = []daemon.SegmentInfo{seg("a", 0, 0, "pending", "")}
	view = m.View()
	if strings.Contains(view, "No segments") || !strings.Contains(view, "transcribing") {
		t.Error("pending segment should render as a placeholder, not as no segments")
	}

	m.state = statePaused
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("paused view should show PAUSED")
	}
}

func TestViewShowsFailedSegment(t *testing.T) {
	m := newTestModel()
	m.connected = true
	m.sessionID = "sess-1"
	m.segments = []daemon.SegmentInfo{
		seg("a", 0, 0, "completed", "Hello"),
		seg("b", 1, 30*time.Second, "failed", ""),
	}

	view := m.View()
	if !strings.Contains(view, "Hello") || !strings.Contains(view, "transcription failed") {
		t.Errorf("view:\n%s", view)
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := New("x.sock")
	view := m.View()
	if view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("wrapText = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
