package app

import "github.com/mddudha/audiomind-app/internal/daemon"

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, status, sessions)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Response daemon.Response
}

// ControlResponseMsg carries the response to start, stop, toggle, pause,
// resume or dismiss.
type ControlResponseMsg struct {
	Cmd      string
	Response daemon.Response
}

// SessionsResponseMsg carries the session list.
type SessionsResponseMsg struct {
	Response daemon.Response
}

// TranscriptResponseMsg carries one session's segments and transcript.
type TranscriptResponseMsg struct {
	Response daemon.Response
}

// DeleteResponseMsg carries the result of deleting a session.
type DeleteResponseMsg struct {
	SessionID string
	Response  daemon.Response
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
