package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once Run has exited or is draining for shutdown.
	ErrClosed = errors.New("recorder closed")
	// ErrAlreadyRecording is returned by Start outside notRecording.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop and Pause when idle.
	ErrNotRecording = errors.New("not recording")
	// ErrNotPaused is returned by Resume unless paused.
	ErrNotPaused = errors.New("not paused")
	// ErrSessionBusy is returned when deleting a session that is still
	// recording or has segments in flight.
	ErrSessionBusy = errors.New("session is still in use")
)

// ResumeError reports that capture could not be reactivated. The session
// stays paused.
type ResumeError struct {
	Err error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("resume capture: %v", e.Err)
}

func (e *ResumeError) Unwrap() error { return e.Err }
