package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startMockDaemon creates a Unix socket that accepts one connection,
// reads a command, and writes back a canned response.
func startMockDaemon(t *testing.T, response Response) (string, <-chan Command, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	received := make(chan Command, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read one line (the command)
		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd Command
		json.Unmarshal(line, &cmd)
		received <- cmd

		data, _ := json.Marshal(response)
		conn.Write(append(data, '\n'))
	}()

	return sockPath, received, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientSendCommand(t *testing.T) {
	resp := Response{
		OK:        true,
		SessionID: "sess-1",
		Recording: BoolPtr(true),
		State:     "recording",
	}

	sockPath, received, cleanup := startMockDaemon(t, resp)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	got, err := client.SendCommand(Command{Cmd: CmdStart})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.OK {
		t.Error("ok = false, want true")
	}
	if got.SessionID != "sess-1" {
		t.Errorf("sessionId = %q, want %q", got.SessionID, "sess-1")
	}
	if cmd := <-received; cmd.Cmd != CmdStart {
		t.Errorf("daemon received %q, want start", cmd.Cmd)
	}
}

func TestClientDoRefused(t *testing.T) {
	sockPath, _, cleanup := startMockDaemon(t, Response{OK: false, Error: "not recording"})
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	_, err = client.Do(Command{Cmd: CmdStop})
	if err == nil {
		t.Fatal("expected error for refused command")
	}
	if !strings.Contains(err.Error(), "not recording") {
		t.Errorf("error = %v, want daemon message", err)
	}
}

func TestClientConnectFailure(t *testing.T) {
	_, err := Connect("/nonexistent/path/audiomind.sock")
	if err == nil {
		t.Error("expected error connecting to nonexistent socket")
	}
}

func TestClientConnectionClosed(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		bufio.NewReader(conn).ReadBytes('\n')
		conn.Close()
	}()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	_, err = client.SendCommand(Command{Cmd: CmdStatus})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestClientCommandTimeout(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never answer.
		<-hold
	}()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	client.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err = client.SendCommand(Command{Cmd: CmdStatus})
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("err = %v, want timeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("SendCommand took %v", time.Since(start))
	}
}

// startMockEventStream creates a daemon that sends a subscribe response
// then streams events.
func startMockEventStream(t *testing.T, events []Event) (string, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read subscribe command
		bufio.NewReader(conn).ReadBytes('\n')

		// Send subscribe response
		resp, _ := json.Marshal(Response{OK: true})
		conn.Write(append(resp, '\n'))

		// Stream events
		for _, ev := range events {
			data, _ := json.Marshal(ev)
			conn.Write(append(data, '\n'))
		}
	}()

	return sockPath, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientReadEvents(t *testing.T) {
	level := float32(0.5)
	events := []Event{
		{Event: "segment", Segment: &SegmentInfo{ID: "seg-1", Index: 0, Status: "completed", Text: "hello"}},
		{Event: "level", Level: &level, Levels: []float32{0.1, 0.5}},
	}

	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	_, err = client.SendCommand(Command{Cmd: CmdSubscribe})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev1, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 1: %v", err)
	}
	if ev1.Event != "segment" || ev1.Segment == nil || ev1.Segment.Text != "hello" {
		t.Errorf("event1 = %+v", ev1)
	}

	ev2, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 2: %v", err)
	}
	if ev2.Event != "level" || ev2.Level == nil || *ev2.Level != 0.5 || len(ev2.Levels) != 2 {
		t.Errorf("event2 = %+v", ev2)
	}

	if _, err := client.ReadEvent(); !errors.Is(err, ErrClosed) {
		t.Errorf("after stream ends err = %v, want ErrClosed", err)
	}
}
