package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/recorder"
)

// ErrAlreadyRunning is returned by Serve when another daemon answers on the
// socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// Controller is the recording surface the server drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Toggle(ctx context.Context) error
	HandleInterruption(ctx context.Context, phase recorder.Interruption) error
	HandleRouteChange(ctx context.Context, reason recorder.RouteChangeReason) error
	DeleteSession(ctx context.Context, id string) error
	DismissError(ctx context.Context) error
	Snapshot(ctx context.Context) (recorder.Snapshot, error)
	Subscribe(bufSize int) (string, <-chan recorder.Event)
	Unsubscribe(id string)
}

// Catalog is the read side of the store.
type Catalog interface {
	Sessions(limit int) ([]db.Session, error)
	Session(id string) (*db.Session, error)
	SegmentCounts() (map[string]int, error)
	CountSessions() (int, error)
}

// Server accepts NDJSON connections on a Unix socket. Each connection
// handles commands in order; a subscribed connection also receives events.
type Server struct {
	path    string
	ctl     Controller
	catalog Catalog
	log     *slog.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer returns a server for the socket at path.
func NewServer(path string, ctl Controller, catalog Catalog, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		path:    path,
		ctl:     ctl,
		catalog: catalog,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve listens until ctx is done, then closes every connection and removes
// the socket file.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.claimSocket(); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	defer os.Remove(s.path)
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.log.Info("daemon listening", slog.String("socket", s.path))

	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.Error("accept failed", slog.Any("error", err))
			ln.Close()
			s.closeConns()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(ctx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

// claimSocket removes a stale socket file left by a crashed daemon and
// refuses to start when a live one answers.
func (s *Server) claimSocket() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", s.path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%s: %w", s.path, ErrAlreadyRunning)
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	s.log.Info("removed stale socket", slog.String("socket", s.path))
	return nil
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// conn serializes writes from the command loop and the event forwarder.
type conn struct {
	net.Conn
	mu sync.Mutex
}

func (c *conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(v)
}

func (c *conn) sendLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = c.Write(append(data, '\n'))
	return err
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	c := &conn{Conn: nc}
	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var subID string
	var forwarding sync.WaitGroup
	defer func() {
		if subID != "" {
			s.ctl.Unsubscribe(subID)
		}
		forwarding.Wait()
	}()

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			if err := c.send(Response{Error: fmt.Sprintf("invalid command: %v", err)}); err != nil {
				return
			}
			continue
		}

		if cmd.Cmd == CmdSubscribe && subID == "" {
			var events <-chan recorder.Event
			subID, events = s.ctl.Subscribe(0)

			// The write lock makes the response precede the first event.
			c.mu.Lock()
			forwarding.Add(1)
			go func() {
				defer forwarding.Done()
				s.forward(c, events, eventFilter(cmd.Events))
			}()
			err := c.sendLocked(Response{OK: true})
			c.mu.Unlock()
			if err != nil {
				return
			}
			continue
		}

		var resp Response
		if cmd.Cmd == CmdSubscribe {
			resp = Response{Error: "already subscribed"}
		} else {
			resp = s.dispatch(ctx, cmd)
		}

		if !resp.OK {
			s.log.Debug("command refused", slog.String("cmd", cmd.Cmd), slog.String("error", resp.Error))
		}
		if err := c.send(resp); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.Debug("connection read failed", slog.Any("error", err))
	}
}

// forward writes events until the subscription channel closes. A failed
// write closes the connection so the command loop exits too.
func (s *Server) forward(c *conn, events <-chan recorder.Event, want map[string]bool) {
	for ev := range events {
		if want != nil && !want[string(ev.Type)] {
			continue
		}
		if err := c.send(EventFrom(ev)); err != nil {
			c.Close()
			for range events {
			}
			return
		}
	}
}

func eventFilter(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	return want
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	switch cmd.Cmd {
	case CmdStart:
		return s.control(ctx, s.ctl.Start)
	case CmdStop:
		return s.control(ctx, s.ctl.Stop)
	case CmdToggle:
		return s.control(ctx, s.ctl.Toggle)
	case CmdPause:
		return s.control(ctx, s.ctl.Pause)
	case CmdResume:
		return s.control(ctx, s.ctl.Resume)
	case CmdStatus:
		return s.status(ctx)
	case CmdDismiss:
		return s.control(ctx, s.ctl.DismissError)
	case CmdInterrupt:
		phase := recorder.Interruption(cmd.Phase)
		if phase != recorder.InterruptionBegan && phase != recorder.InterruptionEnded {
			return errorResponse(fmt.Errorf("phase must be %q or %q", recorder.InterruptionBegan, recorder.InterruptionEnded))
		}
		return s.control(ctx, func(ctx context.Context) error {
			return s.ctl.HandleInterruption(ctx, phase)
		})
	case CmdRoute:
		if cmd.Reason == "" {
			return errorResponse(errors.New("reason is required"))
		}
		return s.control(ctx, func(ctx context.Context) error {
			return s.ctl.HandleRouteChange(ctx, recorder.RouteChangeReason(cmd.Reason))
		})
	case CmdDelete:
		if cmd.SessionID == "" {
			return errorResponse(errors.New("sessionId is required"))
		}
		return s.control(ctx, func(ctx context.Context) error {
			return s.ctl.DeleteSession(ctx, cmd.SessionID)
		})
	case CmdSessions:
		return s.sessions(cmd)
	case CmdTranscript:
		return s.transcript(cmd)
	case "":
		return errorResponse(errors.New("missing cmd"))
	default:
		return errorResponse(fmt.Errorf("unknown command %q", cmd.Cmd))
	}
}

// control runs a state-changing call and replies with the resulting status.
func (s *Server) control(ctx context.Context, fn func(context.Context) error) Response {
	if err := fn(ctx); err != nil {
		return errorResponse(err)
	}
	return s.status(ctx)
}

func (s *Server) status(ctx context.Context) Response {
	snap, err := s.ctl.Snapshot(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return StatusResponse(snap)
}

func (s *Server) sessions(cmd Command) Response {
	limit := 0
	if cmd.Limit != nil {
		limit = *cmd.Limit
	}
	sessions, err := s.catalog.Sessions(limit)
	if err != nil {
		return errorResponse(err)
	}
	counts, err := s.catalog.SegmentCounts()
	if err != nil {
		return errorResponse(err)
	}
	total, err := s.catalog.CountSessions()
	if err != nil {
		return errorResponse(err)
	}

	infos := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = SessionInfoFrom(sess, counts[sess.ID])
	}
	return Response{OK: true, Sessions: infos, SessionCount: IntPtr(total)}
}

// transcript returns the ordered transcript of one session, or of the
// newest session when no id is given.
func (s *Server) transcript(cmd Command) Response {
	id := cmd.SessionID
	if id == "" {
		latest, err := s.catalog.Sessions(1)
		if err != nil {
			return errorResponse(err)
		}
		if len(latest) == 0 {
			return errorResponse(errors.New("no sessions"))
		}
		id = latest[0].ID
	}

	sess, err := s.catalog.Session(id)
	if err != nil {
		return errorResponse(err)
	}
	if sess == nil {
		return errorResponse(fmt.Errorf("session %s: %w", id, db.ErrNotFound))
	}

	db.SortSegments(sess.Segments)
	segs := make([]SegmentInfo, len(sess.Segments))
	for i, seg := range sess.Segments {
		segs[i] = SegmentInfoFrom(seg)
	}
	info := SessionInfoFrom(*sess, len(segs))
	return Response{
		OK:          true,
		SessionID:   sess.ID,
		Segments:    IntPtr(len(segs)),
		Sessions:    []SessionInfo{info},
		SegmentList: segs,
		Transcript:  StringPtr(db.Transcript(sess.Segments)),
	}
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}
