package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/mddudha/audiomind-app/internal/db"
)

const (
	// maxLine bounds one NDJSON line in either direction.
	maxLine = 1024 * 1024

	dialTimeout = 2 * time.Second
	// DefaultCommandTimeout bounds a command round trip. Stop waits for the
	// final flush to be queued, so it is generous.
	DefaultCommandTimeout = 10 * time.Second
)

// ErrClosed is returned once the daemon has hung up.
var ErrClosed = errors.New("connection closed")

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	return filepath.Join(db.DefaultDataDir(), "audiomind.sock")
}

// Client talks to the daemon over one Unix socket connection. A connection
// is used either for commands or, after subscribe, for reading events.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
	mu      sync.Mutex
}

// Connect dials the daemon socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	return &Client{conn: conn, scanner: scanner, timeout: DefaultCommandTimeout}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// SendCommand writes cmd and waits for its response line. A refused command
// is still a successful round trip; see Do.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
		defer c.conn.SetDeadline(time.Time{})
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("write %s: %w", cmd.Cmd, err)
	}

	var resp Response
	if err := c.readLine(&resp); err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// Do sends a command and turns a refused command into an error.
func (c *Client) Do(cmd Command) (Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return resp, err
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "command refused"
		}
		return resp, fmt.Errorf("%s: %s", cmd.Cmd, msg)
	}
	return resp, nil
}

// ReadEvent blocks until the next event arrives on a subscribed connection.
func (c *Client) ReadEvent() (Event, error) {
	var ev Event
	if err := c.readLine(&ev); err != nil {
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	return ev, nil
}

func (c *Client) readLine(v any) error {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	if err := json.Unmarshal(c.scanner.Bytes(), v); err != nil {
		return fmt.Errorf("decode %q: %w", c.scanner.Bytes(), err)
	}
	return nil
}
