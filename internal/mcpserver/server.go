// Package mcpserver exposes recorded sessions and transcripts as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mddudha/audiomind-app/internal/daemon"
	"github.com/mddudha/audiomind-app/internal/db"
)

const defaultListLimit = 20

// Reader is the read side of the store the tools need.
type Reader interface {
	Sessions(limit int) ([]db.Session, error)
	Session(id string) (*db.Session, error)
	LatestSession() (*db.Session, error)
	SegmentCounts() (map[string]int, error)
}

type tools struct {
	store Reader
}

// New builds an MCP server with the list_sessions and get_transcript tools.
func New(store Reader, version string) *server.MCPServer {
	s := server.NewMCPServer("audiomind", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	t := &tools{store: store}
	s.AddTool(listSessionsTool(), t.listSessions)
	s.AddTool(getTranscriptTool(), t.getTranscript)
	return s
}

// Serve runs the server over stdio until ctx is cancelled or in is closed.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}

func listSessionsTool() mcp.Tool {
	return mcp.NewTool("list_sessions",
		mcp.WithDescription("List recording sessions, newest first, with their segment counts."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions to return"),
			mcp.DefaultNumber(defaultListLimit),
			mcp.Min(1),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getTranscriptTool() mcp.Tool {
	return mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the transcript of a recording session. Defaults to the most recent session."),
		mcp.WithString("session_id",
			mcp.Description("Session id as returned by list_sessions"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

type sessionList struct {
	Sessions []daemon.SessionInfo `json:"sessions"`
}

func (t *tools) listSessions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	sessions, err := t.store.Sessions(limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list sessions", err), nil
	}
	counts, err := t.store.SegmentCounts()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list sessions", err), nil
	}

	out := sessionList{Sessions: make([]daemon.SessionInfo, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, daemon.SessionInfoFrom(sess, counts[sess.ID]))
	}
	return mcp.NewToolResultJSON(out)
}

func (t *tools) getTranscript(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")

	var sess *db.Session
	var err error
	if id == "" {
		sess, err = t.store.LatestSession()
		if err == nil && sess != nil {
			sess, err = t.store.Session(sess.ID)
		}
	} else {
		sess, err = t.store.Session(id)
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("get transcript", err), nil
	}
	if sess == nil {
		if id == "" {
			return mcp.NewToolResultError("no sessions recorded yet"), nil
		}
		return mcp.NewToolResultErrorf("session %s not found", id), nil
	}

	return mcp.NewToolResultText(formatTranscript(sess)), nil
}

// formatTranscript renders a session header followed by one line per segment.
func formatTranscript(sess *db.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", sess.ID)
	fmt.Fprintf(&b, "Started: %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if sess.EndedAt != nil {
		fmt.Fprintf(&b, "Ended: %s\n", sess.EndedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Status: %s\n", sess.Status)

	if len(sess.Segments) == 0 {
		b.WriteString("\nNo segments.\n")
		return b.String()
	}

	segs := sess.Segments
	db.SortSegments(segs)
	b.WriteString("\n")
	for _, seg := range segs {
		ts := seg.Timestamp.Local().Format("15:04:05")
		switch seg.Status {
		case db.SegmentCompleted:
			fmt.Fprintf(&b, "[%s] %s\n", ts, seg.Text)
		case db.SegmentFailed:
			fmt.Fprintf(&b, "[%s] (transcription failed)\n", ts)
		default:
			fmt.Fprintf(&b, "[%s] (pending)\n", ts)
		}
	}
	return b.String()
}
