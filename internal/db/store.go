package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is wrapped by StorageError when an update matches no row.
var ErrNotFound = errors.New("not found")

// StorageError reports a failed persistence operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		createdAt REAL NOT NULL,
		endedAt REAL,
		filePath TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		timestamp REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		text TEXT NOT NULL DEFAULT '',
		audioPath TEXT NOT NULL DEFAULT '',
		UNIQUE(sessionId, idx)
	);

	CREATE INDEX IF NOT EXISTS segments_by_session ON segments(sessionId, timestamp);
`

// Store provides access to the audiomind SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDataDir returns the directory holding the database and recordings.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".audiomind")
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "audiomind.sqlite")
}

// Open opens the database for reading and writing, creating it and its
// schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer connection keeps statements from contending for the lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database in read-only mode. Readers such as
// the TUI and the MCP server use it alongside a running daemon.
func OpenReadOnly(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSession adds a new session row.
func (s *Store) InsertSession(sess *Session) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, createdAt, endedAt, filePath, status)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, unixFromTime(sess.CreatedAt), nullTime(sess.EndedAt), sess.FilePath, string(sess.Status))
	return storageErr("insert session", err)
}

// SaveSession writes the mutable fields of an existing session.
func (s *Store) SaveSession(sess *Session) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET endedAt = ?, filePath = ?, status = ?
		WHERE id = ?
	`, nullTime(sess.EndedAt), sess.FilePath, string(sess.Status), sess.ID)
	if err != nil {
		return storageErr("save session", err)
	}
	return storageErr("save session", expectOneRow(res, sess.ID))
}

// InsertSegment adds a new segment row. The owning session must exist.
func (s *Store) InsertSegment(seg *Segment) error {
	_, err := s.db.Exec(`
		INSERT INTO segments (id, sessionId, idx, timestamp, status, text, audioPath)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, seg.ID, seg.SessionID, seg.Index, unixFromTime(seg.Timestamp),
		string(seg.Status), seg.Text, seg.AudioPath)
	return storageErr("insert segment", err)
}

// SaveSegment writes the status and text of an existing segment.
func (s *Store) SaveSegment(seg *Segment) error {
	res, err := s.db.Exec(`
		UPDATE segments SET status = ?, text = ?, audioPath = ?
		WHERE id = ?
	`, string(seg.Status), seg.Text, seg.AudioPath, seg.ID)
	if err != nil {
		return storageErr("save segment", err)
	}
	return storageErr("save segment", expectOneRow(res, seg.ID))
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, storageErr("count sessions", err)
	}
	return n, nil
}

// SegmentCounts returns the number of segments per session id. Sessions
// without segments are absent from the map.
func (s *Store) SegmentCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT sessionId, COUNT(*) FROM segments GROUP BY sessionId`)
	if err != nil {
		return nil, storageErr("count segments", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, storageErr("count segments", err)
		}
		counts[id] = n
	}
	return counts, storageErr("count segments", rows.Err())
}

// Sessions returns up to limit sessions, newest first, without segments.
// limit <= 0 returns all sessions.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, createdAt, endedAt, filePath, status
		FROM sessions
		ORDER BY createdAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storageErr("query sessions", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr("query sessions", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, storageErr("query sessions", rows.Err())
}

// Session returns the session with its segments, or nil if it does not exist.
func (s *Store) Session(id string) (*Session, error) {
	sess, err := s.querySession(`
		SELECT id, createdAt, endedAt, filePath, status
		FROM sessions
		WHERE id = ?
	`, id)
	if err != nil || sess == nil {
		return nil, err
	}
	sess.Segments, err = s.SegmentsForSession(sess.ID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ActiveSession returns the most recent active session, if any.
func (s *Store) ActiveSession() (*Session, error) {
	return s.querySession(`
		SELECT id, createdAt, endedAt, filePath, status
		FROM sessions
		WHERE status = 'active'
		ORDER BY createdAt DESC
		LIMIT 1
	`)
}

// LatestSession returns the most recent session regardless of status.
func (s *Store) LatestSession() (*Session, error) {
	return s.querySession(`
		SELECT id, createdAt, endedAt, filePath, status
		FROM sessions
		ORDER BY createdAt DESC
		LIMIT 1
	`)
}

// SegmentsForSession returns all segments of a session in capture order.
func (s *Store) SegmentsForSession(sessionID string) ([]Segment, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, idx, timestamp, status, text, audioPath
		FROM segments
		WHERE sessionId = ?
		ORDER BY timestamp ASC, idx ASC
	`, sessionID)
	if err != nil {
		return nil, storageErr("query segments", err)
	}
	defer rows.Close()

	var segs []Segment
	for rows.Next() {
		var seg Segment
		var ts float64
		var status string
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Index, &ts,
			&status, &seg.Text, &seg.AudioPath); err != nil {
			return nil, storageErr("query segments", fmt.Errorf("scan segment: %w", err))
		}
		seg.Timestamp = timeFromUnix(ts)
		seg.Status = SegmentStatus(status)
		segs = append(segs, seg)
	}
	return segs, storageErr("query segments", rows.Err())
}

// DeleteSession removes a session and every segment it owns in one
// transaction. Deleting a missing session is not an error.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("delete session", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM segments WHERE sessionId = ?`, id); err != nil {
		return storageErr("delete session", fmt.Errorf("delete segments: %w", err))
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return storageErr("delete session", err)
	}
	return storageErr("delete session", tx.Commit())
}

// RecoverInterrupted closes sessions left active by a crashed daemon and
// fails their unresolved segments. It returns the number of sessions closed.
func (s *Store) RecoverInterrupted(at time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storageErr("recover sessions", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE segments SET status = 'failed'
		WHERE status IN ('pending', 'transcribing')
		AND sessionId IN (SELECT id FROM sessions WHERE status = 'active')
	`); err != nil {
		return 0, storageErr("recover sessions", fmt.Errorf("fail segments: %w", err))
	}
	res, err := tx.Exec(`
		UPDATE sessions SET status = 'completed', endedAt = COALESCE(endedAt, ?)
		WHERE status = 'active'
	`, unixFromTime(at))
	if err != nil {
		return 0, storageErr("recover sessions", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, storageErr("recover sessions", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) querySession(query string, args ...any) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("query session", err)
	}
	return sess, nil
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var createdAt float64
	var endedAt sql.NullFloat64
	var status string

	if err := row.Scan(&sess.ID, &createdAt, &endedAt, &sess.FilePath, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.CreatedAt = timeFromUnix(createdAt)
	sess.Status = SessionStatus(status)
	if endedAt.Valid {
		t := timeFromUnix(endedAt.Float64)
		sess.EndedAt = &t
	}
	return &sess, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: unixFromTime(*t), Valid: true}
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
