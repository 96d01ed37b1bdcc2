package db

import (
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real audiomind database and reads sessions/segments.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	n, err := store.CountSessions()
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	fmt.Printf("Sessions: %d\n", n)

	sess, err := store.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if sess == nil {
		fmt.Println("No sessions in database")
		return
	}

	fmt.Printf("Latest session: id=%s status=%s created=%s\n",
		sess.ID, sess.Status, sess.CreatedAt.Format("2006-01-02 15:04:05"))

	segs, err := store.SegmentsForSession(sess.ID)
	if err != nil {
		t.Fatalf("SegmentsForSession: %v", err)
	}
	fmt.Printf("Segments for session: %d\n", len(segs))
	for _, seg := range segs {
		fmt.Printf("  %d. [%s] %s\n", seg.Index, seg.Status, seg.Text)
	}
	fmt.Printf("Transcript: %s\n", Transcript(segs))
}
