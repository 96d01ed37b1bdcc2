package recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/mddudha/audiomind-app/internal/db"
)

// EventType identifies what changed.
type EventType string

const (
	EventState   EventType = "state"
	EventElapsed EventType = "elapsed"
	EventLevel   EventType = "level"
	EventSegment EventType = "segment"
	EventError   EventType = "error"
)

// Event is a notification published to subscribers. Only the fields
// relevant to Type are set.
type Event struct {
	Type         EventType
	Time         time.Time
	State        State
	SessionID    string
	Elapsed      time.Duration
	Level        float32
	Levels       []float32
	Segment      *db.Segment
	SessionCount int
	Err          string
}

// Broadcaster fans events out to in-process subscribers. Delivery never
// blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	log *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log, subscribers: make(map[string]chan Event)}
}

// Subscribe registers a subscriber and returns its id and channel.
// The caller must Unsubscribe with the id to release it.
func (b *Broadcaster) Subscribe(bufSize int) (string, <-chan Event) {
	if bufSize <= 0 {
		bufSize = 64
	}
	id := xid.New().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Emit delivers ev to every subscriber that has room for it.
func (b *Broadcaster) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.log.Debug("event dropped: subscriber buffer full",
				slog.String("subscriber", id), slog.String("event_type", string(ev.Type)))
		}
	}
	b.mu.RUnlock()
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// FormatElapsed renders d as MM:SS. Minutes keep counting past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
