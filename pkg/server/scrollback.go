package server

import (
	"log"
	"sync"
	"time"

	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// ScrollbackWriter is a record subscriber on the event bus that archives
// channel lines to SQLite. Only channel-level records (no recipient) reach
// it, so a line is archived once however many members heard it.
type ScrollbackWriter struct {
	sqldb  *SQLStore
	names  func(gamedb.DBRef) string
	now    func() time.Time
	mu     sync.Mutex
	closed bool
}

// NewScrollbackWriter creates a scrollback writer and subscribes it to the
// records of channels, or of every channel when none are named. names
// resolves sender names at archive time and must be safe to call from the
// emitting goroutine.
func NewScrollbackWriter(sqldb *SQLStore, bus *events.Bus, names func(gamedb.DBRef) string, channels ...string) (*ScrollbackWriter, error) {
	if err := sqldb.InitScrollbackTables(); err != nil {
		return nil, err
	}
	sw := &ScrollbackWriter{
		sqldb: sqldb,
		names: names,
		now:   time.Now,
	}
	bus.SubscribeRecords(sw, channels...)
	if len(channels) > 0 {
		log.Printf("scrollback: archiving channels %v", channels)
	} else {
		log.Printf("scrollback: archiving all channels")
	}
	return sw, nil
}

// Receive implements events.Subscriber.
func (sw *ScrollbackWriter) Receive(ev events.Event) {
	if ev.Type != events.EvChannel && ev.Type != events.EvPresence {
		return
	}
	if ev.Player != gamedb.Nothing || ev.Channel == "" {
		return
	}

	senderName := ""
	if ev.Source >= 0 {
		senderName = sw.names(ev.Source)
	}
	err := sw.sqldb.InsertScrollback(ScrollbackEntry{
		Channel:    ev.Channel,
		Sender:     ev.Source,
		SenderName: senderName,
		Presence:   ev.Type == events.EvPresence,
		Message:    ev.Text,
		CreatedAt:  sw.now(),
	})
	if err != nil {
		log.Printf("scrollback: insert error: %v", err)
	}
}

// Closed implements events.Subscriber.
func (sw *ScrollbackWriter) Closed() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.closed
}

// Close marks the writer as closed so the bus stops delivering events.
func (sw *ScrollbackWriter) Close() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.closed = true
}

// StartRetentionCleanup starts an hourly goroutine that purges old
// scrollback until stop is closed.
func StartRetentionCleanup(sqldb *SQLStore, retention time.Duration, stop <-chan struct{}) {
	if sqldb == nil || retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			purged, err := sqldb.PurgeOldScrollback(retention)
			if err != nil {
				log.Printf("scrollback: cleanup error: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("scrollback: purged %d old channel entries", purged)
			}
		}
	}()
}
