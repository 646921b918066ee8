package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// SQLStore manages the SQLite database holding the channel archive.
type SQLStore struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// OpenSQLStore opens a SQLite database, sets WAL mode and busy timeout.
func OpenSQLStore(path string, timeoutSec int) (*SQLStore, error) {
	if timeoutSec <= 0 {
		timeoutSec = 5
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s: %w", path, err)
	}
	// WAL for concurrent reads while the writer appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldb: setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldb: setting busy timeout: %w", err)
	}
	return &SQLStore{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the SQLite database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (s *SQLStore) Path() string { return s.path }

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (s *SQLStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// InitScrollbackTables creates the archive table and its index.
func (s *SQLStore) InitScrollbackTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS channel_scrollback (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	channel     TEXT NOT NULL COLLATE NOCASE,
	sender      INTEGER NOT NULL,
	sender_name TEXT NOT NULL,
	presence    INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scrollback_channel ON channel_scrollback(channel, id);`)
	if err != nil {
		return fmt.Errorf("sqldb: init scrollback: %w", err)
	}
	return nil
}

// ScrollbackEntry is one archived channel line.
type ScrollbackEntry struct {
	ID         int64
	Channel    string
	Sender     gamedb.DBRef
	SenderName string
	Presence   bool
	Message    string
	CreatedAt  time.Time
}

// InsertScrollback archives one channel line.
func (s *SQLStore) InsertScrollback(e ScrollbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	presence := 0
	if e.Presence {
		presence = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_scrollback (channel, sender, sender_name, presence, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Channel, int(e.Sender), e.SenderName, presence, e.Message, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqldb: insert scrollback: %w", err)
	}
	return nil
}

// ChannelHistory returns up to limit of the newest lines archived for
// channel, oldest first.
func (s *SQLStore) ChannelHistory(channel string, limit int) ([]ScrollbackEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, sender, sender_name, presence, message, created_at
		   FROM channel_scrollback WHERE channel = ? ORDER BY id DESC LIMIT ?`,
		channel, limit)
	if err != nil {
		return nil, fmt.Errorf("sqldb: query history: %w", err)
	}
	defer rows.Close()

	var out []ScrollbackEntry
	for rows.Next() {
		var e ScrollbackEntry
		var sender, presence int
		var created int64
		if err := rows.Scan(&e.ID, &e.Channel, &sender, &e.SenderName, &presence, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("sqldb: scan history: %w", err)
		}
		e.Sender = gamedb.DBRef(sender)
		e.Presence = presence != 0
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: read history: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RenameScrollback moves a channel's archive to its new name.
func (s *SQLStore) RenameScrollback(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE channel_scrollback SET channel = ? WHERE channel = ?`, to, from); err != nil {
		return fmt.Errorf("sqldb: rename scrollback: %w", err)
	}
	return nil
}

// PurgeOldScrollback deletes archived lines older than retention.
func (s *SQLStore) PurgeOldScrollback(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.Exec(`DELETE FROM channel_scrollback WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqldb: purge scrollback: %w", err)
	}
	return res.RowsAffected()
}
