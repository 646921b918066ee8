package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crystal-mush/mushchat/pkg/boltstore"
	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Server owns the world, the channel directory and everything persisted
// around them. Every call into the directory happens under mu.
type Server struct {
	mu sync.Mutex

	Conf     *ChatConf
	DB       *gamedb.Database
	World    *World
	Chat     *chat.Directory
	Bus      *events.Bus
	Store    *boltstore.Store
	SQLDB    *SQLStore
	Metrics  *Metrics
	Commands map[string]*Command

	scrollback *ScrollbackWriter
	startTime  time.Time
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewServer builds a server over db. store and sqldb may be nil.
func NewServer(db *gamedb.Database, conf *ChatConf, store *boltstore.Store, sqldb *SQLStore) (*Server, error) {
	if conf == nil {
		conf = DefaultChatConf()
	}
	s := &Server{
		Conf:      conf,
		DB:        db,
		World:     NewWorld(db),
		Bus:       events.NewBus(),
		Store:     store,
		SQLDB:     sqldb,
		Commands:  InitCommands(),
		startTime: time.Now(),
		now:       time.Now,
		stop:      make(chan struct{}),
	}

	gate := NewGate(db)
	dir, err := chat.New(chat.Config{
		World:      s.World,
		Gate:       gate,
		Notifier:   busNotifier{s.Bus},
		Rewriter:   NewRewriter(db),
		Observer:   busObserver{s.Bus},
		Interactor: gate,
		Options:    conf.Options(),
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s.Chat = dir

	s.Metrics = NewMetrics(s.lockedStats, s.startTime)
	s.Bus.SubscribeGlobal(s.Metrics)

	if sqldb != nil {
		sw, err := NewScrollbackWriter(sqldb, s.Bus, s.World.Name, conf.ScrollbackChannels...)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.scrollback = sw
	}
	return s, nil
}

// Do runs fn with the server lock held.
func (s *Server) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Subscribe attaches sub to player's deliveries.
func (s *Server) Subscribe(player gamedb.DBRef, sub events.Subscriber) {
	s.Bus.Subscribe(player, sub)
}

// Execute runs one command line as player.
func (s *Server) Execute(player gamedb.DBRef, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.World.Valid(player) {
		return
	}
	s.Metrics.CommandProcessed()
	DispatchCommand(s, player, line)
}

// Connect opens a session for player and announces it on its channels.
// Any channel gag the player left behind is lifted.
func (s *Server) Connect(player gamedb.DBRef, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.World.Type(player) != gamedb.TypePlayer {
		return fmt.Errorf("server: connect %s: not a player", player)
	}
	hidden = hidden && s.World.Has(player, chat.PowCanHide)
	num := s.World.Connect(player, hidden)

	var msg string
	switch {
	case hidden && num > 1:
		msg = "has HIDDEN-reconnected."
	case hidden:
		msg = "has HIDDEN-connected."
	case num > 1:
		msg = "has reconnected."
	default:
		msg = "has connected."
	}
	log.Printf("server: %s(%s) %s", s.World.Name(player), player, msg)
	s.Chat.Announce(player, msg, true, hidden)
	return nil
}

// Disconnect closes one session of player. The announcement goes out while
// the session still counts, and gags are lifted when the last one closes.
func (s *Server) Disconnect(player gamedb.DBRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	num := s.World.sessions[player]
	if num == 0 {
		return
	}
	hidden := s.World.Hidden(player)

	var msg string
	switch {
	case hidden && num > 1:
		msg = "has partially HIDDEN-disconnected."
	case hidden:
		msg = "has HIDDEN-disconnected."
	case num > 1:
		msg = "has partially disconnected."
	default:
		msg = "has disconnected."
	}
	log.Printf("server: %s(%s) %s", s.World.Name(player), player, msg)
	s.Chat.Announce(player, msg, num == 1, hidden)
	s.World.Disconnect(player)
}

// ApplyConf installs a new configuration.
func (s *Server) ApplyConf(cc *ChatConf) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conf = cc
	s.Chat.SetOptions(cc.Options())
	log.Printf("conf: applied: max_channels=%d channel_cost=%d title_len=%d",
		cc.MaxChannels, cc.ChannelCost, cc.ChannelTitleLen)
}

// ReloadConf reads path again and applies it. Storage paths are not
// reopened.
func (s *Server) ReloadConf(path string) error {
	cc, err := LoadChatConf(path)
	if err != nil {
		return err
	}
	s.ApplyConf(cc)
	return nil
}

// lockedStats gathers metric counts under the lock.
func (s *Server) lockedStats() ChatStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

func (s *Server) stats() ChatStats {
	st := ChatStats{
		Channels: s.Chat.Len(),
		Sessions: len(s.World.Sessions()),
		Objects:  len(s.DB.Objects),
	}
	for c := range s.Chat.All() {
		st.Memberships += c.NumUsers()
	}
	return st
}

// --- Persistence ---

// LoadSnapshot restores the directory from the snapshot file, falling back
// to the copy kept in bolt. A missing snapshot is not an error.
func (s *Server) LoadSnapshot(restart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := chat.LoadOptions{Restart: restart, WorldStamp: s.DB.SavedAt}

	if s.Conf.ChatDB != "" {
		data, err := os.ReadFile(s.Conf.ChatDB)
		switch {
		case err == nil:
			if err := s.Chat.Load(bytes.NewReader(data), opts); err != nil {
				return err
			}
			log.Printf("server: loaded %d channels from %s", s.Chat.Len(), s.Conf.ChatDB)
			return nil
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("server: read snapshot: %w", err)
		}
	}

	if s.Store != nil {
		data, _, ok, err := s.Store.Snapshot()
		if err != nil {
			return err
		}
		if ok {
			if err := s.Chat.Load(bytes.NewReader(data), opts); err != nil {
				return err
			}
			log.Printf("server: loaded %d channels from bolt", s.Chat.Len())
			return nil
		}
	}
	log.Printf("server: no channel snapshot found, starting empty")
	return nil
}

// Save writes the channel snapshot to its file and to bolt, and persists
// the world objects.
func (s *Server) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.save()
	s.Metrics.SaveDone(err)
	return err
}

func (s *Server) save() error {
	stamp := s.now().Truncate(time.Second)
	s.DB.SavedAt = stamp

	var buf bytes.Buffer
	if err := s.Chat.Save(&buf, stamp); err != nil {
		return err
	}
	if s.Conf.ChatDB != "" {
		if err := writeFileAtomic(s.Conf.ChatDB, buf.Bytes()); err != nil {
			return fmt.Errorf("server: write snapshot: %w", err)
		}
	}
	if s.Store != nil {
		if err := s.persistAll(); err != nil {
			return err
		}
		if err := s.Store.PutSavedAt(stamp); err != nil {
			return err
		}
		if err := s.Store.PutSnapshot(buf.Bytes(), stamp); err != nil {
			return err
		}
	}
	if s.SQLDB != nil {
		if err := s.SQLDB.Checkpoint(); err != nil {
			log.Printf("server: sqldb checkpoint: %v", err)
		}
	}
	log.Printf("server: saved %d channels", s.Chat.Len())
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// StartAutoSave saves on a ticker until the server stops.
func (s *Server) StartAutoSave(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
			if err := s.Save(); err != nil {
				log.Printf("server: auto-save failed: %v", err)
			}
		}
	}()
}

// StartBackground launches auto-save, auto-backup and scrollback retention
// per the configuration.
func (s *Server) StartBackground() {
	s.mu.Lock()
	cc := s.Conf
	s.mu.Unlock()
	s.StartAutoSave(time.Duration(cc.SaveInterval) * time.Second)
	s.StartAutoBackup(time.Duration(cc.ArchiveInterval) * time.Second)
	if s.scrollback != nil {
		StartRetentionCleanup(s.SQLDB, time.Duration(cc.ScrollbackRetention)*time.Second, s.stop)
	}
}

// Close stops background work, saves once more and closes storage.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	err := s.Save()
	if s.scrollback != nil {
		s.scrollback.Close()
	}
	s.Metrics.Close()
	if s.SQLDB != nil {
		if cerr := s.SQLDB.Close(); err == nil {
			err = cerr
		}
	}
	if s.Store != nil {
		if cerr := s.Store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
