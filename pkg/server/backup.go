package server

import (
	"bytes"
	"log"
	"os"
	"time"

	"github.com/crystal-mush/mushchat/pkg/archive"
	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Backup writes an archive of the snapshot, the bolt store, the scrollback
// database and the configuration files into the archive directory.
func (s *Server) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backup()
}

func (s *Server) backup() (string, error) {
	now := s.now()
	var buf bytes.Buffer
	if err := s.Chat.Save(&buf, now.Truncate(time.Second)); err != nil {
		return "", err
	}
	p := archive.Params{
		Snapshot:   buf.Bytes(),
		ConfPaths:  s.Conf.Files(),
		ArchiveDir: s.Conf.ArchiveDir,
		Channels:   s.Chat.Len(),
		Objects:    len(s.DB.Objects),
		Now:        now,
	}
	if s.Store != nil {
		// The world objects go in through bolt, so flush them first.
		if err := s.persistAll(); err != nil {
			return "", err
		}
		p.BoltSnapshotFunc = s.Store.Backup
	}
	if s.SQLDB != nil {
		p.SQLPath = s.SQLDB.Path()
		p.SQLCheckpointFunc = s.SQLDB.Checkpoint
	}
	path, err := archive.Create(p)
	if err != nil {
		return "", err
	}
	log.Printf("server: backup written to %s", path)
	pruneArchives(s.Conf.ArchiveDir, s.Conf.ArchiveRetain)
	return path, nil
}

func (s *Server) persistAll() error {
	objs := make([]*gamedb.Object, 0, len(s.DB.Objects))
	for _, obj := range s.DB.Objects {
		objs = append(objs, obj)
	}
	return s.Store.PutObjects(objs...)
}

// pruneArchives removes all but the newest keep archives in dir.
func pruneArchives(dir string, keep int) {
	if keep <= 0 {
		return
	}
	archives, err := archive.List(dir)
	if err != nil {
		log.Printf("server: prune archives: %v", err)
		return
	}
	if len(archives) <= keep {
		return
	}
	for _, ai := range archives[keep:] {
		if err := os.Remove(ai.Path); err != nil {
			log.Printf("server: prune archive %s: %v", ai.Filename, err)
		} else {
			log.Printf("server: pruned old archive %s", ai.Filename)
		}
	}
}

// StartAutoBackup writes a backup on a ticker until the server stops.
func (s *Server) StartAutoBackup(interval time.Duration) {
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
			if _, err := s.Backup(); err != nil {
				log.Printf("server: auto-backup failed: %v", err)
			}
		}
	}()
}

// cmdBackup implements @backup and @backup/list.
func cmdBackup(s *Server, player gamedb.DBRef, _ string, switches []string) {
	if !s.World.Has(player, chat.PowWizard) {
		s.tell(player, "Permission denied.")
		return
	}
	dir := s.Conf.ArchiveDir
	if HasSwitch(switches, "list") {
		archives, err := archive.List(dir)
		if err != nil {
			s.tell(player, "Error listing backups: %v", err)
			return
		}
		if len(archives) == 0 {
			s.tell(player, "No backups found in %s.", dir)
			return
		}
		s.tell(player, "Backups in %s:", dir)
		for _, ai := range archives {
			s.tell(player, "  %s  %.1f KB  %d channels  %s",
				ai.Filename, float64(ai.Size)/1024, ai.Channels, ai.Timestamp)
		}
		s.tell(player, "%d backup(s).", len(archives))
		return
	}

	path, err := s.backup()
	if err != nil {
		log.Printf("server: backup failed: %v", err)
		s.tell(player, "Backup failed: %v", err)
		return
	}
	s.tell(player, "Backup written to %s.", path)
}
