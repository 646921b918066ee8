package server

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/flatfile"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// ImportResult counts what ImportComsys brought over.
type ImportResult struct {
	Channels int
	Skipped  int
	Aliases  int
	Members  int
}

// comsysPrivs maps TinyMUSH channel flags onto channel privileges.
// Channels without the loud flag stay silent on connects.
func comsysPrivs(flags int) chat.Privs {
	privs := chat.PrivPlayer
	if flags&flatfile.ComsysObject != 0 {
		privs |= chat.PrivObject
	}
	if flags&flatfile.ComsysNoTitles != 0 {
		privs |= chat.PrivNoTitles
	}
	if flags&flatfile.ComsysLoud == 0 {
		privs |= chat.PrivQuiet
	}
	return privs
}

// ImportComsys reads a TinyMUSH mod_comsys.db and adds its channels and
// aliases. Existing channels with the same name are left alone. Private
// channels get a join lock admitting only their owner.
func (s *Server) ImportComsys(r io.Reader) (ImportResult, error) {
	var res ImportResult
	channels, aliases, err := flatfile.ParseComsys(r)
	if err != nil {
		return res, fmt.Errorf("server: import comsys: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	gate := NewGate(s.DB)

	for _, cc := range channels {
		if _, exists := s.Chat.Lookup(cc.Name); exists {
			log.Printf("import: channel %s already exists, skipping", cc.Name)
			res.Skipped++
			continue
		}
		c, err := s.Chat.Create(cc.Name, comsysPrivs(cc.Flags), God)
		if err != nil {
			if errors.Is(err, chat.ErrTooManyChannels) {
				return res, fmt.Errorf("server: import comsys: %w", err)
			}
			log.Printf("import: channel %s: %v", cc.Name, err)
			res.Skipped++
			continue
		}
		if s.World.Type(cc.Owner) == gamedb.TypePlayer && cc.Owner != God {
			s.Chat.Chown(c, cc.Owner)
		}
		desc := cc.Description
		if len(desc) > chat.MaxDescLen {
			desc = desc[:chat.MaxDescLen]
		}
		s.Chat.SetDescription(c, desc)

		join := cc.JoinLock
		if join == "" && cc.Flags&flatfile.ComsysPublic == 0 {
			join = fmt.Sprintf("=%s", cc.Owner)
		}
		s.importLock(gate, c, chat.LockJoin, join)
		s.importLock(gate, c, chat.LockSpeak, cc.TransLock)
		if cc.RecvLock != "" {
			log.Printf("import: channel %s: receive lock dropped", cc.Name)
		}
		res.Channels++
	}

	for _, ca := range aliases {
		obj, ok := s.DB.Get(ca.Player)
		if !ok || !validAlias(ca.Alias) {
			continue
		}
		c, ok := s.Chat.Lookup(ca.Channel)
		if !ok {
			continue
		}
		obj.SetAttr(aliasAttr(ca.Alias), c.Name())
		res.Aliases++
		if !ca.Listening || s.Chat.OnChannel(c, ca.Player) {
			continue
		}
		if err := s.Chat.Join(c, ca.Player); err != nil {
			continue
		}
		res.Members++
		if ca.Title != "" && s.Chat.ValidTitle(ca.Title) == "" {
			s.Chat.SetTitle(c, ca.Player, ca.Title)
		}
	}

	log.Printf("import: %d channels (%d skipped), %d aliases, %d memberships",
		res.Channels, res.Skipped, res.Aliases, res.Members)
	return res, nil
}

func (s *Server) importLock(gate *Gate, c *chat.Channel, kind chat.LockKind, text string) {
	if text == "" {
		return
	}
	lock, err := gate.Parse(God, text)
	if err != nil {
		log.Printf("import: channel %s: %s lock %q: %v", c.Name(), kind, text, err)
		return
	}
	s.Chat.SetLock(c, kind, lock)
}
