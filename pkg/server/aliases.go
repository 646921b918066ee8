package server

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Channel aliases live on the player as CHANALIAS`<ALIAS> attributes whose
// value is the channel name. Typing "<alias> <message>" speaks on it.

const maxAliasLen = 15

// chanAlias is one alias of a player.
type chanAlias struct {
	Alias   string
	Channel string
}

func validAlias(alias string) bool {
	if alias == "" || len(alias) > maxAliasLen {
		return false
	}
	return !strings.ContainsAny(alias, " \t=/`&+")
}

func aliasAttr(alias string) string {
	return gamedb.AttrAliasPfx + strings.ToUpper(alias)
}

// playerAliases lists player's aliases in storage order.
func playerAliases(db *gamedb.Database, player gamedb.DBRef) []chanAlias {
	obj, ok := db.Get(player)
	if !ok {
		return nil
	}
	var out []chanAlias
	for _, a := range obj.AttrsWithPrefix(gamedb.AttrAliasPfx) {
		out = append(out, chanAlias{
			Alias:   strings.ToLower(a.Name[len(gamedb.AttrAliasPfx):]),
			Channel: a.Value,
		})
	}
	return out
}

func lookupAlias(db *gamedb.Database, player gamedb.DBRef, alias string) (string, bool) {
	obj, ok := db.Get(player)
	if !ok || !validAlias(alias) {
		return "", false
	}
	return obj.Attr(aliasAttr(alias))
}

// aliasesFor counts player's aliases pointing at channel.
func aliasesFor(db *gamedb.Database, player gamedb.DBRef, channel string) int {
	n := 0
	for _, ca := range playerAliases(db, player) {
		if strings.EqualFold(ca.Channel, channel) {
			n++
		}
	}
	return n
}

// retargetAliases points every alias on from at to, after a rename.
func retargetAliases(db *gamedb.Database, from, to string) int {
	n := 0
	for _, obj := range db.Objects {
		for _, a := range obj.AttrsWithPrefix(gamedb.AttrAliasPfx) {
			if strings.EqualFold(a.Value, from) {
				obj.SetAttr(a.Name, to)
				n++
			}
		}
	}
	return n
}

// aliasChannel resolves an alias target, telling the player when the
// channel is gone.
func aliasChannel(s *Server, player gamedb.DBRef, name string) (*chat.Channel, bool) {
	c, ok := s.Chat.Lookup(name)
	if !ok {
		s.tell(player, "That channel no longer exists.")
		return nil, false
	}
	return c, true
}

// useAlias handles "<alias> <message>" and "<alias> on|off|who". It
// reports whether cmd was one of the player's aliases.
func useAlias(s *Server, player gamedb.DBRef, cmd, args string) bool {
	name, ok := lookupAlias(s.DB, player, cmd)
	if !ok {
		return false
	}
	c, ok := aliasChannel(s, player, name)
	if !ok {
		return true
	}

	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on":
		s.Chat.DoJoin(player, c.Name())
		return true
	case "off":
		s.Chat.DoLeave(player, c.Name())
		return true
	case "who":
		s.Chat.DoWho(player, c.Name())
		return true
	case "":
		s.tell(player, "Channel %s: what do you want to say?", c.Name())
		return true
	}
	if !s.Chat.OnChannel(c, player) {
		s.tell(player, "You must turn on channel %s first.", c.Name())
		return true
	}
	s.Chat.DoChat(player, c, args)
	return true
}

// cmdAddcom handles "addcom alias=channel": set the alias and join.
func cmdAddcom(s *Server, player gamedb.DBRef, args string, _ []string) {
	alias, name, _ := splitEq(args)
	if alias == "" || name == "" {
		s.tell(player, "Usage: addcom <alias>=<channel>")
		return
	}
	if !validAlias(alias) {
		s.tell(player, "Invalid alias.")
		return
	}
	if existing, ok := lookupAlias(s.DB, player, alias); ok {
		s.tell(player, "You already have an alias %q for channel %s.", alias, existing)
		return
	}
	c, res := s.Chat.FindPartial(name, player)
	switch res {
	case chat.MatchNone:
		s.tell(player, "Channel %q not found.", name)
		return
	case chat.MatchAmbiguous:
		s.tell(player, "CHAT: I don't know which channel you mean.")
		return
	}
	obj, ok := s.DB.Get(player)
	if !ok {
		return
	}
	obj.SetAttr(aliasAttr(alias), c.Name())
	s.tell(player, "Channel %s added with alias %s.", c.Name(), alias)
	if !s.Chat.OnChannel(c, player) {
		s.Chat.DoJoin(player, c.Name())
	}
}

// cmdDelcom handles "delcom alias". The player leaves the channel when
// its last alias goes.
func cmdDelcom(s *Server, player gamedb.DBRef, args string, _ []string) {
	alias := strings.TrimSpace(args)
	if alias == "" {
		s.tell(player, "Usage: delcom <alias>")
		return
	}
	name, ok := lookupAlias(s.DB, player, alias)
	if !ok {
		s.tell(player, "You don't have an alias %q.", alias)
		return
	}
	obj, _ := s.DB.Get(player)
	obj.ClearAttr(aliasAttr(alias))
	s.tell(player, "Alias %s for channel %s removed.", strings.ToLower(alias), name)
	if aliasesFor(s.DB, player, name) > 0 {
		return
	}
	if c, ok := s.Chat.Lookup(name); ok && s.Chat.OnChannel(c, player) {
		s.Chat.DoLeave(player, c.Name())
	}
}

// cmdClearcom handles "clearcom": remove every alias and leave their
// channels.
func cmdClearcom(s *Server, player gamedb.DBRef, _ string, _ []string) {
	aliases := playerAliases(s.DB, player)
	if len(aliases) == 0 {
		s.tell(player, "You have no channel aliases.")
		return
	}
	obj, _ := s.DB.Get(player)
	left := make(map[*chat.Channel]bool)
	for _, ca := range aliases {
		obj.ClearAttr(aliasAttr(ca.Alias))
		c, ok := s.Chat.Lookup(ca.Channel)
		if !ok || left[c] {
			continue
		}
		left[c] = true
		if s.Chat.OnChannel(c, player) {
			s.Chat.DoLeave(player, c.Name())
		}
	}
	s.tell(player, "All %d channel alias(es) removed.", len(aliases))
}

// cmdComlist handles "comlist".
func cmdComlist(s *Server, player gamedb.DBRef, _ string, _ []string) {
	aliases := playerAliases(s.DB, player)
	if len(aliases) == 0 {
		s.tell(player, "You have no channel aliases. Use addcom <alias>=<channel> to subscribe.")
		return
	}
	s.tell(player, "%-12s %-20s %-6s %s", "Alias", "Channel", "Status", "Title")
	s.tell(player, "%s", strings.Repeat("-", 60))
	for _, ca := range aliases {
		status, title := "Gone", ""
		if c, ok := s.Chat.Lookup(ca.Channel); ok {
			status = "Off"
			if m := c.Member(player); m != nil {
				status, title = "On", m.Title
			}
		}
		s.tell(player, "%-12s %-20s %-6s %s", ca.Alias, ca.Channel, status, title)
	}
}

// cmdComtitle handles "comtitle alias=title".
func cmdComtitle(s *Server, player gamedb.DBRef, args string, _ []string) {
	alias, title, hasEq := splitEq(args)
	if !hasEq || alias == "" {
		s.tell(player, "Usage: comtitle <alias>=<title>")
		return
	}
	name, ok := lookupAlias(s.DB, player, alias)
	if !ok {
		s.tell(player, "You don't have an alias %q.", alias)
		return
	}
	if c, ok := aliasChannel(s, player, name); ok {
		s.Chat.DoTitle(player, c.Name(), title, true)
	}
}

// cmdAllcom handles "allcom on|off|who" across every aliased channel.
func cmdAllcom(s *Server, player gamedb.DBRef, args string, _ []string) {
	aliases := playerAliases(s.DB, player)
	if len(aliases) == 0 {
		s.tell(player, "You have no channel aliases.")
		return
	}

	var act func(name string)
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on":
		act = func(name string) { s.Chat.DoJoin(player, name) }
	case "off":
		act = func(name string) { s.Chat.DoLeave(player, name) }
	case "who":
		act = func(name string) { s.Chat.DoWho(player, name) }
	default:
		s.tell(player, "Usage: allcom on|off|who")
		return
	}

	done := make(map[*chat.Channel]bool)
	for _, ca := range aliases {
		c, ok := s.Chat.Lookup(ca.Channel)
		if !ok || done[c] {
			continue
		}
		done[c] = true
		act(c.Name())
	}
}

// cmdClist handles "clist [prefix]".
func cmdClist(s *Server, player gamedb.DBRef, args string, _ []string) {
	s.Chat.DoList(player, strings.TrimSpace(args), chat.ScopeAll, false)
}

// aliasSummary renders a player's aliases for think and decompile output.
func aliasSummary(db *gamedb.Database, player gamedb.DBRef) string {
	var parts []string
	for _, ca := range playerAliases(db, player) {
		parts = append(parts, fmt.Sprintf("%s:%s", ca.Alias, ca.Channel))
	}
	return strings.Join(parts, " ")
}
