package server

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// CommandHandler is the signature for command implementations. It runs
// with the server lock held.
type CommandHandler func(s *Server, player gamedb.DBRef, args string, switches []string)

// Command represents a registered command.
type Command struct {
	Name    string
	Handler CommandHandler
	NoGuest bool // if true, guests cannot use this command
}

// InitCommands registers all available commands.
func InitCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(name string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Handler: handler}
	}
	registerNG := func(name string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Handler: handler, NoGuest: true}
	}

	// Channels
	register("@channel", cmdChannel)
	register("@chat", cmdChat)
	register("@cemit", cmdCemit)
	register("@nscemit", cmdNscemit)
	registerNG("@clock", cmdClock)

	// Aliases
	register("addcom", cmdAddcom)
	register("delcom", cmdDelcom)
	register("clearcom", cmdClearcom)
	register("comlist", cmdComlist)
	register("comtitle", cmdComtitle)
	register("allcom", cmdAllcom)
	register("clist", cmdClist)

	// World
	register("think", cmdThink)
	register("@hide", cmdHide)
	register("examine", cmdExamine)
	registerNG("@create", cmdCreate)
	registerNG("@set", cmdSet)
	registerNG("@pcreate", cmdPcreate)
	registerNG("@power", cmdPower)
	registerNG("@backup", cmdBackup)

	return cmds
}

// DispatchCommand parses and dispatches a player command.
func DispatchCommand(s *Server, player gamedb.DBRef, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	switch input[0] {
	case '+':
		if len(input) > 1 {
			name, msg := splitKeyVal(input[1:])
			if s.Chat.DoChatByName(player, name, msg, false) {
				return
			}
		}
	case '&':
		if s.World.Has(player, chat.PowGuest) {
			s.tell(player, "Permission denied.")
			return
		}
		cmdSetAttr(s, player, input[1:], nil)
		return
	}

	cmdName, args := splitKeyVal(input)

	// Parse /switches from the command name (e.g. "@channel/list/on").
	var switches []string
	if slashIdx := strings.IndexByte(cmdName, '/'); slashIdx >= 0 {
		parts := strings.Split(cmdName, "/")
		cmdName = parts[0]
		switches = parts[1:]
	}

	lower := strings.ToLower(cmdName)
	if cmd, ok := s.Commands[lower]; ok {
		s.run(cmd, player, args, switches)
		return
	}

	// Unique prefixes of @-commands are accepted (@chan = @channel).
	if len(lower) > 1 && lower[0] == '@' {
		var matched *Command
		matchCount := 0
		for name, cmd := range s.Commands {
			if strings.HasPrefix(name, lower) {
				matched = cmd
				matchCount++
			}
		}
		if matchCount == 1 {
			s.run(matched, player, args, switches)
			return
		}
	}

	if useAlias(s, player, cmdName, args) {
		return
	}

	s.tell(player, "Huh?  (Type \"help\" for help.)")
}

func (s *Server) run(cmd *Command, player gamedb.DBRef, args string, switches []string) {
	if cmd.NoGuest && s.World.Has(player, chat.PowGuest) {
		s.tell(player, "Permission denied.")
		return
	}
	cmd.Handler(s, player, args, switches)
}

// HasSwitch checks if a switch list contains a specific switch (case-insensitive).
func HasSwitch(switches []string, name string) bool {
	for _, sw := range switches {
		if strings.EqualFold(sw, name) {
			return true
		}
	}
	return false
}

// splitEq splits "left=right" around the first '='.
func splitEq(args string) (left, right string, hasEq bool) {
	left, right, hasEq = strings.Cut(args, "=")
	return strings.TrimSpace(left), strings.TrimSpace(right), hasEq
}

// tell sends a plain line to player.
func (s *Server) tell(player gamedb.DBRef, format string, args ...any) {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	s.Bus.Emit(events.Event{Type: events.EvText, Player: player, Source: gamedb.Nothing, Text: text})
}

// --- @channel ---

// channelModifiers are switches that qualify another switch.
var channelModifiers = map[string]bool{"quiet": true, "brief": true, "last": true}

func primarySwitch(switches []string) string {
	for _, sw := range switches {
		sw = strings.ToLower(sw)
		if !channelModifiers[sw] {
			return sw
		}
	}
	return ""
}

var userFlagSwitches = map[string]chat.MemberFlags{
	"mute":    chat.MemberQuiet,
	"hide":    chat.MemberHide,
	"gag":     chat.MemberGag,
	"combine": chat.MemberCombine,
}

func cmdChannel(s *Server, player gamedb.DBRef, args string, switches []string) {
	name, rest, hasEq := splitEq(args)
	quiet := HasSwitch(switches, "quiet")
	d := s.Chat

	sw := primarySwitch(switches)
	if flag, ok := userFlagSwitches[sw]; ok {
		if !hasEq {
			d.DoUserFlag(player, "", args, flag)
			return
		}
		d.DoUserFlag(player, name, rest, flag)
		return
	}

	switch sw {
	case "":
		if args == "" {
			d.DoList(player, "", chat.ScopeAll, quiet)
			return
		}
		d.DoChannel(player, name, "", rest)
	case "list":
		scope := chat.ScopeAll
		switch {
		case HasSwitch(switches, "on"):
			scope = chat.ScopeOn
		case HasSwitch(switches, "off"):
			scope = chat.ScopeOff
		}
		d.DoList(player, args, scope, quiet)
	case "what":
		d.DoWhat(player, args)
	case "on", "join":
		d.DoChannel(player, name, rest, "on")
	case "off", "leave":
		d.DoChannel(player, name, rest, "off")
	case "who":
		d.DoWho(player, args)
	case "add":
		d.DoAdd(player, name, rest)
	case "delete":
		d.DoDelete(player, name)
	case "rename":
		renameChannel(s, player, name, rest)
	case "priv":
		d.DoPriv(player, name, rest)
	case "desc", "describe":
		d.DoDesc(player, name, rest)
	case "title":
		d.DoTitle(player, name, rest, hasEq)
	case "wipe":
		d.DoWipe(player, name)
	case "mogrifier":
		d.DoMogrifier(player, name, rest)
	case "chown":
		d.DoChown(player, name, rest)
	case "chownall":
		d.DoChownAll(player, name, rest)
	case "buffer":
		d.DoBuffer(player, name, rest)
	case "recall":
		lines, start, _ := strings.Cut(rest, ",")
		d.DoRecall(player, name, strings.TrimSpace(lines), strings.TrimSpace(start), quiet)
	case "decompile":
		d.DoDecompile(player, args, HasSwitch(switches, "brief"))
	case "history":
		cmdHistory(s, player, name, rest)
	default:
		s.tell(player, "@CHANNEL doesn't know switch /%s.", sw)
	}
}

// renameChannel renames and carries aliases and the archive along.
func renameChannel(s *Server, player gamedb.DBRef, name, newName string) {
	old, _ := s.Chat.Find(name, player)
	var oldName string
	if old != nil {
		oldName = old.Name()
	}
	s.Chat.DoRename(player, name, newName)
	if old == nil || old.Name() == oldName {
		return
	}
	retargetAliases(s.DB, oldName, old.Name())
	s.Bus.RenameChannel(chat.StripMarkup(oldName), chat.StripMarkup(old.Name()))
	if s.SQLDB != nil {
		if err := s.SQLDB.RenameScrollback(chat.StripMarkup(oldName), chat.StripMarkup(old.Name())); err != nil {
			s.tell(player, "CHAT: Channel history could not be moved.")
		}
	}
}

func cmdChat(s *Server, player gamedb.DBRef, args string, _ []string) {
	name, msg, _ := splitEq(args)
	s.Chat.DoChatByName(player, name, msg, true)
}

func cemitSilent(s *Server, switches []string) bool {
	switch {
	case HasSwitch(switches, "silent"):
		return true
	case HasSwitch(switches, "noisy"):
		return false
	}
	return !s.Chat.Options().NoisyCemit
}

func cmdCemit(s *Server, player gamedb.DBRef, args string, switches []string) {
	name, msg, _ := splitEq(args)
	s.Chat.DoCemit(player, name, msg, cemitSilent(s, switches), true)
}

func cmdNscemit(s *Server, player gamedb.DBRef, args string, switches []string) {
	if !s.World.Has(player, chat.PowNspemit) {
		s.tell(player, "Permission denied.")
		return
	}
	name, msg, _ := splitEq(args)
	s.Chat.DoCemit(player, name, msg, cemitSilent(s, switches), false)
}

func cmdClock(s *Server, player gamedb.DBRef, args string, switches []string) {
	if len(switches) == 0 {
		s.tell(player, "You must specify a type of lock.")
		return
	}
	kind, ok := chat.ParseLockKind(switches[0])
	if !ok {
		s.tell(player, "You must specify a type of lock.")
		return
	}
	name, key, _ := splitEq(args)
	s.Chat.DoLock(player, name, key, kind)
}

// cmdHistory shows archived lines of a channel the player can see.
func cmdHistory(s *Server, player gamedb.DBRef, name, count string) {
	if s.SQLDB == nil {
		s.tell(player, "CHAT: Channel history is not enabled.")
		return
	}
	c, res := s.Chat.Find(name, player)
	switch res {
	case chat.MatchNone:
		s.tell(player, "CHAT: I don't recognize that channel.")
		return
	case chat.MatchAmbiguous:
		s.tell(player, "CHAT: I don't know which channel you mean.")
		return
	}
	if !s.Chat.OnChannel(c, player) && !s.World.Has(player, chat.PowSeeAll) {
		s.tell(player, "CHAT: You must be on that channel to read its history.")
		return
	}
	limit := s.Conf.HistoryLimit
	if count != "" {
		n := atoi(count, -1)
		if n <= 0 {
			s.tell(player, "CHAT: How many lines did you want to see?")
			return
		}
		limit = min(n, limit)
	}
	entries, err := s.SQLDB.ChannelHistory(chat.StripMarkup(c.Name()), limit)
	if err != nil {
		s.tell(player, "CHAT: Channel history is unavailable.")
		return
	}
	if len(entries) == 0 {
		s.tell(player, "CHAT: Channel <%s> has no history.", c.Name())
		return
	}
	s.tell(player, "CHAT: History for channel <%s>:", c.Name())
	for _, e := range entries {
		s.tell(player, "[%s] %s", e.CreatedAt.UTC().Format("Jan 02 15:04"), e.Message)
	}
	s.tell(player, "CHAT: End of history.")
}
