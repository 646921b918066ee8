package server

import (
	"log"
	"strings"
	"time"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// flagEntry is a settable flag: its word and bit, and whether only
// wizards may change it.
type flagEntry struct {
	Word   int
	Bit    int
	Wizard bool
}

var flagTable = map[string]flagEntry{
	"wizard":             {0, gamedb.FlagWizard, true},
	"royalty":            {0, gamedb.FlagRoyalty, true},
	"dark":               {0, gamedb.FlagDark, false},
	"quiet":              {0, gamedb.FlagQuiet, false},
	"chan_usefirstmatch": {2, gamedb.Flag3ChanUseFirstMatch, false},
}

type powerEntry struct {
	Word int
	Bit  int
}

// powerTable maps power name strings to their (word, bit) pairs.
var powerTable = map[string]powerEntry{
	"announce":   {0, gamedb.PowAnnounce},
	"wizard_who": {0, gamedb.PowWizardWho},
	"see_all":    {0, gamedb.PowExamAll},
	"hide":       {0, gamedb.PowHide},
	"guest":      {0, gamedb.PowGuest},
	"pass_locks": {0, gamedb.PowPassLocks},
	"chat_privs": {1, gamedb.Pow2ChatPrivs},
	"pemit_all":  {1, gamedb.Pow2PemitAll},
	"nspemit":    {1, gamedb.Pow2Nspemit},
}

// persist writes obj through to bolt when a store is attached.
func (s *Server) persist(obj *gamedb.Object) {
	obj.LastMod = s.now()
	if s.Store == nil {
		return
	}
	if err := s.Store.PutObject(obj); err != nil {
		log.Printf("server: persist %s: %v", obj.DBRef, err)
	}
}

// matchControlled resolves name and checks that player controls it.
func (s *Server) matchControlled(player gamedb.DBRef, name string) (*gamedb.Object, bool) {
	target := s.World.Match(player, name)
	switch target {
	case gamedb.Nothing:
		s.tell(player, "I don't see that here.")
		return nil, false
	case gamedb.Ambiguous:
		s.tell(player, "I don't know which one you mean!")
		return nil, false
	}
	if !s.World.Controls(player, target) {
		s.tell(player, "Permission denied.")
		return nil, false
	}
	obj, ok := s.DB.Get(target)
	if !ok {
		s.tell(player, "No such object.")
	}
	return obj, ok
}

func cmdThink(s *Server, player gamedb.DBRef, args string, _ []string) {
	s.tell(player, "%s", callFunction(s, player, args))
}

// cmdHide toggles or sets whether player's session is hidden.
func cmdHide(s *Server, player gamedb.DBRef, _ string, switches []string) {
	if !s.World.Has(player, chat.PowCanHide) {
		s.tell(player, "Permission denied.")
		return
	}
	if !s.World.Connected(player) {
		s.tell(player, "You are not connected.")
		return
	}
	hide := !s.World.Hidden(player)
	switch {
	case HasSwitch(switches, "on"):
		hide = true
	case HasSwitch(switches, "off"):
		hide = false
	}
	s.World.SetHidden(player, hide)
	if hide {
		s.tell(player, "You no longer appear on the WHO list.")
	} else {
		s.tell(player, "You now appear on the WHO list.")
	}
}

func cmdCreate(s *Server, player gamedb.DBRef, args string, _ []string) {
	name, _, _ := splitEq(args)
	if name == "" {
		s.tell(player, "Create what?")
		return
	}
	obj := &gamedb.Object{
		DBRef:    s.DB.NextRef(),
		Name:     name,
		Location: player,
		Owner:    s.World.Owner(player),
		Flags:    [3]int{int(gamedb.TypeThing), 0, 0},
	}
	s.DB.Add(obj)
	s.persist(obj)
	s.tell(player, "Created: %s(%s)", name, obj.DBRef)
}

func cmdPcreate(s *Server, player gamedb.DBRef, args string, _ []string) {
	if !s.World.Has(player, chat.PowWizard) {
		s.tell(player, "Permission denied.")
		return
	}
	name, _, _ := splitEq(args)
	if name == "" || strings.ContainsAny(name, "=#*") {
		s.tell(player, "That's a silly name for a player!")
		return
	}
	if s.World.LookupPlayer(name) != gamedb.Nothing {
		s.tell(player, "There is already a player with that name.")
		return
	}
	ref := s.DB.NextRef()
	obj := &gamedb.Object{
		DBRef:    ref,
		Name:     name,
		Location: 0,
		Owner:    ref,
		Pennies:  s.Conf.StartingMoney,
		Flags:    [3]int{int(gamedb.TypePlayer), 0, 0},
	}
	s.DB.Add(obj)
	s.persist(obj)
	log.Printf("server: %s created player %s(%s)", s.World.Name(player), name, ref)
	s.tell(player, "New player '%s' (%s) created.", name, ref)
}

// cmdSetAttr handles "&ATTR object=value".
func cmdSetAttr(s *Server, player gamedb.DBRef, args string, _ []string) {
	attrName, rest := splitKeyVal(args)
	target, value, hasEq := strings.Cut(rest, "=")
	attrName = strings.ToUpper(strings.TrimSpace(attrName))
	if attrName == "" || !hasEq {
		s.tell(player, "Usage: &ATTR object=value")
		return
	}
	obj, ok := s.matchControlled(player, strings.TrimSpace(target))
	if !ok {
		return
	}
	obj.SetAttr(attrName, value)
	s.persist(obj)
	if value == "" {
		s.tell(player, "%s - Cleared.", attrName)
	} else {
		s.tell(player, "Set.")
	}
}

// cmdSet handles "@set thing=[!]flag" and "@set thing=attr:value".
func cmdSet(s *Server, player gamedb.DBRef, args string, _ []string) {
	target, value, hasEq := splitEq(args)
	if !hasEq {
		s.tell(player, "Usage: @set thing = attribute:value  or  @set thing = [!]flag")
		return
	}
	obj, ok := s.matchControlled(player, target)
	if !ok {
		return
	}

	if attrName, attrValue, isAttr := strings.Cut(value, ":"); isAttr {
		attrName = strings.ToUpper(strings.TrimSpace(attrName))
		if attrName == "" {
			s.tell(player, "Usage: @set thing = attribute:value")
			return
		}
		obj.SetAttr(attrName, strings.TrimSpace(attrValue))
		s.persist(obj)
		s.tell(player, "Set.")
		return
	}

	unset := strings.HasPrefix(value, "!")
	fe, ok := flagTable[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "!")))]
	if !ok {
		s.tell(player, "I don't know that flag.")
		return
	}
	if fe.Wizard && !s.World.Has(player, chat.PowWizard) {
		s.tell(player, "Permission denied.")
		return
	}
	if obj.DBRef == God && fe.Word == 0 && fe.Bit == gamedb.FlagWizard {
		s.tell(player, "Permission denied.")
		return
	}
	if unset {
		obj.Flags[fe.Word] &^= fe.Bit
		s.tell(player, "Cleared.")
	} else {
		obj.Flags[fe.Word] |= fe.Bit
		s.tell(player, "Set.")
	}
	s.persist(obj)
}

func cmdPower(s *Server, player gamedb.DBRef, args string, _ []string) {
	// @power obj = [!]powername
	if !s.World.Has(player, chat.PowWizard) {
		s.tell(player, "Permission denied.")
		return
	}
	targetStr, powStr, hasEq := splitEq(args)
	if !hasEq {
		s.tell(player, "Usage: @power object = [!]power")
		return
	}
	target := s.World.Match(player, targetStr)
	obj, ok := s.DB.Get(target)
	if !ok {
		s.tell(player, "I don't see that here.")
		return
	}
	if target == God && player != God {
		s.tell(player, "Permission denied.")
		return
	}

	negate := strings.HasPrefix(powStr, "!")
	powStr = strings.TrimSpace(strings.TrimPrefix(powStr, "!"))
	pe, ok := powerTable[strings.ToLower(powStr)]
	if !ok {
		s.tell(player, "I don't know that power.")
		return
	}
	obj.SetPower(pe.Word, pe.Bit, !negate)
	s.persist(obj)
	if negate {
		s.tell(player, "Power %s removed from %s(%s).", powStr, obj.Name, target)
	} else {
		s.tell(player, "Power %s granted to %s(%s).", powStr, obj.Name, target)
	}
}

// cmdExamine shows an object's chat-relevant state.
func cmdExamine(s *Server, player gamedb.DBRef, args string, _ []string) {
	name := strings.TrimSpace(args)
	if name == "" {
		name = "me"
	}
	target := s.World.Match(player, name)
	obj, ok := s.DB.Get(target)
	if !ok {
		s.tell(player, "I don't see that here.")
		return
	}
	if !s.World.Controls(player, target) && !s.World.Has(player, chat.PowSeeAll) {
		s.tell(player, "%s is owned by %s.", obj.Name, s.World.Name(obj.Owner))
		return
	}
	s.tell(player, "%s(%s) [%s]", obj.Name, obj.DBRef, obj.ObjType())
	s.tell(player, "Owner: %s  %s: %d", s.World.Name(obj.Owner), s.Conf.MoneyNamePlural, obj.Pennies)
	if !obj.LastMod.IsZero() {
		s.tell(player, "Modified: %s", obj.LastMod.UTC().Format(time.ANSIC))
	}
	for _, a := range obj.Attrs {
		s.tell(player, "%s: %s", a.Name, a.Value)
	}
	if desc := s.Chat.ChannelDescription(target); desc != "" {
		s.tell(player, "%s", desc)
	}
}
