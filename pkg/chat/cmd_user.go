package chat

import (
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// DoChannel handles @channel/on, /off and /who. With no target, on and off
// apply to player.
func (d *Directory) DoChannel(player gamedb.DBRef, name, target, com string) {
	if name == "" {
		d.tell(player, "You need to specify a channel.")
		return
	}
	com = strings.ToLower(com)
	if target == "" {
		switch com {
		case "on", "join":
			d.DoJoin(player, name)
			return
		case "off", "leave":
			d.DoLeave(player, name)
			return
		}
	}

	c, ok := d.seeChannel(player, name)
	if !ok {
		return
	}
	if com == "who" {
		d.who(player, c)
		return
	}
	if target == "" {
		d.tell(player, "I don't understand what you want to do.")
		return
	}
	victim := d.world.LookupPlayer(target)
	if victim == gamedb.Nothing {
		victim = d.world.Match(player, target)
	}
	if !d.world.Valid(victim) {
		d.tell(player, "Invalid target.")
		return
	}

	switch com {
	case "on", "join":
		d.joinOther(player, victim, c)
	case "off", "leave":
		d.removeOther(player, victim, c)
	default:
		d.tell(player, "I don't understand what you want to do.")
	}
}

// seeChannel resolves name and checks that player may see the channel.
func (d *Directory) seeChannel(player gamedb.DBRef, name string) (*Channel, bool) {
	c, ok := d.testChannel(player, name)
	if !ok {
		return nil, false
	}
	if !d.CanSee(c, player) {
		if d.OnChannel(c, player) {
			d.tell(player, "CHAT: You can't do that with channel <%s>.", c.name)
		} else {
			d.tell(player, "CHAT: I don't recognize that channel.")
		}
		return nil, false
	}
	return c, true
}

func (d *Directory) joinOther(player, victim gamedb.DBRef, c *Channel) {
	switch {
	case !d.TypeOK(c, victim):
		d.tell(player, "Sorry, wrong type of thing for channel <%s>.", c.name)
		return
	case d.world.Has(player, PowGuest):
		d.tell(player, "Guests are not allowed to join channels.")
		return
	case !d.world.Controls(player, victim):
		d.tell(player, "Invalid target.")
		return
	case d.OnChannel(c, victim):
		d.tell(player, "%s is already on channel <%s>.", d.world.Name(victim), c.name)
		return
	}
	if !d.CanJoin(c, victim) {
		if !d.world.Has(player, PowWizard) {
			d.tell(player, "Permission to join denied.")
			return
		}
		d.tell(player, "CHAT: Warning: Target does not meet channel join permissions! (joining anyway)")
	}
	if err := d.Join(c, victim); err != nil {
		d.tell(player, "%s is already on channel <%s>.", d.world.Name(victim), c.name)
		return
	}
	d.tell(victim, "CHAT: %s joins you to channel <%s>.", d.world.Name(player), c.name)
	d.tell(player, "CHAT: You join %s to channel <%s>.", d.world.Name(victim), c.name)
	d.announceMembership(c, victim, "has joined this channel.")
}

func (d *Directory) removeOther(player, victim gamedb.DBRef, c *Channel) {
	if !d.world.Controls(player, victim) && !d.CanModify(c, player) {
		d.tell(player, "Invalid target.")
		return
	}
	if d.world.Has(player, PowGuest) {
		d.tell(player, "Guests may not leave channels.")
		return
	}
	if err := d.Leave(c, victim); err != nil {
		d.tell(player, "%s is not on channel <%s>.", d.world.Name(victim), c.name)
		return
	}
	d.announceMembership(c, victim, "has left this channel.")
	d.tell(victim, "CHAT: %s removes you from channel <%s>.", d.world.Name(player), c.name)
	d.tell(player, "CHAT: You remove %s from channel <%s>.", d.world.Name(victim), c.name)
}

// announceMembership sends a join or leave line unless the channel or the
// subject is silent about it.
func (d *Directory) announceMembership(c *Channel, who gamedb.DBRef, text string) {
	if c.privs&PrivQuiet != 0 || d.world.Has(who, PowDarkLegal) {
		return
	}
	d.Send(c, who, SendCheckQuiet|SendPresence|SendPose, text)
}

// DoJoin adds player to the channel matching name among those player is not
// on yet.
func (d *Directory) DoJoin(player gamedb.DBRef, name string) {
	if d.world.Has(player, PowGuest) {
		d.tell(player, "Guests are not allowed to join channels.")
		return
	}
	c, res := d.FindPartialOff(name, player)
	switch res {
	case MatchNone:
		if on, r := d.FindPartialOn(name, player); r != MatchNone {
			d.tell(player, "CHAT: You are already on channel <%s>.", on.name)
		} else {
			d.tell(player, "CHAT: I don't recognize that channel.")
		}
		return
	case MatchAmbiguous:
		d.tell(player, "CHAT: I don't know which channel you mean.")
		d.listPartialMatches(player, name, ScopeOff)
		return
	}
	if !d.CanSee(c, player) {
		d.tell(player, "CHAT: I don't recognize that channel.")
		return
	}
	if !d.TypeOK(c, player) {
		d.tell(player, "Sorry, wrong type of thing for channel <%s>.", c.name)
		return
	}
	if !d.CanJoin(c, player) {
		if !d.world.Has(player, PowWizard) {
			d.tell(player, "Permission to join denied.")
			return
		}
		d.tell(player, "CHAT: Warning: You don't meet channel join permissions! (joining anyway)")
	}
	if err := d.Join(c, player); err != nil {
		d.tell(player, "%s is already on channel <%s>.", d.world.Name(player), c.name)
		return
	}
	d.tell(player, "CHAT: You join channel <%s>.", c.name)
	d.announceMembership(c, player, "has joined this channel.")
}

// DoLeave removes player from the channel matching name among those player
// is on.
func (d *Directory) DoLeave(player gamedb.DBRef, name string) {
	if d.world.Has(player, PowGuest) {
		d.tell(player, "Guests are not allowed to leave channels.")
		return
	}
	c, res := d.FindPartialOn(name, player)
	switch res {
	case MatchNone:
		if off, r := d.FindPartialOff(name, player); r != MatchNone && d.CanSee(off, player) {
			d.tell(player, "CHAT: You are not on channel <%s>.", off.name)
		} else {
			d.tell(player, "CHAT: I don't recognize that channel.")
		}
		return
	case MatchAmbiguous:
		d.tell(player, "CHAT: I don't know which channel you mean.")
		d.listPartialMatches(player, name, ScopeOn)
		return
	}
	if err := d.Leave(c, player); err != nil {
		d.tell(player, "%s is not on channel <%s>.", d.world.Name(player), c.name)
		return
	}
	d.announceMembership(c, player, "has left this channel.")
	d.tell(player, "CHAT: You leave channel <%s>.", c.name)
}

// DoChatByName speaks on the channel matching name. explicit is true for
// @chat, which reports every failure; the +channel shortcut fails silently
// so the input can be tried as another command. The result reports whether
// the input was consumed.
func (d *Directory) DoChatByName(player gamedb.DBRef, name, msg string, explicit bool) bool {
	if msg == "" {
		if explicit {
			d.tell(player, "Don't you have anything to say?")
		}
		return false
	}
	c, res := d.FindPartialOn(name, player)
	if explicit && res == MatchNone {
		c, res = d.FindPartial(name, player)
	}
	switch res {
	case MatchAmbiguous:
		if !d.world.Has(player, PowUseFirstMatch) {
			d.tell(player, "CHAT: I don't know which channel you mean.")
			d.listPartialMatches(player, name, ScopeOn)
			d.tell(player, "CHAT: You may wish to set the CHAN_USEFIRSTMATCH flag on yourself.")
			return true
		}
		fallthrough
	case MatchExact, MatchPartial:
		d.DoChat(player, c, msg)
		return true
	}
	if explicit {
		if _, r := d.Find(name, player); r == MatchNone {
			d.tell(player, "CHAT: No such channel.")
		}
	}
	return false
}

// DoChat speaks msg on c. A leading : poses, a leading ; semiposes.
func (d *Directory) DoChat(player gamedb.DBRef, c *Channel, msg string) {
	if !d.TypeOK(c, player) {
		d.tell(player, "Sorry, you're not the right type to be on channel <%s>.", c.name)
		return
	}
	if !d.world.Has(player, PowLoud) && !d.CanSpeak(c, player) {
		if d.CanSee(c, player) {
			d.tell(player, "Sorry, you're not allowed to speak on channel <%s>.", c.name)
		} else {
			d.tell(player, "CHAT: No such channel.")
		}
		return
	}
	if !d.mayTalk(player, c) {
		return
	}
	if msg == "" {
		d.tell(player, "What do you want to say to that channel?")
		return
	}
	switch msg[0] {
	case ';':
		d.Send(c, player, SendSemipose, msg[1:])
	case ':':
		d.Send(c, player, SendPose, msg[1:])
	default:
		if d.opts.StripQuote && msg[0] == '"' {
			msg = msg[1:]
		}
		d.Send(c, player, SendSpeech, msg)
	}
	c.messages++
}

// mayTalk enforces that only members who hear a closed channel speak on it.
func (d *Directory) mayTalk(player gamedb.DBRef, c *Channel) bool {
	if c.privs&PrivOpen != 0 {
		return true
	}
	m, ok := c.members[player]
	switch {
	case !ok:
		d.tell(player, "You must be on that channel to speak on it.")
		return false
	case m.Flags&MemberGag != 0:
		d.tell(player, "You must stop gagging that channel to speak on it.")
		return false
	}
	return true
}

// DoCemit emits msg on the channel name. silent drops the channel prefix;
// without spoof the recall buffer records no speaker.
func (d *Directory) DoCemit(player gamedb.DBRef, name, msg string, silent, spoof bool) {
	if name == "" {
		d.tell(player, "That is not a valid channel.")
		return
	}
	c, res := d.Find(name, player)
	switch res {
	case MatchNone:
		d.tell(player, "I don't recognize that channel.")
		return
	case MatchAmbiguous:
		d.tell(player, "I don't know which channel you mean.")
		d.listPartialMatches(player, name, ScopeAll)
		return
	}
	if !d.CanSee(c, player) {
		d.tell(player, "CHAT: I don't recognize that channel.")
		return
	}
	override := d.world.Has(player, PowSeeAll) && d.world.Has(player, PowPemitAll)
	if !override {
		if !d.TypeOK(c, player) {
			d.tell(player, "Sorry, you're not the right type to be on channel <%s>.", c.name)
			return
		}
		if !d.CanCemit(c, player) {
			d.tell(player, "Sorry, you're not allowed to @cemit on channel <%s>.", c.name)
			return
		}
		if !d.mayTalk(player, c) {
			return
		}
	}
	if msg == "" {
		d.tell(player, "What do you want to emit?")
		return
	}
	flags := SendEmit
	if silent {
		flags |= SendQuiet
	}
	if !spoof {
		flags |= SendNoSpoof
	}
	d.Send(c, player, flags, msg)
	c.messages++
}

// DoTitle shows player's title on name, or with set replaces it. An empty
// title clears it.
func (d *Directory) DoTitle(player gamedb.DBRef, name, title string, set bool) {
	if name == "" {
		d.tell(player, "You must specify a channel.")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	m, on := c.members[player]
	if !on {
		d.tell(player, "You are not on channel <%s>.", c.name)
		return
	}
	if !set {
		if m.Title == "" {
			d.tell(player, "You have no title set on <%s>.", c.name)
		} else {
			d.tell(player, "Your title on <%s> is '%s'.", c.name, m.Title)
		}
		return
	}
	notitles := ""
	if c.privs&PrivNoTitles != 0 {
		notitles = "(NoTitles) "
	}
	if title == "" {
		m.Title = ""
		if !d.world.Has(player, PowQuiet) {
			d.tell(player, "Title cleared for %schannel <%s>.", notitles, c.name)
		}
		return
	}
	if why := d.ValidTitle(title); why != "" {
		d.tell(player, "%s", why)
		return
	}
	m.Title = title
	if !d.world.Has(player, PowQuiet) {
		d.tell(player, "Title set for %schannel <%s>.", notitles, c.name)
	}
}

// isNo reports whether s reads as no or off. Anything else, including an
// unparsable value, counts as yes.
func isNo(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "n") || strings.HasPrefix(s, "of")
}

type userFlagText struct {
	allOn, allOff string
	on, off       string
}

var userFlagTexts = map[MemberFlags]userFlagText{
	MemberQuiet: {
		"All channels have been muted.", "All channels have been unmuted.",
		"You will no longer hear connection messages on channel <%s>.",
		"You will now hear connection messages on channel <%s>.",
	},
	MemberHide: {
		"You hide on all the channels you can.", "You unhide on all channels.",
		"You no longer appear on channel <%s>'s who list.",
		"You now appear on channel <%s>'s who list.",
	},
	MemberGag: {
		"All channels have been gagged.", "All channels have been ungagged.",
		"You will no longer hear messages on channel <%s>.",
		"You will now hear messages on channel <%s>.",
	},
	MemberCombine: {
		"All channels have been combined.", "All channels have been uncombined.",
		"Connect messages on channel <%s> will now be combined with others.",
		"Connect messages on channel <%s> will no longer be combined with others.",
	},
}

// DoUserFlag sets or clears one membership flag on the channel name, or on
// every channel player is on when name is empty.
func (d *Directory) DoUserFlag(player gamedb.DBRef, name, yes string, flag MemberFlags) {
	text, known := userFlagTexts[flag]
	if !known {
		return
	}
	if flag == MemberCombine && !d.isPlayer(player) {
		d.tell(player, "Only players can use that option.")
		return
	}
	setting := !isNo(yes)

	if name == "" {
		if d.NumChannelsOf(player) == 0 {
			d.tell(player, "You are not on any channels.")
			return
		}
		if setting {
			d.tell(player, "%s", text.allOn)
		} else {
			d.tell(player, "%s", text.allOff)
		}
		for c := range d.ChannelsOf(player) {
			d.setUserFlag(player, c, flag, setting, text, true)
		}
		return
	}

	c, ok := d.testChannelOn(player, name)
	if !ok {
		return
	}
	d.setUserFlag(player, c, flag, setting, text, false)
}

func (d *Directory) setUserFlag(player gamedb.DBRef, c *Channel, flag MemberFlags, setting bool, text userFlagText, silent bool) {
	m, ok := c.members[player]
	if !ok {
		if !silent {
			d.tell(player, "You are not on channel <%s>.", c.name)
		}
		return
	}
	if !setting {
		m.Flags &^= flag
		if !silent {
			d.tell(player, text.off, c.name)
		}
		return
	}
	if flag == MemberHide && !d.CanHide(c, player) && !d.world.Has(player, PowWizard) {
		if !silent {
			d.tell(player, "You are not permitted to hide on channel <%s>.", c.name)
		}
		return
	}
	m.Flags |= flag
	if !silent {
		d.tell(player, text.on, c.name)
	}
}

// DoWho lists the connected members of name that player may see.
func (d *Directory) DoWho(player gamedb.DBRef, name string) {
	if name == "" {
		d.tell(player, "You need to specify a channel.")
		return
	}
	if c, ok := d.seeChannel(player, name); ok {
		d.who(player, c)
	}
}

func (d *Directory) who(player gamedb.DBRef, c *Channel) {
	privWho := d.world.Has(player, PowPrivWho)
	var names []string
	for m := range c.Members() {
		who := m.Who
		thing := d.world.Type(who) == gamedb.TypeThing
		if !thing && !d.world.Connected(who) {
			continue
		}
		hidden := m.Flags&MemberHide != 0
		if hidden && !privWho {
			continue
		}
		s := d.world.Name(who)
		if thing {
			s += "(" + who.String() + ")"
		}
		gagged := m.Flags&MemberGag != 0
		switch {
		case hidden && gagged:
			s += " (hidden,gagging)"
		case hidden:
			s += " (hidden)"
		case gagged:
			s += " (gagging)"
		}
		names = append(names, s)
	}
	if len(names) == 0 {
		d.tell(player, "There are no connected players on that channel.")
		return
	}
	d.tell(player, "Members of channel <%s> are:", c.name)
	d.tell(player, "%s", itemize(names))
}

// itemize joins items as an English list: "A", "A and B", "A, B, and C".
func itemize(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
