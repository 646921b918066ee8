package chat

import (
	"errors"
	"strconv"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// MaxDescLen is the longest channel description accepted.
const MaxDescLen = 255

// adminPrelude runs the checks shared by @channel/add, /delete, /rename and
// /priv.
func (d *Directory) adminPrelude(player gamedb.DBRef, name string) bool {
	if name == "" {
		d.tell(player, "You must specify a channel.")
		return false
	}
	if d.world.Has(player, PowGuest) {
		d.tell(player, "Guests may not modify channels.")
		return false
	}
	return true
}

func (d *Directory) tellNameError(player gamedb.DBRef, err error) {
	switch {
	case errors.Is(err, ErrNameTooLong):
		d.tell(player, "The channel needs a shorter name.")
	case errors.Is(err, ErrNameNotUnique):
		d.tell(player, "The channel needs a more unique name.")
	default:
		d.tell(player, "Invalid name for a channel.")
	}
}

// DoAdd creates a channel. Empty perms use the configured default type.
func (d *Directory) DoAdd(player gamedb.DBRef, name, perms string) {
	if !d.adminPrelude(player, name) {
		return
	}
	if perms == "" {
		perms = d.opts.DefaultPrivs
	}
	privs := ParsePrivs(perms, 0)
	err := d.checkCreate(name, privs, player)
	switch {
	case errors.Is(err, ErrTooManyChannels):
		d.tell(player, "No more room for channels.")
		return
	case errors.Is(err, ErrQuota):
		d.tell(player, "You already own too many channels.")
		return
	case errors.Is(err, ErrPrivsDenied):
		d.tell(player, "You can't create channels of that type.")
		return
	case err != nil:
		d.tellNameError(player, err)
		return
	}
	if privs&PrivDisabled != 0 {
		d.tell(player, "Warning: channel will be created disabled.")
	}
	c, err := d.create(name, privs, player)
	if errors.Is(err, ErrCantAfford) {
		d.tell(player, "You can't afford the %d %s.", d.opts.ChannelCost, d.opts.money(d.opts.ChannelCost))
		return
	}
	if err != nil {
		d.log.Printf("chat: %v", err)
		d.tell(player, "CHAT: Unable to create channel <%s>.", name)
		return
	}
	d.tell(player, "CHAT: Channel <%s> created.", c.name)
}

// DoDelete removes a channel, refunding its creator.
func (d *Directory) DoDelete(player gamedb.DBRef, name string) {
	if !d.adminPrelude(player, name) {
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanNuke(c, player) {
		d.tell(player, "Permission denied.")
		return
	}
	d.wipe(player, c)
	d.Delete(c)
	d.tell(player, "Channel removed.")
}

// DoRename renames a channel and tells its members.
func (d *Directory) DoRename(player gamedb.DBRef, name, newName string) {
	if !d.adminPrelude(player, name) {
		return
	}
	if newName == "" {
		d.tell(player, "What do you want to do with the channel?")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "Permission denied.")
		return
	}
	old := c.name
	if err := d.Rename(c, newName); err != nil {
		d.tellNameError(player, err)
		return
	}
	d.Send(c, player, SendCheckQuiet|SendPresence|SendPose, "has renamed "+old+" to "+c.name+".")
	d.tell(player, "Channel renamed.")
}

// DoPriv applies a privilege list to a channel's type.
func (d *Directory) DoPriv(player gamedb.DBRef, name, perms string) {
	if !d.adminPrelude(player, name) {
		return
	}
	if perms == "" {
		d.tell(player, "What do you want to do with the channel?")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "Permission denied.")
		return
	}
	privs := ParsePrivs(perms, c.privs)
	if !d.canSetPrivs(player, privs) {
		d.tell(player, "You can't make channels that type.")
		return
	}
	if privs&PrivDisabled != 0 {
		d.tell(player, "Warning: channel will be disabled.")
	}
	if privs == c.privs {
		d.tell(player, "Invalid or same permissions on channel <%s>. No changes made.", c.name)
		return
	}
	d.SetPrivs(c, privs)
	d.tell(player, "Permissions on channel <%s> changed.", c.name)
}

// DoDesc sets or, when desc is empty, clears a channel's description.
func (d *Directory) DoDesc(player gamedb.DBRef, name, desc string) {
	if len(desc) > MaxDescLen {
		d.tell(player, "CHAT: New description too long.")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "CHAT: Yeah, right.")
		return
	}
	d.SetDescription(c, desc)
	if desc == "" {
		d.tell(player, "CHAT: Channel <%s> description cleared.", c.name)
	} else {
		d.tell(player, "CHAT: Channel <%s> description set.", c.name)
	}
}

var lockTitles = [numLocks]string{"Joinlock", "Speaklock", "Modlock", "Seelock", "Hidelock"}

// DoLock sets one of a channel's locks from its text form. Empty text
// unlocks.
func (d *Directory) DoLock(player gamedb.DBRef, name, key string, kind LockKind) {
	if kind < 0 || kind >= numLocks {
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "CHAT: Channel <%s> resists.", c.name)
		return
	}
	if key == "" {
		d.SetLock(c, kind, nil)
		d.tell(player, "CHAT: %s on <%s> reset.", lockTitles[kind], c.name)
		return
	}
	lock, err := d.gate.Parse(player, key)
	if err != nil || lock == nil {
		d.tell(player, "CHAT: I don't understand that key.")
		return
	}
	d.SetLock(c, kind, lock)
	d.tell(player, "CHAT: %s on <%s> set.", lockTitles[kind], c.name)
}

// wipe empties c, telling each removed member who did it.
func (d *Directory) wipe(player gamedb.DBRef, c *Channel) {
	for _, who := range d.Wipe(c) {
		d.tell(who, "CHAT: %s has removed all users from <%s>.", d.world.Name(player), c.name)
	}
}

// DoWipe removes every member of a channel.
func (d *Directory) DoWipe(player gamedb.DBRef, name string) {
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "CHAT: Wipe that silly grin off your face instead.")
		return
	}
	d.wipe(player, c)
	d.tell(player, "CHAT: Channel <%s> wiped.", c.name)
}

// DoMogrifier sets the channel's rewrite object, or clears it when obj is
// empty.
func (d *Directory) DoMogrifier(player gamedb.DBRef, name, obj string) {
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "CHAT: Only a channel modifier can do that.")
		return
	}
	if obj == "" {
		if c.mogrifier == gamedb.Nothing {
			d.tell(player, "CHAT: Channel <%s> isn't being mogrified.", c.name)
			return
		}
		d.tell(player, "CHAT: Channel <%s> no longer mogrified by %s.", c.name, d.world.Name(c.mogrifier))
		d.SetMogrifier(c, gamedb.Nothing)
		return
	}
	it := d.world.Match(player, obj)
	switch it {
	case gamedb.Nothing:
		d.tell(player, "I can't see that here.")
		return
	case gamedb.Ambiguous:
		d.tell(player, "I don't know which thing you mean.")
		return
	}
	if it < 0 {
		d.tell(player, "I can't see that here.")
		return
	}
	if !d.world.Controls(player, it) {
		d.tell(player, "CHAT: You must control the mogrifier.")
		return
	}
	d.SetMogrifier(c, it)
	d.tell(player, "CHAT: Channel <%s> now mogrified by %s.", c.name, d.world.Name(it))
}

// DoChown gives a channel to another player. Wizards only.
func (d *Directory) DoChown(player gamedb.DBRef, name, owner string) {
	if !d.world.Has(player, PowWizard) {
		d.tell(player, "CHAT: Only a Wizard can do that.")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	victim := gamedb.Nothing
	if owner != "" {
		victim = d.world.LookupPlayer(owner)
	}
	if victim == gamedb.Nothing {
		d.tell(player, "CHAT: Invalid owner.")
		return
	}
	d.Chown(c, victim)
	d.tell(player, "CHAT: Channel <%s> now owned by %s.", c.name, d.world.Name(c.creator))
}

// DoChownAll gives every channel of one player to another. Wizards only.
func (d *Directory) DoChownAll(player gamedb.DBRef, from, to string) {
	if !d.world.Has(player, PowWizard) {
		d.tell(player, "CHAT: Only a Wizard can do that.")
		return
	}
	old := d.world.LookupPlayer(from)
	if old == gamedb.Nothing {
		d.tell(player, "CHAT: Invalid owner.")
		return
	}
	victim := d.world.LookupPlayer(to)
	if victim == gamedb.Nothing {
		d.tell(player, "CHAT: Invalid owner.")
		return
	}
	n := d.ChownAll(old, victim)
	d.tell(player, "CHAT: %d channel(s) of %s now owned by %s.", n, d.world.Name(old), d.world.Name(victim))
}

// isStrictInt accepts an optional sign followed by digits only.
func isStrictInt(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DoBuffer sizes a channel's recall buffer in 8 KiB blocks. Zero removes it.
func (d *Directory) DoBuffer(player gamedb.DBRef, name, blocks string) {
	if name == "" {
		d.tell(player, "You need to specify a channel.")
		return
	}
	if !isStrictInt(blocks) {
		d.tell(player, "You need to specify the amount of data (In 8kb chunks) to use for the buffer.")
		return
	}
	size, err := strconv.Atoi(blocks)
	if err != nil || size < 0 || size > d.opts.MaxBufferBlocks {
		d.tell(player, "Invalid buffer size.")
		return
	}
	c, ok := d.testChannel(player, name)
	if !ok {
		return
	}
	if !d.CanModify(c, player) {
		d.tell(player, "Permission denied.")
		return
	}
	had := c.buffer != nil
	d.SetBuffer(c, size)
	switch {
	case size == 0 && had:
		d.tell(player, "CHAT: Channel buffering disabled for channel <%s>.", c.name)
	case size == 0:
		d.tell(player, "CHAT: Channel buffering already disabled for channel <%s>.", c.name)
	case had:
		d.tell(player, "CHAT: Resizing buffer of channel <%s>", c.name)
	default:
		d.tell(player, "CHAT: Buffering enabled on channel <%s>.", c.name)
	}
}
