package chat

import (
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

func (d *Directory) isPlayer(p gamedb.DBRef) bool {
	return d.world.Type(p) == gamedb.TypePlayer
}

// TypeOK reports whether p's object type may be on c.
func (d *Directory) TypeOK(c *Channel, p gamedb.DBRef) bool {
	switch d.world.Type(p) {
	case gamedb.TypePlayer:
		return c.privs&PrivPlayer != 0
	case gamedb.TypeThing:
		return c.privs&PrivObject != 0
	}
	return false
}

// canPriv reports whether p may use a channel with these bits.
func (d *Directory) canPriv(p gamedb.DBRef, privs Privs) bool {
	if privs&PrivDisabled != 0 {
		return false
	}
	if privs&PrivWizard != 0 && !d.world.Has(p, PowWizard) {
		return false
	}
	if privs&PrivAdmin != 0 && !d.world.Has(p, PowPrivileged) && !d.world.Has(p, PowChatPrivs) {
		return false
	}
	return true
}

// canSetPrivs is canPriv without the disabled check, for @channel/priv.
func (d *Directory) canSetPrivs(p gamedb.DBRef, privs Privs) bool {
	return d.canPriv(p, privs&^PrivDisabled)
}

func (d *Directory) evalLock(c *Channel, p gamedb.DBRef, kind LockKind) bool {
	lock := c.locks[kind]
	if lock == nil {
		return true
	}
	return d.gate.Eval(p, lock, StripMarkup(c.name))
}

// CanJoin reports whether p may join c.
func (d *Directory) CanJoin(c *Channel, p gamedb.DBRef) bool {
	return d.canPriv(p, c.privs) && d.evalLock(c, p, LockJoin)
}

// CanSpeak reports whether p may speak on c.
func (d *Directory) CanSpeak(c *Channel, p gamedb.DBRef) bool {
	return d.canPriv(p, c.privs) && d.evalLock(c, p, LockSpeak)
}

// CanCemit reports whether p may @cemit to c.
func (d *Directory) CanCemit(c *Channel, p gamedb.DBRef) bool {
	return c.privs&PrivNoCemit == 0 && d.CanSpeak(c, p)
}

// CanModify reports whether p may administer c.
func (d *Directory) CanModify(c *Channel, p gamedb.DBRef) bool {
	if d.world.Has(p, PowWizard) || c.creator == p {
		return true
	}
	return !d.world.Has(p, PowGuest) && d.canPriv(p, c.privs) && d.evalLock(c, p, LockModify)
}

// CanSee reports whether p may see that c exists.
func (d *Directory) CanSee(c *Channel, p gamedb.DBRef) bool {
	if d.world.Has(p, PowPrivileged) || d.world.Has(p, PowSeeAll) {
		return true
	}
	return d.canPriv(p, c.privs) && d.evalLock(c, p, LockSee)
}

// CanHide reports whether p may hide on c.
func (d *Directory) CanHide(c *Channel, p gamedb.DBRef) bool {
	if d.world.Has(p, PowCanHide) {
		return true
	}
	return c.privs&PrivCanHide != 0 && d.canPriv(p, c.privs) && d.evalLock(c, p, LockHide)
}

// CanNuke reports whether p may delete c.
func (d *Directory) CanNuke(c *Channel, p gamedb.DBRef) bool {
	return d.world.Has(p, PowWizard) || c.creator == p
}

// CanDecompile reports whether p may see c's locks and decompile it.
func (d *Directory) CanDecompile(c *Channel, p gamedb.DBRef) bool {
	return d.world.Has(p, PowSeeAll) || c.creator == p
}

// CanAccess reports whether p may read c's recall buffer.
func (d *Directory) CanAccess(c *Channel, p gamedb.DBRef) bool {
	return d.CanSee(c, p) && (d.OnChannel(c, p) || d.CanJoin(c, p))
}

// visible is the directory's notion of a channel p knows about.
func (d *Directory) visible(c *Channel, p gamedb.DBRef) bool {
	return d.OnChannel(c, p) || d.CanSee(c, p)
}

func (d *Directory) canExamine(p, thing gamedb.DBRef) bool {
	return d.world.Has(p, PowSeeAll) || d.world.Controls(p, thing)
}
