package server

import (
	"slices"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// God is the player no one else controls.
const God gamedb.DBRef = 1

// World adapts a gamedb.Database and the open sessions to chat.World.
type World struct {
	db       *gamedb.Database
	sessions map[gamedb.DBRef]int
	hidden   map[gamedb.DBRef]bool
}

// NewWorld wraps db. Stale connected flags from a previous run are cleared.
func NewWorld(db *gamedb.Database) *World {
	for _, obj := range db.Objects {
		obj.Flags[1] &^= gamedb.Flag2Connected
	}
	return &World{
		db:       db,
		sessions: make(map[gamedb.DBRef]int),
		hidden:   make(map[gamedb.DBRef]bool),
	}
}

// DB returns the underlying database.
func (w *World) DB() *gamedb.Database { return w.db }

// Connect records a new session for player and returns its session count.
func (w *World) Connect(player gamedb.DBRef, hidden bool) int {
	w.sessions[player]++
	if obj, ok := w.db.Get(player); ok {
		obj.Flags[1] |= gamedb.Flag2Connected
	}
	if hidden {
		w.hidden[player] = true
	}
	return w.sessions[player]
}

// Disconnect drops one session of player and returns how many it had
// before the drop.
func (w *World) Disconnect(player gamedb.DBRef) int {
	n := w.sessions[player]
	if n == 0 {
		return 0
	}
	if n == 1 {
		delete(w.sessions, player)
		delete(w.hidden, player)
		if obj, ok := w.db.Get(player); ok {
			obj.Flags[1] &^= gamedb.Flag2Connected
		}
	} else {
		w.sessions[player] = n - 1
	}
	return n
}

// Hidden reports whether player's sessions are hidden from who lists.
func (w *World) Hidden(player gamedb.DBRef) bool { return w.hidden[player] }

// SetHidden changes the hidden state of a connected player.
func (w *World) SetHidden(player gamedb.DBRef, hidden bool) {
	if w.sessions[player] == 0 {
		return
	}
	if hidden {
		w.hidden[player] = true
	} else {
		delete(w.hidden, player)
	}
}

func (w *World) Valid(ref gamedb.DBRef) bool { return w.db.Valid(ref) }

func (w *World) Name(ref gamedb.DBRef) string {
	if obj, ok := w.db.Get(ref); ok {
		return obj.Name
	}
	return "*NOTHING*"
}

func (w *World) Type(ref gamedb.DBRef) gamedb.ObjectType {
	if obj, ok := w.db.Get(ref); ok {
		return obj.ObjType()
	}
	return gamedb.TypeGarbage
}

func (w *World) Owner(ref gamedb.DBRef) gamedb.DBRef {
	if obj, ok := w.db.Get(ref); ok {
		return obj.Owner
	}
	return gamedb.Nothing
}

func (w *World) Connected(ref gamedb.DBRef) bool {
	if w.sessions[ref] > 0 {
		return true
	}
	obj, ok := w.db.Get(ref)
	return ok && obj.HasFlag2(gamedb.Flag2Connected)
}

func (w *World) isWizard(obj *gamedb.Object) bool {
	return obj.DBRef == God || obj.HasFlag(gamedb.FlagWizard)
}

// Has maps chat powers onto object flags and power bits.
func (w *World) Has(ref gamedb.DBRef, p chat.Power) bool {
	obj, ok := w.db.Get(ref)
	if !ok {
		return false
	}
	wiz := w.isWizard(obj)
	priv := wiz || obj.HasFlag(gamedb.FlagRoyalty)
	switch p {
	case chat.PowWizard:
		return wiz
	case chat.PowPrivileged:
		return priv
	case chat.PowSeeAll:
		return priv || obj.HasPower(0, gamedb.PowExamAll)
	case chat.PowPrivWho:
		return priv || obj.HasPower(0, gamedb.PowWizardWho)
	case chat.PowCanHide:
		return priv || obj.HasPower(0, gamedb.PowHide)
	case chat.PowGuest:
		return obj.HasPower(0, gamedb.PowGuest)
	case chat.PowLoud:
		return wiz || obj.HasPower(0, gamedb.PowAnnounce)
	case chat.PowPemitAll:
		return wiz || obj.HasPower(1, gamedb.Pow2PemitAll)
	case chat.PowChatPrivs:
		return priv || obj.HasPower(1, gamedb.Pow2ChatPrivs)
	case chat.PowNspemit:
		return wiz || obj.HasPower(1, gamedb.Pow2Nspemit)
	case chat.PowUseFirstMatch:
		return obj.HasFlag3(gamedb.Flag3ChanUseFirstMatch)
	case chat.PowDarkLegal:
		return obj.HasFlag(gamedb.FlagDark) && (wiz || obj.ObjType() != gamedb.TypePlayer)
	case chat.PowQuiet:
		return obj.HasFlag(gamedb.FlagQuiet)
	}
	return false
}

// Controls: God controls everything, wizards everything but God, and
// everyone else what they own unless it is a wizard.
func (w *World) Controls(who, what gamedb.DBRef) bool {
	wObj, ok1 := w.db.Get(who)
	tObj, ok2 := w.db.Get(what)
	if !ok1 || !ok2 {
		return false
	}
	if who == God {
		return true
	}
	if what == God {
		return false
	}
	if w.isWizard(wObj) {
		return true
	}
	if who == what {
		return true
	}
	return wObj.Owner == tObj.Owner && !w.isWizard(tObj)
}

// Payfor debits cost from who's owner. Wizards pay nothing.
func (w *World) Payfor(who gamedb.DBRef, cost int) bool {
	obj, ok := w.db.Get(who)
	if !ok {
		return false
	}
	if w.isWizard(obj) || cost <= 0 {
		return true
	}
	owner, ok := w.db.Get(obj.Owner)
	if !ok || owner.Pennies < cost {
		return false
	}
	owner.Pennies -= cost
	return true
}

func (w *World) Giveto(who gamedb.DBRef, amount int) {
	obj, ok := w.db.Get(who)
	if !ok {
		return
	}
	if owner, ok := w.db.Get(obj.Owner); ok {
		owner.Pennies += amount
	}
}

func (w *World) Match(actor gamedb.DBRef, name string) gamedb.DBRef {
	return w.db.Match(actor, name)
}

func (w *World) LookupPlayer(name string) gamedb.DBRef {
	return w.db.LookupPlayer(name)
}

// Sessions lists connected players in dbref order, once per session.
func (w *World) Sessions() []gamedb.DBRef {
	refs := make([]gamedb.DBRef, 0, len(w.sessions))
	for ref := range w.sessions {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	var out []gamedb.DBRef
	for _, ref := range refs {
		for range w.sessions[ref] {
			out = append(out, ref)
		}
	}
	return out
}
