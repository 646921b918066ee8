// Package chat implements named-channel chat: the channel directory, the
// membership indexes, permission checks, broadcast with rewrite stages,
// combined presence announcements and the channel snapshot format.
//
// A Directory is not safe for concurrent use; callers serialize access.
package chat

import (
	"iter"

	"github.com/google/btree"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// Privs are channel permission bits. The numeric values are stored in
// snapshots.
type Privs int

const (
	PrivPlayer   Privs = 0x1
	PrivObject   Privs = 0x2
	PrivDisabled Privs = 0x4
	PrivQuiet    Privs = 0x8
	PrivAdmin    Privs = 0x10
	PrivWizard   Privs = 0x20
	PrivCanHide  Privs = 0x40
	PrivOpen     Privs = 0x80
	PrivNoTitles Privs = 0x100
	PrivNoNames  Privs = 0x200
	PrivNoCemit  Privs = 0x400
	PrivInteract Privs = 0x800
)

// MemberFlags are per-membership settings.
type MemberFlags int

const (
	MemberQuiet   MemberFlags = 0x1 // no presence lines
	MemberHide    MemberFlags = 0x2 // absent from who lists
	MemberGag     MemberFlags = 0x4 // hears nothing
	MemberCombine MemberFlags = 0x8 // presence lines merged across channels
)

// SendFlags control a single broadcast.
type SendFlags int

const (
	SendSpeech   SendFlags = 0x1
	SendPose     SendFlags = 0x2
	SendSemipose SendFlags = 0x4
	SendEmit     SendFlags = 0x8
	SendTypeMask SendFlags = 0xF

	SendCheckQuiet SendFlags = 0x10  // skip members with MemberQuiet
	SendNoSpoof    SendFlags = 0x20  // recall records no speaker
	SendPresence   SendFlags = 0x40  // connection or join/leave line
	SendQuiet      SendFlags = 0x80  // no <Channel> prefix
	SendNoCombine  SendFlags = 0x100 // skip members with MemberCombine
	SendSeeAll     SendFlags = 0x200 // only see-all recipients and the speaker
)

// LockKind selects one of a channel's five locks.
type LockKind int

const (
	LockJoin LockKind = iota
	LockSpeak
	LockModify
	LockSee
	LockHide
	numLocks
)

var lockKindNames = [numLocks]string{"join", "speak", "modify", "see", "hide"}

func (k LockKind) String() string {
	if k < 0 || k >= numLocks {
		return "unknown"
	}
	return lockKindNames[k]
}

// ParseLockKind maps a lock name (join, speak, modify or mod, see, hide) to
// its kind, case-insensitively.
func ParseLockKind(s string) (LockKind, bool) {
	switch foldName(s) {
	case "join":
		return LockJoin, true
	case "speak":
		return LockSpeak, true
	case "modify", "mod":
		return LockModify, true
	case "see":
		return LockSee, true
	case "hide":
		return LockHide, true
	}
	return 0, false
}

// MatchResult classifies a channel name lookup.
type MatchResult int

const (
	MatchNone MatchResult = iota
	MatchExact
	MatchPartial
	MatchAmbiguous
)

// MatchScope filters partial-match listings.
type MatchScope int

const (
	ScopeAll MatchScope = iota
	ScopeOn
	ScopeOff
)

// Member is one subscriber's record on a channel.
type Member struct {
	Who   gamedb.DBRef
	Flags MemberFlags
	Title string

	sortKey string
}

func memberLess(a, b *Member) bool {
	if a.sortKey != b.sortKey {
		return a.sortKey < b.sortKey
	}
	return a.Who < b.Who
}

// Channel is a named chat channel.
type Channel struct {
	name      string
	key       string
	desc      string
	privs     Privs
	creator   gamedb.DBRef
	cost      int
	mogrifier gamedb.DBRef
	locks     [numLocks]Lock
	messages  int
	buffer    *recall.Buffer

	roster  *btree.BTreeG[*Member]
	members map[gamedb.DBRef]*Member
}

const treeDegree = 8

func newChannel(name string) *Channel {
	return &Channel{
		name:      name,
		key:       normalizeName(name),
		mogrifier: gamedb.Nothing,
		creator:   gamedb.Nothing,
		roster:    btree.NewG(treeDegree, memberLess),
		members:   make(map[gamedb.DBRef]*Member),
	}
}

func channelLess(a, b *Channel) bool { return a.key < b.key }

func (c *Channel) Name() string                    { return c.name }
func (c *Channel) Description() string             { return c.desc }
func (c *Channel) Privs() Privs                    { return c.privs }
func (c *Channel) Creator() gamedb.DBRef           { return c.creator }
func (c *Channel) Cost() int                       { return c.cost }
func (c *Channel) Mogrifier() gamedb.DBRef         { return c.mogrifier }
func (c *Channel) Messages() int                   { return c.messages }
func (c *Channel) Buffer() *recall.Buffer          { return c.buffer }
func (c *Channel) Lock(kind LockKind) Lock         { return c.locks[kind] }
func (c *Channel) NumUsers() int                   { return len(c.members) }
func (c *Channel) Has(flag Privs) bool             { return c.privs&flag != 0 }
func (c *Channel) Member(who gamedb.DBRef) *Member { return c.members[who] }

// Members yields the roster in name order.
func (c *Channel) Members() iter.Seq[*Member] {
	return func(yield func(*Member) bool) {
		c.roster.Ascend(func(m *Member) bool { return yield(m) })
	}
}

// Line describes one completed broadcast, as reported to an Observer.
type Line struct {
	Channel    string
	Speaker    gamedb.DBRef
	Flags      SendFlags
	Text       string
	Recipients int
	Buffered   bool
}
