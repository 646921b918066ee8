package chat

import (
	"log"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Power names an attribute of an object the chat system asks the world about.
type Power int

const (
	PowWizard        Power = iota
	PowPrivileged          // wizard or royalty
	PowSeeAll              // may examine anything
	PowPrivWho             // sees hidden players
	PowCanHide             // may hide on any channel
	PowGuest               // guest character
	PowLoud                // speaks past speak locks
	PowPemitAll            // may @cemit anywhere (with PowSeeAll)
	PowChatPrivs           // may use Admin channels
	PowNspemit             // may @nscemit
	PowUseFirstMatch       // takes the first of ambiguous channel matches
	PowDarkLegal           // joins and leaves silently
	PowQuiet               // suppresses confirmations
)

// World is the object database as seen by the chat system.
type World interface {
	Valid(ref gamedb.DBRef) bool
	Name(ref gamedb.DBRef) string
	Type(ref gamedb.DBRef) gamedb.ObjectType
	Owner(ref gamedb.DBRef) gamedb.DBRef
	Connected(ref gamedb.DBRef) bool
	Has(ref gamedb.DBRef, p Power) bool
	Controls(who, what gamedb.DBRef) bool
	// Payfor debits cost from who, reporting whether it could pay.
	Payfor(who gamedb.DBRef, cost int) bool
	Giveto(who gamedb.DBRef, amount int)
	// Match resolves an object name from actor's point of view, returning
	// gamedb.Nothing or gamedb.Ambiguous on failure.
	Match(actor gamedb.DBRef, name string) gamedb.DBRef
	LookupPlayer(name string) gamedb.DBRef
	// Sessions lists the player of every open connection. A player with
	// several connections appears several times.
	Sessions() []gamedb.DBRef
}

// Lock is an opaque compiled lock key. String returns the storable form.
type Lock interface {
	String() string
}

// Gate compiles and evaluates channel locks.
type Gate interface {
	Parse(actor gamedb.DBRef, text string) (Lock, error)
	// Eval tests actor against lock with chanName bound as %0.
	Eval(actor gamedb.DBRef, lock Lock, chanName string) bool
	// Unparse renders lock for display to viewer.
	Unparse(viewer gamedb.DBRef, lock Lock) string
}

// Rewriter runs softcode hooks stored on objects.
type Rewriter interface {
	// CanUse reports whether actor passes obj's use lock.
	CanUse(actor, obj gamedb.DBRef) bool
	// Invoke calls the stage hook on obj with enactor actor. ok is false
	// when obj has no such hook.
	Invoke(obj gamedb.DBRef, stage string, actor gamedb.DBRef, args []string) (result string, ok bool)
}

// Notifier delivers text to players.
type Notifier interface {
	Notify(to gamedb.DBRef, text string)
	// NotifyChannel delivers a channel line. channel is the channel name,
	// or a "|"-joined list for combined presence lines.
	NotifyChannel(to gamedb.DBRef, channel, text string, presence bool)
}

// Observer receives every completed broadcast.
type Observer interface {
	ChannelLine(Line)
}

// Interactor decides whether from may reach to on Interact channels.
type Interactor interface {
	Interacts(from, to gamedb.DBRef, presence bool) bool
}

// Options are the tunables of a Directory.
type Options struct {
	MaxChannels       int
	MaxPlayerChannels int // 0 means unlimited
	ChannelCost       int
	TitleLen          int
	DefaultPrivs      string
	MoneySingular     string
	MoneyPlural       string
	StripQuote        bool // drop a leading " from speech
	NoisyCemit        bool // @cemit shows the channel prefix by default
	MaxBufferBlocks   int
}

// DefaultOptions returns the stock tunables.
func DefaultOptions() Options {
	return Options{
		MaxChannels:       200,
		MaxPlayerChannels: 5,
		ChannelCost:       1000,
		TitleLen:          80,
		DefaultPrivs:      "player",
		MoneySingular:     "penny",
		MoneyPlural:       "pennies",
		MaxBufferBlocks:   10,
	}
}

func (o Options) money(n int) string {
	if n == 1 {
		return o.MoneySingular
	}
	return o.MoneyPlural
}

// Config wires a Directory to its collaborators. World, Gate and Notifier
// are required.
type Config struct {
	World      World
	Gate       Gate
	Notifier   Notifier
	Rewriter   Rewriter
	Observer   Observer
	Interactor Interactor
	Options    Options
	Logger     *log.Logger
}
