package chat

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"unicode"

	"github.com/google/btree"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// index holds the channel directory and the per-subscriber channel lists.
// link and unlink are the only writers of memberships.
type index struct {
	channels *btree.BTreeG[*Channel]
	subs     map[gamedb.DBRef]*btree.BTreeG[*Channel]
}

func newIndex() *index {
	return &index{
		channels: btree.NewG(treeDegree, channelLess),
		subs:     make(map[gamedb.DBRef]*btree.BTreeG[*Channel]),
	}
}

func (ix *index) link(c *Channel, m *Member) error {
	if _, ok := c.members[m.Who]; ok {
		return ErrAlreadyOn
	}
	list := ix.subs[m.Who]
	if list == nil {
		list = btree.NewG(treeDegree, channelLess)
		ix.subs[m.Who] = list
	}
	if _, dup := list.ReplaceOrInsert(c); dup {
		return ErrAlreadyOn
	}
	c.members[m.Who] = m
	c.roster.ReplaceOrInsert(m)
	return nil
}

func (ix *index) unlink(c *Channel, who gamedb.DBRef) (*Member, error) {
	m, ok := c.members[who]
	if !ok {
		return nil, ErrNotOn
	}
	delete(c.members, who)
	c.roster.Delete(m)
	if list := ix.subs[who]; list != nil {
		list.Delete(c)
		if list.Len() == 0 {
			delete(ix.subs, who)
		}
	}
	return m, nil
}

// Directory is the set of channels and their memberships.
type Directory struct {
	world    World
	gate     Gate
	notifier Notifier
	rw       Rewriter
	obs      Observer
	inter    Interactor
	opts     Options
	log      *log.Logger

	idx *index
}

// New returns an empty directory.
func New(cfg Config) (*Directory, error) {
	if cfg.World == nil || cfg.Gate == nil || cfg.Notifier == nil {
		return nil, errors.New("chat: World, Gate and Notifier are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	opts := cfg.Options
	if opts.MaxBufferBlocks <= 0 {
		opts.MaxBufferBlocks = DefaultOptions().MaxBufferBlocks
	}
	return &Directory{
		world:    cfg.World,
		gate:     cfg.Gate,
		notifier: cfg.Notifier,
		rw:       cfg.Rewriter,
		obs:      cfg.Observer,
		inter:    cfg.Interactor,
		opts:     opts,
		log:      logger,
		idx:      newIndex(),
	}, nil
}

// Options returns the current tunables.
func (d *Directory) Options() Options { return d.opts }

// SetOptions replaces the tunables, as on a configuration reload.
func (d *Directory) SetOptions(o Options) {
	if o.MaxBufferBlocks <= 0 {
		o.MaxBufferBlocks = DefaultOptions().MaxBufferBlocks
	}
	d.opts = o
}

// Len returns the number of channels.
func (d *Directory) Len() int { return d.idx.channels.Len() }

// All yields every channel in name order.
func (d *Directory) All() iter.Seq[*Channel] {
	return func(yield func(*Channel) bool) {
		d.idx.channels.Ascend(func(c *Channel) bool { return yield(c) })
	}
}

// Lookup returns the channel with exactly this name, ignoring markup,
// surrounding <> and case.
func (d *Directory) Lookup(name string) (*Channel, bool) {
	return d.idx.channels.Get(&Channel{key: normalizeName(name)})
}

// ChannelsOf yields the channels who is on, in name order.
func (d *Directory) ChannelsOf(who gamedb.DBRef) iter.Seq[*Channel] {
	return func(yield func(*Channel) bool) {
		list := d.idx.subs[who]
		if list == nil {
			return
		}
		list.Ascend(func(c *Channel) bool { return yield(c) })
	}
}

// NumChannelsOf returns how many channels who is on.
func (d *Directory) NumChannelsOf(who gamedb.DBRef) int {
	if list := d.idx.subs[who]; list != nil {
		return list.Len()
	}
	return 0
}

// OnChannel reports whether who is a member of c.
func (d *Directory) OnChannel(c *Channel, who gamedb.DBRef) bool {
	_, ok := c.members[who]
	return ok
}

func (d *Directory) ownedBy(owner gamedb.DBRef) int {
	n := 0
	for c := range d.All() {
		if c.creator == owner {
			n++
		}
	}
	return n
}

// checkCreate runs every creation check that does not cost anything.
func (d *Directory) checkCreate(name string, privs Privs, creator gamedb.DBRef) error {
	if d.opts.MaxChannels > 0 && d.Len() >= d.opts.MaxChannels {
		return ErrTooManyChannels
	}
	if err := d.checkName(name, nil); err != nil {
		return err
	}
	if d.opts.MaxPlayerChannels > 0 && !d.world.Has(creator, PowPrivileged) &&
		d.ownedBy(d.world.Owner(creator)) >= d.opts.MaxPlayerChannels {
		return ErrQuota
	}
	if !d.canPriv(creator, privs&^PrivDisabled) {
		return ErrPrivsDenied
	}
	return nil
}

// Create adds a channel. The creator's owner is charged the channel cost
// and becomes the channel's creator; the modify lock is set to the creator.
func (d *Directory) Create(name string, privs Privs, creator gamedb.DBRef) (*Channel, error) {
	if err := d.checkCreate(name, privs, creator); err != nil {
		return nil, err
	}
	return d.create(name, privs, creator)
}

func (d *Directory) create(name string, privs Privs, creator gamedb.DBRef) (*Channel, error) {
	owner := d.world.Owner(creator)
	if !d.world.Payfor(owner, d.opts.ChannelCost) {
		return nil, ErrCantAfford
	}
	c := newChannel(name)
	c.privs = privs
	c.creator = owner
	c.cost = d.opts.ChannelCost
	lock, err := d.gate.Parse(creator, fmt.Sprintf("=%s", creator))
	if err != nil {
		d.world.Giveto(owner, d.opts.ChannelCost)
		return nil, fmt.Errorf("chat: create %s: modify lock: %w", name, err)
	}
	c.locks[LockModify] = lock
	d.idx.channels.ReplaceOrInsert(c)
	return c, nil
}

// Delete removes every member, refunds the creator and drops the channel.
func (d *Directory) Delete(c *Channel) {
	d.Wipe(c)
	d.world.Giveto(c.creator, c.cost)
	d.idx.channels.Delete(c)
}

// Rename changes a channel's name, keeping every index ordered.
func (d *Directory) Rename(c *Channel, name string) error {
	if err := d.checkName(name, c); err != nil {
		return err
	}
	d.idx.channels.Delete(c)
	for who := range c.members {
		if list := d.idx.subs[who]; list != nil {
			list.Delete(c)
		}
	}
	c.name = name
	c.key = normalizeName(name)
	d.idx.channels.ReplaceOrInsert(c)
	for who := range c.members {
		if list := d.idx.subs[who]; list != nil {
			list.ReplaceOrInsert(c)
		}
	}
	return nil
}

// SetPrivs replaces a channel's permission bits.
func (d *Directory) SetPrivs(c *Channel, privs Privs) { c.privs = privs }

// SetDescription replaces a channel's description.
func (d *Directory) SetDescription(c *Channel, desc string) { c.desc = desc }

// SetLock installs or, with a nil lock, clears one of the channel's locks.
func (d *Directory) SetLock(c *Channel, kind LockKind, lock Lock) { c.locks[kind] = lock }

// SetMogrifier sets the rewrite object, or gamedb.Nothing for none.
func (d *Directory) SetMogrifier(c *Channel, obj gamedb.DBRef) { c.mogrifier = obj }

// SetBuffer resizes the recall buffer. Zero blocks removes it.
func (d *Directory) SetBuffer(c *Channel, blocks int) {
	if blocks > d.opts.MaxBufferBlocks {
		blocks = d.opts.MaxBufferBlocks
	}
	switch {
	case blocks <= 0:
		c.buffer = nil
	case c.buffer == nil:
		c.buffer = recall.New(blocks)
	default:
		c.buffer.Resize(blocks)
	}
}

// SetTitle sets who's title on c.
func (d *Directory) SetTitle(c *Channel, who gamedb.DBRef, title string) error {
	m, ok := c.members[who]
	if !ok {
		return ErrNotOn
	}
	m.Title = title
	return nil
}

// ValidTitle reports why title is unacceptable, or "" if it is fine.
func (d *Directory) ValidTitle(title string) string {
	if len([]rune(StripMarkup(title))) > d.opts.TitleLen {
		return "Title too long."
	}
	if strings.ContainsFunc(StripMarkup(title), func(r rune) bool {
		return r == '\a' || (r != ' ' && unicode.IsSpace(r))
	}) {
		return "Invalid character in title."
	}
	return ""
}
