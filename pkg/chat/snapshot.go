package chat

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/mushchat/pkg/flatfile"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// snapshotVersion heads every labeled snapshot.
const snapshotVersion = "+V1"

// legacyLockOrder is the lock order of the positional format.
var legacyLockOrder = [numLocks]LockKind{LockJoin, LockSpeak, LockModify, LockSee, LockHide}

// LoadOptions control Load.
type LoadOptions struct {
	// Restart keeps gags, as when reloading in place.
	Restart bool
	// WorldStamp is the save time of the world database. A different
	// snapshot time is logged as a warning. Zero skips the check.
	WorldStamp time.Time
}

// Save writes every channel in the labeled format.
func (d *Directory) Save(w io.Writer, stamp time.Time) error {
	fw := flatfile.NewWriter(w)
	fw.Raw(snapshotVersion)
	fw.String("savedtime", stamp.Format(time.ANSIC))
	fw.Int("channels", d.Len())
	for c := range d.All() {
		fw.String(" name", c.name)
		fw.String("  description", c.desc)
		fw.Int("  flags", int(c.privs))
		fw.Ref("  creator", c.creator)
		fw.Int("  cost", c.cost)
		blocks := 0
		if c.buffer != nil {
			blocks = c.buffer.Blocks()
		}
		fw.Int("  buffer", blocks)
		fw.Ref("  mogrifier", c.mogrifier)
		for kind := LockJoin; kind < numLocks; kind++ {
			if c.locks[kind] == nil {
				continue
			}
			fw.String("  lock", kind.String())
			fw.String("   key", c.locks[kind].String())
		}
		fw.Int("  users", c.NumUsers())
		for m := range c.Members() {
			fw.Ref("   dbref", m.Who)
			fw.Int("    flags", int(m.Flags))
			fw.String("    title", m.Title)
		}
	}
	fw.EOD()
	if err := fw.Flush(); err != nil {
		return fmt.Errorf("chat: save: %w", err)
	}
	return nil
}

// Load replaces the directory with a snapshot in either the labeled or the
// legacy positional format. On error the directory is left unchanged.
func (d *Directory) Load(r io.Reader, opts LoadOptions) error {
	rd := flatfile.NewReader(r)
	first, err := rd.Peek()
	if err != nil {
		return fmt.Errorf("chat: load: %w", err)
	}
	ld := &loader{d: d, rd: rd, opts: opts, idx: newIndex()}
	if first == '+' {
		err = ld.labeled()
	} else {
		err = ld.legacy()
	}
	if err != nil {
		return err
	}
	d.idx = ld.idx
	return nil
}

type loader struct {
	d    *Directory
	rd   *flatfile.Reader
	opts LoadOptions
	idx  *index
}

func (ld *loader) fail(what string, err error) error {
	return fmt.Errorf("chat: load: line %d: %s: %w", ld.rd.Line(), what, err)
}

func (ld *loader) checkCount(n int) error {
	if n < 0 {
		return ld.fail("channel count", fmt.Errorf("%w: negative count %d", ErrBadSnapshot, n))
	}
	if limit := ld.d.opts.MaxChannels; limit > 0 && n > limit {
		return ld.fail("channel count", fmt.Errorf("%w: %d channels, maximum is %d", ErrTooManyChannels, n, limit))
	}
	return nil
}

func (ld *loader) labeled() error {
	header, err := ld.rd.ReadLine()
	if err != nil {
		return ld.fail("header", err)
	}
	if !strings.HasPrefix(header, "+V") {
		return ld.fail("header", fmt.Errorf("%w: got %q", ErrBadSnapshot, header))
	}
	saved, err := ld.rd.LabeledString("savedtime")
	if err != nil {
		return ld.fail("savedtime", err)
	}
	ld.checkStamp(saved)
	n, err := ld.rd.LabeledInt("channels")
	if err != nil {
		return ld.fail("channels", err)
	}
	if err := ld.checkCount(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := ld.labeledChannel(); err != nil {
			return err
		}
	}
	ld.checkEnd()
	return nil
}

func (ld *loader) checkStamp(saved string) {
	if ld.opts.WorldStamp.IsZero() {
		return
	}
	if want := ld.opts.WorldStamp.Format(time.ANSIC); saved != want {
		ld.d.log.Printf("chat: channel database saved %q, world saved %q", saved, want)
	}
}

func (ld *loader) checkEnd() {
	line, err := ld.rd.ReadLine()
	for err == nil && strings.TrimSpace(line) == "" {
		line, err = ld.rd.ReadLine()
	}
	if err != nil || strings.TrimSpace(line) != flatfile.EndOfDump {
		ld.d.log.Printf("chat: channel database has no end-of-dump marker")
	}
}

func (ld *loader) labeledChannel() error {
	rd := ld.rd
	name, err := rd.LabeledString("name")
	if err != nil {
		return ld.fail("name", err)
	}
	c := newChannel(name)
	kept := ld.insert(c)
	if c.desc, err = rd.LabeledString("description"); err != nil {
		return ld.fail("description", err)
	}
	flags, err := rd.LabeledInt("flags")
	if err != nil {
		return ld.fail("flags", err)
	}
	c.privs = Privs(flags)
	if c.creator, err = rd.LabeledRef("creator"); err != nil {
		return ld.fail("creator", err)
	}
	if c.cost, err = rd.LabeledInt("cost"); err != nil {
		return ld.fail("cost", err)
	}
	blocks, err := rd.LabeledInt("buffer")
	if err != nil {
		return ld.fail("buffer", err)
	}
	if blocks > 0 {
		c.buffer = recall.New(min(blocks, ld.d.opts.MaxBufferBlocks))
	}
	if c.mogrifier, err = rd.LabeledRef("mogrifier"); err != nil {
		return ld.fail("mogrifier", err)
	}

	users := 0
	for {
		label, value, err := rd.Label()
		if err != nil {
			return ld.fail("lock or users", err)
		}
		if label == "users" {
			if users, err = strconv.Atoi(value); err != nil {
				return ld.fail("users", err)
			}
			break
		}
		if label != "lock" {
			return ld.fail("lock", fmt.Errorf("%w: got %q", flatfile.ErrLabel, label))
		}
		key, err := rd.LabeledString("key")
		if err != nil {
			return ld.fail("lock key", err)
		}
		ld.setLock(c, value, key)
	}

	for i := 0; i < users; i++ {
		who, err := rd.LabeledRef("dbref")
		if err != nil {
			return ld.fail("user dbref", err)
		}
		uf, err := rd.LabeledInt("flags")
		if err != nil {
			return ld.fail("user flags", err)
		}
		title, err := rd.LabeledString("title")
		if err != nil {
			return ld.fail("user title", err)
		}
		if kept {
			ld.addUser(c, who, MemberFlags(uf), title)
		}
	}
	return nil
}

func (ld *loader) setLock(c *Channel, kindName, key string) {
	kind, ok := ParseLockKind(kindName)
	if !ok {
		ld.d.log.Printf("chat: unknown lock type %q on channel %s", kindName, c.name)
		return
	}
	if key == "" {
		return
	}
	lock, err := ld.d.gate.Parse(c.creator, key)
	if err != nil {
		ld.d.log.Printf("chat: bad %s lock on channel %s: %v", kind, c.name, err)
		return
	}
	c.locks[kind] = lock
}

func (ld *loader) addUser(c *Channel, who gamedb.DBRef, flags MemberFlags, title string) {
	w := ld.d.world
	if !w.Valid(who) || !ld.d.TypeOK(c, who) {
		ld.d.log.Printf("chat: Bad object #%d removed from channel %s", who, c.name)
		return
	}
	if !ld.opts.Restart {
		flags &^= MemberGag
	}
	m := &Member{Who: who, Flags: flags, Title: title, sortKey: foldName(w.Name(who))}
	if err := ld.idx.link(c, m); err != nil {
		ld.d.log.Printf("chat: duplicate user #%d on channel %s", who, c.name)
	}
}

// insert adds a loaded channel. A channel whose name is empty or already
// taken is dropped and reported false.
func (ld *loader) insert(c *Channel) bool {
	if _, dup := ld.idx.channels.Get(c); dup || c.key == "" {
		ld.d.log.Printf("chat: duplicate or empty channel name %q dropped", c.name)
		return false
	}
	ld.idx.channels.ReplaceOrInsert(c)
	return true
}

func (ld *loader) legacy() error {
	rd := ld.rd
	n, err := rd.Int()
	if err != nil {
		return ld.fail("channel count", err)
	}
	if err := ld.checkCount(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := rd.QuotedString()
		if err != nil {
			return ld.fail("name", err)
		}
		c := newChannel(name)
		kept := ld.insert(c)
		if c.desc, err = rd.QuotedString(); err != nil {
			return ld.fail("description", err)
		}
		flags, err := rd.Int()
		if err != nil {
			return ld.fail("flags", err)
		}
		c.privs = Privs(flags)
		creator, err := rd.Int()
		if err != nil {
			return ld.fail("creator", err)
		}
		c.creator = gamedb.DBRef(creator)
		if c.cost, err = rd.Int(); err != nil {
			return ld.fail("cost", err)
		}
		for _, kind := range legacyLockOrder {
			key, err := rd.QuotedString()
			if err != nil {
				return ld.fail(kind.String()+" lock", err)
			}
			ld.setLock(c, kind.String(), key)
		}
		users, err := rd.Int()
		if err != nil {
			return ld.fail("users", err)
		}
		for j := 0; j < users; j++ {
			who, err := rd.Int()
			if err != nil {
				return ld.fail("user dbref", err)
			}
			uf, err := rd.Int()
			if err != nil {
				return ld.fail("user flags", err)
			}
			title, err := rd.QuotedString()
			if err != nil {
				return ld.fail("user title", err)
			}
			if kept {
				ld.addUser(c, gamedb.DBRef(who), MemberFlags(uf), title)
			}
		}
	}
	ld.checkEnd()
	return nil
}
