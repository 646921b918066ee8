package chat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// listName pads a channel name to 30 display columns, ignoring markup.
func listName(name string) string {
	if pad := 30 - len([]rune(StripMarkup(name))); pad > 0 {
		return name + strings.Repeat(" ", pad)
	}
	return name
}

func mark(on bool, ch byte) byte {
	if on {
		return ch
	}
	return '-'
}

// hasNamePrefix compares markup-free names case-insensitively.
func hasNamePrefix(name, prefix string) bool {
	return strings.HasPrefix(foldName(StripMarkup(name)), foldName(StripMarkup(prefix)))
}

// DoList shows the channels player can see whose names start with prefix.
// quiet gives a single comma separated line.
func (d *Directory) DoList(player gamedb.DBRef, prefix string, scope MatchScope, quiet bool) {
	if !quiet {
		d.tell(player, "%-30s %-5s %8s %-16s %-9s %-3s", "Name", "Users", "Msgs", "Chan Type", "Status", "Buf")
	}
	var names []string
	for c := range d.All() {
		if !d.CanSee(c, player) || !hasNamePrefix(c.name, prefix) {
			continue
		}
		m, on := c.members[player]
		if (scope == ScopeOn && !on) || (scope == ScopeOff && on) {
			continue
		}
		if quiet {
			names = append(names, c.name)
			continue
		}
		p := c.privs
		typ := mark(p&PrivAdmin != 0, 'A')
		if typ == '-' {
			typ = mark(p&PrivWizard != 0, 'W')
		}
		status := "Off"
		var uq, uh, uc byte = ' ', ' ', ' '
		if on {
			status = "On"
			if m.Flags&MemberGag != 0 {
				status = "Gag"
			}
			if m.Flags&MemberQuiet != 0 {
				uq = 'Q'
			}
			if m.Flags&MemberHide != 0 {
				uh = 'H'
			}
			if m.Flags&MemberCombine != 0 {
				uc = 'C'
			}
		}
		blocks := 0
		if c.buffer != nil {
			blocks = c.buffer.Blocks()
		}
		d.tell(player, "%s %5d %8d [%c%c%c%c%c%c%c %c%c%c%c%c%c] [%-3s %c%c%c] %3d",
			listName(c.name), c.NumUsers(), c.messages,
			mark(p&PrivDisabled != 0, 'D'), mark(p&PrivPlayer != 0, 'P'),
			mark(p&PrivObject != 0, 'T'), typ, mark(p&PrivQuiet != 0, 'Q'),
			mark(p&PrivCanHide != 0, 'H'), mark(p&PrivOpen != 0, 'o'),
			mark(c.locks[LockJoin] != nil, 'j'), mark(c.locks[LockSpeak] != nil, 's'),
			mark(c.locks[LockModify] != nil, 'm'), mark(c.locks[LockSee] != nil, 'v'),
			mark(c.locks[LockHide] != nil, 'h'), mark(c.creator == player, '*'),
			status, uq, uh, uc, blocks)
	}
	if quiet {
		list := strings.Join(names, ", ")
		if list == "" {
			list = "(None)"
		}
		d.tell(player, "CHAT: Channel list: %s", list)
	}
}

// lockDisplayOrder is the order locks are shown in.
var lockDisplayOrder = []struct {
	kind  LockKind
	label string
	cmd   string
}{
	{LockModify, "    mod", "mod"},
	{LockHide, "   hide", "hide"},
	{LockJoin, "   join", "join"},
	{LockSpeak, "  speak", "speak"},
	{LockSee, "    see", "see"},
}

// DoWhat describes every visible channel whose name starts with prefix.
func (d *Directory) DoWhat(player gamedb.DBRef, prefix string) {
	found := 0
	for c := range d.All() {
		if !hasNamePrefix(c.name, prefix) || !d.CanSee(c, player) {
			continue
		}
		found++
		d.tell(player, "%s", c.name)
		d.tell(player, "Description: %s", c.desc)
		d.tell(player, "Owner: %s", d.world.Name(c.creator))
		if c.mogrifier != gamedb.Nothing {
			d.tell(player, "Mogrifier: %s (%s)", d.world.Name(c.mogrifier), c.mogrifier)
		}
		d.tell(player, "Flags: %s", c.privs)
		if b := c.buffer; b != nil {
			d.tell(player, "Recall buffer: %db (%d full lines), with %d lines stored.", b.Size(), b.Blocks(), b.Len())
		}
		if !d.CanDecompile(c, player) {
			continue
		}
		var locks strings.Builder
		for _, l := range lockDisplayOrder {
			if lock := c.locks[l.kind]; lock != nil {
				fmt.Fprintf(&locks, "\n%s: %s", l.label, d.gate.Unparse(player, lock))
			}
		}
		if locks.Len() > 0 {
			d.tell(player, "Locks:%s", locks.String())
		}
	}
	if found == 0 {
		d.tell(player, "CHAT: I don't recognize that channel.")
	}
}

// DoDecompile prints the commands that recreate every channel whose name
// starts with prefix. brief leaves out the members.
func (d *Directory) DoDecompile(player gamedb.DBRef, prefix string, brief bool) {
	found := 0
	privWho := d.world.Has(player, PowPrivWho)
	for c := range d.All() {
		if !hasNamePrefix(c.name, prefix) {
			continue
		}
		if !d.CanDecompile(c, player) {
			if d.CanSee(c, player) {
				found++
				d.tell(player, "CHAT: You don't have permission to decompile <%s>.", c.name)
			}
			continue
		}
		found++
		clean := StripMarkup(c.name)
		d.tell(player, "@channel/add %s = %s", c.name, c.privs)
		d.tell(player, "@channel/chown %s = %s", clean, d.world.Name(c.creator))
		if c.mogrifier != gamedb.Nothing {
			d.tell(player, "@channel/mogrifier %s = %s", clean, c.mogrifier)
		}
		for _, l := range lockDisplayOrder {
			if lock := c.locks[l.kind]; lock != nil {
				d.tell(player, "@clock/%s %s = %s", l.cmd, clean, d.gate.Unparse(player, lock))
			}
		}
		if c.desc != "" {
			d.tell(player, "@channel/desc %s = %s", clean, c.desc)
		}
		if c.buffer != nil {
			d.tell(player, "@channel/buffer %s = %d", clean, c.buffer.Blocks())
		}
		if brief {
			continue
		}
		for m := range c.Members() {
			if m.Flags&MemberHide != 0 && !privWho {
				continue
			}
			if d.isPlayer(m.Who) {
				d.tell(player, "@channel/on %s = *%s", clean, d.world.Name(m.Who))
			} else {
				d.tell(player, "@channel/on %s = %s", clean, m.Who)
			}
		}
	}
	if found == 0 {
		d.tell(player, "CHAT: No channel matches that string.")
	}
}

// recallSpan is a parsed recall request.
type recallSpan struct {
	lines  int
	start  int // 0-based, -1 for "the last lines"
	window time.Duration
}

// parseRecallLines reads a line count (0 for everything) or a time window.
func parseRecallLines(s string, span *recallSpan) bool {
	if s == "" {
		span.lines = 10
		return true
	}
	if isStrictInt(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return false
		}
		if n == 0 {
			n = math.MaxInt
		}
		span.lines = n
		return true
	}
	w, ok := parseWindow(s)
	if !ok {
		return false
	}
	span.window = w
	span.lines = 0
	return true
}

// parseWindow accepts Go durations ("1h30m") and the softcode time form
// "2d 3h", where each number carries one of the units s m h d w and a
// bare number counts seconds.
func parseWindow(s string) (time.Duration, bool) {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	var total time.Duration
	for _, part := range strings.Fields(s) {
		unit := time.Second
		switch part[len(part)-1] {
		case 's', 'S':
			part = part[:len(part)-1]
		case 'm', 'M':
			unit, part = time.Minute, part[:len(part)-1]
		case 'h', 'H':
			unit, part = time.Hour, part[:len(part)-1]
		case 'd', 'D':
			unit, part = 24*time.Hour, part[:len(part)-1]
		case 'w', 'W':
			unit, part = 7*24*time.Hour, part[:len(part)-1]
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total += time.Duration(n) * unit
	}
	return total, total > 0
}

// recallEntries selects the entries of b a span covers, applying the
// see-all filter for viewer. all reports whether the whole buffer is in the
// span.
func (d *Directory) recallEntries(b *recall.Buffer, viewer gamedb.DBRef, span recallSpan) (out []recall.Entry, all, found bool) {
	lines := span.lines
	if span.window > 0 {
		lines = b.CountWithin(span.window)
	}
	total := b.Len()
	start := span.start
	if start < 0 {
		start = total - lines
	}
	if total == 0 || total <= start {
		return nil, false, false
	}
	all = start <= 0 && lines >= total
	seeAll := d.world.Has(viewer, PowSeeAll)
	i := 0
	for e := range b.All() {
		if i < start {
			i++
			continue
		}
		if lines <= 0 {
			break
		}
		lines--
		if e.Kind == recall.KindSeeAll && !seeAll && e.Speaker != viewer {
			continue
		}
		out = append(out, e)
	}
	return out, all, true
}

// DoRecall replays a channel's recall buffer to player. lines is a count,
// 0 for everything, or a time window; start is an optional 1-based first
// line. quiet omits timestamps.
func (d *Directory) DoRecall(player gamedb.DBRef, name, lines, start string, quiet bool) {
	if name == "" {
		d.tell(player, "You need to specify a channel.")
		return
	}
	span := recallSpan{start: -1}
	if start != "" {
		n, err := strconv.Atoi(strings.TrimSpace(start))
		if err != nil {
			d.tell(player, "Which line do you want to start recall from?")
			return
		}
		span.start = n - 1
	}
	if !parseRecallLines(lines, &span) || (span.window == 0 && span.lines < 1) {
		d.tell(player, "How many lines did you want to recall?")
		return
	}
	c, ok := d.seeChannel(player, name)
	if !ok {
		return
	}
	if !d.OnChannel(c, player) && (d.world.Has(player, PowGuest) || !d.CanJoin(c, player)) {
		d.tell(player, "CHAT: You must be able to join a channel to recall from it.")
		return
	}
	if c.buffer == nil {
		d.tell(player, "CHAT: That channel doesn't have a recall buffer.")
		return
	}
	entries, all, found := d.recallEntries(c.buffer, player, span)
	if !found {
		d.tell(player, "CHAT: Nothing to recall.")
		return
	}
	d.tell(player, "CHAT: Recall from channel <%s>", c.name)
	for _, e := range entries {
		if quiet {
			d.tell(player, "%s", e.Text)
		} else {
			d.tell(player, "[%s] %s", e.Time.Format(time.ANSIC), e.Text)
		}
	}
	d.tell(player, "CHAT: End recall")
	if !all {
		d.tell(player, "CHAT: To recall the entire buffer, use @chan/recall %s=0", c.name)
	}
}
