package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// Function error results.
const (
	errNoChannelGiven = "#-1 NO CHANNEL GIVEN"
	errNoSuchChannel  = "#-1 NO SUCH CHANNEL"
	errAmbiguous      = "#-2 AMBIGUOUS CHANNEL NAME"
	errNotOnChannel   = "#-1 NOT ON CHANNEL"
	errNoPermsChannel = "#-1 NO PERMISSIONS FOR CHANNEL"
	errInvalidArg     = "#-1 INVALID ARGUMENT"
	errNoRecall       = "#-1 NO RECALL BUFFER"
	errNoBuffer       = "#-1 CHANNEL DOES NOT HAVE A BUFFER"
	errNoLockType     = "#-1 NO SUCH LOCK TYPE"
	errNoText         = "#-1 NO TEXT GIVEN"
	errNoMatch        = "#-1 NO MATCH"
	errPerm           = "#-1 PERMISSION DENIED"
	errInt            = "#-1 ARGUMENT MUST BE INTEGER"
	errUint           = "#-1 ARGUMENT MUST BE POSITIVE INTEGER"
	errDelim          = "#-1 SEPARATOR MUST BE ONE CHARACTER"
)

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// findFn resolves a channel for a function, returning an error result on
// failure.
func (d *Directory) findFn(executor gamedb.DBRef, name string) (*Channel, string) {
	if name == "" {
		return nil, errNoChannelGiven
	}
	c, res := d.Find(name, executor)
	switch res {
	case MatchNone:
		return nil, errNoSuchChannel
	case MatchAmbiguous:
		return nil, errAmbiguous
	}
	return c, ""
}

// matchThing resolves an object argument.
func (d *Directory) matchThing(executor gamedb.DBRef, name string) (gamedb.DBRef, bool) {
	it := d.world.Match(executor, name)
	return it, it >= 0 && d.world.Valid(it)
}

func delimiter(s string) (string, bool) {
	switch len(s) {
	case 0:
		return " ", true
	case 1:
		return s, true
	}
	return "", false
}

// Channels implements channels([object][, delim]). With an object, it lists
// the channels the object is on that executor may know about; otherwise
// every channel executor can see. A one-character sole argument that does
// not match an object is taken as the delimiter.
func (d *Directory) Channels(executor gamedb.DBRef, args ...string) string {
	sepArg := 1
	if len(args) >= 1 && args[0] != "" {
		it := d.world.Match(executor, args[0])
		if it >= 0 && d.world.Valid(it) {
			sep, ok := delimiter(arg(args, 1))
			if !ok {
				return errDelim
			}
			canEx := d.canExamine(executor, it)
			privWho := d.world.Has(executor, PowPrivWho)
			var out []string
			for c := range d.ChannelsOf(it) {
				m := c.members[it]
				if canEx || (d.CanSee(c, executor) && (privWho || m.Flags&MemberHide == 0)) {
					out = append(out, c.name)
				}
			}
			return strings.Join(out, sep)
		}
		if len(args[0]) > 1 {
			if it == gamedb.Ambiguous {
				d.tell(executor, "I don't know which thing you mean.")
			} else {
				d.tell(executor, "I can't see that here.")
			}
			return ""
		}
		sepArg = 0
	}
	sep, ok := delimiter(arg(args, sepArg))
	if !ok {
		return errDelim
	}
	var out []string
	for c := range d.All() {
		if d.CanSee(c, executor) {
			out = append(out, c.name)
		}
	}
	return strings.Join(out, sep)
}

// Cwho implements cwho(channel[, on|off|all[, skipgagged]]), listing member
// dbrefs.
func (d *Directory) Cwho(executor gamedb.DBRef, args ...string) string {
	c, res := d.Find(arg(args, 0), executor)
	switch res {
	case MatchNone:
		d.tell(executor, "No such channel.")
		return ""
	case MatchAmbiguous:
		d.tell(executor, "I can't tell which channel you mean.")
		return ""
	}
	cond := "on"
	if s := arg(args, 1); s != "" {
		cond = strings.ToLower(s)
		if cond != "on" && cond != "off" && cond != "all" {
			return errInvalidArg
		}
	}
	skipGagged := parseBoolean(arg(args, 2))
	if !d.CanSee(c, d.world.Owner(executor)) && !d.CanSee(c, executor) {
		return errNoPermsChannel
	}
	priv := d.world.Has(executor, PowPrivWho)

	var out []string
	for m := range c.Members() {
		who := m.Who
		show := true
		if d.world.Type(who) != gamedb.TypeThing && cond != "all" {
			hidden := m.Flags&MemberHide != 0 && !priv
			if cond == "off" {
				show = !d.world.Connected(who) || hidden
			} else {
				show = d.world.Connected(who) && !hidden
			}
		}
		if !show || (skipGagged && m.Flags&MemberGag != 0) {
			continue
		}
		out = append(out, who.String())
	}
	return strings.Join(out, " ")
}

// Cflags implements cflags(channel[, object]). verbose gives names instead
// of letters, as clflags does.
func (d *Directory) Cflags(executor gamedb.DBRef, verbose bool, args ...string) string {
	c, errs := d.findFn(executor, arg(args, 0))
	if c == nil {
		return errs
	}
	if !d.CanSee(c, executor) {
		return errNoSuchChannel
	}
	if len(args) < 2 {
		if verbose {
			return c.privs.String()
		}
		return c.privs.Letters()
	}
	thing, ok := d.matchThing(executor, args[1])
	if !ok {
		return errNoMatch
	}
	if !d.canExamine(executor, thing) {
		return errPerm
	}
	m, on := c.members[thing]
	if !on {
		return errNotOnChannel
	}
	if verbose {
		return m.Flags.String()
	}
	return m.Flags.Letters()
}

// Cinfo implements cdesc, cbuffer, cusers and cmsgs, selected by field.
func (d *Directory) Cinfo(executor gamedb.DBRef, field, name string) string {
	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	if !d.CanSee(c, executor) {
		return errNoSuchChannel
	}
	switch strings.ToLower(field) {
	case "desc":
		return c.desc
	case "buffer":
		if c.buffer == nil {
			return "0"
		}
		return strconv.Itoa(c.buffer.Size())
	case "users":
		return strconv.Itoa(c.NumUsers())
	case "msgs":
		return strconv.Itoa(c.messages)
	}
	return errInvalidArg
}

// Ctitle implements ctitle(channel, object).
func (d *Directory) Ctitle(executor gamedb.DBRef, name, object string) string {
	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	thing, ok := d.matchThing(executor, object)
	if !ok {
		return errNoMatch
	}
	if !d.CanSee(c, executor) {
		return errNoSuchChannel
	}
	canEx := d.canExamine(executor, thing)
	ok = d.OnChannel(c, executor) || d.CanJoin(c, executor)
	m, on := c.members[thing]
	if !on {
		if canEx || ok {
			return errNotOnChannel
		}
		return errPerm
	}
	ok = ok && m.Flags&MemberHide == 0
	if !canEx && !ok {
		return errPerm
	}
	return m.Title
}

// Cstatus implements cstatus(channel, object): On, Gag or Off.
func (d *Directory) Cstatus(executor gamedb.DBRef, name, object string) string {
	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	thing, ok := d.matchThing(executor, object)
	if !ok {
		return errNoMatch
	}
	if !d.CanSee(c, executor) {
		return errNoSuchChannel
	}
	m, on := c.members[thing]
	if !on || (d.world.Type(thing) != gamedb.TypeThing && !d.world.Connected(thing)) {
		return "Off"
	}
	if m.Flags&MemberHide != 0 && !d.world.Has(executor, PowPrivWho) && !d.canExamine(executor, thing) {
		return "Off"
	}
	if m.Flags&MemberGag != 0 {
		return "Gag"
	}
	return "On"
}

// Cowner implements cowner(channel).
func (d *Directory) Cowner(executor gamedb.DBRef, name string) string {
	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	return c.creator.String()
}

// Cmogrifier implements cmogrifier(channel).
func (d *Directory) Cmogrifier(executor gamedb.DBRef, name string) string {
	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	return c.mogrifier.String()
}

// Clock implements clock(channel[/kind][, key]). With a key it sets the lock
// like @clock and returns nothing; otherwise it shows the lock to those who
// may decompile the channel. kind defaults to join.
func (d *Directory) Clock(executor gamedb.DBRef, args ...string) string {
	name, kindName, found := strings.Cut(arg(args, 0), "/")
	if !found {
		kindName = "join"
	}
	c, res := d.Find(name, executor)
	switch res {
	case MatchNone:
		return errNoSuchChannel
	case MatchAmbiguous:
		return errAmbiguous
	}
	kind, ok := ParseLockKind(kindName)
	if !ok {
		return errNoLockType
	}
	if len(args) >= 2 {
		d.DoLock(executor, name, args[1], kind)
		return ""
	}
	if !d.CanDecompile(c, executor) {
		return errPerm
	}
	lock := c.locks[kind]
	if lock == nil {
		return "*UNLOCKED*"
	}
	return d.gate.Unparse(executor, lock)
}

// Cbufferadd implements cbufferadd(channel, text[, spoof]), storing text in
// the recall buffer without broadcasting it. With spoof the line is
// attributed to enactor, which needs the nospoof-emit power.
func (d *Directory) Cbufferadd(executor, enactor gamedb.DBRef, args ...string) string {
	name, text := arg(args, 0), arg(args, 1)
	if name == "" {
		return errNoChannelGiven
	}
	if text == "" {
		return errNoText
	}
	speaker := executor
	if len(args) >= 3 && parseBoolean(args[2]) {
		if !d.world.Has(executor, PowNspemit) {
			return errPerm
		}
		speaker = enactor
	}
	c, res := d.Find(name, executor)
	switch res {
	case MatchNone:
		return errNoSuchChannel
	case MatchAmbiguous:
		return errAmbiguous
	}
	if !d.CanModify(c, executor) {
		return errPerm
	}
	if c.buffer == nil {
		return errNoBuffer
	}
	c.buffer.Append(recall.KindNormal, speaker, text)
	return ""
}

// Crecall implements crecall(channel[, lines[, start[, delim[, stamps]]]]).
func (d *Directory) Crecall(executor gamedb.DBRef, args ...string) string {
	name := arg(args, 0)
	if name == "" {
		return errNoSuchChannel
	}
	span := recallSpan{start: -1}
	if !parseRecallLines(arg(args, 1), &span) {
		return errInt
	}
	if s := arg(args, 2); s != "" {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errInt
		}
		span.start = n - 1
	}
	sep, ok := delimiter(arg(args, 3))
	if !ok {
		return errDelim
	}
	stamps := parseBoolean(arg(args, 4))
	if span.window == 0 && span.lines < 0 {
		return errUint
	}

	c, errs := d.findFn(executor, name)
	if c == nil {
		return errs
	}
	if !d.CanSee(c, executor) {
		if d.OnChannel(c, executor) {
			return errPerm
		}
		return errNoSuchChannel
	}
	if !d.OnChannel(c, executor) && !d.CanAccess(c, executor) {
		return errPerm
	}
	if c.buffer == nil {
		return errNoRecall
	}
	entries, _, _ := d.recallEntries(c.buffer, executor, span)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if stamps {
			out = append(out, "["+e.Time.Format(time.ANSIC)+"] "+e.Text)
		} else {
			out = append(out, e.Text)
		}
	}
	return strings.Join(out, sep)
}

// ChannelDescription lists the channels who is on, for examine output.
func (d *Directory) ChannelDescription(who gamedb.DBRef) string {
	if d.NumChannelsOf(who) == 0 {
		if d.isPlayer(who) {
			return "Channels: *NONE*"
		}
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Channels:")
	for c := range d.ChannelsOf(who) {
		sb.WriteByte(' ')
		sb.WriteString(c.name)
	}
	return sb.String()
}
