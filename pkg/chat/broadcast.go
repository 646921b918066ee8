package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/recall"
)

// Rewrite stages, in the order Send runs them.
const (
	StageBlock      = "BLOCK"
	StageOverride   = "OVERRIDE"
	StageNoBuffer   = "NOBUFFER"
	StageChanName   = "CHANNAME"
	StageTitle      = "TITLE"
	StagePlayerName = "PLAYERNAME"
	StageSpeechText = "SPEECHTEXT"
	StageMessage    = "MESSAGE"
	StageFormat     = "FORMAT"
	// StageChatFormat is run on each recipient rather than the mogrifier.
	StageChatFormat = "CHATFORMAT"
)

func (d *Directory) tell(to gamedb.DBRef, format string, args ...any) {
	if len(args) == 0 {
		d.notifier.Notify(to, format)
		return
	}
	d.notifier.Notify(to, fmt.Sprintf(format, args...))
}

// mogrify runs one stage, falling back to orig when the stage is missing
// or yields nothing.
func (d *Directory) mogrify(obj gamedb.DBRef, stage string, actor gamedb.DBRef, orig string, args []string) string {
	if s, ok := d.rw.Invoke(obj, stage, actor, args); ok && s != "" {
		return s
	}
	return orig
}

func (d *Directory) stageBool(obj gamedb.DBRef, stage string, actor gamedb.DBRef, args []string) bool {
	s, ok := d.rw.Invoke(obj, stage, actor, args)
	return ok && parseBoolean(s)
}

// parseBoolean follows softcode truthiness: blank strings, numeric zero and
// #-N error values are false.
func parseBoolean(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#-") {
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return true
}

func verbSymbol(flags SendFlags) string {
	switch {
	case flags&SendPresence != 0:
		return "@"
	case flags&SendPose != 0:
		return ":"
	case flags&SendSemipose != 0:
		return ";"
	case flags&SendEmit != 0:
		return "|"
	default:
		return "\""
	}
}

// Send broadcasts text on c from speaker.
func (d *Directory) Send(c *Channel, speaker gamedb.DBRef, flags SendFlags, text string) {
	if c.privs&PrivDisabled != 0 {
		return
	}
	member, isMember := c.members[speaker]

	var title string
	if c.privs&PrivNoTitles == 0 && isMember && member.Title != "" {
		title = member.Title
	}
	var name string
	if c.privs&PrivNoNames == 0 {
		name = d.world.Name(speaker)
	}
	if title == "" && name == "" {
		name = "Someone"
	}
	verb := verbSymbol(flags)
	speech := "says"
	loud := "noisy"
	if flags&SendQuiet != 0 {
		loud = "silent"
	}
	label := "<" + c.name + ">"

	override, nobuffer := false, false
	mog := c.mogrifier
	useMog := d.rw != nil && mog != gamedb.Nothing && d.world.Valid(mog) && d.rw.CanUse(speaker, mog)
	if useMog {
		args := []string{verb, c.name, text, name, title}
		if blk, ok := d.rw.Invoke(mog, StageBlock, speaker, args); ok && blk != "" {
			d.notifier.Notify(speaker, blk)
			return
		}
		override = d.stageBool(mog, StageOverride, speaker, args)
		nobuffer = d.stageBool(mog, StageNoBuffer, speaker, args)

		stage := func(stg, cur string) string {
			return d.mogrify(mog, stg, speaker, cur,
				[]string{cur, c.name, verb, text, title, name, speech, loud})
		}
		label = stage(StageChanName, label)
		title = stage(StageTitle, title)
		name = stage(StagePlayerName, name)
		if flags&SendSpeech != 0 {
			speech = stage(StageSpeechText, speech)
		}
		text = stage(StageMessage, text)
	}

	var sb strings.Builder
	if flags&SendQuiet == 0 {
		sb.WriteString(label)
		sb.WriteByte(' ')
	}
	if flags&SendEmit != 0 {
		sb.WriteString(text)
	} else {
		if title != "" && flags&SendPresence == 0 {
			sb.WriteString(title)
			if name != "" {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(name)
		switch {
		case flags&SendPose != 0:
			sb.WriteByte(' ')
			sb.WriteString(text)
		case flags&SendSemipose != 0:
			sb.WriteString(text)
		case flags&SendSpeech != 0:
			fmt.Fprintf(&sb, " %s, \"%s\"", speech, text)
		}
	}
	line := sb.String()

	if flags&SendPresence != 0 {
		text = name + " " + text
		title = ""
	}
	if useMog {
		line = d.mogrify(mog, StageFormat, speaker, line,
			[]string{verb, c.name, text, name, title, line, speech, loud})
	}
	fmtArgs := []string{verb, c.name, text, name, title, line, speech, loud}

	recipients := 0
	c.roster.Ascend(func(m *Member) bool {
		if !d.receives(c, m, speaker, flags) {
			return true
		}
		recipients++
		if !override && d.rw != nil {
			if s, ok := d.rw.Invoke(m.Who, StageChatFormat, speaker, fmtArgs); ok {
				if s != "" {
					d.notifier.NotifyChannel(m.Who, c.name, s, flags&SendPresence != 0)
				}
				return true
			}
		}
		d.notifier.NotifyChannel(m.Who, c.name, line, flags&SendPresence != 0)
		return true
	})

	buffered := false
	if c.buffer != nil && !nobuffer {
		kind := recall.KindNormal
		if flags&SendSeeAll != 0 {
			kind = recall.KindSeeAll
		}
		who := speaker
		if flags&SendNoSpoof != 0 {
			who = gamedb.Nothing
		}
		c.buffer.Append(kind, who, line)
		buffered = true
	}

	if flags&SendPresence == 0 && !isMember {
		d.tell(speaker, "To channel %s: %s", c.name, line)
	}

	if d.obs != nil {
		d.obs.ChannelLine(Line{
			Channel:    c.name,
			Speaker:    speaker,
			Flags:      flags,
			Text:       line,
			Recipients: recipients,
			Buffered:   buffered,
		})
	}
}

// receives applies the roster filters of a broadcast to one member.
func (d *Directory) receives(c *Channel, m *Member, speaker gamedb.DBRef, flags SendFlags) bool {
	who := m.Who
	switch {
	case flags&SendNoCombine != 0 && m.Flags&MemberCombine != 0:
		return false
	case flags&SendSeeAll != 0 && !d.world.Has(who, PowSeeAll) && who != speaker:
		return false
	case flags&SendCheckQuiet != 0 && m.Flags&MemberQuiet != 0:
		return false
	case m.Flags&MemberGag != 0:
		return false
	case d.isPlayer(who) && !d.world.Connected(who):
		return false
	case c.privs&PrivInteract != 0 && d.inter != nil && !d.inter.Interacts(speaker, who, flags&SendPresence != 0):
		return false
	}
	return true
}
