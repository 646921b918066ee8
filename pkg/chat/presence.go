package chat

import (
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Announce tells subject's channels that subject's connection state changed,
// e.g. status "has connected.". Members who combine presence lines receive a
// single line naming every channel they share with subject. ungag clears the
// subject's gag on each channel; hidden marks a hidden session. Combined
// lines respect the viewer's interact lock on every channel.
func (d *Directory) Announce(subject gamedb.DBRef, status string, ungag, hidden bool) {
	var chans []*Channel
	for c := range d.ChannelsOf(subject) {
		chans = append(chans, c)
	}

	for _, c := range chans {
		m := c.members[subject]
		if c.privs&PrivQuiet == 0 {
			flags := SendNoCombine | SendCheckQuiet | SendPresence | SendPose
			if m.Flags&MemberHide != 0 || hidden {
				flags |= SendSeeAll
			}
			d.Send(c, subject, flags, status)
		}
		if ungag {
			m.Flags &^= MemberGag
		}
	}

	name := d.world.Name(subject)
	short := name + " " + status
	seen := make(map[gamedb.DBRef]*Member)
	for _, viewer := range d.world.Sessions() {
		if _, dup := seen[viewer]; dup {
			continue
		}
		if hidden && !d.world.Has(viewer, PowSeeAll) && viewer != subject {
			continue
		}
		if d.inter != nil && !d.inter.Interacts(subject, viewer, true) {
			continue
		}
		var names []string
		var first *Member
		for _, c := range chans {
			if c.privs&PrivQuiet != 0 {
				continue
			}
			vm, ok := c.members[viewer]
			if !ok || vm.Flags&(MemberQuiet|MemberGag) != 0 || vm.Flags&MemberCombine == 0 {
				continue
			}
			if c.members[subject].Flags&MemberHide != 0 && !d.world.Has(viewer, PowSeeAll) && viewer != subject {
				continue
			}
			if first == nil {
				first = vm
			}
			names = append(names, c.name)
		}
		if len(names) == 0 {
			continue
		}
		seen[viewer] = first

		full := "<" + strings.Join(names, " | ") + "> " + short
		list := strings.Join(names, "|")
		if d.rw != nil {
			args := []string{"@", list, short, name, "", full, "", "noisy"}
			if s, ok := d.rw.Invoke(viewer, StageChatFormat, subject, args); ok {
				if s != "" {
					d.notifier.NotifyChannel(viewer, list, s, true)
				}
				continue
			}
		}
		d.notifier.NotifyChannel(viewer, list, full, true)
	}
}
