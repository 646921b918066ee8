package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

func TestDoAddAndDelete(t *testing.T) {
	f := newFixture(t)
	f.d.DoAdd(alice, "Fun", "")
	if got := f.note.last(alice); got != "CHAT: Channel <Fun> created." {
		t.Fatalf("DoAdd = %q", got)
	}
	c, ok := f.d.Lookup("fun")
	if !ok || c.Privs() != PrivPlayer || c.Creator() != alice {
		t.Fatalf("created channel wrong: %v", c)
	}
	if f.world.objs[alice].money != 4000 {
		t.Errorf("expected alice charged, money %d", f.world.objs[alice].money)
	}

	f.d.DoJoin(bob, "Fun")
	f.d.DoDelete(bob, "Fun")
	if got := f.note.last(bob); got != "Permission denied." {
		t.Errorf("bob delete = %q", got)
	}
	f.d.DoDelete(alice, "Fun")
	if got := f.note.last(bob); got != "CHAT: Alice has removed all users from <Fun>." {
		t.Errorf("bob told %q", got)
	}
	if got := f.note.last(alice); got != "Channel removed." {
		t.Errorf("alice told %q", got)
	}
	if f.d.Len() != 0 || f.d.NumChannelsOf(bob) != 0 {
		t.Error("channel survived deletion")
	}
	if f.world.objs[alice].money != 5000 {
		t.Errorf("expected refund, money %d", f.world.objs[alice].money)
	}
}

func TestDoAddRefusals(t *testing.T) {
	f := newFixture(t)
	f.world.objs[carol].powers[PowGuest] = true
	f.world.objs[bob].money = 10

	tests := []struct {
		who         gamedb.DBRef
		name, perms string
		want        string
	}{
		{alice, "", "", "You must specify a channel."},
		{carol, "Guestly", "", "Guests may not modify channels."},
		{alice, "Staff", "admin", "You can't create channels of that type."},
		{alice, strings.Repeat("x", MaxNameLen+1), "", "The channel needs a shorter name."},
		{alice, " Lead", "", "Invalid name for a channel."},
		{bob, "Broke", "", "You can't afford the 1000 pennies."},
	}
	for _, tt := range tests {
		f.d.DoAdd(tt.who, tt.name, tt.perms)
		if got := f.note.last(tt.who); got != tt.want {
			t.Errorf("DoAdd(%s, %q, %q) = %q, want %q", tt.who, tt.name, tt.perms, got, tt.want)
		}
	}
	if f.d.Len() != 0 {
		t.Errorf("refused adds created %d channels", f.d.Len())
	}

	f.d.DoAdd(alice, "Fun", "")
	f.d.DoAdd(alice, "FUN", "")
	if got := f.note.last(alice); got != "The channel needs a more unique name." {
		t.Errorf("duplicate add = %q", got)
	}

	f.note.reset()
	f.d.DoAdd(alice, "Later", "disabled player")
	want := []string{"Warning: channel will be created disabled.", "CHAT: Channel <Later> created."}
	if diff := cmp.Diff(want, f.note.to(alice)); diff != "" {
		t.Errorf("disabled add (-want +got):\n%s", diff)
	}
}

func TestDoJoinLeave(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)

	f.d.DoJoin(alice, "pub")
	want := []string{"CHAT: You join channel <Public>.", "<Public> Alice has joined this channel."}
	if diff := cmp.Diff(want, f.note.to(alice)); diff != "" {
		t.Errorf("join (-want +got):\n%s", diff)
	}
	f.d.DoJoin(alice, "pub")
	if got := f.note.last(alice); got != "CHAT: You are already on channel <Public>." {
		t.Errorf("second join = %q", got)
	}
	f.d.DoLeave(alice, "Public")
	if got := f.note.last(alice); got != "CHAT: You leave channel <Public>." {
		t.Errorf("leave = %q", got)
	}
	f.d.DoLeave(alice, "Public")
	if got := f.note.last(alice); got != "CHAT: You are not on channel <Public>." {
		t.Errorf("second leave = %q", got)
	}
	f.d.DoJoin(alice, "zzz")
	if got := f.note.last(alice); got != "CHAT: I don't recognize that channel." {
		t.Errorf("unknown join = %q", got)
	}

	f.d.SetLock(c, LockJoin, fakeLock{"=#3"})
	f.d.DoJoin(alice, "Public")
	if got := f.note.last(alice); got != "Permission to join denied." {
		t.Errorf("locked join = %q", got)
	}
	f.note.reset()
	f.d.DoJoin(wiz, "Public")
	if got := f.note.to(wiz); len(got) < 2 || got[0] != "CHAT: Warning: You don't meet channel join permissions! (joining anyway)" {
		t.Errorf("wizard join = %v", got)
	}
	if !f.d.OnChannel(c, wiz) {
		t.Error("wizard not joined")
	}
}

func TestDoChannelOnOthers(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)

	f.d.DoChannel(wiz, "Public", "Bob", "on")
	want := []string{"CHAT: Wizard joins you to channel <Public>.", "<Public> Bob has joined this channel."}
	if diff := cmp.Diff(want, f.note.to(bob)); diff != "" {
		t.Errorf("bob (-want +got):\n%s", diff)
	}
	if got := f.note.last(wiz); got != "CHAT: You join Bob to channel <Public>." {
		t.Errorf("wizard told %q", got)
	}

	tests := []struct {
		target, com, want string
	}{
		{"Bob", "off", "Invalid target."},
		{"Widget", "on", "Sorry, wrong type of thing for channel <Public>."},
		{"Nobody", "on", "Invalid target."},
		{"Bob", "frob", "I don't understand what you want to do."},
	}
	for _, tt := range tests {
		f.d.DoChannel(alice, "Public", tt.target, tt.com)
		if got := f.note.last(alice); got != tt.want {
			t.Errorf("DoChannel(%q, %q) = %q, want %q", tt.target, tt.com, got, tt.want)
		}
	}

	f.note.reset()
	f.d.DoChannel(wiz, "Public", "*Bob", "off")
	if f.d.OnChannel(c, bob) {
		t.Error("bob still on channel")
	}
	if got := f.note.last(bob); got != "CHAT: Wizard removes you from channel <Public>." {
		t.Errorf("bob told %q", got)
	}
}

func TestDoWho(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer|PrivObject)
	f.mustJoin(t, c, alice, bob, carol, widget)
	c.Member(alice).Flags |= MemberHide
	c.Member(bob).Flags |= MemberGag
	f.world.objs[carol].connected = false

	f.d.DoWho(bob, "Public")
	want := []string{"Members of channel <Public> are:", "Bob (gagging) and Widget(#10)"}
	if diff := cmp.Diff(want, f.note.to(bob)); diff != "" {
		t.Errorf("bob's who (-want +got):\n%s", diff)
	}
	f.d.DoChannel(wiz, "Public", "", "who")
	if got := f.note.last(wiz); got != "Alice (hidden), Bob (gagging), and Widget(#10)" {
		t.Errorf("wizard's who = %q", got)
	}

	empty := f.mustCreate(t, "Empty", PrivPlayer)
	f.mustJoin(t, empty, carol)
	f.d.DoWho(bob, "Empty")
	if got := f.note.last(bob); got != "There are no connected players on that channel." {
		t.Errorf("empty who = %q", got)
	}
}

func TestDoChatByName(t *testing.T) {
	f := newFixture(t)
	pub := f.mustCreate(t, "Public", PrivPlayer)
	crawl := f.mustCreate(t, "Pubcrawl", PrivPlayer)
	f.mustJoin(t, pub, alice)
	f.mustJoin(t, crawl, alice)

	if !f.d.DoChatByName(alice, "pub", "hi", false) {
		t.Error("ambiguous match should consume the input")
	}
	want := []string{
		"CHAT: I don't know which channel you mean.",
		"CHAT: Partial matches are: Pubcrawl Public",
		"CHAT: You may wish to set the CHAN_USEFIRSTMATCH flag on yourself.",
	}
	if diff := cmp.Diff(want, f.note.to(alice)); diff != "" {
		t.Errorf("ambiguous (-want +got):\n%s", diff)
	}

	f.note.reset()
	f.world.objs[alice].powers[PowUseFirstMatch] = true
	f.d.DoChatByName(alice, "pub", "hi", false)
	if got := f.note.last(alice); got != `<Pubcrawl> Alice says, "hi"` {
		t.Errorf("first match = %q", got)
	}

	if f.d.DoChatByName(bob, "publ", "hi", false) {
		t.Error("+channel shortcut consumed input for a non-member")
	}
	if got := f.note.to(bob); len(got) != 0 {
		t.Errorf("silent shortcut told bob %v", got)
	}
	f.d.DoChatByName(bob, "publ", "hi", true)
	if got := f.note.last(bob); got != "You must be on that channel to speak on it." {
		t.Errorf("explicit non-member = %q", got)
	}
	f.d.DoChatByName(bob, "zzz", "hi", true)
	if got := f.note.last(bob); got != "CHAT: No such channel." {
		t.Errorf("unknown channel = %q", got)
	}
	f.d.DoChatByName(bob, "pub", "", true)
	if got := f.note.last(bob); got != "Don't you have anything to say?" {
		t.Errorf("empty message = %q", got)
	}
}

func TestDoChatPermissions(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer|PrivOpen)
	f.mustJoin(t, c, bob)

	f.d.DoChat(alice, c, "from outside")
	if got := f.note.last(bob); got != `<Public> Alice says, "from outside"` {
		t.Errorf("open channel = %q", got)
	}
	f.d.SetLock(c, LockSpeak, fakeLock{"=#3"})
	f.d.DoChat(alice, c, "again")
	if got := f.note.last(alice); got != "Sorry, you're not allowed to speak on channel <Public>." {
		t.Errorf("speak lock = %q", got)
	}
	f.d.DoChat(widget, c, "beep")
	if got := f.note.last(widget); got != "Sorry, you're not the right type to be on channel <Public>." {
		t.Errorf("wrong type = %q", got)
	}
	f.d.DoChat(bob, c, "")
	if got := f.note.last(bob); got != "What do you want to say to that channel?" {
		t.Errorf("empty = %q", got)
	}
}

func TestDoTitle(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice)

	steps := []struct {
		title string
		set   bool
		want  string
	}{
		{"", false, "You have no title set on <Public>."},
		{"Dame", true, "Title set for channel <Public>."},
		{"", false, "Your title on <Public> is 'Dame'."},
		{strings.Repeat("t", 81), true, "Title too long."},
		{"Bell\a", true, "Invalid character in title."},
		{"", true, "Title cleared for channel <Public>."},
	}
	for _, s := range steps {
		f.d.DoTitle(alice, "Public", s.title, s.set)
		if got := f.note.last(alice); got != s.want {
			t.Errorf("DoTitle(%q, %v) = %q, want %q", s.title, s.set, got, s.want)
		}
	}

	f.d.SetPrivs(c, PrivPlayer|PrivNoTitles)
	f.d.DoTitle(alice, "Public", "Sir", true)
	if got := f.note.last(alice); got != "Title set for (NoTitles) channel <Public>." {
		t.Errorf("notitles = %q", got)
	}
	f.d.DoTitle(bob, "Public", "", false)
	if got := f.note.last(bob); got != "You are not on channel <Public>." {
		t.Errorf("non-member = %q", got)
	}
}

func TestDoUserFlag(t *testing.T) {
	f := newFixture(t)
	a := f.mustCreate(t, "A", PrivPlayer)
	b := f.mustCreate(t, "B", PrivPlayer|PrivCanHide)
	f.mustJoin(t, a, alice, widget)
	f.mustJoin(t, b, alice)

	f.d.DoUserFlag(alice, "", "yes", MemberGag)
	if got := f.note.last(alice); got != "All channels have been gagged." {
		t.Errorf("gag all = %q", got)
	}
	if a.Member(alice).Flags&MemberGag == 0 || b.Member(alice).Flags&MemberGag == 0 {
		t.Error("gag not applied to every channel")
	}
	f.d.DoUserFlag(alice, "A", "off", MemberGag)
	if got := f.note.last(alice); got != "You will now hear messages on channel <A>." {
		t.Errorf("ungag = %q", got)
	}
	if a.Member(alice).Flags&MemberGag != 0 {
		t.Error("gag still set on A")
	}

	f.d.DoUserFlag(alice, "A", "yes", MemberHide)
	if got := f.note.last(alice); got != "You are not permitted to hide on channel <A>." {
		t.Errorf("hide refused = %q", got)
	}
	f.d.DoUserFlag(alice, "B", "1", MemberHide)
	if got := f.note.last(alice); got != "You no longer appear on channel <B>'s who list." {
		t.Errorf("hide = %q", got)
	}
	f.d.DoUserFlag(widget, "A", "yes", MemberCombine)
	if got := f.note.last(widget); got != "Only players can use that option." {
		t.Errorf("thing combine = %q", got)
	}
	f.d.DoUserFlag(bob, "", "yes", MemberQuiet)
	if got := f.note.last(bob); got != "You are not on any channels." {
		t.Errorf("no channels = %q", got)
	}
}

func TestIsNo(t *testing.T) {
	for s, want := range map[string]bool{"no": true, "OFF": true, "n": true, "yes": false, "on": false, "1": false, "#-1 ERR": false} {
		if got := isNo(s); got != want {
			t.Errorf("isNo(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestDoRenamePrivDesc(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustCreate(t, "Other", PrivPlayer)
	f.mustJoin(t, c, alice)

	f.d.DoRename(alice, "Public", "Mine")
	if got := f.note.last(alice); got != "Permission denied." {
		t.Errorf("alice rename = %q", got)
	}
	f.d.DoRename(wiz, "Public", "Other")
	if got := f.note.last(wiz); got != "The channel needs a more unique name." {
		t.Errorf("clashing rename = %q", got)
	}
	f.d.DoRename(wiz, "Public", "Main")
	if got := f.note.last(alice); got != "<Main> Wizard has renamed Public to Main." {
		t.Errorf("rename announce = %q", got)
	}
	if got := f.note.last(wiz); got != "Channel renamed." {
		t.Errorf("rename = %q", got)
	}

	f.d.DoPriv(wiz, "Main", "open")
	if got := f.note.last(wiz); got != "Permissions on channel <Main> changed." || c.Privs() != PrivPlayer|PrivOpen {
		t.Errorf("priv = %q, privs %v", got, c.Privs())
	}
	f.d.DoPriv(wiz, "Main", "open")
	if got := f.note.last(wiz); got != "Invalid or same permissions on channel <Main>. No changes made." {
		t.Errorf("same priv = %q", got)
	}

	f.d.DoDesc(wiz, "Main", "A place")
	if got := f.note.last(wiz); got != "CHAT: Channel <Main> description set." || c.Description() != "A place" {
		t.Errorf("desc = %q", got)
	}
	f.d.DoDesc(wiz, "Main", strings.Repeat("d", MaxDescLen+1))
	if got := f.note.last(wiz); got != "CHAT: New description too long." {
		t.Errorf("long desc = %q", got)
	}
	f.d.DoDesc(alice, "Main", "")
	if got := f.note.last(alice); got != "CHAT: Yeah, right." {
		t.Errorf("alice desc = %q", got)
	}
	f.d.DoDesc(wiz, "Main", "")
	if got := f.note.last(wiz); got != "CHAT: Channel <Main> description cleared." {
		t.Errorf("clear desc = %q", got)
	}
}

func TestDoLock(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)

	f.d.DoLock(wiz, "Public", "=#3", LockJoin)
	if got := f.note.last(wiz); got != "CHAT: Joinlock on <Public> set." {
		t.Errorf("set = %q", got)
	}
	if l := c.Lock(LockJoin); l == nil || l.String() != "=#3" {
		t.Errorf("join lock = %v", l)
	}
	f.d.DoLock(wiz, "Public", "bad", LockSpeak)
	if got := f.note.last(wiz); got != "CHAT: I don't understand that key." {
		t.Errorf("bad key = %q", got)
	}
	f.d.DoLock(alice, "Public", "#true", LockSee)
	if got := f.note.last(alice); got != "CHAT: Channel <Public> resists." {
		t.Errorf("alice lock = %q", got)
	}
	f.d.DoLock(wiz, "Public", "", LockJoin)
	if got := f.note.last(wiz); got != "CHAT: Joinlock on <Public> reset." || c.Lock(LockJoin) != nil {
		t.Errorf("reset = %q", got)
	}
}

func TestDoWipe(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)

	f.d.DoWipe(alice, "Public")
	if got := f.note.last(alice); got != "CHAT: Wipe that silly grin off your face instead." {
		t.Errorf("alice wipe = %q", got)
	}
	f.d.DoWipe(wiz, "Public")
	for _, who := range []gamedb.DBRef{alice, bob} {
		if got := f.note.last(who); got != "CHAT: Wizard has removed all users from <Public>." {
			t.Errorf("%s told %q", who, got)
		}
	}
	if c.NumUsers() != 0 || f.d.NumChannelsOf(alice) != 0 {
		t.Error("members left after wipe")
	}
}

func TestDoMogrifier(t *testing.T) {
	f := newFixture(t)
	c, err := f.d.Create("Mine", PrivPlayer, alice)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		who       gamedb.DBRef
		obj, want string
	}{
		{bob, "Widget", "CHAT: Only a channel modifier can do that."},
		{alice, "Bob", "CHAT: You must control the mogrifier."},
		{alice, "Gizmo", "I can't see that here."},
		{alice, "Widget", "CHAT: Channel <Mine> now mogrified by Widget."},
		{alice, "", "CHAT: Channel <Mine> no longer mogrified by Widget."},
		{alice, "", "CHAT: Channel <Mine> isn't being mogrified."},
	}
	for _, s := range steps {
		f.d.DoMogrifier(s.who, "Mine", s.obj)
		if got := f.note.last(s.who); got != s.want {
			t.Errorf("DoMogrifier(%s, %q) = %q, want %q", s.who, s.obj, got, s.want)
		}
	}
	if c.Mogrifier() != gamedb.Nothing {
		t.Errorf("mogrifier = %s, want none", c.Mogrifier())
	}
}

func TestDoChown(t *testing.T) {
	f := newFixture(t)
	if _, err := f.d.Create("Mine", PrivPlayer, alice); err != nil {
		t.Fatal(err)
	}
	f.d.DoChown(alice, "Mine", "Bob")
	if got := f.note.last(alice); got != "CHAT: Only a Wizard can do that." {
		t.Errorf("alice chown = %q", got)
	}
	f.d.DoChown(wiz, "Mine", "Nobody")
	if got := f.note.last(wiz); got != "CHAT: Invalid owner." {
		t.Errorf("bad owner = %q", got)
	}
	f.d.DoChown(wiz, "Mine", "Bob")
	if got := f.note.last(wiz); got != "CHAT: Channel <Mine> now owned by Bob." {
		t.Errorf("chown = %q", got)
	}
	if f.world.objs[alice].money != 5000 {
		t.Errorf("alice not refunded: %d", f.world.objs[alice].money)
	}
	f.d.DoChownAll(wiz, "Bob", "Carol")
	if got := f.note.last(wiz); got != "CHAT: 1 channel(s) of Bob now owned by Carol." {
		t.Errorf("chownall = %q", got)
	}
}

func TestDoBuffer(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)

	steps := []struct{ blocks, want string }{
		{"x", "You need to specify the amount of data (In 8kb chunks) to use for the buffer."},
		{"11", "Invalid buffer size."},
		{"0", "CHAT: Channel buffering already disabled for channel <Public>."},
		{"2", "CHAT: Buffering enabled on channel <Public>."},
		{"3", "CHAT: Resizing buffer of channel <Public>"},
		{"0", "CHAT: Channel buffering disabled for channel <Public>."},
	}
	for _, s := range steps {
		f.d.DoBuffer(wiz, "Public", s.blocks)
		if got := f.note.last(wiz); got != s.want {
			t.Errorf("DoBuffer(%q) = %q, want %q", s.blocks, got, s.want)
		}
	}
	if c.Buffer() != nil {
		t.Error("buffer not removed")
	}
	f.d.DoBuffer(alice, "Public", "1")
	if got := f.note.last(alice); got != "Permission denied." {
		t.Errorf("alice buffer = %q", got)
	}
}

func TestDoList(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice)

	f.d.DoList(alice, "", ScopeAll, false)
	got := f.note.to(alice)
	if len(got) != 2 || !strings.HasPrefix(got[0], "Name") {
		t.Fatalf("list = %q", got)
	}
	want := "Public" + strings.Repeat(" ", 24) + "     1        0 [-P----- --m---] [On     ]   0"
	if got[1] != want {
		t.Errorf("row:\n got %q\nwant %q", got[1], want)
	}

	f.d.DoList(alice, "", ScopeAll, true)
	if got := f.note.last(alice); got != "CHAT: Channel list: Public" {
		t.Errorf("quiet list = %q", got)
	}
	f.d.DoList(alice, "", ScopeOff, true)
	if got := f.note.last(alice); got != "CHAT: Channel list: (None)" {
		t.Errorf("off list = %q", got)
	}
}

func TestDoWhatAndDecompile(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice)

	f.d.DoWhat(alice, "pub")
	want := []string{"Public", "Description: ", "Owner: Wizard", "Flags: Player"}
	if diff := cmp.Diff(want, f.note.to(alice)); diff != "" {
		t.Errorf("what (-want +got):\n%s", diff)
	}

	f.d.DoDecompile(wiz, "Pub", false)
	want = []string{
		"@channel/add Public = Player",
		"@channel/chown Public = Wizard",
		"@clock/mod Public = =#1",
		"@channel/on Public = *Alice",
	}
	if diff := cmp.Diff(want, f.note.to(wiz)); diff != "" {
		t.Errorf("decompile (-want +got):\n%s", diff)
	}

	f.note.reset()
	f.d.DoDecompile(alice, "Pub", false)
	if got := f.note.last(alice); got != "CHAT: You don't have permission to decompile <Public>." {
		t.Errorf("alice decompile = %q", got)
	}
	f.d.DoDecompile(wiz, "zz", false)
	if got := f.note.last(wiz); got != "CHAT: No channel matches that string." {
		t.Errorf("no match = %q", got)
	}
}

func TestDoRecall(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)

	f.d.DoRecall(bob, "Public", "", "", true)
	if got := f.note.last(bob); got != "CHAT: That channel doesn't have a recall buffer." {
		t.Errorf("no buffer = %q", got)
	}

	f.d.SetBuffer(c, 1)
	for _, msg := range []string{"one", "two", "three"} {
		f.d.DoChat(alice, c, msg)
	}

	f.note.reset()
	f.d.DoRecall(bob, "Public", "2", "", true)
	want := []string{
		"CHAT: Recall from channel <Public>",
		`<Public> Alice says, "two"`,
		`<Public> Alice says, "three"`,
		"CHAT: End recall",
		"CHAT: To recall the entire buffer, use @chan/recall Public=0",
	}
	if diff := cmp.Diff(want, f.note.to(bob)); diff != "" {
		t.Errorf("recall 2 (-want +got):\n%s", diff)
	}

	for _, lines := range []string{"0", "1h"} {
		f.note.reset()
		f.d.DoRecall(bob, "Public", lines, "", true)
		if got := f.note.to(bob); len(got) != 5 || got[4] != "CHAT: End recall" {
			t.Errorf("recall %q = %q", lines, got)
		}
	}

	f.note.reset()
	f.d.DoRecall(bob, "Public", "1", "2", true)
	if got := f.note.to(bob); len(got) != 4 || got[1] != `<Public> Alice says, "two"` {
		t.Errorf("recall from line 2 = %q", got)
	}

	f.d.DoRecall(bob, "Public", "x!", "", true)
	if got := f.note.last(bob); got != "How many lines did you want to recall?" {
		t.Errorf("bad count = %q", got)
	}

	f.world.objs[carol].powers[PowGuest] = true
	f.d.DoRecall(carol, "Public", "", "", true)
	if got := f.note.last(carol); got != "CHAT: You must be able to join a channel to recall from it." {
		t.Errorf("guest recall = %q", got)
	}
}

func TestRecallKeepsPercentVerbatim(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)
	f.d.SetBuffer(c, 1)
	f.d.DoChat(alice, c, "50%s off, 100%d done")

	f.note.reset()
	f.d.DoRecall(bob, "Public", "0", "", true)
	want := `<Public> Alice says, "50%s off, 100%d done"`
	if got := f.note.to(bob); len(got) < 2 || got[1] != want {
		t.Errorf("recall = %q, want line %q", got, want)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"90m", 90 * time.Minute, true},
		{"2d 3h", 51 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"30", 30 * time.Second, true},
		{"x!", 0, false},
		{"0s", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseWindow(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseWindow(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestItemize(t *testing.T) {
	for _, tt := range []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "A and B"},
		{[]string{"A", "B", "C"}, "A, B, and C"},
	} {
		if got := itemize(tt.in); got != tt.want {
			t.Errorf("itemize(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
