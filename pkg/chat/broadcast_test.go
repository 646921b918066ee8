package chat

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSendForms(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)

	tests := []struct {
		msg  string
		want string
	}{
		{"hello", `<Public> Alice says, "hello"`},
		{":waves.", "<Public> Alice waves."},
		{";'s here.", "<Public> Alice's here."},
	}
	for _, tt := range tests {
		f.note.reset()
		f.d.DoChat(alice, c, tt.msg)
		if got := f.note.last(bob); got != tt.want {
			t.Errorf("DoChat(%q): bob got %q, want %q", tt.msg, got, tt.want)
		}
	}
	if c.Messages() != 3 {
		t.Errorf("expected 3 messages counted, got %d", c.Messages())
	}

	f.d.SetTitle(c, alice, "Dame")
	f.note.reset()
	f.d.DoChat(alice, c, "hi")
	if got := f.note.last(bob); got != `<Public> Dame Alice says, "hi"` {
		t.Errorf("titled speech = %q", got)
	}
}

func TestSendStripQuote(t *testing.T) {
	f := newFixture(t)
	opts := f.d.Options()
	opts.StripQuote = true
	f.d.SetOptions(opts)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)

	f.d.DoChat(alice, c, `"quoted`)
	if got := f.note.last(bob); got != `<Public> Alice says, "quoted"` {
		t.Errorf("got %q", got)
	}
}

func TestSendNoTitlesNoNames(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Anon", PrivPlayer|PrivNoNames)
	f.mustJoin(t, c, alice, bob)
	f.d.SetTitle(c, alice, "Masked")

	f.d.DoChat(alice, c, ":bows.")
	if got := f.note.last(bob); got != "<Anon> Masked bows." {
		t.Errorf("no names, with title: %q", got)
	}
	f.d.SetPrivs(c, PrivPlayer|PrivNoNames|PrivNoTitles)
	f.d.DoChat(alice, c, ":bows.")
	if got := f.note.last(bob); got != "<Anon> Someone bows." {
		t.Errorf("no names, no titles: %q", got)
	}
}

func TestSendFilters(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob, carol)
	c.Member(bob).Flags |= MemberGag
	f.world.objs[carol].connected = false

	f.d.Send(c, alice, SendSpeech, "anyone?")
	if got := f.note.to(bob); len(got) != 0 {
		t.Errorf("gagged member heard %v", got)
	}
	if got := f.note.to(carol); len(got) != 0 {
		t.Errorf("disconnected member heard %v", got)
	}
	if got := f.note.to(alice); len(got) != 1 {
		t.Errorf("speaker heard %d lines, want 1", len(got))
	}
	if len(f.obs.lines) != 1 || f.obs.lines[0].Recipients != 1 {
		t.Errorf("observer saw %+v", f.obs.lines)
	}

	f.note.reset()
	f.d.SetPrivs(c, PrivPlayer|PrivDisabled)
	f.d.Send(c, alice, SendSpeech, "hello?")
	if len(f.note.sent) != 0 {
		t.Errorf("disabled channel delivered %v", f.note.sent)
	}
}

func TestCheckQuietStillBuffers(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob, carol)
	c.Member(bob).Flags |= MemberQuiet
	f.d.SetBuffer(c, 1)

	f.d.Send(c, alice, SendCheckQuiet|SendPresence|SendPose, "has joined this channel.")
	if got := f.note.to(bob); len(got) != 0 {
		t.Errorf("quiet member heard %v", got)
	}
	if got := f.note.last(carol); got != "<Public> Alice has joined this channel." {
		t.Errorf("carol got %q", got)
	}
	if c.Buffer().Len() != 1 {
		t.Errorf("expected 1 buffered line, got %d", c.Buffer().Len())
	}
	for _, d := range f.note.sent {
		if d.to == carol && !d.presence {
			t.Error("presence line not flagged as presence")
		}
	}
}

func TestSendFromNonMember(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice)

	f.d.Send(c, wiz, SendSpeech, "listen")
	want := `To channel Public: <Public> Wizard says, "listen"`
	if got := f.note.last(wiz); got != want {
		t.Errorf("non-member echo = %q, want %q", got, want)
	}
}

func TestCemit(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)
	f.d.SetBuffer(c, 1)

	f.d.DoCemit(alice, "pub", "Boom", false, false)
	if got := f.note.last(bob); got != "<Public> Boom" {
		t.Errorf("noisy cemit = %q", got)
	}
	f.d.DoCemit(alice, "pub", "Quiet boom", true, true)
	if got := f.note.last(bob); got != "Quiet boom" {
		t.Errorf("silent cemit = %q", got)
	}
	entries := slices.Collect(c.Buffer().All())
	if len(entries) != 2 || entries[0].Speaker != -1 || entries[1].Speaker != alice {
		t.Errorf("buffer speakers wrong: %+v", entries)
	}

	f.d.DoCemit(carol, "pub", "sneaky", false, false)
	if got := f.note.last(carol); got != "You must be on that channel to speak on it." {
		t.Errorf("non-member cemit = %q", got)
	}
	f.d.SetPrivs(c, PrivPlayer|PrivNoCemit)
	f.d.DoCemit(alice, "pub", "nope", false, false)
	if got := f.note.last(alice); got != "Sorry, you're not allowed to @cemit on channel <Public>." {
		t.Errorf("nocemit = %q", got)
	}
}

func TestMogrifierStages(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)
	f.d.SetMogrifier(c, widget)
	f.rw.set(widget, StageChanName, "{%1}")
	f.rw.set(widget, StageMessage, "[%0]")

	f.d.DoChat(alice, c, "hello")
	if got := f.note.last(bob); got != `{Public} Alice says, "[hello]"` {
		t.Errorf("mogrified line = %q", got)
	}

	f.rw.set(widget, StageFormat, "FMT %5")
	f.d.DoChat(alice, c, "again")
	if got := f.note.last(bob); got != `FMT {Public} Alice says, "[again]"` {
		t.Errorf("formatted line = %q", got)
	}
}

func TestMogrifierBlockAndNoBuffer(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)
	f.d.SetBuffer(c, 1)
	f.d.SetMogrifier(c, widget)

	f.rw.set(widget, StageNoBuffer, "1")
	f.d.DoChat(alice, c, "off the record")
	if c.Buffer().Len() != 0 {
		t.Error("NOBUFFER line was buffered")
	}
	if f.note.last(bob) == "" {
		t.Error("NOBUFFER line was not delivered")
	}

	f.note.reset()
	f.rw.set(widget, StageBlock, "Blocked on %1.")
	f.d.DoChat(alice, c, "hello")
	if got := f.note.to(alice); !slices.Equal(got, []string{"Blocked on Public."}) {
		t.Errorf("speaker got %v", got)
	}
	if got := f.note.to(bob); len(got) != 0 {
		t.Errorf("blocked line reached bob: %v", got)
	}

	f.note.reset()
	f.rw.denied[alice] = true
	f.d.DoChat(alice, c, "hello")
	if got := f.note.last(bob); got != `<Public> Alice says, "hello"` {
		t.Errorf("mogrifier should be skipped without use rights, got %q", got)
	}
}

func TestChatFormatPerRecipient(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob, carol)
	f.rw.set(bob, StageChatFormat, "")
	f.rw.set(carol, StageChatFormat, "C:%5")

	f.d.DoChat(alice, c, "hi")
	if got := f.note.to(bob); len(got) != 0 {
		t.Errorf("empty CHATFORMAT should suppress, bob got %v", got)
	}
	if got := f.note.last(carol); got != `C:<Public> Alice says, "hi"` {
		t.Errorf("carol got %q", got)
	}
	if got := f.note.last(alice); got != `<Public> Alice says, "hi"` {
		t.Errorf("alice got %q", got)
	}

	f.d.SetMogrifier(c, widget)
	f.rw.set(widget, StageOverride, "1")
	f.d.DoChat(alice, c, "over")
	if got := f.note.last(carol); got != `<Public> Alice says, "over"` {
		t.Errorf("OVERRIDE should skip CHATFORMAT, carol got %q", got)
	}
}

func TestObserverSeesEveryLine(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t, "Public", PrivPlayer)
	f.mustJoin(t, c, alice, bob)
	f.d.SetBuffer(c, 1)
	f.d.DoChat(alice, c, "one")
	f.d.DoChat(bob, c, ":two")

	want := []Line{
		{Channel: "Public", Speaker: alice, Flags: SendSpeech, Text: `<Public> Alice says, "one"`, Recipients: 2, Buffered: true},
		{Channel: "Public", Speaker: bob, Flags: SendPose, Text: "<Public> Bob two", Recipients: 2, Buffered: true},
	}
	if diff := cmp.Diff(want, f.obs.lines); diff != "" {
		t.Errorf("observed lines (-want +got):\n%s", diff)
	}
}

func TestParseBoolean(t *testing.T) {
	for s, want := range map[string]bool{
		"": false, "0": false, "0.0": false, "#-1 NO MATCH": false, " ": false,
		"1": true, "yes": true, "#5": true, "-2": true,
	} {
		if got := parseBoolean(s); got != want {
			t.Errorf("parseBoolean(%q) = %v, want %v", s, got, want)
		}
	}
}
