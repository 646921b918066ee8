package server

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/crystal-mush/mushchat/pkg/boltstore"
	"github.com/crystal-mush/mushchat/pkg/chat"
)

func TestConnectAnnounces(t *testing.T) {
	e := newTestEnv(t)
	e.withPublic(t)
	e.srv.Execute(carol, "@channel/on Public")
	e.clear()

	if err := e.srv.Connect(carol, false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wantContains(t, e.out(wizard), "<Public> Carol has connected.")
	if err := e.srv.Connect(carol, false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wantContains(t, e.out(bob), "<Public> Carol has reconnected.")

	e.srv.Disconnect(carol)
	wantContains(t, e.out(wizard), "<Public> Carol has partially disconnected.")
	e.srv.Disconnect(carol)
	wantContains(t, e.out(wizard), "<Public> Carol has disconnected.")
	if e.srv.World.Connected(carol) {
		t.Error("Carol still connected")
	}
}

func TestConnectRejectsNonPlayers(t *testing.T) {
	e := newTestEnv(t)
	if err := e.srv.Connect(mog, false); err == nil {
		t.Error("expected an error connecting a thing")
	}
}

func TestHiddenConnectSeenOnlyByPrivileged(t *testing.T) {
	e := newTestEnv(t)
	e.withPublic(t)
	e.srv.Disconnect(wizard)
	e.clear()

	if err := e.srv.Connect(wizard, true); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := e.out(bob); strings.Contains(got, "Wizard") {
		t.Errorf("Bob saw a hidden connect: %q", got)
	}
	if !e.srv.World.Hidden(wizard) {
		t.Error("Wizard should be hidden")
	}
}

func TestLastDisconnectLiftsGag(t *testing.T) {
	e := newTestEnv(t)
	e.withPublic(t)
	e.srv.Execute(bob, "@channel/gag Public=yes")
	c, _ := e.srv.Chat.Lookup("Public")
	e.srv.Disconnect(bob)
	if m := c.Member(bob); m == nil || m.Flags&chat.MemberGag != 0 {
		t.Error("gag should be lifted when the last session closes")
	}
}

func TestConnectLiftsGag(t *testing.T) {
	e := newTestEnv(t)
	e.withPublic(t)
	e.srv.Execute(bob, "@channel/gag Public=yes")
	c, _ := e.srv.Chat.Lookup("Public")
	if c.Member(bob).Flags&chat.MemberGag == 0 {
		t.Fatal("gag not set")
	}
	e.clear()

	if err := e.srv.Connect(bob, false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.Member(bob).Flags&chat.MemberGag != 0 {
		t.Error("gag should be lifted on connect")
	}
	wantContains(t, e.out(wizard), "<Public> Bob has reconnected.")

	e.srv.Execute(bob, "@channel/gag Public=yes")
	e.srv.Disconnect(bob)
	if c.Member(bob).Flags&chat.MemberGag == 0 {
		t.Error("a partial disconnect should keep the gag")
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	cc := testConf()
	cc.ChatDB = filepath.Join(t.TempDir(), "chatdb")
	e := newStoredEnv(t, cc, nil, nil)
	e.withPublic(t)
	e.srv.Execute(wizard, "@channel/desc Public=General chatter")
	e.srv.Execute(bob, "@channel/title Public=The Builder")
	if err := e.srv.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again := newStoredEnv(t, cc, nil, nil)
	if err := again.srv.LoadSnapshot(false); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	c, ok := again.srv.Chat.Lookup("Public")
	if !ok {
		t.Fatal("Public missing after reload")
	}
	if c.Description() != "General chatter" {
		t.Errorf("description = %q", c.Description())
	}
	m := c.Member(bob)
	if m == nil || m.Title != "The Builder" {
		t.Errorf("Bob's membership = %+v", m)
	}
	if c.Creator() != wizard {
		t.Errorf("creator = %s", c.Creator())
	}
}

func TestSnapshotBoltFallback(t *testing.T) {
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "chat.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := newStoredEnv(t, testConf(), store, nil)
	e.withPublic(t)
	e.run(bob, "&NOTE me=kept")
	if err := e.srv.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, _, ok, err := store.Snapshot(); !ok || err != nil {
		t.Fatalf("Snapshot() ok=%v err=%v", ok, err)
	}

	again := newStoredEnv(t, testConf(), store, nil)
	if err := again.srv.LoadSnapshot(false); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if _, ok := again.srv.Chat.Lookup("Public"); !ok {
		t.Fatal("Public missing after bolt reload")
	}

	if err := store.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	obj, ok := store.DB().Get(bob)
	if !ok {
		t.Fatal("Bob not persisted")
	}
	if v, _ := obj.Attr("NOTE"); v != "kept" {
		t.Errorf("NOTE = %q", v)
	}
}

func TestLoadSnapshotMissingIsEmpty(t *testing.T) {
	cc := testConf()
	cc.ChatDB = filepath.Join(t.TempDir(), "absent")
	e := newStoredEnv(t, cc, nil, nil)
	if err := e.srv.LoadSnapshot(false); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if e.srv.Chat.Len() != 0 {
		t.Errorf("Len = %d", e.srv.Chat.Len())
	}
}

func TestApplyConf(t *testing.T) {
	e := newTestEnv(t)
	cc := testConf()
	cc.ChannelCost = 5
	cc.NoisyCemit = true
	e.srv.ApplyConf(cc)
	if got := e.srv.Chat.Options(); got.ChannelCost != 5 || !got.NoisyCemit {
		t.Errorf("Options = %+v", got)
	}

	e.run(bob, "@channel/add Cheap")
	obj, _ := e.srv.DB.Get(bob)
	if obj.Pennies != 4995 {
		t.Errorf("Bob has %d pennies, want 4995", obj.Pennies)
	}
}

func TestChannelHistory(t *testing.T) {
	sqldb, err := OpenSQLStore(filepath.Join(t.TempDir(), "chat.sqlite"), 5)
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })

	e := newStoredEnv(t, testConf(), nil, sqldb)
	e.withPublic(t)
	e.run(bob, "+pub first")
	e.run(bob, "+pub second")
	e.clear()

	got := e.run(bob, "@channel/history Public=1")
	wantContains(t, got, "CHAT: History for channel <Public>:")
	wantContains(t, got, `<Public> Bob says, "second"`)
	wantContains(t, got, "CHAT: End of history.")
	if strings.Contains(got, "first") {
		t.Errorf("limit ignored: %q", got)
	}

	wantContains(t, e.run(carol, "@channel/history Public"), "CHAT: You must be on that channel to read its history.")
	wantContains(t, e.run(bob, "@channel/history Public=zero"), "CHAT: How many lines did you want to see?")

	e.run(wizard, "@channel/rename Public=Lounge")
	e.clear()
	wantContains(t, e.run(bob, "@channel/history Lounge"), `<Public> Bob says, "first"`)
}

func TestScrollbackNamedChannels(t *testing.T) {
	sqldb, err := OpenSQLStore(filepath.Join(t.TempDir(), "chat.sqlite"), 5)
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })

	cc := testConf()
	cc.ScrollbackChannels = []string{"public"}
	e := newStoredEnv(t, cc, nil, sqldb)
	e.withPublic(t)
	e.run(wizard, "@channel/add Staff")
	e.run(wizard, "@channel/on Staff")
	e.run(wizard, "@chat Staff=secret")
	e.run(bob, "@chat Public=kept")

	if rows, err := sqldb.ChannelHistory("Staff", 10); err != nil || len(rows) != 0 {
		t.Errorf("Staff history = %+v, %v; want nothing archived", rows, err)
	}
	rows, err := sqldb.ChannelHistory("Public", 10)
	if err != nil {
		t.Fatalf("ChannelHistory: %v", err)
	}
	if len(rows) == 0 || !strings.Contains(rows[len(rows)-1].Message, "kept") {
		t.Errorf("Public history = %+v", rows)
	}

	e.run(wizard, "@channel/rename Public=Lounge")
	e.run(bob, "@chat Lounge=after")
	rows, err = sqldb.ChannelHistory("Lounge", 10)
	if err != nil {
		t.Fatalf("ChannelHistory: %v", err)
	}
	if len(rows) == 0 || !strings.Contains(rows[len(rows)-1].Message, "after") {
		t.Errorf("archiving stopped after the rename: %+v", rows)
	}
}

func TestMetricsCountLinesAndDeliveries(t *testing.T) {
	e := newTestEnv(t)
	e.withPublic(t)
	m := e.srv.Metrics
	before := testutil.ToFloat64(m.commandsTotal)

	e.run(bob, "+pub hello")
	if got := testutil.ToFloat64(m.commandsTotal) - before; got != 1 {
		t.Errorf("commands delta = %v", got)
	}
	if got := testutil.ToFloat64(m.linesTotal.WithLabelValues("channel")); got != 1 {
		t.Errorf("channel lines = %v", got)
	}
	if got := testutil.ToFloat64(m.deliveriesTotal.WithLabelValues("channel")); got != 2 {
		t.Errorf("channel deliveries = %v", got)
	}

	m.Update()
	if got := testutil.ToFloat64(m.channelsTotal); got != 1 {
		t.Errorf("channels = %v", got)
	}
	if got := testutil.ToFloat64(m.membershipsTotal); got != 2 {
		t.Errorf("memberships = %v", got)
	}
	if got := testutil.ToFloat64(m.sessions); got != 2 {
		t.Errorf("sessions = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	wantContains(t, string(body), "mushchat_channels 1")
}

const comsysFixture = `+V4
"Public"
1
16
0
0
42
"General chatter"
"[Public]"
-
-
-
<
"Staff"
1
544
0
0
7
"Staff only"
"[Staff]"
WIZARD:1
-
-
-
<
+V1
5
"Public"
"pub"
"Newbie"
1
<
3
"Staff"
"st"
""
0
<
*** END OF DUMP ***
`

func TestImportComsys(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.srv.ImportComsys(strings.NewReader(comsysFixture))
	if err != nil {
		t.Fatalf("ImportComsys: %v", err)
	}
	want := ImportResult{Channels: 2, Aliases: 2, Members: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	pub, ok := e.srv.Chat.Lookup("Public")
	if !ok {
		t.Fatal("Public not imported")
	}
	if !pub.Has(chat.PrivQuiet) || pub.Description() != "General chatter" {
		t.Errorf("Public privs=%s desc=%q", pub.Privs(), pub.Description())
	}
	if m := pub.Member(carol); m == nil || m.Title != "Newbie" {
		t.Errorf("Carol on Public = %+v", m)
	}

	staff, _ := e.srv.Chat.Lookup("Staff")
	if !staff.Has(chat.PrivObject) || staff.Has(chat.PrivQuiet) {
		t.Errorf("Staff privs = %s", staff.Privs())
	}
	if staff.Lock(chat.LockJoin) == nil {
		t.Error("Staff join lock missing")
	}
	if staff.Member(bob) != nil {
		t.Error("Bob was not listening on Staff")
	}
	if name, ok := lookupAlias(e.srv.DB, bob, "st"); !ok || name != "Staff" {
		t.Errorf("Bob's st alias = %q, %v", name, ok)
	}

	again, err := e.srv.ImportComsys(strings.NewReader(comsysFixture))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if again.Channels != 0 || again.Skipped != 2 {
		t.Errorf("second import = %+v", again)
	}
}

func TestImportComsysRejectsGarbage(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.srv.ImportComsys(strings.NewReader("garbage\n")); err == nil {
		t.Error("expected an error")
	}
}
