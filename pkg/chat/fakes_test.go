package chat

import (
	"bytes"
	"errors"
	"log"
	"strconv"
	"strings"
	"testing"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

type fakeObj struct {
	name      string
	typ       gamedb.ObjectType
	owner     gamedb.DBRef
	connected bool
	money     int
	powers    map[Power]bool
}

// fakeWorld is an in-memory World.
type fakeWorld struct {
	objs     map[gamedb.DBRef]*fakeObj
	sessions []gamedb.DBRef
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{objs: make(map[gamedb.DBRef]*fakeObj)}
}

func (w *fakeWorld) addPlayer(ref gamedb.DBRef, name string, powers ...Power) *fakeObj {
	o := &fakeObj{name: name, typ: gamedb.TypePlayer, owner: ref, connected: true, money: 5000, powers: map[Power]bool{}}
	for _, p := range powers {
		o.powers[p] = true
	}
	w.objs[ref] = o
	w.sessions = append(w.sessions, ref)
	return o
}

func (w *fakeWorld) addThing(ref gamedb.DBRef, name string, owner gamedb.DBRef) *fakeObj {
	o := &fakeObj{name: name, typ: gamedb.TypeThing, owner: owner, powers: map[Power]bool{}}
	w.objs[ref] = o
	return o
}

func (w *fakeWorld) Valid(ref gamedb.DBRef) bool { _, ok := w.objs[ref]; return ok }

func (w *fakeWorld) Name(ref gamedb.DBRef) string {
	if o, ok := w.objs[ref]; ok {
		return o.name
	}
	return "*NOTHING*"
}

func (w *fakeWorld) Type(ref gamedb.DBRef) gamedb.ObjectType {
	if o, ok := w.objs[ref]; ok {
		return o.typ
	}
	return gamedb.TypeGarbage
}

func (w *fakeWorld) Owner(ref gamedb.DBRef) gamedb.DBRef {
	if o, ok := w.objs[ref]; ok {
		return o.owner
	}
	return gamedb.Nothing
}

func (w *fakeWorld) Connected(ref gamedb.DBRef) bool {
	o, ok := w.objs[ref]
	return ok && o.connected
}

func (w *fakeWorld) Has(ref gamedb.DBRef, p Power) bool {
	o, ok := w.objs[ref]
	return ok && o.powers[p]
}

func (w *fakeWorld) Controls(who, what gamedb.DBRef) bool {
	return who == what || w.Owner(what) == who || w.Has(who, PowWizard)
}

func (w *fakeWorld) Payfor(who gamedb.DBRef, cost int) bool {
	o, ok := w.objs[who]
	if !ok || o.money < cost {
		return false
	}
	o.money -= cost
	return true
}

func (w *fakeWorld) Giveto(who gamedb.DBRef, amount int) {
	if o, ok := w.objs[who]; ok {
		o.money += amount
	}
}

func (w *fakeWorld) Match(actor gamedb.DBRef, name string) gamedb.DBRef {
	if strings.EqualFold(name, "me") {
		return actor
	}
	if strings.HasPrefix(name, "#") {
		n, err := strconv.Atoi(name[1:])
		if err == nil && w.Valid(gamedb.DBRef(n)) {
			return gamedb.DBRef(n)
		}
		return gamedb.Nothing
	}
	found := gamedb.Nothing
	for ref, o := range w.objs {
		if strings.EqualFold(o.name, name) {
			if found != gamedb.Nothing {
				return gamedb.Ambiguous
			}
			found = ref
		}
	}
	return found
}

func (w *fakeWorld) LookupPlayer(name string) gamedb.DBRef {
	name = strings.TrimPrefix(name, "*")
	for ref, o := range w.objs {
		if o.typ == gamedb.TypePlayer && strings.EqualFold(o.name, name) {
			return ref
		}
	}
	return gamedb.Nothing
}

func (w *fakeWorld) Sessions() []gamedb.DBRef { return w.sessions }

// fakeLock keeps the key text. "#true" passes everyone, "=#n" passes #n
// only, and "%0=<name>" passes when the bound channel name matches.
type fakeLock struct{ text string }

func (l fakeLock) String() string { return l.text }

type fakeGate struct{}

// deafInteractor refuses everything addressed to the listed objects.
type deafInteractor map[gamedb.DBRef]bool

func (di deafInteractor) Interacts(from, to gamedb.DBRef, presence bool) bool {
	return from == to || !di[to]
}

var errBadKey = errors.New("bad key")

func (fakeGate) Parse(actor gamedb.DBRef, text string) (Lock, error) {
	if text == "" || text == "bad" {
		return nil, errBadKey
	}
	return fakeLock{text}, nil
}

func (fakeGate) Eval(actor gamedb.DBRef, lock Lock, chanName string) bool {
	text := lock.String()
	switch {
	case text == "#true":
		return true
	case strings.HasPrefix(text, "="):
		return text[1:] == actor.String()
	case strings.HasPrefix(text, "%0="):
		return text[3:] == chanName
	}
	return false
}

func (fakeGate) Unparse(viewer gamedb.DBRef, lock Lock) string { return lock.String() }

// fakeRewriter answers stage calls from a table keyed by object and stage.
type fakeRewriter struct {
	hooks  map[gamedb.DBRef]map[string]string
	denied map[gamedb.DBRef]bool
	calls  []string
}

func newFakeRewriter() *fakeRewriter {
	return &fakeRewriter{hooks: map[gamedb.DBRef]map[string]string{}, denied: map[gamedb.DBRef]bool{}}
}

func (r *fakeRewriter) set(obj gamedb.DBRef, stage, result string) {
	if r.hooks[obj] == nil {
		r.hooks[obj] = map[string]string{}
	}
	r.hooks[obj][stage] = result
}

func (r *fakeRewriter) CanUse(actor, obj gamedb.DBRef) bool { return !r.denied[actor] }

func (r *fakeRewriter) Invoke(obj gamedb.DBRef, stage string, actor gamedb.DBRef, args []string) (string, bool) {
	r.calls = append(r.calls, obj.String()+" "+stage)
	s, ok := r.hooks[obj][stage]
	if !ok {
		return "", false
	}
	for i := len(args) - 1; i >= 0; i-- {
		s = strings.ReplaceAll(s, "%"+strconv.Itoa(i), args[i])
	}
	return s, true
}

type delivery struct {
	to       gamedb.DBRef
	channel  string
	text     string
	presence bool
}

// fakeNotifier records everything sent.
type fakeNotifier struct {
	sent []delivery
}

func (n *fakeNotifier) Notify(to gamedb.DBRef, text string) {
	n.sent = append(n.sent, delivery{to: to, text: text})
}

func (n *fakeNotifier) NotifyChannel(to gamedb.DBRef, channel, text string, presence bool) {
	n.sent = append(n.sent, delivery{to: to, channel: channel, text: text, presence: presence})
}

// to returns the texts delivered to ref, in order.
func (n *fakeNotifier) to(ref gamedb.DBRef) []string {
	var out []string
	for _, d := range n.sent {
		if d.to == ref {
			out = append(out, d.text)
		}
	}
	return out
}

func (n *fakeNotifier) last(ref gamedb.DBRef) string {
	msgs := n.to(ref)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (n *fakeNotifier) reset() { n.sent = nil }

type recordingObserver struct{ lines []Line }

func (o *recordingObserver) ChannelLine(l Line) { o.lines = append(o.lines, l) }

const (
	wiz    gamedb.DBRef = 1
	alice  gamedb.DBRef = 2
	bob    gamedb.DBRef = 3
	carol  gamedb.DBRef = 4
	widget gamedb.DBRef = 10
)

type fixture struct {
	d      *Directory
	world  *fakeWorld
	note   *fakeNotifier
	rw     *fakeRewriter
	obs    *recordingObserver
	logBuf *bytes.Buffer
}

// newFixture builds a directory over a world with a wizard, three players
// and a thing owned by alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := newFakeWorld()
	w.addPlayer(wiz, "Wizard", PowWizard, PowPrivileged, PowSeeAll, PowPrivWho)
	w.objs[wiz].money = 100000
	w.addPlayer(alice, "Alice")
	w.addPlayer(bob, "Bob")
	w.addPlayer(carol, "Carol")
	w.addThing(widget, "Widget", alice)

	f := &fixture{
		world:  w,
		note:   &fakeNotifier{},
		rw:     newFakeRewriter(),
		obs:    &recordingObserver{},
		logBuf: &bytes.Buffer{},
	}
	d, err := New(Config{
		World:    w,
		Gate:     fakeGate{},
		Notifier: f.note,
		Rewriter: f.rw,
		Observer: f.obs,
		Options:  DefaultOptions(),
		Logger:   log.New(f.logBuf, "", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.d = d
	return f
}

// mustCreate makes a channel as the wizard.
func (f *fixture) mustCreate(t *testing.T, name string, privs Privs) *Channel {
	t.Helper()
	c, err := f.d.Create(name, privs, wiz)
	if err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
	return c
}

func (f *fixture) mustJoin(t *testing.T, c *Channel, who ...gamedb.DBRef) {
	t.Helper()
	for _, w := range who {
		if err := f.d.Join(c, w); err != nil {
			t.Fatalf("Join(%s, %s): %v", c.Name(), w, err)
		}
	}
}

func names(chans []*Channel) []string {
	out := make([]string, len(chans))
	for i, c := range chans {
		out[i] = c.Name()
	}
	return out
}
