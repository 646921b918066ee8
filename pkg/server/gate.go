package server

import (
	"github.com/crystal-mush/mushchat/pkg/boolexp"
	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// keyLock is a compiled lock key. Its String form is what snapshots store.
type keyLock struct {
	exp *gamedb.BoolExp
}

func (l keyLock) String() string { return boolexp.Serialize(l.exp) }

// Gate implements chat.Gate and chat.Interactor with lock keys.
type Gate struct {
	db *gamedb.Database
}

// NewGate returns a Gate resolving names in db.
func NewGate(db *gamedb.Database) *Gate { return &Gate{db: db} }

func (g *Gate) Parse(actor gamedb.DBRef, text string) (chat.Lock, error) {
	exp, err := boolexp.Parse(g.db, actor, text)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, nil
	}
	return keyLock{exp}, nil
}

// Eval tests actor against lock. Eval keys read their attributes from the
// actor and see the channel name as %0.
func (g *Gate) Eval(actor gamedb.DBRef, lock chat.Lock, chanName string) bool {
	kl, ok := lock.(keyLock)
	if !ok {
		return false
	}
	env := boolexp.Env{DB: g.db, Args: []string{chanName}}
	return boolexp.Eval(env, actor, actor, kl.exp)
}

func (g *Gate) Unparse(viewer gamedb.DBRef, lock chat.Lock) string {
	kl, ok := lock.(keyLock)
	if !ok {
		return "*UNLOCKED*"
	}
	return boolexp.Unparse(g.db, kl.exp)
}

// Interacts checks the recipient's interact lock against the speaker.
// Objects always hear themselves.
func (g *Gate) Interacts(from, to gamedb.DBRef, presence bool) bool {
	if from == to {
		return true
	}
	obj, ok := g.db.Get(to)
	if !ok {
		return false
	}
	text, ok := obj.Attr(gamedb.AttrInteractLock)
	if !ok || text == "" {
		return true
	}
	exp, err := boolexp.Parse(g.db, to, text)
	if err != nil {
		return true
	}
	return boolexp.Eval(boolexp.Env{DB: g.db}, from, to, exp)
}

// useLockPasses evaluates obj's use lock against actor.
func useLockPasses(db *gamedb.Database, actor, obj gamedb.DBRef) bool {
	o, ok := db.Get(obj)
	if !ok {
		return false
	}
	text, ok := o.Attr(gamedb.AttrUseLock)
	if !ok || text == "" {
		return true
	}
	exp, err := boolexp.Parse(db, obj, text)
	if err != nil {
		return false
	}
	return boolexp.Eval(boolexp.Env{DB: db}, actor, obj, exp)
}
