package boolexp

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

const maxIndirDepth = 20

// Env carries what a lock check needs besides the tree itself.
type Env struct {
	DB *gamedb.Database
	// Args are bound to %0-%9 inside attribute values and patterns.
	Args []string
}

// Eval evaluates a lock expression tree.
// player = the object being tested against the lock
// thing  = the object whose attributes feed eval keys
func Eval(env Env, player, thing gamedb.DBRef, b *gamedb.BoolExp) bool {
	return eval(env, player, thing, b, 0)
}

func eval(env Env, player, thing gamedb.DBRef, b *gamedb.BoolExp, depth int) bool {
	if b == nil {
		return true // nil lock = unlocked
	}
	if depth > maxIndirDepth {
		return false
	}

	switch b.Type {
	case gamedb.BoolTrue:
		return true
	case gamedb.BoolFalse:
		return false

	case gamedb.BoolAnd:
		return eval(env, player, thing, b.Sub1, depth) && eval(env, player, thing, b.Sub2, depth)

	case gamedb.BoolOr:
		return eval(env, player, thing, b.Sub1, depth) || eval(env, player, thing, b.Sub2, depth)

	case gamedb.BoolNot:
		return !eval(env, player, thing, b.Sub1, depth)

	case gamedb.BoolConst:
		if b.Thing == gamedb.Nothing {
			return false
		}
		return player == b.Thing || carries(env.DB, player, b.Thing)

	case gamedb.BoolAttr:
		if attrMatches(env, player, player, b) {
			return true
		}
		for _, next := range env.DB.Contents(player) {
			if attrMatches(env, player, next, b) {
				return true
			}
		}
		return false

	case gamedb.BoolEval:
		obj, ok := env.DB.Get(thing)
		if !ok {
			return false
		}
		text, ok := obj.Attr(b.Attr)
		if !ok {
			return false
		}
		return wildMatch(Expand(b.StrVal, env.Args, nil), Expand(text, env.Args, enactorVars(player)))

	case gamedb.BoolIndir:
		if b.Sub1 == nil || b.Sub1.Type != gamedb.BoolConst {
			return false
		}
		target := b.Sub1.Thing
		obj, ok := env.DB.Get(target)
		if !ok {
			return false
		}
		text, _ := obj.Attr(gamedb.AttrLock)
		sub, err := Parse(env.DB, target, text)
		if err != nil {
			return false
		}
		return eval(env, player, target, sub, depth+1)

	case gamedb.BoolCarry:
		if b.Sub1 == nil {
			return false
		}
		switch b.Sub1.Type {
		case gamedb.BoolConst:
			return carries(env.DB, player, b.Sub1.Thing)
		case gamedb.BoolAttr:
			for _, next := range env.DB.Contents(player) {
				if attrMatches(env, player, next, b.Sub1) {
					return true
				}
			}
		}
		return false

	case gamedb.BoolIs:
		if b.Sub1 == nil {
			return false
		}
		switch b.Sub1.Type {
		case gamedb.BoolConst:
			return player == b.Sub1.Thing
		case gamedb.BoolAttr:
			return attrMatches(env, player, player, b.Sub1)
		}
		return false

	case gamedb.BoolOwner:
		if b.Sub1 == nil || b.Sub1.Type != gamedb.BoolConst {
			return false
		}
		pObj, ok1 := env.DB.Get(player)
		tObj, ok2 := env.DB.Get(b.Sub1.Thing)
		if !ok1 || !ok2 {
			return false
		}
		return pObj.Owner == tObj.Owner
	}

	return false
}

// carries returns true if target is directly inside player.
func carries(db *gamedb.Database, player, target gamedb.DBRef) bool {
	obj, ok := db.Get(target)
	return ok && obj.Location == player && target != player
}

func attrMatches(env Env, player, holder gamedb.DBRef, b *gamedb.BoolExp) bool {
	obj, ok := env.DB.Get(holder)
	if !ok {
		return false
	}
	text, ok := obj.Attr(b.Attr)
	if !ok {
		return false
	}
	return wildMatch(Expand(b.StrVal, env.Args, enactorVars(player)), text)
}

func enactorVars(player gamedb.DBRef) map[byte]string {
	return map[byte]string{'#': player.String()}
}

// wildMatch performs case-insensitive wildcard matching with * and ?.
func wildMatch(pattern, str string) bool {
	pattern = strings.ToLower(pattern)
	g, err := glob.Compile(pattern)
	if err != nil {
		return pattern == strings.ToLower(str)
	}
	return g.Match(strings.ToLower(str))
}
