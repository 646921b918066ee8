package chat

import (
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// prefixed calls fn for each channel whose key starts with key, in order,
// until fn returns false.
func (d *Directory) prefixed(key string, fn func(*Channel) bool) {
	d.idx.channels.AscendGreaterOrEqual(&Channel{key: key}, func(c *Channel) bool {
		if !strings.HasPrefix(c.key, key) {
			return false
		}
		return fn(c)
	})
}

// Find looks name up among the channels visible to viewer. An exact match
// the viewer cannot see reports MatchNone. Otherwise prefix matches are
// counted and the first is returned.
func (d *Directory) Find(name string, viewer gamedb.DBRef) (*Channel, MatchResult) {
	key := normalizeName(name)
	if key == "" {
		return nil, MatchNone
	}
	if c, ok := d.idx.channels.Get(&Channel{key: key}); ok {
		if d.visible(c, viewer) {
			return c, MatchExact
		}
		return nil, MatchNone
	}
	var first *Channel
	count := 0
	d.prefixed(key, func(c *Channel) bool {
		if d.visible(c, viewer) {
			if first == nil {
				first = c
			}
			count++
		}
		return true
	})
	return first, countResult(count)
}

func countResult(n int) MatchResult {
	switch {
	case n == 0:
		return MatchNone
	case n == 1:
		return MatchPartial
	default:
		return MatchAmbiguous
	}
}

// FindPartial matches among channels viewer can see or is on. An exact
// match wins; among several prefix matches a channel the viewer is on is
// preferred over the first.
func (d *Directory) FindPartial(name string, viewer gamedb.DBRef) (*Channel, MatchResult) {
	key := normalizeName(name)
	if key == "" {
		return nil, MatchNone
	}
	var found *Channel
	count := 0
	exact := false
	d.prefixed(key, func(c *Channel) bool {
		on := d.OnChannel(c, viewer)
		if !on && !d.CanSee(c, viewer) {
			return true
		}
		if c.key == key {
			found, exact = c, true
			return false
		}
		count++
		if found == nil || (!d.OnChannel(found, viewer) && on) {
			found = c
		}
		return true
	})
	if exact {
		return found, MatchExact
	}
	return found, countResult(count)
}

// FindPartialOn matches among the channels viewer is on, keeping the first.
func (d *Directory) FindPartialOn(name string, viewer gamedb.DBRef) (*Channel, MatchResult) {
	key := normalizeName(name)
	list := d.idx.subs[viewer]
	if key == "" || list == nil {
		return nil, MatchNone
	}
	var found *Channel
	count := 0
	list.AscendGreaterOrEqual(&Channel{key: key}, func(c *Channel) bool {
		if !strings.HasPrefix(c.key, key) {
			return false
		}
		if c.key == key {
			found, count = c, -1
			return false
		}
		if found == nil {
			found = c
		}
		count++
		return true
	})
	if count < 0 {
		return found, MatchExact
	}
	return found, countResult(count)
}

// FindPartialOff matches among visible channels viewer is not on, keeping
// the first.
func (d *Directory) FindPartialOff(name string, viewer gamedb.DBRef) (*Channel, MatchResult) {
	key := normalizeName(name)
	if key == "" {
		return nil, MatchNone
	}
	var found *Channel
	count := 0
	d.prefixed(key, func(c *Channel) bool {
		if d.OnChannel(c, viewer) || !d.CanSee(c, viewer) {
			return true
		}
		if c.key == key {
			found, count = c, -1
			return false
		}
		if found == nil {
			found = c
		}
		count++
		return true
	})
	if count < 0 {
		return found, MatchExact
	}
	return found, countResult(count)
}

// PartialMatches lists the names of visible channels starting with name,
// filtered by scope.
func (d *Directory) PartialMatches(name string, viewer gamedb.DBRef, scope MatchScope) []string {
	key := normalizeName(name)
	var out []string
	d.prefixed(key, func(c *Channel) bool {
		if !d.CanSee(c, viewer) {
			return true
		}
		on := d.OnChannel(c, viewer)
		if (scope == ScopeOn && !on) || (scope == ScopeOff && on) {
			return true
		}
		out = append(out, c.name)
		return true
	})
	return out
}

func (d *Directory) listPartialMatches(player gamedb.DBRef, name string, scope MatchScope) {
	matches := d.PartialMatches(name, player, scope)
	d.notifier.Notify(player, "CHAT: Partial matches are: "+strings.Join(matches, " "))
}

// testChannel resolves name for a command, telling player why it failed.
func (d *Directory) testChannel(player gamedb.DBRef, name string) (*Channel, bool) {
	c, res := d.Find(name, player)
	switch res {
	case MatchNone:
		d.tell(player, "CHAT: I don't recognize that channel.")
		return nil, false
	case MatchAmbiguous:
		d.tell(player, "CHAT: I don't know which channel you mean.")
		d.listPartialMatches(player, name, ScopeAll)
		return nil, false
	}
	return c, true
}

// testChannelOn is testChannel restricted to channels player is on.
func (d *Directory) testChannelOn(player gamedb.DBRef, name string) (*Channel, bool) {
	c, res := d.FindPartialOn(name, player)
	switch res {
	case MatchNone:
		d.tell(player, "CHAT: I don't recognize that channel.")
		return nil, false
	case MatchAmbiguous:
		d.tell(player, "CHAT: I don't know which channel you mean.")
		d.listPartialMatches(player, name, ScopeOn)
		return nil, false
	}
	return c, true
}
