package events

import (
	"strings"
	"sync"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus routes chat events. Connection writers subscribe per player, metrics
// subscribes globally, and archivers subscribe to channel records, either
// for every channel or for a named set.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[gamedb.DBRef][]Subscriber
	global      []Subscriber
	records     []recordSub
}

// recordSub is a channel-record subscriber. A nil channel set means every
// channel. Names are kept case-folded.
type recordSub struct {
	sub      Subscriber
	channels map[string]bool
}

func (r recordSub) wants(channel string) bool {
	if r.channels == nil {
		return true
	}
	// Combined presence names several channels as "A|B".
	for _, name := range strings.Split(channel, "|") {
		if r.channels[strings.ToLower(name)] {
			return true
		}
	}
	return false
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[gamedb.DBRef][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific player's events.
func (b *Bus) Subscribe(player gamedb.DBRef, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[player] = append(b.subscribers[player], sub)
}

// Unsubscribe removes a subscriber for a specific player.
func (b *Bus) Unsubscribe(player gamedb.DBRef, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[player]
	for i, s := range subs {
		if s == sub {
			b.subscribers[player] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[player]) == 0 {
		delete(b.subscribers, player)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the player specified in ev.Player and all global subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.Player]
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EmitToPlayer sends an event to a specific player (overriding ev.Player).
func (b *Bus) EmitToPlayer(player gamedb.DBRef, ev Event) {
	ev.Player = player
	b.Emit(ev)
}

// SubscribeRecords registers sub for channel-level records. With no
// channel names it hears every channel.
func (b *Bus) SubscribeRecords(sub Subscriber, channels ...string) {
	r := recordSub{sub: sub}
	if len(channels) > 0 {
		r.channels = make(map[string]bool, len(channels))
		for _, name := range channels {
			r.channels[strings.ToLower(name)] = true
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
}

// RenameChannel moves record filters naming from over to to, so named
// subscriptions follow a channel rename.
func (b *Bus) RenameChannel(from, to string) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		if r.channels[from] {
			delete(r.channels, from)
			r.channels[to] = true
		}
	}
}

// EmitRecord sends a channel-level record to global subscribers and to the
// record subscribers that follow its channel. Per-player subscribers never
// see it.
func (b *Bus) EmitRecord(ev Event) {
	b.mu.RLock()
	targets := append([]Subscriber(nil), b.global...)
	for _, r := range b.records {
		if r.wants(ev.Channel) {
			targets = append(targets, r.sub)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// PlayerSubscribers returns the number of subscribers for a player.
func (b *Bus) PlayerSubscribers(player gamedb.DBRef) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[player])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for player, subs := range b.subscribers {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.subscribers, player)
		} else {
			b.subscribers[player] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal

	var activeRecords []recordSub
	for _, r := range b.records {
		if !r.sub.Closed() {
			activeRecords = append(activeRecords, r)
		}
	}
	b.records = activeRecords
}
