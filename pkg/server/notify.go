package server

import (
	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// busNotifier turns chat deliveries into per-player bus events.
type busNotifier struct {
	bus *events.Bus
}

func (n busNotifier) Notify(to gamedb.DBRef, text string) {
	n.bus.Emit(events.Event{Type: events.EvText, Player: to, Source: gamedb.Nothing, Text: text})
}

func (n busNotifier) NotifyChannel(to gamedb.DBRef, channel, text string, presence bool) {
	typ := events.EvChannel
	if presence {
		typ = events.EvPresence
	}
	n.bus.Emit(events.Event{Type: typ, Player: to, Source: gamedb.Nothing, Channel: channel, Text: text})
}

// busObserver publishes one channel-level record per broadcast. The record
// carries no recipient, so only global and record subscribers see it.
type busObserver struct {
	bus *events.Bus
}

func (o busObserver) ChannelLine(l chat.Line) {
	typ := events.EvChannel
	if l.Flags&chat.SendPresence != 0 {
		typ = events.EvPresence
	}
	o.bus.EmitRecord(events.Event{
		Type:    typ,
		Player:  gamedb.Nothing,
		Source:  l.Speaker,
		Channel: chat.StripMarkup(l.Channel),
		Text:    l.Text,
	})
}
