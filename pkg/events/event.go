package events

import "github.com/crystal-mush/mushchat/pkg/gamedb"

// EventType classifies events for subscribers.
type EventType int

const (
	EvText       EventType = iota // Plain notification to one player
	EvChannel                     // Channel line
	EvPresence                    // Join/leave or connect/disconnect line on a channel
	EvConnect                     // Player connected
	EvDisconnect                  // Player disconnected
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvChannel:
		return "channel"
	case EvPresence:
		return "presence"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is one message flowing through the bus. Per-recipient deliveries
// carry the recipient in Player; channel-level records carry gamedb.Nothing
// and reach only global subscribers.
type Event struct {
	Type    EventType
	Player  gamedb.DBRef // Recipient (Nothing for channel-level records)
	Source  gamedb.DBRef // Who generated the event
	Channel string       // Channel name, or "A|B" for combined presence
	Text    string       // Rendered line
}
