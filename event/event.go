// Package event models inbound gateway events. Each websocket frame decodes
// into an immutable Event with typed fields for message events and a total
// accessor over the raw payload that yields Absent, never an error, for
// unknown keys.
package event

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/hauntsaninja/slackreact/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ID is an opaque gateway identifier. User and channel IDs share this type;
// they are distinguished from human-readable names everywhere in the runtime.
type ID string

// DirectMessagePrefix marks channel IDs that address a direct message.
const DirectMessagePrefix = "D"

// IsDirectMessage reports whether the ID addresses a direct-message channel.
func (id ID) IsDirectMessage() bool {
	return len(id) > 0 && id[0] == DirectMessagePrefix[0]
}

// absentValue is the type of the Absent sentinel.
type absentValue struct{}

func (absentValue) String() string { return "<absent>" }

// Absent is returned by Get for keys the event does not carry. Callers can
// compare against it directly; it is never returned for a key that exists,
// even one whose value is null.
var Absent any = absentValue{}

// File describes a file attachment on a file_share message.
type File struct {
	Mode       string `json:"mode"`
	URLPrivate string `json:"url_private"`
}

// Event is one decoded inbound gateway notification. The typed fields cover
// the message-event surface the runtime dispatches on; the full decoded
// payload stays reachable through Get. Events are immutable after Decode.
type Event struct {
	Type     string `json:"type"`
	Channel  ID     `json:"channel"`
	User     ID     `json:"user"`
	TS       string `json:"ts"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
	Subtype  string `json:"subtype"`
	File     *File  `json:"file"`

	raw map[string]any
}

// TypeMessage is the type discriminator for posted messages.
const TypeMessage = "message"

// Decode parses one websocket frame into an Event. A null or missing text
// field is normalized to the empty string so matchers never see a null.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, errors.WrapInvalid(err, "Event", "Decode", "frame parsing")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, errors.WrapInvalid(err, "Event", "Decode", "payload parsing")
	}
	ev.raw = raw

	return ev, nil
}

// Get returns the decoded value for key, or Absent if the event does not
// carry it. A key present with a JSON null yields nil, not Absent.
func (e Event) Get(key string) any {
	v, ok := e.raw[key]
	if !ok {
		return Absent
	}
	return v
}

// Fields returns a copy of the full decoded payload. Mutating the copy does
// not affect the event.
func (e Event) Fields() map[string]any {
	fields := make(map[string]any, len(e.raw))
	for k, v := range e.raw {
		fields[k] = v
	}
	return fields
}

// Has reports whether the event carries key, even with a null value.
func (e Event) Has(key string) bool {
	_, ok := e.raw[key]
	return ok
}

// IsMessage reports whether this is a posted-message event.
func (e Event) IsMessage() bool {
	return e.Type == TypeMessage
}

// IsDirectMessage reports whether this is a message in a direct-message
// channel.
func (e Event) IsDirectMessage() bool {
	return e.IsMessage() && e.Channel.IsDirectMessage()
}

// IsThreaded reports whether the event belongs to a thread.
func (e Event) IsThreaded() bool {
	return e.ThreadTS != ""
}

// IsSnippetShare reports whether the event shares a snippet attachment.
func (e Event) IsSnippetShare() bool {
	return e.Subtype == "file_share" && e.File != nil && e.File.Mode == "snippet"
}
