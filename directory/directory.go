// Package directory maintains the id↔name lookup tables for users and
// channels. A snapshot is built once per connection cycle and replaced
// wholesale; readers always observe either the old or the new complete
// snapshot, never a partial one.
package directory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/slack"
)

// Snapshot holds the bidirectional tables for one connection cycle plus the
// bot's own identity. Snapshots are immutable after construction.
type Snapshot struct {
	selfID       event.ID
	usersByID    map[event.ID]string
	idsByUser    map[string]event.ID
	channelsByID map[event.ID]string
	idsByChannel map[string]event.ID
}

// NewSnapshot builds a snapshot from id→name pairs for each entity kind.
func NewSnapshot(selfID event.ID, users, channels map[event.ID]string) *Snapshot {
	s := &Snapshot{
		selfID:       selfID,
		usersByID:    make(map[event.ID]string, len(users)),
		idsByUser:    make(map[string]event.ID, len(users)),
		channelsByID: make(map[event.ID]string, len(channels)),
		idsByChannel: make(map[string]event.ID, len(channels)),
	}
	for id, name := range users {
		s.usersByID[id] = name
		s.idsByUser[name] = id
	}
	for id, name := range channels {
		s.channelsByID[id] = name
		s.idsByChannel[name] = id
	}
	return s
}

// SelfID returns the bot's own identity for this connection cycle.
func (s *Snapshot) SelfID() event.ID { return s.selfID }

// UserName resolves a user id to its name.
func (s *Snapshot) UserName(id event.ID) (string, bool) {
	name, ok := s.usersByID[id]
	return name, ok
}

// UserID resolves a user name to its id.
func (s *Snapshot) UserID(name string) (event.ID, bool) {
	id, ok := s.idsByUser[name]
	return id, ok
}

// ChannelName resolves a channel id to its name.
func (s *Snapshot) ChannelName(id event.ID) (string, bool) {
	name, ok := s.channelsByID[id]
	return name, ok
}

// ChannelID resolves a channel name to its id.
func (s *Snapshot) ChannelID(name string) (event.ID, bool) {
	id, ok := s.idsByChannel[name]
	return id, ok
}

// ReadableEvent renders an event with human-readable names added for
// diagnostics and operator reports. IDs stay intact; unknown ids leave the
// name fields empty.
func (s *Snapshot) ReadableEvent(ev event.Event) map[string]any {
	fields := ev.Fields()
	fields["channel_name"], _ = s.ChannelName(ev.Channel)
	fields["user_name"], _ = s.UserName(ev.User)
	return fields
}

// Cache provides lock-free access to the current snapshot. Replace swaps in
// a complete new snapshot atomically.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache returns a cache holding an empty snapshot.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(NewSnapshot("", nil, nil))
	return c
}

// Current returns the current snapshot. Never nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Replace atomically installs a new snapshot.
func (c *Cache) Replace(s *Snapshot) {
	if s == nil {
		s = NewSnapshot("", nil, nil)
	}
	c.current.Store(s)
}

// Load fetches both directories through independent paginated calls, run
// concurrently, and returns a complete snapshot. It is called once per
// connection cycle, before any event is dispatched on the new connection.
func Load(ctx context.Context, client *slack.Client, selfID event.ID, logger *slog.Logger) (*Snapshot, error) {
	var (
		wg          sync.WaitGroup
		users       map[event.ID]string
		channels    map[event.ID]string
		usersErr    error
		channelsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		users, usersErr = loadTable(ctx, client, "users.list", nil, "members")
	}()
	go func() {
		defer wg.Done()
		channels, channelsErr = loadTable(ctx, client, "conversations.list",
			map[string]any{"types": "public_channel,private_channel"}, "channels")
	}()
	wg.Wait()

	if usersErr != nil {
		return nil, errors.WrapTransient(usersErr, "Directory", "Load", "user table")
	}
	if channelsErr != nil {
		return nil, errors.WrapTransient(channelsErr, "Directory", "Load", "channel table")
	}

	logger.Info("Directory loaded", "users", len(users), "channels", len(channels))
	return NewSnapshot(selfID, users, channels), nil
}

// loadTable collects one entity kind into an id→name map.
func loadTable(
	ctx context.Context, client *slack.Client, method string, params map[string]any, collectKey string,
) (map[event.ID]string, error) {
	items, err := client.PaginatedCall(ctx, method, params, collectKey)
	if err != nil {
		return nil, err
	}
	table := make(map[event.ID]string, len(items))
	for _, item := range items {
		id, _ := item["id"].(string)
		name, _ := item["name"].(string)
		if id == "" {
			continue
		}
		table[event.ID(id)] = name
	}
	return table, nil
}
