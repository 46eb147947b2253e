// Package rule defines the pluggable rule contract: channel filtering,
// message matching, and response generation, layered as explicit delegation
// through a Base type with overridable strategy points. Built-in variants
// supply the common matching strategies; an explicit Registry holds the
// rule factories the runtime instantiates at startup.
package rule

import (
	"context"
	"log/slog"

	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/slack"
)

// Runtime is the view of the bot injected into every rule at construction.
// Rules use it for API calls and directory lookups; they must not assume
// anything else about the process hosting them.
type Runtime interface {
	// API returns the gateway API client.
	API() *slack.Client
	// Directory returns the current directory snapshot. The snapshot is
	// replaced wholesale on reconnect; hold the returned value for a
	// consistent view, call again for a fresh one.
	Directory() *directory.Snapshot
	// SelfID returns the bot's own identity for the current connection.
	SelfID() event.ID
	// Logger returns the runtime logger.
	Logger() *slog.Logger
}

// Rule is the contract the dispatcher evaluates against every event.
//
// Lifecycle: a rule is constructed once at bot startup and lives for the
// whole process run. Load is invoked once per connection cycle to
// (re)initialize private state. React is the sole per-event entry point.
//
// Rules run on separate goroutines, so a rule whose React mutates state
// shared across events must synchronize that state itself.
type Rule interface {
	// Name identifies the rule in the registry, config, and reports.
	Name() string
	// Load (re)initializes rule state. Called once per connection cycle,
	// before any event is dispatched on that connection.
	Load(ctx context.Context) error
	// React evaluates one event and returns the actions to execute, which
	// may be empty. Failures are isolated per rule by the dispatcher.
	React(ctx context.Context, ev event.Event) ([]slack.Action, error)
}
