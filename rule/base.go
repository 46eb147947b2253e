package rule

import (
	"context"

	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/slack"
)

// Base supplies the default rule composition. Each phase delegates to the
// next more specific strategy; a rule overrides a phase by setting the
// corresponding func field and inherits the default everywhere else.
//
// Evaluation order in React:
//
//  1. event must be a posted message
//  2. channel filter (Channels list, AnyChannel, DMOnly, or ChannelFunc)
//  3. message matcher (MatchFunc, required)
//  4. response generation (TextFunc wrapped as chat.postMessage, or
//     RespondFunc for full control)
type Base struct {
	// RuleName identifies the rule. Required.
	RuleName string
	// Runtime is injected by the registry at construction. Required.
	Runtime Runtime

	// Channels lists the channel names this rule applies to. Used by the
	// default channel filter; ignored when AnyChannel, DMOnly, or
	// ChannelFunc is set.
	Channels []string
	// AnyChannel makes the rule respond in every channel.
	AnyChannel bool
	// DMOnly restricts the rule to direct-message channels.
	DMOnly bool
	// ChannelFunc fully overrides channel filtering when set.
	ChannelFunc func(ctx context.Context, channel event.ID) (bool, error)

	// MatchFunc is the message matching predicate. Every rule must supply
	// one, directly or through a variant.
	MatchFunc func(ctx context.Context, ev event.Event) (bool, error)

	// TextFunc generates reply text; each returned string becomes one
	// chat.postMessage action addressed to the event's channel, preserving
	// the thread reference when the triggering event was threaded.
	TextFunc func(ctx context.Context, ev event.Event) ([]string, error)
	// RespondFunc fully overrides response generation when set, for rules
	// that emit structurally different actions.
	RespondFunc func(ctx context.Context, ev event.Event) ([]slack.Action, error)

	// LoadFunc, when set, runs once per connection cycle.
	LoadFunc func(ctx context.Context) error
}

// Name implements Rule.
func (b *Base) Name() string { return b.RuleName }

// Load implements Rule.
func (b *Base) Load(ctx context.Context) error {
	if b.LoadFunc == nil {
		return nil
	}
	return b.LoadFunc(ctx)
}

// React implements Rule: evaluate the filters, then generate the response.
func (b *Base) React(ctx context.Context, ev event.Event) ([]slack.Action, error) {
	ok, err := b.ShouldRespondToEvent(ctx, ev)
	if err != nil || !ok {
		return nil, err
	}
	return b.Respond(ctx, ev)
}

// ShouldRespondToEvent is the default event filter: false unless the event
// is a posted message in an applicable channel whose text the rule matches.
func (b *Base) ShouldRespondToEvent(ctx context.Context, ev event.Event) (bool, error) {
	if !ev.IsMessage() {
		return false, nil
	}
	ok, err := b.ShouldRespondToChannel(ctx, ev.Channel)
	if err != nil || !ok {
		return false, err
	}
	return b.ShouldRespondToMessage(ctx, ev)
}

// ShouldRespondToChannel is the default channel filter: resolve the id
// through the directory and check membership in the applicable-channel
// list. AnyChannel, DMOnly, and ChannelFunc override it.
func (b *Base) ShouldRespondToChannel(ctx context.Context, channel event.ID) (bool, error) {
	if b.ChannelFunc != nil {
		return b.ChannelFunc(ctx, channel)
	}
	if b.AnyChannel {
		return true, nil
	}
	if b.DMOnly {
		return channel.IsDirectMessage(), nil
	}

	name, ok := b.Runtime.Directory().ChannelName(channel)
	if !ok {
		return false, nil
	}
	for _, applicable := range b.Channels {
		if name == applicable {
			return true, nil
		}
	}
	return false, nil
}

// ShouldRespondToMessage delegates to the rule's matching predicate.
func (b *Base) ShouldRespondToMessage(ctx context.Context, ev event.Event) (bool, error) {
	if b.MatchFunc == nil {
		return false, errors.WrapInvalid(
			errors.New("rule has no message matcher"), "Rule", b.RuleName, "matcher lookup")
	}
	return b.MatchFunc(ctx, ev)
}

// Respond wraps the rule's generated text into chat.postMessage actions
// addressed to the event's channel. RespondFunc overrides it entirely.
func (b *Base) Respond(ctx context.Context, ev event.Event) ([]slack.Action, error) {
	if b.RespondFunc != nil {
		return b.RespondFunc(ctx, ev)
	}
	if b.TextFunc == nil {
		return nil, errors.WrapInvalid(
			errors.New("rule has no response generator"), "Rule", b.RuleName, "responder lookup")
	}

	texts, err := b.TextFunc(ctx, ev)
	if err != nil {
		return nil, err
	}
	actions := make([]slack.Action, 0, len(texts))
	for _, text := range texts {
		actions = append(actions, slack.PostMessage(ev.Channel, text, ev.ThreadTS))
	}
	return actions, nil
}
