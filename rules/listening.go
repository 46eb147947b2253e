package rules

import (
	"context"

	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/rule"
)

// NewAreYouListening builds the liveness check rule: anyone asking in
// #random whether the bot is there gets an answer.
func NewAreYouListening(rt rule.Runtime) (rule.Rule, error) {
	c := rule.NewContains(rule.Base{
		RuleName: "are_you_listening",
		Runtime:  rt,
		Channels: []string{"random"},
	}, "are you there", "are you listening")
	c.TextFunc = func(context.Context, event.Event) ([]string, error) {
		return []string{"Yes. You can't see me, but I'm right behind you."}, nil
	}
	return c, nil
}
