package rules

import (
	"context"
	"regexp"

	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/rule"
)

// mentionPattern extracts the user id from an @-mention as the gateway
// encodes it in message text.
var mentionPattern = regexp.MustCompile(`<@(U\w+)>`)

// NewEmail builds the email lookup rule: mention someone alongside the word
// "email" and the bot replies with their profile email.
func NewEmail(rt rule.Runtime) (rule.Rule, error) {
	c := rule.NewContains(rule.Base{
		RuleName:   "email",
		Runtime:    rt,
		AnyChannel: true,
	}, "email")
	c.TextFunc = func(ctx context.Context, ev event.Event) ([]string, error) {
		m := mentionPattern.FindStringSubmatch(ev.Text)
		if m == nil {
			// Only nudge in DMs; in shared channels the word "email" alone
			// is not addressed to the bot.
			if ev.IsDirectMessage() {
				return []string{"You have to @tag the person"}, nil
			}
			return nil, nil
		}

		user := event.ID(m[1])
		if user == c.Runtime.SelfID() {
			return []string{"I hope you'll excuse me, but I am a bot who values my privacy."}, nil
		}

		resp, err := c.Runtime.API().Call(ctx, "users.info", map[string]any{"user": string(user)})
		if err != nil {
			return nil, err
		}
		return []string{profileEmail(resp)}, nil
	}
	return c, nil
}

func profileEmail(resp map[string]any) string {
	if user, ok := resp["user"].(map[string]any); ok {
		if profile, ok := user["profile"].(map[string]any); ok {
			if email, ok := profile["email"].(string); ok && email != "" {
				return email
			}
		}
	}
	return "No email found :("
}
