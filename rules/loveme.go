package rules

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/rule"
	"github.com/hauntsaninja/slackreact/slack"
)

// neediness is how long a user stays on the needy list after asking for
// love.
const neediness = 5 * time.Minute

// loveMe reacts with a heart to direct messages asking for love, and keeps
// hearting every DM from that user for the next five minutes. Its needy map
// is shared across concurrent batches, so all access goes through the
// mutex.
type loveMe struct {
	*rule.Contains

	mu    sync.Mutex
	needy map[event.ID]float64
}

// NewLoveMe builds the love rule.
func NewLoveMe(rt rule.Runtime) (rule.Rule, error) {
	l := &loveMe{
		Contains: rule.NewContains(rule.Base{
			RuleName: "love_me",
			Runtime:  rt,
			DMOnly:   true,
		}, "love me"),
		needy: make(map[event.ID]float64),
	}
	l.MatchFunc = l.match
	l.RespondFunc = l.heart
	l.LoadFunc = l.reset
	return l, nil
}

// reset clears the needy list at the start of each connection cycle.
func (l *loveMe) reset(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.needy = make(map[event.ID]float64)
	return nil
}

// match marks a matching sender as needy, expires stale entries, and
// responds to anyone currently on the list.
func (l *loveMe) match(_ context.Context, ev event.Event) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rule.ContainsText(l.Queries, ev.Text) {
		ts, err := strconv.ParseFloat(ev.TS, 64)
		if err != nil {
			ts = float64(time.Now().Unix())
		}
		l.needy[ev.User] = ts
	}

	cutoff := float64(time.Now().Unix()) - neediness.Seconds()
	for user, ts := range l.needy {
		if ts <= cutoff {
			delete(l.needy, user)
		}
	}

	_, ok := l.needy[ev.User]
	return ok, nil
}

func (l *loveMe) heart(_ context.Context, ev event.Event) ([]slack.Action, error) {
	return []slack.Action{slack.AddReaction(ev.Channel, ev.TS, "heart")}, nil
}
