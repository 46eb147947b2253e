package slack

import (
	"context"

	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
)

// Action describes one outbound API call produced by a rule's response
// phase: a method name plus its parameters.
type Action struct {
	Method string
	Params map[string]any
}

// PostMessage builds a chat.postMessage action addressed to channel. When
// threadTS is non-empty the reply stays in that thread.
func PostMessage(channel event.ID, text, threadTS string) Action {
	params := map[string]any{
		"channel": string(channel),
		"text":    text,
		"as_user": true,
	}
	if threadTS != "" {
		params["thread_ts"] = threadTS
	}
	return Action{Method: "chat.postMessage", Params: params}
}

// AddReaction builds a reactions.add action for the message at ts.
func AddReaction(channel event.ID, ts, name string) Action {
	return Action{
		Method: "reactions.add",
		Params: map[string]any{
			"channel":   string(channel),
			"timestamp": ts,
			"name":      name,
			"as_user":   true,
		},
	}
}

// Submit executes one action through the generic call interface.
func (c *Client) Submit(ctx context.Context, action Action) error {
	if action.Method == "" {
		return errors.WrapInvalid(
			errors.New("action has no method"), "Client", "Submit", "action validation")
	}
	resp, err := c.Call(ctx, action.Method, action.Params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return errors.WrapTransient(
			errors.New("API returned ok=false: "+resp.String("error")),
			"Client", "Submit", action.Method)
	}
	return nil
}
