package rule

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/slack"
)

// testRuntime satisfies Runtime for rule tests.
type testRuntime struct {
	api  *slack.Client
	dir  *directory.Snapshot
	self event.ID
}

func (rt *testRuntime) API() *slack.Client             { return rt.api }
func (rt *testRuntime) Directory() *directory.Snapshot { return rt.dir }
func (rt *testRuntime) SelfID() event.ID               { return rt.self }
func (rt *testRuntime) Logger() *slog.Logger           { return slog.Default() }

func newTestRuntime() *testRuntime {
	return &testRuntime{
		dir: directory.NewSnapshot("UBOT",
			map[event.ID]string{"U1": "simba"},
			map[event.ID]string{"C1": "random", "C2": "general"},
		),
		self: "UBOT",
	}
}

func messageEvent(t *testing.T, frame string) event.Event {
	t.Helper()
	ev, err := event.Decode([]byte(frame))
	require.NoError(t, err)
	return ev
}

func TestReact_IgnoresNonMessageEvents(t *testing.T) {
	r := NewContains(Base{RuleName: "test", Runtime: newTestRuntime(), AnyChannel: true}, "anything")

	ev := messageEvent(t, `{"type":"presence_change","user":"U1","text":"anything"}`)
	actions, err := r.React(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestShouldRespondToChannel_DefaultResolvesNames(t *testing.T) {
	r := NewContains(Base{RuleName: "test", Runtime: newTestRuntime(), Channels: []string{"random"}}, "hi")
	ctx := context.Background()

	ok, err := r.ShouldRespondToChannel(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ShouldRespondToChannel(ctx, "C2")
	require.NoError(t, err)
	assert.False(t, ok)

	// Channel ids the directory cannot resolve never match.
	ok, err = r.ShouldRespondToChannel(ctx, "C404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldRespondToChannel_Overrides(t *testing.T) {
	ctx := context.Background()

	anyChannel := NewContains(Base{RuleName: "any", Runtime: newTestRuntime(), AnyChannel: true}, "hi")
	ok, err := anyChannel.ShouldRespondToChannel(ctx, "C404")
	require.NoError(t, err)
	assert.True(t, ok)

	dmOnly := NewContains(Base{RuleName: "dm", Runtime: newTestRuntime(), DMOnly: true}, "hi")
	ok, err = dmOnly.ShouldRespondToChannel(ctx, "D1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = dmOnly.ShouldRespondToChannel(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, ok)

	custom := NewContains(Base{
		RuleName: "custom",
		Runtime:  newTestRuntime(),
		ChannelFunc: func(_ context.Context, channel event.ID) (bool, error) {
			return channel == "C2", nil
		},
	}, "hi")
	ok, err = custom.ShouldRespondToChannel(ctx, "C2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContains_CaseInsensitiveSubstring(t *testing.T) {
	r := NewContains(Base{RuleName: "love", Runtime: newTestRuntime(), AnyChannel: true}, "love me")
	ctx := context.Background()

	ok, err := r.ShouldRespondToMessage(ctx, messageEvent(t,
		`{"type":"message","channel":"C1","text":"Does anyone LOVE me?"}`))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ShouldRespondToMessage(ctx, messageEvent(t,
		`{"type":"message","channel":"C1","text":"I love cats"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainsText(t *testing.T) {
	assert.True(t, ContainsText([]string{"are you there", "are you listening"},
		"robots of the world, ARE YOU LISTENING?"))
	assert.False(t, ContainsText([]string{"are you there"}, "hello"))
	assert.False(t, ContainsText(nil, "hello"))
}

func TestRegex_MatchAndSubmatches(t *testing.T) {
	r := NewRegex(Base{RuleName: "dice", Runtime: newTestRuntime(), AnyChannel: true},
		regexp.MustCompile(`\b(\d*)d(\d+)\b`))
	ctx := context.Background()

	ev := messageEvent(t, `{"type":"message","channel":"C1","text":"can i get 2d6 please"}`)
	ok, err := r.ShouldRespondToMessage(ctx, ev)
	require.NoError(t, err)
	assert.True(t, ok)

	match := r.Match(ev)
	require.Len(t, match, 3)
	assert.Equal(t, "2", match[1])
	assert.Equal(t, "6", match[2])

	ok, err = r.ShouldRespondToMessage(ctx, messageEvent(t,
		`{"type":"message","channel":"C1","text":"no dice here"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnippetOrContains_FetchesSnippetContents(t *testing.T) {
	var downloads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads++
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, "deploy failed: please PAGE the oncall")
	}))
	defer server.Close()

	rt := newTestRuntime()
	rt.api = slack.New("xoxb-test")
	r := NewSnippetOrContains(Base{RuleName: "oncall", Runtime: rt, AnyChannel: true}, "page the oncall")
	ctx := context.Background()

	// Plain text match does not touch the attachment.
	ok, err := r.ShouldRespondToMessage(ctx, messageEvent(t,
		`{"type":"message","channel":"C1","text":"page the oncall now"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, downloads)

	// Snippet share with non-matching text falls through to the download.
	frame := fmt.Sprintf(`{"type":"message","channel":"C1","text":"uploaded a file",
		"subtype":"file_share","file":{"mode":"snippet","url_private":%q}}`, server.URL)
	ok, err = r.ShouldRespondToMessage(ctx, messageEvent(t, frame))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, downloads)

	// Non-snippet file shares never download.
	ok, err = r.ShouldRespondToMessage(ctx, messageEvent(t,
		`{"type":"message","channel":"C1","text":"nothing","subtype":"file_share","file":{"mode":"hosted"}}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, downloads)
}

func TestRespond_DefaultWrapsTextPreservingThread(t *testing.T) {
	r := NewContains(Base{RuleName: "hi", Runtime: newTestRuntime(), AnyChannel: true}, "hi")
	r.TextFunc = func(context.Context, event.Event) ([]string, error) {
		return []string{"hello", "again"}, nil
	}

	ev := messageEvent(t, `{"type":"message","channel":"C1","text":"hi","thread_ts":"99.1"}`)
	actions, err := r.React(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, "chat.postMessage", actions[0].Method)
	assert.Equal(t, "hello", actions[0].Params["text"])
	assert.Equal(t, "C1", actions[0].Params["channel"])
	assert.Equal(t, "99.1", actions[0].Params["thread_ts"])
	assert.Equal(t, "again", actions[1].Params["text"])
}

func TestRespond_FullOverride(t *testing.T) {
	r := NewContains(Base{RuleName: "heart", Runtime: newTestRuntime(), AnyChannel: true}, "love me")
	r.RespondFunc = func(_ context.Context, ev event.Event) ([]slack.Action, error) {
		return []slack.Action{slack.AddReaction(ev.Channel, ev.TS, "heart")}, nil
	}

	ev := messageEvent(t, `{"type":"message","channel":"D1","user":"U1","ts":"42.1","text":"love me"}`)
	actions, err := r.React(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "reactions.add", actions[0].Method)
}

func TestBase_MissingMatcherIsInvalid(t *testing.T) {
	b := &Base{RuleName: "broken", Runtime: newTestRuntime(), AnyChannel: true}
	_, err := b.React(context.Background(), messageEvent(t,
		`{"type":"message","channel":"C1","text":"hi"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_ExplicitRegistration(t *testing.T) {
	reg := NewRegistry()
	factory := func(rt Runtime) (Rule, error) {
		return NewContains(Base{RuleName: "a", Runtime: rt, AnyChannel: true}, "a"), nil
	}

	require.NoError(t, reg.Register("a", factory))
	require.NoError(t, reg.Register("b", factory))

	err := reg.Register("a", factory)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateRule))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.NoError(t, reg.Register(name, func(rt Runtime) (Rule, error) {
			return NewContains(Base{RuleName: name, Runtime: rt, AnyChannel: true}, name), nil
		}))
	}
	rt := newTestRuntime()

	all, err := reg.Build(rt, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Name())
	assert.Equal(t, "third", all[2].Name())

	subset, err := reg.Build(rt, []string{"third", "first"})
	require.NoError(t, err)
	require.Len(t, subset, 2)
	assert.Equal(t, "third", subset[0].Name())

	_, err = reg.Build(rt, []string{"missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownRule))
}
