package rules

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/rule"
	"github.com/hauntsaninja/slackreact/slack"
)

type testRuntime struct {
	api      *slack.Client
	snapshot *directory.Snapshot
	selfID   event.ID
}

func (rt *testRuntime) API() *slack.Client { return rt.api }

func (rt *testRuntime) Directory() *directory.Snapshot { return rt.snapshot }

func (rt *testRuntime) SelfID() event.ID { return rt.selfID }

func (rt *testRuntime) Logger() *slog.Logger { return slog.Default() }

func nowUnix() int64 { return time.Now().Unix() }

func newTestRuntime(t *testing.T, apiHandler http.HandlerFunc) *testRuntime {
	t.Helper()
	rt := &testRuntime{
		selfID: "UBOT",
		snapshot: directory.NewSnapshot("UBOT",
			map[event.ID]string{"U1": "simba", "UBOT": "bot"},
			map[event.ID]string{"C1": "random", "C2": "general"},
		),
	}
	if apiHandler != nil {
		server := httptest.NewServer(apiHandler)
		t.Cleanup(server.Close)
		rt.api = slack.New("xoxb-test", slack.WithBaseURL(server.URL))
	}
	return rt
}

func ev(t *testing.T, frame string) event.Event {
	t.Helper()
	decoded, err := event.Decode([]byte(frame))
	require.NoError(t, err)
	return decoded
}

func texts(t *testing.T, actions []slack.Action) []string {
	t.Helper()
	var out []string
	for _, a := range actions {
		require.Equal(t, "chat.postMessage", a.Method)
		text, _ := a.Params["text"].(string)
		out = append(out, text)
	}
	return out
}

func TestRegisterAll(t *testing.T) {
	registry := rule.NewRegistry()
	require.NoError(t, RegisterAll(registry))
	assert.Equal(t, []string{"are_you_listening", "die_roll", "love_me", "email"}, registry.Names())

	built, err := registry.Build(newTestRuntime(t, nil), nil)
	require.NoError(t, err)
	assert.Len(t, built, 4)
}

func TestAreYouListening(t *testing.T) {
	r, err := NewAreYouListening(newTestRuntime(t, nil))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C1","user":"U1","text":"robots of the world, ARE YOU LISTENING?"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "Yes. You can't see me, but I'm right behind you.", texts(t, actions)[0])

	// Wrong channel.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"are you there?"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)

	// No query match.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C1","user":"U1","text":"hello"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

var sumPattern = regexp.MustCompile(`^Sum of (\d+) from rolling: (.+)$`)

func TestDieRoll(t *testing.T) {
	r, err := NewDieRoll(newTestRuntime(t, nil))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"2d6 drop lowest"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)

	m := sumPattern.FindStringSubmatch(texts(t, actions)[0])
	require.NotNil(t, m)
	sum, _ := strconv.Atoi(m[1])
	rolls := strings.Split(m[2], ", ")
	require.Len(t, rolls, 1) // two dice, lowest dropped
	shown, _ := strconv.Atoi(rolls[0])
	assert.Equal(t, shown, sum)
	assert.GreaterOrEqual(t, shown, 1)
	assert.LessOrEqual(t, shown, 6)
}

func TestDieRoll_DefaultsToOneDie(t *testing.T) {
	r, err := NewDieRoll(newTestRuntime(t, nil))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"can i get a d3?"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)

	m := sumPattern.FindStringSubmatch(texts(t, actions)[0])
	require.NotNil(t, m)
	assert.Len(t, strings.Split(m[2], ", "), 1)
}

func TestDieRoll_RejectsZeroSides(t *testing.T) {
	r, err := NewDieRoll(newTestRuntime(t, nil))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"1d0"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "I can't roll a die with no sides.", texts(t, actions)[0])
}

func TestLoveMe(t *testing.T) {
	r, err := NewLoveMe(newTestRuntime(t, nil))
	require.NoError(t, err)
	require.NoError(t, r.Load(context.Background()))

	now := fmt.Sprintf("%d.000100", nowUnix())

	// Asking for love in a DM earns a heart.
	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D1","user":"U1","text":"does anyone love me :(","ts":"`+now+`"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "reactions.add", actions[0].Method)
	assert.Equal(t, "heart", actions[0].Params["name"])

	// A needy user's next DM gets a heart even without the phrase.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D1","user":"U1","text":"hello?","ts":"`+now+`"}`))
	require.NoError(t, err)
	assert.Len(t, actions, 1)

	// Other users are not needy.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D2","user":"U2","text":"hello?","ts":"`+now+`"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)

	// Only direct messages qualify.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C1","user":"U1","text":"love me","ts":"`+now+`"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)

	// A reload forgets everyone.
	require.NoError(t, r.Load(context.Background()))
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D1","user":"U1","text":"hello?","ts":"`+now+`"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestLoveMe_WindowExpires(t *testing.T) {
	r, err := NewLoveMe(newTestRuntime(t, nil))
	require.NoError(t, err)
	require.NoError(t, r.Load(context.Background()))

	stale := fmt.Sprintf("%d.000100", nowUnix()-600)
	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D1","user":"U1","text":"love me","ts":"`+stale+`"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEmail(t *testing.T) {
	var lookedUp string
	handler := func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		assert.Equal(t, "/users.info", r.URL.Path)
		lookedUp = r.PostFormValue("user")
		fmt.Fprint(w, `{"ok":true,"user":{"profile":{"email":"simba@pride.rock"}}}`)
	}
	r, err := NewEmail(newTestRuntime(t, handler))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U2","text":"what is <@U1>'s email"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "simba@pride.rock", texts(t, actions)[0])
	assert.Equal(t, "U1", lookedUp)
}

func TestEmail_NoMention(t *testing.T) {
	r, err := NewEmail(newTestRuntime(t, nil))
	require.NoError(t, err)

	// In a DM the bot explains what it needs.
	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"D1","user":"U1","text":"email please"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "You have to @tag the person", texts(t, actions)[0])

	// In a shared channel it stays quiet.
	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"check your email"}`))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEmail_SelfAndFallback(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"user":{"profile":{}}}`)
	}
	r, err := NewEmail(newTestRuntime(t, handler))
	require.NoError(t, err)

	actions, err := r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U1","text":"what's <@UBOT>'s email"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, texts(t, actions)[0], "values my privacy")

	actions, err = r.React(context.Background(),
		ev(t, `{"type":"message","channel":"C2","user":"U2","text":"what's <@U1>'s email"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "No email found :(", texts(t, actions)[0])
}
