// Package bot owns the persistent gateway connection: the handshake, the
// websocket read loop with its heartbeat, the per-connection directory
// refresh, and the reconnect cycle. Events read from the socket are handed
// to the dispatcher; the bot never evaluates rules itself.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/dispatch"
	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/metric"
	"github.com/hauntsaninja/slackreact/pkg/retry"
	"github.com/hauntsaninja/slackreact/slack"
)

const (
	// DefaultReadTimeout is how long the socket may stay silent before the
	// bot probes it with a ping.
	DefaultReadTimeout = 20 * time.Second

	// DefaultPingWait is how long the bot waits for the ping's answer
	// before declaring the connection dead.
	DefaultPingWait = 10 * time.Second
)

// Bot manages the gateway connection lifecycle. It also serves as the rule
// runtime: rules reach the API client, the current directory snapshot, and
// the bot's own identity through it.
type Bot struct {
	client   *slack.Client
	cache    *directory.Cache
	reporter *dispatch.Reporter
	logger   *slog.Logger
	metrics  *metric.BotMetrics

	dialer      *websocket.Dialer
	readTimeout time.Duration
	pingWait    time.Duration
	reconnect   retry.Config

	selfID atomic.Value // event.ID, set at each handshake
}

// Option configures a Bot.
type Option func(*Bot)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(b *Bot) { b.dialer = d }
}

// WithTimeouts overrides the read-silence and ping-answer windows.
func WithTimeouts(read, ping time.Duration) Option {
	return func(b *Bot) {
		b.readTimeout = read
		b.pingWait = ping
	}
}

// WithReconnectConfig overrides the backoff between reconnect cycles.
func WithReconnectConfig(cfg retry.Config) Option {
	return func(b *Bot) { b.reconnect = cfg }
}

// New creates a bot. The dispatcher is supplied to Run, not here, because
// rules are built against the bot's runtime before the dispatcher exists.
func New(
	client *slack.Client,
	cache *directory.Cache,
	reporter *dispatch.Reporter,
	logger *slog.Logger,
	metrics *metric.BotMetrics,
	opts ...Option,
) *Bot {
	b := &Bot{
		client:      client,
		cache:       cache,
		reporter:    reporter,
		logger:      logger,
		metrics:     metrics,
		dialer:      websocket.DefaultDialer,
		readTimeout: DefaultReadTimeout,
		pingWait:    DefaultPingWait,
		reconnect:   retry.Reconnect(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// API returns the shared Web API client.
func (b *Bot) API() *slack.Client { return b.client }

// Directory returns the current directory snapshot.
func (b *Bot) Directory() *directory.Snapshot { return b.cache.Current() }

// SelfID returns the bot's own identity, or "" before the first handshake.
func (b *Bot) SelfID() event.ID {
	if id, ok := b.selfID.Load().(event.ID); ok {
		return id
	}
	return ""
}

// Logger returns the bot's structured logger.
func (b *Bot) Logger() *slog.Logger { return b.logger }

// Run drives connection cycles until the context is cancelled or a fatal
// error occurs. Each cycle performs a fresh handshake (socket URLs are
// single-use), reloads the directory and the rules, then reads events until
// the connection is lost. Transient losses back off exponentially; the
// backoff resets once a connection becomes ready.
func (b *Bot) Run(ctx context.Context, d *dispatch.Dispatcher) error {
	backoff := retry.NewBackoff(b.reconnect)

	for {
		err := b.runConnection(ctx, d, backoff.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.IsFatal(err) {
			b.reporter.Error(ctx, "Gateway connection failed fatally", "error", err)
			return err
		}

		if b.metrics != nil {
			b.metrics.Reconnects.Inc()
		}
		b.reporter.Error(ctx, "Gateway connection lost, reconnecting", "error", err)
		if werr := backoff.Wait(ctx); werr != nil {
			return werr
		}
	}
}

// runConnection performs one full connection cycle. onReady is invoked once
// the connection is established and the directory and rules are loaded.
func (b *Bot) runConnection(ctx context.Context, d *dispatch.Dispatcher, onReady func()) error {
	session, err := b.client.Connect(ctx)
	if err != nil {
		return err
	}
	b.selfID.Store(session.SelfID)

	conn, resp, err := b.dialer.DialContext(ctx, session.URL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
			"Bot", "runConnection", "socket dial")
	}
	defer func() { _ = conn.Close() }()

	// Unblock the read loop promptly on shutdown.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	// The directory is refreshed wholesale on every connection so renames
	// and new channels from the downtime window are picked up.
	snapshot, err := directory.Load(ctx, b.client, session.SelfID, b.logger)
	if err != nil {
		return err
	}
	b.cache.Replace(snapshot)
	d.LoadRules(ctx)

	if b.metrics != nil {
		b.metrics.Connected.Set(1)
		defer b.metrics.Connected.Set(0)
	}
	onReady()
	b.logger.Info("Gateway connected", "self_id", string(session.SelfID))

	return b.readLoop(ctx, conn, d)
}

// readLoop reads frames until the connection dies. A silent socket is probed
// with a ping; an unanswered ping means the connection is gone and the
// caller reconnects.
func (b *Bot) readLoop(ctx context.Context, conn *websocket.Conn, d *dispatch.Dispatcher) error {
	var lastPong atomic.Int64
	conn.SetPongHandler(func(string) error {
		lastPong.Store(time.Now().UnixNano())
		return nil
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_ = conn.SetReadDeadline(time.Now().Add(b.readTimeout))
		_, data, err := conn.ReadMessage()
		if err == nil {
			b.handleFrame(ctx, d, data)
			continue
		}
		if !isTimeout(err) {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				"Bot", "readLoop", "socket read")
		}

		// Quiet socket: probe it and give the peer pingWait to answer.
		pingAt := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, nil, pingAt.Add(b.pingWait)); err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrHeartbeatTimeout, err),
				"Bot", "readLoop", "ping write")
		}

		_ = conn.SetReadDeadline(time.Now().Add(b.pingWait))
		_, data, err = conn.ReadMessage()
		if err == nil {
			// Any traffic at all proves the connection is alive.
			b.handleFrame(ctx, d, data)
			continue
		}
		if !isTimeout(err) {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				"Bot", "readLoop", "socket read")
		}
		if lastPong.Load() >= pingAt.UnixNano() {
			continue
		}
		return errors.WrapTransient(errors.ErrHeartbeatTimeout, "Bot", "readLoop", "heartbeat")
	}
}

// handleFrame decodes one socket frame and queues it for dispatch.
// Malformed frames are logged and skipped; they never kill the connection.
func (b *Bot) handleFrame(ctx context.Context, d *dispatch.Dispatcher, data []byte) {
	if b.metrics != nil {
		b.metrics.EventsReceived.Inc()
	}

	ev, err := event.Decode(data)
	if err != nil {
		b.logger.Warn("Dropping undecodable frame", "error", err)
		return
	}

	if err := d.Submit(ctx, ev); err != nil {
		b.logger.Warn("Dropping event, dispatch queue full", "type", ev.Type, "channel", string(ev.Channel))
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
