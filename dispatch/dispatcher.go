// Package dispatch runs every registered rule against each inbound event
// concurrently, bounds the total wait per event, isolates per-rule failures,
// and executes the resulting actions. Events flow through a bounded worker
// pool so in-flight batches cannot grow without limit under load.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hauntsaninja/slackreact/directory"
	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/metric"
	"github.com/hauntsaninja/slackreact/pkg/worker"
	"github.com/hauntsaninja/slackreact/rule"
	"github.com/hauntsaninja/slackreact/slack"
)

// DefaultBatchTimeout bounds one dispatch batch: all rule reactions for one
// event share this single deadline.
const DefaultBatchTimeout = 20 * time.Second

// Config holds dispatcher tuning.
type Config struct {
	// Workers is the number of concurrent dispatch batches.
	Workers int
	// QueueSize bounds events waiting for a worker.
	QueueSize int
	// BatchTimeout overrides DefaultBatchTimeout when positive.
	BatchTimeout time.Duration
}

// Dispatcher owns per-event rule evaluation. One Dispatcher serves the
// whole process run; rules are instantiated once and shared across batches.
type Dispatcher struct {
	client   *slack.Client
	cache    *directory.Cache
	rules    []rule.Rule
	reporter *Reporter
	logger   *slog.Logger
	metrics  *metric.BotMetrics
	timeout  time.Duration
	pool     *worker.Pool[event.Event]
}

// New creates a dispatcher over the given rule instances.
func New(
	client *slack.Client,
	cache *directory.Cache,
	rules []rule.Rule,
	reporter *Reporter,
	logger *slog.Logger,
	metrics *metric.BotMetrics,
	registry *metric.Registry,
	cfg Config,
) *Dispatcher {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}

	d := &Dispatcher{
		client:   client,
		cache:    cache,
		rules:    rules,
		reporter: reporter,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
	}
	d.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, d.process,
		worker.WithMetrics[event.Event](registry, "slackreact_dispatch"))
	return d
}

// Start launches the dispatch workers.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.pool.Start(ctx)
}

// Stop drains queued events and waits for in-flight batches.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	return d.pool.Stop(timeout)
}

// Stats returns the dispatch pool counters.
func (d *Dispatcher) Stats() worker.PoolStats {
	return d.pool.Stats()
}

// Submit queues one event for dispatch. Events authored by the bot's own
// identity are dropped here, before any rule sees them; direct messages are
// logged for visibility regardless of rule outcome.
func (d *Dispatcher) Submit(ctx context.Context, ev event.Event) error {
	snapshot := d.cache.Current()
	if ev.User != "" && ev.User == snapshot.SelfID() {
		return nil
	}

	if ev.IsDirectMessage() {
		d.reporter.Info(ctx, "Direct message received",
			"event", render(snapshot.ReadableEvent(ev)))
	}

	if err := d.pool.Submit(ev); err != nil {
		if d.metrics != nil {
			d.metrics.EventsDropped.Inc()
		}
		return errors.WrapTransient(errors.ErrQueueFull, "Dispatcher", "Submit", "event enqueue")
	}
	return nil
}

// LoadRules (re)initializes every rule concurrently under the same
// isolation and deadline as an event batch. Called once per connection
// cycle before events flow.
func (d *Dispatcher) LoadRules(ctx context.Context) {
	d.runBatch(ctx, nil, func(batchCtx context.Context, r rule.Rule) ([]slack.Action, error) {
		return nil, r.Load(batchCtx)
	})
}

// process is the pool processor: one call handles one event's full batch.
func (d *Dispatcher) process(ctx context.Context, ev event.Event) error {
	start := time.Now()
	if d.metrics != nil {
		defer func() {
			d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
		}()
	}

	d.runBatch(ctx, &ev, func(batchCtx context.Context, r rule.Rule) ([]slack.Action, error) {
		return r.React(batchCtx, ev)
	})
	return nil
}

// reaction tracks one rule's in-flight task within a batch.
type reaction struct {
	rule    rule.Rule
	actions []slack.Action
	err     error
	done    chan struct{}
}

// runBatch launches fn for every rule concurrently, joins with a single
// deadline, reports failures and timeouts without aborting the batch, and
// submits the surviving actions sequentially in rule order.
func (d *Dispatcher) runBatch(
	ctx context.Context,
	ev *event.Event,
	fn func(context.Context, rule.Rule) ([]slack.Action, error),
) {
	batchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	reactions := make([]*reaction, len(d.rules))
	for i, r := range d.rules {
		rx := &reaction{rule: r, done: make(chan struct{})}
		reactions[i] = rx
		go func() {
			defer close(rx.done)
			defer func() {
				if p := recover(); p != nil {
					rx.err = errors.WrapTransient(
						fmt.Errorf("%w: %v\n%s", errors.ErrRulePanic, p, debug.Stack()),
						"Dispatcher", "runBatch", rx.rule.Name())
				}
			}()
			rx.actions, rx.err = fn(batchCtx, rx.rule)
		}()
	}

	// Only reactions whose goroutine has finished may be touched past this
	// point: a timed-out rule's goroutine can still be writing its fields.
	survivors := make([]*reaction, 0, len(reactions))
	for _, rx := range reactions {
		select {
		case <-rx.done:
		case <-batchCtx.Done():
			// Deadline hit: this rule may still have finished in the race.
			select {
			case <-rx.done:
			default:
				d.reportTimeout(ctx, rx.rule, ev)
				continue
			}
		}
		if rx.err != nil {
			d.reportFailure(ctx, rx.rule, rx.err, ev)
			continue
		}
		survivors = append(survivors, rx)
	}

	d.submitActions(ctx, survivors)
}

// submitActions executes the collected actions sequentially: rule order,
// then per-rule production order. A failed submission is reported and the
// remaining actions still run.
func (d *Dispatcher) submitActions(ctx context.Context, reactions []*reaction) {
	for _, rx := range reactions {
		if len(rx.actions) == 0 {
			continue
		}
		d.logger.Info("Rule responding to event", "rule", rx.rule.Name(), "actions", len(rx.actions))
		if d.metrics != nil {
			d.metrics.RulesTriggered.WithLabelValues(rx.rule.Name()).Inc()
		}
		for _, action := range rx.actions {
			if err := d.client.Submit(ctx, action); err != nil {
				d.reporter.Error(ctx, "Action submission failed",
					"rule", rx.rule.Name(), "method", action.Method, "error", err)
				continue
			}
			if d.metrics != nil {
				d.metrics.ActionsSubmitted.WithLabelValues(action.Method).Inc()
			}
		}
	}
}

func (d *Dispatcher) reportTimeout(ctx context.Context, r rule.Rule, ev *event.Event) {
	if d.metrics != nil {
		d.metrics.RuleFailures.WithLabelValues(r.Name(), "timeout").Inc()
	}
	d.reporter.Error(ctx, "Rule timed out", "rule", r.Name(), "event", d.renderEvent(ev))
}

func (d *Dispatcher) reportFailure(ctx context.Context, r rule.Rule, err error, ev *event.Event) {
	kind := "error"
	if errors.Is(err, errors.ErrRulePanic) {
		kind = "panic"
	}
	if d.metrics != nil {
		d.metrics.RuleFailures.WithLabelValues(r.Name(), kind).Inc()
	}
	d.reporter.Error(ctx, "Rule failed", "rule", r.Name(), "error", err, "event", d.renderEvent(ev))
}

// renderEvent produces the human-readable event rendering used in reports.
func (d *Dispatcher) renderEvent(ev *event.Event) string {
	if ev == nil {
		return "<none>"
	}
	return render(d.cache.Current().ReadableEvent(*ev))
}
