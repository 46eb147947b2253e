package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/slack"
)

// Reporter delivers fault reports: every report goes to the structured log,
// and when an operator identity is configured it is mirrored as a direct
// message. Reporting failures are logged and swallowed; a report must never
// take the runtime down.
type Reporter struct {
	client   *slack.Client
	reportTo event.ID
	logger   *slog.Logger
}

// NewReporter creates a reporter. An empty reportTo disables the operator
// mirror.
func NewReporter(client *slack.Client, reportTo event.ID, logger *slog.Logger) *Reporter {
	return &Reporter{client: client, reportTo: reportTo, logger: logger}
}

// Error reports a fault with structured context.
func (r *Reporter) Error(ctx context.Context, msg string, args ...any) {
	r.logger.Error(msg, args...)
	r.mirror(ctx, msg, args)
}

// Info reports a notable occurrence (e.g. a direct message seen).
func (r *Reporter) Info(_ context.Context, msg string, args ...any) {
	r.logger.Info(msg, args...)
}

// mirror sends the report to the operator as a DM, with its own short
// deadline so a slow API call cannot stall the dispatcher.
func (r *Reporter) mirror(ctx context.Context, msg string, args []any) {
	if r.reportTo == "" || r.client == nil {
		return
	}

	text := msg
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			text += "\n" + key + ": `" + render(args[i+1]) + "`"
		}
	}

	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	action := slack.PostMessage(r.reportTo, text, "")
	if err := r.client.Submit(mirrorCtx, action); err != nil {
		r.logger.Error("Operator report delivery failed", "error", err)
	}
}

func render(v any) string {
	return fmt.Sprint(v)
}
