// Package notify delivers operator alerts about rebalance activity over one
// or more channels (Telegram, Discord). Delivery is best-effort: a failed
// sender is logged and never interrupts the pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Event keys used for filtering which alerts operators receive.
const (
	EventRebalanceExecuted = "rebalance_executed"
	EventRebalanceError    = "rebalance_error"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel (e.g. "telegram").
	Name() string
}

// Notifier fans alerts out to all configured senders, filtered by the
// configured event set. An empty event set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. Only events listed in
// events are forwarded; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// RebalanceExecuted alerts on a completed corrective trade.
func (n *Notifier) RebalanceExecuted(ctx context.Context, exec domain.RebalanceExecution) {
	message := fmt.Sprintf(
		"side: %s\nnotional: %.2f\nfilled: %.2f (%d fills)\nremaining: %.2f\nmid: %.4f\nratio: %.4f\ntrigger: %s",
		exec.Side,
		float64(exec.NotionalMicro)/1e6,
		float64(exec.FilledMicro)/1e6, exec.FillCount,
		float64(exec.RemainingMicro)/1e6,
		exec.MidPrice, exec.Ratio,
		exec.TriggerTxHash,
	)
	n.notify(ctx, EventRebalanceExecuted, "Rebalance executed", message)
}

// RebalanceError alerts on a failed decision step.
func (n *Notifier) RebalanceError(ctx context.Context, reason string, err error) {
	n.notify(ctx, EventRebalanceError, "Rebalance error",
		fmt.Sprintf("reason: %s\nerror: %v", reason, err))
}

// notify applies the event filter and dispatches. Errors are logged per
// sender; one dead channel never blocks the others.
func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
