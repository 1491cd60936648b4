// Package notify delivers operator and user notifications over Telegram and
// Discord. Notifications are filtered by event type so operators receive only
// the events they subscribed to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polybets/polybet/internal/domain"
)

// Event types accepted in the notify.events config list.
const (
	EventAlertTriggered = "alert_triggered"
	EventScrapeFailed   = "scrape_failed"
	EventArchive        = "archive"
	EventError          = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify sends a notification to all senders only if the event type is
// allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// NotifyAlert formats a fired price alert and sends it as an
// alert_triggered event.
func (n *Notifier) NotifyAlert(ctx context.Context, evt domain.AlertEvent) error {
	title, message := FormatAlert(evt)
	return n.Notify(ctx, EventAlertTriggered, title, message)
}

// FormatAlert renders the title and body of an alert notification.
func FormatAlert(evt domain.AlertEvent) (title, message string) {
	kind := "Profit"
	if evt.Direction == domain.AlertDirectionLoss {
		kind = "Loss"
	}
	name := evt.Title
	if name == "" {
		name = evt.MarketID
	}
	title = fmt.Sprintf("%s alert: %s", kind, name)

	var b strings.Builder
	if evt.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", evt.Category)
	}
	fmt.Fprintf(&b, "Price: %.2f -> %.2f (%+.1f%%)\n", evt.EntryPrice, evt.Price, evt.PnLPct)
	fmt.Fprintf(&b, "Fired: %s", evt.FiredAt.UTC().Format("2006-01-02 15:04 MST"))
	return title, b.String()
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the remaining senders; failures are returned combined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
