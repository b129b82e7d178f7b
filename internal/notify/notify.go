// Package notify delivers order notifications: persisted to the store for
// the in-app inbox and, optionally, published to Kafka for other consumers.
package notify

import (
	"context"
	"errors"

	"pharmatrack/internal/core"
	"pharmatrack/internal/logging"

	"go.uber.org/zap"
)

// Inbox is the part of core.Store that persists notifications.
type Inbox interface {
	InsertNotification(ctx context.Context, n *core.Notification) error
}

// StoreNotifier writes notifications to the recipient's inbox.
type StoreNotifier struct {
	inbox Inbox
}

func NewStoreNotifier(inbox Inbox) *StoreNotifier {
	return &StoreNotifier{inbox: inbox}
}

func (s *StoreNotifier) Notify(ctx context.Context, n core.Notification) error {
	return s.inbox.InsertNotification(ctx, &n)
}

// Fanout delivers to every notifier in turn. A failing notifier does not
// stop delivery to the rest; the failures are logged and joined.
type Fanout struct {
	notifiers []core.Notifier
	logger    *zap.Logger
}

func NewFanout(logger *zap.Logger, notifiers ...core.Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logging.OrNop(logger)}
}

func (f *Fanout) Notify(ctx context.Context, n core.Notification) error {
	var errs []error
	for i, notifier := range f.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			f.logger.Warn("notifier failed",
				zap.Int("notifier", i),
				zap.String("verb", n.Verb),
				zap.Int("recipient_id", n.RecipientID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
