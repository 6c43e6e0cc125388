package monitor

import (
	"context"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/google/uuid"
)

// DeliveryAttempt records one best-effort notification to one subscriber.
type DeliveryAttempt struct {
	ID        string
	Platform  string
	Recipient string
	Kind      models.EventKind
	MessageID string
	Err       error
}

// dispatch fans the evaluated events out to every subscriber of the class.
// A failed delivery is logged and skipped; it does not affect other
// subscribers, other events, or the already-committed state.
func (m *Monitor) dispatch(ctx context.Context, state *models.ClassState, events []models.NotificationEvent) []DeliveryAttempt {
	if len(events) == 0 {
		return nil
	}

	subs, err := m.store.SubscribersOf(ctx, state.ClassKey)
	if err != nil {
		m.log.Sugar().Errorw("Failed to resolve subscribers", "class", state.ClassKey, "err", err)
		return nil
	}

	var attempts []DeliveryAttempt
	for _, event := range events {
		for _, sub := range subs {
			attempts = append(attempts, m.deliver(ctx, state, event, sub))
		}
	}
	return attempts
}

func (m *Monitor) deliver(ctx context.Context, state *models.ClassState, event models.NotificationEvent, sub models.Subscription) DeliveryAttempt {
	attempt := DeliveryAttempt{
		ID:        uuid.NewString(),
		Platform:  sub.Platform,
		Recipient: sub.UserID,
		Kind:      event.Kind,
	}

	sender, ok := m.senders[sub.Platform]
	if !ok {
		attempt.Err = errUnsupportedPlatform(sub.Platform)
		m.log.Sugar().Warnw("Unsupported notifier platform",
			"attempt_id", attempt.ID, "platform", sub.Platform, "class", state.ClassKey)
		return attempt
	}

	attempt.MessageID, attempt.Err = sender.SendEvent(ctx, sub.UserID, state, event)
	if attempt.Err != nil {
		m.log.Sugar().Warnw("Failed to deliver notification",
			"attempt_id", attempt.ID, "platform", sub.Platform,
			"class", state.ClassKey, "kind", event.Kind, "err", attempt.Err)
	} else {
		m.log.Sugar().Infow("Notification delivered",
			"attempt_id", attempt.ID, "platform", sub.Platform,
			"class", state.ClassKey, "kind", event.Kind, "message_id", attempt.MessageID)
	}
	return attempt
}

type errUnsupportedPlatform string

func (e errUnsupportedPlatform) Error() string {
	return "unsupported notifier platform: " + string(e)
}
