package notify

import (
	"context"

	mqcontracts "docnest/contracts/mq"
	"docnest/internal/model"
)

// Publisher is the part of *mq.Publisher the notifier needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// MQNotifier hands due reminders to RabbitMQ as reminder.due events.
type MQNotifier struct {
	publisher Publisher
}

func NewMQNotifier(publisher Publisher) *MQNotifier {
	return &MQNotifier{publisher: publisher}
}

func (n *MQNotifier) Notify(ctx context.Context, notice model.Notice) error {
	return n.publisher.PublishWithContext(ctx, mqcontracts.RoutingKeyReminderDue, Payload(notice))
}

// Payload converts a notice to its wire form.
func Payload(notice model.Notice) mqcontracts.ReminderDuePayload {
	return mqcontracts.ReminderDuePayload{
		ReminderID: notice.ReminderID.String(),
		UserID:     notice.UserID.String(),
		DocumentID: notice.DocumentID.String(),
		ExpiresOn:  model.FormatDate(notice.ExpiresOn),
		DaysBefore: notice.DaysBefore,
		DueAt:      notice.DueAt.UTC(),
	}
}
