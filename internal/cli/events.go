package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	mqcontracts "docnest/contracts/mq"
	"docnest/pkg/mq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type EventsOptions struct {
	*RootOptions
	Queue string
}

func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow reminder.due events on RabbitMQ",
		Long: `Bind a durable queue to reminder.due on the events exchange and log every
event until interrupted. Malformed events go to the reminder.due.dlq queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Queue, "queue", "docnest.reminder.due.audit.q", "queue to consume from")
	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := opts.Config.MQ.URL
	publisher, err := mq.NewPublisher(url)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to RabbitMQ", err)
	}
	defer publisher.Close()
	if err := publisher.EnsureDLQ(mqcontracts.RoutingKeyReminderDue); err != nil {
		return WrapExitError(ExitCommandError, "failed to declare DLQ", err)
	}

	consumer, err := mq.NewConsumer(url, opts.Queue, mqcontracts.RoutingKeyReminderDue, opts.Logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to init consumer", err)
	}
	defer consumer.Close()

	consumer.SetHandler(reminderDueHandler(opts.Logger))
	consumer.SetDeadLetterer(publisher)

	if err := consumer.StartConsuming(ctx); err != nil {
		return WrapExitError(ExitFailure, "consumer stopped", err)
	}
	return nil
}

// reminderDueHandler logs each reminder.due event. Payloads that do not decode
// or lack ids are rejected as non-retryable.
func reminderDueHandler(logger *zap.Logger) mq.MessageHandler {
	return func(ctx context.Context, data json.RawMessage) error {
		var p mqcontracts.ReminderDuePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if _, err := uuid.Parse(p.ReminderID); err != nil {
			return fmt.Errorf("reminder.due without a valid reminder_id: %w", err)
		}

		logger.Info("reminder.due received",
			zap.String("reminder_id", p.ReminderID),
			zap.String("document_id", p.DocumentID),
			zap.String("user_id", p.UserID),
			zap.String("expires_on", p.ExpiresOn),
			zap.Int("days_before", p.DaysBefore),
		)
		return nil
	}
}
