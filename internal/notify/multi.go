package notify

import (
	"context"
	"errors"

	"docnest/internal/model"
	"docnest/internal/reminder"
)

// Multi notifies every channel in order. It fails if any channel fails, which
// leaves the reminder pending; channels that already succeeded see it again.
type Multi []reminder.Notifier

func (m Multi) Notify(ctx context.Context, notice model.Notice) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
