package notify

import (
	"context"

	"docnest/internal/model"
	"docnest/internal/reminder"
	"docnest/pkg/circuitbreaker"
)

// BreakerNotifier fails fast with circuitbreaker.ErrCircuitBreakerOpen while
// the wrapped channel keeps failing.
type BreakerNotifier struct {
	next reminder.Notifier
	cb   *circuitbreaker.CircuitBreaker
}

func NewBreakerNotifier(next reminder.Notifier, cb *circuitbreaker.CircuitBreaker) *BreakerNotifier {
	return &BreakerNotifier{next: next, cb: cb}
}

func (n *BreakerNotifier) Notify(ctx context.Context, notice model.Notice) error {
	return n.cb.Execute(func() error {
		return n.next.Notify(ctx, notice)
	})
}

func (n *BreakerNotifier) State() circuitbreaker.State {
	return n.cb.GetState()
}
