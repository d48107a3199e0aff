package notify

import (
	"errors"
	"fmt"
	"time"

	"docnest/internal/config"
	"docnest/internal/reminder"
	"docnest/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// Deps are the connections a configured notifier may need. Nil fields are
// fine as long as no configured channel uses them.
type Deps struct {
	Publisher Publisher
	Redis     KeyValue
}

// Build composes the notifier described by cfg: the channels in order, the
// MQ channel behind a circuit breaker, and the whole chain behind the Redis
// dedup guard.
func Build(cfg config.NotifierConfig, deps Deps, logger *zap.Logger) (reminder.Notifier, error) {
	var channels Multi
	for _, name := range cfg.Channels {
		switch name {
		case config.ChannelLog:
			channels = append(channels, NewLogNotifier(logger))
		case config.ChannelMQ:
			if deps.Publisher == nil {
				return nil, errors.New("notifier channel mq needs a RabbitMQ publisher")
			}
			var n reminder.Notifier = NewMQNotifier(deps.Publisher)
			if cfg.Breaker.Enabled {
				n = NewBreakerNotifier(n, newBreaker(cfg.Breaker, logger))
			}
			channels = append(channels, n)
		default:
			return nil, fmt.Errorf("unknown notifier channel %q", name)
		}
	}
	if len(channels) == 0 {
		return nil, errors.New("no notifier channels configured")
	}

	var n reminder.Notifier = channels
	if len(channels) == 1 {
		n = channels[0]
	}

	if cfg.Dedup {
		if deps.Redis == nil {
			return nil, errors.New("notifier dedup needs a Redis client")
		}
		n = NewDedupNotifier(n, deps.Redis, cfg.DedupTTL(), logger)
	}
	return n, nil
}

func newBreaker(cfg config.BreakerConfig, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	cbConfig := circuitbreaker.DefaultConfig()
	if cfg.FailureThreshold > 0 {
		cbConfig.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.TimeoutSeconds > 0 {
		cbConfig.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cbConfig.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Notifier circuit breaker state changed",
			zap.String("channel", config.ChannelMQ),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return circuitbreaker.NewCircuitBreaker(cbConfig)
}
