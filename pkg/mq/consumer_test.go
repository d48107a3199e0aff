package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeAcker struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeDLQ struct {
	err      error
	messages []string
}

func (d *fakeDLQ) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error {
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, string(payload))
	return nil
}

func TestConsumerHandle(t *testing.T) {
	decodeErr := func(ctx context.Context, data json.RawMessage) error {
		var v map[string]any
		return json.Unmarshal(data, &v)
	}

	tests := []struct {
		name        string
		handler     MessageHandler
		dlq         *fakeDLQ
		wantAcked   int
		wantNacked  int
		wantRequeue bool
		wantDLQ     int
	}{
		{
			name:      "success acks",
			handler:   func(ctx context.Context, data json.RawMessage) error { return nil },
			wantAcked: 1,
		},
		{
			name:        "retryable error requeues",
			handler:     func(ctx context.Context, data json.RawMessage) error { return context.DeadlineExceeded },
			dlq:         &fakeDLQ{},
			wantNacked:  1,
			wantRequeue: true,
		},
		{
			name:      "non-retryable error goes to DLQ",
			handler:   decodeErr,
			dlq:       &fakeDLQ{},
			wantAcked: 1,
			wantDLQ:   1,
		},
		{
			name:       "non-retryable without DLQ is dropped",
			handler:    decodeErr,
			wantNacked: 1,
		},
		{
			name:       "DLQ failure falls back to nack",
			handler:    decodeErr,
			dlq:        &fakeDLQ{err: errors.New("channel closed")},
			wantNacked: 1,
		},
		{
			name:        "panic requeues",
			handler:     func(ctx context.Context, data json.RawMessage) error { panic("boom") },
			wantNacked:  1,
			wantRequeue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Consumer{routingKey: "reminder.due", handler: tt.handler, logger: zap.NewNop()}
			if tt.dlq != nil {
				c.SetDeadLetterer(tt.dlq)
			}
			acker := &fakeAcker{}

			c.handle(context.Background(), amqp091.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"reminder_id":`)})

			assert.Equal(t, tt.wantAcked, acker.acked)
			assert.Equal(t, tt.wantNacked, acker.nacked)
			assert.Equal(t, tt.wantRequeue, acker.requeue)
			if tt.dlq != nil {
				assert.Len(t, tt.dlq.messages, tt.wantDLQ)
			}
		})
	}
}

func TestStartConsuming_RequiresHandler(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	assert.Error(t, c.StartConsuming(context.Background()))
}
